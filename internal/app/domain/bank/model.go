package bank

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// USDScale is the number of decimals used for normalized prices, USD values,
// the aggregate deposit cap and the per-operation withdrawal limit.
const USDScale = 18

// NativeUnit is the smallest-unit scale of the native asset (1e18).
var NativeUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// USDUnit is one whole USD at the internal scale.
var USDUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(USDScale), nil)

// Transaction direction.
const (
	TransactionDeposit    = "deposit"
	TransactionWithdrawal = "withdrawal"
)

// Transaction is the journal record appended once per successful operation.
type Transaction struct {
	ID        string
	Account   string
	AssetID   string
	Type      string
	Amount    *big.Int
	USDValue  *big.Int
	CreatedAt time.Time
}

// Stats holds the monotonically increasing operation counters.
type Stats struct {
	Deposits    uint64 `json:"deposits"`
	Withdrawals uint64 `json:"withdrawals"`
}

// Params are the policy parameters, both expressed at USDScale decimals.
type Params struct {
	DepositCapUSD      *big.Int
	WithdrawalLimitUSD *big.Int
}

// Event types emitted by the notifier.
const (
	EventDeposited      = "Deposited"
	EventWithdrawn      = "Withdrawn"
	EventAssetSupported = "AssetSupported"
	EventAssetRemoved   = "AssetRemoved"
)

// Event is a fire-and-forget notification record. Amount and USDValue are nil
// for registry events.
type Event struct {
	ID       string
	Type     string
	Account  string
	AssetID  string
	Amount   *big.Int
	USDValue *big.Int
	At       time.Time
}

// ParseUSD converts a decimal USD string such as "1000" or "49.50" to an
// integer at USDScale decimals. Negative values are rejected.
func ParseUSD(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty usd amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("usd amount %q is negative", s)
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > USDScale {
		return nil, fmt.Errorf("usd amount %q exceeds %d decimals", s, USDScale)
	}
	frac += strings.Repeat("0", USDScale-len(frac))

	value, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid usd amount %q", s)
	}
	return value, nil
}

// FormatUSD renders an internal-scale value as a decimal string.
func FormatUSD(v *big.Int) string {
	if v == nil {
		return "0"
	}
	quo, rem := new(big.Int).QuoRem(v, USDUnit, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String()
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%018s", rem.String()), "0")
	return quo.String() + "." + fracStr
}
