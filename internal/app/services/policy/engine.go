// Package policy computes USD valuations and enforces the aggregate deposit
// cap and the per-operation withdrawal limit. Valuations cover the native
// asset only; secondary assets intentionally value to zero.
package policy

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/opencustody/ledger_layer/internal/app/domain/asset"
	"github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/services/ledger"
	"github.com/opencustody/ledger_layer/internal/app/services/oracle"
	"github.com/opencustody/ledger_layer/pkg/logger"
)

var (
	// ErrCapExceeded flags aggregate-cap rejections; use errors.As with
	// *CapExceededError for the amounts involved.
	ErrCapExceeded = errors.New("deposit cap exceeded")
	// ErrLimitExceeded flags per-operation withdrawal limit rejections; use
	// errors.As with *LimitExceededError for the amounts involved.
	ErrLimitExceeded = errors.New("withdrawal limit exceeded")
)

// CapExceededError reports a deposit that would push the aggregate native
// holdings value above the cap. All values are at bank.USDScale decimals.
type CapExceededError struct {
	Current   *big.Int
	Attempted *big.Int
	Cap       *big.Int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("deposit cap exceeded: current %s + attempted %s > cap %s USD",
		bank.FormatUSD(e.Current), bank.FormatUSD(e.Attempted), bank.FormatUSD(e.Cap))
}

func (e *CapExceededError) Is(target error) bool { return target == ErrCapExceeded }

// LimitExceededError reports a withdrawal whose USD value exceeds the
// per-operation limit.
type LimitExceededError struct {
	Attempted *big.Int
	Limit     *big.Int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("withdrawal limit exceeded: attempted %s > limit %s USD",
		bank.FormatUSD(e.Attempted), bank.FormatUSD(e.Limit))
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// Engine evaluates valuations and policy checks. It holds no mutable state;
// the price is re-fetched through the oracle adapter on every valuation.
type Engine struct {
	oracle *oracle.Adapter
	ledger *ledger.Service
	params bank.Params
	log    *logger.Logger
}

// New constructs a policy engine with the given parameters.
func New(oracleAdapter *oracle.Adapter, ledgerService *ledger.Service, params bank.Params, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("policy")
	}
	return &Engine{
		oracle: oracleAdapter,
		ledger: ledgerService,
		params: params,
		log:    log,
	}
}

// Params returns the configured policy parameters.
func (e *Engine) Params() bank.Params { return e.params }

// ValueOfNative returns the USD value of a native smallest-unit amount at
// bank.USDScale decimals. Non-native assets value to zero.
func (e *Engine) ValueOfNative(ctx context.Context, assetID string, amount *big.Int) (*big.Int, error) {
	if !asset.IsNative(assetID) {
		return new(big.Int), nil
	}

	normalized, err := e.oracle.NormalizedPrice(ctx)
	if err != nil {
		return nil, err
	}

	value := new(big.Int).Mul(amount, normalized)
	value.Quo(value, bank.NativeUnit)
	return value, nil
}

// CheckDepositCap rejects a native deposit whose USD value would push the
// aggregate native holdings value above the cap. The caller must hold the
// operation guard so the check and the subsequent credit form one atomic
// unit.
func (e *Engine) CheckDepositCap(ctx context.Context, incomingUSD *big.Int) error {
	held, err := e.ledger.TotalHeld(ctx, asset.Native)
	if err != nil {
		return fmt.Errorf("read aggregate holdings: %w", err)
	}

	current, err := e.ValueOfNative(ctx, asset.Native, held)
	if err != nil {
		return err
	}

	if new(big.Int).Add(current, incomingUSD).Cmp(e.params.DepositCapUSD) > 0 {
		return &CapExceededError{
			Current:   current,
			Attempted: new(big.Int).Set(incomingUSD),
			Cap:       new(big.Int).Set(e.params.DepositCapUSD),
		}
	}
	return nil
}

// CheckWithdrawalLimit rejects a single withdrawal whose USD value exceeds
// the configured per-operation limit. The check is per operation, not
// cumulative.
func (e *Engine) CheckWithdrawalLimit(usdValue *big.Int) error {
	if usdValue.Cmp(e.params.WithdrawalLimitUSD) > 0 {
		return &LimitExceededError{
			Attempted: new(big.Int).Set(usdValue),
			Limit:     new(big.Int).Set(e.params.WithdrawalLimitUSD),
		}
	}
	return nil
}
