package policy

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencustody/ledger_layer/internal/app/domain/asset"
	"github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/domain/price"
	"github.com/opencustody/ledger_layer/internal/app/services/ledger"
	"github.com/opencustody/ledger_layer/internal/app/services/oracle"
	"github.com/opencustody/ledger_layer/internal/app/storage/memory"
)

func mustUSD(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := bank.ParseUSD(s)
	require.NoError(t, err)
	return v
}

// nativeAmount converts whole native units to smallest units.
func nativeAmount(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), bank.NativeUnit)
}

func newEngine(t *testing.T, priceUSD, capUSD, limitUSD string) (*Engine, *ledger.Service) {
	t.Helper()
	feed := oracle.NewStaticFeedProvider(mustUSD(t, priceUSD), bank.USDScale)
	adapter := oracle.NewAdapter(feed, nil)
	ledgerSvc := ledger.New(memory.New(), nil)
	params := bank.Params{
		DepositCapUSD:      mustUSD(t, capUSD),
		WithdrawalLimitUSD: mustUSD(t, limitUSD),
	}
	return New(adapter, ledgerSvc, params, nil), ledgerSvc
}

func TestValueOfNative(t *testing.T) {
	engine, _ := newEngine(t, "2000", "1000000", "50000")

	value, err := engine.ValueOfNative(context.Background(), asset.Native, nativeAmount(400))
	require.NoError(t, err)
	assert.Equal(t, mustUSD(t, "800000"), value)

	// Fractional amounts scale linearly.
	half := new(big.Int).Quo(bank.NativeUnit, big.NewInt(2))
	value, err = engine.ValueOfNative(context.Background(), asset.Native, half)
	require.NoError(t, err)
	assert.Equal(t, mustUSD(t, "1000"), value)
}

func TestValueOfSecondaryAssetIsZero(t *testing.T) {
	engine, _ := newEngine(t, "2000", "1000000", "50000")

	value, err := engine.ValueOfNative(context.Background(), "TOKENX", nativeAmount(1000))
	require.NoError(t, err)
	assert.Zero(t, value.Sign())
}

func TestCheckDepositCap(t *testing.T) {
	engine, ledgerSvc := newEngine(t, "2000", "1000000", "50000")
	ctx := context.Background()

	// 400 native at $2000 = $800k held.
	require.NoError(t, ledgerSvc.Credit(ctx, "alice", asset.Native, nativeAmount(400)))

	// Another $200k fits exactly.
	require.NoError(t, engine.CheckDepositCap(ctx, mustUSD(t, "200000")))

	// $400k more would breach the cap.
	err := engine.CheckDepositCap(ctx, mustUSD(t, "400000"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapExceeded)

	var capErr *CapExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, mustUSD(t, "800000"), capErr.Current)
	assert.Equal(t, mustUSD(t, "400000"), capErr.Attempted)
	assert.Equal(t, mustUSD(t, "1000000"), capErr.Cap)
}

func TestCheckDepositCapTracksPrice(t *testing.T) {
	feed := oracle.NewStaticFeedProvider(mustUSD(t, "2000"), bank.USDScale)
	adapter := oracle.NewAdapter(feed, nil)
	ledgerSvc := ledger.New(memory.New(), nil)
	engine := New(adapter, ledgerSvc, bank.Params{
		DepositCapUSD:      mustUSD(t, "1000000"),
		WithdrawalLimitUSD: mustUSD(t, "50000"),
	}, nil)
	ctx := context.Background()

	require.NoError(t, ledgerSvc.Credit(ctx, "alice", asset.Native, nativeAmount(400)))
	require.NoError(t, engine.CheckDepositCap(ctx, mustUSD(t, "100000")))

	// A price move revalues existing holdings: 400 native at $3000 = $1.2M,
	// already above the cap, so any further deposit is rejected.
	feed.SetReading(price.Reading{
		RoundID:         2,
		Price:           mustUSD(t, "3000"),
		UpdatedAt:       time.Now().UTC(),
		AnsweredInRound: 2,
	})
	err := engine.CheckDepositCap(ctx, mustUSD(t, "1"))
	assert.ErrorIs(t, err, ErrCapExceeded)
}

func TestCheckWithdrawalLimit(t *testing.T) {
	engine, _ := newEngine(t, "2000", "1000000", "50000")

	require.NoError(t, engine.CheckWithdrawalLimit(mustUSD(t, "50000")))

	err := engine.CheckWithdrawalLimit(mustUSD(t, "60000"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	var limitErr *LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, mustUSD(t, "60000"), limitErr.Attempted)
	assert.Equal(t, mustUSD(t, "50000"), limitErr.Limit)
}

func TestOracleFailurePropagates(t *testing.T) {
	feed := oracle.NewStaticFeedProvider(big.NewInt(0), bank.USDScale)
	adapter := oracle.NewAdapter(feed, nil)
	engine := New(adapter, ledger.New(memory.New(), nil), bank.Params{
		DepositCapUSD:      mustUSD(t, "1000000"),
		WithdrawalLimitUSD: mustUSD(t, "50000"),
	}, nil)

	_, err := engine.ValueOfNative(context.Background(), asset.Native, nativeAmount(1))
	assert.True(t, errors.Is(err, oracle.ErrInvalidPrice))
}
