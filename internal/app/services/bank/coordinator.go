// Package bank orchestrates the deposit and withdrawal protocol: validation,
// pricing, policy check, ledger effect, external transfer and notification.
// It owns the non-reentrancy guard and the pause flag.
package bank

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/opencustody/ledger_layer/internal/app/domain/asset"
	domain "github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/metrics"
	"github.com/opencustody/ledger_layer/internal/app/services/ledger"
	"github.com/opencustody/ledger_layer/internal/app/services/oracle"
	"github.com/opencustody/ledger_layer/internal/app/services/policy"
	"github.com/opencustody/ledger_layer/internal/app/services/registry"
	"github.com/opencustody/ledger_layer/internal/app/storage"
	"github.com/opencustody/ledger_layer/pkg/logger"
)

// Coordinator is the single mutating entry point into the ledger. Every
// state-changing operation, including admin actions, runs to completion under
// the operation guard before the next one may start.
type Coordinator struct {
	registry  *registry.Service
	ledger    *ledger.Service
	policy    *policy.Engine
	oracle    *oracle.Adapter
	transfers TransferProvider
	notifier  Notifier
	stats     storage.StatsStore
	journal   storage.TransactionStore
	log       *logger.Logger

	guard  opGuard
	paused atomic.Bool
}

// Deps bundles the coordinator's collaborators.
type Deps struct {
	Registry  *registry.Service
	Ledger    *ledger.Service
	Policy    *policy.Engine
	Oracle    *oracle.Adapter
	Transfers TransferProvider
	Notifier  Notifier
	Stats     storage.StatsStore
	Journal   storage.TransactionStore
}

// New constructs an operation coordinator.
func New(deps Deps, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewDefault("bank")
	}
	if deps.Notifier == nil {
		deps.Notifier = NewLogNotifier(log)
	}
	return &Coordinator{
		registry:  deps.Registry,
		ledger:    deps.Ledger,
		policy:    deps.Policy,
		oracle:    deps.Oracle,
		transfers: deps.Transfers,
		notifier:  deps.Notifier,
		stats:     deps.Stats,
		journal:   deps.Journal,
		log:       log,
	}
}

// DepositNative credits a native deposit. The value arrives with the call
// itself, so the transfer step is a no-op.
func (c *Coordinator) DepositNative(ctx context.Context, account string, amount *big.Int) (domain.Transaction, error) {
	release, err := c.guard.enter()
	if err != nil {
		return domain.Transaction{}, err
	}
	defer release()

	if err := validateAccount(account); err != nil {
		return domain.Transaction{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.Transaction{}, ErrZeroAmount
	}
	if c.paused.Load() {
		return domain.Transaction{}, ErrPaused
	}

	usdValue, err := c.policy.ValueOfNative(ctx, asset.Native, amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := c.policy.CheckDepositCap(ctx, usdValue); err != nil {
		metrics.RecordBankOperation(domain.TransactionDeposit, "rejected")
		return domain.Transaction{}, err
	}

	var undo undoStack
	if err := c.ledger.Credit(ctx, account, asset.Native, amount); err != nil {
		return domain.Transaction{}, err
	}
	undo.push(func() {
		if err := c.ledger.Debit(ctx, account, asset.Native, amount); err != nil {
			c.log.WithError(err).Error("unwind native deposit credit failed")
		}
	})

	if err := c.stats.AddDeposits(ctx, 1); err != nil {
		undo.run()
		return domain.Transaction{}, fmt.Errorf("bump deposit counter: %w", err)
	}
	undo.push(func() {
		if err := c.stats.AddDeposits(ctx, -1); err != nil {
			c.log.WithError(err).Error("unwind deposit counter failed")
		}
	})

	tx, err := c.record(ctx, account, asset.Native, domain.TransactionDeposit, amount, usdValue, &undo)
	if err != nil {
		return domain.Transaction{}, err
	}

	c.emit(ctx, domain.EventDeposited, account, asset.Native, amount, usdValue)
	metrics.RecordBankOperation(domain.TransactionDeposit, "ok")
	return tx, nil
}

// DepositAsset credits a secondary-asset deposit. The transfer-in runs before
// the credit because the received amount is only known after the external
// provider completes; fee-bearing assets deliver less than requested. The
// operation guard is what makes this ordering safe.
func (c *Coordinator) DepositAsset(ctx context.Context, account, assetID string, amount *big.Int) (domain.Transaction, error) {
	release, err := c.guard.enter()
	if err != nil {
		return domain.Transaction{}, err
	}
	defer release()

	if err := validateAccount(account); err != nil {
		return domain.Transaction{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.Transaction{}, ErrZeroAmount
	}
	if assetID == asset.Invalid {
		return domain.Transaction{}, ErrInvalidAsset
	}
	if asset.IsNative(assetID) {
		return domain.Transaction{}, ErrWrongPath
	}
	if c.paused.Load() {
		return domain.Transaction{}, ErrPaused
	}
	supported, err := c.registry.IsSupported(ctx, assetID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("check asset support: %w", err)
	}
	if !supported {
		return domain.Transaction{}, ErrAssetNotSupported
	}

	received, err := c.transfers.TransferIn(ctx, account, assetID, amount)
	if err != nil {
		metrics.RecordBankOperation(domain.TransactionDeposit, "transfer_failed")
		return domain.Transaction{}, fmt.Errorf("%w: %v", ErrInboundTransferFailed, err)
	}
	if received == nil || received.Sign() < 0 {
		return domain.Transaction{}, fmt.Errorf("%w: provider reported invalid received amount", ErrInboundTransferFailed)
	}

	var undo undoStack
	undo.push(func() {
		if ok, err := c.transfers.TransferOut(ctx, account, assetID, received); err != nil || !ok {
			c.log.WithError(err).WithField("asset_id", assetID).Error("returning inbound transfer failed; funds held without credit")
		}
	})

	if err := c.ledger.Credit(ctx, account, assetID, received); err != nil {
		undo.run()
		return domain.Transaction{}, err
	}
	undo.push(func() {
		if err := c.ledger.Debit(ctx, account, assetID, received); err != nil {
			c.log.WithError(err).Error("unwind asset deposit credit failed")
		}
	})

	if err := c.stats.AddDeposits(ctx, 1); err != nil {
		undo.run()
		return domain.Transaction{}, fmt.Errorf("bump deposit counter: %w", err)
	}
	undo.push(func() {
		if err := c.stats.AddDeposits(ctx, -1); err != nil {
			c.log.WithError(err).Error("unwind deposit counter failed")
		}
	})

	zero := new(big.Int)
	tx, err := c.record(ctx, account, assetID, domain.TransactionDeposit, received, zero, &undo)
	if err != nil {
		return domain.Transaction{}, err
	}

	c.emit(ctx, domain.EventDeposited, account, assetID, received, zero)
	metrics.RecordBankOperation(domain.TransactionDeposit, "ok")
	return tx, nil
}

// WithdrawNative debits and pays out native value. The debit lands before the
// outbound transfer; a transfer failure unwinds the whole operation.
func (c *Coordinator) WithdrawNative(ctx context.Context, account string, amount *big.Int) (domain.Transaction, error) {
	release, err := c.guard.enter()
	if err != nil {
		return domain.Transaction{}, err
	}
	defer release()

	if err := validateAccount(account); err != nil {
		return domain.Transaction{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.Transaction{}, ErrZeroAmount
	}
	balance, err := c.ledger.BalanceOf(ctx, account, asset.Native)
	if err != nil {
		return domain.Transaction{}, err
	}
	if amount.Cmp(balance) > 0 {
		return domain.Transaction{}, ledger.ErrInsufficientBalance
	}

	usdValue, err := c.policy.ValueOfNative(ctx, asset.Native, amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := c.policy.CheckWithdrawalLimit(usdValue); err != nil {
		metrics.RecordBankOperation(domain.TransactionWithdrawal, "rejected")
		return domain.Transaction{}, err
	}

	return c.settleWithdrawal(ctx, account, asset.Native, amount, usdValue)
}

// WithdrawAsset debits and pays out a secondary asset. No pricing or policy
// check applies; valuation of secondary assets is out of scope. Withdrawal
// of a delisted asset stays possible as long as a balance exists.
func (c *Coordinator) WithdrawAsset(ctx context.Context, account, assetID string, amount *big.Int) (domain.Transaction, error) {
	release, err := c.guard.enter()
	if err != nil {
		return domain.Transaction{}, err
	}
	defer release()

	if err := validateAccount(account); err != nil {
		return domain.Transaction{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.Transaction{}, ErrZeroAmount
	}
	if assetID == asset.Invalid {
		return domain.Transaction{}, ErrInvalidAsset
	}
	if asset.IsNative(assetID) {
		return domain.Transaction{}, ErrWrongPath
	}
	balance, err := c.ledger.BalanceOf(ctx, account, assetID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if amount.Cmp(balance) > 0 {
		return domain.Transaction{}, ledger.ErrInsufficientBalance
	}

	return c.settleWithdrawal(ctx, account, assetID, amount, new(big.Int))
}

// settleWithdrawal applies the debit, bumps the counter, executes the
// outbound transfer and journals the result. Callers hold the guard.
func (c *Coordinator) settleWithdrawal(ctx context.Context, account, assetID string, amount, usdValue *big.Int) (domain.Transaction, error) {
	var undo undoStack
	if err := c.ledger.Debit(ctx, account, assetID, amount); err != nil {
		return domain.Transaction{}, err
	}
	undo.push(func() {
		if err := c.ledger.Credit(ctx, account, assetID, amount); err != nil {
			c.log.WithError(err).Error("unwind withdrawal debit failed")
		}
	})

	if err := c.stats.AddWithdrawals(ctx, 1); err != nil {
		undo.run()
		return domain.Transaction{}, fmt.Errorf("bump withdrawal counter: %w", err)
	}
	undo.push(func() {
		if err := c.stats.AddWithdrawals(ctx, -1); err != nil {
			c.log.WithError(err).Error("unwind withdrawal counter failed")
		}
	})

	ok, err := c.transfers.TransferOut(ctx, account, assetID, amount)
	if err != nil || !ok {
		undo.run()
		metrics.RecordBankOperation(domain.TransactionWithdrawal, "transfer_failed")
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("%w: %v", ErrOutboundTransferFailed, err)
		}
		return domain.Transaction{}, ErrOutboundTransferFailed
	}

	// Past this point the funds have left the custody account. A journal
	// failure must not re-credit the balance; the debit and counter stand
	// and the error is surfaced as-is.
	tx, err := c.journal.AppendTransaction(ctx, domain.Transaction{
		Account:  account,
		AssetID:  assetID,
		Type:     domain.TransactionWithdrawal,
		Amount:   new(big.Int).Set(amount),
		USDValue: new(big.Int).Set(usdValue),
	})
	if err != nil {
		metrics.RecordBankOperation(domain.TransactionWithdrawal, "journal_failed")
		c.log.WithError(err).WithField("account", account).Error("withdrawal paid out but journaling failed")
		return domain.Transaction{}, fmt.Errorf("journal %s: %w", domain.TransactionWithdrawal, err)
	}

	c.emit(ctx, domain.EventWithdrawn, account, assetID, amount, usdValue)
	metrics.RecordBankOperation(domain.TransactionWithdrawal, "ok")
	return tx, nil
}

// record appends the journal entry; on failure it unwinds the operation so
// no partial state survives.
func (c *Coordinator) record(ctx context.Context, account, assetID, txType string, amount, usdValue *big.Int, undo *undoStack) (domain.Transaction, error) {
	tx, err := c.journal.AppendTransaction(ctx, domain.Transaction{
		Account:  account,
		AssetID:  assetID,
		Type:     txType,
		Amount:   new(big.Int).Set(amount),
		USDValue: new(big.Int).Set(usdValue),
	})
	if err != nil {
		undo.run()
		return domain.Transaction{}, fmt.Errorf("journal %s: %w", txType, err)
	}
	return tx, nil
}

func (c *Coordinator) emit(ctx context.Context, eventType, account, assetID string, amount, usdValue *big.Int) {
	event := newEvent(eventType, account, assetID)
	event.Amount = new(big.Int).Set(amount)
	event.USDValue = new(big.Int).Set(usdValue)
	c.notifier.Notify(ctx, event)
}

// Admin-path mutations --------------------------------------------------------
//
// These are invoked by the admin controller after the capability check. They
// run under the same operation guard as deposits and withdrawals.

// AddAsset whitelists a secondary asset and emits AssetSupported.
func (c *Coordinator) AddAsset(ctx context.Context, assetID string) error {
	release, err := c.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.registry.Add(ctx, assetID); err != nil {
		return err
	}
	c.notifier.Notify(ctx, newEvent(domain.EventAssetSupported, "", assetID))
	return nil
}

// RemoveAsset delists a secondary asset and emits AssetRemoved.
func (c *Coordinator) RemoveAsset(ctx context.Context, assetID string) error {
	release, err := c.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.registry.Remove(ctx, assetID); err != nil {
		return err
	}
	c.notifier.Notify(ctx, newEvent(domain.EventAssetRemoved, "", assetID))
	return nil
}

// SetPaused toggles the deposit pause flag.
func (c *Coordinator) SetPaused(ctx context.Context, paused bool) error {
	release, err := c.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	c.paused.Store(paused)
	c.log.WithField("paused", paused).Info("pause state changed")
	return nil
}

// Read-only queries -------------------------------------------------------------
//
// Queries are not guarded; stores serve consistent snapshots.

// Paused reports the pause flag.
func (c *Coordinator) Paused() bool { return c.paused.Load() }

// BalanceOf returns the balance for (account, asset).
func (c *Coordinator) BalanceOf(ctx context.Context, account, assetID string) (*big.Int, error) {
	return c.ledger.BalanceOf(ctx, account, assetID)
}

// Stats returns the global operation counters.
func (c *Coordinator) Stats(ctx context.Context) (domain.Stats, error) {
	return c.stats.Stats(ctx)
}

// NativePriceUSD returns the current normalized oracle price.
func (c *Coordinator) NativePriceUSD(ctx context.Context) (*big.Int, error) {
	return c.oracle.NormalizedPrice(ctx)
}

// IsSupported reports whether an asset is whitelisted.
func (c *Coordinator) IsSupported(ctx context.Context, assetID string) (bool, error) {
	return c.registry.IsSupported(ctx, assetID)
}

// ListAssets returns the whitelisted asset identifiers.
func (c *Coordinator) ListAssets(ctx context.Context) ([]string, error) {
	return c.registry.List(ctx)
}

// Transactions lists the journal, optionally filtered by account.
func (c *Coordinator) Transactions(ctx context.Context, account string) ([]domain.Transaction, error) {
	return c.journal.ListTransactions(ctx, account)
}

// Helpers -----------------------------------------------------------------------

func validateAccount(account string) error {
	if account == "" {
		return ErrInvalidAccount
	}
	return nil
}

// undoStack collects compensating actions; run executes them in reverse.
type undoStack struct {
	fns []func()
}

func (u *undoStack) push(fn func()) { u.fns = append(u.fns, fn) }

func (u *undoStack) run() {
	for i := len(u.fns) - 1; i >= 0; i-- {
		u.fns[i]()
	}
}
