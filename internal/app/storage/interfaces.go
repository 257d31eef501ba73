package storage

import (
	"context"
	"errors"
	"math/big"

	"github.com/opencustody/ledger_layer/internal/app/domain/asset"
	"github.com/opencustody/ledger_layer/internal/app/domain/bank"
)

// ErrNotFound is returned by stores for missing records.
var ErrNotFound = errors.New("record not found")

// LedgerStore persists per-account, per-asset balances. Balances are
// non-negative integers in the asset's smallest unit; a missing row reads as
// zero. Stores do not validate asset support or arithmetic bounds; that is
// the caller's responsibility.
type LedgerStore interface {
	Balance(ctx context.Context, account, assetID string) (*big.Int, error)
	SetBalance(ctx context.Context, account, assetID string, amount *big.Int) error
	// TotalBalance returns the sum of all account balances for one asset.
	TotalBalance(ctx context.Context, assetID string) (*big.Int, error)
}

// RegistryStore persists the asset whitelist.
type RegistryStore interface {
	GetAsset(ctx context.Context, assetID string) (asset.Entry, error)
	PutAsset(ctx context.Context, entry asset.Entry) error
	DeleteAsset(ctx context.Context, assetID string) error
	ListAssets(ctx context.Context) ([]asset.Entry, error)
}

// StatsStore persists the global operation counters. Negative deltas are
// used only to unwind a counter bump when an operation fails after its
// ledger effect has been applied.
type StatsStore interface {
	Stats(ctx context.Context) (bank.Stats, error)
	AddDeposits(ctx context.Context, delta int64) error
	AddWithdrawals(ctx context.Context, delta int64) error
}

// TransactionStore persists the journal of successful operations.
type TransactionStore interface {
	AppendTransaction(ctx context.Context, tx bank.Transaction) (bank.Transaction, error)
	ListTransactions(ctx context.Context, account string) ([]bank.Transaction, error)
}
