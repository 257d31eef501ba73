// Package memory provides a thread-safe in-memory persistence layer
// implementing the storage interfaces. It is the default store for tests and
// single-node deployments.
package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opencustody/ledger_layer/internal/app/domain/asset"
	"github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/storage"
)

type balanceKey struct {
	account string
	assetID string
}

// Store is the in-memory implementation of all storage interfaces.
type Store struct {
	mu           sync.RWMutex
	balances     map[balanceKey]*big.Int
	assets       map[string]asset.Entry
	stats        bank.Stats
	transactions []bank.Transaction
}

var (
	_ storage.LedgerStore      = (*Store)(nil)
	_ storage.RegistryStore    = (*Store)(nil)
	_ storage.StatsStore       = (*Store)(nil)
	_ storage.TransactionStore = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		balances: make(map[balanceKey]*big.Int),
		assets:   make(map[string]asset.Entry),
	}
}

// LedgerStore implementation ---------------------------------------------------

func (s *Store) Balance(_ context.Context, account, assetID string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if bal, ok := s.balances[balanceKey{account, assetID}]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (s *Store) SetBalance(_ context.Context, account, assetID string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{account, assetID}
	if amount == nil || amount.Sign() == 0 {
		delete(s.balances, key)
		return nil
	}
	s.balances[key] = new(big.Int).Set(amount)
	return nil
}

func (s *Store) TotalBalance(_ context.Context, assetID string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := new(big.Int)
	for key, bal := range s.balances {
		if key.assetID == assetID {
			total.Add(total, bal)
		}
	}
	return total, nil
}

// RegistryStore implementation -------------------------------------------------

func (s *Store) GetAsset(_ context.Context, assetID string) (asset.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.assets[assetID]
	if !ok {
		return asset.Entry{}, storage.ErrNotFound
	}
	return entry, nil
}

func (s *Store) PutAsset(_ context.Context, entry asset.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.assets[entry.AssetID]; ok {
		entry.CreatedAt = existing.CreatedAt
	} else {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	s.assets[entry.AssetID] = entry
	return nil
}

func (s *Store) DeleteAsset(_ context.Context, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[assetID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.assets, assetID)
	return nil
}

func (s *Store) ListAssets(_ context.Context) ([]asset.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]asset.Entry, 0, len(s.assets))
	for _, entry := range s.assets {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssetID < result[j].AssetID })
	return result, nil
}

// StatsStore implementation ----------------------------------------------------

func (s *Store) Stats(_ context.Context) (bank.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *Store) AddDeposits(_ context.Context, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Deposits = applyDelta(s.stats.Deposits, delta)
	return nil
}

func (s *Store) AddWithdrawals(_ context.Context, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Withdrawals = applyDelta(s.stats.Withdrawals, delta)
	return nil
}

func applyDelta(current uint64, delta int64) uint64 {
	if delta >= 0 {
		return current + uint64(delta)
	}
	dec := uint64(-delta)
	if dec > current {
		return 0
	}
	return current - dec
}

// TransactionStore implementation ----------------------------------------------

func (s *Store) AppendTransaction(_ context.Context, tx bank.Transaction) (bank.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.Amount = cloneInt(tx.Amount)
	tx.USDValue = cloneInt(tx.USDValue)
	s.transactions = append(s.transactions, tx)
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, account string) ([]bank.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]bank.Transaction, 0)
	for _, tx := range s.transactions {
		if account == "" || tx.Account == account {
			result = append(result, cloneTransaction(tx))
		}
	}
	return result, nil
}

// Helpers ------------------------------------------------------------------------

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func cloneTransaction(tx bank.Transaction) bank.Transaction {
	tx.Amount = cloneInt(tx.Amount)
	tx.USDValue = cloneInt(tx.USDValue)
	return tx
}
