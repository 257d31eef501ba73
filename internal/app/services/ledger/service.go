// Package ledger exposes the balance accounting primitives: lookup, credit
// and debit. It is a pure accounting layer. Asset support, pricing and
// policy checks belong to the operation coordinator; the single-writer
// discipline that makes a check-then-mutate sequence atomic is owned there
// as well.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/opencustody/ledger_layer/internal/app/storage"
	"github.com/opencustody/ledger_layer/pkg/logger"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	// Debits that would underflow are rejected, never clamped.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrArithmeticOverflow is returned when a credit would exceed the
	// theoretical supply ceiling. Unreachable with realistic supplies, but
	// balances must never silently wrap.
	ErrArithmeticOverflow = errors.New("balance arithmetic overflow")
)

// maxBalance is 2^256 - 1, the theoretical per-balance ceiling.
var maxBalance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Service implements the accounting primitives over a LedgerStore.
type Service struct {
	store storage.LedgerStore
	log   *logger.Logger
}

// New constructs a ledger service.
func New(store storage.LedgerStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{store: store, log: log}
}

// BalanceOf returns the balance for (account, asset). Missing pairs read as
// zero.
func (s *Service) BalanceOf(ctx context.Context, account, assetID string) (*big.Int, error) {
	return s.store.Balance(ctx, account, assetID)
}

// TotalHeld returns the aggregate balance across all accounts for one asset.
func (s *Service) TotalHeld(ctx context.Context, assetID string) (*big.Int, error) {
	return s.store.TotalBalance(ctx, assetID)
}

// Credit adds amount to the (account, asset) balance.
func (s *Service) Credit(ctx context.Context, account, assetID string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("credit amount must be non-negative")
	}

	balance, err := s.store.Balance(ctx, account, assetID)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	next := new(big.Int).Add(balance, amount)
	if next.Cmp(maxBalance) > 0 {
		return ErrArithmeticOverflow
	}
	if err := s.store.SetBalance(ctx, account, assetID, next); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

// Debit subtracts amount from the (account, asset) balance.
func (s *Service) Debit(ctx context.Context, account, assetID string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("debit amount must be non-negative")
	}

	balance, err := s.store.Balance(ctx, account, assetID)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	if amount.Cmp(balance) > 0 {
		return ErrInsufficientBalance
	}
	next := new(big.Int).Sub(balance, amount)
	if err := s.store.SetBalance(ctx, account, assetID, next); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}
