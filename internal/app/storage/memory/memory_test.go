package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/opencustody/ledger_layer/internal/app/domain/asset"
	"github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/storage"
)

func TestBalances(t *testing.T) {
	s := New()
	ctx := context.Background()

	b, err := s.Balance(ctx, "alice", asset.Native)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Sign() != 0 {
		t.Fatalf("fresh balance should be zero, got %s", b)
	}

	if err := s.SetBalance(ctx, "alice", asset.Native, big.NewInt(100)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := s.SetBalance(ctx, "bob", asset.Native, big.NewInt(50)); err != nil {
		t.Fatalf("set balance: %v", err)
	}

	total, err := s.TotalBalance(ctx, asset.Native)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("total = %s, want 150", total)
	}

	// The store must hand out copies, not aliases.
	b, _ = s.Balance(ctx, "alice", asset.Native)
	b.SetInt64(0)
	b, _ = s.Balance(ctx, "alice", asset.Native)
	if b.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("stored balance mutated through returned value")
	}
}

func TestAssets(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetAsset(ctx, "TOKENX"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.PutAsset(ctx, asset.Entry{AssetID: "TOKENX", Supported: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	entry, err := s.GetAsset(ctx, "TOKENX")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !entry.Supported {
		t.Fatalf("asset should be supported")
	}

	if err := s.PutAsset(ctx, asset.Entry{AssetID: "ALPHA", Supported: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := s.ListAssets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].AssetID != "ALPHA" || list[1].AssetID != "TOKENX" {
		t.Fatalf("list not sorted: %+v", list)
	}

	if err := s.DeleteAsset(ctx, "TOKENX"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteAsset(ctx, "TOKENX"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestStatsCounters(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.AddDeposits(ctx, 1); err != nil {
		t.Fatalf("add deposits: %v", err)
	}
	if err := s.AddWithdrawals(ctx, 1); err != nil {
		t.Fatalf("add withdrawals: %v", err)
	}
	if err := s.AddWithdrawals(ctx, -1); err != nil {
		t.Fatalf("unwind withdrawals: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Deposits != 1 || stats.Withdrawals != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestTransactionJournal(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx, err := s.AppendTransaction(ctx, bank.Transaction{
		Account:  "alice",
		AssetID:  asset.Native,
		Type:     bank.TransactionDeposit,
		Amount:   big.NewInt(1),
		USDValue: big.NewInt(2),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if tx.ID == "" || tx.CreatedAt.IsZero() {
		t.Fatalf("journal entry missing id/time: %+v", tx)
	}

	if _, err := s.AppendTransaction(ctx, bank.Transaction{
		Account: "bob", AssetID: asset.Native, Type: bank.TransactionDeposit,
		Amount: big.NewInt(3), USDValue: big.NewInt(0),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := s.ListTransactions(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}

	alice, err := s.ListTransactions(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(alice) != 1 || alice[0].Account != "alice" {
		t.Fatalf("account filter broken: %+v", alice)
	}
}
