package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/opencustody/ledger_layer/internal/app/domain/asset"
	"github.com/opencustody/ledger_layer/internal/app/storage/memory"
)

func TestCreditDebit(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if err := svc.Credit(ctx, "alice", asset.Native, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := svc.Debit(ctx, "alice", asset.Native, big.NewInt(40)); err != nil {
		t.Fatalf("debit: %v", err)
	}

	balance, err := svc.BalanceOf(ctx, "alice", asset.Native)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("balance = %s, want 60", balance)
	}
}

func TestDebitUnderflowRejected(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if err := svc.Credit(ctx, "alice", asset.Native, big.NewInt(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := svc.Debit(ctx, "alice", asset.Native, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// The failed debit must not touch the balance.
	balance, _ := svc.BalanceOf(ctx, "alice", asset.Native)
	if balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("balance changed by failed debit: %s", balance)
	}
}

func TestCreditOverflowRejected(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if err := svc.Credit(ctx, "alice", asset.Native, maxBalance); err != nil {
		t.Fatalf("credit to ceiling: %v", err)
	}
	if err := svc.Credit(ctx, "alice", asset.Native, big.NewInt(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestNegativeAmountsRejected(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if err := svc.Credit(ctx, "alice", asset.Native, big.NewInt(-1)); err == nil {
		t.Fatal("negative credit should fail")
	}
	if err := svc.Debit(ctx, "alice", asset.Native, big.NewInt(-1)); err == nil {
		t.Fatal("negative debit should fail")
	}
	if err := svc.Credit(ctx, "alice", asset.Native, nil); err == nil {
		t.Fatal("nil credit should fail")
	}
}

func TestTotalHeldAcrossAccounts(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	for i, account := range []string{"alice", "bob", "carol"} {
		if err := svc.Credit(ctx, account, asset.Native, big.NewInt(int64(i+1)*10)); err != nil {
			t.Fatalf("credit %s: %v", account, err)
		}
	}
	if err := svc.Credit(ctx, "alice", "TOKENX", big.NewInt(999)); err != nil {
		t.Fatalf("credit token: %v", err)
	}

	total, err := svc.TotalHeld(ctx, asset.Native)
	if err != nil {
		t.Fatalf("total held: %v", err)
	}
	if total.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("total = %s, want 60 (other assets must not leak in)", total)
	}
}
