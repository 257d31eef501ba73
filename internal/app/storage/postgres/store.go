// Package postgres implements the storage interfaces backed by PostgreSQL.
// Balances are NUMERIC(78,0), wide enough for 2^256-1.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencustody/ledger_layer/internal/app/domain/asset"
	"github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/storage"
)

// Store implements the storage interfaces over a sqlx handle.
type Store struct {
	db *sqlx.DB
}

var (
	_ storage.LedgerStore      = (*Store)(nil)
	_ storage.RegistryStore    = (*Store)(nil)
	_ storage.StatsStore       = (*Store)(nil)
	_ storage.TransactionStore = (*Store)(nil)
)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// LedgerStore ---------------------------------------------------------------

func (s *Store) Balance(ctx context.Context, account, assetID string) (*big.Int, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `
		SELECT balance::TEXT FROM bank_balances
		WHERE account = $1 AND asset_id = $2
	`, account, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseNumeric(raw)
}

func (s *Store) SetBalance(ctx context.Context, account, assetID string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM bank_balances WHERE account = $1 AND asset_id = $2
		`, account, assetID)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_balances (account, asset_id, balance, updated_at)
		VALUES ($1, $2, $3::NUMERIC, NOW())
		ON CONFLICT (account, asset_id)
		DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()
	`, account, assetID, amount.String())
	return err
}

func (s *Store) TotalBalance(ctx context.Context, assetID string) (*big.Int, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `
		SELECT COALESCE(SUM(balance), 0)::TEXT FROM bank_balances WHERE asset_id = $1
	`, assetID)
	if err != nil {
		return nil, err
	}
	return parseNumeric(raw)
}

// RegistryStore -------------------------------------------------------------

type assetRow struct {
	AssetID   string    `db:"asset_id"`
	Supported bool      `db:"supported"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *Store) GetAsset(ctx context.Context, assetID string) (asset.Entry, error) {
	var row assetRow
	err := s.db.GetContext(ctx, &row, `
		SELECT asset_id, supported, created_at, updated_at
		FROM bank_assets WHERE asset_id = $1
	`, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Entry{}, storage.ErrNotFound
	}
	if err != nil {
		return asset.Entry{}, err
	}
	return asset.Entry(row), nil
}

func (s *Store) PutAsset(ctx context.Context, entry asset.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_assets (asset_id, supported, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (asset_id)
		DO UPDATE SET supported = EXCLUDED.supported, updated_at = NOW()
	`, entry.AssetID, entry.Supported)
	return err
}

func (s *Store) DeleteAsset(ctx context.Context, assetID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM bank_assets WHERE asset_id = $1
	`, assetID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListAssets(ctx context.Context) ([]asset.Entry, error) {
	var rows []assetRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT asset_id, supported, created_at, updated_at
		FROM bank_assets ORDER BY asset_id
	`)
	if err != nil {
		return nil, err
	}
	entries := make([]asset.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, asset.Entry(row))
	}
	return entries, nil
}

// StatsStore ------------------------------------------------------------------

func (s *Store) Stats(ctx context.Context) (bank.Stats, error) {
	var stats bank.Stats
	err := s.db.GetContext(ctx, &stats, `
		SELECT deposits, withdrawals FROM bank_stats WHERE id = 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return bank.Stats{}, nil
	}
	return stats, err
}

func (s *Store) AddDeposits(ctx context.Context, delta int64) error {
	return s.addCounter(ctx, "deposits", delta)
}

func (s *Store) AddWithdrawals(ctx context.Context, delta int64) error {
	return s.addCounter(ctx, "withdrawals", delta)
}

func (s *Store) addCounter(ctx context.Context, column string, delta int64) error {
	// column is one of two fixed names, never user input.
	seed := `
		INSERT INTO bank_stats (id, deposits, withdrawals) VALUES (1, 0, 0)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, seed); err != nil {
		return err
	}
	update := fmt.Sprintf(`
		UPDATE bank_stats SET %s = GREATEST(%s + $1, 0) WHERE id = 1
	`, column, column)
	_, err := s.db.ExecContext(ctx, update, delta)
	return err
}

// TransactionStore --------------------------------------------------------------

type transactionRow struct {
	ID        string    `db:"id"`
	Account   string    `db:"account"`
	AssetID   string    `db:"asset_id"`
	Type      string    `db:"type"`
	Amount    string    `db:"amount"`
	USDValue  string    `db:"usd_value"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) AppendTransaction(ctx context.Context, tx bank.Transaction) (bank.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_transactions (id, account, asset_id, type, amount, usd_value, created_at)
		VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)
	`, tx.ID, tx.Account, tx.AssetID, tx.Type, tx.Amount.String(), tx.USDValue.String(), tx.CreatedAt)
	if err != nil {
		return bank.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, account string) ([]bank.Transaction, error) {
	query := `
		SELECT id, account, asset_id, type, amount::TEXT, usd_value::TEXT, created_at
		FROM bank_transactions
	`
	args := []interface{}{}
	if account != "" {
		query += ` WHERE account = $1`
		args = append(args, account)
	}
	query += ` ORDER BY created_at`

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	txs := make([]bank.Transaction, 0, len(rows))
	for _, row := range rows {
		amount, err := parseNumeric(row.Amount)
		if err != nil {
			return nil, err
		}
		usd, err := parseNumeric(row.USDValue)
		if err != nil {
			return nil, err
		}
		txs = append(txs, bank.Transaction{
			ID:        row.ID,
			Account:   row.Account,
			AssetID:   row.AssetID,
			Type:      row.Type,
			Amount:    amount,
			USDValue:  usd,
			CreatedAt: row.CreatedAt,
		})
	}
	return txs, nil
}

// Helpers -------------------------------------------------------------------------

func parseNumeric(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", raw)
	}
	return value, nil
}
