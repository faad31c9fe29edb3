// Package storage persists ledger documents in SQLite so the banking
// agent can serve queries without re-reading JSON exports on every
// request.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"concierge/internal/ledger"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores accounts, transactions, and recurring
// payments. It implements ledger.Source.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Source = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database connection, used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Snapshot implements ledger.Source by materializing the full ledger.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot

	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.created_at, t.posted_at, t.amount, t.currency, t.kind,
		       t.description, t.merchant_name, t.merchant_category, t.category,
		       a.label
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		ORDER BY t.posted_at, t.id`)
	if err != nil {
		return snap, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tx ledger.Transaction
		var createdAt, postedAt string
		if err := rows.Scan(&tx.ID, &createdAt, &postedAt, &tx.Amount, &tx.Currency,
			&tx.Kind, &tx.Description, &tx.MerchantName, &tx.MerchantCategory,
			&tx.Category, &tx.AccountLabel); err != nil {
			return snap, fmt.Errorf("scan transaction: %w", err)
		}
		tx.CreatedAt = parseStoredTime(createdAt)
		tx.PostedAt = parseStoredTime(postedAt)
		snap.Transactions = append(snap.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("iterate transactions: %w", err)
	}

	recRows, err := r.db.QueryContext(ctx, `
		SELECT a.label, rp.name, rp.amount, rp.frequency, rp.next_charge
		FROM recurring_payments rp
		JOIN accounts a ON a.id = rp.account_id
		ORDER BY rp.id`)
	if err != nil {
		return snap, fmt.Errorf("query recurring payments: %w", err)
	}
	defer recRows.Close()

	for recRows.Next() {
		var rc ledger.RecurringCharge
		if err := recRows.Scan(&rc.AccountLabel, &rc.Name, &rc.Amount,
			&rc.Frequency, &rc.NextCharge); err != nil {
			return snap, fmt.Errorf("scan recurring payment: %w", err)
		}
		snap.Recurring = append(snap.Recurring, rc)
	}
	if err := recRows.Err(); err != nil {
		return snap, fmt.Errorf("iterate recurring payments: %w", err)
	}

	return snap, nil
}

// Seed replaces the stored ledger with the given snapshot. One account
// row is kept per distinct account label.
func (r *SQLiteRepository) Seed(ctx context.Context, snap ledger.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"recurring_payments", "transactions", "accounts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	accountIDs := make(map[string]int64)
	ensureAccount := func(label, currency string) (int64, error) {
		if label == "" {
			label = "unlabeled"
		}
		if id, ok := accountIDs[label]; ok {
			return id, nil
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (label, currency) VALUES (?, ?)`, label, currency)
		if err != nil {
			return 0, fmt.Errorf("insert account %s: %w", label, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("account id for %s: %w", label, err)
		}
		accountIDs[label] = id
		return id, nil
	}

	for _, t := range snap.Transactions {
		accountID, err := ensureAccount(t.AccountLabel, t.Currency)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions
			(id, account_id, created_at, posted_at, amount, currency, kind,
			 description, merchant_name, merchant_category, category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, accountID, formatStoredTime(t.CreatedAt), formatStoredTime(t.PostedAt),
			t.Amount, t.Currency, t.Kind, t.Description,
			t.MerchantName, t.MerchantCategory, t.Category)
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	for _, rc := range snap.Recurring {
		accountID, err := ensureAccount(rc.AccountLabel, "")
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO recurring_payments (account_id, name, amount, frequency, next_charge)
			VALUES (?, ?, ?, ?, ?)`,
			accountID, rc.Name, rc.Amount, rc.Frequency, rc.NextCharge)
		if err != nil {
			return fmt.Errorf("insert recurring payment %s: %w", rc.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}

	slog.InfoContext(ctx, "Ledger seeded",
		"accounts", len(accountIDs),
		"transactions", len(snap.Transactions),
		"recurring", len(snap.Recurring))
	return nil
}

// SeedFromFile loads a bank JSON export and replaces the stored ledger.
func (r *SQLiteRepository) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ledger file: %w", err)
	}
	snap, err := ledger.ParseSnapshot(data)
	if err != nil {
		return fmt.Errorf("parse ledger file: %w", err)
	}
	return r.Seed(ctx, snap)
}

// TransactionCount returns how many transactions are stored.
func (r *SQLiteRepository) TransactionCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func formatStoredTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
