// Package postgres talks to the Supabase Postgres database directly through
// a pgx connection pool. It also provides a LISTEN/NOTIFY change feed.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"financeai/internal/core"
	"financeai/internal/ledger"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Pool exposes the underlying pool so a Notifier can share it.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return ledger.Wrap("ping", r.pool.Ping(ctx))
}

const insertSQL = `
INSERT INTO transactions (user_id, amount, category, description)
VALUES ($1, $2::numeric, $3, $4)
RETURNING id::text, user_id::text, amount::text, category::text, description, date::timestamptz`

// Insert leaves id and date to the column defaults.
func (r *Repository) Insert(ctx context.Context, userID string, n core.NewTransaction) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx, insertSQL, userID, n.Amount.String(), string(n.Category), n.Description)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, ledger.Wrap("insert", fmt.Errorf("create transaction: %w", err))
	}
	return tx, nil
}

const querySQL = `
SELECT id::text, user_id::text, amount::text, category::text, description, date::timestamptz
FROM transactions
WHERE user_id = $1
ORDER BY date DESC`

func (r *Repository) Query(ctx context.Context, userID string, opts ledger.QueryOptions) ([]core.Transaction, error) {
	sql := querySQL
	args := []any{userID}
	if opts.Limit > 0 {
		sql += " LIMIT $2"
		args = append(args, opts.Limit)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, ledger.Wrap("query", fmt.Errorf("select transactions: %w", err))
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, ledger.Wrap("query", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Wrap("query", fmt.Errorf("iterate transactions: %w", err))
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx       core.Transaction
		amount   string
		category string
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &amount, &category, &tx.Description, &tx.Date); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	tx.Amount = d
	tx.Category = core.Category(category)
	tx.Date = tx.Date.UTC()
	return tx, nil
}
