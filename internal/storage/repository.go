package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"financeai/internal/core"
	"financeai/internal/ledger"

	_ "modernc.org/sqlite"
)

// dateLayout is fixed width so that dates sort lexicographically.
const dateLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db      *sql.DB
	now     func() time.Time
	version uint
}

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

	version, err := migrateLedger(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		now:     func() time.Time { return time.Now().UTC() },
		version: version,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion is the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.version
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return ledger.Wrap("ping", r.db.PingContext(ctx))
}

// Insert implements ledger.Store
func (r *SQLiteRepository) Insert(ctx context.Context, userID string, n core.NewTransaction) (core.Transaction, error) {
	tx := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      n.Amount,
		Category:    n.Category,
		Description: n.Description,
		Date:        r.now(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, amount, category, description, date) VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Amount.String(), string(tx.Category), tx.Description, tx.Date.Format(dateLayout),
	)
	if err != nil {
		return core.Transaction{}, ledger.Wrap("insert", fmt.Errorf("create transaction: %w", err))
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"user_id", tx.UserID,
		"category", tx.Category,
		"amount", tx.Amount.String())

	return tx, nil
}

// Query implements ledger.Store
func (r *SQLiteRepository) Query(ctx context.Context, userID string, opts ledger.QueryOptions) ([]core.Transaction, error) {
	query := `SELECT id, user_id, amount, category, description, date
		FROM transactions
		WHERE user_id = ?
		ORDER BY date DESC, rowid DESC`
	args := []any{userID}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.Wrap("query", fmt.Errorf("select transactions: %w", err))
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t            core.Transaction
			amount, date string
			category     string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &amount, &category, &t.Description, &date); err != nil {
			return nil, ledger.Wrap("query", fmt.Errorf("scan transaction: %w", err))
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, ledger.Wrap("query", fmt.Errorf("parse amount %q: %w", amount, err))
		}
		if t.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, ledger.Wrap("query", fmt.Errorf("parse date %q: %w", date, err))
		}
		t.Category = core.Category(category)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Wrap("query", fmt.Errorf("iterate transactions: %w", err))
	}

	return out, nil
}
