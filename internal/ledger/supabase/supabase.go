// Package supabase stores transactions in a Supabase project through its
// PostgREST API.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"financeai/internal/core"
	"financeai/internal/ledger"
)

type Repository struct {
	client *supabase.Client
	table  string
}

// NewRepository connects with a service key. Row level security is bypassed
// by such keys, so every query filters on user_id explicitly.
func NewRepository(url, key string) (*Repository, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	return &Repository{
		client: client,
		table:  ledger.DefaultTable,
	}, nil
}

type insertRow struct {
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    core.Category   `json:"category"`
	Description string          `json:"description"`
}

type row struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    core.Category   `json:"category"`
	Description string          `json:"description"`
	Date        timestamp       `json:"date"`
}

func (r row) toCore() core.Transaction {
	return core.Transaction{
		ID:          r.ID,
		UserID:      r.UserID,
		Amount:      r.Amount,
		Category:    r.Category,
		Description: r.Description,
		Date:        time.Time(r.Date),
	}
}

// Insert leaves id and date to the column defaults and reads them back.
func (r *Repository) Insert(ctx context.Context, userID string, n core.NewTransaction) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, ledger.Wrap("insert", err)
	}
	data, _, err := r.client.From(r.table).
		Insert(insertRow{UserID: userID, Amount: n.Amount, Category: n.Category, Description: n.Description}, false, "", "representation", "").
		Execute()
	if err != nil {
		return core.Transaction{}, ledger.Wrap("insert", fmt.Errorf("create transaction: %w", err))
	}

	var created []row
	if err := json.Unmarshal(data, &created); err != nil {
		return core.Transaction{}, ledger.Wrap("insert", fmt.Errorf("parse created transaction: %w", err))
	}
	if len(created) == 0 {
		return core.Transaction{}, ledger.Wrap("insert", errors.New("insert returned no rows"))
	}
	return created[0].toCore(), nil
}

func (r *Repository) Query(ctx context.Context, userID string, opts ledger.QueryOptions) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.Wrap("query", err)
	}
	query := r.client.From(r.table).
		Select("id,user_id,amount,category,description,date", "", false).
		Eq("user_id", userID).
		Order("date", &postgrest.OrderOpts{Ascending: false})

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit, "")
	}

	data, _, err := query.Execute()
	if err != nil {
		return nil, ledger.Wrap("query", fmt.Errorf("get transactions: %w", err))
	}

	var rows []row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, ledger.Wrap("query", fmt.Errorf("parse transactions: %w", err))
	}
	out := make([]core.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

// timestamp accepts both timestamptz and plain date columns.
type timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = timestamp(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("unrecognised date %q", s)
}
