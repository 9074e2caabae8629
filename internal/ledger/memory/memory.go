// Package memory keeps ledgers in process memory. It backs development runs
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"financeai/internal/core"
	"financeai/internal/ledger"
)

type Store struct {
	mu    sync.Mutex
	seq   int64
	items []entry
	now   func() time.Time
}

type entry struct {
	seq int64
	tx  core.Transaction
}

func New() *Store {
	return &Store{now: func() time.Time { return time.Now().UTC() }}
}

// NewWithClock returns a store that stamps entries with now().
func NewWithClock(now func() time.Time) *Store {
	return &Store{now: now}
}

// Seed adds already-built transactions, e.g. demo data.
func (s *Store) Seed(txs ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		s.seq++
		s.items = append(s.items, entry{seq: s.seq, tx: tx})
	}
}

// Insert stores the transaction with a fresh ID and the current time.
func (s *Store) Insert(ctx context.Context, userID string, n core.NewTransaction) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, ledger.Wrap("insert", err)
	}
	tx := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      n.Amount,
		Category:    n.Category,
		Description: n.Description,
		Date:        s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.items = append(s.items, entry{seq: s.seq, tx: tx})
	return tx, nil
}

// Query returns the user's transactions by date, newest first. Entries with
// the same date come back in reverse insertion order.
func (s *Store) Query(ctx context.Context, userID string, opts ledger.QueryOptions) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.Wrap("query", err)
	}
	s.mu.Lock()
	matched := make([]entry, 0, len(s.items))
	for _, e := range s.items {
		if e.tx.UserID == userID {
			matched = append(matched, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].tx.Date.Equal(matched[j].tx.Date) {
			return matched[i].tx.Date.After(matched[j].tx.Date)
		}
		return matched[i].seq > matched[j].seq
	})

	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	out := make([]core.Transaction, len(matched))
	for i, e := range matched {
		out[i] = e.tx
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}
