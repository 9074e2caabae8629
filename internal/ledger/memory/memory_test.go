package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financeai/internal/core"
	"financeai/internal/ledger"
)

func TestStoreInsertAndQuery(t *testing.T) {
	clock := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	ctx := context.Background()

	for _, d := range []string{"first", "second", "third"} {
		if _, err := s.Insert(ctx, "alice", core.NewTransaction{Amount: decimal.NewFromInt(10), Category: core.Food, Description: d}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if _, err := s.Insert(ctx, "bob", core.NewTransaction{Amount: decimal.NewFromInt(99), Category: core.Income, Description: "salary"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := s.Query(ctx, "alice", ledger.QueryOptions{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(got))
	}
	if got[0].Description != "third" || got[2].Description != "first" {
		t.Fatalf("expected most recent first, got %v, %v", got[0].Description, got[2].Description)
	}
	if got[0].ID == "" || got[0].UserID != "alice" {
		t.Fatalf("missing ID or owner: %+v", got[0])
	}

	limited, _ := s.Query(ctx, "alice", ledger.QueryOptions{Limit: 2})
	if len(limited) != 2 || limited[0].Description != "third" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestStoreSameDateOrdering(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return fixed })
	ctx := context.Background()

	_, _ = s.Insert(ctx, "u", core.NewTransaction{Amount: decimal.NewFromInt(1), Category: core.Food, Description: "a"})
	_, _ = s.Insert(ctx, "u", core.NewTransaction{Amount: decimal.NewFromInt(1), Category: core.Food, Description: "b"})

	got, _ := s.Query(ctx, "u", ledger.QueryOptions{})
	if got[0].Description != "b" {
		t.Fatalf("expected later insert first, got %q", got[0].Description)
	}
}

func TestStoreCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Insert(ctx, "u", core.NewTransaction{})
	if !errors.Is(err, ledger.ErrStore) {
		t.Fatalf("expected StoreError, got %v", err)
	}
}
