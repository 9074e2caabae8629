package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financeai/internal/core"
	"financeai/internal/ledger"
)

func TestRepository_Query(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id":"b","user_id":"u1","amount":250.5,"category":"food","description":"lunch","date":"2025-03-02T10:00:00.123456+00:00"},
			{"id":"a","user_id":"u1","amount":"1000","category":"income","description":"gift","date":"2025-03-01"}
		]`)
	}))
	defer srv.Close()

	repo, err := NewRepository(srv.URL, "service-key")
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}

	got, err := repo.Query(context.Background(), "u1", ledger.QueryOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" {
		t.Fatalf("unexpected rows %+v", got)
	}
	if !got[0].Amount.Equal(decimal.RequireFromString("250.5")) {
		t.Errorf("amount = %s", got[0].Amount)
	}
	if want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC); !got[1].Date.Equal(want) {
		t.Errorf("date = %v, want %v", got[1].Date, want)
	}
	for _, part := range []string{"user_id=eq.u1", "order=date.desc", "limit=10"} {
		if !strings.Contains(gotQuery, part) {
			t.Errorf("query %q missing %q", gotQuery, part)
		}
	}
}

func TestRepository_Insert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["user_id"] != "u1" || body["category"] != "food" {
			t.Errorf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id":"new","user_id":"u1","amount":99,"category":"food","description":"tea","date":"2025-03-02T10:00:00Z"}]`)
	}))
	defer srv.Close()

	repo, err := NewRepository(srv.URL, "service-key")
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}

	tx, err := repo.Insert(context.Background(), "u1", core.NewTransaction{
		Amount: decimal.NewFromInt(99), Category: core.Food, Description: "tea",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if tx.ID != "new" || tx.Date.IsZero() {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}

func TestRepository_ErrorsAreStoreErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"boom","code":"XX000"}`)
	}))
	defer srv.Close()

	repo, _ := NewRepository(srv.URL, "service-key")
	_, err := repo.Query(context.Background(), "u1", ledger.QueryOptions{})
	if !errors.Is(err, ledger.ErrStore) {
		t.Fatalf("expected StoreError, got %v", err)
	}
}
