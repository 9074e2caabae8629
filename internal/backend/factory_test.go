package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"financeai/internal/config"
	"financeai/internal/core"
	"financeai/internal/ledger"
	"financeai/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "postgres", DatabaseURL: "postgres://localhost/db", AMQPExchange: "x"}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != PostgresBackend || got.DatabaseURL != cfg.DatabaseURL {
		t.Errorf("FromAppConfig() = %+v", got)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"supabase without key", Config{Type: SupabaseBackend, SupabaseURL: "https://x.supabase.co"}, true},
		{"postgres", Config{Type: PostgresBackend, DatabaseURL: "postgres://x"}, false},
		{"amqp without exchange", Config{Type: MemoryBackend, AMQPURL: "amqp://x"}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend_Local(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"memory", Config{Type: MemoryBackend}},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			res, err := NewFactory(log.Discard()).CreateBackend(ctx, tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer func() {
				if err := res.Cleanup(); err != nil {
					t.Errorf("Cleanup() error = %v", err)
				}
			}()

			if _, ok := res.Notifier.(*ledger.Broker); !ok {
				t.Errorf("notifier = %T, want *ledger.Broker", res.Notifier)
			}
			if res.Run != nil {
				t.Error("local backend should not need a background runner")
			}
			for _, c := range res.Checks {
				if err := c.Check(ctx); err != nil {
					t.Errorf("check %s: %v", c.Name, err)
				}
			}

			tx, err := res.Store.Insert(ctx, "u", core.NewTransaction{
				Amount: decimal.NewFromInt(10), Category: core.Food, Description: "Tea",
			})
			if err != nil {
				t.Fatal(err)
			}
			got, err := res.Store.Query(ctx, "u", ledger.QueryOptions{})
			if err != nil || len(got) != 1 || got[0].ID != tx.ID {
				t.Errorf("Query() = %+v, %v", got, err)
			}
		})
	}
}
