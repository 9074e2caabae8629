package backend

import (
	"context"

	"financeai/internal/ledger"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Check probes one dependency for readiness.
type Check struct {
	Name  string
	Check func(ctx context.Context) error
}

// BackendResult is everything the application needs from its data layer.
type BackendResult struct {
	Store    ledger.Store
	Notifier ledger.Notifier

	// Checks are probed by the readiness endpoint.
	Checks []Check

	// Run, when set, must be started by the caller and runs until its
	// context is done. It feeds remote changes into Notifier.
	Run func(ctx context.Context) error

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	SupabaseURL string
	SupabaseKey string

	DatabaseURL string

	// Optional cross-instance change feed.
	AMQPURL      string
	AMQPExchange string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	SupabaseBackend BackendType = "supabase"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, SupabaseBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
