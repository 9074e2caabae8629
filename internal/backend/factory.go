package backend

import (
	"context"
	"errors"
	"fmt"

	"financeai/internal/amqp"
	"financeai/internal/ledger"
	"financeai/internal/ledger/memory"
	"financeai/internal/ledger/postgres"
	"financeai/internal/ledger/supabase"
	"financeai/internal/log"
	"financeai/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend builds the store for config.Type and picks a change
// notifier: RabbitMQ when an AMQP URL is configured, Postgres LISTEN/NOTIFY
// for the postgres backend, an in-process broker otherwise.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case MemoryBackend:
		res = f.createMemoryBackend()
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case SupabaseBackend:
		res, err = f.createSupabaseBackend(config)
	case PostgresBackend:
		res, err = f.createPostgresBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.AMQPURL != "" {
		f.attachAMQP(res, config)
	}
	if res.Notifier == nil {
		res.Notifier = ledger.NewBroker()
	}

	f.logger.InfoContext(ctx, "Initialized ledger backend",
		log.FieldBackend, config.Type.String(),
		"notifier", fmt.Sprintf("%T", res.Notifier))
	return res, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	store := memory.New()
	return &BackendResult{
		Store:   store,
		Checks:  []Check{{Name: "ledger", Check: store.Ping}},
		Cleanup: func() error { return nil },
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite ledger", "db_path", config.SQLiteDBPath)
	return &BackendResult{
		Store:   repo,
		Checks:  []Check{{Name: "ledger", Check: repo.Ping}},
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSupabaseBackend(config Config) (*BackendResult, error) {
	repo, err := supabase.NewRepository(config.SupabaseURL, config.SupabaseKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase repository: %w", err)
	}
	return &BackendResult{
		Store:   repo,
		Cleanup: func() error { return nil },
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.NewRepository(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}
	notifier := postgres.NewNotifier(repo.Pool(), f.logger)
	return &BackendResult{
		Store:    repo,
		Notifier: notifier,
		Checks:   []Check{{Name: "ledger", Check: repo.Ping}},
		Run:      notifier.Listen,
		Cleanup:  repo.Close,
	}, nil
}

// attachAMQP replaces the notifier with a RabbitMQ one. A broker that cannot
// be reached is logged and the backend keeps its local notifier.
func (f *DefaultFactory) attachAMQP(res *BackendResult, config Config) {
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing with local change feed",
			log.FieldError, err)
		return
	}
	notifier := amqp.NewNotifier(client, f.logger)

	storeCleanup := res.Cleanup
	res.Notifier = notifier
	res.Run = notifier.Run
	res.Checks = append(res.Checks, Check{Name: "amqp", Check: notifier.Ping})
	res.Cleanup = func() error {
		return errors.Join(notifier.Close(), storeCleanup())
	}
	f.logger.Info("Initialized AMQP change feed", "exchange", config.AMQPExchange)
}
