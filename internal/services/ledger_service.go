package services

import (
	"context"
	"fmt"

	"financeai/internal/auth"
	"financeai/internal/core"
	"financeai/internal/ledger"
	"financeai/internal/log"
)

// DefaultListLimit is how many transactions the dashboard list shows.
const DefaultListLimit = 10

// LedgerService validates entries, stores them and announces the change.
type LedgerService struct {
	store    ledger.Store
	notifier ledger.Notifier
	logger   *log.Logger
}

// NewLedgerService builds the service. notifier may be nil.
func NewLedgerService(store ledger.Store, notifier ledger.Notifier, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:    store,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentLedger),
	}
}

// AddTransaction checks the entry, then the caller's identity, and only then
// touches the store. A failed change announcement does not fail the call.
func (s *LedgerService) AddTransaction(ctx context.Context, user auth.User, in core.NewTransaction) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		s.logger.DebugContext(ctx, "Rejected transaction", log.FieldError, err, log.FieldOperation, log.OpValidate)
		return core.Transaction{}, err
	}
	if user.ID == "" {
		return core.Transaction{}, auth.ErrAuthRequired
	}

	tx, err := s.store.Insert(ctx, user.ID, in)
	if err != nil {
		fields := log.NewFields().
			WithUser(user.ID).
			WithOperation(log.OpInsert).
			WithError(err)
		s.logger.ErrorContext(ctx, "Failed to store transaction", fields.ToSlice()...)
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	log.NewStructuredLogger(s.logger).
		LogTransactionCreated(ctx, user.ID, tx.ID, string(tx.Category), tx.Amount.String())

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, ledger.InsertChange(tx)); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish ledger change",
				log.FieldUserID, user.ID,
				log.FieldTransactionID, tx.ID,
				log.FieldError, err)
		}
	}

	return tx, nil
}

// ListTransactions returns the user's most recent transactions. A limit of
// zero or less returns all of them.
func (s *LedgerService) ListTransactions(ctx context.Context, user auth.User, limit int) ([]core.Transaction, error) {
	if user.ID == "" {
		return nil, auth.ErrAuthRequired
	}
	if limit < 0 {
		limit = 0
	}
	txs, err := s.store.Query(ctx, user.ID, ledger.QueryOptions{Limit: limit})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query transactions",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
