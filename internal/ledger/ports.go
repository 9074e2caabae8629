// Package ledger defines the ports the application uses to persist
// transactions and to learn about changes made to them.
package ledger

import (
	"context"
	"errors"
	"time"

	"financeai/internal/core"
)

// DefaultTable is the table every backend stores transactions in.
const DefaultTable = "transactions"

// Ports for outbound adapters.
type (
	// Store persists transactions. Implementations wrap every failure in a
	// *StoreError.
	Store interface {
		// Insert stores tx for userID and returns it with its ID and date.
		Insert(ctx context.Context, userID string, tx core.NewTransaction) (core.Transaction, error)
		// Query returns userID's transactions, most recent first.
		Query(ctx context.Context, userID string, opts QueryOptions) ([]core.Transaction, error)
	}

	// Pinger is implemented by stores that can report their health.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Notifier carries ledger change events between writers and readers.
	Notifier interface {
		Publish(ctx context.Context, c Change) error
		// Subscribe registers fn for changes to userID's ledger, or to every
		// ledger when userID is empty. fn must not block for long.
		Subscribe(userID string, fn func(Change)) (Subscription, error)
	}

	Subscription interface {
		Unsubscribe()
	}
)

// QueryOptions narrows a Query. A zero Limit means no limit.
type QueryOptions struct {
	Limit int
}

// ChangeType mirrors the database event that produced a Change.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change describes one modification of a ledger.
type Change struct {
	Type          ChangeType `json:"type"`
	Table         string     `json:"table"`
	UserID        string     `json:"user_id"`
	TransactionID string     `json:"transaction_id"`
	At            time.Time  `json:"at"`
}

// InsertChange builds the event emitted after tx was stored.
func InsertChange(tx core.Transaction) Change {
	return Change{
		Type:          ChangeInsert,
		Table:         DefaultTable,
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		At:            time.Now().UTC(),
	}
}

var ErrStore = errors.New("ledger store error")

// StoreError wraps a failure reported by a storage backend.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "ledger " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// Wrap returns err as a *StoreError for op, or nil when err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
