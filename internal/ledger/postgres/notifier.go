package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"financeai/internal/ledger"
	"financeai/internal/log"
)

// DefaultChannel is the NOTIFY channel ledger changes travel on.
const DefaultChannel = "ledger_changes"

// Notifier publishes changes with pg_notify and fans out notifications it
// receives on LISTEN to local subscribers.
type Notifier struct {
	pool    *pgxpool.Pool
	channel string
	local   *ledger.Broker
	logger  *log.Logger
}

func NewNotifier(pool *pgxpool.Pool, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Notifier{
		pool:    pool,
		channel: DefaultChannel,
		local:   ledger.NewBroker(),
		logger:  logger.WithComponent(log.ComponentStorage),
	}
}

func (n *Notifier) Publish(ctx context.Context, c ledger.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if _, err := n.pool.Exec(ctx, "SELECT pg_notify($1, $2)", n.channel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", n.channel, err)
	}
	return nil
}

func (n *Notifier) Subscribe(userID string, fn func(ledger.Change)) (ledger.Subscription, error) {
	return n.local.Subscribe(userID, fn)
}

// Listen holds one pooled connection on LISTEN until ctx is done,
// reconnecting after failures.
func (n *Notifier) Listen(ctx context.Context) error {
	for {
		err := n.listenOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		n.logger.WarnContext(ctx, "Change feed listener stopped, reconnecting", log.FieldError, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (n *Notifier) listenOnce(ctx context.Context) error {
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{n.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	n.logger.InfoContext(ctx, "Listening for ledger changes", "channel", n.channel)

	for {
		note, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		var c ledger.Change
		if err := json.Unmarshal([]byte(note.Payload), &c); err != nil {
			n.logger.WarnContext(ctx, "Dropping malformed change notification", log.FieldError, err)
			continue
		}
		_ = n.local.Publish(ctx, c)
	}
}
