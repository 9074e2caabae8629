package amqp

import (
	"context"

	"financeai/internal/ledger"
	"financeai/internal/log"
)

// ChangeFeed is the broker side of a Notifier. *Client implements it.
type ChangeFeed interface {
	PublishChange(ctx context.Context, msg *ChangeMessage) error
	ConsumeChanges(ctx context.Context, handler func(*ChangeMessage) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Notifier implements ledger.Notifier over RabbitMQ so that every API
// instance hears about writes made by the others.
type Notifier struct {
	feed   ChangeFeed
	local  *ledger.Broker
	logger *log.Logger
}

func NewNotifier(feed ChangeFeed, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Notifier{
		feed:   feed,
		local:  ledger.NewBroker(),
		logger: logger.WithComponent(log.ComponentAMQP),
	}
}

func (n *Notifier) Publish(ctx context.Context, c ledger.Change) error {
	return n.feed.PublishChange(ctx, NewChangeMessage(c))
}

// Subscribe registers fn for changes received from the broker, including the
// ones this instance published.
func (n *Notifier) Subscribe(userID string, fn func(ledger.Change)) (ledger.Subscription, error) {
	return n.local.Subscribe(userID, fn)
}

// Run consumes the change feed until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	return n.feed.ConsumeChanges(ctx, func(msg *ChangeMessage) error {
		c := msg.ToChange()
		n.logger.DebugContext(ctx, "Ledger change received",
			log.FieldUserID, c.UserID,
			log.FieldTransactionID, c.TransactionID)
		return n.local.Publish(ctx, c)
	})
}

func (n *Notifier) Ping(ctx context.Context) error {
	return n.feed.Ping(ctx)
}

func (n *Notifier) Close() error {
	return n.feed.Close()
}
