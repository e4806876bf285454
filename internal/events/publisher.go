package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/littlecarts/internal/order"
)

const (
	EventsExchange           = "littlecarts.events"
	CartCheckedOutRoutingKey = "cart.checkedout.v1"
	defaultProducer          = "littlecarts"
)

// Sequencer hands out per-partition sequence numbers.
type Sequencer interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

// Message is an encoded event ready for a transport.
type Message struct {
	RoutingKey string
	Key        string
	Body       []byte
	Headers    map[string]string
}

// Sender delivers encoded events to a broker.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

type PublisherOptions struct {
	Producer string
}

// Publisher builds enveloped events and hands them to a Sender.
type Publisher struct {
	sender   Sender
	seq      Sequencer
	producer string
	now      func() time.Time
}

func NewPublisher(sender Sender, seq Sequencer, opts PublisherOptions) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = defaultProducer
	}
	return &Publisher{
		sender:   sender,
		seq:      seq,
		producer: producer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Close() error {
	return p.sender.Close()
}

// PublishCartCheckedOut announces a completed checkout. The correlation id is taken from ctx; the order id
// is the causation id.
func (p *Publisher) PublishCartCheckedOut(ctx context.Context, o order.Order) error {
	seq, err := p.seq.NextSequence(ctx, o.UserID)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	correlationID := CorrelationIDFrom(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	meta := EnvelopeMetadata{CorrelationID: correlationID, CausationID: o.ID}

	env := BuildCartCheckedOutEvent(o, meta, seq, p.producer, p.now())
	if err := env.Validate(EventTypeCartCheckedOut, 1); err != nil {
		return fmt.Errorf("invalid CartCheckedOut envelope: %w", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal CartCheckedOut envelope: %w", err)
	}

	return p.sender.Send(ctx, Message{
		RoutingKey: CartCheckedOutRoutingKey,
		Key:        env.PartitionKey,
		Body:       body,
		Headers: map[string]string{
			"eventName":     env.EventName,
			"eventId":       env.EventID,
			"correlationId": env.CorrelationID,
		},
	})
}
