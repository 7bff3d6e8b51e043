// Package publisher announces completed transactions on Kafka.
package publisher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/pos-checkout/internal/domain/checkout"
)

// EventCompleted is the event_type header of a completed transaction.
const EventCompleted = "transaction.completed"

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ checkout.Publisher = (*Publisher)(nil)

// Publisher writes one message per completed transaction, keyed by
// transaction id.
type Publisher struct {
	writer MessageWriter
}

// New returns a Publisher writing to topic on brokers.
func New(topic string, brokers ...string) *Publisher {
	return NewWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	})
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(w MessageWriter) *Publisher {
	return &Publisher{writer: w}
}

func (p *Publisher) PublishCompleted(ctx context.Context, tx checkout.Transaction) error {
	msg := kafka.Message{
		Key:   []byte(tx.ID),
		Value: Encode(tx),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish transaction %s", tx.ID)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Ping succeeds when any of brokers accepts a connection.
func Ping(ctx context.Context, brokers ...string) error {
	var (
		d    kafka.Dialer
		last error
	)
	for _, addr := range brokers {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			last = err
			continue
		}
		return conn.Close()
	}
	if last == nil {
		return errors.New("no brokers")
	}
	return errors.Wrap(last, "dial kafka")
}

// Encode renders the event payload for tx.
func Encode(tx checkout.Transaction) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("transaction_id", func(e *jx.Encoder) { e.Str(tx.ID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range tx.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("price", func(e *jx.Encoder) { e.Str(it.Price.StringFixed(2)) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { e.Str(tx.Subtotal.StringFixed(2)) })
		e.Field("discount", func(e *jx.Encoder) { e.Str(tx.Discount.StringFixed(2)) })
		e.Field("tax", func(e *jx.Encoder) { e.Str(tx.Tax.StringFixed(2)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(tx.Total.StringFixed(2)) })
		if tx.PromotionID != "" {
			e.Field("promotion_id", func(e *jx.Encoder) { e.Str(tx.PromotionID) })
		}
		if tx.BOGOProductID != "" {
			e.Field("bogo_product_id", func(e *jx.Encoder) { e.Str(tx.BOGOProductID) })
		}
		e.Field("method", func(e *jx.Encoder) { e.Str(string(tx.Method)) })
		if tx.Cashier != "" {
			e.Field("cashier", func(e *jx.Encoder) { e.Str(tx.Cashier) })
		}
		e.Field("completed_at", func(e *jx.Encoder) { e.Str(tx.CreatedAt.UTC().Format(time.RFC3339)) })
	})
	return e.Bytes()
}
