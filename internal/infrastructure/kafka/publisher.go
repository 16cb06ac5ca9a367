package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	domoutbox "github.com/Zhima-Mochi/minishop-inventory/internal/domain/outbox"
	domshipping "github.com/Zhima-Mochi/minishop-inventory/internal/domain/shipping"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
	"github.com/Zhima-Mochi/minishop-inventory/internal/observability/logctx"
)

const (
	HeaderEventName = "event-name"

	defaultBatchTimeout = 10 * time.Millisecond
	defaultBatchSize    = 100
)

var ErrNoBrokers = errors.New("kafka: no brokers configured")

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends outbox events to a single Kafka topic as JSON.
type Publisher struct {
	writer     MessageWriter
	propagator propagation.TextMapPropagator
	log        observability.Logger
}

var _ domoutbox.Publisher = (*Publisher)(nil)

// NewWriter builds a batching writer for topic.
func NewWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: defaultBatchTimeout,
		BatchSize:    defaultBatchSize,
	}, nil
}

func NewPublisher(w MessageWriter, tel observability.Observability) *Publisher {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Publisher{
		writer:     w,
		propagator: otel.GetTextMapPropagator(),
		log:        tel.Logger().With(observability.F("component", "kafka_publisher")),
	}
}

func (p *Publisher) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	msg, err := p.message(ctx, e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", e.EventName(), err)
	}
	logctx.FromOr(ctx, p.log).Debug("event_published",
		observability.F("event", e.EventName()),
		observability.F("key", string(msg.Key)),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) message(ctx context.Context, e domoutbox.Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode %s: %w", e.EventName(), err)
	}
	carrier := headerCarrier{{Key: HeaderEventName, Value: []byte(e.EventName())}}
	p.propagator.Inject(ctx, &carrier)
	return kafka.Message{
		Key:     []byte(messageKey(e)),
		Value:   value,
		Headers: carrier,
	}, nil
}

// messageKey keeps events of one source on one partition.
func messageKey(e domoutbox.Event) string {
	switch evt := e.(type) {
	case domshipping.ShipmentAggregatedEvent:
		return evt.SourceCode
	case *domshipping.ShipmentAggregatedEvent:
		return evt.SourceCode
	default:
		return e.EventName()
	}
}

// headerCarrier adapts Kafka headers to propagation.TextMapCarrier.
type headerCarrier []kafka.Header

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}
