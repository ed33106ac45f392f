package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
)

// DefaultTopic receives every order event when Kafka is the sink.
const DefaultTopic = "booking.orders"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order id, so all events of one
// order land on the same partition in order.
type KafkaPublisher struct {
	w   messageWriter
	log *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		log: logger.Component(log, "kafka-publisher"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	msg, err := toKafkaMessage(ev, time.Now())
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errs.Wrapf(err, "kafka publish %s", ev.Type)
	}
	p.log.Debug("event published", "type", ev.Type, "order_id", ev.OrderID)
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func toKafkaMessage(ev OrderEvent, now time.Time) (kafka.Message, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, errs.Wrap(err, "marshal order event")
	}
	return kafka.Message{
		Key:     []byte(ev.OrderID),
		Value:   body,
		Time:    now.UTC(),
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(ev.Type)}},
	}, nil
}
