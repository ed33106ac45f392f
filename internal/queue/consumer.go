package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
)

// MessageHandler processes one raw event body. A non-nil error rejects the
// message.
type MessageHandler func(body []byte) error

// BookingLog appends confirmed and cancelled orders to booking.log in a
// single-line, human-friendly format. It stands in for the customer
// notification mailer.
type BookingLog struct {
	path string
	mu   sync.Mutex
}

// NewBookingLog writes to dir/booking.log; dir is created on first write.
func NewBookingLog(dir string) *BookingLog {
	return &BookingLog{path: filepath.Join(dir, "booking.log")}
}

func (b *BookingLog) Path() string { return b.path }

// Handle decodes one event and appends its line. Events without a
// notification (order.created) are accepted and skipped.
func (b *BookingLog) Handle(body []byte) error {
	var ev OrderEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errs.Wrap(err, "unmarshal order event")
	}
	line, ok := FormatLine(ev)
	if !ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return errs.Wrap(err, "mkdir logs")
	}
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(err, "open booking log")
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return errs.Wrap(err, "write booking log")
	}
	return nil
}

// FormatLine renders the booking log line for ev.
func FormatLine(ev OrderEvent) (string, bool) {
	seats := "[" + strings.Join(ev.SeatLabels, ",") + "]"
	switch ev.Type {
	case EventOrderConfirmed:
		return fmt.Sprintf("[%s] Order confirmed | order_id=%s | booking_ref=%s | customer_id=%d | movie_id=%d | hall_id=%d | showtime=%q | seats=%s | total=%s | payment=%s | txn=%s\n",
			ev.OccurredAt, ev.OrderID, ev.BookingReference, ev.CustomerID, ev.MovieID, ev.HallID, ev.Showtime,
			seats, ev.Total, ev.PaymentMethod, ev.TransactionID), true
	case EventOrderCancelled:
		refund := ev.RefundAmount
		if refund == "" {
			refund = "0.00"
		}
		return fmt.Sprintf("[%s] Order cancelled | order_id=%s | customer_id=%d | movie_id=%d | hall_id=%d | showtime=%q | seats=%s | reason=%s | refund=%s\n",
			ev.OccurredAt, ev.OrderID, ev.CustomerID, ev.MovieID, ev.HallID, ev.Showtime,
			seats, ev.CancelReason, refund), true
	}
	return "", false
}

// ConsumeRabbit declares queue (durable) and feeds every delivery to
// handle until ctx is cancelled. Lost connections are re-dialled with
// exponential backoff capped at 30s.
func ConsumeRabbit(ctx context.Context, url, queue string, handle MessageHandler, log *slog.Logger) error {
	if queue == "" {
		queue = DefaultQueue
	}
	log = logger.Component(log, "booking-consumer")
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("failed to dial broker", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeRabbit(ctx, conn, queue, handle, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("consume loop ended; reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func consumeRabbit(ctx context.Context, conn *amqp.Connection, queue string, handle MessageHandler, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return errs.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return errs.Wrap(err, "queue declare")
	}
	msgs, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return errs.Wrap(err, "queue consume")
	}
	log.Info("consuming", "queue", queue)

	for d := range msgs {
		if err := handle(d.Body); err != nil {
			log.Error("handle message failed", "error", err, "message_id", d.MessageId)
			_ = d.Nack(false, false) // reject without requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errs.New("deliveries channel closed")
}

// ConsumeKafka reads topic as member of group and commits each message
// once handle accepted it. Rejected messages are logged and committed so
// a poison message cannot stall the partition.
func ConsumeKafka(ctx context.Context, brokers []string, group, topic string, handle MessageHandler, log *slog.Logger) error {
	if topic == "" {
		topic = DefaultTopic
	}
	log = logger.Component(log, "booking-consumer")
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer r.Close()
	log.Info("consuming", "topic", topic, "group", group)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errs.Wrap(err, "kafka fetch")
		}
		if err := handle(m.Value); err != nil {
			log.Error("handle message failed", "error", err, "partition", m.Partition, "offset", m.Offset)
		}
		if err := r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			log.Warn("commit failed", "error", err, "offset", m.Offset)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
