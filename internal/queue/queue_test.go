package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

var at = time.Date(2025, 6, 1, 10, 3, 0, 0, time.UTC)

func confirmedOrder() *model.Order {
	paid := at
	return &model.Order{
		ID:               "o-1",
		CustomerID:       42,
		Session:          model.SessionKey{MovieID: 5, HallID: 2, Showtime: "2025-06-01 19:30"},
		Seats:            model.MustSeatSet(9, 10),
		Pricing:          model.PriceBreakdown{Total: decimal.RequireFromString("24.2")},
		Status:           model.OrderConfirmed,
		CreatedAt:        at.Add(-3 * time.Minute),
		PaymentMethod:    model.PayCard,
		TransactionID:    "TXN-1",
		PaidAt:           &paid,
		BookingReference: "BK-20250601-0042",
	}
}

func TestNewOrderEvent(t *testing.T) {
	ev := NewOrderEvent(EventOrderConfirmed, confirmedOrder(), at)
	assert.Equal(t, "24.20", ev.Total)
	assert.Equal(t, []int{9, 10}, ev.SeatIDs)
	assert.Equal(t, "2025-06-01T10:03:00Z", ev.OccurredAt)
	assert.Empty(t, ev.RefundAmount, "refund only reported on cancellation")
	assert.Empty(t, ev.PromoCode)
}

func TestFormatLine(t *testing.T) {
	o := confirmedOrder()
	line, ok := FormatLine(NewOrderEvent(EventOrderConfirmed, o, at))
	require.True(t, ok)
	labels := strings.Join(o.Seats.Labels(), ",")
	assert.Equal(t,
		`[2025-06-01T10:03:00Z] Order confirmed | order_id=o-1 | booking_ref=BK-20250601-0042 | customer_id=42 | movie_id=5 | hall_id=2 | showtime="2025-06-01 19:30" | seats=[`+labels+`] | total=24.20 | payment=CARD | txn=TXN-1`+"\n",
		line)

	o.Status = model.OrderCancelled
	o.CancelReason = model.CancelByCustomer
	o.RefundAmount = decimal.RequireFromString("24.2")
	line, ok = FormatLine(NewOrderEvent(EventOrderCancelled, o, at))
	require.True(t, ok)
	assert.Contains(t, line, "Order cancelled")
	assert.Contains(t, line, "reason=customer | refund=24.20")

	_, ok = FormatLine(NewOrderEvent(EventOrderCreated, o, at))
	assert.False(t, ok)
}

func TestBookingLog_Handle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	bl := NewBookingLog(dir)

	for _, typ := range []string{EventOrderCreated, EventOrderConfirmed} {
		body, err := json.Marshal(NewOrderEvent(typ, confirmedOrder(), at))
		require.NoError(t, err)
		require.NoError(t, bl.Handle(body))
	}

	data, err := os.ReadFile(bl.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, "order.created is not logged")
	assert.Contains(t, lines[0], "booking_ref=BK-20250601-0042")

	assert.Error(t, bl.Handle([]byte("{not json")))
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w, log: logger.Discard()}

	require.NoError(t, p.Publish(context.Background(), NewOrderEvent(EventOrderConfirmed, confirmedOrder(), at)))
	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "o-1", string(m.Key))
	require.Len(t, m.Headers, 1)
	assert.Equal(t, EventOrderConfirmed, string(m.Headers[0].Value))

	var ev OrderEvent
	require.NoError(t, json.Unmarshal(m.Value, &ev))
	assert.Equal(t, "BK-20250601-0042", ev.BookingReference)

	w.err = errors.New("leader not available")
	assert.Error(t, p.Publish(context.Background(), ev))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestToPublishing(t *testing.T) {
	msg, err := toPublishing(NewOrderEvent(EventOrderCancelled, confirmedOrder(), at), at)
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, EventOrderCancelled, msg.Type)
	assert.Equal(t, "order.cancelled:o-1", msg.MessageId)
	assert.EqualValues(t, 2, msg.DeliveryMode)
}
