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

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/model"
)

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
	failNext  int
	closed    bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.failNext > 0 {
		f.failNext--
		return errors.New("channel closed")
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher(channels ...*fakeChannel) (*Publisher, *int) {
	opened := 0
	p := NewPublisher("")
	p.open = func(context.Context, string) (channel, error) {
		if opened >= len(channels) {
			return nil, errors.New("dial refused")
		}
		ch := channels[opened]
		opened++
		return ch, nil
	}
	return p, &opened
}

func sampleEvent() BookingEvent {
	ref := "pay_1"
	b := &model.Booking{
		ID: 9, UserID: 7, ShowtimeID: 42, SeatIDs: []string{"A1", "A2"},
		Status: model.StatusConfirmed, AmountCents: 2400, PaymentRef: &ref,
	}
	return NewBookingEvent(b, time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
}

func TestNewBookingEvent(t *testing.T) {
	evt := sampleEvent()
	assert.Equal(t, QueueBookingConfirmed, evt.Type)
	assert.Equal(t, "pay_1", evt.PaymentRef)
	assert.Equal(t, []string{"A1", "A2"}, evt.Seats)

	reason := model.ReasonTimeout
	expired := NewBookingEvent(&model.Booking{ID: 1, Status: model.StatusExpired, FailureReason: &reason}, time.Now())
	assert.Equal(t, QueueBookingExpired, expired.Type)
	assert.Equal(t, model.ReasonTimeout, expired.Reason)

	failed := NewBookingEvent(&model.Booking{ID: 1, Status: model.StatusFailed}, time.Now())
	assert.Equal(t, QueueBookingFailed, failed.Type)
}

func TestPublisherPublishes(t *testing.T) {
	ch := &fakeChannel{}
	p, opened := newTestPublisher(ch)

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.NoError(t, p.Publish(context.Background(), sampleEvent()))

	assert.Equal(t, 1, *opened, "connection is reused")
	assert.Equal(t, Queues, ch.declared)
	require.Len(t, ch.published, 2)
	assert.Equal(t, []string{QueueBookingConfirmed, QueueBookingConfirmed}, ch.keys)

	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.NotEmpty(t, msg.MessageId)
	assert.NotEqual(t, msg.MessageId, ch.published[1].MessageId)

	var got BookingEvent
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, uint64(9), got.BookingID)
	assert.Equal(t, uint32(2400), got.AmountCents)
}

func TestPublisherRedialsAfterFailure(t *testing.T) {
	broken := &fakeChannel{failNext: 1}
	healthy := &fakeChannel{}
	p, opened := newTestPublisher(broken, healthy)

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, 2, *opened)
	assert.True(t, broken.closed)
	assert.Len(t, healthy.published, 1)
}

func TestPublisherGivesUp(t *testing.T) {
	p, _ := newTestPublisher()
	err := p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial refused")
}

func TestPublisherBacksOffAfterDialFailure(t *testing.T) {
	healthy := &fakeChannel{}
	p, opened := newTestPublisher()
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	err := p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Equal(t, 0, *opened)

	// Within the backoff the broker is not dialled again.
	dials := 0
	p.open = func(context.Context, string) (channel, error) {
		dials++
		return healthy, nil
	}
	err = p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Contains(t, err.Error(), "dial refused")
	assert.Zero(t, dials)

	now = now.Add(redialAfter)
	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, 1, dials)
	assert.Len(t, healthy.published, 1)
}

func TestPublisherHonoursCancelledContext(t *testing.T) {
	p, opened := newTestPublisher(&fakeChannel{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, sampleEvent())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, *opened)
}

func TestPublisherRequiresType(t *testing.T) {
	p, _ := newTestPublisher(&fakeChannel{})
	assert.Error(t, p.Publish(context.Background(), BookingEvent{BookingID: 1}))
}

func TestConsumerHandle(t *testing.T) {
	var got BookingEvent
	c := NewConsumer("", func(_ context.Context, evt BookingEvent) error {
		got = evt
		return nil
	})
	assert.Equal(t, Queues, c.queues)

	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, c.handle(context.Background(), body))
	assert.Equal(t, uint64(9), got.BookingID)

	assert.Error(t, c.handle(context.Background(), []byte("{not json")))
}

func TestNotificationLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	h := NotificationLog(dir)

	require.NoError(t, h(context.Background(), sampleEvent()))
	refund := sampleEvent()
	refund.Type = QueueBookingFailed
	refund.Reason = model.ReasonSeatConflict
	refund.RefundRequired = true
	require.NoError(t, h(context.Background(), refund))

	data, err := os.ReadFile(filepath.Join(dir, "booking.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[2026-03-14T18:00:00Z] Booking confirmed | booking_id=9 | user_id=7 | showtime_id=42 | total=2400 cents | seats=[A1,A2]", lines[0])
	assert.Contains(t, lines[1], "Booking failed")
	assert.Contains(t, lines[1], "reason=seat_conflict")
	assert.Contains(t, lines[1], "refund_required payment_ref=pay_1")
}
