package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Handler processes one booking event.  Returning an error rejects the
// message without requeueing it.
type Handler func(ctx context.Context, evt BookingEvent) error

// Consumer reads booking events from the lifecycle queues and hands
// them to a handler.  It reconnects with exponential backoff until its
// context is cancelled.
type Consumer struct {
	url     string
	queues  []string
	handler Handler
}

// NewConsumer builds a consumer for queues.  With no queues it consumes
// every lifecycle queue.
func NewConsumer(url string, handler Handler, queues ...string) *Consumer {
	if url == "" {
		url = DefaultURL
	}
	if len(queues) == 0 {
		queues = Queues
	}
	return &Consumer{url: url, queues: queues, handler: handler}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("booking-consumer: failed to dial broker")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("booking-consumer: consume loop ended, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("booking-consumer: set QoS failed")
	}

	deliveries := make(chan amqp.Delivery)
	var wg sync.WaitGroup
	for _, q := range c.queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range msgs {
				select {
				case deliveries <- d:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	closed := make(chan struct{})
	go func() {
		wg.Wait()
		close(closed)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return errors.New("deliveries channel closed")
		case d := <-deliveries:
			if err := c.handle(ctx, d.Body); err != nil {
				log.Error().Err(err).Str("queue", d.RoutingKey).Msg("booking-consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var evt BookingEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return c.handler(ctx, evt)
}

// NotificationLog returns a handler that appends one line per event to
// <dir>/booking.log.  It stands in for the user notification channel.
func NotificationLog(dir string) Handler {
	var mu sync.Mutex
	return func(_ context.Context, evt BookingEvent) error {
		mu.Lock()
		defer mu.Unlock()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir logs: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		if _, err := f.WriteString(FormatNotification(evt)); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
		return nil
	}
}

// FormatNotification renders evt as a single human-readable line.
func FormatNotification(evt BookingEvent) string {
	var what string
	switch evt.Type {
	case QueueBookingConfirmed:
		what = "Booking confirmed"
	case QueueBookingExpired:
		what = "Booking expired"
	default:
		what = "Booking failed"
	}
	line := fmt.Sprintf("[%s] %s | booking_id=%d | user_id=%d | showtime_id=%d | total=%d cents | seats=[%s]",
		evt.OccurredAt.UTC().Format(time.RFC3339), what, evt.BookingID, evt.UserID, evt.ShowtimeID,
		evt.AmountCents, strings.Join(evt.Seats, ","))
	if evt.Reason != "" {
		line += " | reason=" + evt.Reason
	}
	if evt.RefundRequired {
		line += fmt.Sprintf(" | refund_required payment_ref=%s", evt.PaymentRef)
	}
	return line + "\n"
}
