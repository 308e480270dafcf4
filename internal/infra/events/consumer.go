// Package events consumes wallet transaction change notifications from AMQP
// and turns them into insights cache invalidations.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/port"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Message is published whenever a customer's transactions change.
type Message struct {
	CustomerID string `json:"customerId"`
	Version    int64  `json:"version"`
}

// ParseMessage decodes and validates a message body.
func ParseMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if msg.CustomerID == "" {
		return nil, errors.New("message has no customerId")
	}
	return &msg, nil
}

// Handler processes one message. A returned error requeues the delivery.
type Handler func(ctx context.Context, msg *Message) error

// InvalidateHandler drops cached insights for the message's customer.
func InvalidateHandler(inv port.Invalidator) Handler {
	return func(_ context.Context, msg *Message) error {
		inv.Invalidate(msg.CustomerID)
		return nil
	}
}

// Config names the broker topology.
type Config struct {
	URL      string
	Exchange string
	Queue    string
}

// Consumer reads change messages from a durable queue bound to a direct
// exchange, reconnecting with backoff when the broker goes away.
type Consumer struct {
	cfg     Config
	handler Handler
	logger  *zap.Logger
}

// NewConsumer creates a Consumer. Call Run to start it.
func NewConsumer(cfg Config, handler Handler, logger *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, handler: handler, logger: logger}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := Backoff(attempt)
		c.logger.Warn("events: consumer stopped, reconnecting",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := c.setup(ch); err != nil {
		return err
	}

	deliveries, err := ch.Consume(
		c.cfg.Queue, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("events: consuming",
		zap.String("exchange", c.cfg.Exchange),
		zap.String("queue", c.cfg.Queue),
	)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			return fmt.Errorf("connection closed: %v", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.HandleDelivery(ctx, d)
		}
	}
}

func (c *Consumer) setup(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// Routing key equals the queue name on the direct exchange.
	if err := ch.QueueBind(c.cfg.Queue, c.cfg.Queue, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// HandleDelivery runs the handler for one delivery and settles it: malformed
// bodies are dropped, handler failures are requeued.
func (c *Consumer) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	msg, err := ParseMessage(d.Body)
	if err != nil {
		c.logger.Error("events: malformed message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := c.handler(ctx, msg); err != nil {
		c.logger.Error("events: handler failed",
			zap.String("customer_id", msg.CustomerID),
			zap.Int64("version", msg.Version),
			zap.Error(err),
		)
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
	c.logger.Debug("events: processed",
		zap.String("customer_id", msg.CustomerID),
		zap.Int64("version", msg.Version),
	)
}

// Backoff returns the reconnect delay for a zero-based attempt: 1s doubling,
// capped at 30s.
func Backoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}
