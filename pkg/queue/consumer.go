package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const attemptsHeader = "x-attempts"

// HandlerFunc processes one job payload. A returned error schedules a
// redelivery with exponential backoff until the attempt budget runs out.
type HandlerFunc func(ctx context.Context, body []byte) error

type ConsumerOptions struct {
	Queue       string
	RoutingKey  string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Consumer consumes jobs from one queue with at-least-once semantics
type Consumer struct {
	client  *Client
	opts    ConsumerOptions
	handler HandlerFunc
}

func NewConsumer(client *Client, opts ConsumerOptions, handler HandlerFunc) *Consumer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 10 * time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 5 * time.Minute
	}
	return &Consumer{client: client, opts: opts, handler: handler}
}

// Consume starts consuming in a background goroutine until ctx is done
func (c *Consumer) Consume(ctx context.Context) error {
	ch := c.client.Channel()

	// Process one message at a time per worker
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.opts.Queue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (we ack manually)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on '%s': %w", c.opts.Queue, err)
	}

	log.Printf("[AMQP] Consuming queue %s", c.opts.Queue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Printf("[AMQP] Consumer for %s stopped", c.opts.Queue)
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Printf("[AMQP] Message channel for %s closed", c.opts.Queue)
					return
				}
				c.handleDelivery(ctx, &msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery *amqp.Delivery) {
	attempt := attemptFromHeaders(delivery.Headers)

	err := c.handler(ctx, delivery.Body)
	if err == nil {
		if ackErr := delivery.Ack(false); ackErr != nil {
			log.Printf("[AMQP] Failed to ack message on %s: %v", c.opts.Queue, ackErr)
		}
		return
	}

	next := attempt + 1
	if next >= c.opts.MaxAttempts {
		// Attempt budget exhausted: surface to operators, do not requeue
		log.Printf("[AMQP] Job on %s permanently failed after %d attempts: %v", c.opts.Queue, next, err)
		_ = delivery.Ack(false)
		return
	}

	delay := backoffDelay(attempt, c.opts.BaseDelay, c.opts.MaxDelay)
	log.Printf("[AMQP] Job on %s failed (attempt %d/%d), retrying in %s: %v",
		c.opts.Queue, next, c.opts.MaxAttempts, delay, err)

	select {
	case <-ctx.Done():
		// Shutting down: leave the message unacked so the broker redelivers
		_ = delivery.Nack(false, true)
		return
	case <-time.After(delay):
	}

	if pubErr := c.republish(ctx, delivery, next); pubErr != nil {
		log.Printf("[AMQP] Failed to republish on %s, nacking for broker redelivery: %v", c.opts.Queue, pubErr)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

func (c *Consumer) republish(ctx context.Context, delivery *amqp.Delivery, attempt int) error {
	headers := amqp.Table{}
	for k, v := range delivery.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int32(attempt)

	return c.client.Channel().PublishWithContext(
		ctx,
		PipelineExchange,
		c.opts.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         delivery.Body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)
}

func attemptFromHeaders(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// backoffDelay doubles the base delay per attempt, capped at max
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
