package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobPublisher is the producer-side contract used by the webhook
// receiver, the sync engine and the scheduler
type JobPublisher interface {
	PublishSyncJob(ctx context.Context, job SyncJob) error
	PublishNotifyJob(ctx context.Context, job NotifyJob) error
}

type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishSyncJob(ctx context.Context, job SyncJob) error {
	return p.publish(ctx, RoutingKeySyncRequested, job, nil)
}

func (p *Publisher) PublishNotifyJob(ctx context.Context, job NotifyJob) error {
	return p.publish(ctx, RoutingKeyNotifyRequested, job, nil)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, message interface{}, headers amqp.Table) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	err = p.client.Channel().PublishWithContext(
		ctx,
		PipelineExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to '%s': %w", routingKey, err)
	}

	return nil
}
