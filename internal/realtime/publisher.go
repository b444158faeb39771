package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// envelope is the broadcast frame carried over the Pub/Sub topic so
// every API instance can route it to its local sessions
type envelope struct {
	UserID  string      `json:"user_id"`
	Payload interface{} `json:"payload"`
}

// Publisher fans a user-scoped payload out to all API instances via a
// Pub/Sub topic
type Publisher struct {
	topic *pubsub.Topic
}

func NewPublisher(client *pubsub.Client, topicName string) *Publisher {
	return &Publisher{topic: client.Topic(topicName)}
}

func (p *Publisher) Publish(ctx context.Context, userID string, payload interface{}) error {
	body, err := json.Marshal(envelope{UserID: userID, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal realtime envelope: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: body})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish realtime message: %w", err)
	}
	return nil
}

// Stop flushes pending publishes
func (p *Publisher) Stop() {
	p.topic.Stop()
}
