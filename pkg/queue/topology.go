package queue

import (
	"fmt"
)

const (
	PipelineExchange = "mailpilot"

	SyncQueue   = "mailpilot.sync"
	NotifyQueue = "mailpilot.notify"

	RoutingKeySyncRequested   = "sync.requested"
	RoutingKeyNotifyRequested = "notify.requested"
)

// SetupTopology declares the pipeline exchange, the sync and notify
// queues, and their bindings. Safe to call on every startup.
func SetupTopology(client *Client) error {
	ch := client.Channel()

	if err := ch.ExchangeDeclare(
		PipelineExchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange '%s': %w", PipelineExchange, err)
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{SyncQueue, RoutingKeySyncRequested},
		{NotifyQueue, RoutingKeyNotifyRequested},
	}

	for _, b := range bindings {
		if _, err := ch.QueueDeclare(
			b.queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("failed to declare queue '%s': %w", b.queue, err)
		}

		if err := ch.QueueBind(b.queue, b.routingKey, PipelineExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue '%s': %w", b.queue, err)
		}
	}

	return nil
}
