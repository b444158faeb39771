package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"mailpilot-backend/internal/notification/dispatcher"
	notifdomain "mailpilot-backend/internal/notification/domain"
	syncUsecase "mailpilot-backend/internal/sync/usecase"
	"mailpilot-backend/pkg/queue"
)

// Worker binds the queue consumers to the sync engine and the
// notification dispatcher
type Worker struct {
	client     *queue.Client
	syncUc     *syncUsecase.SyncUsecase
	dispatcher *dispatcher.Dispatcher
}

func NewWorker(client *queue.Client, syncUc *syncUsecase.SyncUsecase, d *dispatcher.Dispatcher) *Worker {
	return &Worker{client: client, syncUc: syncUc, dispatcher: d}
}

// Start registers both consumers. They run until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	syncConsumer := queue.NewConsumer(w.client, queue.ConsumerOptions{
		Queue:       queue.SyncQueue,
		RoutingKey:  queue.RoutingKeySyncRequested,
		MaxAttempts: 5,
		BaseDelay:   10 * time.Second,
		MaxDelay:    5 * time.Minute,
	}, w.handleSyncJob)
	if err := syncConsumer.Consume(ctx); err != nil {
		return fmt.Errorf("failed to start sync consumer: %w", err)
	}

	notifyConsumer := queue.NewConsumer(w.client, queue.ConsumerOptions{
		Queue:       queue.NotifyQueue,
		RoutingKey:  queue.RoutingKeyNotifyRequested,
		MaxAttempts: 5,
		BaseDelay:   5 * time.Second,
		MaxDelay:    2 * time.Minute,
	}, w.handleNotifyJob)
	if err := notifyConsumer.Consume(ctx); err != nil {
		return fmt.Errorf("failed to start notify consumer: %w", err)
	}

	return nil
}

func (w *Worker) handleSyncJob(ctx context.Context, body []byte) error {
	var job queue.SyncJob
	if err := json.Unmarshal(body, &job); err != nil {
		// Undecodable payloads can never succeed; ack instead of retrying
		log.Printf("[Worker] Dropping undecodable sync job: %v", err)
		return nil
	}
	if job.EmailAddress == "" {
		return nil
	}
	return w.syncUc.ProcessNotification(ctx, job.EmailAddress, job.HistoryID)
}

func (w *Worker) handleNotifyJob(ctx context.Context, body []byte) error {
	var job queue.NotifyJob
	if err := json.Unmarshal(body, &job); err != nil {
		log.Printf("[Worker] Dropping undecodable notify job: %v", err)
		return nil
	}
	if job.UserID == "" {
		return nil
	}

	event := notifdomain.Event{
		Title: job.Title,
		Body:  job.Body,
		Type:  job.Type,
		Extra: job.Extra,
	}
	_, err := w.dispatcher.Dispatch(ctx, job.UserID, event)
	return err
}
