package dispatcher

import (
	"context"
	"log"
	"sync"

	"mailpilot-backend/internal/notification/domain"
	"mailpilot-backend/internal/notification/repository"
	"mailpilot-backend/pkg/push"
)

// ChatSender posts a formatted message to a chat webhook URL
type ChatSender interface {
	Send(ctx context.Context, webhookURL, title, body, eventType string) error
}

// Decryptor opens the encrypted-at-rest webhook URL
type Decryptor interface {
	Decrypt(ciphertext []byte) (string, error)
}

// Dispatcher fans one notification event out to every delivery target
// a user has registered. Every target's outcome is independent; one
// failure never aborts the siblings.
type Dispatcher struct {
	deviceRepo repository.DeviceTokenRepository
	chatRepo   repository.ChatConfigRepository
	senders    map[string]push.Sender // keyed by platform
	chat       ChatSender
	box        Decryptor
}

func NewDispatcher(
	deviceRepo repository.DeviceTokenRepository,
	chatRepo repository.ChatConfigRepository,
	senders map[string]push.Sender,
	chat ChatSender,
	box Decryptor,
) *Dispatcher {
	return &Dispatcher{
		deviceRepo: deviceRepo,
		chatRepo:   chatRepo,
		senders:    senders,
		chat:       chat,
		box:        box,
	}
}

// Dispatch sends the event to all of the user's push targets and, when
// configured and allowed by the type filter, the chat webhook. The
// returned error is only for failures before any delivery was
// attempted (so the job layer can retry without double-sending risk
// beyond at-least-once semantics).
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, event domain.Event) (*domain.DispatchResult, error) {
	result := &domain.DispatchResult{}

	data := map[string]string{"type": event.Type}
	for k, v := range event.Extra {
		data[k] = v
	}

	devices, err := d.deviceRepo.GetTokensByUserID(userID)
	if err != nil {
		return nil, err
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, device := range devices {
		wg.Add(1)
		go func(device domain.DeviceToken) {
			defer wg.Done()

			ok := d.sendPush(ctx, device, event.Title, event.Body, data)

			mu.Lock()
			if ok {
				result.PushSent++
			} else {
				result.PushFailed++
			}
			mu.Unlock()
		}(device)
	}
	wg.Wait()

	d.sendChat(ctx, userID, event, result)

	log.Printf("[Dispatch] user=%s type=%s push_sent=%d push_failed=%d chat=%v",
		userID, event.Type, result.PushSent, result.PushFailed, formatChat(result.ChatSent))

	return result, nil
}

func (d *Dispatcher) sendPush(ctx context.Context, device domain.DeviceToken, title, body string, data map[string]string) bool {
	sender, ok := d.senders[device.Platform]
	if !ok || sender == nil {
		log.Printf("[Dispatch] No sender for platform %q (device %s)", device.Platform, device.DeviceID)
		return false
	}

	if err := sender.Send(ctx, device.Token, title, body, data); err != nil {
		log.Printf("[Dispatch] Push to %s device %s failed: %v", device.Platform, device.DeviceID, err)
		return false
	}

	if err := d.deviceRepo.TouchLastUsed(device.Token); err != nil {
		log.Printf("[Dispatch] Failed to update last_used for device %s: %v", device.DeviceID, err)
	}
	return true
}

// sendChat records a tri-state outcome: nil when the webhook did not
// apply, true/false for an attempted delivery. Nothing raised here may
// escape and disturb push delivery.
func (d *Dispatcher) sendChat(ctx context.Context, userID string, event domain.Event, result *domain.DispatchResult) {
	config, err := d.chatRepo.GetByUserID(userID)
	if err != nil {
		log.Printf("[Dispatch] Failed to load chat config for user %s: %v", userID, err)
		return
	}
	if config == nil || !config.IsEnabled {
		return
	}
	if !config.EnabledTypes.Allows(event.Type) {
		return
	}

	failed := false
	webhookURL, err := d.box.Decrypt(config.EncryptedWebhookURL)
	if err != nil {
		log.Printf("[Dispatch] Failed to decrypt chat webhook URL for user %s: %v", userID, err)
		result.ChatSent = &failed
		return
	}

	if err := d.chat.Send(ctx, webhookURL, event.Title, event.Body, event.Type); err != nil {
		log.Printf("[Dispatch] Chat delivery for user %s failed: %v", userID, err)
		result.ChatSent = &failed
		return
	}

	sent := true
	result.ChatSent = &sent
}

func formatChat(sent *bool) interface{} {
	if sent == nil {
		return "n/a"
	}
	return *sent
}
