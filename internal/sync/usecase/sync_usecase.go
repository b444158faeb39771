package usecase

import (
	"context"
	"fmt"
	"log"

	gmailapi "google.golang.org/api/gmail/v1"

	acctrepo "mailpilot-backend/internal/account/repository"
	alertdomain "mailpilot-backend/internal/alert/domain"
	alertrepo "mailpilot-backend/internal/alert/repository"
	msgdomain "mailpilot-backend/internal/message/domain"
	msgrepo "mailpilot-backend/internal/message/repository"
	ruledomain "mailpilot-backend/internal/rule/domain"
	"mailpilot-backend/internal/rule/engine"
	rulerepo "mailpilot-backend/internal/rule/repository"
	"mailpilot-backend/pkg/gmail"
	"mailpilot-backend/pkg/queue"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// MailProvider is the slice of the provider API the sync engine needs
type MailProvider interface {
	ListChanges(ctx context.Context, accessToken, refreshToken, startHistoryID string, onTokenRefresh gmail.TokenUpdateFunc) (*gmail.ChangeBatch, error)
	GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh gmail.TokenUpdateFunc) (*gmailapi.Message, error)
}

// TokenBox encrypts and decrypts stored OAuth credentials
type TokenBox interface {
	Encrypt(plaintext string) ([]byte, error)
	Decrypt(ciphertext []byte) (string, error)
}

// RealtimePublisher pushes a payload to a user's live sessions
type RealtimePublisher interface {
	Publish(ctx context.Context, userID string, payload interface{}) error
}

// SyncUsecase drains the provider change log for one account and runs
// every new message through the rule pipeline exactly once.
type SyncUsecase struct {
	accountRepo   acctrepo.AccountRepository
	processedRepo msgrepo.ProcessedMessageRepository
	ruleRepo      rulerepo.RuleRepository
	alertRepo     alertrepo.AlertRepository
	provider      MailProvider
	box           TokenBox
	publisher     queue.JobPublisher
	realtime      RealtimePublisher

	locks *accountLocks
}

func NewSyncUsecase(
	accountRepo acctrepo.AccountRepository,
	processedRepo msgrepo.ProcessedMessageRepository,
	ruleRepo rulerepo.RuleRepository,
	alertRepo alertrepo.AlertRepository,
	provider MailProvider,
	box TokenBox,
	publisher queue.JobPublisher,
	realtime RealtimePublisher,
) *SyncUsecase {
	return &SyncUsecase{
		accountRepo:   accountRepo,
		processedRepo: processedRepo,
		ruleRepo:      ruleRepo,
		alertRepo:     alertRepo,
		provider:      provider,
		box:           box,
		publisher:     publisher,
		realtime:      realtime,
		locks:         newAccountLocks(),
	}
}

// ProcessNotification handles one change notification for a mailbox.
// Runs are serialized per account; concurrent notifications for the
// same address queue up behind each other. The durable cursor only
// advances after the whole batch succeeded, so a failed run is retried
// from the same position and the ledger suppresses the duplicates.
func (u *SyncUsecase) ProcessNotification(ctx context.Context, emailAddress, hintHistoryID string) error {
	release := u.locks.Acquire(emailAddress)
	defer release()

	account, err := u.accountRepo.FindByEmail(emailAddress)
	if err != nil {
		return fmt.Errorf("failed to look up account %s: %w", emailAddress, err)
	}
	if account == nil {
		// Stale watch for a disconnected mailbox; nothing to retry
		log.Printf("[Sync] No account for %s, dropping notification", emailAddress)
		return nil
	}

	accessToken, err := u.box.Decrypt(account.EncryptedAccessToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt access token for %s: %w", emailAddress, err)
	}
	refreshToken, err := u.box.Decrypt(account.EncryptedRefreshToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt refresh token for %s: %w", emailAddress, err)
	}

	// The durable cursor wins over the notification hint; the hint only
	// seeds a mailbox that has never synced
	cursor := account.LastHistoryID
	if cursor == "" {
		cursor = hintHistoryID
	}
	if cursor == "" {
		log.Printf("[Sync] No cursor for %s, waiting for the next watch renewal", emailAddress)
		return nil
	}

	onRefresh := u.tokenPersister(account.ID, emailAddress)

	batch, err := u.provider.ListChanges(ctx, accessToken, refreshToken, cursor, onRefresh)
	if err != nil {
		return fmt.Errorf("failed to list changes for %s from %s: %w", emailAddress, cursor, err)
	}

	rules, err := u.ruleRepo.FindActiveByUserID(account.ID)
	if err != nil {
		return fmt.Errorf("failed to load rules for %s: %w", emailAddress, err)
	}

	var fetchErrs int
	for _, messageID := range batch.AddedMessageIDs {
		if err := u.processMessage(ctx, account.ID, accessToken, refreshToken, messageID, rules, onRefresh); err != nil {
			log.Printf("[Sync] Failed to process message %s for %s: %v", messageID, emailAddress, err)
			fetchErrs++
		}
	}
	if fetchErrs > 0 {
		// Leave the cursor in place so the retry re-covers the batch;
		// already-processed messages are absorbed by the ledger
		return fmt.Errorf("%d of %d messages failed for %s", fetchErrs, len(batch.AddedMessageIDs), emailAddress)
	}

	next := batch.LatestHistoryID
	if next == "" {
		next = hintHistoryID
	}
	if next != "" {
		if err := u.accountRepo.AdvanceCursor(account.ID, next); err != nil {
			return fmt.Errorf("failed to advance cursor for %s: %w", emailAddress, err)
		}
	}

	log.Printf("[Sync] %s: %d new messages, cursor %s -> %s", emailAddress, len(batch.AddedMessageIDs), cursor, next)
	return nil
}

// processMessage fetches, parses and records one message, then runs
// the rule pipeline if this is the first time the message is seen
func (u *SyncUsecase) processMessage(ctx context.Context, userID, accessToken, refreshToken, messageID string, rules []ruledomain.Rule, onRefresh gmail.TokenUpdateFunc) error {
	raw, err := u.provider.GetMessage(ctx, accessToken, refreshToken, messageID, onRefresh)
	if err != nil {
		return err
	}

	parsed := gmail.ParseMessage(raw)

	inserted, err := u.processedRepo.Insert(msgdomain.NewProcessedMessage(uuid.New().String(), userID, parsed))
	if err != nil {
		return fmt.Errorf("ledger insert failed: %w", err)
	}
	if !inserted {
		// Seen before (overlapping batch or concurrent worker)
		return nil
	}

	u.emitRealtime(ctx, userID, parsed)

	for _, rule := range engine.Match(rules, parsed) {
		if err := u.raiseAlert(ctx, userID, rule, parsed); err != nil {
			log.Printf("[Sync] Failed to raise alert for rule %s on message %s: %v", rule.ID, messageID, err)
		}
	}

	return nil
}

func (u *SyncUsecase) raiseAlert(ctx context.Context, userID string, rule ruledomain.Rule, parsed *msgdomain.ParsedMessage) error {
	ruleID := rule.ID
	alert := &alertdomain.Alert{
		ID:        uuid.New().String(),
		UserID:    userID,
		MessageID: parsed.MessageID,
		RuleID:    &ruleID,
	}
	if err := u.alertRepo.Create(alert); err != nil {
		return err
	}

	from := parsed.FromName
	if from == "" {
		from = parsed.FromAddr
	}
	job := queue.NotifyJob{
		UserID: userID,
		Title:  fmt.Sprintf("Rule matched: %s", rule.Name),
		Body:   fmt.Sprintf("%s\nFrom: %s", parsed.Subject, from),
		Type:   "RULE_MATCH",
		Extra: map[string]string{
			"alert_id":   alert.ID,
			"message_id": parsed.MessageID,
			"rule_id":    rule.ID,
		},
	}
	if err := u.publisher.PublishNotifyJob(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

func (u *SyncUsecase) emitRealtime(ctx context.Context, userID string, parsed *msgdomain.ParsedMessage) {
	if u.realtime == nil {
		return
	}
	payload := map[string]interface{}{
		"type":       "new_message",
		"message_id": parsed.MessageID,
		"thread_id":  parsed.ThreadID,
		"subject":    parsed.Subject,
		"from":       parsed.FromAddr,
		"snippet":    parsed.Snippet,
	}
	if err := u.realtime.Publish(ctx, userID, payload); err != nil {
		// Realtime delivery is best effort, the alert record is durable
		log.Printf("[Sync] Realtime publish failed for user %s: %v", userID, err)
	}
}

// tokenPersister returns a callback that re-encrypts and stores rotated
// OAuth credentials
func (u *SyncUsecase) tokenPersister(accountID, emailAddress string) gmail.TokenUpdateFunc {
	return func(t *oauth2.Token) error {
		account, err := u.accountRepo.FindByID(accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return fmt.Errorf("account %s disappeared", accountID)
		}

		encrypted, err := u.box.Encrypt(t.AccessToken)
		if err != nil {
			return err
		}
		account.EncryptedAccessToken = encrypted
		account.TokenExpiry = t.Expiry

		if t.RefreshToken != "" {
			encryptedRefresh, err := u.box.Encrypt(t.RefreshToken)
			if err != nil {
				return err
			}
			account.EncryptedRefreshToken = encryptedRefresh
		}

		log.Printf("[Sync] Persisted refreshed token for %s", emailAddress)
		return u.accountRepo.Update(account)
	}
}
