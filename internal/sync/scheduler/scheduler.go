package scheduler

import (
	"context"
	"log"
	"time"

	"golang.org/x/oauth2"

	acctrepo "mailpilot-backend/internal/account/repository"
	notifrepo "mailpilot-backend/internal/notification/repository"
	"mailpilot-backend/pkg/gmail"
	"mailpilot-backend/pkg/queue"
)

// MailboxWatcher re-arms provider push notifications for one mailbox
type MailboxWatcher interface {
	Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh gmail.TokenUpdateFunc) (string, error)
}

// TokenBox decrypts stored OAuth credentials
type TokenBox interface {
	Encrypt(plaintext string) ([]byte, error)
	Decrypt(ciphertext []byte) (string, error)
}

// Scheduler owns the periodic maintenance loops: watch renewal (the
// provider expires watches after roughly seven days) and stale device
// token cleanup.
type Scheduler struct {
	accountRepo acctrepo.AccountRepository
	deviceRepo  notifrepo.DeviceTokenRepository
	watcher     MailboxWatcher
	box         TokenBox
	publisher   queue.JobPublisher

	watchTopic        string
	renewInterval     time.Duration
	deviceTokenMaxAge time.Duration
}

func NewScheduler(
	accountRepo acctrepo.AccountRepository,
	deviceRepo notifrepo.DeviceTokenRepository,
	watcher MailboxWatcher,
	box TokenBox,
	publisher queue.JobPublisher,
	watchTopic string,
	renewInterval time.Duration,
	deviceTokenMaxAge time.Duration,
) *Scheduler {
	return &Scheduler{
		accountRepo:       accountRepo,
		deviceRepo:        deviceRepo,
		watcher:           watcher,
		box:               box,
		publisher:         publisher,
		watchTopic:        watchTopic,
		renewInterval:     renewInterval,
		deviceTokenMaxAge: deviceTokenMaxAge,
	}
}

// Run blocks until ctx is done. The first renewal happens immediately
// so a restarted instance re-arms every watch without waiting a full
// interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.renewAll(ctx)
	s.cleanupDeviceTokens()

	renewTicker := time.NewTicker(s.renewInterval)
	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer renewTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Scheduler] Stopped")
			return
		case <-renewTicker.C:
			s.renewAll(ctx)
		case <-cleanupTicker.C:
			s.cleanupDeviceTokens()
		}
	}
}

// renewAll re-arms the watch for every connected account and enqueues
// a catch-up sync from the history cursor the watch call returned
func (s *Scheduler) renewAll(ctx context.Context) {
	accounts, err := s.accountRepo.FindAll()
	if err != nil {
		log.Printf("[Scheduler] Failed to list accounts for watch renewal: %v", err)
		return
	}

	for _, account := range accounts {
		if err := s.renewOne(ctx, account.ID, account.Email); err != nil {
			log.Printf("[Scheduler] Watch renewal failed for %s: %v", account.Email, err)
		}
	}
	log.Printf("[Scheduler] Watch renewal pass finished for %d accounts", len(accounts))
}

func (s *Scheduler) renewOne(ctx context.Context, accountID, email string) error {
	account, err := s.accountRepo.FindByID(accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	accessToken, err := s.box.Decrypt(account.EncryptedAccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := s.box.Decrypt(account.EncryptedRefreshToken)
	if err != nil {
		return err
	}

	historyID, err := s.watcher.Watch(ctx, accessToken, refreshToken, s.watchTopic, s.tokenPersister(accountID, email))
	if err != nil {
		return err
	}

	// Catch up anything missed while the watch was lapsed
	return s.publisher.PublishSyncJob(ctx, queue.SyncJob{
		EmailAddress: email,
		HistoryID:    historyID,
	})
}

func (s *Scheduler) cleanupDeviceTokens() {
	cutoff := time.Now().Add(-s.deviceTokenMaxAge)
	removed, err := s.deviceRepo.DeleteStale(cutoff)
	if err != nil {
		log.Printf("[Scheduler] Device token cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[Scheduler] Removed %d stale device tokens", removed)
	}
}

func (s *Scheduler) tokenPersister(accountID, email string) gmail.TokenUpdateFunc {
	return func(t *oauth2.Token) error {
		account, err := s.accountRepo.FindByID(accountID)
		if err != nil || account == nil {
			return err
		}

		encrypted, err := s.box.Encrypt(t.AccessToken)
		if err != nil {
			return err
		}
		account.EncryptedAccessToken = encrypted
		account.TokenExpiry = t.Expiry

		if t.RefreshToken != "" {
			encryptedRefresh, err := s.box.Encrypt(t.RefreshToken)
			if err != nil {
				return err
			}
			account.EncryptedRefreshToken = encryptedRefresh
		}

		log.Printf("[Scheduler] Persisted refreshed token for %s", email)
		return s.accountRepo.Update(account)
	}
}
