package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acctdomain "mailpilot-backend/internal/account/domain"
	notifdomain "mailpilot-backend/internal/notification/domain"
	"mailpilot-backend/pkg/gmail"
	"mailpilot-backend/pkg/queue"
)

type fakeAccountRepo struct {
	accounts []acctdomain.Account
	listErr  error
}

func (f *fakeAccountRepo) FindByEmail(email string) (*acctdomain.Account, error) { return nil, nil }
func (f *fakeAccountRepo) FindByID(id string) (*acctdomain.Account, error) {
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			return &f.accounts[i], nil
		}
	}
	return nil, nil
}
func (f *fakeAccountRepo) FindAll() ([]acctdomain.Account, error) {
	return f.accounts, f.listErr
}
func (f *fakeAccountRepo) Update(account *acctdomain.Account) error        { return nil }
func (f *fakeAccountRepo) AdvanceCursor(accountID, historyID string) error { return nil }

type fakeDeviceRepo struct {
	removed int64
	cutoffs []time.Time
}

func (f *fakeDeviceRepo) SaveToken(userID, platform, token, deviceID string) error { return nil }
func (f *fakeDeviceRepo) GetTokensByUserID(userID string) ([]notifdomain.DeviceToken, error) {
	return nil, nil
}
func (f *fakeDeviceRepo) DeleteToken(token string) error   { return nil }
func (f *fakeDeviceRepo) TouchLastUsed(token string) error { return nil }
func (f *fakeDeviceRepo) DeleteStale(cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.removed, nil
}

type fakeWatcher struct {
	historyID string
	errFor    map[string]error
	watched   []string
}

func (f *fakeWatcher) Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh gmail.TokenUpdateFunc) (string, error) {
	f.watched = append(f.watched, accessToken)
	if err := f.errFor[accessToken]; err != nil {
		return "", err
	}
	return f.historyID, nil
}

type passthroughBox struct{}

func (passthroughBox) Encrypt(plaintext string) ([]byte, error)  { return []byte(plaintext), nil }
func (passthroughBox) Decrypt(ciphertext []byte) (string, error) { return string(ciphertext), nil }

type recordingPublisher struct {
	syncJobs []queue.SyncJob
}

func (p *recordingPublisher) PublishSyncJob(ctx context.Context, job queue.SyncJob) error {
	p.syncJobs = append(p.syncJobs, job)
	return nil
}
func (p *recordingPublisher) PublishNotifyJob(ctx context.Context, job queue.NotifyJob) error {
	return nil
}

func account(id, email, token string) acctdomain.Account {
	return acctdomain.Account{
		ID:                    id,
		Email:                 email,
		EncryptedAccessToken:  []byte(token),
		EncryptedRefreshToken: []byte("refresh-" + token),
	}
}

func TestRenewAllEnqueuesCatchUpSync(t *testing.T) {
	repo := &fakeAccountRepo{accounts: []acctdomain.Account{
		account("a1", "one@example.com", "tok1"),
		account("a2", "two@example.com", "tok2"),
	}}
	watcher := &fakeWatcher{historyID: "555"}
	publisher := &recordingPublisher{}

	s := NewScheduler(repo, nil, watcher, passthroughBox{}, publisher,
		"projects/p/topics/gmail-updates", 12*time.Hour, 90*24*time.Hour)

	s.renewAll(context.Background())

	assert.Len(t, watcher.watched, 2)
	require.Len(t, publisher.syncJobs, 2)
	assert.Equal(t, "one@example.com", publisher.syncJobs[0].EmailAddress)
	assert.Equal(t, "555", publisher.syncJobs[0].HistoryID)
}

func TestRenewAllContinuesPastFailures(t *testing.T) {
	repo := &fakeAccountRepo{accounts: []acctdomain.Account{
		account("a1", "broken@example.com", "tok1"),
		account("a2", "fine@example.com", "tok2"),
	}}
	watcher := &fakeWatcher{
		historyID: "700",
		errFor:    map[string]error{"tok1": errors.New("invalid_grant")},
	}
	publisher := &recordingPublisher{}

	s := NewScheduler(repo, nil, watcher, passthroughBox{}, publisher,
		"topic", 12*time.Hour, 90*24*time.Hour)

	s.renewAll(context.Background())

	// The second account still gets its watch and catch-up job
	require.Len(t, publisher.syncJobs, 1)
	assert.Equal(t, "fine@example.com", publisher.syncJobs[0].EmailAddress)
}

func TestCleanupUsesConfiguredMaxAge(t *testing.T) {
	devices := &fakeDeviceRepo{removed: 3}
	s := NewScheduler(&fakeAccountRepo{}, devices, &fakeWatcher{}, passthroughBox{},
		&recordingPublisher{}, "topic", 12*time.Hour, 90*24*time.Hour)

	before := time.Now().Add(-90 * 24 * time.Hour)
	s.cleanupDeviceTokens()

	require.Len(t, devices.cutoffs, 1)
	assert.WithinDuration(t, before, devices.cutoffs[0], time.Minute)
}
