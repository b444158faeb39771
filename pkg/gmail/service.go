package gmail

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is called when the provider rotates the OAuth token,
// so the caller can persist the new credentials
type TokenUpdateFunc func(*oauth2.Token) error

// ChangeBatch is the result of paging the history API from a cursor
type ChangeBatch struct {
	// AddedMessageIDs is the deduplicated set of newly added message
	// identifiers across all pages
	AddedMessageIDs []string
	// LatestHistoryID is the newest cursor observed in the batch
	LatestHistoryID string
}

type Service struct {
	clientID     string
	clientSecret string
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

// getGmailService creates a Gmail API client with the user's tokens
func (s *Service) getGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	return srv, nil
}

// ListChanges pages through the history log starting at the given
// cursor and collects every added message identifier. Loops until the
// API returns no next-page token.
func (s *Service) ListChanges(ctx context.Context, accessToken, refreshToken, startHistoryID string, onTokenRefresh TokenUpdateFunc) (*ChangeBatch, error) {
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	start, err := strconv.ParseUint(startHistoryID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start history id %q: %w", startHistoryID, err)
	}

	batch := &ChangeBatch{}
	seen := make(map[string]struct{})
	pageToken := ""

	for {
		call := srv.Users.History.List("me").
			StartHistoryId(start).
			HistoryTypes("messageAdded")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list history: %w", err)
		}

		for _, record := range resp.History {
			for _, added := range record.MessagesAdded {
				if added.Message == nil || added.Message.Id == "" {
					continue
				}
				if _, ok := seen[added.Message.Id]; ok {
					continue
				}
				seen[added.Message.Id] = struct{}{}
				batch.AddedMessageIDs = append(batch.AddedMessageIDs, added.Message.Id)
			}
		}

		if resp.HistoryId > 0 {
			batch.LatestHistoryID = strconv.FormatUint(resp.HistoryId, 10)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return batch, nil
}

// GetMessage fetches one full message by identifier
func (s *Service) GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh TokenUpdateFunc) (*gmail.Message, error) {
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message %s: %w", messageID, err)
	}
	return msg, nil
}

// Watch (re-)establishes mailbox push notifications onto the Pub/Sub
// topic and returns the mailbox's current history cursor
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	// Clear any existing watch first to avoid the single-client limit
	_ = srv.Users.Stop("me").Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}

	resp, err := srv.Users.Watch("me", req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to watch mailbox: %w", err)
	}
	log.Printf("[Gmail] Watch established, expiration=%d historyId=%d", resp.Expiration, resp.HistoryId)

	return strconv.FormatUint(resp.HistoryId, 10), nil
}
