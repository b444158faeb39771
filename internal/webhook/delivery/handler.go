package delivery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/idtoken"

	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/queue"
)

// TokenValidator checks a bearer token from the push subscription.
// Defaults to Google OIDC validation; injectable for tests.
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// pushEnvelope is the Pub/Sub push delivery wrapper
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// mailboxNotification is the decoded payload Gmail publishes on the
// watch topic
type mailboxNotification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

// WebhookHandler receives mailbox change notifications and turns them
// into sync jobs. It never syncs inline; the request only acknowledges
// receipt.
type WebhookHandler struct {
	cfg       *config.Config
	publisher queue.JobPublisher
	validate  TokenValidator
}

func NewWebhookHandler(cfg *config.Config, publisher queue.JobPublisher) *WebhookHandler {
	return &WebhookHandler{
		cfg:       cfg,
		publisher: publisher,
		validate:  idtoken.Validate,
	}
}

// NewWebhookHandlerWithValidator allows substituting the token check
func NewWebhookHandlerWithValidator(cfg *config.Config, publisher queue.JobPublisher, validate TokenValidator) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, publisher: publisher, validate: validate}
}

// HandleGmailPush handles POST /api/gmail/webhook.
// Malformed envelopes are acknowledged with 200 so the subscription
// does not redeliver garbage forever; only transient enqueue failures
// return 5xx for redelivery.
func (h *WebhookHandler) HandleGmailPush(c *gin.Context) {
	if !h.verifyCaller(c) {
		if h.cfg.IsProduction() {
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "verification failed"})
			return
		}
		log.Printf("[Webhook] Unverified push accepted outside production")
	}

	var envelope pushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		log.Printf("[Webhook] Malformed push envelope: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "detail": "malformed envelope"})
		return
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		log.Printf("[Webhook] Undecodable push data (message %s): %v", envelope.Message.MessageID, err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "detail": "undecodable data"})
		return
	}

	var notification mailboxNotification
	if err := json.Unmarshal(raw, &notification); err != nil {
		log.Printf("[Webhook] Undecodable notification payload: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "detail": "undecodable payload"})
		return
	}
	if notification.EmailAddress == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "detail": "missing email address"})
		return
	}

	job := queue.SyncJob{
		EmailAddress: notification.EmailAddress,
		HistoryID:    notification.HistoryID.String(),
	}
	if err := h.publisher.PublishSyncJob(c.Request.Context(), job); err != nil {
		log.Printf("[Webhook] Failed to enqueue sync for %s: %v", notification.EmailAddress, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "enqueue failed"})
		return
	}

	log.Printf("[Webhook] Enqueued sync for %s at history %s", notification.EmailAddress, job.HistoryID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// verifyCaller accepts either the shared verification token in the
// query string or a valid Google OIDC bearer token
func (h *WebhookHandler) verifyCaller(c *gin.Context) bool {
	if h.cfg.PubSubVerificationToken != "" && c.Query("token") == h.cfg.PubSubVerificationToken {
		return true
	}

	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(auth, "Bearer ")

	payload, err := h.validate(c.Request.Context(), token, "")
	if err != nil {
		log.Printf("[Webhook] Bearer token rejected: %v", err)
		return false
	}
	if payload.Issuer != "https://accounts.google.com" && payload.Issuer != "accounts.google.com" {
		log.Printf("[Webhook] Unexpected token issuer %q", payload.Issuer)
		return false
	}
	if email, ok := payload.Claims["email"].(string); ok && email != "" {
		if !strings.HasSuffix(email, ".iam.gserviceaccount.com") {
			log.Printf("[Webhook] Token subject %q is not a service account", email)
			return false
		}
	}
	return true
}
