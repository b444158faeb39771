package domain

import (
	"strings"
	"time"
)

// ParsedMessage is the canonical shape the sync engine extracts from a
// raw provider message. Rule evaluation operates on this, never on the
// raw API payload.
type ParsedMessage struct {
	MessageID     string
	ThreadID      string
	Subject       string
	FromAddr      string
	FromName      string
	ToAddrs       []string
	Snippet       string
	BodyText      string
	BodyHTML      string
	ReceivedAt    *time.Time
	HasAttachment bool
	LabelIDs      []string
}

// ProcessedMessage is the idempotent ledger entry: one row per
// (user, provider message id), inserted with ON CONFLICT DO NOTHING.
// Its existence means "already observed, do not reprocess".
type ProcessedMessage struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	UserID        string     `json:"user_id" gorm:"not null;uniqueIndex:uq_user_message"`
	MessageID     string     `json:"message_id" gorm:"not null;uniqueIndex:uq_user_message"`
	ThreadID      string     `json:"thread_id"`
	Subject       string     `json:"subject"`
	FromAddr      string     `json:"from_addr" gorm:"size:320"`
	Snippet       string     `json:"snippet"`
	HasAttachment bool       `json:"has_attachment"`
	LabelIDs      string     `json:"label_ids"` // comma-separated
	Category      *string    `json:"category"`
	ReceivedAt    *time.Time `json:"received_at"`
	ProcessedAt   time.Time  `json:"processed_at" gorm:"autoCreateTime"`
}

// NewProcessedMessage denormalizes a parsed message into a ledger row
func NewProcessedMessage(id, userID string, parsed *ParsedMessage) *ProcessedMessage {
	return &ProcessedMessage{
		ID:            id,
		UserID:        userID,
		MessageID:     parsed.MessageID,
		ThreadID:      parsed.ThreadID,
		Subject:       parsed.Subject,
		FromAddr:      parsed.FromAddr,
		Snippet:       parsed.Snippet,
		HasAttachment: parsed.HasAttachment,
		LabelIDs:      strings.Join(parsed.LabelIDs, ","),
		ReceivedAt:    parsed.ReceivedAt,
	}
}
