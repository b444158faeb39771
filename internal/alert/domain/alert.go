package domain

import "time"

// Alert records one rule match against one message. RuleID is nullable
// so deleting a rule keeps its historical alerts.
type Alert struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	MessageID string    `json:"message_id" gorm:"not null"`
	RuleID    *string   `json:"rule_id" gorm:"index"`
	Read      bool      `json:"read" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"index;autoCreateTime"`
}
