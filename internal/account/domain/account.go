package domain

import "time"

// Account is a connected mailbox. OAuth tokens are encrypted at rest
// with secretbox; LastHistoryID is the durable sync cursor and must
// never move backward.
type Account struct {
	ID                    string    `json:"id" gorm:"primaryKey"`
	Email                 string    `json:"email" gorm:"uniqueIndex;not null"`
	EncryptedAccessToken  []byte    `json:"-" gorm:"not null"`
	EncryptedRefreshToken []byte    `json:"-" gorm:"not null"`
	TokenExpiry           time.Time `json:"token_expiry"`
	Scopes                string    `json:"scopes"`
	LastHistoryID         string    `json:"last_history_id"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
