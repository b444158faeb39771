package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// DeviceToken is a push-capable device registration
type DeviceToken struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	UserID    string     `json:"user_id" gorm:"index;not null"`
	Platform  string     `json:"platform" gorm:"size:10;not null"` // "ios" or "android"
	Token     string     `json:"-" gorm:"size:512;uniqueIndex;not null"`
	DeviceID  string     `json:"device_id" gorm:"not null"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used"`
}

// EventTypeList is stored as JSONB; empty means all types allowed
type EventTypeList []string

func (l EventTypeList) Value() (driver.Value, error) {
	if l == nil {
		l = EventTypeList{}
	}
	return json.Marshal(l)
}

func (l *EventTypeList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported event type list column type %T", value)
	}
}

// Allows reports whether the list permits an event type. An empty list
// allows everything.
func (l EventTypeList) Allows(eventType string) bool {
	if len(l) == 0 {
		return true
	}
	for _, t := range l {
		if t == eventType {
			return true
		}
	}
	return false
}

// ChatConfig is a per-user chat webhook target. The endpoint URL is
// encrypted at rest with secretbox.
type ChatConfig struct {
	ID                  string        `json:"id" gorm:"primaryKey"`
	UserID              string        `json:"user_id" gorm:"uniqueIndex;not null"`
	EncryptedWebhookURL []byte        `json:"-" gorm:"not null"`
	IsEnabled           bool          `json:"is_enabled" gorm:"default:true"`
	EnabledTypes        EventTypeList `json:"enabled_types" gorm:"type:jsonb"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}
