package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// ConditionKind is the closed set of rule condition types
type ConditionKind string

const (
	KindFromContains    ConditionKind = "from_contains"
	KindSubjectContains ConditionKind = "subject_contains"
	KindHasAttachment   ConditionKind = "has_attachment"
	KindLabel           ConditionKind = "label"
	KindBodyKeywords    ConditionKind = "body_keywords"
	KindTimeWindow      ConditionKind = "time_window"
)

// TimeWindow is a local time-of-day interval. Start > End means the
// window wraps past midnight.
type TimeWindow struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// Condition is one rule condition with its kind-specific payload.
// Exactly one payload field is meaningful for a given kind. A condition
// whose stored value does not decode for its kind evaluates to false
// rather than failing the batch, so Valid survives unmarshalling.
type Condition struct {
	Kind     ConditionKind `json:"type"`
	Text     string        `json:"-"`
	Flag     bool          `json:"-"`
	Keywords []string      `json:"-"`
	Window   TimeWindow    `json:"-"`
	Valid    bool          `json:"-"`
}

// UnmarshalJSON decodes {"type": ..., "value": ...} into the typed
// payload for the condition kind. Malformed values mark the condition
// invalid instead of returning an error.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  ConditionKind   `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Kind = raw.Type
	c.Valid = false

	switch raw.Type {
	case KindFromContains, KindSubjectContains, KindLabel:
		var s string
		if json.Unmarshal(raw.Value, &s) == nil {
			c.Text = s
			c.Valid = true
		}
	case KindHasAttachment:
		var b bool
		if json.Unmarshal(raw.Value, &b) == nil {
			c.Flag = b
			c.Valid = true
		}
	case KindBodyKeywords:
		var kw []string
		if json.Unmarshal(raw.Value, &kw) == nil {
			c.Keywords = kw
			c.Valid = true
		}
	case KindTimeWindow:
		var w TimeWindow
		if json.Unmarshal(raw.Value, &w) == nil {
			c.Window = w
			c.Valid = true
		}
	}

	return nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	var value interface{}
	switch c.Kind {
	case KindFromContains, KindSubjectContains, KindLabel:
		value = c.Text
	case KindHasAttachment:
		value = c.Flag
	case KindBodyKeywords:
		value = c.Keywords
	case KindTimeWindow:
		value = c.Window
	}
	return json.Marshal(struct {
		Type  ConditionKind `json:"type"`
		Value interface{}   `json:"value"`
	}{Type: c.Kind, Value: value})
}

// Conditions is the full condition tree stored in the rules table as JSONB
type Conditions struct {
	Logic      Logic       `json:"logic"`
	Conditions []Condition `json:"conditions"`
}

func (c Conditions) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *Conditions) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported conditions column type %T", value)
	}
}

// Rule is a user-defined matching rule. Identity is immutable; the
// condition tree and active flag are user-editable.
type Rule struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	UserID     string     `json:"user_id" gorm:"index;not null"`
	Name       string     `json:"name" gorm:"not null"`
	Conditions Conditions `json:"conditions" gorm:"type:jsonb;not null"`
	IsActive   bool       `json:"is_active" gorm:"index;default:true"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
