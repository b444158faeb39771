package engine

import (
	"log"
	"strings"
	"time"

	msgdomain "mailpilot-backend/internal/message/domain"
	"mailpilot-backend/internal/rule/domain"
)

// matchCondition evaluates a single condition against a parsed message.
// Invalid or unknown conditions are false, never an error.
func matchCondition(c domain.Condition, msg *msgdomain.ParsedMessage) bool {
	if !c.Valid {
		return false
	}

	switch c.Kind {
	case domain.KindFromContains:
		if msg.FromAddr == "" {
			return false
		}
		return strings.Contains(strings.ToLower(msg.FromAddr), strings.ToLower(c.Text))

	case domain.KindSubjectContains:
		if msg.Subject == "" {
			return false
		}
		return strings.Contains(strings.ToLower(msg.Subject), strings.ToLower(c.Text))

	case domain.KindHasAttachment:
		return msg.HasAttachment == c.Flag

	case domain.KindLabel:
		for _, label := range msg.LabelIDs {
			if label == c.Text {
				return true
			}
		}
		return false

	case domain.KindBodyKeywords:
		if msg.BodyText == "" || len(c.Keywords) == 0 {
			return false
		}
		body := strings.ToLower(msg.BodyText)
		for _, kw := range c.Keywords {
			if strings.Contains(body, strings.ToLower(kw)) {
				return true
			}
		}
		return false

	case domain.KindTimeWindow:
		return matchTimeWindow(c.Window, msg.ReceivedAt)

	default:
		log.Printf("[Rules] Unknown condition type: %s", c.Kind)
		return false
	}
}

// matchTimeWindow tests the message's local time-of-day against
// [start, end]. Start after end means the window wraps past midnight.
func matchTimeWindow(w domain.TimeWindow, receivedAt *time.Time) bool {
	if receivedAt == nil {
		return false
	}

	tzName := w.Timezone
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Printf("[Rules] Invalid time_window timezone %q", tzName)
		return false
	}

	start, err := time.Parse("15:04", w.Start)
	if err != nil {
		log.Printf("[Rules] Invalid time_window start %q", w.Start)
		return false
	}
	end, err := time.Parse("15:04", w.End)
	if err != nil {
		log.Printf("[Rules] Invalid time_window end %q", w.End)
		return false
	}

	local := receivedAt.In(loc)
	minute := local.Hour()*60 + local.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minute >= startMin && minute <= endMin
	}
	// Overnight window (e.g. 22:00 - 06:00)
	return minute >= startMin || minute <= endMin
}

// EvaluateRule evaluates one rule's condition tree against a message.
// A rule with no conditions never matches.
func EvaluateRule(conds domain.Conditions, msg *msgdomain.ParsedMessage) bool {
	if len(conds.Conditions) == 0 {
		return false
	}

	if conds.Logic == domain.LogicOr {
		for _, c := range conds.Conditions {
			if matchCondition(c, msg) {
				return true
			}
		}
		return false
	}

	// AND is the default
	for _, c := range conds.Conditions {
		if !matchCondition(c, msg) {
			return false
		}
	}
	return true
}

// Match returns the subset of rules matching the message, preserving
// input order
func Match(rules []domain.Rule, msg *msgdomain.ParsedMessage) []domain.Rule {
	var matched []domain.Rule
	for _, r := range rules {
		if EvaluateRule(r.Conditions, msg) {
			matched = append(matched, r)
		}
	}
	return matched
}
