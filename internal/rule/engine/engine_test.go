package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	msgdomain "mailpilot-backend/internal/message/domain"
	"mailpilot-backend/internal/rule/domain"
)

func textCondition(kind domain.ConditionKind, value string) domain.Condition {
	return domain.Condition{Kind: kind, Text: value, Valid: true}
}

func message(from, subject string) *msgdomain.ParsedMessage {
	return &msgdomain.ParsedMessage{FromAddr: from, Subject: subject}
}

func TestOrLogic(t *testing.T) {
	conds := domain.Conditions{
		Logic: domain.LogicOr,
		Conditions: []domain.Condition{
			textCondition(domain.KindFromContains, "boss"),
			textCondition(domain.KindSubjectContains, "urgent"),
		},
	}

	assert.True(t, EvaluateRule(conds, message("boss@co.com", "FYI")))
	assert.True(t, EvaluateRule(conds, message("x@co.com", "URGENT: call")))
	assert.False(t, EvaluateRule(conds, message("x@co.com", "FYI")))
}

func TestAndLogic(t *testing.T) {
	conds := domain.Conditions{
		Logic: domain.LogicAnd,
		Conditions: []domain.Condition{
			textCondition(domain.KindFromContains, "boss"),
			textCondition(domain.KindSubjectContains, "urgent"),
		},
	}

	assert.True(t, EvaluateRule(conds, message("boss@co.com", "Urgent: budget")))
	assert.False(t, EvaluateRule(conds, message("boss@co.com", "FYI")))
	assert.False(t, EvaluateRule(conds, message("x@co.com", "urgent")))
}

func TestEmptyConditionsNeverMatch(t *testing.T) {
	for _, logic := range []domain.Logic{domain.LogicAnd, domain.LogicOr} {
		conds := domain.Conditions{Logic: logic, Conditions: []domain.Condition{}}
		assert.False(t, EvaluateRule(conds, message("anyone@co.com", "anything")))
	}
}

func TestCaseInsensitiveSubstring(t *testing.T) {
	conds := domain.Conditions{
		Logic:      domain.LogicAnd,
		Conditions: []domain.Condition{textCondition(domain.KindSubjectContains, "URGENT")},
	}
	assert.True(t, EvaluateRule(conds, message("a@b.com", "this is urgent!")))
}

func TestMissingFieldsAreFalse(t *testing.T) {
	fromCond := domain.Conditions{
		Logic:      domain.LogicAnd,
		Conditions: []domain.Condition{textCondition(domain.KindFromContains, "boss")},
	}
	assert.False(t, EvaluateRule(fromCond, message("", "subject")))

	bodyCond := domain.Conditions{
		Logic: domain.LogicAnd,
		Conditions: []domain.Condition{
			{Kind: domain.KindBodyKeywords, Keywords: []string{"deadline"}, Valid: true},
		},
	}
	assert.False(t, EvaluateRule(bodyCond, message("a@b.com", "s")))
}

func TestHasAttachment(t *testing.T) {
	conds := domain.Conditions{
		Logic:      domain.LogicAnd,
		Conditions: []domain.Condition{{Kind: domain.KindHasAttachment, Flag: true, Valid: true}},
	}

	withAttachment := &msgdomain.ParsedMessage{HasAttachment: true}
	without := &msgdomain.ParsedMessage{HasAttachment: false}
	assert.True(t, EvaluateRule(conds, withAttachment))
	assert.False(t, EvaluateRule(conds, without))
}

func TestLabelExactMembership(t *testing.T) {
	conds := domain.Conditions{
		Logic:      domain.LogicAnd,
		Conditions: []domain.Condition{textCondition(domain.KindLabel, "IMPORTANT")},
	}

	msg := &msgdomain.ParsedMessage{LabelIDs: []string{"INBOX", "IMPORTANT"}}
	assert.True(t, EvaluateRule(conds, msg))

	msg.LabelIDs = []string{"INBOX", "IMPORTANT_NOT"}
	assert.False(t, EvaluateRule(conds, msg))
}

func TestBodyKeywordsAny(t *testing.T) {
	conds := domain.Conditions{
		Logic: domain.LogicAnd,
		Conditions: []domain.Condition{
			{Kind: domain.KindBodyKeywords, Keywords: []string{"deadline", "ASAP"}, Valid: true},
		},
	}

	msg := &msgdomain.ParsedMessage{BodyText: "please reply asap, thanks"}
	assert.True(t, EvaluateRule(conds, msg))

	msg.BodyText = "nothing relevant here"
	assert.False(t, EvaluateRule(conds, msg))
}

func timeWindowRule(start, end, tz string) domain.Conditions {
	return domain.Conditions{
		Logic: domain.LogicAnd,
		Conditions: []domain.Condition{
			{Kind: domain.KindTimeWindow, Window: domain.TimeWindow{Start: start, End: end, Timezone: tz}, Valid: true},
		},
	}
}

func msgAtUTC(hour, minute int) *msgdomain.ParsedMessage {
	ts := time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
	return &msgdomain.ParsedMessage{ReceivedAt: &ts}
}

func TestOvernightTimeWindow(t *testing.T) {
	conds := timeWindowRule("22:00", "06:00", "UTC")

	assert.True(t, EvaluateRule(conds, msgAtUTC(23, 0)))
	assert.True(t, EvaluateRule(conds, msgAtUTC(5, 0)))
	assert.False(t, EvaluateRule(conds, msgAtUTC(12, 0)))
}

func TestDaytimeTimeWindow(t *testing.T) {
	conds := timeWindowRule("09:00", "17:00", "UTC")

	assert.True(t, EvaluateRule(conds, msgAtUTC(9, 0)))
	assert.True(t, EvaluateRule(conds, msgAtUTC(17, 0)))
	assert.False(t, EvaluateRule(conds, msgAtUTC(8, 59)))
	assert.False(t, EvaluateRule(conds, msgAtUTC(17, 1)))
}

func TestTimeWindowHonorsTimezone(t *testing.T) {
	// 23:00 UTC is 00:00 in Amsterdam (winter, UTC+1)
	conds := timeWindowRule("23:30", "01:00", "Europe/Amsterdam")
	ts := time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC)
	msg := &msgdomain.ParsedMessage{ReceivedAt: &ts}
	assert.True(t, EvaluateRule(conds, msg))
}

func TestMalformedTimeWindowIsFalse(t *testing.T) {
	assert.False(t, EvaluateRule(timeWindowRule("25:99", "06:00", "UTC"), msgAtUTC(12, 0)))
	assert.False(t, EvaluateRule(timeWindowRule("09:00", "17:00", "Not/AZone"), msgAtUTC(12, 0)))

	// No receipt timestamp
	conds := timeWindowRule("09:00", "17:00", "UTC")
	assert.False(t, EvaluateRule(conds, &msgdomain.ParsedMessage{}))
}

func TestInvalidConditionIsFalse(t *testing.T) {
	var c domain.Condition
	err := json.Unmarshal([]byte(`{"type":"from_contains","value":123}`), &c)
	require.NoError(t, err)
	assert.False(t, c.Valid)

	conds := domain.Conditions{Logic: domain.LogicOr, Conditions: []domain.Condition{c}}
	assert.False(t, EvaluateRule(conds, message("boss@co.com", "x")))
}

func TestConditionsJSONRoundTrip(t *testing.T) {
	raw := `{"logic":"OR","conditions":[
		{"type":"from_contains","value":"boss"},
		{"type":"has_attachment","value":true},
		{"type":"body_keywords","value":["deadline","asap"]},
		{"type":"time_window","value":{"start":"22:00","end":"06:00","timezone":"UTC"}}
	]}`

	var conds domain.Conditions
	require.NoError(t, json.Unmarshal([]byte(raw), &conds))
	require.Len(t, conds.Conditions, 4)
	for _, c := range conds.Conditions {
		assert.True(t, c.Valid, "condition %s should be valid", c.Kind)
	}

	assert.True(t, EvaluateRule(conds, message("boss@co.com", "hi")))
}

func TestMatchPreservesOrder(t *testing.T) {
	rules := []domain.Rule{
		{ID: "r1", Name: "first", Conditions: domain.Conditions{
			Logic:      domain.LogicAnd,
			Conditions: []domain.Condition{textCondition(domain.KindFromContains, "boss")},
		}},
		{ID: "r2", Name: "never", Conditions: domain.Conditions{
			Logic:      domain.LogicAnd,
			Conditions: []domain.Condition{textCondition(domain.KindSubjectContains, "nope")},
		}},
		{ID: "r3", Name: "second", Conditions: domain.Conditions{
			Logic:      domain.LogicAnd,
			Conditions: []domain.Condition{textCondition(domain.KindSubjectContains, "urgent")},
		}},
	}

	matched := Match(rules, message("boss@co.com", "urgent: meeting"))
	require.Len(t, matched, 2)
	assert.Equal(t, "r1", matched[0].ID)
	assert.Equal(t, "r3", matched[1].ID)
}
