package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func rawMessage() *gmail.Message {
	return &gmail.Message{
		Id:           "msg-1",
		ThreadId:     "thread-1",
		Snippet:      "Quarterly numbers attached",
		LabelIds:     []string{"INBOX", "IMPORTANT"},
		InternalDate: 1741600800000, // 2025-03-10T10:00:00Z
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Q1 report"},
				{Name: "From", Value: "Boss Person <boss@co.com>"},
				{Name: "To", Value: "you@co.com, colleague@co.com"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/plain",
					Body:     &gmail.MessagePartBody{Data: b64("Please review the deadline.")},
				},
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: b64("<p>Please review the <b>deadline</b>.</p>")},
				},
				{
					MimeType: "application/pdf",
					Filename: "report.pdf",
					Body:     &gmail.MessagePartBody{AttachmentId: "att-1", Size: 1024},
				},
			},
		},
	}
}

func TestParseMessage(t *testing.T) {
	parsed := ParseMessage(rawMessage())

	assert.Equal(t, "msg-1", parsed.MessageID)
	assert.Equal(t, "thread-1", parsed.ThreadID)
	assert.Equal(t, "Q1 report", parsed.Subject)
	assert.Equal(t, "boss@co.com", parsed.FromAddr)
	assert.Equal(t, "Boss Person", parsed.FromName)
	assert.Equal(t, []string{"you@co.com", "colleague@co.com"}, parsed.ToAddrs)
	assert.Equal(t, "Please review the deadline.", parsed.BodyText)
	assert.True(t, parsed.HasAttachment)
	assert.Equal(t, []string{"INBOX", "IMPORTANT"}, parsed.LabelIDs)

	require.NotNil(t, parsed.ReceivedAt)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), parsed.ReceivedAt.UTC())
}

func TestParseMessageHTMLFallback(t *testing.T) {
	msg := &gmail.Message{
		Id: "msg-2",
		Payload: &gmail.MessagePart{
			MimeType: "text/html",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "alerts@service.io"},
			},
			Body: &gmail.MessagePartBody{
				Data: b64("<div>Line one<br/>Line two &amp; more<br>done</div>"),
			},
		},
	}

	parsed := ParseMessage(msg)
	assert.Equal(t, "alerts@service.io", parsed.FromAddr)
	assert.Equal(t, "Line one\nLine two & more\ndone", parsed.BodyText)
	assert.False(t, parsed.HasAttachment)
}

func TestParseMessageEmptyPayload(t *testing.T) {
	parsed := ParseMessage(&gmail.Message{Id: "msg-3"})
	assert.Equal(t, "msg-3", parsed.MessageID)
	assert.Nil(t, parsed.ReceivedAt)
	assert.Empty(t, parsed.Subject)
}

func TestParseMessageBadTimestampIgnored(t *testing.T) {
	parsed := ParseMessage(&gmail.Message{Id: "msg-4", InternalDate: 0})
	assert.Nil(t, parsed.ReceivedAt)
}
