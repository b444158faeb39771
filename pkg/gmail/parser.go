package gmail

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	msgdomain "mailpilot-backend/internal/message/domain"
)

var (
	brTagRe    = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlTagRe  = regexp.MustCompile(`<[^>]+>`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)
)

// ParseMessage converts a raw Gmail API message into the canonical
// ParsedMessage shape used by rule evaluation and persistence
func ParseMessage(msg *gmail.Message) *msgdomain.ParsedMessage {
	parsed := &msgdomain.ParsedMessage{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
		Snippet:   msg.Snippet,
		LabelIDs:  msg.LabelIds,
	}

	if msg.InternalDate > 0 {
		ts := time.Unix(msg.InternalDate/1000, (msg.InternalDate%1000)*int64(time.Millisecond)).UTC()
		parsed.ReceivedAt = &ts
	}

	if msg.Payload == nil {
		return parsed
	}

	parsed.Subject = getHeader(msg.Payload.Headers, "Subject")

	fromRaw := getHeader(msg.Payload.Headers, "From")
	if addr, err := mail.ParseAddress(fromRaw); err == nil {
		parsed.FromAddr = addr.Address
		parsed.FromName = addr.Name
	} else {
		parsed.FromAddr = fromRaw
	}

	for _, part := range strings.Split(getHeader(msg.Payload.Headers, "To"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if addr, err := mail.ParseAddress(part); err == nil {
			parsed.ToAddrs = append(parsed.ToAddrs, addr.Address)
		}
	}

	text, html := extractBody(msg.Payload)
	parsed.BodyHTML = html
	parsed.BodyText = text
	if parsed.BodyText == "" && html != "" {
		parsed.BodyText = sanitizeHTML(html)
	}

	parsed.HasAttachment = hasAttachments(msg.Payload)

	return parsed
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func decodeBase64URL(data string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

// extractBody walks the MIME tree and returns the first text/plain and
// text/html bodies found
func extractBody(payload *gmail.MessagePart) (text, html string) {
	switch {
	case payload.MimeType == "text/plain":
		if payload.Body != nil && payload.Body.Data != "" {
			text = decodeBase64URL(payload.Body.Data)
		}
	case payload.MimeType == "text/html":
		if payload.Body != nil && payload.Body.Data != "" {
			html = decodeBase64URL(payload.Body.Data)
		}
	case strings.HasPrefix(payload.MimeType, "multipart/"):
		for _, part := range payload.Parts {
			t, h := extractBody(part)
			if text == "" {
				text = t
			}
			if html == "" {
				html = h
			}
		}
	}
	return text, html
}

func hasAttachments(payload *gmail.MessagePart) bool {
	if payload.Filename != "" {
		return true
	}
	for _, part := range payload.Parts {
		if hasAttachments(part) {
			return true
		}
	}
	return false
}

// sanitizeHTML strips markup for plain-text rule matching
func sanitizeHTML(html string) string {
	clean := brTagRe.ReplaceAllString(html, "\n")
	clean = htmlTagRe.ReplaceAllString(clean, "")
	clean = strings.ReplaceAll(clean, "&nbsp;", " ")
	clean = strings.ReplaceAll(clean, "&lt;", "<")
	clean = strings.ReplaceAll(clean, "&gt;", ">")
	clean = strings.ReplaceAll(clean, "&amp;", "&")
	clean = strings.ReplaceAll(clean, "&quot;", "\"")
	clean = newlinesRe.ReplaceAllString(clean, "\n\n")
	return strings.TrimSpace(clean)
}
