package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Slack section blocks reject text over 3000 characters
const maxBodyLength = 3000

const maxTitleLength = 150

// Attachment color per event type
var colorMap = map[string]string{
	"RULE_MATCH":     "#E74C3C",
	"FOLLOW_UP":      "#F39C12",
	"DIGEST":         "#3498DB",
	"MEETING_PREP":   "#9B59B6",
	"EVENT_PROPOSAL": "#2ECC71",
	"SYSTEM":         "#95A5A6",
}

// Client posts rich messages to Slack incoming webhooks
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type textObject struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type block struct {
	Type     string       `json:"type"`
	Text     *textObject  `json:"text,omitempty"`
	Elements []textObject `json:"elements,omitempty"`
}

type attachment struct {
	Color  string  `json:"color"`
	Blocks []block `json:"blocks"`
}

type webhookPayload struct {
	Attachments []attachment `json:"attachments"`
}

// Send posts a block-kit message to the webhook URL. Any non-200
// response counts as failure.
func (c *Client) Send(ctx context.Context, webhookURL, title, body, eventType string) error {
	color, ok := colorMap[eventType]
	if !ok {
		color = colorMap["SYSTEM"]
	}

	payload := webhookPayload{
		Attachments: []attachment{{
			Color: color,
			Blocks: []block{
				{
					Type: "header",
					Text: &textObject{Type: "plain_text", Text: truncate(title, maxTitleLength), Emoji: true},
				},
				{
					Type: "section",
					Text: &textObject{Type: "mrkdwn", Text: truncate(body, maxBodyLength)},
				},
				{
					Type: "context",
					Elements: []textObject{
						{Type: "mrkdwn", Text: fmt.Sprintf("Type: *%s*", eventType)},
					},
				},
			},
		}},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build Slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(detail))
	}

	return nil
}

// truncate bounds s to max runes of text, marking the cut with an
// ellipsis
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
