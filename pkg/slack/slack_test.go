package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 3000))

	long := strings.Repeat("x", 3500)
	got := truncate(long, 3000)
	assert.Len(t, got, 3000)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSendPostsBlockKitPayload(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	err := client.Send(context.Background(), server.URL, "Rule matched", "From: boss@co.com", "RULE_MATCH")
	require.NoError(t, err)

	require.Len(t, received.Attachments, 1)
	att := received.Attachments[0]
	assert.Equal(t, "#E74C3C", att.Color)
	require.Len(t, att.Blocks, 3)
	assert.Equal(t, "Rule matched", att.Blocks[0].Text.Text)
	assert.Equal(t, "From: boss@co.com", att.Blocks[1].Text.Text)
	assert.Contains(t, att.Blocks[2].Elements[0].Text, "RULE_MATCH")
}

func TestSendNon200IsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	err := client.Send(context.Background(), server.URL, "t", "b", "DIGEST")
	assert.Error(t, err)
}

func TestSendUnknownTypeUsesSystemColor(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	require.NoError(t, client.Send(context.Background(), server.URL, "t", "b", "SOMETHING_ELSE"))
	assert.Equal(t, "#95A5A6", received.Attachments[0].Color)
}
