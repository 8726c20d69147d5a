package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonhttp "asset-lookup-bot/internal/common/http"
	"asset-lookup-bot/internal/lookup/conversation"
)

func TestSendReply(t *testing.T) {
	var got SendMessageRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", "123:abc", commonhttp.NewClient(time.Second))
	err := c.SendReply(context.Background(), 1001, conversation.Reply{
		Text:    "Выберите филиал:",
		Options: []string{"BranchX", "BranchY"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, int64(1001), got.ChatID)
	require.NotNil(t, got.ReplyMarkup)
	assert.Equal(t, [][]KeyboardButton{{{Text: "BranchX"}}, {{Text: "BranchY"}}}, got.ReplyMarkup.Keyboard)
	assert.True(t, got.ReplyMarkup.ResizeKeyboard)
}

func TestSendReply_NavigationFollowsOptions(t *testing.T) {
	var got SendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "t", commonhttp.NewClient(time.Second))
	err := c.SendReply(context.Background(), 1, conversation.Reply{
		Text:       "Выберите нужную:",
		Options:    []string{"ТП-AB1", "ТП-AB10"},
		Navigation: []string{"Назад"},
	})
	require.NoError(t, err)

	require.NotNil(t, got.ReplyMarkup)
	assert.Equal(t, [][]KeyboardButton{
		{{Text: "ТП-AB1"}}, {{Text: "ТП-AB10"}}, {{Text: "Назад"}},
	}, got.ReplyMarkup.Keyboard)
}

func TestSendReply_WithoutOptionsKeepsKeyboard(t *testing.T) {
	var raw map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "t", commonhttp.NewClient(time.Second))
	require.NoError(t, c.SendReply(context.Background(), 1, conversation.Reply{Text: "x"}))

	_, hasMarkup := raw["reply_markup"]
	assert.False(t, hasMarkup)
}

func TestSendReply_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok": false, "description": "Forbidden: bot was blocked by the user"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "t", commonhttp.NewClient(time.Second))
	err := c.SendReply(context.Background(), 1, conversation.Reply{Text: "x"})
	assert.ErrorContains(t, err, "blocked by the user")
}
