package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	commonhttp "asset-lookup-bot/internal/common/http"
	"asset-lookup-bot/internal/lookup/conversation"
)

// Client calls the Bot API.
type Client struct {
	baseURL string
	token   string
	http    *commonhttp.Client
}

func NewClient(baseURL, token string, httpClient *commonhttp.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// SendReply delivers a reply to a chat. Options, then navigation tokens, become a one-column
// reply keyboard; a reply with neither leaves the operator's current keyboard in place.
func (c *Client) SendReply(ctx context.Context, chatID int64, reply conversation.Reply) error {
	req := SendMessageRequest{ChatID: chatID, Text: reply.Text}
	buttons := append(append([]string{}, reply.Options...), reply.Navigation...)
	if len(buttons) > 0 {
		markup := &ReplyKeyboardMarkup{ResizeKeyboard: true}
		for _, b := range buttons {
			markup.Keyboard = append(markup.Keyboard, []KeyboardButton{{Text: b}})
		}
		req.ReplyMarkup = markup
	}
	return c.call(ctx, "sendMessage", req)
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%s: decode response (status %d): %w", method, resp.StatusCode, err)
	}
	if !out.OK {
		return fmt.Errorf("%s: %s", method, out.Description)
	}
	return nil
}
