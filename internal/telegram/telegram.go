// Package telegram sends fire-and-forget chat notifications about update
// outcomes. Failures are the caller's to log; they never abort a pipeline.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultAPIURL is the public Telegram bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Notifier delivers a short text message to the configured destination.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Bot implements Notifier over the Telegram bot API.
type Bot struct {
	apiURL     string
	token      string
	chatID     int64
	httpClient *http.Client
}

// NewBot creates a Telegram notifier. An empty apiURL selects the public
// endpoint.
func NewBot(apiURL, token string, chatID int64) *Bot {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Bot{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends text to the configured chat.
func (b *Bot) Notify(ctx context.Context, text string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(b.chatID, 10))
	params.Set("text", text)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage?%s", b.apiURL, b.token, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification request failed: unexpected status %s", resp.Status)
	}

	return nil
}

// NopNotifier discards notifications. Used when no chat is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) error { return nil }
