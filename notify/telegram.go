package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultTelegramURL = "https://api.telegram.org"

// Telegram posts messages through the Bot API.
type Telegram struct {
	Token   string
	ChatID  string
	BaseURL string
	HTTP    *http.Client
	Retries int

	// Backoff returns the pause after a failed attempt (0-based).
	Backoff func(attempt int) time.Duration

	Log zerolog.Logger
}

func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		Token:   token,
		ChatID:  chatID,
		BaseURL: DefaultTelegramURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Retries: 2,
		Backoff: func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second },
		Log:     log,
	}
}

func (t *Telegram) Name() string { return "telegram" }

type sendMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Send tries once plus Retries more times.
func (t *Telegram) Send(ctx context.Context, text string) bool {
	body, err := json.Marshal(sendMessage{
		ChatID:                t.ChatID,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return false
	}

	for attempt := 0; attempt <= t.Retries; attempt++ {
		err := t.post(ctx, body)
		if err == nil {
			return true
		}
		t.Log.Debug().Err(err).Int("attempt", attempt+1).Msg("telegram send failed")

		if attempt == t.Retries || !retryable(err) {
			break
		}
		var wait time.Duration
		if t.Backoff != nil {
			wait = t.Backoff(attempt)
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
	return false
}

func (t *Telegram) post(ctx context.Context, body []byte) error {
	base := strings.TrimRight(t.BaseURL, "/")
	if base == "" {
		base = DefaultTelegramURL
	}
	u := fmt.Sprintf("%s/bot%s/sendMessage", base, t.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram request: %w", stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := t.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram post: %w", stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// stripURL drops the request URL from a url.Error; it holds the bot token.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// StatusError is a non-200 Bot API response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("telegram http %d: %s", e.Code, e.Body)
}

// retryable reports whether another attempt can succeed: transport errors,
// 429 and 5xx. Other 4xx responses, such as a Markdown parse error, cannot.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}
