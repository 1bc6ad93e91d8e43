package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTelegram(url string) *Telegram {
	tg := NewTelegram("tok", "42", zerolog.Nop())
	tg.BaseURL = url
	tg.Backoff = func(int) time.Duration { return 0 }
	return tg
}

func TestTelegramSend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/bottok/sendMessage", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var msg sendMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		require.Equal(t, "42", msg.ChatID)
		require.Equal(t, "hello", msg.Text)
		require.Equal(t, "Markdown", msg.ParseMode)
		require.True(t, msg.DisableWebPagePreview)

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	assert.True(t, newTestTelegram(srv.URL).Send(context.Background(), "hello"))
}

func TestTelegramRetries(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	assert.True(t, newTestTelegram(srv.URL).Send(context.Background(), "x"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTelegramGivesUp(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"ok":false}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tg := newTestTelegram(srv.URL)
	assert.False(t, tg.Send(context.Background(), "x"))
	assert.Equal(t, int32(tg.Retries+1), atomic.LoadInt32(&calls))
}

func TestTelegramDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		code  int
		calls int32
	}{
		{"bad request", http.StatusBadRequest, 1},
		{"unauthorized", http.StatusUnauthorized, 1},
		{"rate limited", http.StatusTooManyRequests, 3},
		{"server error", http.StatusInternalServerError, 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				http.Error(w, `{"ok":false}`, tt.code)
			}))
			defer srv.Close()

			assert.False(t, newTestTelegram(srv.URL).Send(context.Background(), "x"))
			assert.Equal(t, tt.calls, atomic.LoadInt32(&calls))
		})
	}
}

func TestTelegramUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tg := newTestTelegram(url)
	tg.Retries = 0
	assert.False(t, tg.Send(context.Background(), "x"))
}

func TestTelegramLogsOmitToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var buf bytes.Buffer
	tg := NewTelegram("123456:SECRET-TOKEN", "42", zerolog.New(&buf).Level(zerolog.DebugLevel))
	tg.BaseURL = url
	tg.Retries = 1
	tg.Backoff = func(int) time.Duration { return 0 }

	assert.False(t, tg.Send(context.Background(), "x"))
	assert.Contains(t, buf.String(), "telegram send failed")
	assert.NotContains(t, buf.String(), "SECRET-TOKEN")
}

func TestNotifierStatusEscapesMarkdown(t *testing.T) {
	t.Parallel()

	var got sendMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier(newTestTelegram(srv.URL), zerolog.Nop())
	require.True(t, n.Status(context.Background(), "Signals paused by risk breaker: CONSECUTIVE_LOSSES"))
	assert.Equal(t, `Signals paused by risk breaker: CONSECUTIVE\_LOSSES`, got.Text)
	assert.Equal(t, "Markdown", got.ParseMode)
}

func TestTelegramBackoffSchedule(t *testing.T) {
	t.Parallel()

	tg := NewTelegram("t", "c", zerolog.Nop())
	assert.Equal(t, 2, tg.Retries)
	assert.Equal(t, time.Second, tg.Backoff(0))
	assert.Equal(t, 2*time.Second, tg.Backoff(1))
}
