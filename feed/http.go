package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type HTTPOptions struct {
	Timeout   time.Duration
	Retries   int
	BaseDelay time.Duration
	RPS       float64
	Burst     int
	UserAgent string
}

func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		Timeout:   15 * time.Second,
		Retries:   3,
		BaseDelay: 500 * time.Millisecond,
		RPS:       8,
		Burst:     4,
		UserAgent: "scanner/1.0",
	}
}

// HTTPClient is a JSON GET client with a per-host token bucket, a per-host
// circuit breaker and bounded retries.
type HTTPClient struct {
	HTTP *http.Client
	Opts HTTPOptions
	Log  zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewHTTPClient(opts HTTPOptions, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		HTTP:     &http.Client{Timeout: opts.Timeout},
		Opts:     opts,
		Log:      log,
		limiters: map[string]*rate.Limiter{},
		breakers: map[string]*gobreaker.CircuitBreaker{},
	}
}

func (c *HTTPClient) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limiters == nil {
		c.limiters = map[string]*rate.Limiter{}
	}
	l, ok := c.limiters[host]
	if !ok {
		limit := rate.Inf
		if c.Opts.RPS > 0 {
			limit = rate.Limit(c.Opts.RPS)
		}
		burst := c.Opts.Burst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(limit, burst)
		c.limiters[host] = l
	}
	return l
}

func (c *HTTPClient) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.breakers == nil {
		c.breakers = map[string]*gobreaker.CircuitBreaker{}
	}
	b, ok := c.breakers[host]
	if !ok {
		st := gobreaker.Settings{
			Name:     host,
			Interval: 60 * time.Second,
			Timeout:  60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Client errors say nothing about the health of the host.
			IsSuccessful: func(err error) bool {
				var se *StatusError
				if errors.As(err, &se) {
					return !se.retryable()
				}
				return err == nil
			},
		}
		b = gobreaker.NewCircuitBreaker(st)
		c.breakers[host] = b
	}
	return b
}

// GetJSON fetches u and decodes the body into dest.
func (c *HTTPClient) GetJSON(ctx context.Context, u string, dest any) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return err
	}
	host := parsed.Host

	var last error
	for attempt := 0; attempt <= c.Opts.Retries; attempt++ {
		if attempt > 0 {
			wait := c.Opts.BaseDelay << (attempt - 1)
			c.Log.Debug().Err(last).Str("host", host).Int("attempt", attempt).Dur("wait", wait).Msg("retrying request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := c.limiter(host).Wait(ctx); err != nil {
			return err
		}

		body, err := c.breaker(host).Execute(func() (any, error) {
			return c.do(ctx, u)
		})
		if err == nil {
			if err := json.Unmarshal(body.([]byte), dest); err != nil {
				return fmt.Errorf("decode %s: %w", parsed.Path, err)
			}
			return nil
		}

		last = err
		if !retryable(err) {
			break
		}
	}
	return last
}

func (c *HTTPClient) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.Opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.Opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return io.ReadAll(resp.Body)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
