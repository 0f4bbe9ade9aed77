// Package httpclient builds the shared resty client used for provider and
// backend calls: timeouts, retries on transport errors, 5xx and 429 for
// idempotent methods, and optional request logging.
package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const DefaultUserAgent = "anime-import/1.0 (+https://github.com/example/anime-import)"

// Config holds configuration for a client. Zero values fall back to defaults.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	// RetryWait is the initial backoff; retries double it up to 5s.
	RetryWait time.Duration
	UserAgent string
	// HTTPClient lets callers inject an authenticated transport (see WithBearer).
	HTTPClient *http.Client
	Logger     *zap.Logger
	Debug      bool
	// RetryUnsafe also retries POST and PATCH. Only set it for endpoints
	// where a repeated request cannot create anything, like a GraphQL query.
	RetryUnsafe bool
}

// New creates a resty client configured from cfg. MaxRetries < 0 disables retries.
func New(cfg Config) *resty.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	var c *resty.Client
	if cfg.HTTPClient != nil {
		c = resty.NewWithClient(cfg.HTTPClient)
	} else {
		c = resty.New()
	}
	c.SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(5*time.Second).
		SetRetryResetReaders(true).
		SetHeader("User-Agent", cfg.UserAgent)

	retryUnsafe := cfg.RetryUnsafe
	c.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil || r.Request == nil {
			return false
		}
		if !retryUnsafe && !idempotent(r.Request.Method) {
			return false
		}
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
	})

	if cfg.Debug && cfg.Logger != nil {
		log := cfg.Logger
		c.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			log.Debug("http response",
				zap.String("method", r.Request.Method),
				zap.String("url", r.Request.URL),
				zap.Int("status", r.StatusCode()),
				zap.Duration("took", r.Time()),
			)
			return nil
		})
	}
	return c
}

func idempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// WithBearer returns an *http.Client that attaches token as a bearer
// Authorization header. An empty token yields nil so New uses a plain client.
func WithBearer(ctx context.Context, token string) *http.Client {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return oauth2.NewClient(ctx, ts)
}

// Snippet returns at most 200 bytes of b for error messages.
func Snippet(b []byte) string {
	return string(b[:min(len(b), 200)])
}
