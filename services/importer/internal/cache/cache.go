// Package cache signals the public site that the anime list and the home
// slider must be rebuilt.
package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/nats-io/nats.go"

	"github.com/example/anime-import/internal/platform/httpclient"
)

// Tags invalidated after a successful import.
var Tags = []string{"anime-list", "slider-items"}

// DefaultSubject is the core NATS subject page caches listen on.
const DefaultSubject = "cache.invalidate"

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Noop is used when no cache backend is configured.
type Noop struct{}

func (Noop) Invalidate(context.Context) error { return nil }

// Publisher is the part of *nats.Conn the invalidator needs.
type Publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

var _ Publisher = (*nats.Conn)(nil)

// NATSInvalidator publishes one message per tag; subscribers drop matching
// entries.
type NATSInvalidator struct {
	NC      Publisher
	Subject string
}

func NewNATSInvalidator(nc Publisher, subject string) *NATSInvalidator {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	return &NATSInvalidator{NC: nc, Subject: subject}
}

func (n *NATSInvalidator) Invalidate(ctx context.Context) error {
	for _, tag := range Tags {
		if err := n.NC.Publish(n.Subject, []byte(tag)); err != nil {
			return fmt.Errorf("publish %s: %w", tag, err)
		}
	}
	return n.NC.FlushWithContext(ctx)
}

// HTTPInvalidator posts {"tags":[...]} to a revalidation webhook.
type HTTPInvalidator struct {
	URL  string
	HTTP *resty.Client
}

func NewHTTPInvalidator(hc *resty.Client, url string) *HTTPInvalidator {
	return &HTTPInvalidator{URL: url, HTTP: hc}
}

func (h *HTTPInvalidator) Invalidate(ctx context.Context) error {
	resp, err := h.HTTP.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string][]string{"tags": Tags}).
		Post(h.URL)
	if err != nil {
		return fmt.Errorf("revalidate: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("revalidate: status %d body=%q", resp.StatusCode(), httpclient.Snippet(resp.Body()))
	}
	return nil
}
