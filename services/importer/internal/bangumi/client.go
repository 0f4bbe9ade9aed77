// Package bangumi resolves cover art from the Bangumi subject API. Bangumi is
// used as a cover source only; its metadata is never mapped into a draft.
package bangumi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/example/anime-import/internal/platform/httpclient"
	"github.com/example/anime-import/services/importer/internal/provider"
)

const (
	DefaultBaseURL = "https://api.bgm.tv"
	// DefaultUserAgent satisfies Bangumi's requirement for a descriptive agent.
	DefaultUserAgent = "example/anime-import (https://github.com/example/anime-import)"
)

var (
	// ErrUnavailable covers transport failures, non-2xx responses and bodies
	// that do not decode.
	ErrUnavailable = errors.New("bangumi unavailable")
	// ErrNoImage means the subject exists but carries no image; another
	// provider may still have one.
	ErrNoImage = errors.New("bangumi: no image found")
)

type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      *resty.Client
}

func New(hc *resty.Client, baseURL, userAgent string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), UserAgent: userAgent, HTTP: hc}
}

type Subject struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	NameCN string `json:"name_cn"`
	Image  string `json:"image"`
	Images *struct {
		Large  string `json:"large"`
		Common string `json:"common"`
		Medium string `json:"medium"`
	} `json:"images"`
}

// CoverURL resolves common, then large, then the bare image field.
func (s *Subject) CoverURL() string {
	var candidates []string
	if s.Images != nil {
		candidates = append(candidates, s.Images.Common, s.Images.Large)
	}
	candidates = append(candidates, s.Image)
	for _, u := range candidates {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

// CoverURL returns the best cover reference for subject id.
func (c *Client) CoverURL(ctx context.Context, id int) (string, error) {
	fail := func(status int, err error) error {
		return &provider.FetchError{Provider: provider.Bangumi, ID: id, Status: status, Err: err}
	}

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.UserAgent).
		Get(c.BaseURL + "/v0/subjects/" + strconv.Itoa(id))
	if err != nil {
		return "", fail(0, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	b := resp.Body()
	if !resp.IsSuccess() {
		return "", fail(resp.StatusCode(), fmt.Errorf("%w: body=%q", ErrUnavailable, httpclient.Snippet(b)))
	}
	var s Subject
	if err := json.Unmarshal(b, &s); err != nil {
		return "", fail(resp.StatusCode(), fmt.Errorf("%w: decode error: %v", ErrUnavailable, err))
	}
	u := s.CoverURL()
	if u == "" {
		return "", fail(resp.StatusCode(), ErrNoImage)
	}
	return u, nil
}

// Reason classifies err for API responses: "unavailable", "no_image" or "".
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoImage):
		return "no_image"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	}
	return ""
}
