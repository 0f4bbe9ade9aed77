// Package cover downloads remote cover images, routing Bangumi through the
// image proxy.
package cover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/example/anime-import/services/importer/internal/provider"
)

// DefaultMaxBytes caps a single cover download.
const DefaultMaxBytes = 20 << 20

var ErrTooLarge = errors.New("cover exceeds size limit")

// DownloadError reports a failed cover fetch: transport failure or a non-2xx
// status.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download cover %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("download cover %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

type Fetcher struct {
	HTTP *resty.Client
	// ProxyURL is the /proxy-image endpoint Bangumi covers are fetched through.
	ProxyURL string
	MaxBytes int64
}

func NewFetcher(hc *resty.Client, proxyURL string) *Fetcher {
	return &Fetcher{HTTP: hc, ProxyURL: strings.TrimSpace(proxyURL), MaxBytes: DefaultMaxBytes}
}

// RequestURL returns the URL actually fetched for a cover from src.
func (f *Fetcher) RequestURL(src provider.Source, rawURL string) string {
	if src.Kind != provider.Bangumi || f.ProxyURL == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(f.ProxyURL, "?") {
		sep = "&"
	}
	return f.ProxyURL + sep + "url=" + url.QueryEscape(rawURL)
}

// Download fetches rawURL. Any failure is a *DownloadError.
func (f *Fetcher) Download(ctx context.Context, src provider.Source, rawURL string) ([]byte, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, &DownloadError{URL: rawURL, Err: errors.New("empty url")}
	}
	if src.Kind == provider.Bangumi && f.ProxyURL == "" {
		return nil, &DownloadError{URL: rawURL, Err: errors.New("bangumi covers require an image proxy")}
	}
	target := f.RequestURL(src, rawURL)

	resp, err := f.HTTP.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
		return nil, &DownloadError{URL: rawURL, Status: resp.StatusCode(), Err: fmt.Errorf("status %d", resp.StatusCode())}
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	b, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}
	if int64(len(b)) > limit {
		return nil, &DownloadError{URL: rawURL, Err: ErrTooLarge}
	}
	return b, nil
}
