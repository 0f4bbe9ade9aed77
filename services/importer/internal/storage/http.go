package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/example/anime-import/internal/platform/httpclient"
	"github.com/example/anime-import/services/importer/internal/anime"
)

// HTTPUploader talks to the backend's /upload/cover endpoint. Authentication
// is carried by the injected client.
type HTTPUploader struct {
	BaseURL string
	HTTP    *resty.Client
}

func NewHTTPUploader(hc *resty.Client, baseURL string) *HTTPUploader {
	return &HTTPUploader{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		URL string `json:"url"`
		Key string `json:"key"`
	} `json:"data"`
}

func (u *HTTPUploader) Upload(ctx context.Context, a *anime.Artifact) (string, error) {
	if a == nil || len(a.Data) == 0 {
		return "", &Error{Op: "upload", Err: errors.New("empty artifact")}
	}
	resp, err := u.HTTP.R().
		SetContext(ctx).
		SetMultipartField("file", a.Filename, a.MIMEType, bytes.NewReader(a.Data)).
		Post(u.BaseURL + "/upload/cover")
	if err != nil {
		return "", &Error{Op: "upload", Err: err}
	}
	b := resp.Body()
	if !resp.IsSuccess() {
		return "", &Error{Op: "upload", Status: resp.StatusCode(), Err: fmt.Errorf("body=%q", httpclient.Snippet(b))}
	}
	var out uploadResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return "", &Error{Op: "upload", Status: resp.StatusCode(), Err: fmt.Errorf("decode error: %w", err)}
	}
	if !out.Success || strings.TrimSpace(out.Data.URL) == "" {
		msg := out.Message
		if msg == "" {
			msg = "no url in response"
		}
		return "", &Error{Op: "upload", Status: resp.StatusCode(), Err: errors.New(msg)}
	}
	return out.Data.URL, nil
}

func (u *HTTPUploader) Delete(ctx context.Context, url string) error {
	resp, err := u.HTTP.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"url": url}).
		Delete(u.BaseURL + "/upload/cover")
	if err != nil {
		return &Error{Op: "delete", Err: err}
	}
	if !resp.IsSuccess() {
		return &Error{Op: "delete", Status: resp.StatusCode(), Err: fmt.Errorf("body=%q", httpclient.Snippet(resp.Body()))}
	}
	return nil
}
