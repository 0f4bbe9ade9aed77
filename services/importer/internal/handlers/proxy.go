package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/example/anime-import/internal/platform/api"
	"github.com/example/anime-import/internal/platform/httpserver"
	"github.com/example/anime-import/services/importer/internal/cover"
)

const maxProxyRedirects = 5

// ProxyImage fetches ?url= from an allow-listed host and streams it back, so
// browsers can load covers from hosts that do not send CORS headers. Only
// image responses are passed through.
//
// ProxyImage installs a redirect policy on hc that keeps every hop on the
// allowlist, so hc must not be shared with other callers.
func ProxyImage(hc *resty.Client, allowedHosts []string, log *zap.Logger) http.HandlerFunc {
	hc.SetRedirectPolicy(allowlistRedirects(allowedHosts))

	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		raw := strings.TrimSpace(r.URL.Query().Get("url"))
		u, err := url.Parse(raw)
		if raw == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			api.BadRequest(w, "INVALID_URL", "url must be an absolute http(s) URL", rid, nil)
			return
		}
		if !hostAllowed(u.Hostname(), allowedHosts) {
			api.Forbidden(w, "HOST_NOT_ALLOWED", "Host is not allowed", rid)
			return
		}

		resp, err := hc.R().
			SetContext(r.Context()).
			SetDoNotParseResponse(true).
			Get(u.String())
		if err != nil {
			log.Warn("proxy fetch failed", zap.String("url", raw), zap.Error(err))
			api.BadGateway(w, "IMAGE_DOWNLOAD_FAILED", "Failed to fetch image", rid, nil)
			return
		}
		body := resp.RawBody()
		defer body.Close()

		if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
			api.BadGateway(w, "IMAGE_DOWNLOAD_FAILED", "Failed to fetch image", rid,
				map[string]any{"status": resp.StatusCode()})
			return
		}

		ct := resp.Header().Get("Content-Type")
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/") {
			log.Warn("proxy refused non-image response", zap.String("url", raw), zap.String("content_type", ct))
			api.BadGateway(w, "NOT_AN_IMAGE", "Upstream did not return an image", rid,
				map[string]any{"content_type": ct})
			return
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, io.LimitReader(body, cover.DefaultMaxBytes)); err != nil {
			log.Debug("proxy copy interrupted", zap.String("url", raw), zap.Error(err))
		}
	}
}

func allowlistRedirects(allowedHosts []string) resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxProxyRedirects {
			return fmt.Errorf("stopped after %d redirects", maxProxyRedirects)
		}
		if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
			return errors.New("redirect to non-http scheme")
		}
		if !hostAllowed(req.URL.Hostname(), allowedHosts) {
			return fmt.Errorf("redirect to %s is not allowed", req.URL.Hostname())
		}
		return nil
	})
}

// hostAllowed matches host against allowed entries exactly or as a subdomain.
func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}
