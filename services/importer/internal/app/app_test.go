package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/anime-import/services/importer/internal/config"
	"github.com/example/anime-import/services/importer/internal/handlers"
)

func localConfig(t *testing.T) config.Config {
	return config.Config{
		HTTPTimeout:     time.Second,
		BulkConcurrency: 2,
		RecordsBackend:  config.RecordsHTTP,
		BackendURL:      "http://backend.invalid",
		UploadBackend:   config.UploadLocal,
		LocalCoverDir:   t.TempDir(),
		PublicBaseURL:   "http://importer.local",
		JWTSecret:       "secret",
		Proxy:           config.ProxyConfig{AllowedHosts: []string{"lain.bgm.tv"}, RPS: 1, Burst: 1},
	}
}

func TestNew_LocalWiring(t *testing.T) {
	a, err := New(context.Background(), localConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Pipeline)
	require.NotNil(t, a.Local)
	assert.Nil(t, a.NC)
	assert.Nil(t, a.DB)
	assert.NoError(t, a.Ready())

	rt := a.Routes()
	assert.Nil(t, rt.Enqueuer, "async bulk is off without NATS")
	assert.NotNil(t, rt.Covers)
	assert.NotNil(t, rt.ProxyClient)
	assert.NotNil(t, rt.ProxyLimiter)
}

func TestNew_ProxyDisabled(t *testing.T) {
	cfg := localConfig(t)
	cfg.Proxy.AllowedHosts = nil

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	r := chi.NewRouter()
	handlers.Register(r, a.Routes())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/proxy-image?url=https://lain.bgm.tv/x.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/import/draft", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
