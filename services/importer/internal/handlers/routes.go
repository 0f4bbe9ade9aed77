package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/example/anime-import/internal/platform/auth"
	"github.com/example/anime-import/services/importer/internal/events"
	"github.com/example/anime-import/services/importer/internal/ratelimit"
)

// Routes holds everything Register mounts. Nil optional fields leave their
// routes out.
type Routes struct {
	Log      *zap.Logger
	Verifier auth.JWTVerifier
	// Roles may use the import API; empty means admin only.
	Roles    []string
	Importer Importer
	Enqueuer Enqueuer

	Hub       *events.Hub
	WSOrigins []string

	ProxyClient  *resty.Client
	ProxyHosts   []string
	ProxyLimiter *ratelimit.Keyed

	// Covers serves the local cover store under /covers/.
	Covers http.Handler
}

// Register mounts the importer API on r. httpserver.SetupRouter must run first.
func Register(r chi.Router, rt Routes) {
	log := rt.Log
	if log == nil {
		log = zap.NewNop()
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(rt.Verifier))
		if len(rt.Roles) > 0 {
			r.Use(auth.RequireRole(rt.Roles...))
		} else {
			r.Use(auth.RequireAdmin)
		}

		r.Post("/v1/import/draft", DraftImport(rt.Importer, log))
		r.Post("/v1/import/cover", CoverImport(rt.Importer, log))
		r.Post("/v1/import/bulk", BulkImport(rt.Importer, rt.Enqueuer, log))
		if rt.Hub != nil {
			r.Get("/v1/import/events", events.Handler(rt.Hub, log, rt.WSOrigins))
		}
	})

	if rt.ProxyClient != nil && len(rt.ProxyHosts) > 0 {
		proxy := http.Handler(ProxyImage(rt.ProxyClient, rt.ProxyHosts, log))
		if rt.ProxyLimiter != nil {
			proxy = rt.ProxyLimiter.Middleware(proxy)
		}
		r.Method(http.MethodGet, "/proxy-image", proxy)
	}

	if rt.Covers != nil {
		r.Handle("/covers/*", rt.Covers)
	}
}
