package app

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/example/anime-import/internal/platform/auth"
	"github.com/example/anime-import/internal/platform/db"
	"github.com/example/anime-import/internal/platform/httpclient"
	"github.com/example/anime-import/internal/platform/natsconn"
	"github.com/example/anime-import/services/importer/internal/anilist"
	"github.com/example/anime-import/services/importer/internal/bangumi"
	"github.com/example/anime-import/services/importer/internal/cache"
	"github.com/example/anime-import/services/importer/internal/config"
	"github.com/example/anime-import/services/importer/internal/cover"
	"github.com/example/anime-import/services/importer/internal/events"
	"github.com/example/anime-import/services/importer/internal/handlers"
	"github.com/example/anime-import/services/importer/internal/importer"
	"github.com/example/anime-import/services/importer/internal/jikan"
	"github.com/example/anime-import/services/importer/internal/provider"
	"github.com/example/anime-import/services/importer/internal/queue"
	"github.com/example/anime-import/services/importer/internal/ratelimit"
	"github.com/example/anime-import/services/importer/internal/records"
	"github.com/example/anime-import/services/importer/internal/storage"
)

// App owns the importer's long-lived resources.
type App struct {
	Cfg config.Config
	Log *zap.Logger

	DB *pgxpool.Pool
	NC *nats.Conn
	js nats.JetStreamContext

	Pipeline *importer.Pipeline
	Hub      *events.Hub
	Local    *storage.LocalUploader

	queue  *queue.Publisher
	worker *queue.Worker
	outbox *records.OutboxRelay

	proxy        *resty.Client
	proxyLimiter *ratelimit.Keyed
}

// New wires the pipeline and its collaborators from cfg. Postgres and NATS are
// only connected when cfg asks for them.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log, Hub: events.NewHub()}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	base := httpclient.Config{Timeout: cfg.HTTPTimeout, MaxRetries: cfg.HTTPMaxRetries, Logger: log}

	anilistCfg := base
	anilistCfg.HTTPClient = httpclient.WithBearer(ctx, cfg.Providers.AniListToken)
	// The GraphQL Media query is read-only, so its POST may be repeated.
	anilistCfg.RetryUnsafe = true
	backendCfg := base
	backendCfg.HTTPClient = httpclient.WithBearer(ctx, cfg.BackendToken)
	bangumiCfg := base
	bangumiCfg.UserAgent = cfg.Providers.BangumiUserAgent
	if bangumiCfg.UserAgent == "" {
		bangumiCfg.UserAgent = bangumi.DefaultUserAgent
	}

	plain := httpclient.New(base)
	backend := httpclient.New(backendCfg)

	if cfg.NATSURL != "" {
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: "importer", Logger: log})
		if err != nil {
			return nil, err
		}
		a.NC = nc
		js, err := nc.JetStream()
		if err != nil {
			return nil, err
		}
		if err := natsconn.EnsureStream(js, queue.Stream, queue.StreamSubjects, 7*24*time.Hour); err != nil {
			return nil, err
		}
		a.js = js
	}

	var store records.Store
	switch cfg.RecordsBackend {
	case config.RecordsPostgres:
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{Logger: log})
		if err != nil {
			return nil, err
		}
		a.DB = pool
		pg := records.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
		if a.NC != nil {
			relay, err := records.NewOutboxRelay(log, pool, a.NC)
			if err != nil {
				return nil, err
			}
			a.outbox = relay
		}
	default:
		store = records.NewHTTPStore(backend, cfg.BackendURL)
	}

	var uploader storage.Uploader
	switch cfg.UploadBackend {
	case config.UploadLocal:
		local, err := storage.NewLocalUploader(afero.NewOsFs(), cfg.LocalCoverDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		a.Local = local
		uploader = local
	default:
		uploader = storage.NewHTTPUploader(backend, cfg.BackendURL)
	}

	var sink importer.EventSink = a.Hub
	if a.js != nil {
		sink = events.Fanout{a.Hub, events.NewRelay(a.js, log)}
	}

	var inv cache.Invalidator = cache.Noop{}
	switch {
	case a.NC != nil:
		inv = cache.NewNATSInvalidator(a.NC, cache.DefaultSubject)
	case cfg.RevalidateURL != "":
		inv = cache.NewHTTPInvalidator(plain, cfg.RevalidateURL)
	}

	proxyURL := cfg.Proxy.URL
	if proxyURL == "" && cfg.PublicBaseURL != "" && cfg.ProxyEnabled() {
		proxyURL = cfg.PublicBaseURL + "/proxy-image"
	}
	if cfg.ProxyEnabled() {
		// The proxy handler owns its client's redirect policy.
		a.proxy = httpclient.New(base)
		a.proxyLimiter = ratelimit.NewKeyed(cfg.Proxy.RPS, cfg.Proxy.Burst)
	}

	a.Pipeline = importer.New(importer.Deps{
		Log:      log,
		AniList:  anilist.New(httpclient.New(anilistCfg), cfg.Providers.AniListURL),
		Jikan:    jikan.New(plain, cfg.Providers.JikanBaseURL),
		Bangumi:  bangumi.New(httpclient.New(bangumiCfg), cfg.Providers.BangumiBaseURL, bangumiCfg.UserAgent),
		Covers:   cover.NewFetcher(plain, proxyURL),
		Uploader: uploader,
		Records:  store,
		Cache:    inv,
		Events:   sink,
		Limiters: map[provider.Kind]*ratelimit.Limiter{
			provider.AniList:     ratelimit.NewRPS(cfg.Providers.AniListRPS),
			provider.MyAnimeList: ratelimit.NewRPS(cfg.Providers.JikanRPS),
			provider.Bangumi:     ratelimit.NewRPS(cfg.Providers.BangumiRPS),
		},
		Concurrency: cfg.BulkConcurrency,
	})

	if cfg.AsyncBulk && a.NC != nil {
		w, err := queue.NewWorker(log, a.NC, queue.Handlers{Bulk: a.runBulkJob})
		if err != nil {
			return nil, err
		}
		a.worker = w
		a.queue = &queue.Publisher{JS: a.js}
	}

	ok = true
	return a, nil
}

// Routes returns the HTTP surface of a.
func (a *App) Routes() handlers.Routes {
	rt := handlers.Routes{
		Log:          a.Log,
		Verifier:     auth.JWTVerifier{Secret: []byte(a.Cfg.JWTSecret)},
		Roles:        a.Cfg.ImportRoles,
		Importer:     a.Pipeline,
		Hub:          a.Hub,
		WSOrigins:    a.Cfg.WSOrigins,
		ProxyClient:  a.proxy,
		ProxyHosts:   a.Cfg.Proxy.AllowedHosts,
		ProxyLimiter: a.proxyLimiter,
	}
	// Enqueuer stays a nil interface when async bulk is off.
	if a.queue != nil {
		rt.Enqueuer = a.queue
	}
	if a.Local != nil {
		rt.Covers = a.Local.Handler()
	}
	return rt
}

// Start runs the background loops until ctx is done.
func (a *App) Start(ctx context.Context) {
	if a.worker != nil {
		go func() {
			if err := a.worker.Run(ctx); err != nil {
				a.Log.Error("bulk worker stopped", zap.Error(err))
			}
		}()
	}
	if a.outbox != nil {
		go func() {
			if err := a.outbox.Run(ctx); err != nil {
				a.Log.Error("outbox relay stopped", zap.Error(err))
			}
		}()
	}
	if a.proxyLimiter != nil {
		go func() {
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					a.proxyLimiter.Sweep()
				}
			}
		}()
	}
}

// Ready backs /readyz.
func (a *App) Ready() error {
	if a.NC != nil && !a.NC.IsConnected() {
		return errors.New("nats not connected")
	}
	if a.DB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return a.DB.Ping(ctx)
	}
	return nil
}

// runBulkJob is the queue handler. A batch that has started is never
// redelivered: items may already be persisted.
func (a *App) runBulkJob(ctx context.Context, job queue.BulkJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	report := a.Pipeline.RunBatch(ctx, job.BatchID, job.URLs)
	a.Log.Info("async bulk import finished",
		zap.String("batch_id", job.BatchID),
		zap.String("requested_by", job.RequestedBy),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	if err := a.queue.Done(context.WithoutCancel(ctx), job.BatchID, report); err != nil {
		a.Log.Warn("publish bulk report failed", zap.String("batch_id", job.BatchID), zap.Error(err))
	}
	return nil
}

func (a *App) Close() {
	if a.NC != nil {
		_ = a.NC.Drain()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
