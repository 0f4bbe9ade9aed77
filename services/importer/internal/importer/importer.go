// Package importer turns provider URLs into anime drafts, cover artifacts and
// persisted records.
package importer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/anime-import/services/importer/internal/anilist"
	"github.com/example/anime-import/services/importer/internal/cache"
	"github.com/example/anime-import/services/importer/internal/events"
	"github.com/example/anime-import/services/importer/internal/jikan"
	"github.com/example/anime-import/services/importer/internal/provider"
	"github.com/example/anime-import/services/importer/internal/ratelimit"
	"github.com/example/anime-import/services/importer/internal/records"
	"github.com/example/anime-import/services/importer/internal/storage"
)

// ErrMetadataUnsupported is returned for providers that only serve cover art.
var ErrMetadataUnsupported = errors.New("provider supports cover import only")

// ErrEmptyBatch means a bulk request contained no URLs.
var ErrEmptyBatch = errors.New("no urls to import")

const DefaultConcurrency = 3

type AniList interface {
	GetMedia(ctx context.Context, id int) (*anilist.Media, error)
}

type Bangumi interface {
	CoverURL(ctx context.Context, id int) (string, error)
}

type CoverFetcher interface {
	Download(ctx context.Context, src provider.Source, url string) ([]byte, error)
}

type EventSink interface {
	Publish(ev events.Event)
}

// Deps are the collaborators of a Pipeline. Uploader, Records and Cache are
// only needed for bulk imports; Events is optional.
type Deps struct {
	Log      *zap.Logger
	AniList  AniList
	Jikan    jikan.Provider
	Bangumi  Bangumi
	Covers   CoverFetcher
	Uploader storage.Uploader
	Records  records.Store
	Cache    cache.Invalidator
	Events   EventSink
	Limiters map[provider.Kind]*ratelimit.Limiter
	// Concurrency bounds in-flight bulk items; <= 0 uses DefaultConcurrency.
	Concurrency int
}

type Pipeline struct {
	log         *zap.Logger
	anilist     AniList
	jikan       jikan.Provider
	bangumi     Bangumi
	covers      CoverFetcher
	uploader    storage.Uploader
	records     records.Store
	cache       cache.Invalidator
	events      EventSink
	limiters    map[provider.Kind]*ratelimit.Limiter
	concurrency int

	deleteAttempts uint
	deleteDelay    time.Duration
	now            func() time.Time
}

func New(d Deps) *Pipeline {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Cache == nil {
		d.Cache = cache.Noop{}
	}
	if d.Concurrency <= 0 {
		d.Concurrency = DefaultConcurrency
	}
	return &Pipeline{
		log:            d.Log,
		anilist:        d.AniList,
		jikan:          d.Jikan,
		bangumi:        d.Bangumi,
		covers:         d.Covers,
		uploader:       d.Uploader,
		records:        d.Records,
		cache:          d.Cache,
		events:         d.Events,
		limiters:       d.Limiters,
		concurrency:    d.Concurrency,
		deleteAttempts: 3,
		deleteDelay:    250 * time.Millisecond,
		now:            time.Now,
	}
}

func (p *Pipeline) wait(ctx context.Context, k provider.Kind) error {
	return p.limiters[k].Wait(ctx)
}

func (p *Pipeline) emit(ev events.Event) {
	if p.events == nil {
		return
	}
	ev.At = p.now().UTC()
	p.events.Publish(ev)
}
