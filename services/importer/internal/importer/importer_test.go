package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/anime-import/services/importer/internal/anilist"
	"github.com/example/anime-import/services/importer/internal/anime"
	"github.com/example/anime-import/services/importer/internal/cover"
	"github.com/example/anime-import/services/importer/internal/events"
	"github.com/example/anime-import/services/importer/internal/jikan"
	"github.com/example/anime-import/services/importer/internal/provider"
	"github.com/example/anime-import/services/importer/internal/records"
)

// ── fakes ──────────────────────────────────────────────────────────────────

type fakeAniList struct {
	media map[int]*anilist.Media
	calls atomic.Int32
}

func (f *fakeAniList) GetMedia(_ context.Context, id int) (*anilist.Media, error) {
	f.calls.Add(1)
	m, ok := f.media[id]
	if !ok {
		return nil, &provider.FetchError{Provider: provider.AniList, ID: id, Status: 404, Err: errors.New("Not Found.")}
	}
	return m, nil
}

type fakeJikan struct {
	data map[int]*jikan.AnimeData
}

func (f *fakeJikan) GetAnime(_ context.Context, id int) (*jikan.AnimeResponse, error) {
	d, ok := f.data[id]
	if !ok {
		return nil, &provider.FetchError{Provider: provider.MyAnimeList, ID: id, Status: 404, Err: errors.New("not found")}
	}
	return &jikan.AnimeResponse{Data: d}, nil
}

type fakeBangumi struct {
	url string
}

func (f *fakeBangumi) CoverURL(context.Context, int) (string, error) {
	return f.url, nil
}

type fakeCovers struct {
	data []byte
	err  error

	mu   sync.Mutex
	srcs []provider.Source
}

func (f *fakeCovers) Download(_ context.Context, src provider.Source, _ string) ([]byte, error) {
	f.mu.Lock()
	f.srcs = append(f.srcs, src)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeUploader struct {
	mu             sync.Mutex
	uploads        int
	deletes        []string
	deleteFailures int
}

func (f *fakeUploader) Upload(_ context.Context, a *anime.Artifact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return fmt.Sprintf("https://cdn.test/covers/%d%s", f.uploads, path.Ext(a.Filename)), nil
}

func (f *fakeUploader) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, url)
	if f.deleteFailures > 0 {
		f.deleteFailures--
		return errors.New("storage temporarily unavailable")
	}
	return nil
}

type fakeStore struct {
	fail  map[string]bool
	delay time.Duration

	mu      sync.Mutex
	created []anime.Record

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeStore) Create(ctx context.Context, rec anime.Record) (string, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		cur := f.maxInflight.Load()
		if n <= cur || f.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail[rec.Title] {
		return "", &records.PersistenceError{Status: 409, Message: "Slug already exists", Err: records.ErrDuplicate}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, rec)
	return fmt.Sprintf("rec-%d", len(f.created)), nil
}

type fakeCache struct {
	calls atomic.Int32
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.calls.Add(1)
	return nil
}

type fakeEvents struct {
	mu  sync.Mutex
	evs []events.Event
}

func (f *fakeEvents) Publish(ev events.Event) {
	f.mu.Lock()
	f.evs = append(f.evs, ev)
	f.mu.Unlock()
}

func (f *fakeEvents) count(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.evs {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// ── fixtures ───────────────────────────────────────────────────────────────

func coverPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func media(id int, title string) *anilist.Media {
	return &anilist.Media{
		ID:         id,
		Title:      anilist.Title{Romaji: title},
		Format:     "TV",
		Status:     "FINISHED",
		CoverImage: anilist.CoverImage{Large: fmt.Sprintf("https://img.test/%d.png", id)},
	}
}

type harness struct {
	p        *Pipeline
	anilist  *fakeAniList
	covers   *fakeCovers
	uploader *fakeUploader
	store    *fakeStore
	cache    *fakeCache
	events   *fakeEvents
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mal := &jikan.AnimeData{MalID: 2, Title: "Beta", Type: "Movie", Status: "Finished Airing"}
	mal.Images.JPG.LargeImageURL = "https://img.test/2.jpg"

	h := &harness{
		anilist: &fakeAniList{media: map[int]*anilist.Media{
			1: media(1, "Alpha"),
			3: media(3, "Gamma"),
			7: media(7, "   "),
		}},
		covers:   &fakeCovers{data: coverPNG(t)},
		uploader: &fakeUploader{},
		store:    &fakeStore{fail: map[string]bool{"Gamma": true}},
		cache:    &fakeCache{},
		events:   &fakeEvents{},
	}
	h.p = New(Deps{
		AniList:  h.anilist,
		Jikan:    &fakeJikan{data: map[int]*jikan.AnimeData{2: mal}},
		Bangumi:  &fakeBangumi{url: "https://lain.bgm.tv/pic/cover/l/4.jpg"},
		Covers:   h.covers,
		Uploader: h.uploader,
		Records:  h.store,
		Cache:    h.cache,
		Events:   h.events,
	})
	h.p.now = func() time.Time { return time.UnixMilli(1700000000000) }
	h.p.deleteDelay = time.Millisecond
	return h
}

// ── Draft / Cover ──────────────────────────────────────────────────────────

func TestDraft_MaterializesCover(t *testing.T) {
	h := newHarness(t)

	pv, err := h.p.Draft(t.Context(), "https://anilist.co/anime/1/alpha")
	require.NoError(t, err)
	require.NoError(t, pv.CoverErr)
	assert.Equal(t, "Alpha", pv.Draft.Title)
	require.True(t, pv.Draft.Cover.Materialized())
	assert.True(t, pv.Draft.Cover.Artifact.Canonical)
	assert.Equal(t, "cover_anilist_1_1700000000000.jpg", pv.Draft.Cover.Artifact.Filename)
	assert.Equal(t, "https://img.test/1.png", pv.Draft.Cover.Artifact.SourceURL)
	assert.Empty(t, h.store.created, "draft never persists")
}

func TestDraft_CoverFailureIsReportedNotFatal(t *testing.T) {
	h := newHarness(t)
	h.covers.err = &cover.DownloadError{URL: "https://img.test/2.jpg", Status: 403}

	pv, err := h.p.Draft(t.Context(), "https://myanimelist.net/anime/2")
	require.NoError(t, err)
	var de *cover.DownloadError
	require.True(t, errors.As(pv.CoverErr, &de))
	assert.Equal(t, "https://img.test/2.jpg", pv.Draft.Cover.URL)
	assert.False(t, pv.Draft.Cover.Materialized())
	assert.Equal(t, anime.TypeMovie, pv.Draft.Type)
}

func TestDraft_InvalidURLMakesNoCalls(t *testing.T) {
	h := newHarness(t)

	_, err := h.p.Draft(t.Context(), "https://kitsu.io/anime/1")
	assert.ErrorIs(t, err, provider.ErrInvalidSourceURL)
	assert.Zero(t, h.anilist.calls.Load())
	assert.Empty(t, h.covers.srcs)
}

func TestDraft_BangumiUnsupported(t *testing.T) {
	h := newHarness(t)

	_, err := h.p.Draft(t.Context(), "https://bangumi.tv/subject/4")
	assert.ErrorIs(t, err, ErrMetadataUnsupported)
}

func TestDraft_ProviderError(t *testing.T) {
	h := newHarness(t)

	_, err := h.p.Draft(t.Context(), "https://anilist.co/anime/99")
	fe, ok := provider.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, 404, fe.Status)
}

func TestCover_BangumiPassthrough(t *testing.T) {
	h := newHarness(t)

	a, err := h.p.Cover(t.Context(), "https://bangumi.tv/subject/4")
	require.NoError(t, err)
	assert.False(t, a.Canonical)
	assert.Equal(t, h.covers.data, a.Data)
	assert.Equal(t, "https://lain.bgm.tv/pic/cover/l/4.jpg", a.SourceURL)
	assert.Equal(t, "image/png", a.MIMEType)
	assert.Equal(t, []provider.Source{{Kind: provider.Bangumi, ID: 4}}, h.covers.srcs)
}

func TestCover_AniList(t *testing.T) {
	h := newHarness(t)

	a, err := h.p.Cover(t.Context(), "https://anilist.co/anime/3")
	require.NoError(t, err)
	assert.True(t, a.Canonical)
	assert.Equal(t, "image/jpeg", a.MIMEType)
}

// ── Bulk ───────────────────────────────────────────────────────────────────

func TestBulk_MixedBatch(t *testing.T) {
	h := newHarness(t)
	text := strings.Join([]string{
		"https://anilist.co/anime/1",
		"",
		"  https://myanimelist.net/anime/2  ",
		"https://example.com/anime/5",
		"https://anilist.co/anime/3",
		"https://bangumi.tv/subject/4",
		"https://anilist.co/anime/7",
	}, "\r\n")

	rep, err := h.p.Bulk(t.Context(), text)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rep.BatchID, "batch-"))
	assert.Equal(t, 6, rep.Total)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Equal(t, 4, rep.Failed)
	require.Len(t, rep.Items, 6)
	for i, it := range rep.Items {
		assert.Equal(t, i, it.Index)
	}

	alpha := rep.Items[0]
	assert.Equal(t, ItemSucceeded, alpha.Status)
	assert.Equal(t, "alpha-1700000000000", alpha.Slug)
	assert.True(t, strings.HasPrefix(alpha.RecordID, "rec-"))
	assert.NotEmpty(t, alpha.CoverURL)

	assert.Equal(t, ItemSucceeded, rep.Items[1].Status)
	assert.Equal(t, "https://myanimelist.net/anime/2", rep.Items[1].URL)

	assert.ErrorIs(t, rep.Items[2].Err, provider.ErrInvalidSourceURL)
	assert.Equal(t, "https://example.com/anime/5", rep.Items[2].Label())

	gamma := rep.Items[3]
	assert.Equal(t, ItemFailed, gamma.Status)
	assert.Equal(t, "Gamma", gamma.Label())
	var pe *records.PersistenceError
	require.True(t, errors.As(gamma.Err, &pe))
	assert.Empty(t, gamma.CoverURL)
	assert.Empty(t, gamma.CleanupError)
	assert.Len(t, h.uploader.deletes, 1, "uploaded cover is deleted when persistence fails")

	assert.ErrorIs(t, rep.Items[4].Err, ErrMetadataUnsupported)

	var ve *anime.ValidationError
	assert.True(t, errors.As(rep.Items[5].Err, &ve))

	assert.EqualValues(t, 1, h.cache.calls.Load(), "cache invalidated once per batch")
	assert.True(t, rep.CacheInvalidated)

	assert.Equal(t, 6, h.events.count(events.ItemStarted))
	assert.Equal(t, 6, h.events.count(events.ItemFinished))
	assert.Equal(t, 1, h.events.count(events.BatchFinished))
	assert.Equal(t, events.BatchFinished, h.events.evs[len(h.events.evs)-1].Type)
}

func TestBulk_AllFailedSkipsInvalidation(t *testing.T) {
	h := newHarness(t)

	rep, err := h.p.Bulk(t.Context(), "https://anilist.co/anime/3\nnot a url")
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Succeeded)
	assert.Equal(t, 2, rep.Failed)
	assert.Zero(t, h.cache.calls.Load())
	assert.False(t, rep.CacheInvalidated)
}

func TestBulk_Empty(t *testing.T) {
	h := newHarness(t)

	_, err := h.p.Bulk(t.Context(), "\n  \n")
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestBulk_BoundedConcurrency(t *testing.T) {
	h := newHarness(t)
	h.p.concurrency = 2
	h.store.delay = 20 * time.Millisecond

	urls := make([]string, 8)
	for i := range urls {
		urls[i] = "https://anilist.co/anime/1"
	}
	rep := h.p.RunBatch(t.Context(), "b", urls)
	assert.Equal(t, 8, rep.Succeeded)
	assert.LessOrEqual(t, h.store.maxInflight.Load(), int32(2))
	assert.GreaterOrEqual(t, h.store.maxInflight.Load(), int32(1))
}

func TestBulk_CoverFailureStillCreatesRecord(t *testing.T) {
	h := newHarness(t)
	h.covers.err = &cover.DownloadError{URL: "https://img.test/1.png", Status: 500}

	rep, err := h.p.Bulk(t.Context(), "https://anilist.co/anime/1")
	require.NoError(t, err)
	it := rep.Items[0]
	assert.Equal(t, ItemSucceeded, it.Status)
	assert.Empty(t, it.CoverURL)
	assert.Contains(t, it.CoverError, "status 500")
	require.Len(t, h.store.created, 1)
	assert.Empty(t, h.store.created[0].CoverURL)
}

func TestBulk_CompensationRetries(t *testing.T) {
	h := newHarness(t)
	h.uploader.deleteFailures = 2

	rep, err := h.p.Bulk(t.Context(), "https://anilist.co/anime/3")
	require.NoError(t, err)
	assert.Empty(t, rep.Items[0].CleanupError)
	assert.Len(t, h.uploader.deletes, 3)
}

func TestBulk_CompensationGivesUp(t *testing.T) {
	h := newHarness(t)
	h.uploader.deleteFailures = 10

	rep, err := h.p.Bulk(t.Context(), "https://anilist.co/anime/3")
	require.NoError(t, err)
	assert.Contains(t, rep.Items[0].CleanupError, "storage temporarily unavailable")
	assert.Len(t, h.uploader.deletes, 3)
}

func TestBulk_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	rep, err := h.p.Bulk(ctx, "https://anilist.co/anime/1\nhttps://anilist.co/anime/3")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Failed)
	for _, it := range rep.Items {
		assert.ErrorIs(t, it.Err, context.Canceled)
	}
	assert.Zero(t, h.anilist.calls.Load())
	assert.Zero(t, h.cache.calls.Load())
}
