package importer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/example/anime-import/services/importer/internal/anime"
	"github.com/example/anime-import/services/importer/internal/events"
	"github.com/example/anime-import/services/importer/internal/provider"
)

type ItemStatus string

const (
	ItemSucceeded ItemStatus = "succeeded"
	ItemFailed    ItemStatus = "failed"
)

// ItemResult is the outcome of one bulk line. Err keeps the typed error for
// callers in process; Error is its message for JSON consumers.
type ItemResult struct {
	Index    int        `json:"index"`
	URL      string     `json:"url"`
	Title    string     `json:"title,omitempty"`
	Status   ItemStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
	Err      error      `json:"-"`
	RecordID string     `json:"record_id,omitempty"`
	Slug     string     `json:"slug,omitempty"`
	CoverURL string     `json:"cover_url,omitempty"`
	// CoverError is set when the record was created without a cover.
	CoverError string `json:"cover_error,omitempty"`
	// CleanupError is set when the compensating cover delete failed too.
	CleanupError string `json:"cleanup_error,omitempty"`
}

// Label is the title when known, else the URL.
func (r ItemResult) Label() string {
	if r.Title != "" {
		return r.Title
	}
	return r.URL
}

type BulkReport struct {
	BatchID          string       `json:"batch_id"`
	Total            int          `json:"total"`
	Succeeded        int          `json:"succeeded"`
	Failed           int          `json:"failed"`
	Items            []ItemResult `json:"items"`
	CacheInvalidated bool         `json:"cache_invalidated"`
	CacheError       string       `json:"cache_error,omitempty"`
}

// NewBatchID returns a fresh batch identifier.
func NewBatchID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return "batch-" + id, nil
}

// Bulk imports every non-blank line of text.
func (p *Pipeline) Bulk(ctx context.Context, text string) (*BulkReport, error) {
	urls := provider.SplitURLs(text)
	if len(urls) == 0 {
		return nil, ErrEmptyBatch
	}
	batchID, err := NewBatchID()
	if err != nil {
		return nil, err
	}
	return p.RunBatch(ctx, batchID, urls), nil
}

// RunBatch imports urls concurrently, at most p.concurrency at a time. Every
// url gets a result at its own index; one failure never stops the others.
// The cache is invalidated once if anything succeeded.
func (p *Pipeline) RunBatch(ctx context.Context, batchID string, urls []string) *BulkReport {
	report := &BulkReport{
		BatchID: batchID,
		Total:   len(urls),
		Items:   make([]ItemResult, len(urls)),
	}
	start := p.now()
	p.log.Info("bulk import started",
		zap.String("batch_id", batchID),
		zap.Int("total", len(urls)),
		zap.Int("concurrency", p.concurrency),
	)

	var succeeded atomic.Int64
	workers := pool.New().WithMaxGoroutines(p.concurrency)
	for i, u := range urls {
		workers.Go(func() {
			res := p.importOne(ctx, batchID, i, u)
			report.Items[i] = res
			if res.Status == ItemSucceeded {
				succeeded.Add(1)
			}
		})
	}
	workers.Wait()

	report.Succeeded = int(succeeded.Load())
	report.Failed = report.Total - report.Succeeded

	if report.Succeeded > 0 {
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := p.cache.Invalidate(ictx); err != nil {
			p.log.Warn("cache invalidation failed", zap.String("batch_id", batchID), zap.Error(err))
			report.CacheError = err.Error()
		} else {
			report.CacheInvalidated = true
		}
		cancel()
	}

	p.log.Info("bulk import finished",
		zap.String("batch_id", batchID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("took", p.now().Sub(start)),
	)
	p.emit(events.Event{
		Type:      events.BatchFinished,
		BatchID:   batchID,
		Total:     report.Total,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
	})
	return report
}

func (p *Pipeline) importOne(ctx context.Context, batchID string, i int, rawURL string) (res ItemResult) {
	res = ItemResult{Index: i, URL: rawURL}
	p.emit(events.Event{Type: events.ItemStarted, BatchID: batchID, Index: i, URL: rawURL})
	defer func() {
		if res.Err != nil {
			res.Status = ItemFailed
			res.Error = res.Err.Error()
			p.log.Warn("bulk item failed",
				zap.String("batch_id", batchID),
				zap.Int("index", i),
				zap.String("url", rawURL),
				zap.Error(res.Err),
			)
		} else {
			res.Status = ItemSucceeded
		}
		p.emit(events.Event{
			Type:    events.ItemFinished,
			BatchID: batchID,
			Index:   i,
			URL:     rawURL,
			Title:   res.Title,
			Status:  string(res.Status),
			Error:   res.Error,
		})
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	src, err := provider.Detect(rawURL)
	if err != nil {
		res.Err = err
		return res
	}
	d, err := p.fetchDraft(ctx, src)
	if err != nil {
		res.Err = err
		return res
	}
	res.Title = d.Title
	if err := d.Validate(); err != nil {
		res.Err = err
		return res
	}

	if err := p.materialize(ctx, &d); err != nil {
		res.CoverError = err.Error()
	} else if res.CoverURL, err = p.uploader.Upload(ctx, d.Cover.Artifact); err != nil {
		res.CoverError = err.Error()
	}
	if res.CoverError != "" {
		p.log.Warn("bulk item has no cover",
			zap.String("batch_id", batchID),
			zap.String("source", src.String()),
			zap.String("error", res.CoverError),
		)
	}

	res.Slug = anime.Slug(d.Title, src, p.now())
	res.RecordID, err = p.records.Create(ctx, d.Record(res.Slug, res.CoverURL))
	if err != nil {
		res.Err = err
		if res.CoverURL != "" {
			if derr := p.deleteCover(ctx, res.CoverURL); derr != nil {
				res.CleanupError = derr.Error()
				p.log.Error("compensating cover delete failed",
					zap.String("batch_id", batchID),
					zap.String("cover_url", res.CoverURL),
					zap.Error(derr),
				)
			}
			res.CoverURL = ""
		}
		return res
	}
	return res
}

// deleteCover removes an orphaned upload, retrying transient failures. It
// runs even when ctx is already cancelled.
func (p *Pipeline) deleteCover(ctx context.Context, url string) error {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	err := retry.Do(
		func() error { return p.uploader.Delete(dctx, url) },
		retry.Context(dctx),
		retry.Attempts(p.deleteAttempts),
		retry.Delay(p.deleteDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("delete orphaned cover: %w", err)
	}
	return nil
}
