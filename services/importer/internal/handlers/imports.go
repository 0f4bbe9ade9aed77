package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/anime-import/internal/platform/api"
	"github.com/example/anime-import/internal/platform/auth"
	"github.com/example/anime-import/internal/platform/httpserver"
	"github.com/example/anime-import/services/importer/internal/anime"
	"github.com/example/anime-import/services/importer/internal/importer"
	"github.com/example/anime-import/services/importer/internal/provider"
	"github.com/example/anime-import/services/importer/internal/queue"
)

// Importer is the part of importer.Pipeline the HTTP API drives.
type Importer interface {
	Draft(ctx context.Context, rawURL string) (*importer.Preview, error)
	Cover(ctx context.Context, rawURL string) (*anime.Artifact, error)
	RunBatch(ctx context.Context, batchID string, urls []string) *importer.BulkReport
}

// Enqueuer hands bulk batches to the async worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.BulkJob) error
}

type coverJSON struct {
	*anime.Artifact
	Data string `json:"data"`
}

type draftResp struct {
	Draft      anime.Draft `json:"draft"`
	Cover      *coverJSON  `json:"cover"`
	CoverError string      `json:"cover_error,omitempty"`
}

// DraftImport fetches metadata and the cover for one URL without persisting.
func DraftImport(imp Importer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req urlReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}

		pv, err := imp.Draft(r.Context(), req.URL)
		if err != nil {
			log.Warn("draft import failed", zap.String("url", req.URL), zap.Error(err))
			writeImportError(w, rid, err)
			return
		}

		out := draftResp{Draft: pv.Draft}
		if a := pv.Draft.Cover.Artifact; a != nil {
			out.Cover = &coverJSON{Artifact: a, Data: base64.StdEncoding.EncodeToString(a.Data)}
		}
		if pv.CoverErr != nil {
			out.CoverError = pv.CoverErr.Error()
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// CoverImport returns the canonicalized cover bytes for one URL.
func CoverImport(imp Importer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req urlReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}

		a, err := imp.Cover(r.Context(), req.URL)
		if err != nil {
			log.Warn("cover import failed", zap.String("url", req.URL), zap.Error(err))
			writeImportError(w, rid, err)
			return
		}

		h := w.Header()
		h.Set("Content-Type", a.MIMEType)
		h.Set("Content-Length", strconv.Itoa(len(a.Data)))
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
		h.Set("X-Cover-Canonical", strconv.FormatBool(a.Canonical))
		if a.Fallback != "" {
			h.Set("X-Cover-Fallback", a.Fallback)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(a.Data)
	}
}

// BulkImport imports a list of URLs. With ?async=true and an Enqueuer the
// batch is queued and 202 is returned right away.
func BulkImport(imp Importer, enq Enqueuer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req bulkReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}

		urls := provider.SplitURLs(strings.Join(req.URLs, "\n"))
		if len(urls) == 0 {
			writeImportError(w, rid, importer.ErrEmptyBatch)
			return
		}

		batchID, err := importer.NewBatchID()
		if err != nil {
			api.Internal(w, rid)
			return
		}

		async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
		if async {
			if enq == nil {
				api.ServiceUnavailable(w, "ASYNC_DISABLED", "Async bulk import is not enabled", rid)
				return
			}
			uid, _ := auth.UserIDFromContext(r.Context())
			job := queue.BulkJob{BatchID: batchID, URLs: urls, RequestedBy: uid}
			if err := enq.Enqueue(r.Context(), job); err != nil {
				log.Error("enqueue bulk import failed", zap.String("batch_id", batchID), zap.Error(err))
				api.ServiceUnavailable(w, "QUEUE_UNAVAILABLE", "Could not queue the batch", rid)
				return
			}
			api.WriteJSON(w, http.StatusAccepted, map[string]any{"batch_id": batchID, "total": len(urls)})
			return
		}

		report := imp.RunBatch(r.Context(), batchID, urls)
		log.Info("bulk import finished",
			zap.String("batch_id", report.BatchID),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)
		api.WriteJSON(w, http.StatusOK, report)
	}
}
