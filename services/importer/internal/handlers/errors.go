package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/example/anime-import/internal/platform/api"
	"github.com/example/anime-import/services/importer/internal/anime"
	"github.com/example/anime-import/services/importer/internal/bangumi"
	"github.com/example/anime-import/services/importer/internal/cover"
	"github.com/example/anime-import/services/importer/internal/importer"
	"github.com/example/anime-import/services/importer/internal/provider"
	"github.com/example/anime-import/services/importer/internal/records"
)

// writeImportError maps pipeline errors onto the API error envelope.
func writeImportError(w http.ResponseWriter, requestID string, err error) {
	var (
		verr *anime.ValidationError
		derr *cover.DownloadError
		perr *records.PersistenceError
	)

	switch {
	case errors.Is(err, provider.ErrInvalidSourceURL):
		api.BadRequest(w, "INVALID_SOURCE_URL", "URL is not an AniList, MyAnimeList or Bangumi anime link", requestID, nil)
	case errors.Is(err, importer.ErrMetadataUnsupported):
		api.Unprocessable(w, "METADATA_UNSUPPORTED", "Bangumi links can only be used to import a cover", requestID,
			map[string]any{"hint": "use the cover import"})
	case errors.Is(err, importer.ErrEmptyBatch):
		api.BadRequest(w, "EMPTY_BATCH", "No URLs to import", requestID, nil)
	case errors.As(err, &verr):
		api.BadRequest(w, "VALIDATION", verr.Error(), requestID, map[string]any{"fields": verr.Fields})
	case errors.As(err, &derr):
		details := map[string]any{"url": derr.URL}
		if derr.Status != 0 {
			details["status"] = derr.Status
		}
		api.BadGateway(w, "IMAGE_DOWNLOAD_FAILED", "Failed to download cover image", requestID, details)
	case errors.As(err, &perr):
		api.Conflict(w, "PERSISTENCE_FAILED", perr.Error(), requestID, map[string]any{"duplicate": errors.Is(err, records.ErrDuplicate)})
	case errors.Is(err, context.DeadlineExceeded):
		api.GatewayTimeout(w, "TIMEOUT", "Import timed out", requestID)
	default:
		if fe, ok := provider.AsFetchError(err); ok {
			details := map[string]any{"provider": string(fe.Provider), "id": fe.ID}
			if fe.Status != 0 {
				details["status"] = fe.Status
			}
			if reason := bangumi.Reason(err); reason != "" {
				details["reason"] = reason
				details["fallback"] = "upload the cover manually"
			}
			api.BadGateway(w, "PROVIDER_FETCH_FAILED", fe.Error(), requestID, details)
			return
		}
		api.Internal(w, requestID)
	}
}
