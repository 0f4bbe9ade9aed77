// Package storage uploads cover artifacts and deletes them again when the
// record they were uploaded for could not be created.
package storage

import (
	"context"
	"fmt"

	"github.com/example/anime-import/services/importer/internal/anime"
)

// Uploader is the cover upload service.
type Uploader interface {
	// Upload stores a and returns its public URL.
	Upload(ctx context.Context, a *anime.Artifact) (string, error)
	// Delete removes a previously uploaded cover by URL.
	Delete(ctx context.Context, url string) error
}

// Error reports a failed upload or delete call.
type Error struct {
	Op     string // "upload" or "delete"
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("cover %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("cover %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
