// Package records persists imported anime through the record service, either
// over its REST API or straight into Postgres.
package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/anime-import/services/importer/internal/anime"
)

// Store creates anime records and returns the new record id.
type Store interface {
	Create(ctx context.Context, rec anime.Record) (string, error)
}

// ErrDuplicate means a record with the same slug or title already exists.
var ErrDuplicate = errors.New("anime already exists")

// PersistenceError reports a rejected or failed create.
type PersistenceError struct {
	Status  int // HTTP status from the record service, 0 for Postgres
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("create anime: status %d: %s", e.Status, msg)
	}
	return "create anime: " + msg
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
