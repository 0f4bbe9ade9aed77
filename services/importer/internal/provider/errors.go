package provider

import (
	"errors"
	"fmt"
)

// FetchError reports a failed provider call: transport failure, non-2xx
// status, a provider-reported error or a response missing required fields.
type FetchError struct {
	Provider Kind
	ID       int
	Status   int // HTTP status when the provider answered, else 0
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s fetch %d: status %d: %v", e.Provider, e.ID, e.Status, e.Err)
	}
	return fmt.Sprintf("%s fetch %d: %v", e.Provider, e.ID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrMissingField marks a response that decoded but lacks a required field.
var ErrMissingField = errors.New("missing required field")

// Missing builds an ErrMissingField error naming the field path.
func Missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// AsFetchError is a small helper around errors.As.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
