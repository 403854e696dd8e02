package delyzer

import (
	"errors"
	"fmt"

	"delyzer.dev/delyzer/model"
	"delyzer.dev/delyzer/storage"
)

var (
	// Departure doesn't exist.
	ErrNotFound = storage.ErrNotFound

	// A view requires station names but no reference catalog was
	// loaded.
	ErrNoCatalog = errors.New("reference catalog unavailable")
)

// Invalid configuration, or no station to observe could be resolved.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Fetching departures for one station failed. The station is skipped
// for the current cycle.
type FeedFetchError struct {
	StationID int
	Err       error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("fetching station %d: %s", e.StationID, e.Err)
}

func (e *FeedFetchError) Unwrap() error { return e.Err }

// A mapped departure violates the record invariants and was dropped.
type RecordValidationError struct {
	Departure *model.Departure
	Err       error
}

func (e *RecordValidationError) Error() string {
	return fmt.Sprintf("invalid departure %+v: %s", *e.Departure, e.Err)
}

func (e *RecordValidationError) Unwrap() error { return e.Err }

// Reference dataset missing or malformed.
type ReferenceLoadError struct {
	Path string
	Err  error
}

func (e *ReferenceLoadError) Error() string {
	return fmt.Sprintf("loading reference data from %s: %s", e.Path, e.Err)
}

func (e *ReferenceLoadError) Unwrap() error { return e.Err }

// Persistence failure on insert or query.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
