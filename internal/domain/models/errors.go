package models

import "errors"

var (
	// ErrUnknownDomain is returned for a domain the engine does not track.
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrNoData is returned when a domain has not produced an index yet.
	ErrNoData = errors.New("no index computed yet")
	// ErrInvalidSignal marks a signal rejected by validation.
	ErrInvalidSignal = errors.New("invalid signal")
)
