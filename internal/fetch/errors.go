package fetch

import (
	"fmt"

	"gismap/internal/tile"
)

// FailureReason classifies why a tile fetch did not produce real imagery.
type FailureReason int

const (
	NetworkFailure FailureReason = iota
	DecodeFailure
)

func (r FailureReason) String() string {
	switch r {
	case NetworkFailure:
		return "network failure"
	case DecodeFailure:
		return "decode failure"
	default:
		return "unknown failure"
	}
}

// LoadError reports a failed tile fetch. It is advisory: the coordinator has
// already substituted a fallback tile by the time the error surfaces, so the
// map never blocks on it.
type LoadError struct {
	Address tile.Address
	Reason  FailureReason
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("tile %s: %s: %v", e.Address, e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
