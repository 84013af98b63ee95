package timesource

import (
	"errors"
	"fmt"
)

var (
	// ErrPending means no result is available this cycle and the caller should
	// simply poll again later. It is not a failure.
	ErrPending = errors.New("result pending")

	// ErrTornRead is returned when the time offset changed while a guarded
	// query was in flight
	ErrTornRead = fmt.Errorf("time offset changed during query: %w", ErrPending)

	// ErrMalformed is returned for a missing, empty or unparsable time offset
	ErrMalformed = errors.New("malformed time offset")
)
