package jeopardy

import (
	"errors"
	"fmt"
)

var (
	ErrSampleRange    = errors.New("sample size exceeds offset range")
	ErrNoCategory     = errors.New("no category at offset")
	ErrClueOutOfRange = errors.New("clue coordinate out of range")
	ErrBusy           = errors.New("game is already loading")
	ErrNotReady       = errors.New("game board is not ready")
)

// StatusError is returned when the trivia service answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trivia service returned status %d for %s", e.StatusCode, e.URL)
}
