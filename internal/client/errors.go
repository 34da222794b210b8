package client

import (
	"errors"
	"fmt"
)

// Validation failures caught before any network round-trip.
var (
	ErrEmptyPseudonym = errors.New("display name must not be empty")
	ErrEmptySessionID = errors.New("session code must not be empty")
	ErrEmptyQuestion  = errors.New("question text must not be empty")
	ErrEmptyAnswer    = errors.New("answer text must not be empty")
	ErrEmptyVote      = errors.New("a vote must name an answer")
	ErrNoSession      = errors.New("no active session")
	ErrInFlight       = errors.New("request already in flight")
)

// APIError is a non-success response. Detail is the server's
// human-readable message and is surfaced to the user verbatim.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}
