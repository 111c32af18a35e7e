package rag

import (
	"errors"
	"fmt"
)

// NoContextAnswer is returned verbatim, with no citations, when retrieval
// finds nothing usable.
const NoContextAnswer = "I don't know based on the documents I have."

// ErrNoContext is returned by Retrieve when no chunk survives filtering.
var ErrNoContext = errors.New("no relevant context")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UpstreamError reports a failed model or store call during a pipeline
// stage ("condense", "retrieve" or "compose").
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a conversation store failure during a session
// chat.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("conversation store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
