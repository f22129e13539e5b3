package websocket

import "errors"

// Common errors for the websocket package.
var (
	// ErrConnectionClosed indicates the connection is closed.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrReadFailed indicates a guarded read returned not-ok.
	ErrReadFailed = errors.New("read failed")
	// ErrWriteFailed indicates a guarded write returned not-ok.
	ErrWriteFailed = errors.New("write failed")
	// ErrEchoMismatch indicates the echoed bytes differ from the sent bytes.
	ErrEchoMismatch = errors.New("echo mismatch")
	// ErrEmptyScenario indicates a scenario with no message lengths.
	ErrEmptyScenario = errors.New("scenario has no message lengths")
	// ErrNegativeLength indicates a scenario with a negative message length.
	ErrNegativeLength = errors.New("scenario has a negative message length")
	// ErrRolePanic indicates a role function panicked and was recovered.
	ErrRolePanic = errors.New("role panicked")
)
