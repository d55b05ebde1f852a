package services

import "errors"

// Error taxonomy for the appraisal conversation flow. Callers branch on these
// with errors.Is; everything else wrapped below carries context only.
var (
	// ErrGenerationUnavailable means the text generation call failed or
	// returned an unusable structure. Never fatal to the session; the user
	// retries explicitly.
	ErrGenerationUnavailable = errors.New("text generation unavailable")

	// ErrPersistenceUnavailable means a storage call failed. The in-memory
	// transcript is retained so no input is lost.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrInvalidTransition means the operation is not valid in the current
	// state, for the engine as well as the appraisal status lifecycle.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConcurrentTurn means a turn arrived while another was in flight.
	// The extra turn is dropped, not queued.
	ErrConcurrentTurn = errors.New("another turn is already in flight")
)
