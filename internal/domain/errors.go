package domain

import "errors"

var (
	// ErrQuestionNotFound indicates a question ID is not part of the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrParticipantNotFound is returned when a participant has not registered (or was purged).
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrInvalidTransition is returned when a host operation is not allowed from the current phase.
	ErrInvalidTransition = errors.New("invalid phase transition")
	// ErrInvalidDisplayName rejects empty or overlong display names before any network call.
	ErrInvalidDisplayName = errors.New("display name must be 1-20 characters")
	// ErrInvalidOption indicates a selected option outside 1-4.
	ErrInvalidOption = errors.New("option must be between 1 and 4")
	// ErrFlushFailed means buffered answers could not be committed; the phase was not advanced.
	ErrFlushFailed = errors.New("answer flush failed")
	// ErrConfirmationRequired guards destructive host operations.
	ErrConfirmationRequired = errors.New("destructive operation requires confirmation")
	// ErrNoNextQuestion is returned when the catalog has no question after the active one.
	ErrNoNextQuestion = errors.New("no next question")
	// ErrInvalidState indicates a SessionState that violates the active-question invariant.
	ErrInvalidState = errors.New("invalid session state")
)
