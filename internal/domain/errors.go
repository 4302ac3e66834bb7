package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedQuestion indicates the model output contained no parseable
	// question JSON.
	ErrMalformedQuestion = errors.New("could not parse quiz question JSON")
	// ErrInvalidQuestion indicates parsed question JSON failed validation.
	ErrInvalidQuestion = errors.New("invalid quiz question")
	// ErrNoActiveSession indicates the user has no quiz in progress.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrAnswerOutOfRange indicates the chosen option index does not exist.
	ErrAnswerOutOfRange = errors.New("answer index out of range")
	// ErrEmptyTranscript indicates speech recognition produced no text.
	ErrEmptyTranscript = errors.New("transcription returned empty text")
)
