package utils

import "errors"

var (
	ErrPOINotFound       = errors.New("poi not found")
	ErrKnowledgeNotFound = errors.New("knowledge not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidPage       = errors.New("invalid page parameter")
	ErrInvalidPageSize   = errors.New("invalid page size parameter")
	ErrDatabaseError     = errors.New("database error")

	// ErrUnexpectedBehaviorOfAI marks completions that came back empty or
	// in a shape no recovery pass could salvage.
	ErrUnexpectedBehaviorOfAI = errors.New("unexpected behavior of ai")

	ErrSynthesisFailed    = errors.New("speech synthesis failed")
	ErrStorageUnavailable = errors.New("object storage unavailable")
)
