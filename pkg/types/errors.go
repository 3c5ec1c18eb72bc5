package types

import "errors"

// Domain errors for type validation
var (
	ErrMissingArticle     = errors.New("article ID is required")
	ErrEmptyContent       = errors.New("content cannot be empty")
	ErrMissingChunkRef    = errors.New("chunk reference is required for chunk-level matches")
	ErrUnexpectedChunkRef = errors.New("keyword matches must not carry a chunk reference")
	ErrInvalidMatchType   = errors.New("invalid match type")
)
