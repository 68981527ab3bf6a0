package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrUnresolvedSchema   = errors.New("unresolved schema roles")
	ErrSummarizerDisabled = errors.New("summarizer disabled")
)
