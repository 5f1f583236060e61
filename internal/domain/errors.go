package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrBatchActive       = errors.New("batch already in progress")
	ErrSourceUnavailable = errors.New("source image unavailable")
	ErrObjectExists      = errors.New("object already exists")
)
