package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrStaleStatus       = errors.New("booking status changed concurrently")
	ErrInvalidTransition = errors.New("invalid booking status transition")
)
