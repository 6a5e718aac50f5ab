// Package apperr holds sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidKind     = errors.New("invalid kind")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNoSourcesDir    = errors.New("sources directory missing")
)
