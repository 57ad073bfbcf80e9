package domain

import "errors"

// Error kinds shared by parsers, the interpolator and the models.
// Callers match them with errors.Is; every returned error wraps one of these.
var (
	// ErrMalformedInput means a required marker or field is absent or does not parse.
	ErrMalformedInput = errors.New("malformed input")

	// ErrRange means the target lies outside the grid declared by the file.
	ErrRange = errors.New("target outside declared grid")

	// ErrDataNotFound means a requested grid node or epoch is absent.
	ErrDataNotFound = errors.New("data not found")

	// ErrDivisionByZero means a bounding box collapsed on one axis.
	ErrDivisionByZero = errors.New("degenerate bounding box")

	// ErrValidation means a numeric input is outside its domain.
	ErrValidation = errors.New("validation failed")
)
