package server

import "errors"

// Sentinel errors for the grading API.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrMissingFileName = errors.New("every file needs a name")
	ErrStoreDisabled   = errors.New("results store not configured")
)
