package service

import (
	"errors"
	"fmt"
)

var ErrCampaignNotFound = errors.New("campaign not found")

// ValidationError is a request the service refuses before touching any stream.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
