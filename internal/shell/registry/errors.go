// Package registry persists the set of deployments dcg knows about.
package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt is returned when the registry file cannot be decoded.
	ErrCorrupt = errors.New("registry file is corrupt")

	// ErrWriteFailed is returned when the registry file cannot be saved.
	ErrWriteFailed = errors.New("registry write failed")
)

// RegistryError wraps registry failures with the operation and deployment involved.
type RegistryError struct {
	Op      string // Operation that failed (e.g., "Add")
	Name    string // Deployment name if applicable
	Message string
	Err     error
}

func (e *RegistryError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

func newError(op, name, message string, err error) *RegistryError {
	return &RegistryError{Op: op, Name: name, Message: message, Err: err}
}
