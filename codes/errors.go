package codes

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed reports persisted data that does not follow the record
	// layout.
	ErrMalformed = errors.New("malformed record data")

	// ErrNotInitialized is returned when the allocator is used before Init.
	ErrNotInitialized = errors.New("allocator is not initialized")

	// ErrAlreadyInitialized is returned when Init is called twice.
	ErrAlreadyInitialized = errors.New("allocator is already initialized")
)

// LoadError reports that the persisted records could not be read at startup.
type LoadError struct {
	Location string

	// Line is the 1-based line or row of the failure. It is 0 when the
	// failure is not tied to a row.
	Line int

	Err error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s: line %d: %v", e.Location, e.Line, e.Err)
	}

	return fmt.Sprintf("load %s: %v", e.Location, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PersistenceError reports that a newly allocated code could not be written.
// The allocation that caused it did not take effect.
type PersistenceError struct {
	Location string
	Key      Key
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist code for %s to %s: %v",
		e.Key, e.Location, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
