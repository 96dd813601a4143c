package store

import "fmt"

// ConflictError carries the record that violated a uniqueness rule.
type ConflictError struct {
	Err    error // ErrDuplicateKey or ErrDuplicateNumber
	ID     string
	Number string
}

func (e *ConflictError) Error() string {
	if e.Err == ErrDuplicateNumber {
		return fmt.Sprintf("%v: %q", e.Err, e.Number)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.ID)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
