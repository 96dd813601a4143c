package backend

import (
	"context"

	"facturas/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the selected store and its cleanup function. Kind reports
// the backend actually in use, which differs from the requested one after a
// fallback.
type Result struct {
	Store     store.Store
	Kind      Kind
	Requested Kind
	Cleanup   CleanupFunc
}

// FellBack reports whether the requested backend could not be used.
func (r *Result) FellBack() bool {
	return r.Kind != r.Requested
}

// Opener selects and opens a record store based on configuration
type Opener interface {
	Open(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend selection
type Config struct {
	Kind Kind

	// SQLite specific
	SQLiteDBPath string

	// Flat backend and settings directory
	DataDir string
}

// Kind represents the type of backend
type Kind string

const (
	SQLiteBackend Kind = "sqlite"
	FlatBackend   Kind = "flat"
)

// String implements fmt.Stringer
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the backend kind is valid
func (k Kind) IsValid() bool {
	switch k {
	case SQLiteBackend, FlatBackend:
		return true
	default:
		return false
	}
}
