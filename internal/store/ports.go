// Package store defines the record store contract shared by every storage
// backend. Callers depend on Store only and never branch on the backend kind.
package store

import (
	"context"
	"errors"

	"facturas/internal/core"
)

var (
	// ErrDuplicateKey is returned by Add when the id is already stored.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrDuplicateNumber is returned when a write would give two records the
	// same invoice number.
	ErrDuplicateNumber = errors.New("duplicate invoice number")
)

type (
	// Reader returns the whole collection, in no particular order.
	Reader interface {
		GetAll(ctx context.Context) ([]core.Invoice, error)
	}

	// Writer mutates the collection. Every method returns only after the
	// change is durable.
	Writer interface {
		// Add inserts a new record and fails with ErrDuplicateKey if the id exists.
		Add(ctx context.Context, inv core.Invoice) (id string, err error)
		// Put replaces the record with the same id, inserting it if absent.
		Put(ctx context.Context, inv core.Invoice) (id string, err error)
		// Delete removes a record by id. Unknown ids are a no-op.
		Delete(ctx context.Context, id string) error
	}

	// Importer replaces the whole collection in one step.
	Importer interface {
		// ClearAndImport discards every stored record and inserts invs. On
		// failure the previous collection is left in place.
		ClearAndImport(ctx context.Context, invs []core.Invoice) error
	}

	// Store is the full record store.
	Store interface {
		Reader
		Writer
		Importer
		Close() error
	}
)

// CheckBatch reports the first duplicate id or number within invs, using the
// same errors the backends return for single writes.
func CheckBatch(invs []core.Invoice) error {
	ids := make(map[string]struct{}, len(invs))
	numbers := make(map[string]struct{}, len(invs))
	for _, inv := range invs {
		if _, ok := ids[inv.ID]; ok {
			return &ConflictError{Err: ErrDuplicateKey, ID: inv.ID, Number: inv.Number}
		}
		ids[inv.ID] = struct{}{}
		if _, ok := numbers[inv.Number]; ok {
			return &ConflictError{Err: ErrDuplicateNumber, ID: inv.ID, Number: inv.Number}
		}
		numbers[inv.Number] = struct{}{}
	}
	return nil
}
