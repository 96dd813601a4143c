package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"facturas/internal/core"
	"facturas/internal/kv"
	"facturas/internal/store"
)

// FlatKey is the key holding the serialized collection.
const FlatKey = "invoices"

// FlatRepository is the fallback backend: the whole collection lives in one
// JSON blob and every write rewrites it. There are no secondary indexes; the
// uniqueness rules of the indexed backend are enforced by scanning.
type FlatRepository struct {
	mu sync.Mutex
	kv *kv.Store
}

var _ store.Store = (*FlatRepository)(nil)

func NewFlatRepository(kvs *kv.Store) *FlatRepository {
	return &FlatRepository{kv: kvs}
}

// load reads the blob; a missing key is an empty collection.
func (r *FlatRepository) load() ([]core.Invoice, error) {
	raw, ok, err := r.kv.Get(FlatKey)
	if err != nil {
		return nil, err
	}
	invoices := make([]core.Invoice, 0)
	if !ok {
		return invoices, nil
	}
	if err := json.Unmarshal([]byte(raw), &invoices); err != nil {
		return nil, fmt.Errorf("decode %s blob: %w", FlatKey, err)
	}
	return invoices, nil
}

func (r *FlatRepository) save(invoices []core.Invoice) error {
	if invoices == nil {
		invoices = []core.Invoice{}
	}
	b, err := json.Marshal(invoices)
	if err != nil {
		return fmt.Errorf("encode %s blob: %w", FlatKey, err)
	}
	return r.kv.Set(FlatKey, string(b))
}

func (r *FlatRepository) Close() error {
	return nil
}

// GetAll implements store.Reader
func (r *FlatRepository) GetAll(_ context.Context) ([]core.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Add implements store.Writer
func (r *FlatRepository) Add(_ context.Context, inv core.Invoice) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	invoices, err := r.load()
	if err != nil {
		return "", err
	}
	for _, existing := range invoices {
		if existing.ID == inv.ID {
			return "", &store.ConflictError{Err: store.ErrDuplicateKey, ID: inv.ID, Number: inv.Number}
		}
		if existing.Number == inv.Number {
			return "", &store.ConflictError{Err: store.ErrDuplicateNumber, ID: inv.ID, Number: inv.Number}
		}
	}
	if err := r.save(append(invoices, inv)); err != nil {
		return "", err
	}
	return inv.ID, nil
}

// Put implements store.Writer
func (r *FlatRepository) Put(_ context.Context, inv core.Invoice) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	invoices, err := r.load()
	if err != nil {
		return "", err
	}
	idx := -1
	for i, existing := range invoices {
		if existing.ID == inv.ID {
			idx = i
			continue
		}
		if existing.Number == inv.Number {
			return "", &store.ConflictError{Err: store.ErrDuplicateNumber, ID: inv.ID, Number: inv.Number}
		}
	}
	if idx >= 0 {
		invoices[idx] = inv
	} else {
		invoices = append(invoices, inv)
	}
	if err := r.save(invoices); err != nil {
		return "", err
	}
	return inv.ID, nil
}

// Delete implements store.Writer
func (r *FlatRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	invoices, err := r.load()
	if err != nil {
		return err
	}
	next := invoices[:0]
	for _, inv := range invoices {
		if inv.ID != id {
			next = append(next, inv)
		}
	}
	if len(next) == len(invoices) {
		return nil
	}
	return r.save(next)
}

// ClearAndImport implements store.Importer by overwriting the blob in one
// step, after rejecting batches the indexed backend would also reject.
func (r *FlatRepository) ClearAndImport(_ context.Context, invs []core.Invoice) error {
	if err := store.CheckBatch(invs); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(invs)
}
