package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"facturas/internal/core"
	"facturas/internal/kv"
	"facturas/internal/store"
)

func sampleInvoice(id, number string) core.Invoice {
	return core.Invoice{
		ID:       id,
		Number:   number,
		Date:     "2024-01-15",
		Type:     core.Issued,
		Entity:   "ACME",
		Concept:  "Consulting",
		Base:     100,
		TaxPct:   21,
		Category: "Services",
	}
}

// backends returns a fresh store of every kind, each in its own temp dir.
func backends(t *testing.T) map[string]store.Store {
	t.Helper()

	sq, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "facturas.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	kvs, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}

	return map[string]store.Store{
		"sqlite": sq,
		"flat":   NewFlatRepository(kvs),
	}
}

func sortedIDs(invs []core.Invoice) []string {
	ids := make([]string, 0, len(invs))
	for _, inv := range invs {
		ids = append(ids, inv.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestStoreEmptyCollection(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.GetAll(context.Background())
			if err != nil {
				t.Fatalf("GetAll: %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil slice, got %#v", got)
			}
		})
	}
}

func TestStoreAddPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			inv := sampleInvoice("a", "F-001")
			inv.Notes = "first"
			id, err := s.Add(ctx, inv)
			if err != nil || id != "a" {
				t.Fatalf("Add: id=%q err=%v", id, err)
			}

			inv.Notes = "changed"
			inv.Archived = true
			if _, err := s.Put(ctx, inv); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := s.GetAll(ctx)
			if err != nil {
				t.Fatalf("GetAll: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 record, got %d", len(got))
			}
			if got[0] != inv {
				t.Fatalf("stored record mismatch:\n got %#v\nwant %#v", got[0], inv)
			}
		})
	}
}

func TestStorePutInsertsWhenAbsent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Put(ctx, sampleInvoice("new", "F-100")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, _ := s.GetAll(ctx)
			if len(got) != 1 || got[0].ID != "new" {
				t.Fatalf("unexpected records: %#v", got)
			}
		})
	}
}

func TestStoreAddDuplicateKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Add(ctx, sampleInvoice("a", "F-001")); err != nil {
				t.Fatalf("Add: %v", err)
			}
			_, err := s.Add(ctx, sampleInvoice("a", "F-002"))
			if !errors.Is(err, store.ErrDuplicateKey) {
				t.Fatalf("expected ErrDuplicateKey, got %v", err)
			}
			var ce *store.ConflictError
			if !errors.As(err, &ce) || ce.ID != "a" {
				t.Fatalf("expected ConflictError for id a, got %v", err)
			}
		})
	}
}

func TestStoreDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Add(ctx, sampleInvoice("a", "F-001")); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if _, err := s.Add(ctx, sampleInvoice("b", "F-001")); !errors.Is(err, store.ErrDuplicateNumber) {
				t.Fatalf("Add: expected ErrDuplicateNumber, got %v", err)
			}

			if _, err := s.Add(ctx, sampleInvoice("b", "F-002")); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if _, err := s.Put(ctx, sampleInvoice("b", "F-001")); !errors.Is(err, store.ErrDuplicateNumber) {
				t.Fatalf("Put: expected ErrDuplicateNumber, got %v", err)
			}
			// Keeping its own number is not a conflict.
			if _, err := s.Put(ctx, sampleInvoice("b", "F-002")); err != nil {
				t.Fatalf("Put same number: %v", err)
			}
		})
	}
}

func TestStoreDeleteUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Add(ctx, sampleInvoice("a", "F-001")); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if err := s.Delete(ctx, "missing"); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
			if err := s.Delete(ctx, "a"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			got, _ := s.GetAll(ctx)
			if len(got) != 0 {
				t.Fatalf("expected empty store, got %d records", len(got))
			}
		})
	}
}

func TestStoreClearAndImport(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Add(ctx, sampleInvoice("old", "F-OLD")); err != nil {
				t.Fatalf("Add: %v", err)
			}
			batch := []core.Invoice{sampleInvoice("x", "F-1"), sampleInvoice("y", "F-2")}
			if err := s.ClearAndImport(ctx, batch); err != nil {
				t.Fatalf("ClearAndImport: %v", err)
			}
			got, _ := s.GetAll(ctx)
			ids := sortedIDs(got)
			if len(ids) != 2 || ids[0] != "x" || ids[1] != "y" {
				t.Fatalf("unexpected ids after import: %v", ids)
			}

			if err := s.ClearAndImport(ctx, nil); err != nil {
				t.Fatalf("ClearAndImport empty: %v", err)
			}
			got, _ = s.GetAll(ctx)
			if len(got) != 0 {
				t.Fatalf("expected empty store, got %d", len(got))
			}
		})
	}
}

func TestStoreFailedImportKeepsPreviousCollection(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Add(ctx, sampleInvoice("keep", "F-KEEP")); err != nil {
				t.Fatalf("Add: %v", err)
			}

			tests := []struct {
				name  string
				batch []core.Invoice
				want  error
			}{
				{"duplicate number", []core.Invoice{sampleInvoice("x", "F-1"), sampleInvoice("y", "F-1")}, store.ErrDuplicateNumber},
				{"duplicate id", []core.Invoice{sampleInvoice("x", "F-1"), sampleInvoice("x", "F-2")}, store.ErrDuplicateKey},
			}
			for _, tt := range tests {
				err := s.ClearAndImport(ctx, tt.batch)
				if !errors.Is(err, tt.want) {
					t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
				}
				got, _ := s.GetAll(ctx)
				if len(got) != 1 || got[0].ID != "keep" {
					t.Fatalf("%s: previous collection not preserved: %#v", tt.name, got)
				}
			}
		})
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "facturas.db")

	s, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Add(ctx, sampleInvoice("a", "F-001")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Close()

	s, err = NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.GetAll(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected records after reopen: %v err=%v", got, err)
	}
}

func TestSQLiteOpenFailsOnDirectoryPath(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewSQLiteRepository(dir); err == nil {
		t.Fatalf("expected error opening a directory as database")
	}
}

func TestFlatCorruptBlob(t *testing.T) {
	dir := t.TempDir()
	kvs, err := kv.Open(dir)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FlatKey+".kv"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFlatRepository(kvs).GetAll(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}
