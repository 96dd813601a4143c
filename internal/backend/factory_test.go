package backend

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"facturas/internal/config"
	"facturas/internal/core"
	"facturas/internal/storage"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestOpenSQLite(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer

	res, err := Open(context.Background(), Config{
		Kind:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(dir, "facturas.db"),
		DataDir:      dir,
	}, testLogger(&buf))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer res.Cleanup()

	if res.Kind != SQLiteBackend || res.FellBack() {
		t.Fatalf("expected sqlite without fallback, got kind=%s requested=%s", res.Kind, res.Requested)
	}
	if _, ok := res.Store.(*storage.SQLiteRepository); !ok {
		t.Fatalf("expected *storage.SQLiteRepository, got %T", res.Store)
	}
}

func TestOpenFallsBackToFlat(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the database directory should be makes sqlite unusable.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var buf bytes.Buffer

	res, err := Open(context.Background(), Config{
		Kind:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(blocker, "facturas.db"),
		DataDir:      filepath.Join(dir, "data"),
	}, testLogger(&buf))
	if err != nil {
		t.Fatalf("Open should not fail on fallback: %v", err)
	}
	defer res.Cleanup()

	if res.Kind != FlatBackend || !res.FellBack() {
		t.Fatalf("expected flat fallback, got kind=%s requested=%s", res.Kind, res.Requested)
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("expected a warning to be logged, got %q", buf.String())
	}

	// The fallback store is fully usable.
	ctx := context.Background()
	inv := core.Invoice{ID: "a", Number: "F-1", Date: "2024-01-01", Type: core.Issued, Entity: "E", Concept: "C"}
	if _, err := res.Store.Add(ctx, inv); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := res.Store.GetAll(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("GetAll: %v %v", got, err)
	}
}

func TestOpenFlatSkipsSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "facturas.db")
	var buf bytes.Buffer

	res, err := Open(context.Background(), Config{Kind: FlatBackend, SQLiteDBPath: dbPath, DataDir: dir}, testLogger(&buf))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer res.Cleanup()

	if res.Kind != FlatBackend || res.FellBack() {
		t.Fatalf("expected flat without fallback, got kind=%s requested=%s", res.Kind, res.Requested)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatalf("sqlite database should not be created, stat err=%v", err)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"unknown kind", Config{Kind: "memory", DataDir: "x"}},
		{"missing data dir", Config{Kind: FlatBackend}},
		{"sqlite without path", Config{Kind: SQLiteBackend, DataDir: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(context.Background(), tt.config, nil); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	cfg, err := FromAppConfig(&config.Config{StorageBackend: "flat", DataDir: "/tmp/d", SQLiteDBPath: "/tmp/d/x.db"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Kind != FlatBackend || cfg.DataDir != "/tmp/d" || cfg.SQLiteDBPath != "/tmp/d/x.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{StorageBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestKindStrings(t *testing.T) {
	got := strings.Join(KindStrings(), ",")
	if got != "sqlite,flat" {
		t.Fatalf("KindStrings() = %q", got)
	}
}
