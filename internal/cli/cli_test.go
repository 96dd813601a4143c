package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"facturas/internal/backup"
	"facturas/internal/config"
	"facturas/internal/core"
	"facturas/internal/store"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"STORAGE_BACKEND", "DATA_DIR", "SQLITE_DB_PATH", "PORT", "LOG_FORMAT", "REPORT_CACHE_SIZE", "REPORT_CACHE_TTL"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

// run executes one facturas invocation against dir and returns stdout.
func run(t *testing.T, backendKind, dir string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(append([]string{"--backend", backendKind, "--data-dir", dir}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, "flat", dir, args...)
	if err != nil {
		t.Fatalf("facturas %v: %v", args, err)
	}
	return out
}

func listJSON(t *testing.T, dir string, args ...string) []core.Invoice {
	t.Helper()
	out := mustRun(t, dir, append([]string{"list", "--json"}, args...)...)
	var invs []core.Invoice
	if err := json.Unmarshal([]byte(out), &invs); err != nil {
		t.Fatalf("decode list output %q: %v", out, err)
	}
	return invs
}

func seed(t *testing.T, dir string) {
	t.Helper()
	mustRun(t, dir, "add", "-n", "F-1", "-d", "2024-01-15", "-e", "ACME", "--concept", "Design", "-b", "100", "-c", "Services")
	mustRun(t, dir, "add", "-n", "R-1", "-d", "2024-02-03", "-t", "received", "-e", "Telco", "--concept", "Internet", "-b", "50", "--tax", "10")
}

func TestAddListSummary(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	seed(t, dir)

	out := mustRun(t, dir, "list")
	if !strings.Contains(out, "F-1") || !strings.Contains(out, "R-1") || !strings.HasPrefix(out, "ID") {
		t.Fatalf("unexpected list output:\n%s", out)
	}
	// Newest first.
	if strings.Index(out, "R-1") > strings.Index(out, "F-1") {
		t.Fatalf("expected newest invoice first:\n%s", out)
	}

	invs := listJSON(t, dir, "--type", "issued")
	if len(invs) != 1 || invs[0].TaxPct != core.DefaultTaxPct {
		t.Fatalf("expected one issued invoice with default tax, got %+v", invs)
	}

	out = mustRun(t, dir, "summary")
	for _, want := range []string{"121.00 €", "55.00 €", "66.00 €", "IRPF 15.00%", "9.90 €", "Services", "2024-02"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestAddRejectsInvalidAndDuplicate(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	seed(t, dir)

	_, err := run(t, "flat", dir, "add", "-n", "F-1", "-e", "Other", "--concept", "x")
	if !errors.Is(err, store.ErrDuplicateNumber) {
		t.Fatalf("expected duplicate number error, got %v", err)
	}
	_, err = run(t, "flat", dir, "add", "-n", "F-2", "--concept", "x")
	if !errors.Is(err, core.ErrEmptyEntity) {
		t.Fatalf("expected empty entity error, got %v", err)
	}
	_, err = run(t, "flat", dir, "add", "-n", "F-2", "-e", "a", "--concept", "x", "-t", "credit")
	if !errors.Is(err, core.ErrInvalidType) {
		t.Fatalf("expected invalid type error, got %v", err)
	}
	if got := listJSON(t, dir, "--archived"); len(got) != 2 {
		t.Fatalf("failed adds must not store anything, got %d", len(got))
	}
}

func TestEditArchiveDelete(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	seed(t, dir)

	invs := listJSON(t, dir, "--type", "received")
	id := invs[0].ID

	mustRun(t, dir, "edit", id, "--base", "80", "--notes", "renegotiated")
	got := listJSON(t, dir, "--type", "received")[0]
	if got.Base != 80 || got.Notes != "renegotiated" || got.TaxPct != 10 || got.Entity != "Telco" {
		t.Fatalf("edit should change only named fields, got %+v", got)
	}

	out := mustRun(t, dir, "archive", id)
	if !strings.Contains(out, "archived") {
		t.Fatalf("unexpected archive output %q", out)
	}
	if n := len(listJSON(t, dir)); n != 1 {
		t.Fatalf("archived invoice should be hidden, got %d", n)
	}
	if n := len(listJSON(t, dir, "--archived")); n != 2 {
		t.Fatalf("--archived should show both, got %d", n)
	}

	mustRun(t, dir, "delete", id)
	if n := len(listJSON(t, dir, "--archived")); n != 1 {
		t.Fatalf("expected one invoice after delete, got %d", n)
	}

	if _, err := run(t, "flat", dir, "edit", "missing", "--base", "1"); err == nil {
		t.Fatalf("expected error editing unknown id")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	seed(t, dir)

	csvPath := filepath.Join(t.TempDir(), "facturas.csv")
	mustRun(t, dir, "export", "--format", "csv", "-o", csvPath)
	before := listJSON(t, dir, "--archived")

	other := t.TempDir()
	out := mustRun(t, other, "import", csvPath)
	if !strings.Contains(out, "Imported 2 invoices") {
		t.Fatalf("unexpected import output %q", out)
	}
	after := listJSON(t, other, "--archived")
	if len(after) != len(before) {
		t.Fatalf("round trip lost records: %d vs %d", len(after), len(before))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("record %d changed:\n got %+v\nwant %+v", i, after[i], before[i])
		}
	}

	jsonOut := mustRun(t, dir, "export")
	if !strings.HasPrefix(jsonOut, "[\n  {") {
		t.Fatalf("expected indented JSON export, got %q", jsonOut)
	}
}

func TestImportFailureKeepsData(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	seed(t, dir)

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"number":"X"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "flat", dir, "import", bad); !errors.Is(err, backup.ErrNotSequence) {
		t.Fatalf("expected ErrNotSequence, got %v", err)
	}

	dup := filepath.Join(t.TempDir(), "dup.json")
	if err := os.WriteFile(dup, []byte(`[{"id":"a","number":"N"},{"id":"b","number":"N"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "flat", dir, "import", dup); !errors.Is(err, store.ErrDuplicateNumber) {
		t.Fatalf("expected duplicate number, got %v", err)
	}

	if n := len(listJSON(t, dir, "--archived")); n != 2 {
		t.Fatalf("failed imports must keep the ledger, got %d", n)
	}
}

func TestSettingsCommands(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	out := mustRun(t, dir, "settings", "get")
	if out != "irpf\t15.00\ntheme\tlight\n" {
		t.Fatalf("unexpected defaults %q", out)
	}

	out = mustRun(t, dir, "settings", "set", "--irpf", "150", "--dark-theme")
	if !strings.Contains(out, "irpf\t100.00") {
		t.Fatalf("expected clamped irpf, got %q", out)
	}
	out = mustRun(t, dir, "settings", "get")
	if out != "irpf\t100.00\ntheme\tdark\n" {
		t.Fatalf("unexpected settings %q", out)
	}

	if _, err := run(t, "flat", dir, "settings", "set"); err == nil {
		t.Fatalf("expected error when nothing is set")
	}

	mustRun(t, dir, "settings", "reset")
	if out := mustRun(t, dir, "settings", "get"); out != "irpf\t15.00\ntheme\tlight\n" {
		t.Fatalf("expected defaults after reset, got %q", out)
	}
}

func TestInvalidFlags(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	if _, err := run(t, "postgres", dir, "list"); err == nil || !strings.Contains(err.Error(), "invalid storage backend") {
		t.Fatalf("expected config error, got %v", err)
	}
	if _, err := run(t, "flat", dir, "list", "--type", "bogus"); !errors.Is(err, core.ErrInvalidType) {
		t.Fatalf("expected invalid type, got %v", err)
	}
	if _, err := run(t, "flat", dir, "export", "--format", "xml"); !errors.Is(err, backup.ErrUnknownFormat) {
		t.Fatalf("expected unknown format, got %v", err)
	}
}

func TestSQLiteBackend(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	if _, err := run(t, "sqlite", dir, "add", "-n", "S-1", "-d", "2024-05-01", "-e", "ACME", "--concept", "x", "-b", "10"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "facturas.db")); err != nil {
		t.Fatalf("expected database under the data dir: %v", err)
	}
	out, err := run(t, "sqlite", dir, "list")
	if err != nil || !strings.Contains(out, "S-1") {
		t.Fatalf("list: %v\n%s", err, out)
	}
}

func TestImportFormat(t *testing.T) {
	tests := []struct {
		flag, name string
		want       backup.Format
	}{
		{"", "backup.json", backup.FormatJSON},
		{"", "export.CSV", backup.FormatCSV},
		{"", "-", backup.FormatJSON},
		{"csv", "data.txt", backup.FormatCSV},
	}
	for _, tt := range tests {
		got, err := importFormat(tt.flag, tt.name)
		if err != nil || got != tt.want {
			t.Errorf("importFormat(%q, %q) = %q, %v", tt.flag, tt.name, got, err)
		}
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	isolateEnv(t)
	cfg := config.Load()
	cfg.StorageBackend = "flat"
	applyDataDir(cfg, t.TempDir())
	cfg.Port = "0"

	var logs bytes.Buffer
	a := &app{cfg: cfg, logger: SetupLogger(cfg, &logs)}
	l, err := OpenLedger(context.Background(), cfg, a.logger)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.serve(ctx, l) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
