package settings

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"facturas/internal/kv"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	kvs, err := kv.Open(dir)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	return New(kvs), dir
}

func TestIRPFDefault(t *testing.T) {
	s, _ := newStore(t)
	got, err := s.IRPFPct()
	if err != nil || got != DefaultIRPFPct {
		t.Fatalf("IRPFPct() = %v, %v; want %v", got, err, DefaultIRPFPct)
	}
}

func TestSetIRPFClamps(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{7, 7},
		{12.5, 12.5},
		{-3, 0},
		{150, 100},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	s, _ := newStore(t)
	for _, tt := range tests {
		stored, err := s.SetIRPFPct(tt.in)
		if err != nil {
			t.Fatalf("SetIRPFPct(%v): %v", tt.in, err)
		}
		got, err := s.IRPFPct()
		if err != nil {
			t.Fatalf("IRPFPct: %v", err)
		}
		if stored != tt.want || got != tt.want {
			t.Errorf("SetIRPFPct(%v): stored %v read %v, want %v", tt.in, stored, got, tt.want)
		}
	}
}

func TestIRPFUnparseableIsZero(t *testing.T) {
	s, dir := newStore(t)
	if err := os.WriteFile(filepath.Join(dir, KeyIRPF+".kv"), []byte("fifteen"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.IRPFPct()
	if err != nil || got != 0 {
		t.Fatalf("IRPFPct() = %v, %v; want 0", got, err)
	}
}

func TestTheme(t *testing.T) {
	s, _ := newStore(t)
	if dark, _ := s.DarkTheme(); dark {
		t.Fatal("expected light theme by default")
	}
	if err := s.SetDarkTheme(true); err != nil {
		t.Fatalf("SetDarkTheme: %v", err)
	}
	if dark, _ := s.DarkTheme(); !dark {
		t.Fatal("expected dark theme")
	}
	if err := s.SetDarkTheme(false); err != nil {
		t.Fatalf("SetDarkTheme: %v", err)
	}
	if dark, _ := s.DarkTheme(); dark {
		t.Fatal("expected light theme")
	}
}

func TestReset(t *testing.T) {
	s, dir := newStore(t)
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset on empty store: %v", err)
	}
	if _, err := s.SetIRPFPct(7); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDarkTheme(true); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got, _ := s.IRPFPct(); got != DefaultIRPFPct {
		t.Fatalf("IRPFPct() after Reset = %v", got)
	}
	if dark, _ := s.DarkTheme(); dark {
		t.Fatal("expected light theme after Reset")
	}
	if _, err := os.Stat(filepath.Join(dir, KeyIRPF+".kv")); !os.IsNotExist(err) {
		t.Fatalf("expected irpf key removed, stat err = %v", err)
	}
}
