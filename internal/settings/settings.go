// Package settings keeps user preferences next to the flat record store.
package settings

import (
	"fmt"
	"strconv"

	"facturas/internal/core"
	"facturas/internal/kv"
)

const (
	KeyIRPF  = "irpf"
	KeyTheme = "theme"

	// DefaultIRPFPct is the withholding percentage used until one is saved.
	DefaultIRPFPct = 15.0

	themeDark  = "dark"
	themeLight = "light"
)

type Store struct {
	kv *kv.Store
}

func New(kvs *kv.Store) *Store {
	return &Store{kv: kvs}
}

// IRPFPct returns the stored withholding percentage, DefaultIRPFPct when
// unset, and 0 when the stored value does not parse.
func (s *Store) IRPFPct() (float64, error) {
	raw, ok, err := s.kv.Get(KeyIRPF)
	if err != nil {
		return 0, fmt.Errorf("read irpf: %w", err)
	}
	if !ok {
		return DefaultIRPFPct, nil
	}
	return core.ParseFloatOrZero(raw), nil
}

// SetIRPFPct stores v clamped to [0,100] and returns the stored value.
func (s *Store) SetIRPFPct(v float64) (float64, error) {
	v = ClampPct(v)
	if err := s.kv.Set(KeyIRPF, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		return 0, fmt.Errorf("write irpf: %w", err)
	}
	return v, nil
}

func (s *Store) DarkTheme() (bool, error) {
	raw, _, err := s.kv.Get(KeyTheme)
	if err != nil {
		return false, fmt.Errorf("read theme: %w", err)
	}
	return raw == themeDark, nil
}

func (s *Store) SetDarkTheme(dark bool) error {
	v := themeLight
	if dark {
		v = themeDark
	}
	if err := s.kv.Set(KeyTheme, v); err != nil {
		return fmt.Errorf("write theme: %w", err)
	}
	return nil
}

// Reset removes every stored preference so the defaults apply again.
func (s *Store) Reset() error {
	for _, key := range []string{KeyIRPF, KeyTheme} {
		if err := s.kv.Delete(key); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
	}
	return nil
}

// ClampPct coerces v and limits it to [0,100].
func ClampPct(v float64) float64 {
	v = core.CoerceFloat(v)
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
