package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Issued   InvoiceType = "issued"
	Received InvoiceType = "received"

	// DefaultTaxPct is applied to new invoices created without an explicit rate.
	DefaultTaxPct = 21.0
)

type (
	InvoiceType string

	// Invoice is the only persisted entity. Tax and total are derived and never stored.
	Invoice struct {
		ID       string      `json:"id"`
		Number   string      `json:"number"`
		Date     string      `json:"date"` // ISO YYYY-MM-DD
		Type     InvoiceType `json:"type"`
		Entity   string      `json:"entity"`   // counterparty
		Concept  string      `json:"concept"`
		Base     float64     `json:"base"`
		TaxPct   float64     `json:"taxPct"`
		Payment  string      `json:"payment"`
		Category string      `json:"category"`
		Notes    string      `json:"notes"`
		PDFPath  string      `json:"pdfPath"`
		Archived bool        `json:"archived"`
	}
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrEmptyNumber   = errors.New("empty invoice number")
	ErrEmptyDate     = errors.New("empty date")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidType   = errors.New("invalid invoice type")
	ErrEmptyEntity   = errors.New("empty entity")
	ErrEmptyConcept  = errors.New("empty concept")
	ErrNegativeBase  = errors.New("negative base amount")
	ErrInvalidAmount = errors.New("invalid amount")
)

// ValidationError names the offending field. It matches both ErrValidation and
// the specific reason with errors.Is.
type ValidationError struct {
	Field  string
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %v", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Reason}
}

func invalid(field string, reason error) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ParseInvoiceType accepts the two known types, case-insensitively.
func ParseInvoiceType(s string) (InvoiceType, error) {
	switch InvoiceType(strings.ToLower(strings.TrimSpace(s))) {
	case Issued:
		return Issued, nil
	case Received:
		return Received, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// IsValid reports whether t is issued or received.
func (t InvoiceType) IsValid() bool {
	return t == Issued || t == Received
}

func (t InvoiceType) String() string {
	return string(t)
}

// Tax returns base * taxPct / 100 with both operands coerced.
func (inv Invoice) Tax() float64 {
	return CoerceFloat(inv.Base) * CoerceFloat(inv.TaxPct) / 100
}

// Total returns base plus tax.
func (inv Invoice) Total() float64 {
	return CoerceFloat(inv.Base) + inv.Tax()
}

// Validate checks the fields required by the entry form. Uniqueness of the
// number is a collection property and is checked by the ledger service.
func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.Number) == "" {
		return invalid("number", ErrEmptyNumber)
	}
	if strings.TrimSpace(inv.Date) == "" {
		return invalid("date", ErrEmptyDate)
	}
	if _, ok := ParseDate(inv.Date); !ok {
		return invalid("date", ErrInvalidDate)
	}
	if !inv.Type.IsValid() {
		return invalid("type", ErrInvalidType)
	}
	if strings.TrimSpace(inv.Entity) == "" {
		return invalid("entity", ErrEmptyEntity)
	}
	if strings.TrimSpace(inv.Concept) == "" {
		return invalid("concept", ErrEmptyConcept)
	}
	if !IsFinite(inv.Base) {
		return invalid("base", ErrInvalidAmount)
	}
	if inv.Base < 0 {
		return invalid("base", ErrNegativeBase)
	}
	if !IsFinite(inv.TaxPct) {
		return invalid("taxPct", ErrInvalidAmount)
	}
	return nil
}

// Sanitized returns a copy with trimmed text fields and coerced numbers, the
// shape every record has before it reaches a store.
func (inv Invoice) Sanitized() Invoice {
	inv.ID = strings.TrimSpace(inv.ID)
	inv.Number = strings.TrimSpace(inv.Number)
	inv.Date = strings.TrimSpace(inv.Date)
	inv.Entity = strings.TrimSpace(inv.Entity)
	inv.Concept = strings.TrimSpace(inv.Concept)
	inv.Payment = strings.TrimSpace(inv.Payment)
	inv.Category = strings.TrimSpace(inv.Category)
	inv.Notes = strings.TrimSpace(inv.Notes)
	inv.PDFPath = strings.TrimSpace(inv.PDFPath)
	inv.Base = CoerceFloat(inv.Base)
	inv.TaxPct = CoerceFloat(inv.TaxPct)
	return inv
}
