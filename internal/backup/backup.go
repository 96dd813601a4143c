// Package backup converts the invoice collection to and from the two export
// formats: an indented JSON array and a CSV table with a fixed header.
//
// Import never rejects an individual element. Every element is normalized
// into a storable record (see Normalize); only a document that is not a list
// at all is refused.
package backup

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"facturas/internal/core"

	"github.com/google/uuid"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var (
	ErrNotSequence     = errors.New("import document is not a list of records")
	ErrInvalidDocument = errors.New("invalid import document")
	ErrUnknownFormat   = errors.New("unknown backup format")
)

// Header is the CSV column order. It never changes.
var Header = []string{"id", "number", "date", "type", "entity", "concept", "base", "taxPct", "payment", "category", "notes", "pdfPath", "archived"}

// legacyTaxKey is accepted on import when taxPct is absent.
const legacyTaxKey = "ivaPct"

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// FileName is the suggested download name for f.
func (f Format) FileName() string {
	if f == FormatCSV {
		return "facturas.csv"
	}
	return "facturas_backup.json"
}

// Write encodes invs in format f.
func Write(w io.Writer, f Format, invs []core.Invoice) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, invs)
	case FormatCSV:
		return WriteCSV(w, invs)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Read decodes and normalizes a document in format f. Missing ids are filled
// with newID, or a random UUID when newID is nil.
func Read(r io.Reader, f Format, newID func() string) ([]core.Invoice, error) {
	switch f {
	case FormatJSON:
		return ReadJSON(r, newID)
	case FormatCSV:
		return ReadCSV(r, newID)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func WriteJSON(w io.Writer, invs []core.Invoice) error {
	if invs == nil {
		invs = []core.Invoice{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(invs); err != nil {
		return fmt.Errorf("encode json backup: %w", err)
	}
	return nil
}

func WriteCSV(w io.Writer, invs []core.Invoice) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, inv := range invs {
		if err := cw.Write(csvRow(inv)); err != nil {
			return fmt.Errorf("write csv row %s: %w", inv.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRow(inv core.Invoice) []string {
	return []string{
		inv.ID,
		inv.Number,
		inv.Date,
		string(inv.Type),
		inv.Entity,
		inv.Concept,
		formatFloat(inv.Base),
		formatFloat(inv.TaxPct),
		inv.Payment,
		inv.Category,
		inv.Notes,
		inv.PDFPath,
		strconv.FormatBool(inv.Archived),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(core.CoerceFloat(f), 'f', -1, 64)
}

func ReadJSON(r io.Reader, newID func() string) ([]core.Invoice, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	// The document must be exactly one value.
	if err := dec.Decode(new(any)); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	elems, ok := doc.([]any)
	if !ok {
		return nil, ErrNotSequence
	}

	invs := make([]core.Invoice, 0, len(elems))
	for _, e := range elems {
		// Non-object elements normalize like an empty object.
		m, _ := e.(map[string]any)
		invs = append(invs, Normalize(m, newID))
	}
	return invs, nil
}

func ReadCSV(r io.Reader, newID func() string) ([]core.Invoice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty csv", ErrInvalidDocument)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	invs := make([]core.Invoice, 0)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		m := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		invs = append(invs, Normalize(m, newID))
	}
	return invs, nil
}

// Normalize turns one loosely typed import element into a record. Missing
// fields take their zero value, numbers parse or become 0, the type is
// received only when it says exactly that, and a missing id gets a new one.
func Normalize(m map[string]any, newID func() string) core.Invoice {
	if newID == nil {
		newID = uuid.NewString
	}

	id := str(m["id"])
	if id == "" {
		id = newID()
	}

	typ := core.Issued
	if str(m["type"]) == string(core.Received) {
		typ = core.Received
	}

	tax, ok := m["taxPct"]
	if !ok {
		tax = m[legacyTaxKey]
	}

	return core.Invoice{
		ID:       id,
		Number:   strings.TrimSpace(str(m["number"])),
		Date:     str(m["date"]),
		Type:     typ,
		Entity:   str(m["entity"]),
		Concept:  str(m["concept"]),
		Base:     core.CoerceAny(m["base"]),
		TaxPct:   core.CoerceAny(tax),
		Payment:  str(m["payment"]),
		Category: strings.TrimSpace(str(m["category"])),
		Notes:    str(m["notes"]),
		PDFPath:  str(m["pdfPath"]),
		Archived: truthy(m["archived"]),
	}
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b
		}
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
