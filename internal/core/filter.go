package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Filter selects invoices for the list view. Zero values disable a predicate,
// except IncludeArchived: archived invoices are hidden unless it is set.
type Filter struct {
	Type            InvoiceType
	Category        string // case-insensitive substring
	DateFrom        string // inclusive, YYYY-MM-DD; invoices without a valid date always pass
	DateTo          string // inclusive, YYYY-MM-DD
	IncludeArchived bool
	Search          string // case-insensitive substring of number, entity, concept and notes
}

// Key identifies the filter in report caches.
func (f Filter) Key() string {
	return fmt.Sprintf("t=%s|c=%s|f=%s|to=%s|a=%t|q=%s",
		f.Type,
		strings.ToLower(strings.TrimSpace(f.Category)),
		strings.TrimSpace(f.DateFrom),
		strings.TrimSpace(f.DateTo),
		f.IncludeArchived,
		strings.ToLower(strings.TrimSpace(f.Search)))
}

type compiledFilter struct {
	typ             InvoiceType
	category        string
	from, to        time.Time
	hasFrom, hasTo  bool
	includeArchived bool
	search          string
}

func (f Filter) compile() compiledFilter {
	c := compiledFilter{
		typ:             InvoiceType(strings.TrimSpace(string(f.Type))),
		category:        strings.ToLower(strings.TrimSpace(f.Category)),
		includeArchived: f.IncludeArchived,
		search:          strings.ToLower(strings.TrimSpace(f.Search)),
	}
	// Unparseable bounds are ignored rather than matching nothing.
	c.from, c.hasFrom = ParseDate(f.DateFrom)
	c.to, c.hasTo = ParseDate(f.DateTo)
	return c
}

func (c compiledFilter) match(inv Invoice) bool {
	if c.typ != "" && inv.Type != c.typ {
		return false
	}
	if !c.includeArchived && inv.Archived {
		return false
	}
	if c.category != "" && !strings.Contains(strings.ToLower(inv.Category), c.category) {
		return false
	}
	// An invoice whose date does not parse cannot fall outside a range.
	if d, ok := ParseDate(inv.Date); ok {
		if c.hasFrom && d.Before(c.from) {
			return false
		}
		if c.hasTo && d.After(c.to) {
			return false
		}
	}
	if c.search != "" {
		blob := strings.ToLower(inv.Number + " " + inv.Entity + " " + inv.Concept + " " + inv.Notes)
		if !strings.Contains(blob, c.search) {
			return false
		}
	}
	return true
}

// ApplyFilters returns the invoices matching every active predicate, newest
// first. The input slice is not modified.
func ApplyFilters(records []Invoice, f Filter) []Invoice {
	c := f.compile()
	out := make([]Invoice, 0, len(records))
	for _, inv := range records {
		if c.match(inv) {
			out = append(out, inv)
		}
	}
	SortByDateDesc(out)
	return out
}

// SortByDateDesc orders invoices by date, newest first, in place. The sort is
// stable and invoices with unparseable dates go last.
func SortByDateDesc(records []Invoice) {
	type keyed struct {
		t  time.Time
		ok bool
	}
	keys := make([]keyed, len(records))
	idx := make([]int, len(records))
	for i, inv := range records {
		t, ok := ParseDate(inv.Date)
		keys[i] = keyed{t, ok}
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.ok != kb.ok {
			return ka.ok
		}
		return ka.t.After(kb.t)
	})
	sorted := make([]Invoice, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}
