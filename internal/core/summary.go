package core

import (
	"sort"
	"strings"
)

// Uncategorized is the chart key for invoices without a category.
const Uncategorized = "—"

// Totals are the KPI figures shown above the invoice list.
type Totals struct {
	TotalIssued   float64 `json:"totalIssued"`
	TotalReceived float64 `json:"totalReceived"`
	Profit        float64 `json:"profit"`
	TaxIssued     float64 `json:"taxIssued"`
	TaxReceived   float64 `json:"taxReceived"`
	TaxBalance    float64 `json:"taxBalance"`
	CountIssued   int     `json:"countIssued"`
	CountReceived int     `json:"countReceived"`
	Withholding   float64 `json:"withholding"`
}

// Series is a grouped aggregate with parallel per-label totals.
type Series struct {
	Labels   []string  `json:"labels"`
	Issued   []float64 `json:"issued"`
	Received []float64 `json:"received"`
}

// Report bundles everything the list view derives from one filter pass.
type Report struct {
	Invoices   []Invoice `json:"invoices"`
	Totals     Totals    `json:"totals"`
	ByCategory Series    `json:"byCategory"`
	ByMonth    Series    `json:"byMonth"`
}

// ComputeTotals sums totals and tax per invoice type. Anything that is not
// received counts as issued. Withholding applies irpfPct to positive profit
// only, so it is never negative.
func ComputeTotals(records []Invoice, irpfPct float64) Totals {
	var t Totals
	for _, inv := range records {
		tax := inv.Tax()
		total := inv.Total()
		if inv.Type == Received {
			t.TotalReceived += total
			t.TaxReceived += tax
			t.CountReceived++
		} else {
			t.TotalIssued += total
			t.TaxIssued += tax
			t.CountIssued++
		}
	}
	t.Profit = t.TotalIssued - t.TotalReceived
	t.TaxBalance = t.TaxIssued - t.TaxReceived
	if t.Profit > 0 {
		t.Withholding = t.Profit * CoerceFloat(irpfPct) / 100
	}
	return t
}

type bucket struct {
	issued, received float64
}

func (b *bucket) add(inv Invoice) {
	if inv.Type == Received {
		b.received += inv.Total()
	} else {
		b.issued += inv.Total()
	}
}

func seriesFrom(keys []string, buckets map[string]*bucket) Series {
	s := Series{
		Labels:   keys,
		Issued:   make([]float64, len(keys)),
		Received: make([]float64, len(keys)),
	}
	for i, k := range keys {
		s.Issued[i] = buckets[k].issued
		s.Received[i] = buckets[k].received
	}
	return s
}

// GroupByCategory totals invoices per category, in order of first appearance.
func GroupByCategory(records []Invoice) Series {
	buckets := make(map[string]*bucket)
	keys := make([]string, 0)
	for _, inv := range records {
		key := strings.TrimSpace(inv.Category)
		if key == "" {
			key = Uncategorized
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			keys = append(keys, key)
		}
		b.add(inv)
	}
	return seriesFrom(keys, buckets)
}

// GroupByMonth totals invoices per YYYY-MM, oldest first. Invoices whose date
// does not parse are left out of this grouping only.
func GroupByMonth(records []Invoice) Series {
	buckets := make(map[string]*bucket)
	keys := make([]string, 0)
	for _, inv := range records {
		key, ok := MonthKey(inv.Date)
		if !ok {
			continue
		}
		b, seen := buckets[key]
		if !seen {
			b = &bucket{}
			buckets[key] = b
			keys = append(keys, key)
		}
		b.add(inv)
	}
	sort.Strings(keys)
	return seriesFrom(keys, buckets)
}

// BuildReport filters the collection and derives totals and both chart
// series from the filtered view.
func BuildReport(records []Invoice, f Filter, irpfPct float64) Report {
	view := ApplyFilters(records, f)
	return Report{
		Invoices:   view,
		Totals:     ComputeTotals(view, irpfPct),
		ByCategory: GroupByCategory(view),
		ByMonth:    GroupByMonth(view),
	}
}
