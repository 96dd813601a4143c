package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"facturas/internal/backup"
	"facturas/internal/cache"
	"facturas/internal/core"
	applog "facturas/internal/log"
	"facturas/internal/store"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("invoice not found")

// SettingsReader supplies the withholding percentage used by reports.
type SettingsReader interface {
	IRPFPct() (float64, error)
}

// InvoiceInput is the entry form. A nil TaxPct means "not given": new
// invoices get core.DefaultTaxPct and updates keep the stored rate.
type InvoiceInput struct {
	Number   string           `json:"number"`
	Date     string           `json:"date"`
	Type     core.InvoiceType `json:"type"`
	Entity   string           `json:"entity"`
	Concept  string           `json:"concept"`
	Base     float64          `json:"base"`
	TaxPct   *float64         `json:"taxPct,omitempty"`
	Payment  string           `json:"payment"`
	Category string           `json:"category"`
	Notes    string           `json:"notes"`
	PDFPath  string           `json:"pdfPath"`
	Archived bool             `json:"archived"`
}

// LedgerService validates and applies every mutation to the record store and
// keeps an in-memory copy of the collection for reads. The copy is replaced
// from GetAll after each successful mutation, never patched in place.
type LedgerService struct {
	store    store.Store
	settings SettingsReader
	reports  cache.Cache[core.Report]
	logger   *applog.Logger
	events   *applog.StructuredLogger
	newID    func() string

	// mu serializes mutations; snapMu guards invoices.
	mu       sync.Mutex
	snapMu   sync.RWMutex
	invoices []core.Invoice
	gen      uint64
	loaded   bool
}

type Option func(*LedgerService)

// WithReportCache memoizes reports in c. Without it a small default cache is used.
func WithReportCache(c cache.Cache[core.Report]) Option {
	return func(s *LedgerService) { s.reports = c }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

// WithIDGenerator replaces the UUID generator, for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *LedgerService) { s.newID = fn }
}

func NewLedgerService(st store.Store, settings SettingsReader, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:    st,
		settings: settings,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reports == nil {
		s.reports = cache.NewLRUCache[core.Report](16, 5*time.Minute)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentLedger)
	s.events = applog.NewStructuredLogger(s.logger)
	return s
}

// Load replaces the in-memory copy with the stored collection.
func (s *LedgerService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload(ctx)
}

func (s *LedgerService) reload(ctx context.Context) error {
	all, err := s.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load invoices: %w", err)
	}
	s.snapMu.Lock()
	s.invoices = all
	s.gen++
	s.loaded = true
	gen := s.gen
	s.snapMu.Unlock()
	dropped := s.reports.Invalidate(gen)

	s.logger.DebugContext(ctx, "Invoice cache rebuilt", applog.FieldCount, len(all), "reports_dropped", dropped)
	return nil
}

func (s *LedgerService) ensureLoaded(ctx context.Context) error {
	s.snapMu.RLock()
	loaded := s.loaded
	s.snapMu.RUnlock()
	if loaded {
		return nil
	}
	return s.Load(ctx)
}

// Invoices returns a copy of the whole collection in storage order.
func (s *LedgerService) Invoices(ctx context.Context) ([]core.Invoice, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

func (s *LedgerService) snapshot() []core.Invoice {
	out, _ := s.versionedSnapshot()
	return out
}

func (s *LedgerService) versionedSnapshot() ([]core.Invoice, uint64) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	out := make([]core.Invoice, len(s.invoices))
	copy(out, s.invoices)
	return out, s.gen
}

func (s *LedgerService) find(id string) (core.Invoice, bool) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	for _, inv := range s.invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return core.Invoice{}, false
}

// numberTaken reports whether another record already uses number.
func (s *LedgerService) numberTaken(number, exceptID string) bool {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	for _, inv := range s.invoices {
		if inv.Number == number && inv.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *LedgerService) Get(ctx context.Context, id string) (core.Invoice, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return core.Invoice{}, err
	}
	inv, ok := s.find(id)
	if !ok {
		return core.Invoice{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inv, nil
}

func (in InvoiceInput) toInvoice(id string, taxPct float64) core.Invoice {
	if in.TaxPct != nil {
		taxPct = *in.TaxPct
	}
	inv := core.Invoice{
		ID:       id,
		Number:   in.Number,
		Date:     in.Date,
		Type:     in.Type,
		Entity:   in.Entity,
		Concept:  in.Concept,
		Base:     in.Base,
		TaxPct:   taxPct,
		Payment:  in.Payment,
		Category: in.Category,
		Notes:    in.Notes,
		PDFPath:  in.PDFPath,
		Archived: in.Archived,
	}.Sanitized()
	if t, ok := core.ParseDate(inv.Date); ok {
		inv.Date = t.Format(core.DateLayout)
	}
	return inv
}

// prepare validates inv and checks its number against the rest of the
// collection. No store call is made when it fails.
func (s *LedgerService) prepare(inv core.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	if s.numberTaken(inv.Number, inv.ID) {
		return &store.ConflictError{Err: store.ErrDuplicateNumber, ID: inv.ID, Number: inv.Number}
	}
	return nil
}

// Create validates and stores a new invoice with a fresh id.
func (s *LedgerService) Create(ctx context.Context, in InvoiceInput) (core.Invoice, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return core.Invoice{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inv := in.toInvoice(s.newID(), core.DefaultTaxPct)
	if err := s.prepare(inv); err != nil {
		return core.Invoice{}, err
	}
	if _, err := s.store.Add(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("add invoice: %w", err)
	}
	if err := s.reload(ctx); err != nil {
		return core.Invoice{}, err
	}

	s.events.LogInvoiceSaved(ctx, applog.OpCreate, inv.ID, inv.Number, inv.Type.String(), inv.Base, inv.Category)
	return inv, nil
}

// Update replaces every editable field of an existing invoice.
func (s *LedgerService) Update(ctx context.Context, id string, in InvoiceInput) (core.Invoice, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return core.Invoice{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.find(id)
	if !ok {
		return core.Invoice{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	inv := in.toInvoice(existing.ID, existing.TaxPct)
	if err := s.save(ctx, inv); err != nil {
		return core.Invoice{}, err
	}

	s.events.LogInvoiceSaved(ctx, applog.OpUpdate, inv.ID, inv.Number, inv.Type.String(), inv.Base, inv.Category)
	return inv, nil
}

// ToggleArchived flips the archived flag and returns the updated invoice.
func (s *LedgerService) ToggleArchived(ctx context.Context, id string) (core.Invoice, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return core.Invoice{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.find(id)
	if !ok {
		return core.Invoice{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	inv.Archived = !inv.Archived
	if err := s.save(ctx, inv); err != nil {
		return core.Invoice{}, err
	}

	s.logger.InfoContext(ctx, "Invoice archive flag changed",
		applog.FieldOperation, applog.OpArchive,
		applog.FieldInvoiceID, inv.ID,
		"archived", inv.Archived)
	return inv, nil
}

func (s *LedgerService) save(ctx context.Context, inv core.Invoice) error {
	if err := s.prepare(inv); err != nil {
		return err
	}
	if _, err := s.store.Put(ctx, inv); err != nil {
		return fmt.Errorf("put invoice: %w", err)
	}
	return s.reload(ctx)
}

// Delete removes an invoice. Unknown ids are ignored, like the store does.
func (s *LedgerService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if err := s.reload(ctx); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Invoice deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldInvoiceID, id)
	return nil
}

// Import parses a backup document and replaces the whole collection with it.
// Nothing is stored when the document cannot be parsed or the batch
// conflicts with itself.
func (s *LedgerService) Import(ctx context.Context, r io.Reader, format backup.Format) (int, error) {
	invs, err := backup.Read(r, format, s.newID)
	if err != nil {
		return 0, err
	}
	if err := s.ReplaceAll(ctx, invs); err != nil {
		return 0, err
	}
	s.events.LogImport(ctx, string(format), len(invs))
	return len(invs), nil
}

// ReplaceAll stores invs in place of the current collection.
func (s *LedgerService) ReplaceAll(ctx context.Context, invs []core.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ClearAndImport(ctx, invs); err != nil {
		return fmt.Errorf("import invoices: %w", err)
	}
	return s.reload(ctx)
}

// Export writes the whole collection, archived records included.
func (s *LedgerService) Export(ctx context.Context, w io.Writer, format backup.Format) error {
	invs, err := s.Invoices(ctx)
	if err != nil {
		return err
	}
	if err := backup.Write(w, format, invs); err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	s.logger.DebugContext(ctx, "Invoices exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldFormat, string(format),
		applog.FieldCount, len(invs))
	return nil
}

// Report builds the filtered view, totals and chart series using the stored
// withholding percentage. Results are memoized until the next mutation.
func (s *LedgerService) Report(ctx context.Context, f core.Filter) (core.Report, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return core.Report{}, err
	}
	irpf := 0.0
	if s.settings != nil {
		v, err := s.settings.IRPFPct()
		if err != nil {
			return core.Report{}, fmt.Errorf("read irpf: %w", err)
		}
		irpf = v
	}

	invs, gen := s.versionedSnapshot()
	key := f.Key() + "|" + strconv.FormatFloat(irpf, 'f', -1, 64)
	if r, ok := s.reports.Get(key, gen); ok {
		return r, nil
	}
	r := core.BuildReport(invs, f, irpf)
	s.reports.Set(key, gen, r)
	return r, nil
}

// Close releases the underlying store.
func (s *LedgerService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
