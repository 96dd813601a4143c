package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"facturas/internal/backup"
	"facturas/internal/core"
	applog "facturas/internal/log"
	"facturas/internal/middleware/ratelimit"
	"facturas/internal/middleware/security"
	"facturas/internal/middleware/trace"
	"facturas/internal/services"

	"github.com/gorilla/mux"
)

// Ledger is the part of the ledger service the API needs.
type Ledger interface {
	Invoices(ctx context.Context) ([]core.Invoice, error)
	Get(ctx context.Context, id string) (core.Invoice, error)
	Create(ctx context.Context, in services.InvoiceInput) (core.Invoice, error)
	Update(ctx context.Context, id string, in services.InvoiceInput) (core.Invoice, error)
	ToggleArchived(ctx context.Context, id string) (core.Invoice, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, r io.Reader, format backup.Format) (int, error)
	Export(ctx context.Context, w io.Writer, format backup.Format) error
	Report(ctx context.Context, f core.Filter) (core.Report, error)
}

// SettingsStore reads and writes user preferences.
type SettingsStore interface {
	IRPFPct() (float64, error)
	SetIRPFPct(v float64) (float64, error)
	DarkTheme() (bool, error)
	SetDarkTheme(dark bool) error
}

type Server struct {
	http.Server
	router   *mux.Router
	ledger   Ledger
	settings SettingsStore
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, settings SettingsStore, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		router:   mux.NewRouter(),
		ledger:   ledger,
		settings: settings,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:   trace.NewMiddleware(logger, extractClientIP),
		started:  time.Now(),
	}
	s.routes()

	// The chain wraps the router itself so unmatched routes are traced too.
	var h http.Handler = s.router
	h = s.limiter.Middleware(extractClientIP, handleRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.Recover(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("no such route").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	// Routes stay on the root router: a subrouter answers 404 instead of
	// 405 when only the method differs.
	r.HandleFunc("/api/invoices", s.handleListInvoices).Methods(http.MethodGet)
	r.HandleFunc("/api/invoices", s.handleCreateInvoice).Methods(http.MethodPost)
	r.HandleFunc("/api/invoices/{id}", s.handleGetInvoice).Methods(http.MethodGet)
	r.HandleFunc("/api/invoices/{id}", s.handleUpdateInvoice).Methods(http.MethodPut)
	r.HandleFunc("/api/invoices/{id}", s.handleDeleteInvoice).Methods(http.MethodDelete)
	r.HandleFunc("/api/invoices/{id}/archive", s.handleToggleArchived).Methods(http.MethodPost)

	r.HandleFunc("/api/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/api/import", s.handleImport).Methods(http.MethodPost)
	r.HandleFunc("/api/settings", s.handleGetSettings).Methods(http.MethodGet)
	r.HandleFunc("/api/settings", s.handleUpdateSettings).Methods(http.MethodPut)
}

// Shutdown gracefully shuts down the server and the limiter cleanup routine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request, wait time.Duration) {
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
		Header("Retry-After", ratelimit.RetryAfter(wait)).
		Write(w)
}
