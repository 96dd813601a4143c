package http

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"facturas/internal/core"
	applog "facturas/internal/log"
	"facturas/internal/services"

	"github.com/gorilla/mux"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	m := s.tracer.GetMetrics()
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"requests":  m.TotalRequests,
	}).Write(w)
}

// handleReady reports whether the record store can be read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	invs, err := s.ledger.Invoices(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{"status": "ready", "invoices": len(invs)}).Write(w)
}

// fail writes the response for err. Only unexpected errors are logged at
// error level; client mistakes already show up in the request log.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ServiceError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, nil)
	}
	resp.Write(w)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rep, err := s.ledger.Report(r.Context(), f)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Data(rep.Invoices).Write(w)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var in services.InvoiceInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	inv, err := s.ledger.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/invoices/"+inv.ID).
		Data(inv).
		Write(w)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.ledger.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(inv).Write(w)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var in services.InvoiceInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	inv, err := s.ledger.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(inv).Write(w)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleToggleArchived(w http.ResponseWriter, r *http.Request) {
	inv, err := s.ledger.ToggleArchived(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, applog.OpArchive, err)
		return
	}
	NewJSONResponse().Data(inv).Write(w)
}

type summaryResponse struct {
	Count      int         `json:"count"`
	Totals     core.Totals `json:"totals"`
	ByCategory core.Series `json:"byCategory"`
	ByMonth    core.Series `json:"byMonth"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rep, err := s.ledger.Report(r.Context(), f)
	if err != nil {
		s.fail(w, r, applog.OpReport, err)
		return
	}
	NewJSONResponse().Data(summaryResponse{
		Count:      len(rep.Invoices),
		Totals:     rep.Totals,
		ByCategory: rep.ByCategory,
		ByMonth:    rep.ByMonth,
	}).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	// Buffered so a failure can still produce an error status.
	var buf bytes.Buffer
	if err := s.ledger.Export(r.Context(), &buf, format); err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.FileName()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	n, err := s.ledger.Import(r.Context(), body, format)
	if err != nil {
		s.fail(w, r, applog.OpImport, err)
		return
	}
	NewJSONResponse().Data(map[string]int{"imported": n}).Write(w)
}

type settingsPayload struct {
	IRPFPct   *float64 `json:"irpfPct"`
	DarkTheme *bool    `json:"darkTheme"`
}

func (s *Server) currentSettings() (settingsPayload, error) {
	irpf, err := s.settings.IRPFPct()
	if err != nil {
		return settingsPayload{}, err
	}
	dark, err := s.settings.DarkTheme()
	if err != nil {
		return settingsPayload{}, err
	}
	return settingsPayload{IRPFPct: &irpf, DarkTheme: &dark}, nil
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cur, err := s.currentSettings()
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(cur).Write(w)
}

// handleUpdateSettings applies only the fields present in the body.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in settingsPayload
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if in.IRPFPct != nil {
		if _, err := s.settings.SetIRPFPct(*in.IRPFPct); err != nil {
			s.fail(w, r, applog.OpUpdate, err)
			return
		}
	}
	if in.DarkTheme != nil {
		if err := s.settings.SetDarkTheme(*in.DarkTheme); err != nil {
			s.fail(w, r, applog.OpUpdate, err)
			return
		}
	}
	cur, err := s.currentSettings()
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(cur).Write(w)
}
