// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// list filters from the query string and JSON bodies for the write endpoints.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"facturas/internal/backup"
	"facturas/internal/core"
)

// maxBodyBytes bounds JSON bodies. Imports use maxImportBytes.
const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 32 << 20
)

var errEmptyBody = errors.New("request body is empty")

// ParseFilter builds a list filter from query parameters:
// type, category, from, to, archived and q. An unknown type is an error;
// unparseable dates are ignored by the filter itself.
func ParseFilter(query url.Values) (core.Filter, error) {
	f := core.Filter{
		Category: sanitizeInput(query.Get("category")),
		DateFrom: strings.TrimSpace(query.Get("from")),
		DateTo:   strings.TrimSpace(query.Get("to")),
		Search:   sanitizeInput(query.Get("q")),
	}

	if v := strings.TrimSpace(query.Get("type")); v != "" {
		t, err := core.ParseInvoiceType(v)
		if err != nil {
			return core.Filter{}, err
		}
		f.Type = t
	}

	if v := strings.TrimSpace(query.Get("archived")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid archived flag %q", v)
		}
		f.IncludeArchived = b
	}

	return f, nil
}

// ParseFormat reads the backup format from the format query parameter,
// defaulting to JSON.
func ParseFormat(query url.Values) (backup.Format, error) {
	return backup.ParseFormat(query.Get("format"))
}

// decodeJSON reads a single JSON value from the request body into dst.
// Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON value")
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
