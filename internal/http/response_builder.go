// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps service errors to status codes in one place.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"facturas/internal/backup"
	"facturas/internal/core"
	"facturas/internal/services"
	"facturas/internal/store"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.payload)
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Number string `json:"number,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Data(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed")
}

// ServiceError maps a ledger error onto a response. Internal errors are not
// echoed to the client.
func ServiceError(err error) *JSONResponseBuilder {
	var verr *core.ValidationError
	var cerr *store.ConflictError
	switch {
	case errors.As(err, &verr):
		return NewJSONResponse().Status(http.StatusBadRequest).Data(errorBody{Error: verr.Error(), Field: verr.Field})
	case errors.As(err, &cerr):
		return NewJSONResponse().Status(http.StatusConflict).Data(errorBody{Error: cerr.Error(), Number: cerr.Number})
	case errors.Is(err, store.ErrDuplicateKey), errors.Is(err, store.ErrDuplicateNumber):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, backup.ErrNotSequence),
		errors.Is(err, backup.ErrInvalidDocument),
		errors.Is(err, backup.ErrUnknownFormat):
		return BadRequestError(err.Error())
	}
	return InternalServerError("internal error")
}
