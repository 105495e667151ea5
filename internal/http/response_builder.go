// Package http provides the JSON API server and its handlers.
//
// This file implements the builder used by every handler to write JSON
// responses and the mapping from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"aarthik/internal/core"
	applog "aarthik/internal/log"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
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
	b.data = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body, err := json.Marshal(b.data)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		b.statusCode = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorBody{Error: "internal", Message: "internal error"})
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorResponse creates an error response with the given status and code.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(ErrorBody{Error: code, Message: message})
}

// BadRequestError creates a 400 invalid_argument response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "invalid_argument", message)
}

// NotFoundError creates a 404 not_found response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later")
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch core.Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "insufficient_balance", "invalid_argument":
		return http.StatusBadRequest
	case "upstream_unavailable":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the error response for err. Internal errors are logged
// and their details withheld from the client.
func FromError(r *http.Request, err error) *JSONResponseBuilder {
	status := StatusFor(err)
	kind := core.Kind(err)
	msg := err.Error()

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, "invalid_argument", "request body too large")
	case status == http.StatusInternalServerError:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		msg = "internal error"
	case status == http.StatusBadGateway:
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Upstream unavailable", applog.FieldError, err, applog.FieldPath, r.URL.Path)
	}
	return ErrorResponse(status, kind, msg)
}
