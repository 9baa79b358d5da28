// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/scrobblographus/internal/logging"
)

// APIResponse is the standard envelope for all JSON endpoints.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError carries a machine-readable code plus a human-readable message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// APIMeta holds response metadata.
type APIMeta struct {
	RequestID  string          `json:"request_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// PaginationMeta describes the page window of a list response.
type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Error codes returned in the envelope.
const (
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeInternal    = "INTERNAL_ERROR"
	ErrCodeUpstream    = "UPSTREAM_ERROR"
	ErrCodeRateLimited = "RATE_LIMITED"
)

// ResponseWriter wraps an http.ResponseWriter with envelope helpers.
type ResponseWriter struct {
	w http.ResponseWriter
	r *http.Request
}

// NewResponseWriter creates a ResponseWriter for the given request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r}
}

func (rw *ResponseWriter) meta() *APIMeta {
	return &APIMeta{
		RequestID: RequestIDFromContext(rw.r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// Success writes a 200 response with the given payload.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: rw.meta()})
}

// SuccessWithStatus writes a success envelope with a non-200 status code.
func (rw *ResponseWriter) SuccessWithStatus(status int, data interface{}) {
	rw.writeJSON(status, APIResponse{Success: true, Data: data, Meta: rw.meta()})
}

// SuccessPaginated writes a 200 list response with pagination metadata.
func (rw *ResponseWriter) SuccessPaginated(data interface{}, page, limit, total int) {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	meta := rw.meta()
	meta.Pagination = &PaginationMeta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: meta})
}

// Error writes an error envelope with the given status and code.
func (rw *ResponseWriter) Error(status int, code, message string) {
	rw.writeJSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    rw.meta(),
	})
}

// BadRequest writes a 400 response.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound writes a 404 response.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError writes a 500 response. The underlying error is logged but
// never exposed to the client.
func (rw *ResponseWriter) InternalError(err error) {
	logging.Error().
		Err(err).
		Str("request_id", RequestIDFromContext(rw.r.Context())).
		Str("path", rw.r.URL.Path).
		Msg("Internal error")
	rw.Error(http.StatusInternalServerError, ErrCodeInternal, "An internal error occurred")
}

// UpstreamError writes a 502 response for remote source failures.
func (rw *ResponseWriter) UpstreamError(err error) {
	logging.Warn().
		Err(err).
		Str("request_id", RequestIDFromContext(rw.r.Context())).
		Str("path", rw.r.URL.Path).
		Msg("Upstream error")
	rw.Error(http.StatusBadGateway, ErrCodeUpstream, "The listening history source is unavailable")
}

func (rw *ResponseWriter) writeJSON(status int, resp APIResponse) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}
