// Package apierr provides structured error responses for the HTTP API.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"modelmarket/internal/adapters/backend"
	"modelmarket/internal/auth"
	"modelmarket/internal/domain"
	"modelmarket/internal/pipeline"
	"modelmarket/internal/ports"
	"modelmarket/internal/realtime"
	"modelmarket/internal/services/chat"
	"modelmarket/internal/services/domains"
	"modelmarket/internal/services/runs"
	"modelmarket/internal/services/training"
	"modelmarket/internal/services/wallet"
)

const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeBadGateway      = "BAD_GATEWAY"
)

// APIError is the body of every failed response.
type APIError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func Validation(message string) *APIError   { return New(CodeValidationError, message) }
func NotFound(message string) *APIError     { return New(CodeNotFound, message) }
func Unauthorized(message string) *APIError { return New(CodeUnauthorized, message) }
func Forbidden(message string) *APIError    { return New(CodeForbidden, message) }
func Conflict(message string) *APIError     { return New(CodeConflict, message) }
func Internal(message string) *APIError     { return New(CodeInternalError, message) }

func (e *APIError) WithDetails(details map[string]any) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *APIError) WithRequestID(requestID string) *APIError {
	cp := *e
	cp.RequestID = requestID
	return &cp
}

func (e *APIError) HTTPStatusCode() int {
	switch e.Code {
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromError maps service and adapter errors to API errors. Unknown errors
// become INTERNAL_ERROR without leaking their text.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return NotFound("resource not found")
	case errors.Is(err, ports.ErrConflict):
		return Conflict("resource is in a conflicting state")
	case errors.Is(err, ports.ErrInsufficientFunds):
		return Conflict(err.Error())
	case errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, runs.ErrInvalidFile),
		errors.Is(err, runs.ErrInvalidLevel),
		errors.Is(err, domains.ErrInvalidDomain),
		errors.Is(err, training.ErrInvalidProgress),
		errors.Is(err, wallet.ErrUnknownPackage),
		errors.Is(err, chat.ErrEmptyConversation),
		errors.Is(err, realtime.ErrInvalidFilter),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword):
		return Validation(err.Error())
	case errors.Is(err, runs.ErrReportNotReady),
		errors.Is(err, wallet.ErrPaymentPending),
		errors.Is(err, auth.ErrEmailTaken):
		return Conflict(err.Error())
	case errors.Is(err, wallet.ErrPaymentMismatch):
		return Forbidden(err.Error())
	case errors.Is(err, pipeline.ErrThreatDetected):
		return Validation(err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrRevokedToken),
		errors.Is(err, auth.ErrMissingClaims):
		return Unauthorized(err.Error())
	case errors.Is(err, backend.ErrNotConfigured), errors.As(err, &statusErr):
		return New(CodeBadGateway, "backend API unavailable")
	default:
		return Internal("an unexpected error occurred")
	}
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func WriteError(w http.ResponseWriter, err *APIError, requestID string) {
	err = err.WithRequestID(requestID)
	WriteJSON(w, err.HTTPStatusCode(), err)
}
