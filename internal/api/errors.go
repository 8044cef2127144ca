// Package api provides the HTTP boundary of the layout service, including
// standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/homelayout/internal/location"
	"github.com/onnwee/homelayout/internal/middleware"
	"github.com/onnwee/homelayout/internal/validate"
	"github.com/onnwee/homelayout/internal/widget"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeInvalidParent indicates a missing parent or a parent cycle.
	ErrCodeInvalidParent = "invalid_parent"

	// ErrCodeProtectedPage indicates an attempt to remove the default page.
	ErrCodeProtectedPage = "protected_page"

	ErrCodeUnknownSynonym      = "unknown_synonym"
	ErrCodeUnsupportedFunction = "unsupported_function"

	// ErrCodeWidgetType indicates an unregistered skill/widget pair.
	ErrCodeWidgetType = "widget_type"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// The error_code is logged by the logging middleware when the handler calls
// SetErrorCode and passes the updated context:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Widget not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidParent:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeUnknownSynonym:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeProtectedPage:
		return http.StatusConflict
	case ErrCodeUnsupportedFunction, ErrCodeWidgetType:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode classifies a domain error. Errors that are not part of the
// layout taxonomy (store failures and the like) map to ErrCodeInternal.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, location.ErrLocationNotFound),
		errors.Is(err, widget.ErrWidgetNotFound),
		errors.Is(err, widget.ErrPageNotFound):
		return ErrCodeNotFound
	case errors.Is(err, location.ErrDuplicateName),
		errors.Is(err, location.ErrHasChildren):
		return ErrCodeConflict
	case errors.Is(err, location.ErrInvalidParent),
		errors.Is(err, location.ErrParentCycle):
		return ErrCodeInvalidParent
	case errors.Is(err, widget.ErrProtectedPage):
		return ErrCodeProtectedPage
	case errors.Is(err, location.ErrUnknownSynonym):
		return ErrCodeUnknownSynonym
	case errors.Is(err, widget.ErrUnsupportedFunction):
		return ErrCodeUnsupportedFunction
	case errors.Is(err, widget.ErrUnknownWidgetType):
		return ErrCodeWidgetType
	case errors.Is(err, location.ErrInvalidName),
		errors.Is(err, location.ErrInvalidSynonym),
		errors.Is(err, location.ErrInvalidSettings),
		errors.Is(err, widget.ErrInvalidOption),
		errors.Is(err, widget.ErrInvalidGeometry),
		errors.Is(err, widget.ErrInvalidFunctionInput),
		errors.Is(err, validate.ErrEmpty),
		errors.Is(err, validate.ErrStringTooShort),
		errors.Is(err, validate.ErrStringTooLong),
		errors.Is(err, validate.ErrInvalidCharacters):
		return ErrCodeValidation
	default:
		return ErrCodeInternal
	}
}

// writeDomainError maps err onto the error envelope. Internal errors are
// logged and their message is not exposed.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := ErrorCode(err)
	ctx := middleware.SetErrorCode(r.Context(), code)
	message := err.Error()
	if code == ErrCodeInternal {
		slog.ErrorContext(ctx, "request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(ctx))
		message = "Internal server error"
	}
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// writeBadRequest reports an undecodable body or path parameter.
func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeJSON writes a 200 response. Payload keys are merged next to
// "success": true.
func writeJSON(w http.ResponseWriter, r *http.Request, payload map[string]any) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	writeStatusJSON(w, r, http.StatusOK, body)
}

func writeStatusJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
