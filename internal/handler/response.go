// Package handler exposes the wallet, investment and admin services over
// HTTP.
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"yieldwallet/internal/middleware"
	"yieldwallet/pkg/errors"
	"yieldwallet/pkg/logger"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, fields map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":             "Validation failed",
		"validation_errors": fields,
	})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrWalletNotFound),
		errors.Is(err, errors.ErrTransactionNotFound),
		errors.Is(err, errors.ErrInvestmentNotFound),
		errors.Is(err, errors.ErrPackageNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrAmountInvalid),
		errors.Is(err, errors.ErrInvalidTransactionType),
		errors.Is(err, errors.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrAmountOutOfRange),
		errors.Is(err, errors.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrInvalidStateTransition),
		errors.Is(err, errors.ErrWalletAlreadyExists),
		errors.Is(err, errors.ErrConcurrentUpdate),
		errors.Is(err, errors.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, errors.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError logs err and writes the mapped response. Messages of
// server-side failures are not echoed to the client.
func handleServiceError(w http.ResponseWriter, r *http.Request, log logger.Logger, operation string, err error) {
	status := statusFor(err)
	fields := map[string]interface{}{
		"operation":  operation,
		"error":      err.Error(),
		"status":     status,
		"request_id": middleware.RequestIDFromContext(r.Context()),
	}

	switch {
	case status >= http.StatusInternalServerError:
		log.Error("Request failed", fields)
		if status == http.StatusServiceUnavailable {
			respondError(w, status, "Service temporarily unavailable")
			return
		}
		respondError(w, status, "An internal error occurred")
	default:
		log.Warn("Request rejected", fields)
		respondError(w, status, err.Error())
	}
}

// decodeJSON reads a single JSON object from the body into dst, rejecting
// unknown fields. It writes the error response itself and reports false on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			respondError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if dec.More() {
		respondError(w, http.StatusBadRequest, "Request body must contain a single JSON object")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return id, true
}
