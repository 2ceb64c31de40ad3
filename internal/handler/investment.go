package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"yieldwallet/internal/investment"
	"yieldwallet/pkg/logger"
	"yieldwallet/pkg/validator"
)

type InvestmentHandler struct {
	service   *investment.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewInvestmentHandler(service *investment.Service, val *validator.Validator, log logger.Logger) *InvestmentHandler {
	return &InvestmentHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

type investRequest struct {
	PackageID uuid.UUID       `json:"package_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
}

// ListPackages returns the active catalog.
func (h *InvestmentHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.service.ListPackages(r.Context(), true)
	if err != nil {
		handleServiceError(w, r, h.logger, "list packages", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"packages": pkgs,
		"count":    len(pkgs),
	})
}

// Invest opens a position for the caller. Amount bounds are checked by the
// engine so the client sees the package-specific error.
func (h *InvestmentHandler) Invest(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req investRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	pos, err := h.service.OpenPosition(r.Context(), userID, req.PackageID, req.Amount)
	if err != nil {
		handleServiceError(w, r, h.logger, "open position", err)
		return
	}
	respondJSON(w, http.StatusCreated, pos)
}

func (h *InvestmentHandler) ListMyInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	positions, err := h.service.ListPositions(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, "list investments", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"investments": positions,
		"count":       len(positions),
	})
}
