package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"yieldwallet/internal/admin"
	"yieldwallet/internal/domain"
	"yieldwallet/internal/investment"
	"yieldwallet/pkg/logger"
	"yieldwallet/pkg/validator"
)

// AdminHandler serves the operator endpoints. Routes are mounted behind
// RequireAdmin.
type AdminHandler struct {
	service   *admin.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewAdminHandler(service *admin.Service, val *validator.Validator, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

type statusRequest struct {
	Status domain.WalletStatus `json:"status" validate:"required,oneof=not_activated active frozen disabled"`
}

type permissionRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *AdminHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListWallets(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, "list wallets", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wallets": views,
		"count":   len(views),
	})
}

func (h *AdminHandler) SetWalletStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	updated, err := h.service.SetWalletStatus(r.Context(), id, req.Status)
	if err != nil {
		handleServiceError(w, r, h.logger, "set wallet status", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) SetWalletPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req permissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	kind := domain.PermissionKind(mux.Vars(r)["kind"])
	updated, err := h.service.SetWalletPermission(r.Context(), id, kind, *req.Enabled)
	if err != nil {
		handleServiceError(w, r, h.logger, "set wallet permission", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) UpdateWalletControls(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var patch domain.ControlsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	updated, err := h.service.UpdateWalletControls(r.Context(), id, patch)
	if err != nil {
		handleServiceError(w, r, h.logger, "update wallet controls", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListTransactions(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, "list transactions", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// RecordTransaction enters a transaction for a user. Deposits, withdrawals
// and earnings are approved immediately. When that approval fails the
// pending transaction is returned together with the error.
func (h *AdminHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req admin.TransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	txn, err := h.service.RecordTransaction(r.Context(), req)
	if err != nil {
		if txn == nil {
			handleServiceError(w, r, h.logger, "record transaction", err)
			return
		}
		h.logger.Warn("Recorded transaction left pending", map[string]interface{}{
			"transaction_id": txn.ID,
			"error":          err.Error(),
		})
		respondJSON(w, statusFor(err), map[string]interface{}{
			"error":       err.Error(),
			"transaction": txn,
		})
		return
	}
	respondJSON(w, http.StatusCreated, txn)
}

func (h *AdminHandler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve transaction", h.service.ApproveTransaction)
}

func (h *AdminHandler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reject transaction", h.service.RejectTransaction)
}

func (h *AdminHandler) PendTransaction(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reset transaction", h.service.PendTransaction)
}

func (h *AdminHandler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, uuid.UUID) (*domain.Transaction, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	txn, err := fn(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, op, err)
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

func (h *AdminHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.service.ListPackages(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, "list packages", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"packages": pkgs,
		"count":    len(pkgs),
	})
}

func (h *AdminHandler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var req investment.CreatePackageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	pkg, err := h.service.CreatePackage(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.logger, "create package", err)
		return
	}
	respondJSON(w, http.StatusCreated, pkg)
}

func (h *AdminHandler) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var patch domain.PackagePatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	pkg, err := h.service.UpdatePackage(r.Context(), id, patch)
	if err != nil {
		handleServiceError(w, r, h.logger, "update package", err)
		return
	}
	respondJSON(w, http.StatusOK, pkg)
}

func (h *AdminHandler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.ListPositions(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, "list investments", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"investments": positions,
		"count":       len(positions),
	})
}

func (h *AdminHandler) UpdateInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var patch domain.PositionPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	pos, err := h.service.UpdatePosition(r.Context(), id, patch)
	if err != nil {
		handleServiceError(w, r, h.logger, "update investment", err)
		return
	}
	respondJSON(w, http.StatusOK, pos)
}

func (h *AdminHandler) MatureInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	pos, err := h.service.MaturePosition(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, "mature investment", err)
		return
	}
	respondJSON(w, http.StatusOK, pos)
}
