package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"yieldwallet/internal/domain"
	"yieldwallet/internal/ledger"
	"yieldwallet/internal/wallet"
	"yieldwallet/pkg/logger"
	"yieldwallet/pkg/validator"
)

// WalletHandler serves the caller's own wallet and transactions.
type WalletHandler struct {
	wallets   *wallet.Service
	ledger    *ledger.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewWalletHandler(wallets *wallet.Service, led *ledger.Service, val *validator.Validator, log logger.Logger) *WalletHandler {
	return &WalletHandler{
		wallets:   wallets,
		ledger:    led,
		validator: val,
		logger:    log,
	}
}

type createWalletRequest struct {
	Currency string `json:"currency,omitempty" validate:"omitempty,currency"`
}

// Earnings are credited by the engine or an admin, never requested by users.
type recordTransactionRequest struct {
	Type      domain.TransactionType `json:"type" validate:"required,oneof=deposit withdrawal purchase"`
	Amount    decimal.Decimal        `json:"amount" validate:"required,gt=0"`
	Reference *string                `json:"reference,omitempty" validate:"omitempty,max=255"`
	Note      *string                `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// CreateWallet opens the caller's wallet. An empty body uses the default
// currency.
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req createWalletRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	created, err := h.wallets.Create(r.Context(), userID, domain.Currency(req.Currency))
	if err != nil {
		handleServiceError(w, r, h.logger, "create wallet", err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *WalletHandler) GetMyWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	found, err := h.wallets.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, "get wallet", err)
		return
	}
	respondJSON(w, http.StatusOK, found)
}

func (h *WalletHandler) ListMyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	found, err := h.wallets.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, "list transactions", err)
		return
	}
	txs, err := h.ledger.List(r.Context(), found.ID)
	if err != nil {
		handleServiceError(w, r, h.logger, "list transactions", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// RecordTransaction files a pending transaction on the caller's wallet.
// It has no balance effect until an admin approves it.
func (h *WalletHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req recordTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	found, err := h.wallets.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, "record transaction", err)
		return
	}
	txn, err := h.ledger.Record(r.Context(), ledger.RecordRequest{
		WalletID:  found.ID,
		Type:      req.Type,
		Amount:    req.Amount,
		Reference: req.Reference,
		Note:      req.Note,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, "record transaction", err)
		return
	}
	respondJSON(w, http.StatusCreated, txn)
}
