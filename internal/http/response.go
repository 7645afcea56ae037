package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vendlyapp/selfcheckout/internal/cart"
	"github.com/vendlyapp/selfcheckout/internal/catalog"
	"github.com/vendlyapp/selfcheckout/internal/checkout"
	"github.com/vendlyapp/selfcheckout/internal/promo"
	"github.com/vendlyapp/selfcheckout/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// handleServiceError maps service errors to HTTP status codes
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingSession):
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session id")
	case errors.Is(err, service.ErrCartUnavailable):
		respondErrorDetails(w, http.StatusServiceUnavailable, "cart_unavailable", "cart is temporarily unavailable", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, promo.ErrCodeNotFound):
		respondError(w, http.StatusNotFound, "promo_not_found", promo.Message(promo.ReasonNotFound))
	case errors.Is(err, promo.ErrCodeInactive):
		respondError(w, http.StatusUnprocessableEntity, "promo_inactive", promo.Message(promo.ReasonInactive))
	case errors.Is(err, promo.ErrValidationFailed):
		respondErrorDetails(w, http.StatusBadGateway, "promo_validation_failed", promo.Message(promo.ReasonGeneric), err.Error())
	case errors.Is(err, cart.ErrStaleResponse):
		respondError(w, http.StatusConflict, "stale_response", err.Error())
	case errors.Is(err, service.ErrSuperseded):
		respondError(w, http.StatusConflict, "superseded", err.Error())
	case errors.Is(err, service.ErrNoActiveStore):
		respondError(w, http.StatusConflict, "no_active_store", "select a store first")
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, service.ErrProductUnavailable):
		respondError(w, http.StatusUnprocessableEntity, "product_unavailable", err.Error())
	case errors.Is(err, checkout.ErrSubmissionFailed):
		respondError(w, http.StatusBadGateway, "submission_failed", checkout.ErrSubmissionFailed.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timeout")
	default:
		zap.L().Error("unhandled service error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
