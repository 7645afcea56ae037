package http

import (
	"context"
	"net/http"
	"time"
)

type CheckoutHandler struct {
	svc     CartService
	timeout time.Duration
}

func NewCheckoutHandler(svc CartService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		svc:     svc,
		timeout: timeout,
	}
}

type CheckoutRequestDTO struct {
	PaymentMethod string         `json:"payment_method"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Checkout submits the active cart. A body is optional.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	sub, err := h.svc.Checkout(ctx, sessionIDFromContext(r.Context()), req.PaymentMethod, req.Metadata)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, sub)
}
