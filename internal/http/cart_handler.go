package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vendlyapp/selfcheckout/internal/checkout"
	"github.com/vendlyapp/selfcheckout/internal/service"
)

const maxQuantity = 999

// CartService is the part of service.CartService the handlers call.
type CartService interface {
	View(ctx context.Context, sessionID string) (service.CartView, error)
	SetActiveStore(ctx context.Context, sessionID, storeID string) (service.CartView, error)
	SetLineQuantity(ctx context.Context, sessionID, productID string, quantity int) (service.CartView, error)
	SetQuantity(ctx context.Context, sessionID, productID string, quantity int) (service.CartView, error)
	RemoveLine(ctx context.Context, sessionID, productID string) (service.CartView, error)
	ClearActiveCart(ctx context.Context, sessionID string) (service.CartView, error)
	ApplyPromoCode(ctx context.Context, sessionID, code string) (service.CartView, error)
	RemovePromo(ctx context.Context, sessionID string) (service.CartView, error)
	Checkout(ctx context.Context, sessionID, paymentMethod string, metadata map[string]any) (checkout.Submission, error)
}

type CartHandler struct {
	svc     CartService
	timeout time.Duration
}

func NewCartHandler(svc CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		svc:     svc,
		timeout: timeout,
	}
}

type SetStoreRequestDTO struct {
	StoreID string `json:"store_id"`
}

type QuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type PromoRequestDTO struct {
	Code string `json:"code"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.svc.View(ctx, sessionIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) SetActiveStore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetStoreRequestDTO
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.StoreID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_store_id", "store_id is required")
		return
	}

	view, err := h.svc.SetActiveStore(ctx, sessionIDFromContext(r.Context()), req.StoreID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// SetItem sets the quantity of a product, adding the line on first use.
func (h *CartHandler) SetItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, quantity, ok := parseItemRequest(w, r)
	if !ok {
		return
	}

	view, err := h.svc.SetLineQuantity(ctx, sessionIDFromContext(r.Context()), productID, quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateQuantity changes an existing line only.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, quantity, ok := parseItemRequest(w, r)
	if !ok {
		return
	}

	view, err := h.svc.SetQuantity(ctx, sessionIDFromContext(r.Context()), productID, quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := strings.TrimSpace(chi.URLParam(r, "product_id"))
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	view, err := h.svc.RemoveLine(ctx, sessionIDFromContext(r.Context()), productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.svc.ClearActiveCart(ctx, sessionIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PromoRequestDTO
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(w, http.StatusBadRequest, "invalid_code", "code is required")
		return
	}

	view, err := h.svc.ApplyPromoCode(ctx, sessionIDFromContext(r.Context()), req.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.svc.RemovePromo(ctx, sessionIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func parseItemRequest(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	productID := strings.TrimSpace(chi.URLParam(r, "product_id"))
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return "", 0, false
	}

	var req QuantityRequestDTO
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return "", 0, false
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return "", 0, false
	}
	// zero or less removes the line
	if *req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not exceed 999")
		return "", 0, false
	}
	return productID, *req.Quantity, true
}

func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errors.New("empty body")
	}
	return err
}
