package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

// Submission is the payload handed to the order backend.
type Submission struct {
	IdempotencyKey string             `json:"idempotencyKey"`
	SessionID      string             `json:"sessionId"`
	StoreID        string             `json:"storeId"`
	Items          []domain.OrderItem `json:"items"`
	PaymentMethod  string             `json:"paymentMethod,omitempty"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	DiscountAmount decimal.Decimal    `json:"discountAmount"`
	Total          decimal.Decimal    `json:"total"`
	PromoCode      string             `json:"promoCode,omitempty"`
	Currency       string             `json:"currency,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// NewSubmission builds the payload for draft. An empty idempotencyKey gets a fresh one.
func NewSubmission(draft domain.OrderDraft, idempotencyKey, sessionID, paymentMethod string, metadata map[string]any) Submission {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	items := make([]domain.OrderItem, len(draft.Items))
	copy(items, draft.Items)

	return Submission{
		IdempotencyKey: idempotencyKey,
		SessionID:      sessionID,
		StoreID:        draft.StoreID,
		Items:          items,
		PaymentMethod:  paymentMethod,
		Subtotal:       draft.Subtotal,
		DiscountAmount: draft.DiscountAmount,
		Total:          draft.Total,
		PromoCode:      draft.PromoCode,
		Currency:       draft.Currency,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
}

// Fingerprint identifies the order a draft describes for a session. Two drafts with
// the same items, prices and totals have the same fingerprint.
func Fingerprint(sessionID string, draft domain.OrderDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s", sessionID, draft.StoreID, draft.Currency, draft.PromoCode)
	for _, it := range draft.Items {
		fmt.Fprintf(&b, "|%s:%d:%s", it.ProductID, it.Quantity, it.Price.String())
	}
	fmt.Fprintf(&b, "|%s|%s|%s", draft.Subtotal.String(), draft.DiscountAmount.String(), draft.Total.String())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String())).String()
}
