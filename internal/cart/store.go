package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

// ErrStaleResponse is returned when an async result arrives after a newer request
// (or a store switch) made it obsolete. The result is discarded.
var ErrStaleResponse = errors.New("response superseded by a newer request")

// ErrNothingToDiscount is returned when a promo completes on a cart with no lines.
var ErrNothingToDiscount = errors.New("cart has no items to discount")

// Persister writes the complete registry after each mutation.
type Persister interface {
	Save(ctx context.Context, reg *domain.Registry) error
}

// Ticket tags an outstanding async call (promo validation or order submission).
type Ticket struct {
	Seq     uint64
	StoreID string
}

// Store owns one shopper's registry and is the only thing allowed to mutate it.
// The active store's cart is held as a working copy and flushed back into the
// registry before any store switch or persistence write.
type Store struct {
	mu     sync.Mutex
	reg    *domain.Registry
	active *domain.StoreCart

	persister Persister
	logger    *zap.Logger
	// writeMu orders persistence writes so an older snapshot never lands last.
	writeMu sync.Mutex

	promoSeq    uint64
	checkoutSeq uint64
	// idempotency key of the last checkout per store, reused while the order is unchanged
	pending map[string]pendingCheckout
}

type pendingCheckout struct {
	fingerprint string
	key         string
}

// NewStore takes ownership of reg. A nil registry starts empty.
func NewStore(reg *domain.Registry, persister Persister, logger *zap.Logger) *Store {
	if reg == nil {
		reg = domain.NewRegistry()
	}
	if reg.Carts == nil {
		reg.Carts = make(map[string]*domain.StoreCart)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		reg:       reg,
		persister: persister,
		logger:    logger,
		pending:   make(map[string]pendingCheckout),
	}
	if reg.ActiveStoreID != "" {
		s.active = s.loadLocked(reg.ActiveStoreID)
	}
	return s
}

// SetActiveStore makes storeID the active cart, creating it lazily. Empty id is a no-op.
func (s *Store) SetActiveStore(ctx context.Context, storeID string) {
	if storeID == "" {
		return
	}

	s.mu.Lock()
	s.flushLocked()
	s.reg.ActiveStoreID = storeID
	s.active = s.loadLocked(storeID)
	s.mu.Unlock()

	s.persist(ctx)
}

// ActiveStoreID returns the selected store, or "" when none is selected.
func (s *Store) ActiveStoreID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.ActiveStoreID
}

// SetLineQuantity sets (not adds) the quantity of product's line in the active cart.
// A quantity <= 0 removes the line; a new line keeps product as its snapshot.
func (s *Store) SetLineQuantity(ctx context.Context, product domain.ProductSnapshot, quantity int) {
	if product.ID == "" {
		return
	}
	s.mutate(ctx, func(c *domain.StoreCart) bool {
		i := c.LineIndex(product.ID)
		switch {
		case i >= 0 && quantity <= 0:
			c.RemoveAt(i)
		case i >= 0:
			c.Lines[i].Quantity = quantity
		case quantity > 0:
			c.Lines = append(c.Lines, domain.CartLine{Product: product, Quantity: quantity})
		default:
			return false
		}
		return true
	})
}

// SetQuantity updates an existing line; a quantity <= 0 removes it.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) {
	if productID == "" {
		return
	}
	s.mutate(ctx, func(c *domain.StoreCart) bool {
		i := c.LineIndex(productID)
		if i < 0 {
			return false
		}
		if quantity <= 0 {
			c.RemoveAt(i)
		} else {
			c.Lines[i].Quantity = quantity
		}
		return true
	})
}

// RemoveLine drops the line for productID. Absent lines are ignored.
func (s *Store) RemoveLine(ctx context.Context, productID string) {
	if productID == "" {
		return
	}
	s.mutate(ctx, func(c *domain.StoreCart) bool {
		i := c.LineIndex(productID)
		if i < 0 {
			return false
		}
		c.RemoveAt(i)
		return true
	})
}

// ClearActiveCart empties lines and promo state of the active store only.
func (s *Store) ClearActiveCart(ctx context.Context) {
	s.mutate(ctx, func(c *domain.StoreCart) bool {
		*c = *domain.NewStoreCart()
		delete(s.pending, s.reg.ActiveStoreID)
		return true
	})
}

// ClearStoreCart empties the cart of storeID whether or not it is active.
func (s *Store) ClearStoreCart(ctx context.Context, storeID string) {
	if storeID == "" {
		return
	}

	s.mu.Lock()
	delete(s.pending, storeID)
	if storeID == s.reg.ActiveStoreID && s.active != nil {
		s.active = domain.NewStoreCart()
	} else if _, ok := s.reg.Carts[storeID]; ok {
		s.reg.Carts[storeID] = domain.NewStoreCart()
	} else {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.persist(ctx)
}

// ApplyPromo records an already computed discount for code on the active cart.
// The amount is clamped to the current subtotal.
func (s *Store) ApplyPromo(ctx context.Context, code string, amount decimal.Decimal) {
	s.mutate(ctx, func(c *domain.StoreCart) bool {
		c.PromoCode = domain.NormalizeCode(code)
		c.PromoApplied = true
		c.DiscountAmount = amount
		c.Discount = nil
		return true
	})
}

// ApplyDiscount derives the discount from d against the current subtotal and keeps d
// so later subtotal changes re-derive it.
func (s *Store) ApplyDiscount(ctx context.Context, code string, d domain.DiscountDescriptor) {
	s.mutate(ctx, func(c *domain.StoreCart) bool {
		applyDescriptor(c, code, d)
		return true
	})
}

// RemovePromo resets promo fields to their defaults.
func (s *Store) RemovePromo(ctx context.Context) {
	s.mutate(ctx, func(c *domain.StoreCart) bool {
		if !c.PromoApplied && c.PromoCode == "" {
			return false
		}
		c.ClearPromo()
		return true
	})
}

// BeginPromoValidation issues a ticket for a validation call. Any earlier ticket
// becomes stale.
func (s *Store) BeginPromoValidation() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promoSeq++
	return Ticket{Seq: s.promoSeq, StoreID: s.reg.ActiveStoreID}
}

// CompletePromo applies a validated descriptor if t is still the newest validation
// for the still-active store. The discount is computed on the subtotal at this moment.
// A cart that has no lines by then gets no promo and ErrNothingToDiscount.
func (s *Store) CompletePromo(ctx context.Context, t Ticket, code string, d domain.DiscountDescriptor) error {
	s.mu.Lock()
	if t.Seq != s.promoSeq || t.StoreID != s.reg.ActiveStoreID || s.active == nil {
		s.mu.Unlock()
		return ErrStaleResponse
	}
	if s.active.ItemCount() == 0 {
		s.mu.Unlock()
		return ErrNothingToDiscount
	}
	applyDescriptor(s.active, code, d)
	s.active.Reconcile()
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// BeginCheckout issues a checkout ticket and returns a frozen copy of the active cart.
func (s *Store) BeginCheckout() (Ticket, *domain.StoreCart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkoutSeq++
	return Ticket{Seq: s.checkoutSeq, StoreID: s.reg.ActiveStoreID}, s.active.Clone()
}

// IdempotencyKey returns the key for submitting the order described by fingerprint
// from t's store. Checking out the same order again reuses the key; a different
// order, or one placed after the store's cart was cleared, gets a new one.
func (s *Store) IdempotencyKey(t Ticket, fingerprint string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[t.StoreID]; ok && p.fingerprint == fingerprint {
		return p.key
	}
	key := uuid.NewString()
	s.pending[t.StoreID] = pendingCheckout{fingerprint: fingerprint, key: key}
	return key
}

// CheckoutCurrent reports whether t is still the newest checkout attempt.
func (s *Store) CheckoutCurrent(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.Seq == s.checkoutSeq
}

// ActiveCart returns a copy of the active cart (empty when no store is active).
func (s *Store) ActiveCart() *domain.StoreCart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

// Registry returns a copy of the full registry with the active cart flushed in.
func (s *Store) Registry() *domain.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	return s.reg.Clone()
}

// Totals are the derived reads of one cart state.
type Totals struct {
	ItemCount          int
	Subtotal           decimal.Decimal
	TotalAfterDiscount decimal.Decimal
	TotalWithTax       decimal.Decimal
}

// Snapshot returns the registry and the active cart's totals taken under one lock.
func (s *Store) Snapshot(taxRate decimal.Decimal) (*domain.Registry, Totals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	return s.reg.Clone(), totalsOf(s.active, taxRate)
}

func (s *Store) TotalItemCount() int {
	return totalsOf(s.ActiveCart(), decimal.Zero).ItemCount
}

func (s *Store) Subtotal() decimal.Decimal {
	return totalsOf(s.ActiveCart(), decimal.Zero).Subtotal
}

// TotalWithTax is subtotal x (1 + rate), rounded to cents.
func (s *Store) TotalWithTax(rate decimal.Decimal) decimal.Decimal {
	return totalsOf(s.ActiveCart(), rate).TotalWithTax
}

func (s *Store) TotalAfterDiscount() decimal.Decimal {
	return totalsOf(s.ActiveCart(), decimal.Zero).TotalAfterDiscount
}

func totalsOf(c *domain.StoreCart, taxRate decimal.Decimal) Totals {
	if c == nil {
		c = domain.NewStoreCart()
	}
	subtotal := c.Subtotal()
	return Totals{
		ItemCount:          c.ItemCount(),
		Subtotal:           subtotal,
		TotalAfterDiscount: c.TotalAfterDiscount(),
		TotalWithTax:       domain.Round2(subtotal.Mul(decimal.NewFromInt(1).Add(taxRate))),
	}
}

func applyDescriptor(c *domain.StoreCart, code string, d domain.DiscountDescriptor) {
	desc := d
	c.PromoCode = domain.NormalizeCode(code)
	c.PromoApplied = true
	c.Discount = &desc
	c.DiscountAmount = d.AmountFor(c.Subtotal())
}

// mutate runs fn on the active cart, reconciles the promo and persists when fn
// reports a change. Without an active store it does nothing.
func (s *Store) mutate(ctx context.Context, fn func(c *domain.StoreCart) bool) {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return
	}
	changed := fn(s.active)
	if changed {
		s.active.Reconcile()
	}
	s.mu.Unlock()

	if changed {
		s.persist(ctx)
	}
}

// flushLocked writes the working copy of the active cart into the registry.
// A store that was never used keeps no entry.
func (s *Store) flushLocked() {
	id := s.reg.ActiveStoreID
	if id == "" || s.active == nil {
		return
	}
	if _, ok := s.reg.Carts[id]; !ok && s.active.IsEmpty() {
		return
	}
	s.reg.Carts[id] = s.active.Clone()
}

func (s *Store) loadLocked(storeID string) *domain.StoreCart {
	if c, ok := s.reg.Carts[storeID]; ok && c != nil {
		out := c.Clone()
		out.Reconcile()
		return out
	}
	return domain.NewStoreCart()
}

func (s *Store) persist(ctx context.Context) {
	if s.persister == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snapshot := s.Registry()
	if err := s.persister.Save(ctx, snapshot); err != nil {
		s.logger.Warn("failed to persist cart registry",
			zap.String("active_store_id", snapshot.ActiveStoreID),
			zap.Error(err),
		)
	}
}
