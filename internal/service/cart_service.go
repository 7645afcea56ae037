package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vendlyapp/selfcheckout/internal/cart"
	"github.com/vendlyapp/selfcheckout/internal/catalog"
	"github.com/vendlyapp/selfcheckout/internal/checkout"
	"github.com/vendlyapp/selfcheckout/internal/domain"
	"github.com/vendlyapp/selfcheckout/internal/promo"
)

// RegistryStore loads and saves whole registries per session.
type RegistryStore interface {
	Load(ctx context.Context, sessionID string) (*domain.Registry, error)
	Save(ctx context.Context, sessionID string, reg *domain.Registry) error
}

type session struct {
	store    *cart.Store
	lastSeen time.Time
}

// CartService owns one cart.Store per shopper session and connects it to the
// catalog, promo validation and order submission collaborators.
type CartService struct {
	registries RegistryStore
	catalog    catalog.Provider
	validator  promo.Validator
	submitter  checkout.Submitter
	vatRate    decimal.Decimal
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	sfg      singleflight.Group // one hydration per session
	now      func() time.Time
}

func NewCartService(
	registries RegistryStore,
	provider catalog.Provider,
	validator promo.Validator,
	submitter checkout.Submitter,
	vatRate decimal.Decimal,
	logger *zap.Logger,
) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		registries: registries,
		catalog:    provider,
		validator:  validator,
		submitter:  submitter,
		vatRate:    vatRate,
		logger:     logger,
		sessions:   make(map[string]*session),
		now:        time.Now,
	}
}

func (s *CartService) View(ctx context.Context, sessionID string) (CartView, error) {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	return buildView(st, s.vatRate), nil
}

func (s *CartService) SetActiveStore(ctx context.Context, sessionID, storeID string) (CartView, error) {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	st.SetActiveStore(ctx, strings.TrimSpace(storeID))
	return buildView(st, s.vatRate), nil
}

// SetLineQuantity looks the product up in the active store's catalog and sets
// its line to quantity. A quantity <= 0 removes the line without a lookup.
func (s *CartService) SetLineQuantity(ctx context.Context, sessionID, productID string, quantity int) (CartView, error) {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return buildView(st, s.vatRate), nil
	}
	if quantity <= 0 {
		st.RemoveLine(ctx, productID)
		return buildView(st, s.vatRate), nil
	}

	storeID := st.ActiveStoreID()
	if storeID == "" {
		return CartView{}, ErrNoActiveStore
	}

	// an existing line keeps its add-time snapshot
	if st.ActiveCart().LineIndex(productID) >= 0 {
		st.SetQuantity(ctx, productID, quantity)
		return buildView(st, s.vatRate), nil
	}

	product, active, err := s.catalog.Product(ctx, storeID, productID)
	if err != nil {
		return CartView{}, err
	}
	if !active {
		return CartView{}, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
	}

	if st.ActiveStoreID() != storeID {
		s.logger.Info("store switched during product lookup, line dropped",
			zap.String("store_id", storeID),
			zap.String("product_id", productID),
		)
		return buildView(st, s.vatRate), nil
	}
	st.SetLineQuantity(ctx, product, quantity)
	return buildView(st, s.vatRate), nil
}

func (s *CartService) SetQuantity(ctx context.Context, sessionID, productID string, quantity int) (CartView, error) {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	st.SetQuantity(ctx, strings.TrimSpace(productID), quantity)
	return buildView(st, s.vatRate), nil
}

func (s *CartService) RemoveLine(ctx context.Context, sessionID, productID string) (CartView, error) {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	st.RemoveLine(ctx, strings.TrimSpace(productID))
	return buildView(st, s.vatRate), nil
}

func (s *CartService) ClearActiveCart(ctx context.Context, sessionID string) (CartView, error) {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	st.ClearActiveCart(ctx)
	return buildView(st, s.vatRate), nil
}

// ClearStoreCart empties storeID's cart for the session, hydrating it if needed.
func (s *CartService) ClearStoreCart(ctx context.Context, sessionID, storeID string) error {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return err
	}
	st.ClearStoreCart(ctx, storeID)
	return nil
}

// ApplyPromoCode validates code for the active store and applies the returned
// discount to the cart as it is when the answer arrives. A failed validation
// leaves the promo state untouched and returns an error wrapping the promo error.
// A cart without items fails with checkout.ErrEmptyCart.
func (s *CartService) ApplyPromoCode(ctx context.Context, sessionID, code string) (CartView, error) {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}

	ticket := st.BeginPromoValidation()
	if ticket.StoreID == "" {
		return CartView{}, ErrNoActiveStore
	}
	if st.ActiveCart().ItemCount() == 0 {
		return CartView{}, checkout.ErrEmptyCart
	}

	res := promo.Check(ctx, s.validator, code, ticket.StoreID)
	if !res.OK {
		s.logger.Info("promo code rejected",
			zap.String("store_id", ticket.StoreID),
			zap.String("code", domain.NormalizeCode(code)),
			zap.String("reason", string(res.Reason)),
			zap.Error(res.Err),
		)
		return CartView{}, res.Err
	}

	if err := st.CompletePromo(ctx, ticket, code, res.Descriptor); err != nil {
		if errors.Is(err, cart.ErrNothingToDiscount) {
			return CartView{}, fmt.Errorf("%w: %w", checkout.ErrEmptyCart, err)
		}
		return CartView{}, err
	}
	return buildView(st, s.vatRate), nil
}

func (s *CartService) RemovePromo(ctx context.Context, sessionID string) (CartView, error) {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	st.RemovePromo(ctx)
	return buildView(st, s.vatRate), nil
}

// Checkout builds a fresh order draft from the active cart and hands it to the
// submitter. Retrying an unchanged order reuses its idempotency key. The cart itself
// is cleared only once the order is confirmed.
func (s *CartService) Checkout(ctx context.Context, sessionID, paymentMethod string, metadata map[string]any) (checkout.Submission, error) {
	st, err := s.store(ctx, sessionID)
	if err != nil {
		return checkout.Submission{}, err
	}

	ticket, snapshot := st.BeginCheckout()
	if ticket.StoreID == "" {
		return checkout.Submission{}, ErrNoActiveStore
	}

	draft, err := checkout.BuildOrderDraft(ticket.StoreID, snapshot)
	if err != nil {
		return checkout.Submission{}, err
	}

	key := st.IdempotencyKey(ticket, checkout.Fingerprint(sessionID, draft))
	sub := checkout.NewSubmission(draft, key, sessionID, strings.TrimSpace(paymentMethod), metadata)
	if err := s.submitter.Submit(ctx, sub); err != nil {
		return checkout.Submission{}, err
	}

	if !st.CheckoutCurrent(ticket) {
		s.logger.Info("discarding superseded checkout result",
			zap.String("store_id", ticket.StoreID),
			zap.String("idempotency_key", sub.IdempotencyKey),
		)
		return checkout.Submission{}, ErrSuperseded
	}
	return sub, nil
}

// EvictIdle drops in-memory stores not used for maxIdle. Their state stays in storage.
func (s *CartService) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// RunJanitor calls EvictIdle every interval until ctx is done.
func (s *CartService) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.EvictIdle(maxIdle); n > 0 {
				s.logger.Debug("evicted idle sessions", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *CartService) store(ctx context.Context, sessionID string) (*cart.Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	if st := s.cached(sessionID); st != nil {
		return st, nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if st := s.cached(sessionID); st != nil {
			return st, nil
		}

		reg, err := s.registries.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		logger := s.logger.With(zap.String("session_id", sessionID))
		st := cart.NewStore(reg, &sessionPersister{registries: s.registries, sessionID: sessionID}, logger)

		s.mu.Lock()
		s.sessions[sessionID] = &session{store: st, lastSeen: s.now()}
		s.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCartUnavailable, err)
	}
	return v.(*cart.Store), nil
}

func (s *CartService) cached(sessionID string) *cart.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.lastSeen = s.now()
		return sess.store
	}
	return nil
}

type sessionPersister struct {
	registries RegistryStore
	sessionID  string
}

func (p *sessionPersister) Save(ctx context.Context, reg *domain.Registry) error {
	// the request may be gone before the write finishes
	ctx = context.WithoutCancel(ctx)
	return p.registries.Save(ctx, p.sessionID, reg)
}

// IsStale reports whether err means a response was superseded rather than failed.
func IsStale(err error) bool {
	return errors.Is(err, cart.ErrStaleResponse) || errors.Is(err, ErrSuperseded)
}
