package service

import (
	"context"
	"sync"

	"github.com/vendlyapp/selfcheckout/internal/catalog"
	"github.com/vendlyapp/selfcheckout/internal/checkout"
	"github.com/vendlyapp/selfcheckout/internal/domain"
)

type memRegistries struct {
	m     sync.Mutex
	regs  map[string]*domain.Registry
	loads int
	saves int
	err   error
}

func newMemRegistries() *memRegistries {
	return &memRegistries{regs: make(map[string]*domain.Registry)}
}

func (r *memRegistries) Load(_ context.Context, sessionID string) (*domain.Registry, error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.loads++
	if r.err != nil {
		return nil, r.err
	}
	if reg, ok := r.regs[sessionID]; ok {
		return reg.Clone(), nil
	}
	return domain.NewRegistry(), nil
}

func (r *memRegistries) Save(_ context.Context, sessionID string, reg *domain.Registry) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.saves++
	r.regs[sessionID] = reg.Clone()
	return nil
}

func (r *memRegistries) get(sessionID string) *domain.Registry {
	r.m.Lock()
	defer r.m.Unlock()
	return r.regs[sessionID].Clone()
}

func (r *memRegistries) loadCount() int {
	r.m.Lock()
	defer r.m.Unlock()
	return r.loads
}

type catalogEntry struct {
	product domain.ProductSnapshot
	active  bool
}

type mockCatalog struct {
	products map[string]catalogEntry // storeID + "/" + productID
	calls    int
	onLookup func()
}

func (c *mockCatalog) Product(_ context.Context, storeID, productID string) (domain.ProductSnapshot, bool, error) {
	c.calls++
	if c.onLookup != nil {
		c.onLookup()
	}
	e, ok := c.products[storeID+"/"+productID]
	if !ok {
		return domain.ProductSnapshot{}, false, catalog.ErrProductNotFound
	}
	return e.product, e.active, nil
}

type mockValidator struct {
	descriptor domain.DiscountDescriptor
	err        error
	onValidate func()
	gotCode    string
	gotStore   string
}

func (v *mockValidator) Validate(_ context.Context, code, storeID string) (domain.DiscountDescriptor, error) {
	v.gotCode, v.gotStore = code, storeID
	if v.onValidate != nil {
		v.onValidate()
	}
	return v.descriptor, v.err
}

type mockSubmitter struct {
	submitted []checkout.Submission
	err       error
	onSubmit  func()
}

func (s *mockSubmitter) Submit(_ context.Context, sub checkout.Submission) error {
	if s.onSubmit != nil {
		s.onSubmit()
	}
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, sub)
	return nil
}
