package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSupplierBusy is returned when a supplier's lock could not be acquired.
var ErrSupplierBusy = errors.New("supplier is locked by another ingestion")

// MemoryLocker is an in-process SupplierLocker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[Scope]chan struct{}
}

// NewMemoryLocker creates an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[Scope]chan struct{})}
}

// LockSupplier waits for the scope's lock until ctx ends.
func (l *MemoryLocker) LockSupplier(ctx context.Context, scope Scope) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[scope]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[scope] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrSupplierBusy, ctx.Err())
	}
}

type stockKey struct {
	productID uuid.UUID
	location  string
}

type stockLevel struct {
	quantity  int
	updatedAt time.Time
}

// catalogState is the transactional part of MemoryStore.
type catalogState struct {
	products map[uuid.UUID]SupplierProduct
	prices   map[uuid.UUID][]PriceRecord
	stock    map[stockKey]stockLevel
}

func newCatalogState() *catalogState {
	return &catalogState{
		products: make(map[uuid.UUID]SupplierProduct),
		prices:   make(map[uuid.UUID][]PriceRecord),
		stock:    make(map[stockKey]stockLevel),
	}
}

func (s *catalogState) clone() *catalogState {
	c := &catalogState{
		products: make(map[uuid.UUID]SupplierProduct, len(s.products)),
		prices:   make(map[uuid.UUID][]PriceRecord, len(s.prices)),
		stock:    make(map[stockKey]stockLevel, len(s.stock)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.prices {
		c.prices[k] = append([]PriceRecord(nil), v...)
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	return c
}

// MemoryStore is a Store kept in process memory. Transactions are serialized
// and applied by swapping in a working copy on commit.
type MemoryStore struct {
	txMu sync.Mutex // held for the duration of a write transaction

	mu        sync.RWMutex
	catalog   *catalogState
	rules     map[uuid.UUID]PricingRule
	settings  map[uuid.UUID]PricingSettings
	templates map[uuid.UUID]MappingTemplate
	runs      map[uuid.UUID]IngestionRun
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		catalog:   newCatalogState(),
		rules:     make(map[uuid.UUID]PricingRule),
		settings:  make(map[uuid.UUID]PricingSettings),
		templates: make(map[uuid.UUID]MappingTemplate),
		runs:      make(map[uuid.UUID]IngestionRun),
	}
}

var _ Store = (*MemoryStore)(nil)

// WithinTx runs fn against a working copy and commits it when fn succeeds.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx CatalogTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.catalog.clone()
	s.mu.RUnlock()

	tx := &memoryTx{state: work}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.catalog = tx.state
	s.mu.Unlock()
	return nil
}

type memoryTx struct {
	state *catalogState
}

func (t *memoryTx) GetSupplierProductForUpdate(_ context.Context, scope Scope, sku string) (SupplierProduct, error) {
	for _, p := range t.state.products {
		if p.OrganizationID == scope.OrganizationID && p.SupplierID == scope.SupplierID && p.SupplierSKU == sku {
			return p, nil
		}
	}
	return SupplierProduct{}, ErrNotFound
}

func (t *memoryTx) InsertSupplierProduct(_ context.Context, p SupplierProduct) error {
	for _, existing := range t.state.products {
		if existing.OrganizationID == p.OrganizationID && existing.SupplierID == p.SupplierID && existing.SupplierSKU == p.SupplierSKU {
			return fmt.Errorf("duplicate key: supplier product %s already exists", p.SupplierSKU)
		}
	}
	t.state.products[p.ID] = p
	return nil
}

func (t *memoryTx) UpdateSupplierProduct(_ context.Context, p SupplierProduct) error {
	if _, ok := t.state.products[p.ID]; !ok {
		return ErrNotFound
	}
	t.state.products[p.ID] = p
	return nil
}

func (t *memoryTx) CurrentPrice(_ context.Context, productID uuid.UUID) (PriceRecord, error) {
	for _, r := range t.state.prices[productID] {
		if r.IsCurrent {
			return r, nil
		}
	}
	return PriceRecord{}, ErrNotFound
}

func (t *memoryTx) ClosePrice(_ context.Context, priceID uuid.UUID, validTo time.Time) error {
	for productID, records := range t.state.prices {
		for i := range records {
			if records[i].ID != priceID {
				continue
			}
			closed := records[i]
			closed.ValidTo = &validTo
			closed.IsCurrent = false
			updated := append([]PriceRecord(nil), records...)
			updated[i] = closed
			t.state.prices[productID] = updated
			return nil
		}
	}
	return ErrNotFound
}

func (t *memoryTx) InsertPrice(_ context.Context, p PriceRecord) error {
	if p.IsCurrent {
		for _, r := range t.state.prices[p.SupplierProductID] {
			if r.IsCurrent {
				return fmt.Errorf("unique constraint: product %s already has a current price", p.SupplierProductID)
			}
		}
	}
	t.state.prices[p.SupplierProductID] = append(t.state.prices[p.SupplierProductID], p)
	return nil
}

func (t *memoryTx) UpsertStock(_ context.Context, productID uuid.UUID, location string, qty int, at time.Time) error {
	t.state.stock[stockKey{productID, location}] = stockLevel{quantity: qty, updatedAt: at}
	return nil
}

func (t *memoryTx) Savepoint(_ context.Context, fn func() error) error {
	snapshot := t.state.clone()
	if err := fn(); err != nil {
		t.state = snapshot
		return err
	}
	return nil
}

// GetSupplierProduct returns a product owned by organizationID.
func (s *MemoryStore) GetSupplierProduct(_ context.Context, organizationID, productID uuid.UUID) (SupplierProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.catalog.products[productID]
	if !ok || p.OrganizationID != organizationID {
		return SupplierProduct{}, ErrNotFound
	}
	return p, nil
}

// ListSupplierProducts returns the scope's products ordered by SKU.
func (s *MemoryStore) ListSupplierProducts(scope Scope) []SupplierProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SupplierProduct
	for _, p := range s.catalog.products {
		if p.OrganizationID == scope.OrganizationID && p.SupplierID == scope.SupplierID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierSKU < out[j].SupplierSKU })
	return out
}

// StockLevel returns the recorded quantity for a product at location.
func (s *MemoryStore) StockLevel(productID uuid.UUID, location string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lvl, ok := s.catalog.stock[stockKey{productID, location}]
	return lvl.quantity, ok
}

func (s *MemoryStore) ListPriceHistory(_ context.Context, productID uuid.UUID) ([]PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]PriceRecord{}, s.catalog.prices[productID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ValidFrom.Before(out[j].ValidFrom) })
	return out, nil
}

func (s *MemoryStore) PriceAt(_ context.Context, productID uuid.UUID, at time.Time) (PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.catalog.prices[productID] {
		if r.ActiveAt(at) {
			return r, nil
		}
	}
	return PriceRecord{}, ErrNotFound
}

func (s *MemoryStore) SaveProductPricing(_ context.Context, productID uuid.UUID, d PriceDecision, at time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.catalog.products[productID]
	if !ok {
		return ErrNotFound
	}
	decision := d
	p.Pricing = &decision
	p.PricedAt = &at
	s.catalog.products[productID] = p
	return nil
}

func (s *MemoryStore) ClearNewFlags(_ context.Context, scope Scope, cutoff time.Time) (int64, error) {
	return s.updateProducts(scope, func(p *SupplierProduct) bool {
		if !p.IsNew || !p.FirstSeenAt.Before(cutoff) {
			return false
		}
		p.IsNew = false
		return true
	}), nil
}

func (s *MemoryStore) DeactivateUnseen(_ context.Context, scope Scope, cutoff time.Time, excludeBatch uuid.UUID) (int64, error) {
	return s.updateProducts(scope, func(p *SupplierProduct) bool {
		if !p.IsActive || !p.LastSeenAt.Before(cutoff) || p.LastBatchID == excludeBatch {
			return false
		}
		p.IsActive = false
		return true
	}), nil
}

func (s *MemoryStore) updateProducts(scope Scope, fn func(p *SupplierProduct) bool) int64 {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, p := range s.catalog.products {
		if p.OrganizationID != scope.OrganizationID || p.SupplierID != scope.SupplierID {
			continue
		}
		if fn(&p) {
			s.catalog.products[id] = p
			n++
		}
	}
	return n
}

func (s *MemoryStore) ListSupplierScopes(_ context.Context) ([]Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[Scope]bool)
	var out []Scope
	for _, p := range s.catalog.products {
		sc := Scope{OrganizationID: p.OrganizationID, SupplierID: p.SupplierID}
		if !seen[sc] {
			seen[sc] = true
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrganizationID != out[j].OrganizationID {
			return out[i].OrganizationID.String() < out[j].OrganizationID.String()
		}
		return out[i].SupplierID.String() < out[j].SupplierID.String()
	})
	return out, nil
}

func (s *MemoryStore) ListPricingRules(_ context.Context, organizationID uuid.UUID) ([]PricingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []PricingRule{}
	for _, r := range s.rules {
		if r.OrganizationID == organizationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CreatePricingRule(_ context.Context, r PricingRule) (PricingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.rules[r.ID] = r
	return r, nil
}

func (s *MemoryStore) DeletePricingRule(_ context.Context, organizationID, ruleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID]
	if !ok || r.OrganizationID != organizationID {
		return ErrNotFound
	}
	delete(s.rules, ruleID)
	return nil
}

func (s *MemoryStore) GetPricingSettings(_ context.Context, organizationID uuid.UUID) (PricingSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.settings[organizationID]
	if !ok {
		return PricingSettings{}, ErrNotFound
	}
	return ps, nil
}

func (s *MemoryStore) SavePricingSettings(_ context.Context, ps PricingSettings) (PricingSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps.UpdatedAt = time.Now().UTC()
	s.settings[ps.OrganizationID] = ps
	return ps, nil
}

func (s *MemoryStore) CreateTemplate(_ context.Context, t MappingTemplate) (MappingTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.templates {
		if existing.OrganizationID == t.OrganizationID && existing.SupplierID == t.SupplierID && existing.Name == t.Name {
			return MappingTemplate{}, fmt.Errorf("%w: template %q already exists for this supplier", ErrDuplicateTemplate, t.Name)
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	s.templates[t.ID] = t
	return t, nil
}

func (s *MemoryStore) ListTemplates(_ context.Context, scope Scope) ([]MappingTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []MappingTemplate{}
	for _, t := range s.templates {
		if t.OrganizationID == scope.OrganizationID && t.SupplierID == scope.SupplierID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) DeleteTemplate(_ context.Context, organizationID, templateID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[templateID]
	if !ok || t.OrganizationID != organizationID {
		return ErrNotFound
	}
	delete(s.templates, templateID)
	return nil
}

func (s *MemoryStore) CreateRun(_ context.Context, run IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) FinishRun(_ context.Context, run IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return ErrNotFound
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) ListRuns(_ context.Context, scope Scope, limit int) ([]IngestionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []IngestionRun{}
	for _, r := range s.runs {
		if r.OrganizationID == scope.OrganizationID && r.SupplierID == scope.SupplierID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
