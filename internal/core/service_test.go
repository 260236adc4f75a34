package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (*Service, *MemoryStore, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	svc := NewService(store, NewMemoryLocker(), ServiceConfig{
		DefaultTaxRate:   decimal.NewFromInt(15),
		DefaultMarginPct: decimal.NewFromInt(25),
		Now:              clock.Now,
	})
	return svc, store, clock
}

func simpleTable(rows ...[]string) Table {
	return Table{Headers: []string{"SKU", "Description", "Price"}, Rows: rows}
}

func TestService_IngestEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	scope := testScope()

	res, err := svc.Ingest(ctx, IngestRequest{
		Scope:    scope,
		FileName: "march.csv",
		Table:    simpleTable([]string{"a-1", "Bolt", "10.00"}, []string{"b-2", "Nut", "2.50"}),
	})
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, res.Run.Status)
	assert.Equal(t, 2, res.Run.Created)
	assert.Equal(t, 2, res.Run.ValidRows)
	require.NotNil(t, res.Run.FinishedAt)
	require.NotNil(t, res.Merge)
	assert.Equal(t, res.Run.ID, res.Merge.BatchID)
	assert.Equal(t, "2 created, 0 updated, 0 unchanged, 0 failed", res.Message)

	require.Len(t, res.Pricing, 2)
	for _, p := range res.Pricing {
		assert.False(t, p.Applied)
	}

	products := store.ListSupplierProducts(scope)
	require.Len(t, products, 2)
	assert.Equal(t, "A-1", products[0].SupplierSKU)
	assert.Nil(t, products[0].Pricing)

	runs, err := svc.ListRuns(ctx, scope, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.Run.ID, runs[0].ID)
	assert.Equal(t, RunCompleted, runs[0].Status)
}

func TestService_IngestAppliesPricing(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	scope := testScope()

	res, err := svc.Ingest(ctx, IngestRequest{
		Scope:        scope,
		Table:        simpleTable([]string{"A-1", "Bolt", "10.00"}),
		ApplyPricing: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Pricing, 1)
	assert.True(t, res.Pricing[0].Applied)

	p := store.ListSupplierProducts(scope)[0]
	require.NotNil(t, p.Pricing)
	assert.True(t, p.Pricing.SellingPrice.Equal(decimal.RequireFromString("12.50")), "got %s", p.Pricing.SellingPrice)
	assert.Equal(t, DefaultMarginConfidence, p.Pricing.Confidence)
}

func TestService_IngestAutoApplyUsesRules(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	scope := testScope()

	_, err := svc.SavePricingSettings(ctx, scope.OrganizationID, PricingSettings{
		DefaultMarginPct: decimal.NewFromInt(30),
		AutoApply:        true,
	})
	require.NoError(t, err)
	rule, err := svc.CreatePricingRule(ctx, scope.OrganizationID, PricingRule{
		Name:            "double",
		Strategy:        StrategyCostPlus,
		TargetMarginPct: decimal.NewFromInt(100),
		Active:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, rule.AppliesTo)

	_, err = svc.Ingest(ctx, IngestRequest{Scope: scope, Table: simpleTable([]string{"A-1", "Bolt", "10.00"})})
	require.NoError(t, err)

	p := store.ListSupplierProducts(scope)[0]
	require.NotNil(t, p.Pricing)
	assert.True(t, p.Pricing.SellingPrice.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, p.Pricing.RuleID)
	assert.Equal(t, rule.ID, *p.Pricing.RuleID)
}

func TestService_IngestRejectsBlockingErrors(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	scope := testScope()

	res, err := svc.Ingest(ctx, IngestRequest{
		Scope: scope,
		Table: simpleTable([]string{"A-1", "Bolt", "10.00"}, []string{"B-2", "Nut", "abc"}),
	})
	require.ErrorIs(t, err, ErrBlockingIssues)
	assert.Equal(t, "VAL002", MapError(err).Code)

	assert.Equal(t, RunRejected, res.Run.Status)
	assert.Equal(t, 1, res.Run.ErrorRows)
	assert.Nil(t, res.Merge)
	assert.Equal(t, "rejected: 1 of 2 rows have errors", res.Message)
	assert.Empty(t, store.ListSupplierProducts(scope))

	runs, err := svc.ListRuns(ctx, scope, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunRejected, runs[0].Status)
}

func TestService_IngestAcceptPartial(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	scope := testScope()

	res, err := svc.Ingest(ctx, IngestRequest{
		Scope:         scope,
		Table:         simpleTable([]string{"A-1", "Bolt", "10.00"}, []string{"B-2", "Nut", "abc"}),
		AcceptPartial: true,
	})
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, res.Run.Status)
	assert.Equal(t, 1, res.Run.Created)
	assert.Equal(t, 1, res.Run.ErrorRows)
	assert.Len(t, store.ListSupplierProducts(scope), 1)
}

func TestService_IngestWithTemplate(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	scope := testScope()
	headers := []string{"Code", "Name", "Amount"}

	tmpl, err := svc.CreateTemplate(ctx, scope, "Acme export", map[CanonicalField]string{
		FieldIdentifier:  "Code",
		FieldDescription: "Name",
		FieldUnitPrice:   "Amount",
	}, headers)
	require.NoError(t, err)

	res, err := svc.Ingest(ctx, IngestRequest{
		Scope:      scope,
		Table:      Table{Headers: headers, Rows: [][]string{{"X-9", "Washer", "0.40"}}},
		TemplateID: tmpl.ID,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Mapping.Confidence, 1e-9)
	assert.Equal(t, 1, res.Run.Created)
	assert.Equal(t, "X-9", store.ListSupplierProducts(scope)[0].SupplierSKU)

	_, err = svc.Ingest(ctx, IngestRequest{
		Scope:      scope,
		Table:      Table{Headers: headers, Rows: [][]string{{"X-9", "Washer", "0.40"}}},
		TemplateID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_PriceLookupsAreTenantScoped(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)
	scope := testScope()
	first := clock.Now()

	_, err := svc.Ingest(ctx, IngestRequest{Scope: scope, Table: simpleTable([]string{"A-1", "Bolt", "10.00"})})
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	res, err := svc.Ingest(ctx, IngestRequest{Scope: scope, Table: simpleTable([]string{"A-1", "Bolt", "11.00"})})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Run.Updated)

	id := store.ListSupplierProducts(scope)[0].ID

	history, err := svc.PriceHistory(ctx, scope.OrganizationID, id)
	require.NoError(t, err)
	require.Len(t, history, 2)

	rec, err := svc.PriceAt(ctx, scope.OrganizationID, id, first.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(10)))

	_, err = svc.PriceAt(ctx, uuid.New(), id, first.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.PriceHistory(ctx, uuid.New(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RunSweepsExcludesLatestBatch(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)
	scope := testScope()

	_, err := svc.Ingest(ctx, IngestRequest{Scope: scope, Table: simpleTable([]string{"OLD", "Bolt", "1"})})
	require.NoError(t, err)

	clock.Advance(100 * 24 * time.Hour)
	res, err := svc.RunSweeps(ctx, scope)
	require.NoError(t, err)
	assert.Zero(t, res.Deactivated, "the latest batch is never deactivated")

	_, err = svc.Ingest(ctx, IngestRequest{Scope: scope, Table: simpleTable([]string{"NEW", "Nut", "1"})})
	require.NoError(t, err)

	clock.Advance(100 * 24 * time.Hour)
	res, err = svc.RunSweeps(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Deactivated)
	assert.EqualValues(t, 1, res.ClearedNew)

	assert.False(t, productBySKU(t, store, scope, "OLD").IsActive)
	assert.True(t, productBySKU(t, store, scope, "NEW").IsActive)
}

func TestService_PricingSettingsFallback(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	org := uuid.New()

	s, err := svc.PricingSettings(ctx, org)
	require.NoError(t, err)
	assert.True(t, s.DefaultMarginPct.Equal(decimal.NewFromInt(25)))

	_, err = svc.SavePricingSettings(ctx, org, PricingSettings{DefaultMarginPct: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidRule)

	d, err := svc.EvaluatePrice(ctx, org, PricingInput{Cost: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.True(t, d.SellingPrice.Equal(decimal.NewFromInt(125)))
}

func TestService_PricingRuleLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	org := uuid.New()

	_, err := svc.CreatePricingRule(ctx, org, PricingRule{Strategy: StrategyCostPlus})
	require.ErrorIs(t, err, ErrInvalidRule)

	rule, err := svc.CreatePricingRule(ctx, org, PricingRule{Name: "std", Strategy: StrategyCostPlus, Active: true})
	require.NoError(t, err)

	rules, err := svc.ListPricingRules(ctx, org)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	assert.ErrorIs(t, svc.DeletePricingRule(ctx, uuid.New(), rule.ID), ErrNotFound)
	require.NoError(t, svc.DeletePricingRule(ctx, org, rule.ID))

	rules, err = svc.ListPricingRules(ctx, org)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
