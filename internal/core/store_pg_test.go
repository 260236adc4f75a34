package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/pricelist/internal/testhelpers"
)

func newPgStore(t *testing.T) *PgStore {
	t.Helper()
	return NewPgStore(testhelpers.GetTestDB(t).Pool)
}

func TestPgStore_MergeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newPgStore(t)
	scope := testScope()
	engine := NewMergeEngine(store, nil)
	first := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	res, err := engine.Merge(ctx, scope, []CatalogItem{
		testItem(2, "A-1", "10.00"),
		testItem(3, "B-2", "4.50"),
	}, MergeOptions{Now: clockAt(first), Location: "main"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	res, err = engine.Merge(ctx, scope, []CatalogItem{
		testItem(2, "A-1", "12.00"),
		testItem(3, "B-2", "4.50"),
	}, MergeOptions{Now: clockAt(second), Location: "main"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 1, res.PriceChanges)

	var productID uuid.UUID
	for _, o := range res.Outcomes {
		if o.SKU == "A-1" {
			productID = o.ProductID
		}
	}
	require.NotEqual(t, uuid.Nil, productID)

	p, err := store.GetSupplierProduct(ctx, scope.OrganizationID, productID)
	require.NoError(t, err)
	assert.Equal(t, "A-1", p.SupplierSKU)
	assert.Equal(t, res.BatchID, p.LastBatchID)
	assert.True(t, p.LastSeenAt.Equal(second))
	assert.True(t, p.FirstSeenAt.Equal(first))
	assert.Zero(t, p.MaxQty)
	assert.Nil(t, p.Pricing)

	_, err = store.GetSupplierProduct(ctx, uuid.New(), productID)
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := store.ListPriceHistory(ctx, productID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	requireOneCurrent(t, history)
	require.NotNil(t, history[0].ValidTo)
	assert.True(t, history[0].ValidTo.Equal(second))

	rec, err := store.PriceAt(ctx, productID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(10)), "got %s", rec.Price)

	_, err = store.PriceAt(ctx, productID, first.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	qty, err := store.StockLevel(ctx, productID, "main")
	require.NoError(t, err)
	assert.Equal(t, 10, qty)
}

func TestPgStore_RerunWithFinePrecisionIsUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newPgStore(t)
	scope := testScope()
	engine := NewMergeEngine(store, nil)

	item := testItem(2, "A-1", "0.123456")
	item.TaxRate = decimal.RequireFromString("1500.123456") // out of range warns but stays valid

	res, err := engine.Merge(ctx, scope, []CatalogItem{item}, MergeOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Created, "errors: %+v", res.Errors)
	productID := res.Outcomes[0].ProductID

	res, err = engine.Merge(ctx, scope, []CatalogItem{item}, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 0, res.PriceChanges)

	history, err := store.ListPriceHistory(ctx, productID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Price.Equal(decimal.RequireFromString("0.1235")), "price %s", history[0].Price)

	p, err := store.GetSupplierProduct(ctx, scope.OrganizationID, productID)
	require.NoError(t, err)
	assert.True(t, p.TaxRate.Equal(decimal.RequireFromString("1500.1235")), "tax %s", p.TaxRate)
}

func TestPgStore_BestEffortSavepointIsolation(t *testing.T) {
	ctx := context.Background()
	store := newPgStore(t)
	scope := testScope()

	// a negative price violates the ledger's check constraint after the
	// product row was written
	bad := testItem(3, "BAD", "1")
	bad.UnitPrice = decimal.NewFromInt(-1)

	res, err := NewMergeEngine(store, nil).Merge(ctx, scope, []CatalogItem{
		testItem(2, "GOOD-1", "1"),
		bad,
		testItem(4, "GOOD-2", "1"),
	}, MergeOptions{Mode: MergeBestEffort, BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "BAD", res.Errors[0].SKU)

	err = store.WithinTx(ctx, func(tx CatalogTx) error {
		_, err := tx.GetSupplierProductForUpdate(ctx, scope, "BAD")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = tx.GetSupplierProductForUpdate(ctx, scope, "GOOD-2")
		return err
	})
	require.NoError(t, err)
}

func TestPgStore_AllOrNothingRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newPgStore(t)
	scope := testScope()

	bad := testItem(3, "BAD", "1")
	bad.UnitPrice = decimal.NewFromInt(-1)

	_, err := NewMergeEngine(store, nil).Merge(ctx, scope, []CatalogItem{
		testItem(2, "GOOD", "1"),
		bad,
	}, MergeOptions{Mode: MergeAllOrNothing})
	require.Error(t, err)

	scopes, err := store.ListSupplierScopes(ctx)
	require.NoError(t, err)
	assert.NotContains(t, scopes, scope)
}

func TestPgStore_Sweeps(t *testing.T) {
	ctx := context.Background()
	store := newPgStore(t)
	scope := testScope()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	engine := NewMergeEngine(store, nil)
	_, err := engine.Merge(ctx, scope, []CatalogItem{testItem(2, "OLD", "1")},
		MergeOptions{Now: clockAt(now.Add(-100 * 24 * time.Hour))})
	require.NoError(t, err)
	latest, err := engine.Merge(ctx, scope, []CatalogItem{testItem(2, "NEW", "1")},
		MergeOptions{Now: clockAt(now.Add(-95 * 24 * time.Hour))})
	require.NoError(t, err)

	n, err := store.DeactivateUnseen(ctx, scope, now.Add(-90*24*time.Hour), latest.BatchID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.ClearNewFlags(ctx, scope, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	scopes, err := store.ListSupplierScopes(ctx)
	require.NoError(t, err)
	assert.Contains(t, scopes, scope)
}

func TestPgStore_PricingConfiguration(t *testing.T) {
	ctx := context.Background()
	store := newPgStore(t)
	org := uuid.New()
	productID := uuid.New()
	capPct := decimal.NewFromInt(10)

	rule, err := store.CreatePricingRule(ctx, PricingRule{
		OrganizationID:      org,
		Name:                "fasteners",
		Strategy:            StrategyCostPlus,
		MinMarginPct:        decimal.NewFromInt(5),
		TargetMarginPct:     decimal.NewFromInt(30),
		MaxPriceIncreasePct: &capPct,
		Active:              true,
		Priority:            3,
		AppliesTo:           ScopeProducts,
		ProductIDs:          []uuid.UUID{productID},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rule.ID)

	rules, err := store.ListPricingRules(ctx, org)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, []uuid.UUID{productID}, rules[0].ProductIDs)
	require.NotNil(t, rules[0].MaxPriceIncreasePct)
	assert.True(t, rules[0].MaxPriceIncreasePct.Equal(capPct))
	assert.True(t, rules[0].TargetMarginPct.Equal(decimal.NewFromInt(30)))

	assert.ErrorIs(t, store.DeletePricingRule(ctx, uuid.New(), rule.ID), ErrNotFound)
	require.NoError(t, store.DeletePricingRule(ctx, org, rule.ID))

	_, err = store.GetPricingSettings(ctx, org)
	assert.ErrorIs(t, err, ErrNotFound)

	saved, err := store.SavePricingSettings(ctx, PricingSettings{
		OrganizationID:   org,
		DefaultMarginPct: decimal.NewFromInt(20),
		AutoApply:        true,
	})
	require.NoError(t, err)
	assert.True(t, saved.AutoApply)

	got, err := store.GetPricingSettings(ctx, org)
	require.NoError(t, err)
	assert.True(t, got.DefaultMarginPct.Equal(decimal.NewFromInt(20)))
}

func TestPgStore_SaveProductPricing(t *testing.T) {
	ctx := context.Background()
	store := newPgStore(t)
	scope := testScope()
	at := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

	res, err := NewMergeEngine(store, nil).Merge(ctx, scope, []CatalogItem{testItem(2, "A-1", "10")}, MergeOptions{})
	require.NoError(t, err)
	id := res.Outcomes[0].ProductID

	ruleID := uuid.New()
	err = store.SaveProductPricing(ctx, id, PriceDecision{
		SellingPrice: decimal.RequireFromString("12.50"),
		MarginPct:    decimal.NewFromInt(25),
		RuleID:       &ruleID,
		Strategy:     StrategyCostPlus,
		Confidence:   RuleConfidence,
		Reasoning:    "rule std",
	}, at)
	require.NoError(t, err)

	p, err := store.GetSupplierProduct(ctx, scope.OrganizationID, id)
	require.NoError(t, err)
	require.NotNil(t, p.Pricing)
	assert.True(t, p.Pricing.SellingPrice.Equal(decimal.RequireFromString("12.50")))
	require.NotNil(t, p.Pricing.RuleID)
	assert.Equal(t, ruleID, *p.Pricing.RuleID)
	assert.Equal(t, RuleConfidence, p.Pricing.Confidence)
	require.NotNil(t, p.PricedAt)
	assert.True(t, p.PricedAt.Equal(at))

	assert.ErrorIs(t, store.SaveProductPricing(ctx, uuid.New(), PriceDecision{}, at), ErrNotFound)
}

func TestPgStore_Templates(t *testing.T) {
	ctx := context.Background()
	store := newPgStore(t)
	scope := testScope()

	tmpl, err := store.CreateTemplate(ctx, MappingTemplate{
		OrganizationID: scope.OrganizationID,
		SupplierID:     scope.SupplierID,
		Name:           "Acme",
		Columns:        acmeColumns,
		Headers:        []string{"Code", "Name", "Amount"},
	})
	require.NoError(t, err)
	assert.Equal(t, acmeColumns, tmpl.Columns)

	_, err = store.CreateTemplate(ctx, MappingTemplate{
		OrganizationID: scope.OrganizationID,
		SupplierID:     scope.SupplierID,
		Name:           "Acme",
		Columns:        acmeColumns,
	})
	assert.ErrorIs(t, err, ErrDuplicateTemplate)

	list, err := store.ListTemplates(ctx, scope)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"Code", "Name", "Amount"}, list[0].Headers)

	require.NoError(t, store.DeleteTemplate(ctx, scope.OrganizationID, tmpl.ID))
	assert.ErrorIs(t, store.DeleteTemplate(ctx, scope.OrganizationID, tmpl.ID), ErrNotFound)
}

func TestPgStore_Runs(t *testing.T) {
	ctx := context.Background()
	store := newPgStore(t)
	scope := testScope()
	started := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

	run := IngestionRun{
		ID:             uuid.New(),
		OrganizationID: scope.OrganizationID,
		SupplierID:     scope.SupplierID,
		FileName:       "april.xlsx",
		Status:         RunRunning,
		StartedAt:      started,
	}
	require.NoError(t, store.CreateRun(ctx, run))

	finished := started.Add(time.Minute)
	run.Status = RunCompleted
	run.TotalRows = 3
	run.ValidRows = 3
	run.Created = 3
	run.MappingConfidence = 0.9
	run.FinishedAt = &finished
	require.NoError(t, store.FinishRun(ctx, run))

	runs, err := store.ListRuns(ctx, scope, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunCompleted, runs[0].Status)
	assert.Equal(t, 3, runs[0].Created)
	require.NotNil(t, runs[0].FinishedAt)
	assert.True(t, runs[0].FinishedAt.Equal(finished))

	assert.ErrorIs(t, store.FinishRun(ctx, IngestionRun{ID: uuid.New(), Status: RunFailed}), ErrNotFound)
}
