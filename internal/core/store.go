package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// CatalogTx is the set of catalog operations available inside a merge
// transaction. Every method is scoped by the caller; implementations do not
// infer the tenant.
type CatalogTx interface {
	// GetSupplierProductForUpdate returns the product and locks its row until
	// the transaction ends. Returns ErrNotFound when absent.
	GetSupplierProductForUpdate(ctx context.Context, scope Scope, sku string) (SupplierProduct, error)
	InsertSupplierProduct(ctx context.Context, p SupplierProduct) error
	UpdateSupplierProduct(ctx context.Context, p SupplierProduct) error

	// CurrentPrice returns the is_current ledger row or ErrNotFound.
	CurrentPrice(ctx context.Context, productID uuid.UUID) (PriceRecord, error)
	ClosePrice(ctx context.Context, priceID uuid.UUID, validTo time.Time) error
	InsertPrice(ctx context.Context, p PriceRecord) error

	UpsertStock(ctx context.Context, productID uuid.UUID, location string, qty int, at time.Time) error

	// Savepoint runs fn inside a savepoint. If fn fails, only its writes are
	// rolled back and the transaction stays usable.
	Savepoint(ctx context.Context, fn func() error) error
}

// CatalogStore owns transactions and the read side of the catalog.
type CatalogStore interface {
	// WithinTx runs fn in a transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx CatalogTx) error) error

	GetSupplierProduct(ctx context.Context, organizationID, productID uuid.UUID) (SupplierProduct, error)
	ListPriceHistory(ctx context.Context, productID uuid.UUID) ([]PriceRecord, error)
	// PriceAt returns the ledger row active at t or ErrNotFound.
	PriceAt(ctx context.Context, productID uuid.UUID, at time.Time) (PriceRecord, error)
	SaveProductPricing(ctx context.Context, productID uuid.UUID, d PriceDecision, at time.Time) error
}

// SweepStore runs the periodic lifecycle updates.
type SweepStore interface {
	// ClearNewFlags clears is_new on products first seen before cutoff.
	ClearNewFlags(ctx context.Context, scope Scope, cutoff time.Time) (int64, error)
	// DeactivateUnseen deactivates active products last seen before cutoff
	// whose last batch is not excludeBatch.
	DeactivateUnseen(ctx context.Context, scope Scope, cutoff time.Time, excludeBatch uuid.UUID) (int64, error)
	// ListSupplierScopes returns every (organization, supplier) with products.
	ListSupplierScopes(ctx context.Context) ([]Scope, error)
}

// RuleStore persists pricing configuration.
type RuleStore interface {
	ListPricingRules(ctx context.Context, organizationID uuid.UUID) ([]PricingRule, error)
	CreatePricingRule(ctx context.Context, r PricingRule) (PricingRule, error)
	DeletePricingRule(ctx context.Context, organizationID, ruleID uuid.UUID) error
	// GetPricingSettings returns ErrNotFound when the organization has none.
	GetPricingSettings(ctx context.Context, organizationID uuid.UUID) (PricingSettings, error)
	SavePricingSettings(ctx context.Context, s PricingSettings) (PricingSettings, error)
}

// TemplateStore persists saved column mappings.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t MappingTemplate) (MappingTemplate, error)
	ListTemplates(ctx context.Context, scope Scope) ([]MappingTemplate, error)
	DeleteTemplate(ctx context.Context, organizationID, templateID uuid.UUID) error
}

// RunStore records ingestion runs.
type RunStore interface {
	CreateRun(ctx context.Context, run IngestionRun) error
	FinishRun(ctx context.Context, run IngestionRun) error
	ListRuns(ctx context.Context, scope Scope, limit int) ([]IngestionRun, error)
}

// Store is everything the ingestion service persists.
type Store interface {
	CatalogStore
	SweepStore
	RuleStore
	TemplateStore
	RunStore
}
