package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Table is a decoded pricelist: a header row and the data rows below it.
// Rows may be shorter than Headers (trailing blanks trimmed by the decoder)
// but never longer.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Scope identifies the tenant and supplier every catalog query is bound to.
type Scope struct {
	OrganizationID uuid.UUID `json:"organizationId"`
	SupplierID     uuid.UUID `json:"supplierId"`
}

// Severity classifies a ValidationIssue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ValidationIssue is a single problem found while validating a row.
// Row is the 1-based spreadsheet row (the header is row 1).
type ValidationIssue struct {
	Row              int            `json:"row"`
	Field            CanonicalField `json:"field,omitempty"`
	Value            string         `json:"value,omitempty"`
	Severity         Severity       `json:"severity"`
	Message          string         `json:"message"`
	Suggestion       string         `json:"suggestion,omitempty"`
	AutoFixAvailable bool           `json:"autoFixAvailable,omitempty"`
}

// CatalogItem is a validated, typed pricelist row ready for merging.
// SKU is uppercased and trimmed and is the natural key within a batch.
type CatalogItem struct {
	Row          int             `json:"row"`
	SKU          string          `json:"sku"`
	NativeSKU    string          `json:"nativeSku,omitempty"`
	Description  string          `json:"description"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Currency     string          `json:"currency"`
	MinQty       int             `json:"minQty"`
	MaxQty       int             `json:"maxQty,omitempty"` // 0 means no maximum
	LeadTimeDays int             `json:"leadTimeDays"`
	TaxRate      decimal.Decimal `json:"taxRate"`
	StockQty     int             `json:"stockQty"`
	Active       bool            `json:"active"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Note         string          `json:"note,omitempty"`
}

// SupplierProduct is the catalog entity a merge creates or refreshes.
type SupplierProduct struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	SupplierID     uuid.UUID       `json:"supplierId"`
	SupplierSKU    string          `json:"supplierSku"`
	NativeSKU      string          `json:"nativeSku,omitempty"`
	Description    string          `json:"description"`
	Brand          string          `json:"brand"`
	Category       string          `json:"category"`
	MinQty         int             `json:"minQty"`
	MaxQty         int             `json:"maxQty,omitempty"`
	LeadTimeDays   int             `json:"leadTimeDays"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	Note           string          `json:"note,omitempty"`
	IsNew          bool            `json:"isNew"`
	IsActive       bool            `json:"isActive"`
	FirstSeenAt    time.Time       `json:"firstSeenAt"`
	LastSeenAt     time.Time       `json:"lastSeenAt"`
	LastBatchID    uuid.UUID       `json:"lastBatchId"`
	Pricing        *PriceDecision  `json:"pricing,omitempty"`
	PricedAt       *time.Time      `json:"pricedAt,omitempty"`
}

// PriceRecord is one row of the price ledger. A current row has a nil ValidTo.
type PriceRecord struct {
	ID                uuid.UUID       `json:"id"`
	SupplierProductID uuid.UUID       `json:"supplierProductId"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	ValidFrom         time.Time       `json:"validFrom"`
	ValidTo           *time.Time      `json:"validTo,omitempty"`
	IsCurrent         bool            `json:"isCurrent"`
}

// ActiveAt reports whether the record was the effective price at t.
func (p PriceRecord) ActiveAt(t time.Time) bool {
	if t.Before(p.ValidFrom) {
		return false
	}
	return p.ValidTo == nil || t.Before(*p.ValidTo)
}

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunRejected  RunStatus = "rejected"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
)

// IngestionRun records one pass of the pipeline for a supplier.
// Its ID doubles as the merge batch id stamped on touched products.
type IngestionRun struct {
	ID                uuid.UUID  `json:"id"`
	OrganizationID    uuid.UUID  `json:"organizationId"`
	SupplierID        uuid.UUID  `json:"supplierId"`
	FileName          string     `json:"fileName"`
	Status            RunStatus  `json:"status"`
	MappingConfidence float64    `json:"mappingConfidence"`
	TotalRows         int        `json:"totalRows"`
	ValidRows         int        `json:"validRows"`
	ErrorRows         int        `json:"errorRows"`
	Created           int        `json:"created"`
	Updated           int        `json:"updated"`
	Unchanged         int        `json:"unchanged"`
	Failed            int        `json:"failed"`
	StoppedEarly      bool       `json:"stoppedEarly"`
	Error             string     `json:"error,omitempty"`
	StartedAt         time.Time  `json:"startedAt"`
	FinishedAt        *time.Time `json:"finishedAt,omitempty"`
}
