package core

// merge.go applies validated CatalogItems to the catalog.
//
// For each item, in row order:
//  1. Look up the supplier product by (organization, supplier, SKU) with a
//     row lock. Insert it as new when absent, otherwise refresh its
//     descriptive fields and last-seen stamp.
//  2. Compare the price with the current ledger row. On any change the
//     current row is closed at the batch time and a new current row is
//     inserted, so each product has exactly one open price.
//  3. Upsert the stock level for the batch location.
//
// Best-effort mode commits every BatchSize items in their own transaction and
// wraps each item in a savepoint so a bad item is recorded and skipped.
// All-or-nothing mode runs the whole batch in one transaction and rolls back
// on the first failure. Cancellation is honored between items; work already
// committed stays committed and the result reports how far it got.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContextCheckInterval is how often long row loops check for cancellation.
var ContextCheckInterval = 100

// DefaultMergeBatchSize is the number of items committed per transaction in
// best-effort mode.
const DefaultMergeBatchSize = 500

// PriceScale and TaxRateScale are the decimal places kept in the catalog.
// Items are rounded to them before comparing with stored values, so a
// re-ingested file compares equal to what the store holds.
const (
	PriceScale   = 4
	TaxRateScale = 4
)

// DefaultStockLocation is used when the options name no location.
const DefaultStockLocation = "main"

// MergeMode selects the transaction strategy.
type MergeMode string

const (
	MergeBestEffort   MergeMode = "best_effort"
	MergeAllOrNothing MergeMode = "all_or_nothing"
)

// ParseMergeMode validates a configured mode string.
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(s) {
	case MergeBestEffort, MergeAllOrNothing:
		return MergeMode(s), nil
	case "":
		return MergeBestEffort, nil
	}
	return "", fmt.Errorf("unknown merge mode %q (want %s or %s)", s, MergeBestEffort, MergeAllOrNothing)
}

// MergeOptions configures one merge.
type MergeOptions struct {
	Mode      MergeMode
	BatchSize int
	Location  string
	// BatchID is stamped on every touched product. A new id is generated when nil.
	BatchID uuid.UUID
	Now     func() time.Time
}

func (o MergeOptions) withDefaults() MergeOptions {
	if o.Mode == "" {
		o.Mode = MergeBestEffort
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultMergeBatchSize
	}
	if o.Location == "" {
		o.Location = DefaultStockLocation
	}
	if o.BatchID == uuid.Nil {
		o.BatchID = uuid.New()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// RecordAction is what the merge did with one item.
type RecordAction string

const (
	ActionCreated   RecordAction = "created"
	ActionUpdated   RecordAction = "updated"
	ActionUnchanged RecordAction = "unchanged"
	ActionFailed    RecordAction = "failed"
)

// RecordOutcome describes one merged item. The pricing fields feed the
// optional repricing step that follows a merge.
type RecordOutcome struct {
	Row                  int              `json:"row"`
	SKU                  string           `json:"sku"`
	ProductID            uuid.UUID        `json:"productId,omitempty"`
	Action               RecordAction     `json:"action"`
	PriceChanged         bool             `json:"priceChanged"`
	Cost                 decimal.Decimal  `json:"cost"`
	Category             string           `json:"category"`
	Brand                string           `json:"brand"`
	PreviousSellingPrice *decimal.Decimal `json:"previousSellingPrice,omitempty"`
	Error                string           `json:"error,omitempty"`
}

// RecordError is a failed item.
type RecordError struct {
	Row   int    `json:"row"`
	SKU   string `json:"sku"`
	Error string `json:"error"`
}

// MergeResult summarizes a merge. Processed counts items whose outcome is
// final (committed or failed); it is less than Total only when StoppedEarly.
type MergeResult struct {
	BatchID      uuid.UUID       `json:"batchId"`
	Total        int             `json:"total"`
	Processed    int             `json:"processed"`
	Created      int             `json:"created"`
	Updated      int             `json:"updated"`
	Unchanged    int             `json:"unchanged"`
	Failed       int             `json:"failed"`
	PriceChanges int             `json:"priceChanges"`
	StoppedEarly bool            `json:"stoppedEarly"`
	Outcomes     []RecordOutcome `json:"outcomes"`
	Errors       []RecordError   `json:"errors"`
}

// Message is a one-line human summary.
func (r MergeResult) Message() string {
	if r.StoppedEarly {
		return fmt.Sprintf("stopped early, %d of %d processed", r.Processed, r.Total)
	}
	return fmt.Sprintf("%d created, %d updated, %d unchanged, %d failed", r.Created, r.Updated, r.Unchanged, r.Failed)
}

func (r *MergeResult) record(out RecordOutcome) {
	r.Processed++
	switch out.Action {
	case ActionCreated:
		r.Created++
	case ActionUpdated:
		r.Updated++
	case ActionUnchanged:
		r.Unchanged++
	case ActionFailed:
		r.Failed++
		r.Errors = append(r.Errors, RecordError{Row: out.Row, SKU: out.SKU, Error: out.Error})
	}
	if out.PriceChanged {
		r.PriceChanges++
	}
	r.Outcomes = append(r.Outcomes, out)
}

// StoppedError is returned with a partial MergeResult when the context was
// cancelled between items.
type StoppedError struct {
	Processed int
	Total     int
	Cause     error
}

func (e *StoppedError) Error() string {
	return fmt.Sprintf("stopped early, %d of %d processed: %v", e.Processed, e.Total, e.Cause)
}

func (e *StoppedError) Unwrap() error {
	return e.Cause
}

// SupplierLocker serializes merges for one supplier scope.
type SupplierLocker interface {
	// LockSupplier blocks until the scope's lock is held or ctx ends.
	LockSupplier(ctx context.Context, scope Scope) (unlock func(), err error)
}

// MergeEngine writes validated items into the catalog and price ledger.
type MergeEngine struct {
	store  CatalogStore
	locker SupplierLocker
}

// NewMergeEngine creates an engine. A nil locker disables per-supplier locking.
func NewMergeEngine(store CatalogStore, locker SupplierLocker) *MergeEngine {
	return &MergeEngine{store: store, locker: locker}
}

// Merge applies items for scope. The returned result is always populated; the
// error is a *StoppedError on cancellation, or the failure that aborted an
// all-or-nothing merge.
func (m *MergeEngine) Merge(ctx context.Context, scope Scope, items []CatalogItem, opts MergeOptions) (MergeResult, error) {
	opts = opts.withDefaults()
	result := MergeResult{
		BatchID:  opts.BatchID,
		Total:    len(items),
		Outcomes: []RecordOutcome{},
		Errors:   []RecordError{},
	}

	if m.locker != nil {
		unlock, err := m.locker.LockSupplier(ctx, scope)
		if err != nil {
			return result, fmt.Errorf("lock supplier %s: %w", scope.SupplierID, err)
		}
		defer unlock()
	}

	now := opts.Now().UTC()
	start := time.Now()

	var err error
	if opts.Mode == MergeAllOrNothing {
		err = m.mergeAll(ctx, scope, items, opts, now, &result)
	} else {
		err = m.mergeBestEffort(ctx, scope, items, opts, now, &result)
	}

	slog.Info("merge finished",
		"organization_id", scope.OrganizationID,
		"supplier_id", scope.SupplierID,
		"batch_id", opts.BatchID,
		"mode", opts.Mode,
		"total", result.Total,
		"processed", result.Processed,
		"created", result.Created,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
		"stopped_early", result.StoppedEarly,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, err
}

// mergeBestEffort commits items in sub-batches of opts.BatchSize.
func (m *MergeEngine) mergeBestEffort(ctx context.Context, scope Scope, items []CatalogItem, opts MergeOptions, now time.Time, result *MergeResult) error {
	// Beginning a sub-batch honors cancellation. Writes inside it use a
	// detached context so a sub-batch that started is always committed or
	// rolled back as a unit.
	txCtx := context.WithoutCancel(ctx)

	for start := 0; start < len(items); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(items))

		var pending []RecordOutcome
		var stopped error
		err := m.store.WithinTx(ctx, func(tx CatalogTx) error {
			pending = pending[:0]
			for _, item := range items[start:end] {
				if err := ctx.Err(); err != nil {
					stopped = err
					return nil
				}
				var out RecordOutcome
				spErr := tx.Savepoint(txCtx, func() error {
					var err error
					out, err = mergeItem(txCtx, tx, scope, item, opts, now)
					return err
				})
				if spErr != nil {
					out = failedOutcome(item, spErr)
				}
				pending = append(pending, out)
			}
			return nil
		})
		if err != nil && cancelledBy(ctx, err) {
			result.StoppedEarly = true
			return &StoppedError{Processed: result.Processed, Total: result.Total, Cause: ctx.Err()}
		}
		if err != nil {
			// The sub-batch did not commit, so nothing in it took effect.
			slog.Error("merge sub-batch failed", "batch_id", opts.BatchID, "from_row", items[start].Row, "error", err)
			for _, item := range items[start:end] {
				result.record(failedOutcome(item, fmt.Errorf("commit: %w", err)))
			}
			continue
		}
		for _, out := range pending {
			result.record(out)
		}
		if stopped != nil {
			result.StoppedEarly = true
			return &StoppedError{Processed: result.Processed, Total: result.Total, Cause: stopped}
		}
	}
	return nil
}

// mergeAll runs every item in one transaction.
func (m *MergeEngine) mergeAll(ctx context.Context, scope Scope, items []CatalogItem, opts MergeOptions, now time.Time, result *MergeResult) error {
	txCtx := context.WithoutCancel(ctx)

	var outcomes []RecordOutcome
	var stopped error
	err := m.store.WithinTx(ctx, func(tx CatalogTx) error {
		outcomes = outcomes[:0]
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				stopped = err
				return err
			}
			out, err := mergeItem(txCtx, tx, scope, item, opts, now)
			if err != nil {
				result.record(failedOutcome(item, err))
				return fmt.Errorf("row %d (%s): %w", item.Row, item.SKU, err)
			}
			outcomes = append(outcomes, out)
		}
		return nil
	})
	if stopped == nil && err != nil && cancelledBy(ctx, err) {
		stopped = ctx.Err()
	}
	if stopped != nil {
		result.StoppedEarly = true
		return &StoppedError{Processed: 0, Total: result.Total, Cause: stopped}
	}
	if err != nil {
		return fmt.Errorf("merge rolled back: %w", err)
	}
	for _, out := range outcomes {
		result.record(out)
	}
	return nil
}

// cancelledBy reports whether err is ctx's own cancellation, such as a
// transaction that could not begin before the deadline.
func cancelledBy(ctx context.Context, err error) bool {
	cerr := ctx.Err()
	return cerr != nil && errors.Is(err, cerr)
}

func failedOutcome(item CatalogItem, err error) RecordOutcome {
	return RecordOutcome{
		Row:    item.Row,
		SKU:    item.SKU,
		Action: ActionFailed,
		Cost:   item.UnitPrice,
		Error:  err.Error(),
	}
}

// mergeItem upserts one product, its price ledger and its stock level.
func mergeItem(ctx context.Context, tx CatalogTx, scope Scope, item CatalogItem, opts MergeOptions, now time.Time) (RecordOutcome, error) {
	item = quantize(item)
	out := RecordOutcome{
		Row:      item.Row,
		SKU:      item.SKU,
		Cost:     item.UnitPrice,
		Category: item.Category,
		Brand:    item.Brand,
	}

	existing, err := tx.GetSupplierProductForUpdate(ctx, scope, item.SKU)
	var product SupplierProduct
	switch {
	case errors.Is(err, ErrNotFound):
		product = SupplierProduct{
			ID:             uuid.New(),
			OrganizationID: scope.OrganizationID,
			SupplierID:     scope.SupplierID,
			SupplierSKU:    item.SKU,
			IsNew:          true,
			FirstSeenAt:    now,
		}
		applyItem(&product, item)
		product.IsActive = true
		product.LastSeenAt = now
		product.LastBatchID = opts.BatchID
		if err := tx.InsertSupplierProduct(ctx, product); err != nil {
			return out, fmt.Errorf("insert product: %w", err)
		}
		out.Action = ActionCreated
	case err != nil:
		return out, fmt.Errorf("load product: %w", err)
	default:
		product = existing
		changed := applyItem(&product, item) || !product.IsActive
		product.IsActive = true
		product.LastSeenAt = now
		product.LastBatchID = opts.BatchID
		if err := tx.UpdateSupplierProduct(ctx, product); err != nil {
			return out, fmt.Errorf("update product: %w", err)
		}
		if product.Pricing != nil {
			prev := product.Pricing.SellingPrice
			out.PreviousSellingPrice = &prev
		}
		out.Action = ActionUnchanged
		if changed {
			out.Action = ActionUpdated
		}
	}
	out.ProductID = product.ID

	changed, err := recordPrice(ctx, tx, product.ID, item, now)
	if err != nil {
		return out, err
	}
	if changed {
		out.PriceChanged = true
		if out.Action == ActionUnchanged {
			out.Action = ActionUpdated
		}
	}

	if err := tx.UpsertStock(ctx, product.ID, opts.Location, item.StockQty, now); err != nil {
		return out, fmt.Errorf("upsert stock: %w", err)
	}
	return out, nil
}

// recordPrice closes the current ledger row and opens a new one when the
// price or currency changed. It reports whether a row was written.
func recordPrice(ctx context.Context, tx CatalogTx, productID uuid.UUID, item CatalogItem, now time.Time) (bool, error) {
	current, err := tx.CurrentPrice(ctx, productID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("load current price: %w", err)
	default:
		if current.Price.Equal(item.UnitPrice) && current.Currency == item.Currency {
			return false, nil
		}
		if err := tx.ClosePrice(ctx, current.ID, now); err != nil {
			return false, fmt.Errorf("close price: %w", err)
		}
	}

	err = tx.InsertPrice(ctx, PriceRecord{
		ID:                uuid.New(),
		SupplierProductID: productID,
		Price:             item.UnitPrice,
		Currency:          item.Currency,
		ValidFrom:         now,
		IsCurrent:         true,
	})
	if err != nil {
		return false, fmt.Errorf("insert price: %w", err)
	}
	return true, nil
}

// quantize rounds money and rates to the scales the catalog stores.
func quantize(item CatalogItem) CatalogItem {
	item.UnitPrice = item.UnitPrice.Round(PriceScale)
	item.TaxRate = item.TaxRate.Round(TaxRateScale)
	return item
}

// applyItem copies descriptive fields onto p and reports whether any changed.
func applyItem(p *SupplierProduct, item CatalogItem) bool {
	changed := p.NativeSKU != item.NativeSKU ||
		p.Description != item.Description ||
		p.Brand != item.Brand ||
		p.Category != item.Category ||
		p.MinQty != item.MinQty ||
		p.MaxQty != item.MaxQty ||
		p.LeadTimeDays != item.LeadTimeDays ||
		!p.TaxRate.Equal(item.TaxRate) ||
		p.Note != item.Note

	p.NativeSKU = item.NativeSKU
	p.Description = item.Description
	p.Brand = item.Brand
	p.Category = item.Category
	p.MinQty = item.MinQty
	p.MaxQty = item.MaxQty
	p.LeadTimeDays = item.LeadTimeDays
	p.TaxRate = item.TaxRate
	p.Note = item.Note
	return changed
}
