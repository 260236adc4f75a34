// Package core provides the business logic for supplier pricelist ingestion.
//
// The package has no transport dependencies. Web handlers, jobs and tests all
// drive it through [Service] or through the individual pipeline stages.
//
// # Pipeline
//
// A decoded [Table] flows through four stages:
//
//  1. [FieldMapper] scores each header against the [FieldCatalog] and proposes
//     a [FieldMapping] with a confidence and review caveats. Callers may edit
//     the mapping or apply a saved [MappingTemplate] instead.
//  2. [RowValidator] coerces every row into a [CatalogItem] and reports each
//     problem as a [ValidationIssue]. Structural problems abort with a
//     [StructuralError]; row problems never do.
//  3. [MergeEngine] upserts supplier products, appends to the price ledger and
//     refreshes stock, in best-effort or all-or-nothing mode, under a
//     per-supplier lock.
//  4. [PricingRuleEvaluator] derives a selling price for each created or
//     updated product.
//
// # Price Ledger
//
// Each supplier product has exactly one current [PriceRecord] (ValidTo nil).
// A price change closes the current row at the batch time and opens a new
// one; an unchanged price writes nothing. [Service.PriceAt] answers
// point-in-time lookups from the ledger.
//
// # Storage
//
// Persistence is behind the [Store] interface. [PgStore] is the PostgreSQL
// implementation; [MemoryStore] keeps everything in memory for tests and
// local runs.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with support codes by
// [MapError]. Sentinel errors ([ErrNotFound], [ErrShapeMismatch],
// [ErrBlockingIssues], [ErrTooManyIngests], [ErrSupplierBusy],
// [ErrInvalidRule]) are matched with errors.Is.
package core
