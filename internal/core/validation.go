package core

// validation.go turns raw pricelist rows into typed CatalogItems.
//
// Validation happens at two levels:
//  1. Structure: the mapping must point at real headers and no row may carry
//     data beyond the last header. Failures abort the whole batch.
//  2. Rows: each row is coerced field by field and every problem becomes a
//     ValidationIssue. Row problems never abort the batch.
//
// Rows are validated in parallel. Duplicate detection runs afterwards as a
// single sequential pass in row order, so the outcome never depends on
// scheduling: the last valid row for a SKU wins and carries the warning.

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrShapeMismatch is the sentinel behind every StructuralError.
var ErrShapeMismatch = errors.New("table shape mismatch")

// StructuralError reports a table that cannot be validated row by row.
type StructuralError struct {
	Row    int // 1-based spreadsheet row, 0 for header problems
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("invalid table structure at row %d: %s", e.Row, e.Reason)
	}
	return "invalid table structure: " + e.Reason
}

func (e *StructuralError) Unwrap() error {
	return ErrShapeMismatch
}

const (
	DefaultBrand        = "Unknown"
	DefaultCategory     = "General"
	DefaultLeadTimeDays = 7
	DefaultCurrency     = "ZAR"
	DefaultMinQuantity  = 1

	// firstDataRow is the spreadsheet row number of rows[0].
	firstDataRow = 2
)

var skuCharset = regexp.MustCompile(`^[A-Z0-9._-]+$`)

// ValidateOptions carries the contextual defaults used during coercion.
type ValidateOptions struct {
	DefaultLeadTimeDays    int             // supplier's configured lead time; DefaultLeadTimeDays when zero
	DefaultTaxRate         decimal.Decimal // used when the tax column is absent or unparsable
	DefaultCurrency        string          // DefaultCurrency when empty
	CheckIdentifierCharset bool            // emit info issues for unusual SKU characters
	Workers                int             // GOMAXPROCS when zero
	Now                    func() time.Time
}

func (o ValidateOptions) withDefaults() ValidateOptions {
	if o.DefaultLeadTimeDays <= 0 {
		o.DefaultLeadTimeDays = DefaultLeadTimeDays
	}
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = DefaultCurrency
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ValidationSummary aggregates row outcomes. Empty rows are counted only in
// EmptyRows; TotalRows covers the non-empty rows.
type ValidationSummary struct {
	TotalRows          int             `json:"totalRows"`
	ValidRows          int             `json:"validRows"`
	ErrorRows          int             `json:"errorRows"`
	WarningRows        int             `json:"warningRows"`
	EmptyRows          int             `json:"emptyRows"`
	DuplicateRows      int             `json:"duplicateRows"`
	DistinctCategories int             `json:"distinctCategories"`
	DistinctBrands     int             `json:"distinctBrands"`
	TotalValue         decimal.Decimal `json:"totalValue"`
	MeanValue          decimal.Decimal `json:"meanValue"`
}

// ValidationReport is the complete result of a validation pass.
// Records holds one item per distinct SKU, in row order.
type ValidationReport struct {
	Records         []CatalogItem     `json:"records"`
	Issues          []ValidationIssue `json:"issues"`
	Summary         ValidationSummary `json:"summary"`
	Recommendations []string          `json:"recommendations"`
}

// HasBlockingErrors reports whether any row was rejected.
func (r ValidationReport) HasBlockingErrors() bool {
	return r.Summary.ErrorRows > 0
}

// HeaderIndex maps cleaned, lowercased header names to their first position.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		key := strings.ToLower(CleanCell(h))
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

// RowValidator validates rows against a field mapping.
type RowValidator struct {
	catalog *FieldCatalog
	width   int
	columns map[CanonicalField]int
	opts    ValidateOptions
}

// NewRowValidator resolves every mapped column against the headers.
// A mapping that names a missing column or an unknown field is a StructuralError.
func NewRowValidator(headers []string, mapping FieldMapping, catalog *FieldCatalog, opts ValidateOptions) (*RowValidator, error) {
	if catalog == nil {
		catalog = DefaultFieldCatalog
	}
	if len(headers) == 0 {
		return nil, &StructuralError{Reason: "table has no header row"}
	}

	idx := MakeHeaderIndex(headers)
	columns := make(map[CanonicalField]int, len(mapping.Columns))
	for field, col := range mapping.Columns {
		if col == "" {
			continue
		}
		if _, ok := catalog.Get(field); !ok {
			return nil, &StructuralError{Reason: fmt.Sprintf("mapping names unknown field %q", field)}
		}
		pos, ok := idx[strings.ToLower(CleanCell(col))]
		if !ok {
			return nil, &StructuralError{Reason: fmt.Sprintf("column %q mapped to %s not found in headers", col, field)}
		}
		columns[field] = pos
	}

	return &RowValidator{
		catalog: catalog,
		width:   len(headers),
		columns: columns,
		opts:    opts.withDefaults(),
	}, nil
}

// rowOutcome is the result of validating one row in isolation.
type rowOutcome struct {
	empty  bool
	item   *CatalogItem
	issues []ValidationIssue
}

func (o rowOutcome) hasSeverity(s Severity) bool {
	for _, issue := range o.issues {
		if issue.Severity == s {
			return true
		}
	}
	return false
}

// Validate checks every row and returns the report.
// The only errors returned are structural problems and context cancellation.
func (v *RowValidator) Validate(ctx context.Context, rows [][]string) (ValidationReport, error) {
	for i, row := range rows {
		if len(row) <= v.width {
			continue
		}
		for _, extra := range row[v.width:] {
			if CleanCell(extra) != "" {
				return ValidationReport{}, &StructuralError{
					Row:    i + firstDataRow,
					Reason: fmt.Sprintf("row has %d cells but the header has %d columns", len(row), v.width),
				}
			}
		}
	}

	outcomes := make([]rowOutcome, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(rows) + v.opts.Workers - 1) / v.opts.Workers
	if chunk < 1 {
		chunk = 1
	}
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%ContextCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				outcomes[i] = v.validateRow(rows[i], i+firstDataRow)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ValidationReport{}, fmt.Errorf("validate rows: %w", err)
	}

	return v.assemble(outcomes), nil
}

// ValidateRow validates a single row in isolation. Duplicate detection is
// not applied. item is nil when the row is blank or has an error.
func (v *RowValidator) ValidateRow(row []string, rowNumber int) (*CatalogItem, []ValidationIssue) {
	out := v.validateRow(row, rowNumber)
	if out.hasSeverity(SeverityError) {
		return nil, out.issues
	}
	return out.item, out.issues
}

// assemble runs the sequential post-pass: duplicate detection, counting,
// aggregate statistics and recommendations.
func (v *RowValidator) assemble(outcomes []rowOutcome) ValidationReport {
	var report ValidationReport
	sum := &report.Summary

	lastBySKU := make(map[string]int)
	superseded := make(map[int]bool)
	for i := range outcomes {
		out := &outcomes[i]
		if out.empty {
			sum.EmptyRows++
			continue
		}
		sum.TotalRows++
		if out.hasSeverity(SeverityError) {
			continue
		}
		sku := out.item.SKU
		if prev, seen := lastBySKU[sku]; seen {
			superseded[prev] = true
			sum.DuplicateRows++
			out.issues = append(out.issues, ValidationIssue{
				Row:        out.item.Row,
				Field:      FieldIdentifier,
				Value:      sku,
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("duplicate SKU %s (also on row %d); this row replaces the earlier one", sku, outcomes[prev].item.Row),
				Suggestion: "Remove or rename one of the duplicate rows",
			})
		}
		lastBySKU[sku] = i
	}

	categories := make(map[string]bool)
	brands := make(map[string]bool)
	total := decimal.Zero
	for i, out := range outcomes {
		if out.empty {
			continue
		}
		report.Issues = append(report.Issues, out.issues...)

		if out.hasSeverity(SeverityError) {
			sum.ErrorRows++
			continue
		}
		sum.ValidRows++
		if out.hasSeverity(SeverityWarning) {
			sum.WarningRows++
		}
		if superseded[i] {
			continue
		}
		report.Records = append(report.Records, *out.item)
		categories[strings.ToLower(out.item.Category)] = true
		brands[strings.ToLower(out.item.Brand)] = true
		total = total.Add(out.item.UnitPrice)
	}

	sum.DistinctCategories = len(categories)
	sum.DistinctBrands = len(brands)
	sum.TotalValue = total
	if n := len(report.Records); n > 0 {
		sum.MeanValue = total.Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	if report.Issues == nil {
		report.Issues = []ValidationIssue{}
	}
	report.Recommendations = Recommendations(*sum)
	return report
}

// validateRow coerces one row. It never fails; problems become issues.
func (v *RowValidator) validateRow(row []string, rowNumber int) rowOutcome {
	if isBlankRow(row) {
		return rowOutcome{empty: true}
	}

	var out rowOutcome
	add := func(field CanonicalField, value string, sev Severity, msg, suggestion string) {
		out.issues = append(out.issues, ValidationIssue{
			Row:        rowNumber,
			Field:      field,
			Value:      value,
			Severity:   sev,
			Message:    msg,
			Suggestion: suggestion,
		})
	}
	// cell returns the cleaned value and whether the field is mapped at all.
	cell := func(f CanonicalField) (string, bool) {
		pos, ok := v.columns[f]
		if !ok {
			return "", false
		}
		if pos >= len(row) {
			return "", true
		}
		return CleanCell(row[pos]), true
	}
	required := func(f CanonicalField) string {
		raw, mapped := cell(f)
		if !mapped {
			add(f, "", SeverityError, fmt.Sprintf("required field %s is not mapped to a column", f), "Map a source column to this field")
		} else if raw == "" {
			add(f, "", SeverityError, fmt.Sprintf("required field %s is empty", f), "")
		}
		return raw
	}

	item := CatalogItem{
		Row:       rowNumber,
		Active:    true,
		UpdatedAt: v.opts.Now(),
	}

	if raw := required(FieldIdentifier); raw != "" {
		item.SKU = NormalizeSKU(raw)
		if v.opts.CheckIdentifierCharset && !skuCharset.MatchString(item.SKU) {
			add(FieldIdentifier, raw, SeverityInfo, "SKU contains special characters",
				"Use only letters, digits, hyphens, underscores and dots")
		}
	}

	if raw, _ := cell(FieldSupplierIdentifier); raw != "" {
		item.NativeSKU = raw
	}

	if raw := required(FieldDescription); raw != "" {
		item.Description = raw
	}

	if raw := required(FieldUnitPrice); raw != "" {
		price, ok := ParsePrice(raw)
		switch {
		case !ok:
			add(FieldUnitPrice, raw, SeverityError, "invalid number format for unit price",
				"Use a plain decimal such as 12.50")
		case price.IsNegative():
			add(FieldUnitPrice, raw, SeverityError, "unit price cannot be negative", "")
		default:
			item.UnitPrice = price
		}
	}

	item.TaxRate = v.opts.DefaultTaxRate
	if raw, _ := cell(FieldTaxRate); raw != "" {
		rate, ok := ParseTaxRate(raw)
		switch {
		case !ok:
			add(FieldTaxRate, raw, SeverityInfo,
				fmt.Sprintf("tax rate not recognized, using default %s", v.opts.DefaultTaxRate.String()), "")
		case rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)):
			item.TaxRate = rate
			add(FieldTaxRate, raw, SeverityWarning, "tax rate is outside 0-100",
				"Check whether the rate is a percentage (15) or a fraction (0.15)")
		default:
			item.TaxRate = rate
		}
	}

	quantity := func(f CanonicalField, def int) int {
		raw, _ := cell(f)
		n := quantityOr(raw, def)
		if n == MaxQuantity {
			add(f, raw, SeverityWarning, fmt.Sprintf("quantity capped at %d", MaxQuantity), "Check the value for a typo")
		}
		return n
	}
	item.StockQty = quantity(FieldStockQuantity, 0)
	item.MinQty = quantity(FieldMinQuantity, DefaultMinQuantity)
	item.MaxQty = quantity(FieldMaxQuantity, 0)
	item.LeadTimeDays = quantity(FieldLeadTimeDays, v.opts.DefaultLeadTimeDays)

	item.Brand = DefaultBrand
	if raw, _ := cell(FieldBrand); raw != "" {
		item.Brand = raw
	}
	item.Category = DefaultCategory
	if raw, _ := cell(FieldCategory); raw != "" {
		item.Category = raw
	}

	item.Currency = v.opts.DefaultCurrency
	if raw, _ := cell(FieldCurrency); raw != "" {
		if code, known := ParseCurrency(raw); known {
			item.Currency = code
		} else {
			add(FieldCurrency, raw, SeverityWarning,
				fmt.Sprintf("unknown currency, using %s", v.opts.DefaultCurrency), "Use a three-letter ISO code")
		}
	}

	if raw, _ := cell(FieldNote); raw != "" {
		item.Note = raw
	}

	minRaw, _ := cell(FieldMinQuantity)
	maxRaw, _ := cell(FieldMaxQuantity)
	_, maxOK := ParseQuantity(maxRaw)
	if minRaw != "" && maxOK && item.MinQty > item.MaxQty {
		out.issues = append(out.issues, ValidationIssue{
			Row:              rowNumber,
			Field:            FieldMinQuantity,
			Value:            minRaw,
			Severity:         SeverityWarning,
			Message:          fmt.Sprintf("minimum order quantity %d exceeds maximum %d", item.MinQty, item.MaxQty),
			Suggestion:       "Clamp the minimum to the maximum or swap the values",
			AutoFixAvailable: true,
		})
	}

	out.item = &item
	return out
}

// quantityOr parses an integer cell, falling back to def when the cell is
// blank or unparsable. Negative values clamp to zero.
func quantityOr(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, ok := ParseQuantity(raw)
	if !ok {
		return def
	}
	return n
}

// isBlankRow reports whether every cell is empty after cleanup.
func isBlankRow(row []string) bool {
	for _, c := range row {
		if CleanCell(c) != "" {
			return false
		}
	}
	return true
}

// Recommendations derives advisory text from summary thresholds.
// They never change how rows are classified.
func Recommendations(s ValidationSummary) []string {
	recs := []string{}
	if s.ErrorRows > 0 {
		recs = append(recs, fmt.Sprintf("%d rows have errors and will be skipped; fix them and upload again to include them", s.ErrorRows))
	}
	if s.ValidRows > 0 && float64(s.WarningRows) > 0.2*float64(s.ValidRows) {
		recs = append(recs, "More than 20% of valid rows carry warnings; review the data before importing")
	}
	if s.DuplicateRows > 0 {
		recs = append(recs, fmt.Sprintf("%d duplicate SKUs found; the last occurrence of each is kept", s.DuplicateRows))
	}
	if s.DistinctCategories > 20 {
		recs = append(recs, fmt.Sprintf("%d distinct categories found; consider consolidating them", s.DistinctCategories))
	}
	if s.MeanValue.GreaterThan(decimal.NewFromInt(1000)) {
		recs = append(recs, "Average unit price is above 1000; confirm prices are per unit and not per pack")
	}
	if s.TotalValue.GreaterThan(decimal.NewFromInt(1_000_000)) {
		recs = append(recs, "Total pricelist value exceeds 1,000,000; double-check the price column mapping")
	}
	return recs
}

// ValidateTable is a convenience wrapper building a RowValidator for table.
func ValidateTable(ctx context.Context, table Table, mapping FieldMapping, opts ValidateOptions) (ValidationReport, error) {
	v, err := NewRowValidator(table.Headers, mapping, nil, opts)
	if err != nil {
		return ValidationReport{}, err
	}
	return v.Validate(ctx, table.Rows)
}
