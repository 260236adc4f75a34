package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fullHeaders = []string{"SKU", "Description", "Price", "Min Qty", "Max Qty", "VAT", "Currency", "Notes", "Stock"}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions() ValidateOptions {
	return ValidateOptions{
		DefaultTaxRate: decimal.NewFromInt(15),
		Now:            func() time.Time { return fixedNow },
	}
}

func validate(t *testing.T, headers []string, rows [][]string, opts ValidateOptions) ValidationReport {
	t.Helper()
	mapping := NewFieldMapper(nil).Map(headers)
	report, err := ValidateTable(context.Background(), Table{Headers: headers, Rows: rows}, mapping, opts)
	require.NoError(t, err)
	return report
}

func issuesFor(report ValidationReport, row int) []ValidationIssue {
	var out []ValidationIssue
	for _, is := range report.Issues {
		if is.Row == row {
			out = append(out, is)
		}
	}
	return out
}

func TestValidate_MissingIdentifier(t *testing.T) {
	report := validate(t, []string{"SKU", "Description", "Price"}, [][]string{
		{"", "Widget", "12.50"},
	}, testOptions())

	require.Len(t, report.Issues, 1)
	issue := report.Issues[0]
	assert.Equal(t, SeverityError, issue.Severity)
	assert.Equal(t, FieldIdentifier, issue.Field)
	assert.Equal(t, 2, issue.Row)
	assert.Zero(t, report.Summary.ValidRows)
	assert.Equal(t, 1, report.Summary.ErrorRows)
	assert.Empty(t, report.Records)
	assert.True(t, report.HasBlockingErrors())
}

func TestValidate_DuplicateSKULastRowWins(t *testing.T) {
	report := validate(t, []string{"SKU", "Description", "Price"}, [][]string{
		{"abc-1", "Widget", "10"},
		{"XYZ-9", "Gadget", "5"},
		{" ABC-1 ", "Widget v2", "12"},
	}, testOptions())

	require.Len(t, report.Issues, 1)
	dup := report.Issues[0]
	assert.Equal(t, SeverityWarning, dup.Severity)
	assert.Equal(t, 4, dup.Row)
	assert.Contains(t, dup.Message, "also on row 2")

	require.Len(t, report.Records, 2)
	var survivor CatalogItem
	for _, r := range report.Records {
		if r.SKU == "ABC-1" {
			survivor = r
		}
	}
	assert.Equal(t, "Widget v2", survivor.Description)
	assert.True(t, survivor.UnitPrice.Equal(decimal.NewFromInt(12)))

	assert.Equal(t, 3, report.Summary.ValidRows)
	assert.Equal(t, 1, report.Summary.WarningRows)
	assert.Equal(t, 1, report.Summary.DuplicateRows)
	assert.True(t, report.Summary.TotalValue.Equal(decimal.NewFromInt(17)))
}

func TestValidate_ErrorRowDoesNotCountAsDuplicate(t *testing.T) {
	report := validate(t, []string{"SKU", "Description", "Price"}, [][]string{
		{"A1", "Widget", "abc"},
		{"A1", "Widget", "10"},
	}, testOptions())

	assert.Zero(t, report.Summary.DuplicateRows)
	assert.Len(t, report.Records, 1)
	assert.Equal(t, 1, report.Summary.ErrorRows)
}

func TestValidate_FieldCoercion(t *testing.T) {
	rows := [][]string{
		{"a-1", "Bolt", "$1,250.50", "10", "5", "150", "usd", "fragile", "-4"},
		{"A-2", "Nut", "(3.00)", "", "", "abc", "XYZ", "", "12.9"},
		{"A-3", "Washer", "abc", "", "", "", "", "", ""},
		{"A-4", "Screw", "0.10", "", "", "15%", "", "", ""},
	}
	report := validate(t, fullHeaders, rows, testOptions())

	t.Run("price and quantities", func(t *testing.T) {
		require.Len(t, report.Records, 2)
		first := report.Records[0]
		assert.Equal(t, "A-1", first.SKU)
		assert.True(t, first.UnitPrice.Equal(decimal.RequireFromString("1250.50")))
		assert.Equal(t, 10, first.MinQty)
		assert.Equal(t, 5, first.MaxQty)
		assert.Equal(t, 0, first.StockQty)
		assert.Equal(t, "USD", first.Currency)
		assert.Equal(t, "fragile", first.Note)
		assert.True(t, first.TaxRate.Equal(decimal.NewFromInt(150)))
	})

	t.Run("min above max is an auto-fixable warning", func(t *testing.T) {
		var found bool
		for _, is := range issuesFor(report, 2) {
			if is.Field == FieldMinQuantity {
				found = true
				assert.Equal(t, SeverityWarning, is.Severity)
				assert.True(t, is.AutoFixAvailable)
			}
		}
		assert.True(t, found)
	})

	t.Run("tax out of range warns", func(t *testing.T) {
		var found bool
		for _, is := range issuesFor(report, 2) {
			if is.Field == FieldTaxRate {
				found = true
				assert.Equal(t, SeverityWarning, is.Severity)
				assert.Contains(t, is.Suggestion, "percentage")
			}
		}
		assert.True(t, found)
	})

	t.Run("negative price is an error", func(t *testing.T) {
		issues := issuesFor(report, 3)
		var errs []ValidationIssue
		for _, is := range issues {
			if is.Severity == SeverityError {
				errs = append(errs, is)
			}
		}
		require.Len(t, errs, 1)
		assert.Equal(t, FieldUnitPrice, errs[0].Field)
		assert.Equal(t, "(3.00)", errs[0].Value)
	})

	t.Run("unparsable tax falls back with info and unknown currency warns", func(t *testing.T) {
		bySeverity := map[CanonicalField]Severity{}
		for _, is := range issuesFor(report, 3) {
			bySeverity[is.Field] = is.Severity
		}
		assert.Equal(t, SeverityInfo, bySeverity[FieldTaxRate])
		assert.Equal(t, SeverityWarning, bySeverity[FieldCurrency])
	})

	t.Run("non-numeric price is an error", func(t *testing.T) {
		issues := issuesFor(report, 4)
		require.Len(t, issues, 1)
		assert.Equal(t, SeverityError, issues[0].Severity)
		assert.Contains(t, issues[0].Message, "invalid number")
	})

	t.Run("defaults", func(t *testing.T) {
		last := report.Records[1]
		assert.Equal(t, "A-4", last.SKU)
		assert.Equal(t, DefaultBrand, last.Brand)
		assert.Equal(t, DefaultCategory, last.Category)
		assert.Equal(t, DefaultLeadTimeDays, last.LeadTimeDays)
		assert.Equal(t, DefaultMinQuantity, last.MinQty)
		assert.Equal(t, DefaultCurrency, last.Currency)
		assert.True(t, last.TaxRate.Equal(decimal.NewFromInt(15)))
		assert.Equal(t, fixedNow, last.UpdatedAt)
		assert.Empty(t, issuesFor(report, 5))
	})

	assert.Equal(t, 4, report.Summary.TotalRows)
	assert.Equal(t, 2, report.Summary.ValidRows)
	assert.Equal(t, 2, report.Summary.ErrorRows)
	assert.Equal(t, 1, report.Summary.WarningRows)
}

func TestValidate_BlankAndShortRows(t *testing.T) {
	report := validate(t, []string{"SKU", "Description", "Price"}, [][]string{
		{"", " ", ""},
		{},
		{"A1", "Widget"},
	}, testOptions())

	assert.Equal(t, 2, report.Summary.EmptyRows)
	assert.Equal(t, 1, report.Summary.TotalRows)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, 4, report.Issues[0].Row)
	assert.Equal(t, FieldUnitPrice, report.Issues[0].Field)
	assert.Contains(t, report.Issues[0].Message, "required field")
}

func TestValidate_QuantityBounds(t *testing.T) {
	headers := []string{"SKU", "Description", "Price", "Min Qty", "Max Qty", "Stock"}
	report := validate(t, headers, [][]string{
		{"A1", "Widget", "1", "5", "0", ""},
		{"A2", "Widget", "1", "5", "lots", ""},
		{"A3", "Widget", "1", "", "", "3000000000"},
	}, testOptions())

	t.Run("explicit zero maximum below minimum warns", func(t *testing.T) {
		issues := issuesFor(report, 2)
		require.Len(t, issues, 1)
		assert.Equal(t, FieldMinQuantity, issues[0].Field)
		assert.True(t, issues[0].AutoFixAvailable)
	})

	t.Run("unparsable maximum does not", func(t *testing.T) {
		assert.Empty(t, issuesFor(report, 3))
	})

	t.Run("oversized stock is capped with a warning", func(t *testing.T) {
		issues := issuesFor(report, 4)
		require.Len(t, issues, 1)
		assert.Equal(t, FieldStockQuantity, issues[0].Field)
		assert.Equal(t, SeverityWarning, issues[0].Severity)
		require.Len(t, report.Records, 3)
		assert.Equal(t, MaxQuantity, report.Records[2].StockQty)
	})
}

func TestValidate_UnmappedRequiredField(t *testing.T) {
	headers := []string{"SKU", "Price"}
	report := validate(t, headers, [][]string{{"A1", "3"}}, testOptions())

	require.Len(t, report.Issues, 1)
	assert.Equal(t, FieldDescription, report.Issues[0].Field)
	assert.Contains(t, report.Issues[0].Message, "not mapped")
}

func TestValidate_IdentifierCharset(t *testing.T) {
	opts := testOptions()
	opts.CheckIdentifierCharset = true
	report := validate(t, []string{"SKU", "Description", "Price"}, [][]string{
		{"AB C/1", "Widget", "3"},
	}, opts)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, SeverityInfo, report.Issues[0].Severity)
	assert.Equal(t, 1, report.Summary.ValidRows)
	assert.Zero(t, report.Summary.WarningRows)
}

func TestValidate_StructuralErrors(t *testing.T) {
	headers := []string{"SKU", "Description", "Price"}
	mapping := NewFieldMapper(nil).Map(headers)

	t.Run("row wider than header", func(t *testing.T) {
		_, err := ValidateTable(context.Background(), Table{Headers: headers, Rows: [][]string{
			{"A1", "Widget", "3"},
			{"A2", "Widget", "3", "surprise"},
		}}, mapping, testOptions())

		var se *StructuralError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 3, se.Row)
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("trailing blank cells are tolerated", func(t *testing.T) {
		report, err := ValidateTable(context.Background(), Table{Headers: headers, Rows: [][]string{
			{"A1", "Widget", "3", "", "  "},
		}}, mapping, testOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Summary.ValidRows)
	})

	t.Run("mapped column missing", func(t *testing.T) {
		bad := FieldMapping{Columns: map[CanonicalField]string{FieldUnitPrice: "Cost"}}
		_, err := ValidateTable(context.Background(), Table{Headers: headers}, bad, testOptions())
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("unknown field", func(t *testing.T) {
		bad := FieldMapping{Columns: map[CanonicalField]string{"colour": "SKU"}}
		_, err := ValidateTable(context.Background(), Table{Headers: headers}, bad, testOptions())
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("no headers", func(t *testing.T) {
		_, err := ValidateTable(context.Background(), Table{}, mapping, testOptions())
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestValidate_EveryRowFailingStillReports(t *testing.T) {
	report := validate(t, []string{"SKU", "Description", "Price"}, [][]string{
		{"", "", ""},
		{"", "x", ""},
		{"A", "", "-1"},
	}, testOptions())

	assert.Equal(t, 2, report.Summary.ErrorRows)
	assert.Empty(t, report.Records)
	assert.NotEmpty(t, report.Recommendations)
}

func TestValidate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	headers := []string{"SKU", "Description", "Price"}
	_, err := ValidateTable(ctx, Table{Headers: headers, Rows: [][]string{{"A", "B", "1"}}}, NewFieldMapper(nil).Map(headers), testOptions())
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestValidate_ParallelMatchesSequential(t *testing.T) {
	rows := make([][]string, 0, 1200)
	for i := 0; i < 1200; i++ {
		price := fmt.Sprintf("%d.%02d", i%97, i%100)
		if i%50 == 0 {
			price = "n/a"
		}
		rows = append(rows, []string{fmt.Sprintf("sku-%d", i%1000), fmt.Sprintf("Item %d", i), price, "", "", "", "", "", fmt.Sprint(i)})
	}

	seq := testOptions()
	seq.Workers = 1
	par := testOptions()
	par.Workers = 8

	a := validate(t, fullHeaders, rows, seq)
	b := validate(t, fullHeaders, rows, par)
	assert.Equal(t, a, b)
	assert.Equal(t, 24, a.Summary.ErrorRows)
	assert.Len(t, a.Records, 980)
}

func TestRecommendations(t *testing.T) {
	recs := Recommendations(ValidationSummary{
		ValidRows:          10,
		WarningRows:        3,
		ErrorRows:          1,
		DuplicateRows:      2,
		DistinctCategories: 21,
		MeanValue:          decimal.NewFromInt(1500),
		TotalValue:         decimal.NewFromInt(2_000_000),
	})
	assert.Len(t, recs, 6)

	assert.Empty(t, Recommendations(ValidationSummary{ValidRows: 10, WarningRows: 2}))
}
