package core

// convert.go provides the per-field coercion functions used by the validator
// and the conversions between domain values and PostgreSQL types.
//
// Supplier spreadsheets are messy:
//   - Currency symbols, thousands separators and "%" signs in numbers
//   - Accounting format for negatives: (12.50)
//   - Excel formula prefixes (="value") and stray quotes
//   - Decimal quantities where integers are expected
//
// Each Parse* function is pure and reports ok=false when the cell is absent or
// unusable, leaving the fallback policy to the caller.

import (
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// stripNumeric keeps only digits, '-' and '.'.
func stripNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseLooseDecimal parses a number after removing every character that is not
// part of a plain decimal literal. Accounting negatives "(1.50)" become -1.50.
func parseLooseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = stripNumeric(s)
	if s == "" || s == "-" || s == "." {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// NormalizeSKU trims and uppercases an identifier.
func NormalizeSKU(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParsePrice parses a unit price. ok is false for empty or non-numeric input;
// negative values parse successfully and are rejected by the validator.
func ParsePrice(s string) (decimal.Decimal, bool) {
	return parseLooseDecimal(s)
}

// ParseTaxRate parses a tax rate such as "15", "15%" or "0.15".
func ParseTaxRate(s string) (decimal.Decimal, bool) {
	return parseLooseDecimal(s)
}

// MaxQuantity is the largest quantity the catalog stores (a Postgres integer).
const MaxQuantity = math.MaxInt32

// ParseQuantity parses an integer quantity, truncating decimals, clamping
// negatives to zero and values above MaxQuantity to MaxQuantity. ok is false
// when the cell is empty or unparsable.
func ParseQuantity(s string) (int, bool) {
	d, ok := parseLooseDecimal(s)
	if !ok {
		return 0, false
	}
	if d.IsNegative() {
		return 0, true
	}
	if d.GreaterThan(decimal.NewFromInt(MaxQuantity)) {
		return MaxQuantity, true
	}
	return int(d.IntPart()), true
}

// ParseCurrency uppercases a currency code. known is false unless the code
// is a recognized ISO 4217 currency.
func ParseCurrency(s string) (code string, known bool) {
	code = strings.ToUpper(strings.TrimSpace(s))
	if _, err := currency.ParseISO(code); err != nil {
		return code, false
	}
	return code, true
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// PgTextToString returns the text value or "" when NULL.
func PgTextToString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// ToPgNumeric converts a decimal to pgtype.Numeric without losing precision.
func ToPgNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(d.Coefficient()), Exp: d.Exponent(), Valid: true}
}

// ToPgNumericPtr converts an optional decimal; nil becomes NULL.
func ToPgNumericPtr(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{Valid: false}
	}
	return ToPgNumeric(*d)
}

// PgNumericToDecimal converts a pgtype.Numeric to a decimal.
// NULL, NaN and infinities become zero.
func PgNumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// ToPgTimestamptz converts a time to pgtype.Timestamptz; the zero time is NULL.
func ToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// PgTimestamptzPtr returns nil for NULL timestamps.
func PgTimestamptzPtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// ToPgUUID converts a uuid to pgtype.UUID. uuid.Nil becomes NULL.
func ToPgUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

// PgUUID converts a pgtype.UUID to uuid.UUID, returning uuid.Nil for NULL.
func PgUUID(u pgtype.UUID) uuid.UUID {
	if !u.Valid {
		return uuid.Nil
	}
	return uuid.UUID(u.Bytes)
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}
