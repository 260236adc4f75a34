package core

import (
	"fmt"
	"sort"
)

// CanonicalField is a target attribute of the catalog schema that source
// columns are mapped onto.
type CanonicalField string

const (
	FieldIdentifier         CanonicalField = "identifier"
	FieldSupplierIdentifier CanonicalField = "supplier_identifier"
	FieldDescription        CanonicalField = "description"
	FieldBrand              CanonicalField = "brand"
	FieldCategory           CanonicalField = "category"
	FieldUnitPrice          CanonicalField = "unit_price"
	FieldMinQuantity        CanonicalField = "min_quantity"
	FieldMaxQuantity        CanonicalField = "max_quantity"
	FieldLeadTimeDays       CanonicalField = "lead_time_days"
	FieldTaxRate            CanonicalField = "tax_rate"
	FieldStockQuantity      CanonicalField = "stock_quantity"
	FieldCurrency           CanonicalField = "currency"
	FieldNote               CanonicalField = "note"
)

// FieldDefinition describes how a canonical field is recognized in headers.
// Patterns are already in normalized form (see NormalizeHeader).
type FieldDefinition struct {
	Field    CanonicalField `json:"field"`
	Label    string         `json:"label"`
	Patterns []string       `json:"patterns"`
	Required bool           `json:"required"`
	Weight   float64        `json:"weight"` // relative importance in mapping confidence
}

// FieldCatalog is an immutable set of field definitions.
type FieldCatalog struct {
	defs  map[CanonicalField]FieldDefinition
	order []CanonicalField
}

// NewFieldCatalog builds a catalog from definitions in the given order.
// Panics if a field is defined twice or carries no patterns.
func NewFieldCatalog(defs ...FieldDefinition) *FieldCatalog {
	c := &FieldCatalog{defs: make(map[CanonicalField]FieldDefinition, len(defs))}
	for _, def := range defs {
		if _, exists := c.defs[def.Field]; exists {
			panic(fmt.Sprintf("field already defined: %s", def.Field))
		}
		if len(def.Patterns) == 0 {
			panic(fmt.Sprintf("field %s has no patterns", def.Field))
		}
		if def.Weight <= 0 {
			def.Weight = 1
		}
		c.defs[def.Field] = def
		c.order = append(c.order, def.Field)
	}
	return c
}

// Get returns a field definition.
// Returns false if the field is not part of the catalog.
func (c *FieldCatalog) Get(f CanonicalField) (FieldDefinition, bool) {
	def, ok := c.defs[f]
	return def, ok
}

// All returns every definition in declaration order.
func (c *FieldCatalog) All() []FieldDefinition {
	result := make([]FieldDefinition, 0, len(c.order))
	for _, f := range c.order {
		result = append(result, c.defs[f])
	}
	return result
}

// Required returns the required fields in declaration order.
func (c *FieldCatalog) Required() []CanonicalField {
	var result []CanonicalField
	for _, f := range c.order {
		if c.defs[f].Required {
			result = append(result, f)
		}
	}
	return result
}

// Fields returns the field names sorted alphabetically.
func (c *FieldCatalog) Fields() []CanonicalField {
	result := make([]CanonicalField, len(c.order))
	copy(result, c.order)
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Len returns the number of fields in the catalog.
func (c *FieldCatalog) Len() int {
	return len(c.order)
}

// DefaultFieldCatalog is the pricelist schema used when callers do not supply their own.
var DefaultFieldCatalog = NewFieldCatalog(
	FieldDefinition{
		Field:    FieldIdentifier,
		Label:    "SKU",
		Patterns: []string{"sku", "item_code", "product_code", "part_number", "part_no", "item_no", "article", "code"},
		Required: true,
		Weight:   1.0,
	},
	FieldDefinition{
		Field:    FieldSupplierIdentifier,
		Label:    "Supplier SKU",
		Patterns: []string{"supplier_sku", "vendor_sku", "supplier_code", "vendor_code", "mfr_part", "manufacturer_part"},
		Weight:   0.5,
	},
	FieldDefinition{
		Field:    FieldDescription,
		Label:    "Description",
		Patterns: []string{"description", "desc", "product_description", "product_name", "item_name", "name", "title", "details"},
		Required: true,
		Weight:   0.9,
	},
	FieldDefinition{
		Field:    FieldBrand,
		Label:    "Brand",
		Patterns: []string{"brand", "make", "manufacturer", "mfg"},
		Weight:   0.4,
	},
	FieldDefinition{
		Field:    FieldCategory,
		Label:    "Category",
		Patterns: []string{"category", "group", "class", "department", "type"},
		Weight:   0.5,
	},
	FieldDefinition{
		Field:    FieldUnitPrice,
		Label:    "Unit Price",
		Patterns: []string{"unit_price", "unit_cost", "cost_price", "price", "cost", "buy_price", "net_price", "wholesale"},
		Required: true,
		Weight:   1.0,
	},
	FieldDefinition{
		Field:    FieldMinQuantity,
		Label:    "Min Order Qty",
		Patterns: []string{"min_qty", "moq", "min_order", "min_order_qty", "minimum_order"},
		Weight:   0.3,
	},
	FieldDefinition{
		Field:    FieldMaxQuantity,
		Label:    "Max Order Qty",
		Patterns: []string{"max_qty", "max_order", "max_order_qty", "maximum_order"},
		Weight:   0.3,
	},
	FieldDefinition{
		Field:    FieldLeadTimeDays,
		Label:    "Lead Time (days)",
		Patterns: []string{"lead_time", "lead_time_days", "lead_days", "delivery_days"},
		Weight:   0.3,
	},
	FieldDefinition{
		Field:    FieldTaxRate,
		Label:    "Tax Rate",
		Patterns: []string{"tax_rate", "tax", "vat", "gst"},
		Weight:   0.4,
	},
	FieldDefinition{
		Field:    FieldStockQuantity,
		Label:    "Stock",
		Patterns: []string{"stock", "stock_qty", "quantity", "qty", "on_hand", "soh", "inventory", "available"},
		Weight:   0.6,
	},
	FieldDefinition{
		Field:    FieldCurrency,
		Label:    "Currency",
		Patterns: []string{"currency", "curr", "ccy"},
		Weight:   0.3,
	},
	FieldDefinition{
		Field:    FieldNote,
		Label:    "Note",
		Patterns: []string{"note", "notes", "remarks", "comment", "comments"},
		Weight:   0.2,
	},
)
