package core

// pricing.go derives a selling price from a merged cost.
//
// Rule selection: the highest-priority active rule that applies to the
// product wins; ties go to the most recently created rule. Every strategy is
// currently computed as cost-plus on the target margin. When no rule applies
// the organization's default margin is used with a lower confidence.
//
// The minimum margin is a hard floor applied last, after the optional
// price-increase cap, so a misconfigured rule can never sell below it.

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidRule wraps validation failures for rules and settings.
var ErrInvalidRule = errors.New("invalid pricing configuration")

// PricingStrategy is the nominal strategy label of a rule.
type PricingStrategy string

const (
	StrategyCostPlus    PricingStrategy = "cost_plus"
	StrategyMarketBased PricingStrategy = "market_based"
	StrategyCompetitive PricingStrategy = "competitive"
	StrategyDynamic     PricingStrategy = "dynamic"
)

// RuleScope decides which products a rule applies to.
type RuleScope string

const (
	ScopeAll        RuleScope = "all"
	ScopeProducts   RuleScope = "products"
	ScopeCategories RuleScope = "categories"
	ScopeBrands     RuleScope = "brands"
)

const (
	// RuleConfidence is reported when a rule priced the item.
	RuleConfidence = 85
	// DefaultMarginConfidence is reported when the organization default was used.
	DefaultMarginConfidence = 75
)

// PricingRule is an organization-level pricing rule.
type PricingRule struct {
	ID                  uuid.UUID        `json:"id"`
	OrganizationID      uuid.UUID        `json:"organizationId"`
	Name                string           `json:"name" validate:"required,max=200"`
	Strategy            PricingStrategy  `json:"strategy" validate:"required,oneof=cost_plus market_based competitive dynamic"`
	MinMarginPct        decimal.Decimal  `json:"minMarginPct" validate:"gte=0,lte=1000"`
	TargetMarginPct     decimal.Decimal  `json:"targetMarginPct" validate:"gte=0,lte=1000"`
	MaxPriceIncreasePct *decimal.Decimal `json:"maxPriceIncreasePct,omitempty" validate:"omitempty,gte=0,lte=1000"`
	Active              bool             `json:"active"`
	Priority            int              `json:"priority" validate:"gte=0,lte=10000"`
	AppliesTo           RuleScope        `json:"appliesTo" validate:"required,oneof=all products categories brands"`
	ProductIDs          []uuid.UUID      `json:"productIds,omitempty" validate:"required_if=AppliesTo products"`
	Categories          []string         `json:"categories,omitempty" validate:"required_if=AppliesTo categories,dive,required"`
	Brands              []string         `json:"brands,omitempty" validate:"required_if=AppliesTo brands,dive,required"`
	CreatedAt           time.Time        `json:"createdAt"`
}

// PricingSettings is the organization-level fallback configuration.
type PricingSettings struct {
	OrganizationID   uuid.UUID       `json:"organizationId"`
	DefaultMarginPct decimal.Decimal `json:"defaultMarginPct" validate:"gte=0,lte=1000"`
	MinMarginPct     decimal.Decimal `json:"minMarginPct" validate:"gte=0,lte=1000"`
	AutoApply        bool            `json:"autoApply"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// PricingInput describes the product being priced.
type PricingInput struct {
	ProductID     uuid.UUID        `json:"productId"`
	Category      string           `json:"category"`
	Brand         string           `json:"brand"`
	Cost          decimal.Decimal  `json:"cost"`
	PreviousPrice *decimal.Decimal `json:"previousPrice,omitempty"`
}

// PriceDecision is the evaluator's output. RuleID is nil when the
// organization default margin was used.
type PriceDecision struct {
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	MarginPct    decimal.Decimal `json:"marginPct"`
	RuleID       *uuid.UUID      `json:"ruleId,omitempty"`
	Strategy     PricingStrategy `json:"strategy,omitempty"`
	Confidence   int             `json:"confidence"`
	Reasoning    string          `json:"reasoning"`
}

var hundred = decimal.NewFromInt(100)

// PricingRuleEvaluator selects rules and computes selling prices.
// It holds no state and is safe for concurrent use.
type PricingRuleEvaluator struct{}

// NewPricingRuleEvaluator creates an evaluator.
func NewPricingRuleEvaluator() *PricingRuleEvaluator {
	return &PricingRuleEvaluator{}
}

// SelectRule returns the rule that prices in, or nil.
func (e *PricingRuleEvaluator) SelectRule(in PricingInput, rules []PricingRule) *PricingRule {
	var candidates []PricingRule
	for _, r := range rules {
		if r.Active && r.appliesTo(in) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return &candidates[0]
}

// Evaluate prices one product. It never fails: missing configuration falls
// back to the organization defaults.
func (e *PricingRuleEvaluator) Evaluate(in PricingInput, rules []PricingRule, settings PricingSettings) PriceDecision {
	cost := in.Cost
	if cost.IsNegative() {
		cost = decimal.Zero
	}

	var d PriceDecision
	var reasons []string
	minMargin := settings.MinMarginPct

	if rule := e.SelectRule(in, rules); rule != nil {
		id := rule.ID
		d.RuleID = &id
		d.Strategy = rule.Strategy
		d.Confidence = RuleConfidence
		d.SellingPrice = markup(cost, rule.TargetMarginPct)
		// A rule may raise the organization floor but never lower it.
		minMargin = decimal.Max(settings.MinMarginPct, rule.MinMarginPct)

		reason := fmt.Sprintf("rule %q: cost %s plus %s%% target margin", rule.Name, cost.StringFixed(2), rule.TargetMarginPct.String())
		if rule.Strategy != StrategyCostPlus {
			reason += fmt.Sprintf(" (%s strategy priced as cost-plus)", rule.Strategy)
		}
		reasons = append(reasons, reason)

		if rule.MaxPriceIncreasePct != nil && in.PreviousPrice != nil && in.PreviousPrice.IsPositive() {
			ceiling := markup(*in.PreviousPrice, *rule.MaxPriceIncreasePct)
			if d.SellingPrice.GreaterThan(ceiling) {
				d.SellingPrice = ceiling
				reasons = append(reasons, fmt.Sprintf("capped at %s%% increase over previous price %s",
					rule.MaxPriceIncreasePct.String(), in.PreviousPrice.StringFixed(2)))
			}
		}
	} else {
		d.Confidence = DefaultMarginConfidence
		d.SellingPrice = markup(cost, settings.DefaultMarginPct)
		reasons = append(reasons, fmt.Sprintf("no applicable rule: cost %s plus organization default margin %s%%",
			cost.StringFixed(2), settings.DefaultMarginPct.String()))
	}

	floor := cost.Mul(decimal.NewFromInt(1).Add(minMargin.Div(hundred))).RoundCeil(2)
	if d.SellingPrice.LessThan(floor) {
		d.SellingPrice = floor
		reasons = append(reasons, fmt.Sprintf("raised to the %s%% minimum margin floor", minMargin.String()))
	}

	d.SellingPrice = d.SellingPrice.Round(2)
	if cost.IsPositive() {
		d.MarginPct = d.SellingPrice.Sub(cost).Div(cost).Mul(hundred).Round(2)
	}
	d.Reasoning = strings.Join(reasons, "; ")
	return d
}

// markup returns base * (1 + pct/100) rounded to cents.
func markup(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(decimal.NewFromInt(1).Add(pct.Div(hundred))).Round(2)
}

func (r PricingRule) appliesTo(in PricingInput) bool {
	switch r.AppliesTo {
	case ScopeAll, "":
		return true
	case ScopeProducts:
		for _, id := range r.ProductIDs {
			if id == in.ProductID {
				return true
			}
		}
	case ScopeCategories:
		return containsFold(r.Categories, in.Category)
	case ScopeBrands:
		return containsFold(r.Brands, in.Brand)
	}
	return false
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// ValidateRule checks a rule's fields.
func ValidateRule(r PricingRule) error {
	if err := structValidator.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRule, describeValidation(err))
	}
	return nil
}

// ValidateSettings checks organization pricing settings.
func ValidateSettings(s PricingSettings) error {
	if err := structValidator.Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRule, describeValidation(err))
	}
	return nil
}

// describeValidation flattens validator errors into one line.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, ", ")
}
