package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/pricelist/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngestTimeout is the maximum duration of one ingest after its slot is acquired.
var IngestTimeout = 10 * time.Minute

// DefaultRunListLimit caps ListRuns when the caller passes no limit.
const DefaultRunListLimit = 50

// ServiceConfig holds the defaults the service applies to every ingest.
// Zero values take the package defaults.
type ServiceConfig struct {
	MergeMode       MergeMode
	MergeBatchSize  int
	DefaultLocation string

	DefaultCurrency        string
	DefaultLeadTimeDays    int
	DefaultTaxRate         decimal.Decimal
	CheckIdentifierCharset bool
	Workers                int

	// Fallback pricing settings for organizations that have none stored.
	DefaultMarginPct decimal.Decimal
	MinMarginPct     decimal.Decimal

	MaxConcurrentIngests int
	MaxIngestWait        time.Duration

	Sweep SweepConfig
	Now   func() time.Time
}

// Service is the entry point for pricelist ingestion and catalog queries.
type Service struct {
	store     Store
	catalog   *FieldCatalog
	mapper    *FieldMapper
	evaluator *PricingRuleEvaluator
	merger    *MergeEngine
	sweeper   *Sweeper
	limiter   *IngestLimiter
	cfg       ServiceConfig
	now       func() time.Time
}

// NewService wires the pipeline components over store. locker serializes
// merges and sweeps per supplier; nil falls back to an in-process locker.
func NewService(store Store, locker SupplierLocker, cfg ServiceConfig) *Service {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if cfg.MergeMode == "" {
		cfg.MergeMode = MergeBestEffort
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	sweeper := NewSweeper(store, locker, cfg.Sweep)
	sweeper.now = cfg.Now

	return &Service{
		store:     store,
		catalog:   DefaultFieldCatalog,
		mapper:    NewFieldMapper(DefaultFieldCatalog),
		evaluator: NewPricingRuleEvaluator(),
		merger:    NewMergeEngine(store, locker),
		sweeper:   sweeper,
		limiter:   NewIngestLimiter(cfg.MaxConcurrentIngests, cfg.MaxIngestWait),
		cfg:       cfg,
		now:       cfg.Now,
	}
}

// Fields returns the canonical field definitions in catalog order.
func (s *Service) Fields() []FieldDefinition {
	return s.catalog.All()
}

// MappingSuggestion is the inferred mapping plus any saved templates that fit.
type MappingSuggestion struct {
	Mapping   FieldMapping    `json:"mapping"`
	Templates []TemplateMatch `json:"templates"`
}

// SuggestMapping infers a mapping for headers and lists matching templates.
func (s *Service) SuggestMapping(ctx context.Context, scope Scope, headers []string) (MappingSuggestion, error) {
	matches, err := s.MatchTemplates(ctx, scope, headers)
	if err != nil {
		return MappingSuggestion{}, err
	}
	return MappingSuggestion{
		Mapping:   s.mapper.Map(headers),
		Templates: matches,
	}, nil
}

// validateOptions builds the per-ingest validator options.
func (s *Service) validateOptions() ValidateOptions {
	return ValidateOptions{
		DefaultLeadTimeDays:    s.cfg.DefaultLeadTimeDays,
		DefaultTaxRate:         s.cfg.DefaultTaxRate,
		DefaultCurrency:        s.cfg.DefaultCurrency,
		CheckIdentifierCharset: s.cfg.CheckIdentifierCharset,
		Workers:                s.cfg.Workers,
		Now:                    s.now,
	}
}

// Validate runs the RowValidator over table. A nil mapping is inferred from
// the headers. Structural problems are returned as a *StructuralError.
func (s *Service) Validate(ctx context.Context, table Table, mapping *FieldMapping) (ValidationReport, FieldMapping, error) {
	m := s.mapper.Map(table.Headers)
	if mapping != nil {
		m = *mapping
	}
	v, err := NewRowValidator(table.Headers, m, s.catalog, s.validateOptions())
	if err != nil {
		return ValidationReport{}, m, err
	}
	report, err := v.Validate(ctx, table.Rows)
	return report, m, err
}

// IngestRequest describes one pricelist upload for a supplier.
type IngestRequest struct {
	Scope    Scope
	FileName string
	Table    Table

	// Mapping overrides inference. TemplateID applies a saved template instead.
	Mapping    *FieldMapping
	TemplateID uuid.UUID

	Mode          MergeMode
	Location      string
	AcceptPartial bool // merge valid rows even when some rows have errors
	ApplyPricing  bool // write price decisions back; organizations with AutoApply always do
}

// PricedProduct is a price decision for one merged product.
type PricedProduct struct {
	ProductID uuid.UUID     `json:"productId"`
	SKU       string        `json:"sku"`
	Decision  PriceDecision `json:"decision"`
	Applied   bool          `json:"applied"`
}

// IngestResult is everything an ingest produced.
type IngestResult struct {
	Run        IngestionRun     `json:"run"`
	Mapping    FieldMapping     `json:"mapping"`
	Validation ValidationReport `json:"validation"`
	Merge      *MergeResult     `json:"merge,omitempty"`
	Pricing    []PricedProduct  `json:"pricing,omitempty"`
	Message    string           `json:"message"`
}

// Ingest runs the full pipeline: map, validate, merge, price. The run is
// recorded whatever the outcome. The returned result is populated as far as
// the pipeline got, also when an error is returned.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return IngestResult{}, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, IngestTimeout)
	defer cancel()

	run := IngestionRun{
		ID:             uuid.New(),
		OrganizationID: req.Scope.OrganizationID,
		SupplierID:     req.Scope.SupplierID,
		FileName:       req.FileName,
		Status:         RunRunning,
		StartedAt:      s.now().UTC(),
	}
	logger := logging.WithFields(ctx,
		"run_id", run.ID,
		"organization_id", run.OrganizationID,
		"supplier_id", run.SupplierID,
		"file", req.FileName,
		"client_ip", ClientIPFromContext(ctx),
	)
	logger.Info("ingest started", "rows", len(req.Table.Rows))

	if err := s.store.CreateRun(ctx, run); err != nil {
		return IngestResult{Run: run}, fmt.Errorf("create run: %w", err)
	}

	result := IngestResult{}
	err := s.ingest(ctx, req, &run, &result)

	finishedAt := s.now().UTC()
	run.FinishedAt = &finishedAt
	if err != nil {
		run.Error = err.Error()
		if run.Status == RunRunning {
			run.Status = RunFailed
		}
	} else {
		run.Status = RunCompleted
	}
	if ferr := s.store.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
		logger.Error("record run failed", "error", ferr)
	}
	result.Run = run
	if result.Message == "" {
		result.Message = runMessage(run)
	}

	logger.Info("ingest finished",
		"status", run.Status,
		"valid_rows", run.ValidRows,
		"error_rows", run.ErrorRows,
		"created", run.Created,
		"updated", run.Updated,
		"unchanged", run.Unchanged,
		"failed", run.Failed,
		"duration_ms", finishedAt.Sub(run.StartedAt).Milliseconds(),
	)
	return result, err
}

func (s *Service) ingest(ctx context.Context, req IngestRequest, run *IngestionRun, result *IngestResult) error {
	mapping, err := s.resolveMapping(ctx, req)
	if err != nil {
		return err
	}
	result.Mapping = mapping
	run.MappingConfidence = mapping.Confidence

	report, _, err := s.Validate(ctx, req.Table, &mapping)
	if err != nil {
		return err
	}
	result.Validation = report
	run.TotalRows = report.Summary.TotalRows
	run.ValidRows = report.Summary.ValidRows
	run.ErrorRows = report.Summary.ErrorRows

	if report.HasBlockingErrors() && !req.AcceptPartial {
		run.Status = RunRejected
		return fmt.Errorf("%w: %d of %d rows have errors", ErrBlockingIssues, report.Summary.ErrorRows, report.Summary.TotalRows)
	}

	mode := req.Mode
	if mode == "" {
		mode = s.cfg.MergeMode
	}
	location := req.Location
	if location == "" {
		location = s.cfg.DefaultLocation
	}
	merged, mergeErr := s.merger.Merge(ctx, req.Scope, report.Records, MergeOptions{
		Mode:      mode,
		BatchSize: s.cfg.MergeBatchSize,
		Location:  location,
		BatchID:   run.ID,
		Now:       s.now,
	})
	result.Merge = &merged
	result.Message = merged.Message()
	run.Created = merged.Created
	run.Updated = merged.Updated
	run.Unchanged = merged.Unchanged
	run.Failed = merged.Failed
	run.StoppedEarly = merged.StoppedEarly

	if merged.Processed > 0 {
		priced, err := s.priceOutcomes(context.WithoutCancel(ctx), req.Scope.OrganizationID, merged.Outcomes, req.ApplyPricing)
		if err != nil {
			logging.FromContext(ctx).Error("pricing after merge failed", "run_id", run.ID, "error", err)
		}
		result.Pricing = priced
	}

	var stopped *StoppedError
	if errors.As(mergeErr, &stopped) {
		run.Status = RunStopped
	}
	return mergeErr
}

// resolveMapping picks the request mapping, a saved template, or inference.
func (s *Service) resolveMapping(ctx context.Context, req IngestRequest) (FieldMapping, error) {
	if req.Mapping != nil {
		return *req.Mapping, nil
	}
	if req.TemplateID != uuid.Nil {
		return s.TemplateMapping(ctx, req.Scope, req.TemplateID)
	}
	return s.mapper.Map(req.Table.Headers), nil
}

// TemplateMapping returns the mapping of one of the supplier's templates.
func (s *Service) TemplateMapping(ctx context.Context, scope Scope, templateID uuid.UUID) (FieldMapping, error) {
	templates, err := s.ListTemplates(ctx, scope)
	if err != nil {
		return FieldMapping{}, err
	}
	for _, t := range templates {
		if t.ID == templateID {
			return t.Mapping(), nil
		}
	}
	return FieldMapping{}, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
}

// priceOutcomes evaluates every created or updated product and writes the
// decisions back when apply is set or the organization auto-applies.
func (s *Service) priceOutcomes(ctx context.Context, organizationID uuid.UUID, outcomes []RecordOutcome, apply bool) ([]PricedProduct, error) {
	rules, err := s.store.ListPricingRules(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list pricing rules: %w", err)
	}
	settings, err := s.PricingSettings(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	apply = apply || settings.AutoApply

	priced := []PricedProduct{}
	pricedAt := s.now().UTC()
	var errs []error
	for _, out := range outcomes {
		if out.Action != ActionCreated && out.Action != ActionUpdated {
			continue
		}
		d := s.evaluator.Evaluate(PricingInput{
			ProductID:     out.ProductID,
			Category:      out.Category,
			Brand:         out.Brand,
			Cost:          out.Cost,
			PreviousPrice: out.PreviousSellingPrice,
		}, rules, settings)

		p := PricedProduct{ProductID: out.ProductID, SKU: out.SKU, Decision: d}
		if apply {
			if err := s.store.SaveProductPricing(ctx, out.ProductID, d, pricedAt); err != nil {
				errs = append(errs, fmt.Errorf("save pricing for %s: %w", out.SKU, err))
			} else {
				p.Applied = true
			}
		}
		priced = append(priced, p)
	}
	return priced, errors.Join(errs...)
}

func runMessage(run IngestionRun) string {
	switch run.Status {
	case RunRejected:
		return fmt.Sprintf("rejected: %d of %d rows have errors", run.ErrorRows, run.TotalRows)
	case RunFailed:
		return "failed: " + run.Error
	}
	return fmt.Sprintf("%d created, %d updated, %d unchanged, %d failed", run.Created, run.Updated, run.Unchanged, run.Failed)
}

// ListRuns returns the supplier's most recent ingestion runs.
func (s *Service) ListRuns(ctx context.Context, scope Scope, limit int) ([]IngestionRun, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}
	runs, err := s.store.ListRuns(ctx, scope, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetProduct returns a supplier product owned by organizationID.
func (s *Service) GetProduct(ctx context.Context, organizationID, productID uuid.UUID) (SupplierProduct, error) {
	p, err := s.store.GetSupplierProduct(ctx, organizationID, productID)
	if err != nil {
		return SupplierProduct{}, fmt.Errorf("get product %s: %w", productID, err)
	}
	return p, nil
}

// PriceAt returns the ledger row that was effective for the product at t.
func (s *Service) PriceAt(ctx context.Context, organizationID, productID uuid.UUID, at time.Time) (PriceRecord, error) {
	if _, err := s.GetProduct(ctx, organizationID, productID); err != nil {
		return PriceRecord{}, err
	}
	rec, err := s.store.PriceAt(ctx, productID, at)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("price at %s: %w", at.Format(time.RFC3339), err)
	}
	return rec, nil
}

// PriceHistory returns the product's full price ledger, oldest first.
func (s *Service) PriceHistory(ctx context.Context, organizationID, productID uuid.UUID) ([]PriceRecord, error) {
	if _, err := s.GetProduct(ctx, organizationID, productID); err != nil {
		return nil, err
	}
	history, err := s.store.ListPriceHistory(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	return history, nil
}

// ListPricingRules returns the organization's rules.
func (s *Service) ListPricingRules(ctx context.Context, organizationID uuid.UUID) ([]PricingRule, error) {
	rules, err := s.store.ListPricingRules(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list pricing rules: %w", err)
	}
	return rules, nil
}

// CreatePricingRule validates and stores a rule for organizationID.
func (s *Service) CreatePricingRule(ctx context.Context, organizationID uuid.UUID, rule PricingRule) (PricingRule, error) {
	rule.ID = uuid.Nil
	rule.OrganizationID = organizationID
	if rule.AppliesTo == "" {
		rule.AppliesTo = ScopeAll
	}
	if err := ValidateRule(rule); err != nil {
		return PricingRule{}, err
	}
	rule.CreatedAt = s.now().UTC()
	created, err := s.store.CreatePricingRule(ctx, rule)
	if err != nil {
		return PricingRule{}, fmt.Errorf("create pricing rule: %w", err)
	}
	return created, nil
}

// DeletePricingRule removes a rule owned by organizationID.
func (s *Service) DeletePricingRule(ctx context.Context, organizationID, ruleID uuid.UUID) error {
	if err := s.store.DeletePricingRule(ctx, organizationID, ruleID); err != nil {
		return fmt.Errorf("delete pricing rule: %w", err)
	}
	return nil
}

// PricingSettings returns the organization's settings, or the configured
// defaults when none are stored.
func (s *Service) PricingSettings(ctx context.Context, organizationID uuid.UUID) (PricingSettings, error) {
	settings, err := s.store.GetPricingSettings(ctx, organizationID)
	if errors.Is(err, ErrNotFound) {
		return PricingSettings{
			OrganizationID:   organizationID,
			DefaultMarginPct: s.cfg.DefaultMarginPct,
			MinMarginPct:     s.cfg.MinMarginPct,
		}, nil
	}
	if err != nil {
		return PricingSettings{}, fmt.Errorf("get pricing settings: %w", err)
	}
	return settings, nil
}

// SavePricingSettings validates and stores the organization's settings.
func (s *Service) SavePricingSettings(ctx context.Context, organizationID uuid.UUID, settings PricingSettings) (PricingSettings, error) {
	settings.OrganizationID = organizationID
	if err := ValidateSettings(settings); err != nil {
		return PricingSettings{}, err
	}
	saved, err := s.store.SavePricingSettings(ctx, settings)
	if err != nil {
		return PricingSettings{}, fmt.Errorf("save pricing settings: %w", err)
	}
	return saved, nil
}

// EvaluatePrice prices in against the organization's current configuration
// without persisting anything.
func (s *Service) EvaluatePrice(ctx context.Context, organizationID uuid.UUID, in PricingInput) (PriceDecision, error) {
	rules, err := s.ListPricingRules(ctx, organizationID)
	if err != nil {
		return PriceDecision{}, err
	}
	settings, err := s.PricingSettings(ctx, organizationID)
	if err != nil {
		return PriceDecision{}, err
	}
	return s.evaluator.Evaluate(in, rules, settings), nil
}

// IngestLimiterStatus reports the ingest slots in use.
func (s *Service) IngestLimiterStatus() IngestLimiterStatus {
	return s.limiter.Status()
}

// WaitForIngests blocks until in-flight ingests finish or ctx ends.
func (s *Service) WaitForIngests(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
