package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	db "github.com/JonMunkholm/pricelist/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// PgStore is the PostgreSQL Store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a store over pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

var _ Store = (*PgStore)(nil)

// notFound converts pgx.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// WithinTx runs fn in a transaction and commits when fn returns nil.
// Waiting for a connection honors ctx; commit and rollback do not, so a
// transaction that began always ends.
func (s *PgStore) WithinTx(ctx context.Context, fn func(tx CatalogTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	endCtx := context.WithoutCancel(ctx)
	defer tx.Rollback(endCtx)

	if err := fn(&pgCatalogTx{tx: tx, q: db.New(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(endCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgCatalogTx struct {
	tx  pgx.Tx
	q   *db.Queries
	seq int
}

func (t *pgCatalogTx) GetSupplierProductForUpdate(ctx context.Context, scope Scope, sku string) (SupplierProduct, error) {
	row, err := t.q.GetSupplierProductForUpdate(ctx, db.GetSupplierProductForUpdateParams{
		OrganizationID: ToPgUUID(scope.OrganizationID),
		SupplierID:     ToPgUUID(scope.SupplierID),
		SupplierSku:    sku,
	})
	if err != nil {
		return SupplierProduct{}, notFound(err)
	}
	return productFromRow(row), nil
}

func (t *pgCatalogTx) InsertSupplierProduct(ctx context.Context, p SupplierProduct) error {
	return t.q.InsertSupplierProduct(ctx, db.InsertSupplierProductParams{
		ID:             ToPgUUID(p.ID),
		OrganizationID: ToPgUUID(p.OrganizationID),
		SupplierID:     ToPgUUID(p.SupplierID),
		SupplierSku:    p.SupplierSKU,
		NativeSku:      ToPgText(p.NativeSKU),
		Description:    p.Description,
		Brand:          p.Brand,
		Category:       p.Category,
		MinQty:         int32(p.MinQty),
		MaxQty:         pgMaxQty(p.MaxQty),
		LeadTimeDays:   int32(p.LeadTimeDays),
		TaxRate:        ToPgNumeric(p.TaxRate),
		Note:           ToPgText(p.Note),
		IsNew:          p.IsNew,
		IsActive:       p.IsActive,
		FirstSeenAt:    ToPgTimestamptz(p.FirstSeenAt),
		LastSeenAt:     ToPgTimestamptz(p.LastSeenAt),
		LastBatchID:    ToPgUUID(p.LastBatchID),
	})
}

func (t *pgCatalogTx) UpdateSupplierProduct(ctx context.Context, p SupplierProduct) error {
	n, err := t.q.UpdateSupplierProduct(ctx, db.UpdateSupplierProductParams{
		ID:           ToPgUUID(p.ID),
		NativeSku:    ToPgText(p.NativeSKU),
		Description:  p.Description,
		Brand:        p.Brand,
		Category:     p.Category,
		MinQty:       int32(p.MinQty),
		MaxQty:       pgMaxQty(p.MaxQty),
		LeadTimeDays: int32(p.LeadTimeDays),
		TaxRate:      ToPgNumeric(p.TaxRate),
		Note:         ToPgText(p.Note),
		IsActive:     p.IsActive,
		LastSeenAt:   ToPgTimestamptz(p.LastSeenAt),
		LastBatchID:  ToPgUUID(p.LastBatchID),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgCatalogTx) CurrentPrice(ctx context.Context, productID uuid.UUID) (PriceRecord, error) {
	row, err := t.q.GetCurrentPrice(ctx, ToPgUUID(productID))
	if err != nil {
		return PriceRecord{}, notFound(err)
	}
	return priceFromRow(row), nil
}

func (t *pgCatalogTx) ClosePrice(ctx context.Context, priceID uuid.UUID, validTo time.Time) error {
	n, err := t.q.ClosePrice(ctx, db.ClosePriceParams{
		ID:      ToPgUUID(priceID),
		ValidTo: ToPgTimestamptz(validTo),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgCatalogTx) InsertPrice(ctx context.Context, p PriceRecord) error {
	validTo := pgtype.Timestamptz{}
	if p.ValidTo != nil {
		validTo = ToPgTimestamptz(*p.ValidTo)
	}
	return t.q.InsertPrice(ctx, db.InsertPriceParams{
		ID:                ToPgUUID(p.ID),
		SupplierProductID: ToPgUUID(p.SupplierProductID),
		Price:             ToPgNumeric(p.Price),
		Currency:          p.Currency,
		ValidFrom:         ToPgTimestamptz(p.ValidFrom),
		ValidTo:           validTo,
		IsCurrent:         p.IsCurrent,
	})
}

func (t *pgCatalogTx) UpsertStock(ctx context.Context, productID uuid.UUID, location string, qty int, at time.Time) error {
	return t.q.UpsertStockLevel(ctx, db.UpsertStockLevelParams{
		SupplierProductID: ToPgUUID(productID),
		Location:          location,
		Quantity:          int32(qty),
		UpdatedAt:         ToPgTimestamptz(at),
	})
}

// Savepoint wraps fn in SAVEPOINT / ROLLBACK TO SAVEPOINT / RELEASE SAVEPOINT.
func (t *pgCatalogTx) Savepoint(ctx context.Context, fn func() error) error {
	t.seq++
	name := fmt.Sprintf("sp_%d", t.seq)

	if _, err := t.tx.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		return err
	}
	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (s *PgStore) GetSupplierProduct(ctx context.Context, organizationID, productID uuid.UUID) (SupplierProduct, error) {
	row, err := db.New(s.pool).GetSupplierProduct(ctx, db.GetSupplierProductParams{
		OrganizationID: ToPgUUID(organizationID),
		ID:             ToPgUUID(productID),
	})
	if err != nil {
		return SupplierProduct{}, notFound(err)
	}
	return productFromRow(row), nil
}

func (s *PgStore) ListPriceHistory(ctx context.Context, productID uuid.UUID) ([]PriceRecord, error) {
	rows, err := db.New(s.pool).ListPriceHistory(ctx, ToPgUUID(productID))
	if err != nil {
		return nil, err
	}
	out := make([]PriceRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, priceFromRow(r))
	}
	return out, nil
}

func (s *PgStore) PriceAt(ctx context.Context, productID uuid.UUID, at time.Time) (PriceRecord, error) {
	row, err := db.New(s.pool).GetPriceAt(ctx, db.GetPriceAtParams{
		SupplierProductID: ToPgUUID(productID),
		At:                ToPgTimestamptz(at),
	})
	if err != nil {
		return PriceRecord{}, notFound(err)
	}
	return priceFromRow(row), nil
}

func (s *PgStore) SaveProductPricing(ctx context.Context, productID uuid.UUID, d PriceDecision, at time.Time) error {
	ruleID := pgtype.UUID{}
	if d.RuleID != nil {
		ruleID = ToPgUUID(*d.RuleID)
	}
	n, err := db.New(s.pool).SetProductPricing(ctx, db.SetProductPricingParams{
		ID:                ToPgUUID(productID),
		SellingPrice:      ToPgNumeric(d.SellingPrice),
		MarginPct:         ToPgNumeric(d.MarginPct),
		PricingRuleID:     ruleID,
		PricingStrategy:   ToPgText(string(d.Strategy)),
		PricingConfidence: pgtype.Int4{Int32: int32(d.Confidence), Valid: true},
		PricingReasoning:  ToPgText(d.Reasoning),
		PricedAt:          ToPgTimestamptz(at),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// StockLevel returns the recorded quantity for a product at location.
func (s *PgStore) StockLevel(ctx context.Context, productID uuid.UUID, location string) (int, error) {
	row, err := db.New(s.pool).GetStockLevel(ctx, db.GetStockLevelParams{
		SupplierProductID: ToPgUUID(productID),
		Location:          location,
	})
	if err != nil {
		return 0, notFound(err)
	}
	return int(row.Quantity), nil
}

func (s *PgStore) ClearNewFlags(ctx context.Context, scope Scope, cutoff time.Time) (int64, error) {
	return db.New(s.pool).ClearNewFlags(ctx, db.ClearNewFlagsParams{
		OrganizationID: ToPgUUID(scope.OrganizationID),
		SupplierID:     ToPgUUID(scope.SupplierID),
		Cutoff:         ToPgTimestamptz(cutoff),
	})
}

func (s *PgStore) DeactivateUnseen(ctx context.Context, scope Scope, cutoff time.Time, excludeBatch uuid.UUID) (int64, error) {
	return db.New(s.pool).DeactivateUnseen(ctx, db.DeactivateUnseenParams{
		OrganizationID: ToPgUUID(scope.OrganizationID),
		SupplierID:     ToPgUUID(scope.SupplierID),
		Cutoff:         ToPgTimestamptz(cutoff),
		ExcludeBatch:   ToPgUUID(excludeBatch),
	})
}

func (s *PgStore) ListSupplierScopes(ctx context.Context) ([]Scope, error) {
	rows, err := db.New(s.pool).ListSupplierScopes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Scope, 0, len(rows))
	for _, r := range rows {
		out = append(out, Scope{OrganizationID: PgUUID(r.OrganizationID), SupplierID: PgUUID(r.SupplierID)})
	}
	return out, nil
}

func (s *PgStore) ListPricingRules(ctx context.Context, organizationID uuid.UUID) ([]PricingRule, error) {
	rows, err := db.New(s.pool).ListPricingRules(ctx, ToPgUUID(organizationID))
	if err != nil {
		return nil, err
	}
	out := make([]PricingRule, 0, len(rows))
	for _, r := range rows {
		out = append(out, ruleFromRow(r))
	}
	return out, nil
}

func (s *PgStore) CreatePricingRule(ctx context.Context, r PricingRule) (PricingRule, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	productIDs := make([]pgtype.UUID, 0, len(r.ProductIDs))
	for _, id := range r.ProductIDs {
		productIDs = append(productIDs, ToPgUUID(id))
	}
	row, err := db.New(s.pool).InsertPricingRule(ctx, db.InsertPricingRuleParams{
		ID:                  ToPgUUID(r.ID),
		OrganizationID:      ToPgUUID(r.OrganizationID),
		Name:                r.Name,
		Strategy:            string(r.Strategy),
		MinMarginPct:        ToPgNumeric(r.MinMarginPct),
		TargetMarginPct:     ToPgNumeric(r.TargetMarginPct),
		MaxPriceIncreasePct: ToPgNumericPtr(r.MaxPriceIncreasePct),
		Active:              r.Active,
		Priority:            int32(r.Priority),
		AppliesTo:           string(r.AppliesTo),
		ProductIds:          productIDs,
		Categories:          r.Categories,
		Brands:              r.Brands,
		CreatedAt:           ToPgTimestamptz(r.CreatedAt),
	})
	if err != nil {
		return PricingRule{}, err
	}
	return ruleFromRow(row), nil
}

func (s *PgStore) DeletePricingRule(ctx context.Context, organizationID, ruleID uuid.UUID) error {
	n, err := db.New(s.pool).DeletePricingRule(ctx, db.DeletePricingRuleParams{
		OrganizationID: ToPgUUID(organizationID),
		ID:             ToPgUUID(ruleID),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) GetPricingSettings(ctx context.Context, organizationID uuid.UUID) (PricingSettings, error) {
	row, err := db.New(s.pool).GetPricingSettings(ctx, ToPgUUID(organizationID))
	if err != nil {
		return PricingSettings{}, notFound(err)
	}
	return settingsFromRow(row), nil
}

func (s *PgStore) SavePricingSettings(ctx context.Context, ps PricingSettings) (PricingSettings, error) {
	row, err := db.New(s.pool).UpsertPricingSettings(ctx, db.UpsertPricingSettingsParams{
		OrganizationID:   ToPgUUID(ps.OrganizationID),
		DefaultMarginPct: ToPgNumeric(ps.DefaultMarginPct),
		MinMarginPct:     ToPgNumeric(ps.MinMarginPct),
		AutoApply:        ps.AutoApply,
	})
	if err != nil {
		return PricingSettings{}, err
	}
	return settingsFromRow(row), nil
}

func (s *PgStore) CreateTemplate(ctx context.Context, t MappingTemplate) (MappingTemplate, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	columns, err := json.Marshal(t.Columns)
	if err != nil {
		return MappingTemplate{}, fmt.Errorf("encode template columns: %w", err)
	}
	headers := t.Headers
	if headers == nil {
		headers = []string{}
	}

	row, err := db.New(s.pool).InsertMappingTemplate(ctx, db.InsertMappingTemplateParams{
		ID:             ToPgUUID(t.ID),
		OrganizationID: ToPgUUID(t.OrganizationID),
		SupplierID:     ToPgUUID(t.SupplierID),
		Name:           t.Name,
		Columns:        columns,
		Headers:        headers,
	})
	if isUniqueViolation(err) {
		return MappingTemplate{}, fmt.Errorf("%w: template %q already exists for this supplier", ErrDuplicateTemplate, t.Name)
	}
	if err != nil {
		return MappingTemplate{}, err
	}
	return templateFromRow(row)
}

func (s *PgStore) ListTemplates(ctx context.Context, scope Scope) ([]MappingTemplate, error) {
	rows, err := db.New(s.pool).ListMappingTemplates(ctx, db.ListMappingTemplatesParams{
		OrganizationID: ToPgUUID(scope.OrganizationID),
		SupplierID:     ToPgUUID(scope.SupplierID),
	})
	if err != nil {
		return nil, err
	}
	out := make([]MappingTemplate, 0, len(rows))
	for _, r := range rows {
		t, err := templateFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *PgStore) DeleteTemplate(ctx context.Context, organizationID, templateID uuid.UUID) error {
	n, err := db.New(s.pool).DeleteMappingTemplate(ctx, db.DeleteMappingTemplateParams{
		OrganizationID: ToPgUUID(organizationID),
		ID:             ToPgUUID(templateID),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) CreateRun(ctx context.Context, run IngestionRun) error {
	return db.New(s.pool).InsertIngestionRun(ctx, db.InsertIngestionRunParams{
		ID:             ToPgUUID(run.ID),
		OrganizationID: ToPgUUID(run.OrganizationID),
		SupplierID:     ToPgUUID(run.SupplierID),
		FileName:       run.FileName,
		Status:         string(run.Status),
		StartedAt:      ToPgTimestamptz(run.StartedAt),
	})
}

func (s *PgStore) FinishRun(ctx context.Context, run IngestionRun) error {
	finishedAt := pgtype.Timestamptz{}
	if run.FinishedAt != nil {
		finishedAt = ToPgTimestamptz(*run.FinishedAt)
	}
	n, err := db.New(s.pool).FinishIngestionRun(ctx, db.FinishIngestionRunParams{
		ID:                ToPgUUID(run.ID),
		Status:            string(run.Status),
		MappingConfidence: run.MappingConfidence,
		TotalRows:         int32(run.TotalRows),
		ValidRows:         int32(run.ValidRows),
		ErrorRows:         int32(run.ErrorRows),
		Created:           int32(run.Created),
		Updated:           int32(run.Updated),
		Unchanged:         int32(run.Unchanged),
		Failed:            int32(run.Failed),
		StoppedEarly:      run.StoppedEarly,
		Error:             ToPgText(run.Error),
		FinishedAt:        finishedAt,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) ListRuns(ctx context.Context, scope Scope, limit int) ([]IngestionRun, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}
	rows, err := db.New(s.pool).ListIngestionRuns(ctx, db.ListIngestionRunsParams{
		OrganizationID: ToPgUUID(scope.OrganizationID),
		SupplierID:     ToPgUUID(scope.SupplierID),
		Limit:          int32(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]IngestionRun, 0, len(rows))
	for _, r := range rows {
		out = append(out, IngestionRun{
			ID:                PgUUID(r.ID),
			OrganizationID:    PgUUID(r.OrganizationID),
			SupplierID:        PgUUID(r.SupplierID),
			FileName:          r.FileName,
			Status:            RunStatus(r.Status),
			MappingConfidence: r.MappingConfidence,
			TotalRows:         int(r.TotalRows),
			ValidRows:         int(r.ValidRows),
			ErrorRows:         int(r.ErrorRows),
			Created:           int(r.Created),
			Updated:           int(r.Updated),
			Unchanged:         int(r.Unchanged),
			Failed:            int(r.Failed),
			StoppedEarly:      r.StoppedEarly,
			Error:             PgTextToString(r.Error),
			StartedAt:         r.StartedAt.Time,
			FinishedAt:        PgTimestamptzPtr(r.FinishedAt),
		})
	}
	return out, nil
}

// pgMaxQty stores "no maximum" as NULL.
func pgMaxQty(v int) pgtype.Int4 {
	if v <= 0 {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(v), Valid: true}
}

func productFromRow(r db.SupplierProduct) SupplierProduct {
	p := SupplierProduct{
		ID:             PgUUID(r.ID),
		OrganizationID: PgUUID(r.OrganizationID),
		SupplierID:     PgUUID(r.SupplierID),
		SupplierSKU:    r.SupplierSku,
		NativeSKU:      PgTextToString(r.NativeSku),
		Description:    r.Description,
		Brand:          r.Brand,
		Category:       r.Category,
		MinQty:         int(r.MinQty),
		LeadTimeDays:   int(r.LeadTimeDays),
		TaxRate:        PgNumericToDecimal(r.TaxRate),
		Note:           PgTextToString(r.Note),
		IsNew:          r.IsNew,
		IsActive:       r.IsActive,
		FirstSeenAt:    r.FirstSeenAt.Time,
		LastSeenAt:     r.LastSeenAt.Time,
		LastBatchID:    PgUUID(r.LastBatchID),
		PricedAt:       PgTimestamptzPtr(r.PricedAt),
	}
	if r.MaxQty.Valid {
		p.MaxQty = int(r.MaxQty.Int32)
	}
	if r.SellingPrice.Valid {
		d := PriceDecision{
			SellingPrice: PgNumericToDecimal(r.SellingPrice),
			MarginPct:    PgNumericToDecimal(r.MarginPct),
			Strategy:     PricingStrategy(PgTextToString(r.PricingStrategy)),
			Confidence:   int(r.PricingConfidence.Int32),
			Reasoning:    PgTextToString(r.PricingReasoning),
		}
		if r.PricingRuleID.Valid {
			id := PgUUID(r.PricingRuleID)
			d.RuleID = &id
		}
		p.Pricing = &d
	}
	return p
}

func priceFromRow(r db.PriceHistory) PriceRecord {
	return PriceRecord{
		ID:                PgUUID(r.ID),
		SupplierProductID: PgUUID(r.SupplierProductID),
		Price:             PgNumericToDecimal(r.Price),
		Currency:          r.Currency,
		ValidFrom:         r.ValidFrom.Time,
		ValidTo:           PgTimestamptzPtr(r.ValidTo),
		IsCurrent:         r.IsCurrent,
	}
}

func ruleFromRow(r db.PricingRule) PricingRule {
	rule := PricingRule{
		ID:              PgUUID(r.ID),
		OrganizationID:  PgUUID(r.OrganizationID),
		Name:            r.Name,
		Strategy:        PricingStrategy(r.Strategy),
		MinMarginPct:    PgNumericToDecimal(r.MinMarginPct),
		TargetMarginPct: PgNumericToDecimal(r.TargetMarginPct),
		Active:          r.Active,
		Priority:        int(r.Priority),
		AppliesTo:       RuleScope(r.AppliesTo),
		Categories:      r.Categories,
		Brands:          r.Brands,
		CreatedAt:       r.CreatedAt.Time,
	}
	if r.MaxPriceIncreasePct.Valid {
		v := PgNumericToDecimal(r.MaxPriceIncreasePct)
		rule.MaxPriceIncreasePct = &v
	}
	for _, id := range r.ProductIds {
		rule.ProductIDs = append(rule.ProductIDs, PgUUID(id))
	}
	return rule
}

func settingsFromRow(r db.PricingSetting) PricingSettings {
	return PricingSettings{
		OrganizationID:   PgUUID(r.OrganizationID),
		DefaultMarginPct: PgNumericToDecimal(r.DefaultMarginPct),
		MinMarginPct:     PgNumericToDecimal(r.MinMarginPct),
		AutoApply:        r.AutoApply,
		UpdatedAt:        r.UpdatedAt.Time,
	}
}

func templateFromRow(r db.MappingTemplate) (MappingTemplate, error) {
	t := MappingTemplate{
		ID:             PgUUID(r.ID),
		OrganizationID: PgUUID(r.OrganizationID),
		SupplierID:     PgUUID(r.SupplierID),
		Name:           r.Name,
		Headers:        r.Headers,
		CreatedAt:      r.CreatedAt.Time,
		UpdatedAt:      r.UpdatedAt.Time,
	}
	if err := json.Unmarshal(r.Columns, &t.Columns); err != nil {
		return MappingTemplate{}, fmt.Errorf("decode template %s columns: %w", t.ID, err)
	}
	return t, nil
}
