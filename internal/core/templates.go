package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TemplateMatchThreshold is the minimum share of a template's headers that
// must appear in an upload for the template to be suggested.
const TemplateMatchThreshold = 0.7

// ErrDuplicateTemplate is returned when a supplier already has a template
// with the same name.
var ErrDuplicateTemplate = errors.New("duplicate template name")

// ErrInvalidTemplate wraps rejected template definitions.
var ErrInvalidTemplate = errors.New("invalid template")

// MappingTemplate is a saved column mapping for one supplier's pricelists.
type MappingTemplate struct {
	ID             uuid.UUID                 `json:"id"`
	OrganizationID uuid.UUID                 `json:"organizationId"`
	SupplierID     uuid.UUID                 `json:"supplierId"`
	Name           string                    `json:"name"`
	Columns        map[CanonicalField]string `json:"columns"`
	Headers        []string                  `json:"headers"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
}

// Mapping returns the template as a FieldMapping with full confidence.
func (t MappingTemplate) Mapping() FieldMapping {
	cols := make(map[CanonicalField]string, len(t.Columns))
	for f, c := range t.Columns {
		cols[f] = c
	}
	return FieldMapping{Columns: cols, Confidence: 1}
}

// TemplateMatch is a template whose headers overlap an upload's headers.
type TemplateMatch struct {
	Template   MappingTemplate `json:"template"`
	MatchScore float64         `json:"matchScore"`
}

// CreateTemplate saves a named mapping for scope's supplier.
func (s *Service) CreateTemplate(ctx context.Context, scope Scope, name string, columns map[CanonicalField]string, headers []string) (MappingTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return MappingTemplate{}, fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if len(columns) == 0 {
		return MappingTemplate{}, fmt.Errorf("%w: mapping is empty", ErrInvalidTemplate)
	}
	for f := range columns {
		if _, ok := s.catalog.Get(f); !ok {
			return MappingTemplate{}, fmt.Errorf("%w: unknown field %q", ErrInvalidTemplate, f)
		}
	}

	t, err := s.store.CreateTemplate(ctx, MappingTemplate{
		OrganizationID: scope.OrganizationID,
		SupplierID:     scope.SupplierID,
		Name:           name,
		Columns:        columns,
		Headers:        headers,
	})
	if err != nil {
		return MappingTemplate{}, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// ListTemplates returns the supplier's templates ordered by name.
func (s *Service) ListTemplates(ctx context.Context, scope Scope) ([]MappingTemplate, error) {
	templates, err := s.store.ListTemplates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// DeleteTemplate removes a template owned by organizationID.
func (s *Service) DeleteTemplate(ctx context.Context, organizationID, templateID uuid.UUID) error {
	if err := s.store.DeleteTemplate(ctx, organizationID, templateID); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// MatchTemplates finds the supplier's templates that fit headers.
func (s *Service) MatchTemplates(ctx context.Context, scope Scope, headers []string) ([]TemplateMatch, error) {
	templates, err := s.ListTemplates(ctx, scope)
	if err != nil {
		return nil, err
	}

	matches := []TemplateMatch{}
	for _, t := range templates {
		score := matchTemplateHeaders(headers, t.Headers)
		if score >= TemplateMatchThreshold {
			matches = append(matches, TemplateMatch{Template: t, MatchScore: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches, nil
}

// matchTemplateHeaders returns the share of template headers present in headers.
func matchTemplateHeaders(headers, templateHeaders []string) float64 {
	if len(templateHeaders) == 0 {
		return 0
	}

	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[strings.ToLower(CleanCell(h))] = true
	}

	matched := 0
	for _, h := range templateHeaders {
		if set[strings.ToLower(CleanCell(h))] {
			matched++
		}
	}
	return float64(matched) / float64(len(templateHeaders))
}
