package core

// mapper.go infers which source column feeds each canonical field.
//
// Every normalized header is scored against every field's patterns:
//
//	exact match               1.0
//	header contains pattern   0.9
//	pattern contains header   0.8
//	edit-distance similarity  similarity * 0.7 (only when similarity > 0.7)
//
// Candidates above MinFieldScore are assigned greedily, best score first, so
// a header feeds at most one field and each field keeps the best header still
// available. The result is a pure function of the headers.

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MinFieldScore is the score a header must exceed to be mapped to a field.
	MinFieldScore = 0.3

	// LowConfidenceThreshold triggers a manual review caveat.
	LowConfidenceThreshold = 0.7

	// fuzzySimilarityFloor is the similarity a fuzzy match must exceed.
	fuzzySimilarityFloor = 0.7
	fuzzyScale           = 0.7

	// unmappedColumnRatio is the share of unmapped source columns that triggers a caveat.
	unmappedColumnRatio = 0.5
)

// FieldMapping assigns at most one source column to each canonical field.
// Columns holds source header names exactly as they appear in the table.
type FieldMapping struct {
	Columns    map[CanonicalField]string  `json:"columns"`
	Scores     map[CanonicalField]float64 `json:"scores,omitempty"`
	Confidence float64                    `json:"confidence"`
	Caveats    []string                   `json:"caveats,omitempty"`
}

// Column returns the source header mapped to f.
func (m FieldMapping) Column(f CanonicalField) (string, bool) {
	col, ok := m.Columns[f]
	return col, ok && col != ""
}

// FieldMapper infers a FieldMapping from header strings.
//
// Headers are claimed exclusively: once the highest scoring pair takes a
// header, fields that also matched it fall back to their next best header,
// or stay unmapped. Two fields never share a source column, even when the
// same header is the best match for both.
type FieldMapper struct {
	catalog *FieldCatalog
}

// NewFieldMapper creates a mapper over the given catalog.
// A nil catalog uses DefaultFieldCatalog.
func NewFieldMapper(catalog *FieldCatalog) *FieldMapper {
	if catalog == nil {
		catalog = DefaultFieldCatalog
	}
	return &FieldMapper{catalog: catalog}
}

type mappingCandidate struct {
	field  CanonicalField
	rank   int
	header int
	score  float64
}

// Map scores headers against the catalog and returns the inferred mapping.
func (m *FieldMapper) Map(headers []string) FieldMapping {
	normalized := make([]string, len(headers))
	nonEmpty := 0
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
		if normalized[i] != "" {
			nonEmpty++
		}
	}

	defs := m.catalog.All()
	var candidates []mappingCandidate
	for rank, def := range defs {
		for i, h := range normalized {
			if h == "" {
				continue
			}
			best := 0.0
			for _, p := range def.Patterns {
				if s := scoreHeader(h, p); s > best {
					best = s
				}
			}
			if best > MinFieldScore {
				candidates = append(candidates, mappingCandidate{field: def.Field, rank: rank, header: i, score: best})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.header < b.header
	})

	result := FieldMapping{
		Columns: make(map[CanonicalField]string),
		Scores:  make(map[CanonicalField]float64),
	}
	claimed := make(map[int]bool)
	for _, c := range candidates {
		if _, done := result.Columns[c.field]; done || claimed[c.header] {
			continue
		}
		result.Columns[c.field] = headers[c.header]
		result.Scores[c.field] = c.score
		claimed[c.header] = true
	}

	var weighted, totalWeight float64
	for _, def := range defs {
		score, ok := result.Scores[def.Field]
		if !ok {
			if def.Required {
				result.Caveats = append(result.Caveats,
					fmt.Sprintf("required field %q (%s) could not be matched to any column", def.Field, def.Label))
			}
			continue
		}
		weighted += def.Weight * score
		totalWeight += def.Weight
	}
	if totalWeight > 0 {
		result.Confidence = weighted / totalWeight
	}

	if result.Confidence < LowConfidenceThreshold {
		result.Caveats = append(result.Caveats,
			fmt.Sprintf("mapping confidence is low (%.0f%%); review the suggested columns before importing", result.Confidence*100))
	}

	var unmapped []string
	for i, h := range normalized {
		if h != "" && !claimed[i] {
			unmapped = append(unmapped, headers[i])
		}
	}
	if nonEmpty > 0 && float64(len(unmapped))/float64(nonEmpty) > unmappedColumnRatio {
		result.Caveats = append(result.Caveats,
			fmt.Sprintf("%d of %d columns were not mapped (%s); check for renamed fields", len(unmapped), nonEmpty, strings.Join(unmapped, ", ")))
	}

	return result
}

// scoreHeader scores one normalized header against one pattern.
func scoreHeader(header, pattern string) float64 {
	switch {
	case header == pattern:
		return 1.0
	case strings.Contains(header, pattern):
		return 0.9
	case strings.Contains(pattern, header):
		return 0.8
	}
	if sim := similarity(header, pattern); sim > fuzzySimilarityFloor {
		return sim * fuzzyScale
	}
	return 0
}

// similarity is 1 - editDistance/maxLen, measured in runes.
func similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// NormalizeHeader lowercases a header, folds accents and collapses every run
// of non-alphanumeric characters into a single underscore.
// "Unit Cost ($)" becomes "unit_cost".
func NormalizeHeader(h string) string {
	// Chains carry state, so each call builds its own.
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, h)
	if err != nil {
		folded = h
	}
	folded = strings.ToLower(strings.TrimSpace(CleanCell(folded)))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
