package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/pricelist/internal/core"
)

// maxJSONBody bounds non-upload request bodies.
const maxJSONBody = 1 << 20

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngestStatus returns the current state of the ingest limiter.
func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.IngestLimiterStatus())
}

// handleSuggestMapping infers a field mapping for the posted headers.
func (s *Server) handleSuggestMapping(w http.ResponseWriter, r *http.Request) {
	scope, err := supplierScope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req struct {
		Headers []string `json:"headers"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if len(req.Headers) == 0 {
		respondError(w, r, fmt.Errorf("%w: headers are required", errInvalidRequest))
		return
	}

	suggestion, err := s.service.SuggestMapping(r.Context(), scope, req.Headers)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, suggestion)
}

// handleListFields lists the canonical fields a mapping can target.
func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Fields())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	scope, err := supplierScope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			respondError(w, r, fmt.Errorf("%w: limit must be a positive integer", errInvalidRequest))
			return
		}
	}

	runs, err := s.service.ListRuns(r.Context(), scope, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, runs)
}

// handleSweep runs both lifecycle sweeps for the supplier now.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	scope, err := supplierScope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.RunSweeps(r.Context(), scope)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuidParam(r, "productID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	product, err := s.service.GetProduct(r.Context(), organization(r), productID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, product)
}

// handlePriceAt returns the price effective at ?at (RFC3339, default now).
func (s *Server) handlePriceAt(w http.ResponseWriter, r *http.Request) {
	productID, err := uuidParam(r, "productID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, r, fmt.Errorf("%w: at must be RFC3339", errInvalidRequest))
			return
		}
	}

	rec, err := s.service.PriceAt(r.Context(), organization(r), productID, at)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	productID, err := uuidParam(r, "productID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	history, err := s.service.PriceHistory(r.Context(), organization(r), productID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, history)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.service.ListPricingRules(r.Context(), organization(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rules)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule core.PricingRule
	if err := decodeJSON(w, r, &rule); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.service.CreatePricingRule(r.Context(), organization(r), rule)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := uuidParam(r, "ruleID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.service.DeletePricingRule(r.Context(), organization(r), ruleID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.PricingSettings(r.Context(), organization(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.PricingSettings
	if err := decodeJSON(w, r, &settings); err != nil {
		respondError(w, r, err)
		return
	}

	saved, err := s.service.SavePricingSettings(r.Context(), organization(r), settings)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}

// handleEvaluate prices a hypothetical product without persisting anything.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var in core.PricingInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	if in.Cost.IsNegative() {
		respondError(w, r, fmt.Errorf("%w: cost must not be negative", errInvalidRequest))
		return
	}

	decision, err := s.service.EvaluatePrice(r.Context(), organization(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, decision)
}
