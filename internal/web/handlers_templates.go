package web

import (
	"net/http"

	"github.com/JonMunkholm/pricelist/internal/core"
)

// handleListTemplates returns the supplier's saved mapping templates.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	scope, err := supplierScope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	templates, err := s.service.ListTemplates(r.Context(), scope)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, templates)
}

// handleCreateTemplate saves a named mapping for the supplier.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	scope, err := supplierScope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req struct {
		Name    string                         `json:"name"`
		Columns map[core.CanonicalField]string `json:"columns"`
		Headers []string                       `json:"headers"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	tmpl, err := s.service.CreateTemplate(r.Context(), scope, req.Name, req.Columns, req.Headers)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, tmpl)
}

// handleDeleteTemplate removes a template owned by the organization.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := uuidParam(r, "templateID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.service.DeleteTemplate(r.Context(), organization(r), templateID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
