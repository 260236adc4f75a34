package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/pricelist/internal/core"
	"github.com/JonMunkholm/pricelist/internal/sheet"
)

const (
	// multipartOverhead covers boundaries and the small form fields next to the file.
	multipartOverhead = 1 << 20
	// maxFormMemory is kept in memory before multipart spills to disk.
	maxFormMemory = 32 << 20
)

// uploadOptions are the form fields that accompany an uploaded pricelist.
type uploadOptions struct {
	mapping       *core.FieldMapping
	templateID    uuid.UUID
	mode          core.MergeMode
	location      string
	acceptPartial bool
	applyPricing  bool
}

// ValidateResponse is the dry-run result of validating an upload.
type ValidateResponse struct {
	FileName string                `json:"fileName"`
	Mapping  core.FieldMapping     `json:"mapping"`
	Report   core.ValidationReport `json:"report"`
}

// IngestResponse is the ingest result, with the mapped error when the
// pipeline stopped short.
type IngestResponse struct {
	core.IngestResult
	Error *ErrorResponse `json:"error,omitempty"`
}

// readUpload decodes the multipart "file" field into a Table.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (core.Table, string, error) {
	maxSize := int64(s.cfg.Ingest.MaxFileSize)
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return core.Table{}, "", fmt.Errorf("%w: limit is %s", sheet.ErrFileTooLarge, s.cfg.Ingest.MaxFileSize)
		}
		return core.Table{}, "", fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.Table{}, "", errNoFile
	}
	defer file.Close()

	table, err := sheet.Read(file, header.Filename, maxSize)
	if err != nil {
		return core.Table{}, header.Filename, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return table, header.Filename, nil
}

// parseUploadOptions reads the optional form fields. Call after readUpload.
func parseUploadOptions(r *http.Request) (uploadOptions, error) {
	var opts uploadOptions

	if raw := r.FormValue("mapping"); raw != "" {
		var cols map[core.CanonicalField]string
		if err := json.Unmarshal([]byte(raw), &cols); err != nil {
			return opts, fmt.Errorf("%w: mapping must be a JSON object of field to header", errInvalidRequest)
		}
		opts.mapping = &core.FieldMapping{Columns: cols, Confidence: 1}
	}

	if raw := r.FormValue("template_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: template_id is not a UUID", errInvalidRequest)
		}
		opts.templateID = id
	}

	// empty keeps the configured default
	if raw := r.FormValue("mode"); raw != "" {
		mode, err := core.ParseMergeMode(strings.ToLower(raw))
		if err != nil {
			return opts, fmt.Errorf("%w: %v", errInvalidRequest, err)
		}
		opts.mode = mode
	}

	var err error
	if opts.acceptPartial, err = formBool(r, "accept_partial"); err != nil {
		return opts, err
	}
	if opts.applyPricing, err = formBool(r, "apply_pricing"); err != nil {
		return opts, err
	}
	opts.location = strings.TrimSpace(r.FormValue("location"))
	return opts, nil
}

func formBool(r *http.Request, name string) (bool, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", errInvalidRequest, name)
	}
	return b, nil
}

// handleValidate maps and validates an upload without touching the catalog.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	scope, err := supplierScope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	table, fileName, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	opts, err := parseUploadOptions(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if opts.mapping == nil && opts.templateID != uuid.Nil {
		m, err := s.service.TemplateMapping(r.Context(), scope, opts.templateID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		opts.mapping = &m
	}

	report, mapping, err := s.service.Validate(r.Context(), table, opts.mapping)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, ValidateResponse{
		FileName: fileName,
		Mapping:  mapping,
		Report:   report,
	})
}

// handleIngest runs the full pipeline for an uploaded pricelist.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	scope, err := supplierScope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	table, fileName, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	opts, err := parseUploadOptions(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.Ingest(r.Context(), core.IngestRequest{
		Scope:         scope,
		FileName:      fileName,
		Table:         table,
		Mapping:       opts.mapping,
		TemplateID:    opts.templateID,
		Mode:          opts.mode,
		Location:      opts.location,
		AcceptPartial: opts.acceptPartial,
		ApplyPricing:  opts.applyPricing,
	})
	if err != nil {
		// No run recorded: nothing beyond the error to report.
		if result.Run.ID == uuid.Nil {
			respondError(w, r, err)
			return
		}
		resp := newErrorResponse(err)
		status := statusFor(err)
		logRequestError(r, status, err, resp.Code)
		writeJSON(w, r, status, IngestResponse{IngestResult: result, Error: &resp})
		return
	}

	writeJSON(w, r, http.StatusOK, IngestResponse{IngestResult: result})
}
