package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/interfaces"
)

// IngestHandler exposes the chunk -> embed -> store pipeline.
type IngestHandler struct {
	ingestion interfaces.IngestionService
	logger    arbor.ILogger
}

// NewIngestHandler creates the ingest handler.
func NewIngestHandler(ingestion interfaces.IngestionService, logger arbor.ILogger) *IngestHandler {
	return &IngestHandler{ingestion: ingestion, logger: logger}
}

type ingestRequest struct {
	MarkdownPath string `json:"markdown_path"`
	MarkdownText string `json:"markdown_text"`
	CompanyName  string `json:"company_name"`
	CompanyCode  string `json:"company_code"`
	ReportPeriod string `json:"report_period"`
}

func (req ingestRequest) toService() interfaces.IngestRequest {
	return interfaces.IngestRequest{
		CompanyName:  req.CompanyName,
		CompanyCode:  req.CompanyCode,
		ReportPeriod: req.ReportPeriod,
		FilePath:     req.MarkdownPath,
		Content:      req.MarkdownText,
	}
}

// IngestHandler serves POST /api/ingest.
func (h *IngestHandler) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ingestRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	record, err := h.ingestion.IngestReport(r.Context(), req.toService())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// BatchIngestHandler serves POST /api/ingest/batch.
func (h *IngestHandler) BatchIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var manifest []ingestRequest
	if !DecodeJSON(w, r, &manifest) {
		return
	}
	if len(manifest) == 0 {
		WriteError(w, http.StatusBadRequest, "manifest is empty")
		return
	}

	reqs := make([]interfaces.IngestRequest, len(manifest))
	for i, item := range manifest {
		reqs[i] = item.toService()
	}

	results := h.ingestion.BatchIngest(r.Context(), reqs)

	succeeded := 0
	for _, item := range results {
		if item.Success {
			succeeded++
		}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"results":   results,
	})
}

// DeleteChunksHandler serves DELETE /api/reports/{report_id}/chunks.
func (h *IngestHandler) DeleteChunksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	reportID := strings.TrimSuffix(path, "/chunks")
	if reportID == "" || reportID == path {
		WriteError(w, http.StatusBadRequest, "report_id is required")
		return
	}

	deleted, err := h.ingestion.DeleteReport(r.Context(), reportID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"report_id": reportID,
		"deleted":   deleted,
	})
}

// StatsHandler serves GET /api/ingest/stats.
func (h *IngestHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.ingestion.Stats(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
