package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/interfaces"
)

const defaultSearchTopK = 5

// SearchHandler answers semantic queries against the ingested filings.
type SearchHandler struct {
	retrieval interfaces.RetrievalService
	logger    arbor.ILogger
}

// NewSearchHandler creates the search handler.
func NewSearchHandler(retrieval interfaces.RetrievalService, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{retrieval: retrieval, logger: logger}
}

type searchRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
	CompanyName  string `json:"company_name"`
	CompanyCode  string `json:"company_code"`
	ReportPeriod string `json:"report_period"`
	ChunkType    string `json:"chunk_type"`
}

// SearchHandler serves POST /api/search.
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req searchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		WriteError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = defaultSearchTopK
	}

	var filter *interfaces.SearchFilter
	if req.CompanyName != "" || req.CompanyCode != "" || req.ReportPeriod != "" || req.ChunkType != "" {
		filter = &interfaces.SearchFilter{
			CompanyName:  req.CompanyName,
			CompanyCode:  req.CompanyCode,
			ReportPeriod: req.ReportPeriod,
			ChunkType:    req.ChunkType,
		}
	}

	hits, err := h.retrieval.Search(r.Context(), req.Query, req.TopK, filter)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query": req.Query,
		"count": len(hits),
		"hits":  hits,
	})
}
