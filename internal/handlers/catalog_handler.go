package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/interfaces"
)

// CatalogHandler serves the company catalog and the industry registry.
type CatalogHandler struct {
	companies  interfaces.CompanyStorage
	industries interfaces.IndustryService
	logger     arbor.ILogger
}

// NewCatalogHandler creates the catalog handler.
func NewCatalogHandler(companies interfaces.CompanyStorage, industries interfaces.IndustryService, logger arbor.ILogger) *CatalogHandler {
	return &CatalogHandler{companies: companies, industries: industries, logger: logger}
}

// CompaniesHandler serves GET /api/companies, optionally scoped with
// ?industry=.
func (h *CatalogHandler) CompaniesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	industry := r.URL.Query().Get("industry")

	var err error
	companies := []interface{}{}
	if industry != "" {
		list, listErr := h.companies.ListCompaniesByIndustry(r.Context(), industry)
		err = listErr
		for _, c := range list {
			companies = append(companies, c)
		}
	} else {
		list, listErr := h.companies.ListCompanies(r.Context())
		err = listErr
		for _, c := range list {
			companies = append(companies, c)
		}
	}
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(companies),
		"companies": companies,
	})
}

// IndustriesHandler serves GET /api/industries.
func (h *CatalogHandler) IndustriesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	profiles := h.industries.ListProfiles()
	type industryEntry struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	entries := make([]industryEntry, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, industryEntry{Code: p.Code, Name: p.Name})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(entries),
		"industries": entries,
	})
}
