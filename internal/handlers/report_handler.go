package handlers

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/interfaces"
)

const defaultRunsLimit = 20

// ReportHandler exposes report generation, the run registry, and the
// report archive.
type ReportHandler struct {
	reports interfaces.ReportService
	logger  arbor.ILogger
}

// NewReportHandler creates the report handler.
func NewReportHandler(reports interfaces.ReportService, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// GenerateHandler serves POST /api/reports/generate. With ?wait=true the
// workflow runs synchronously and the full envelope is returned; otherwise
// the run record is returned immediately.
func (h *ReportHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req interfaces.ReportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		result, err := h.reports.GenerateReport(r.Context(), req)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
		return
	}

	run, err := h.reports.StartRun(r.Context(), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, run)
}

// RunsHandler serves GET /api/runs and GET /api/runs/{run_id}.
func (h *ReportHandler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs"), "/")
	if runID == "" {
		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		runs, err := h.reports.ListRuns(r.Context(), limit)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"count": len(runs), "runs": runs})
		return
	}

	run, err := h.reports.GetRun(r.Context(), runID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// ListReportsHandler serves GET /api/reports, optionally scoped with
// ?company_code=.
func (h *ReportHandler) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	reports, err := h.reports.ListReports(r.Context(), r.URL.Query().Get("company_code"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"count": len(reports), "reports": reports})
}

// ReportHandler routes /api/reports/{report_id} and its subresources.
func (h *ReportHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/reports"), "/")
	if path == "" {
		h.ListReportsHandler(w, r)
		return
	}

	if strings.HasSuffix(path, "/pdf") {
		h.exportPDF(w, r, strings.TrimSuffix(path, "/pdf"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		report, err := h.reports.GetReport(r.Context(), path)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
	case http.MethodDelete:
		if err := h.reports.DeleteReport(r.Context(), path); err != nil {
			WriteAppError(w, err)
			return
		}
		WriteSuccess(w, "report deleted")
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// exportPDF serves GET /api/reports/{report_id}/pdf.
func (h *ReportHandler) exportPDF(w http.ResponseWriter, r *http.Request, reportID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	path, err := h.reports.ExportReportPDF(r.Context(), reportID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	http.ServeFile(w, r, path)
}
