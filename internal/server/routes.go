package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("/health", s.app.HealthHandler.HealthHandler)

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Ingestion pipeline
	mux.HandleFunc("/api/ingest", s.app.IngestHandler.IngestHandler)
	mux.HandleFunc("/api/ingest/batch", s.app.IngestHandler.BatchIngestHandler)
	mux.HandleFunc("/api/ingest/stats", s.app.IngestHandler.StatsHandler)

	// API routes - Retrieval
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler)

	// API routes - Report generation and archive
	mux.HandleFunc("/api/reports/generate", s.app.ReportHandler.GenerateHandler)
	mux.HandleFunc("/api/reports", s.app.ReportHandler.ListReportsHandler)
	mux.HandleFunc("/api/reports/", s.handleReportRoutes) // /{report_id}, /{report_id}/pdf, /{report_id}/chunks
	mux.HandleFunc("/api/runs", s.app.ReportHandler.RunsHandler)
	mux.HandleFunc("/api/runs/", s.app.ReportHandler.RunsHandler)

	// API routes - Catalog and ratios
	mux.HandleFunc("/api/companies", s.app.CatalogHandler.CompaniesHandler)
	mux.HandleFunc("/api/industries", s.app.CatalogHandler.IndustriesHandler)
	mux.HandleFunc("/api/ratios", s.app.RatiosHandler.RatiosHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

// handleReportRoutes dispatches /api/reports/{report_id} subresources.
// Chunk deletion belongs to the ingest pipeline; everything else is the
// archive.
func (s *Server) handleReportRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/chunks") {
		s.app.IngestHandler.DeleteChunksHandler(w, r)
		return
	}
	s.app.ReportHandler.ReportHandler(w, r)
}

// notFoundHandler answers unmatched API paths with a JSON error.
func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"status":"error","error":"endpoint not found"}`))
}
