package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/interfaces"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler aggregates upstream health into one endpoint.
type HealthHandler struct {
	findata  interfaces.FinancialDataService
	embedder interfaces.EmbeddingService
	vectors  interfaces.VectorStore
	llm      interfaces.LLMService
	logger   arbor.ILogger
}

// NewHealthHandler creates the health handler. Nil services are reported
// as unconfigured rather than probed.
func NewHealthHandler(findata interfaces.FinancialDataService, embedder interfaces.EmbeddingService, vectors interfaces.VectorStore, llm interfaces.LLMService, logger arbor.ILogger) *HealthHandler {
	return &HealthHandler{
		findata:  findata,
		embedder: embedder,
		vectors:  vectors,
		llm:      llm,
		logger:   logger,
	}
}

type upstreamStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Upstreams map[string]upstreamStatus `json:"upstreams"`
}

// HealthHandler serves GET /health.
func (h *HealthHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]func(context.Context) error{}
	if h.findata != nil {
		checks["findata"] = h.findata.HealthCheck
	}
	if h.embedder != nil {
		checks["embedding"] = h.embedder.HealthCheck
	}
	if h.vectors != nil {
		checks["vector_store"] = h.vectors.HealthCheck
	}
	if h.llm != nil {
		checks["llm"] = h.llm.HealthCheck
	}

	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Upstreams: make(map[string]upstreamStatus, len(checks)),
	}
	for name, check := range checks {
		if err := check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Upstreams[name] = upstreamStatus{Status: "unhealthy", Error: err.Error()}
			h.logger.Warn().
				Err(err).
				Str("upstream", name).
				Msg("Health check failed")
			continue
		}
		resp.Upstreams[name] = upstreamStatus{Status: "healthy"}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}
