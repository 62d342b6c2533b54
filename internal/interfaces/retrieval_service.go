package interfaces

import (
	"context"

	"github.com/ternarybob/finreview/internal/models"
)

// PeriodHits groups retrieval hits for one report period.
type PeriodHits struct {
	Period string             `json:"period"`
	Hits   []models.SearchHit `json:"hits"`
}

// RetrievalService answers semantic queries against the ingested filings.
// Retrieval failures degrade to empty results so analysis can proceed
// without context.
type RetrievalService interface {
	// RetrieveByPeriod returns chunks of one company's filing for one
	// period.
	RetrieveByPeriod(ctx context.Context, companyName, reportPeriod string) ([]models.SearchHit, error)

	// RetrieveByCompany returns the most relevant chunks across all of a
	// company's filings.
	RetrieveByCompany(ctx context.Context, companyName string, topK int) ([]models.SearchHit, error)

	// RetrieveHistorical returns hits grouped by period in first-seen
	// order, for period-over-period comparison.
	RetrieveHistorical(ctx context.Context, companyName, currentPeriod string, numPeriods int) ([]PeriodHits, error)

	// RetrieveSimilar searches without a company filter.
	RetrieveSimilar(ctx context.Context, query string, topK int) ([]models.SearchHit, error)

	// Search runs a semantic query with an optional metadata filter.
	Search(ctx context.Context, query string, topK int, filter *SearchFilter) ([]models.SearchHit, error)

	// GetAnalysisContext assembles the sectioned context text for report
	// generation: current period, historical comparison, and, when query is
	// non-empty, related reference material.
	GetAnalysisContext(ctx context.Context, companyName, reportPeriod, query string) (string, error)
}
