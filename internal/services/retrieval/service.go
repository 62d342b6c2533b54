// Package retrieval answers semantic queries against the ingested filings
// and assembles the sectioned context text used by report analysis.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

const (
	// periodTopK covers a full filing; one report rarely chunks past 50.
	periodTopK  = 50
	companyTopK = 10
	// perPeriodHits is the per-period allowance in historical searches.
	perPeriodHits      = 20
	defaultNumPeriods  = 4
	similarTopK        = 5
	contextCurrentTake = 5
	contextPeriods     = 2
	contextPerPeriod   = 3
	contextSimilarTake = 3
)

// Service runs query strategies over the vector store.
type Service struct {
	embedder  interfaces.EmbeddingService
	vectors   interfaces.VectorStore
	converter *md.Converter
	logger    arbor.ILogger
}

var _ interfaces.RetrievalService = (*Service)(nil)

// NewService creates the retrieval service.
func NewService(embedder interfaces.EmbeddingService, vectors interfaces.VectorStore, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Service{
		embedder:  embedder,
		vectors:   vectors,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// RetrieveByPeriod returns chunks of one company's filing for one period.
func (s *Service) RetrieveByPeriod(ctx context.Context, companyName, reportPeriod string) ([]models.SearchHit, error) {
	if companyName == "" {
		return nil, common.E(common.KindInvalidInput, "retrieval.by_period", "company name is required")
	}
	period, err := common.NormalizePeriod(reportPeriod)
	if err != nil {
		return nil, err
	}

	vector, err := s.embedder.EmbedQuery(ctx, fmt.Sprintf("%s %s", companyName, period))
	if err != nil {
		return nil, err
	}
	hits, err := s.vectors.Search(ctx, vector, periodTopK, &interfaces.SearchFilter{
		CompanyName:  companyName,
		ReportPeriod: period,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("company", companyName).
		Str("period", period).
		Int("hits", len(hits)).
		Msg("Retrieved period chunks")
	return hits, nil
}

// RetrieveByCompany returns the most relevant chunks across all of a
// company's filings.
func (s *Service) RetrieveByCompany(ctx context.Context, companyName string, topK int) ([]models.SearchHit, error) {
	if companyName == "" {
		return nil, common.E(common.KindInvalidInput, "retrieval.by_company", "company name is required")
	}
	if topK <= 0 {
		topK = companyTopK
	}

	vector, err := s.embedder.EmbedQuery(ctx, companyName)
	if err != nil {
		return nil, err
	}
	hits, err := s.vectors.Search(ctx, vector, topK, &interfaces.SearchFilter{CompanyName: companyName})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("company", companyName).
		Int("hits", len(hits)).
		Msg("Retrieved company chunks")
	return hits, nil
}

// RetrieveHistorical returns hits grouped by report period in first-seen
// order. The current period is not excluded; callers comparing periods
// skip it themselves.
func (s *Service) RetrieveHistorical(ctx context.Context, companyName, currentPeriod string, numPeriods int) ([]interfaces.PeriodHits, error) {
	if companyName == "" {
		return nil, common.E(common.KindInvalidInput, "retrieval.historical", "company name is required")
	}
	if numPeriods <= 0 {
		numPeriods = defaultNumPeriods
	}

	vector, err := s.embedder.EmbedQuery(ctx, companyName)
	if err != nil {
		return nil, err
	}
	hits, err := s.vectors.Search(ctx, vector, numPeriods*perPeriodHits, &interfaces.SearchFilter{CompanyName: companyName})
	if err != nil {
		return nil, err
	}

	var groups []interfaces.PeriodHits
	index := make(map[string]int)
	for _, hit := range hits {
		if hit.ReportPeriod == "" {
			continue
		}
		i, ok := index[hit.ReportPeriod]
		if !ok {
			i = len(groups)
			index[hit.ReportPeriod] = i
			groups = append(groups, interfaces.PeriodHits{Period: hit.ReportPeriod})
		}
		groups[i].Hits = append(groups[i].Hits, hit)
	}

	s.logger.Debug().
		Str("company", companyName).
		Str("current_period", currentPeriod).
		Int("periods", len(groups)).
		Msg("Retrieved historical chunks")
	return groups, nil
}

// RetrieveSimilar searches without a company filter.
func (s *Service) RetrieveSimilar(ctx context.Context, query string, topK int) ([]models.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, common.E(common.KindInvalidInput, "retrieval.similar", "query is required")
	}
	if topK <= 0 {
		topK = similarTopK
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.vectors.Search(ctx, vector, topK, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Int("hits", len(hits)).Msg("Retrieved similar content")
	return hits, nil
}

// Search runs a semantic query with an optional metadata filter.
func (s *Service) Search(ctx context.Context, query string, topK int, filter *interfaces.SearchFilter) ([]models.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, common.E(common.KindInvalidInput, "retrieval.search", "query is required")
	}
	if topK <= 0 {
		topK = similarTopK
	}
	if filter != nil && filter.ReportPeriod != "" {
		period, err := common.NormalizePeriod(filter.ReportPeriod)
		if err != nil {
			return nil, err
		}
		normalized := *filter
		normalized.ReportPeriod = period
		filter = &normalized
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.vectors.Search(ctx, vector, topK, filter)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("query", query).
		Int("hits", len(hits)).
		Msg("Search completed")
	return hits, nil
}

// GetAnalysisContext assembles the sectioned context for report generation.
// Each section degrades to empty when its retrieval fails; only invalid
// arguments abort.
func (s *Service) GetAnalysisContext(ctx context.Context, companyName, reportPeriod, query string) (string, error) {
	if companyName == "" {
		return "", common.E(common.KindInvalidInput, "retrieval.context", "company name is required")
	}
	period, err := common.NormalizePeriod(reportPeriod)
	if err != nil {
		return "", err
	}

	current, err := s.RetrieveByPeriod(ctx, companyName, period)
	if err != nil {
		s.logger.Warn().Err(err).Str("company", companyName).Msg("Current-period retrieval failed")
	}
	historical, err := s.RetrieveHistorical(ctx, companyName, period, contextPeriods)
	if err != nil {
		s.logger.Warn().Err(err).Str("company", companyName).Msg("Historical retrieval failed")
	}
	var similar []models.SearchHit
	if query != "" {
		if similar, err = s.RetrieveSimilar(ctx, query, contextSimilarTake); err != nil {
			s.logger.Warn().Err(err).Msg("Similar-content retrieval failed")
		}
	}

	var parts []string
	if len(current) > 0 {
		parts = append(parts, "=== 当前期财报 ===")
		for _, hit := range current[:min(len(current), contextCurrentTake)] {
			parts = append(parts, s.hitText(hit))
		}
	}
	if len(historical) > 0 {
		parts = append(parts, "\n=== 历史财报对比 ===")
		groups := historical[:min(len(historical), contextPeriods)]
		for _, group := range groups {
			if group.Period == period {
				continue
			}
			parts = append(parts, fmt.Sprintf("\n%s:", group.Period))
			for _, hit := range group.Hits[:min(len(group.Hits), contextPerPeriod)] {
				parts = append(parts, s.hitText(hit))
			}
		}
	}
	if len(similar) > 0 {
		parts = append(parts, "\n=== 相关参考 ===")
		for _, hit := range similar {
			parts = append(parts, s.hitText(hit))
		}
	}

	text := strings.Join(parts, "\n")
	s.logger.Debug().
		Str("company", companyName).
		Str("period", period).
		Int("length", len(text)).
		Msg("Assembled analysis context")
	return text, nil
}

// hitText returns the hit's text, rendering protected HTML tables to
// markdown so the language model reads rows instead of tags.
func (s *Service) hitText(hit models.SearchHit) string {
	if hit.ChunkType != models.ChunkTypeTable {
		return hit.Text
	}
	converted, err := s.converter.ConvertString(hit.Text)
	if err != nil {
		s.logger.Warn().Err(err).Str("chunk_id", hit.ChunkID).Msg("Table conversion failed, keeping raw HTML")
		return hit.Text
	}
	if strings.TrimSpace(converted) == "" {
		return hit.Text
	}
	return converted
}
