package ingestion

import (
	"context"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"golang.org/x/sync/errgroup"
)

// Service wires the chunker, the embedding client, and the vector store
// into the markdown ingestion pipeline.
type Service struct {
	chunker     interfaces.ChunkerService
	embedder    interfaces.EmbeddingService
	vectors     interfaces.VectorStore
	ingests     interfaces.IngestStorage
	batchSize   int
	maxParallel int
	logger      arbor.ILogger
}

var _ interfaces.IngestionService = (*Service)(nil)

// NewService creates the ingestion service. Batch size and parallelism come
// from the embedding configuration.
func NewService(
	chunker interfaces.ChunkerService,
	embedder interfaces.EmbeddingService,
	vectors interfaces.VectorStore,
	ingests interfaces.IngestStorage,
	cfg common.EmbeddingConfig,
	logger arbor.ILogger,
) interfaces.IngestionService {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 4
	}

	return &Service{
		chunker:     chunker,
		embedder:    embedder,
		vectors:     vectors,
		ingests:     ingests,
		batchSize:   batchSize,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// IngestReport chunks one markdown filing, embeds the chunks, and replaces
// the report scope in the vector store.
func (s *Service) IngestReport(ctx context.Context, req interfaces.IngestRequest) (*models.IngestRecord, error) {
	started := time.Now()

	if req.CompanyName == "" || req.CompanyCode == "" {
		return nil, common.E(common.KindInvalidInput, "ingest.report", "company name and code are required")
	}
	period, err := common.NormalizePeriod(req.ReportPeriod)
	if err != nil {
		return nil, err
	}

	markdown := req.Content
	if markdown == "" {
		if req.FilePath == "" {
			return nil, common.E(common.KindInvalidInput, "ingest.report", "either content or a file path must be provided")
		}
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, common.Wrap(common.KindNotFound, "ingest.report", err)
			}
			return nil, common.Wrap(common.KindInternal, "ingest.report", err)
		}
		markdown = string(data)
	}

	chunks, err := s.chunker.ChunkMarkdown(markdown, req.FilePath)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, common.E(common.KindInvalidInput, "ingest.report", "no usable text in document")
	}

	reportID := models.MakeReportID(req.CompanyCode, period)

	// Replace any previous ingest of this report scope.
	if _, err := s.vectors.DeleteByReport(ctx, reportID); err != nil {
		return nil, err
	}

	embeddings, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	records := make([]*models.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = &models.VectorRecord{
			ChunkID:      models.MakeChunkKey(reportID, chunk.ChunkID),
			Embedding:    embeddings[i],
			ChunkText:    chunk.ChunkText,
			ReportID:     reportID,
			CompanyName:  req.CompanyName,
			CompanyCode:  req.CompanyCode,
			ReportPeriod: period,
			ChunkType:    chunk.ChunkType,
			Title:        chunk.Title,
			ChunkIndex:   int64(chunk.ChunkIndex),
			PageNumber:   -1,
			FilePath:     chunk.FilePath,
			CreatedAt:    chunk.CreatedAt,
		}
	}

	if err := s.vectors.Insert(ctx, records); err != nil {
		return nil, err
	}

	record := &models.IngestRecord{
		IngestID:     common.NewIngestID(),
		ReportID:     reportID,
		CompanyName:  req.CompanyName,
		CompanyCode:  req.CompanyCode,
		ReportPeriod: period,
		FilePath:     req.FilePath,
		ChunkCount:   len(chunks),
		Inserted:     len(records),
		DurationMS:   time.Since(started).Milliseconds(),
		CreatedAt:    time.Now(),
	}
	if err := s.ingests.SaveIngest(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("report_id", reportID).Msg("Failed to save ingest manifest")
	}

	s.logger.Info().
		Str("report_id", reportID).
		Int("chunks", len(chunks)).
		Dur("elapsed", time.Since(started)).
		Msg("Ingested report")

	return record, nil
}

// BatchIngest processes a manifest sequentially, isolating failures per
// item. Cancellation stops the batch at the current item.
func (s *Service) BatchIngest(ctx context.Context, reqs []interfaces.IngestRequest) []interfaces.BatchItemResult {
	results := make([]interfaces.BatchItemResult, 0, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			results = append(results, interfaces.BatchItemResult{Index: i, Error: "cancelled"})
			break
		}

		record, err := s.IngestReport(ctx, req)
		if err != nil {
			s.logger.Warn().Err(err).Int("item", i).Str("company_code", req.CompanyCode).Msg("Batch ingest item failed")
			results = append(results, interfaces.BatchItemResult{Index: i, Error: err.Error()})
			continue
		}
		results = append(results, interfaces.BatchItemResult{
			Index:    i,
			ReportID: record.ReportID,
			Success:  true,
			Record:   record,
		})
	}
	return results
}

// DeleteReport removes one report scope from the vector store and drops its
// manifest rows.
func (s *Service) DeleteReport(ctx context.Context, reportID string) (int64, error) {
	removed, err := s.vectors.DeleteByReport(ctx, reportID)
	if err != nil {
		return 0, err
	}
	if err := s.ingests.DeleteIngestsByReport(ctx, reportID); err != nil {
		s.logger.Warn().Err(err).Str("report_id", reportID).Msg("Failed to delete ingest manifest rows")
	}

	s.logger.Info().Str("report_id", reportID).Int64("removed", removed).Msg("Deleted report from vector store")
	return removed, nil
}

// Stats proxies vector collection statistics.
func (s *Service) Stats(ctx context.Context) (*interfaces.VectorStoreStats, error) {
	return s.vectors.Stats(ctx)
}

// embedChunks embeds chunk texts in parallel batches, preserving chunk
// order in the returned slice.
func (s *Service) embedChunks(ctx context.Context, chunks []*models.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.ChunkText
	}

	embeddings := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			batch, err := s.embedder.EmbedTexts(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(embeddings[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}
