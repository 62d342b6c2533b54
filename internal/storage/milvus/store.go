package milvus

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

const (
	vectorField        = "embedding"
	hnswM              = 16
	hnswEfConstruction = 256
	hnswEfSearch       = 64
)

// Store implements the VectorStore interface against a Milvus deployment.
type Store struct {
	client     client.Client
	collection string
	dimension  int
	logger     arbor.ILogger
}

// NewStore connects to Milvus and returns a store bound to one collection.
func NewStore(ctx context.Context, milvusCfg common.MilvusConfig, vectorCfg common.VectorConfig, logger arbor.ILogger) (interfaces.VectorStore, error) {
	if milvusCfg.Address == "" {
		return nil, common.E(common.KindInvalidInput, "milvus.connect", "milvus address is required")
	}

	c, err := client.NewClient(ctx, client.Config{
		Address:  milvusCfg.Address,
		Username: milvusCfg.User,
		Password: milvusCfg.Password,
	})
	if err != nil {
		return nil, common.Wrap(common.KindTransientUpstream, "milvus.connect", err)
	}

	logger.Info().
		Str("address", milvusCfg.Address).
		Str("collection", vectorCfg.Collection).
		Int("dimension", vectorCfg.Dimension).
		Msg("Connected to Milvus")

	return &Store{
		client:     c,
		collection: vectorCfg.Collection,
		dimension:  vectorCfg.Dimension,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection with its HNSW index when absent
// and loads it into memory for search.
func (s *Store) EnsureCollection(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return common.Wrap(common.KindTransientUpstream, "milvus.ensure_collection", err)
	}

	if !has {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "Financial report chunks with embeddings",
			Fields: []*entity.Field{
				{Name: "chunk_id", DataType: entity.FieldTypeVarChar, PrimaryKey: true, TypeParams: map[string]string{entity.TypeParamMaxLength: strconv.Itoa(models.MaxChunkIDBytes)}},
				{Name: vectorField, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{entity.TypeParamDim: strconv.Itoa(s.dimension)}},
				{Name: "chunk_text", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{entity.TypeParamMaxLength: strconv.Itoa(models.MaxChunkTextBytes)}},
				{Name: "report_id", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{entity.TypeParamMaxLength: "64"}},
				{Name: "company_name", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{entity.TypeParamMaxLength: "128"}},
				{Name: "company_code", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{entity.TypeParamMaxLength: "32"}},
				{Name: "report_period", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{entity.TypeParamMaxLength: "32"}},
				{Name: "chunk_type", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{entity.TypeParamMaxLength: "64"}},
				{Name: "title", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{entity.TypeParamMaxLength: strconv.Itoa(models.MaxTitleBytes)}},
				{Name: "chunk_index", DataType: entity.FieldTypeInt64},
				{Name: "page_number", DataType: entity.FieldTypeInt64},
				{Name: "file_path", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{entity.TypeParamMaxLength: strconv.Itoa(models.MaxFilePathBytes)}},
				{Name: "created_at", DataType: entity.FieldTypeInt64},
			},
		}

		if err := s.client.CreateCollection(ctx, schema, 1); err != nil {
			return common.Wrap(common.KindTransientUpstream, "milvus.ensure_collection", err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, hnswM, hnswEfConstruction)
		if err != nil {
			return common.Wrap(common.KindInternal, "milvus.ensure_collection", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, vectorField, idx, false); err != nil {
			return common.Wrap(common.KindTransientUpstream, "milvus.ensure_collection", err)
		}

		s.logger.Info().
			Str("collection", s.collection).
			Int("dimension", s.dimension).
			Msg("Created Milvus collection with HNSW index")
	}

	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return common.Wrap(common.KindTransientUpstream, "milvus.ensure_collection", err)
	}
	return nil
}

// Insert upserts records column-wise and flushes so they become searchable.
func (s *Store) Insert(ctx context.Context, records []*models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	chunkIDs := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	texts := make([]string, 0, n)
	reportIDs := make([]string, 0, n)
	companyNames := make([]string, 0, n)
	companyCodes := make([]string, 0, n)
	periods := make([]string, 0, n)
	chunkTypes := make([]string, 0, n)
	titles := make([]string, 0, n)
	chunkIndexes := make([]int64, 0, n)
	pageNumbers := make([]int64, 0, n)
	filePaths := make([]string, 0, n)
	createdAts := make([]int64, 0, n)

	for _, r := range records {
		if len(r.Embedding) != s.dimension {
			return common.E(common.KindInvalidInput, "milvus.insert",
				fmt.Sprintf("record %s has dimension %d, want %d", r.ChunkID, len(r.Embedding), s.dimension))
		}
		chunkIDs = append(chunkIDs, common.TruncateBytes(r.ChunkID, models.MaxChunkIDBytes))
		vectors = append(vectors, r.Embedding)
		texts = append(texts, common.TruncateBytes(r.ChunkText, models.MaxChunkTextBytes))
		reportIDs = append(reportIDs, r.ReportID)
		companyNames = append(companyNames, r.CompanyName)
		companyCodes = append(companyCodes, r.CompanyCode)
		periods = append(periods, r.ReportPeriod)
		chunkTypes = append(chunkTypes, r.ChunkType)
		titles = append(titles, common.TruncateBytes(r.Title, models.MaxTitleBytes))
		chunkIndexes = append(chunkIndexes, r.ChunkIndex)
		pageNumbers = append(pageNumbers, r.PageNumber)
		filePaths = append(filePaths, common.TruncateBytes(r.FilePath, models.MaxFilePathBytes))
		createdAts = append(createdAts, r.CreatedAt)
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector(vectorField, s.dimension, vectors),
		entity.NewColumnVarChar("chunk_text", texts),
		entity.NewColumnVarChar("report_id", reportIDs),
		entity.NewColumnVarChar("company_name", companyNames),
		entity.NewColumnVarChar("company_code", companyCodes),
		entity.NewColumnVarChar("report_period", periods),
		entity.NewColumnVarChar("chunk_type", chunkTypes),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnInt64("page_number", pageNumbers),
		entity.NewColumnVarChar("file_path", filePaths),
		entity.NewColumnInt64("created_at", createdAts),
	}

	if _, err := s.client.Upsert(ctx, s.collection, "", columns...); err != nil {
		return common.Wrap(common.KindTransientUpstream, "milvus.insert", err)
	}
	if err := s.client.Flush(ctx, s.collection, false); err != nil {
		return common.Wrap(common.KindTransientUpstream, "milvus.insert", err)
	}

	s.logger.Debug().Int("records", n).Str("collection", s.collection).Msg("Inserted vector records")
	return nil
}

// Search runs an ANN query and returns hits ordered by score descending,
// ties broken by ascending chunk index.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter *interfaces.SearchFilter) ([]models.SearchHit, error) {
	if len(vector) != s.dimension {
		return nil, common.E(common.KindInvalidInput, "milvus.search",
			fmt.Sprintf("query has dimension %d, want %d", len(vector), s.dimension))
	}
	if topK <= 0 {
		topK = 10
	}

	sp, err := entity.NewIndexHNSWSearchParam(hnswEfSearch)
	if err != nil {
		return nil, common.Wrap(common.KindInternal, "milvus.search", err)
	}

	outputFields := []string{"report_id", "company_name", "company_code", "report_period", "chunk_type", "chunk_index", "chunk_text"}
	results, err := s.client.Search(ctx, s.collection, nil, buildFilterExpr(filter), outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, vectorField, entity.COSINE, topK, sp)
	if err != nil {
		return nil, common.Wrap(common.KindTransientUpstream, "milvus.search", err)
	}

	hits := make([]models.SearchHit, 0, topK)
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			hit := models.SearchHit{Score: result.Scores[i]}
			if result.IDs != nil {
				hit.ChunkID, _ = result.IDs.GetAsString(i)
			}
			for _, col := range result.Fields {
				switch col.Name() {
				case "report_id":
					hit.ReportID, _ = col.GetAsString(i)
				case "company_name":
					hit.CompanyName, _ = col.GetAsString(i)
				case "company_code":
					hit.CompanyCode, _ = col.GetAsString(i)
				case "report_period":
					hit.ReportPeriod, _ = col.GetAsString(i)
				case "chunk_type":
					hit.ChunkType, _ = col.GetAsString(i)
				case "chunk_index":
					hit.ChunkIndex, _ = col.GetAsInt64(i)
				case "chunk_text":
					hit.Text, _ = col.GetAsString(i)
				}
			}
			hits = append(hits, hit)
		}
	}

	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteByReport removes every row in one report scope and reports how many
// rows matched before deletion.
func (s *Store) DeleteByReport(ctx context.Context, reportID string) (int64, error) {
	expr := fmt.Sprintf("report_id == %q", reportID)

	rs, err := s.client.Query(ctx, s.collection, nil, expr, []string{"chunk_id"})
	if err != nil {
		return 0, common.Wrap(common.KindTransientUpstream, "milvus.delete_report", err)
	}
	var removed int64
	if len(rs) > 0 {
		removed = int64(rs[0].Len())
	}
	if removed == 0 {
		return 0, nil
	}

	if err := s.client.Delete(ctx, s.collection, "", expr); err != nil {
		return 0, common.Wrap(common.KindTransientUpstream, "milvus.delete_report", err)
	}
	if err := s.client.Flush(ctx, s.collection, false); err != nil {
		return 0, common.Wrap(common.KindTransientUpstream, "milvus.delete_report", err)
	}

	s.logger.Info().Str("report_id", reportID).Int64("removed", removed).Msg("Deleted report vectors")
	return removed, nil
}

// Stats reports the collection row count.
func (s *Store) Stats(ctx context.Context) (*interfaces.VectorStoreStats, error) {
	stats, err := s.client.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return nil, common.Wrap(common.KindTransientUpstream, "milvus.stats", err)
	}

	var records int64
	if rc, ok := stats["row_count"]; ok {
		records, _ = strconv.ParseInt(rc, 10, 64)
	}

	return &interfaces.VectorStoreStats{
		Backend:    "milvus",
		Collection: s.collection,
		Records:    records,
		Dimension:  s.dimension,
	}, nil
}

// HealthCheck verifies the Milvus connection answers.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HasCollection(ctx, s.collection); err != nil {
		return common.Wrap(common.KindTransientUpstream, "milvus.health", err)
	}
	return nil
}

// Close releases the Milvus connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func buildFilterExpr(filter *interfaces.SearchFilter) string {
	if filter == nil {
		return ""
	}
	var parts []string
	if filter.CompanyName != "" {
		parts = append(parts, fmt.Sprintf("company_name == %q", filter.CompanyName))
	}
	if filter.CompanyCode != "" {
		parts = append(parts, fmt.Sprintf("company_code == %q", filter.CompanyCode))
	}
	if filter.ReportPeriod != "" {
		parts = append(parts, fmt.Sprintf("report_period == %q", filter.ReportPeriod))
	}
	if filter.ChunkType != "" {
		parts = append(parts, fmt.Sprintf("chunk_type == %q", filter.ChunkType))
	}
	return strings.Join(parts, " and ")
}

func sortHits(hits []models.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
}
