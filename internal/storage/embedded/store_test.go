package embedded

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

const testDim = 4

func testConfig(t *testing.T) common.VectorConfig {
	t.Helper()
	return common.VectorConfig{
		Backend:    "embedded",
		Collection: "financial_reports",
		Dimension:  testDim,
		IndexPath:  filepath.Join(t.TempDir(), "vectors.hnsw"),
	}
}

func newTestStore(t *testing.T) interfaces.VectorStore {
	t.Helper()
	store, err := NewStore(testConfig(t), arbor.NewLogger())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func makeRecord(reportID, company, period string, index int64, vec []float32) *models.VectorRecord {
	return &models.VectorRecord{
		ChunkID:      models.MakeChunkKey(reportID, models.ChunkIDForIndex(int(index))),
		Embedding:    vec,
		ChunkText:    "chunk " + reportID,
		ReportID:     reportID,
		CompanyName:  company,
		CompanyCode:  reportID[:6],
		ReportPeriod: period,
		ChunkType:    models.ChunkTypeFinancialAnalysis,
		ChunkIndex:   index,
		PageNumber:   -1,
		CreatedAt:    1700000000,
	}
}

func TestStore_InsertAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []*models.VectorRecord{
		makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 0, []float32{1, 0, 0, 0}),
		makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 1, []float32{0, 1, 0, 0}),
		makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 2, []float32{0, 0, 1, 0}),
	}
	if err := store.Insert(ctx, records); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	hits, err := store.Search(ctx, []float32{1, 0, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("Expected 3 hits, got %d", len(hits))
	}
	if hits[0].ChunkIndex != 0 {
		t.Errorf("Expected exact match first, got chunk index %d", hits[0].ChunkIndex)
	}
	if hits[0].Score < 0.99 {
		t.Errorf("Expected near-perfect score for exact match, got %f", hits[0].Score)
	}
	// Orthogonal vectors score identically; ties resolve by chunk index
	if hits[1].ChunkIndex != 1 || hits[2].ChunkIndex != 2 {
		t.Errorf("Expected tie-break by chunk index, got %d then %d", hits[1].ChunkIndex, hits[2].ChunkIndex)
	}
	if hits[0].CompanyName != "三六零" || hits[0].ReportPeriod != "2024-09-30" {
		t.Errorf("Metadata not carried through: %+v", hits[0])
	}
	if hits[0].Text != "chunk 601360_2024-09-30" {
		t.Errorf("Unexpected hit text: %s", hits[0].Text)
	}
}

func TestStore_SearchEmpty(t *testing.T) {
	store := newTestStore(t)

	hits, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, 5, nil)
	if err != nil {
		t.Fatalf("Failed to search empty store: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Expected no hits, got %d", len(hits))
	}
}

func TestStore_SearchWithFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []*models.VectorRecord{
		makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 0, []float32{1, 0, 0, 0}),
		makeRecord("601360_2024-06-30", "三六零", "2024-06-30", 0, []float32{0.9, 0.1, 0, 0}),
		makeRecord("002415_2024-09-30", "海康威视", "2024-09-30", 0, []float32{0.8, 0.2, 0, 0}),
	}
	if err := store.Insert(ctx, records); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	hits, err := store.Search(ctx, []float32{1, 0, 0, 0}, 10, &interfaces.SearchFilter{CompanyName: "三六零"})
	if err != nil {
		t.Fatalf("Failed to search with company filter: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits for company filter, got %d", len(hits))
	}
	for _, hit := range hits {
		if hit.CompanyName != "三六零" {
			t.Errorf("Filter leaked company %s", hit.CompanyName)
		}
	}

	hits, err = store.Search(ctx, []float32{1, 0, 0, 0}, 10,
		&interfaces.SearchFilter{CompanyName: "三六零", ReportPeriod: "2024-09-30"})
	if err != nil {
		t.Fatalf("Failed to search with period filter: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit for company+period filter, got %d", len(hits))
	}
	if hits[0].ReportID != "601360_2024-09-30" {
		t.Errorf("Wrong report: %s", hits[0].ReportID)
	}
}

func TestStore_SearchWithCodeAndChunkTypeFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	summary := makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 0, []float32{1, 0, 0, 0})
	summary.ChunkType = models.ChunkTypeSummary
	records := []*models.VectorRecord{
		summary,
		makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 1, []float32{0.9, 0.1, 0, 0}),
		makeRecord("002415_2024-09-30", "海康威视", "2024-09-30", 0, []float32{0.8, 0.2, 0, 0}),
	}
	if err := store.Insert(ctx, records); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	hits, err := store.Search(ctx, []float32{1, 0, 0, 0}, 10, &interfaces.SearchFilter{CompanyCode: "601360"})
	if err != nil {
		t.Fatalf("Failed to search with code filter: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits for code filter, got %d", len(hits))
	}
	for _, hit := range hits {
		if hit.CompanyCode != "601360" {
			t.Errorf("Filter leaked company code %s", hit.CompanyCode)
		}
	}

	hits, err = store.Search(ctx, []float32{1, 0, 0, 0}, 10,
		&interfaces.SearchFilter{CompanyCode: "601360", ChunkType: models.ChunkTypeSummary})
	if err != nil {
		t.Fatalf("Failed to search with chunk type filter: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit for code+type filter, got %d", len(hits))
	}
	if hits[0].ChunkType != models.ChunkTypeSummary {
		t.Errorf("Wrong chunk type: %s", hits[0].ChunkType)
	}
}

func TestStore_ReplaceExistingChunk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 0, []float32{1, 0, 0, 0})
	if err := store.Insert(ctx, []*models.VectorRecord{first}); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	replacement := makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 0, []float32{0, 0, 0, 1})
	replacement.ChunkText = "updated text"
	if err := store.Insert(ctx, []*models.VectorRecord{replacement}); err != nil {
		t.Fatalf("Failed to re-insert: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Records != 1 {
		t.Errorf("Expected 1 live record, got %d", stats.Records)
	}
	if stats.Orphans != 1 {
		t.Errorf("Expected 1 orphaned graph node, got %d", stats.Orphans)
	}

	hits, err := store.Search(ctx, []float32{0, 0, 0, 1}, 1, nil)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}
	if hits[0].Text != "updated text" {
		t.Errorf("Expected replacement payload, got %s", hits[0].Text)
	}
	if hits[0].Score < 0.99 {
		t.Errorf("Expected replacement vector to match query, score %f", hits[0].Score)
	}
}

func TestStore_DeleteByReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []*models.VectorRecord{
		makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 0, []float32{1, 0, 0, 0}),
		makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 1, []float32{0, 1, 0, 0}),
		makeRecord("002415_2024-09-30", "海康威视", "2024-09-30", 0, []float32{0, 0, 1, 0}),
	}
	if err := store.Insert(ctx, records); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	removed, err := store.DeleteByReport(ctx, "601360_2024-09-30")
	if err != nil {
		t.Fatalf("Failed to delete report: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}

	hits, err := store.Search(ctx, []float32{1, 0, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	for _, hit := range hits {
		if hit.ReportID == "601360_2024-09-30" {
			t.Errorf("Deleted report still searchable: %s", hit.ChunkID)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Records != 1 {
		t.Errorf("Expected 1 live record after delete, got %d", stats.Records)
	}

	removed, err = store.DeleteByReport(ctx, "601360_2024-09-30")
	if err != nil {
		t.Fatalf("Failed on second delete: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected 0 removed on second delete, got %d", removed)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	logger := arbor.NewLogger()

	store, err := NewStore(cfg, logger)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	ctx := context.Background()

	records := []*models.VectorRecord{
		makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 0, []float32{1, 0, 0, 0}),
		makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 1, []float32{0, 1, 0, 0}),
	}
	if err := store.Insert(ctx, records); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	reopened, err := NewStore(cfg, logger)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	stats, err := reopened.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Records != 2 {
		t.Errorf("Expected 2 records after reopen, got %d", stats.Records)
	}

	hits, err := reopened.Search(ctx, []float32{1, 0, 0, 0}, 1, nil)
	if err != nil {
		t.Fatalf("Failed to search after reopen: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkIndex != 0 {
		t.Fatalf("Expected persisted chunk back, got %+v", hits)
	}
	if hits[0].CompanyName != "三六零" {
		t.Errorf("Payload lost across reopen: %+v", hits[0])
	}
}

func TestStore_DimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bad := makeRecord("601360_2024-09-30", "三六零", "2024-09-30", 0, []float32{1, 0})
	err := store.Insert(ctx, []*models.VectorRecord{bad})
	if common.KindOf(err) != common.KindInvalidInput {
		t.Errorf("Expected invalid_input on insert, got %v", err)
	}

	_, err = store.Search(ctx, []float32{1, 0}, 5, nil)
	if common.KindOf(err) != common.KindInvalidInput {
		t.Errorf("Expected invalid_input on search, got %v", err)
	}
}
