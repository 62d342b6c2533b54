package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

type fakeEmbedder struct {
	queries []string
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	f.queries = append(f.queries, query)
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-model" }

func (f *fakeEmbedder) Dimension() int { return 2 }

func (f *fakeEmbedder) HealthCheck(ctx context.Context) error { return nil }

type searchCall struct {
	topK   int
	filter *interfaces.SearchFilter
}

type fakeVectors struct {
	calls      []searchCall
	byPeriod   []models.SearchHit
	byCompany  []models.SearchHit
	unfiltered []models.SearchHit
	err        error
}

func (f *fakeVectors) EnsureCollection(ctx context.Context) error { return nil }

func (f *fakeVectors) Insert(ctx context.Context, records []*models.VectorRecord) error {
	return nil
}

func (f *fakeVectors) Search(ctx context.Context, vector []float32, topK int, filter *interfaces.SearchFilter) ([]models.SearchHit, error) {
	f.calls = append(f.calls, searchCall{topK: topK, filter: filter})
	if f.err != nil {
		return nil, f.err
	}
	switch {
	case filter == nil:
		return f.unfiltered, nil
	case filter.ReportPeriod != "":
		return f.byPeriod, nil
	default:
		return f.byCompany, nil
	}
}

func (f *fakeVectors) DeleteByReport(ctx context.Context, reportID string) (int64, error) {
	return 0, nil
}

func (f *fakeVectors) Stats(ctx context.Context) (*interfaces.VectorStoreStats, error) {
	return &interfaces.VectorStoreStats{}, nil
}

func (f *fakeVectors) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeVectors) Close() error                          { return nil }

func textHits(period string, texts ...string) []models.SearchHit {
	hits := make([]models.SearchHit, 0, len(texts))
	for _, text := range texts {
		hits = append(hits, models.SearchHit{ReportPeriod: period, Text: text})
	}
	return hits
}

func newTestService(vectors *fakeVectors) (*Service, *fakeEmbedder) {
	embedder := &fakeEmbedder{}
	return NewService(embedder, vectors, arbor.NewLogger()), embedder
}

func TestRetrieveByPeriod(t *testing.T) {
	vectors := &fakeVectors{byPeriod: textHits("2024-09-30", "a", "b")}
	s, embedder := newTestService(vectors)

	hits, err := s.RetrieveByPeriod(context.Background(), "三六零", "20240930")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits", len(hits))
	}
	if got := embedder.queries[0]; got != "三六零 2024-09-30" {
		t.Errorf("query text = %q", got)
	}
	call := vectors.calls[0]
	if call.topK != 50 {
		t.Errorf("topK = %d, want 50", call.topK)
	}
	if call.filter == nil || call.filter.CompanyName != "三六零" || call.filter.ReportPeriod != "2024-09-30" {
		t.Errorf("filter = %+v", call.filter)
	}

	if _, err := s.RetrieveByPeriod(context.Background(), "", "2024-09-30"); common.KindOf(err) != common.KindInvalidInput {
		t.Errorf("missing company kind = %s", common.KindOf(err))
	}
}

func TestRetrieveByCompanyDefaults(t *testing.T) {
	vectors := &fakeVectors{byCompany: textHits("2024-09-30", "a")}
	s, embedder := newTestService(vectors)

	if _, err := s.RetrieveByCompany(context.Background(), "三六零", 0); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	call := vectors.calls[0]
	if call.topK != 10 {
		t.Errorf("default topK = %d, want 10", call.topK)
	}
	if call.filter.ReportPeriod != "" {
		t.Errorf("period filter should be empty: %+v", call.filter)
	}
	if embedder.queries[0] != "三六零" {
		t.Errorf("query text = %q", embedder.queries[0])
	}
}

func TestRetrieveHistoricalGrouping(t *testing.T) {
	hits := []models.SearchHit{
		{ReportPeriod: "2024-09-30", Text: "q3-a"},
		{ReportPeriod: "2024-06-30", Text: "q2-a"},
		{ReportPeriod: "2024-09-30", Text: "q3-b"},
		{ReportPeriod: ""},
		{ReportPeriod: "2024-03-31", Text: "q1-a"},
	}
	vectors := &fakeVectors{byCompany: hits}
	s, _ := newTestService(vectors)

	groups, err := s.RetrieveHistorical(context.Background(), "三六零", "2024-09-30", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got := vectors.calls[0].topK; got != 40 {
		t.Errorf("topK = %d, want periods*20", got)
	}
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3 (blank period dropped)", len(groups))
	}
	wantOrder := []string{"2024-09-30", "2024-06-30", "2024-03-31"}
	wantCounts := []int{2, 1, 1}
	for i, group := range groups {
		if group.Period != wantOrder[i] {
			t.Errorf("group %d period = %s, want %s", i, group.Period, wantOrder[i])
		}
		if len(group.Hits) != wantCounts[i] {
			t.Errorf("group %d has %d hits, want %d", i, len(group.Hits), wantCounts[i])
		}
	}

	// Default period count
	if _, err := s.RetrieveHistorical(context.Background(), "三六零", "2024-09-30", 0); err != nil {
		t.Fatal(err)
	}
	if got := vectors.calls[1].topK; got != 80 {
		t.Errorf("default topK = %d, want 4*20", got)
	}
}

func TestRetrieveSimilar(t *testing.T) {
	vectors := &fakeVectors{unfiltered: textHits("2024-09-30", "a")}
	s, _ := newTestService(vectors)

	if _, err := s.RetrieveSimilar(context.Background(), "现金流风险", 0); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	call := vectors.calls[0]
	if call.filter != nil {
		t.Errorf("similar search must be unfiltered: %+v", call.filter)
	}
	if call.topK != 5 {
		t.Errorf("default topK = %d, want 5", call.topK)
	}

	if _, err := s.RetrieveSimilar(context.Background(), "  ", 5); common.KindOf(err) != common.KindInvalidInput {
		t.Errorf("blank query kind = %s", common.KindOf(err))
	}
}

func TestGetAnalysisContext(t *testing.T) {
	vectors := &fakeVectors{
		byPeriod: textHits("2024-09-30", "c0", "c1", "c2", "c3", "c4", "c5", "c6"),
		byCompany: append(
			textHits("2024-09-30", "current-a", "current-b"),
			textHits("2024-06-30", "h0", "h1", "h2", "h3")...,
		),
		unfiltered: textHits("2023-12-31", "s0", "s1"),
	}
	s, _ := newTestService(vectors)

	got, err := s.GetAnalysisContext(context.Background(), "三六零", "2024-09-30", "现金流")
	if err != nil {
		t.Fatalf("context: %v", err)
	}

	want := "=== 当前期财报 ===\n" +
		"c0\nc1\nc2\nc3\nc4\n" +
		"\n=== 历史财报对比 ===\n" +
		"\n2024-06-30:\n" +
		"h0\nh1\nh2\n" +
		"\n=== 相关参考 ===\n" +
		"s0\ns1"
	if got != want {
		t.Errorf("context = %q, want %q", got, want)
	}
}

func TestGetAnalysisContextWithoutQuery(t *testing.T) {
	vectors := &fakeVectors{
		byPeriod:  textHits("2024-09-30", "c0"),
		byCompany: textHits("2024-06-30", "h0"),
	}
	s, _ := newTestService(vectors)

	got, err := s.GetAnalysisContext(context.Background(), "三六零", "2024-09-30", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if strings.Contains(got, "相关参考") {
		t.Errorf("no query given, reference section should be absent:\n%s", got)
	}
	// Only the period and historical searches ran
	if len(vectors.calls) != 2 {
		t.Errorf("got %d searches, want 2", len(vectors.calls))
	}
}

func TestGetAnalysisContextDegrades(t *testing.T) {
	vectors := &fakeVectors{err: common.E(common.KindTransientUpstream, "vectors.search", "store down")}
	s, _ := newTestService(vectors)

	got, err := s.GetAnalysisContext(context.Background(), "三六零", "2024-09-30", "现金流")
	if err != nil {
		t.Fatalf("degraded context should not error: %v", err)
	}
	if got != "" {
		t.Errorf("context = %q, want empty", got)
	}

	if _, err := s.GetAnalysisContext(context.Background(), "", "2024-09-30", ""); common.KindOf(err) != common.KindInvalidInput {
		t.Errorf("missing company kind = %s", common.KindOf(err))
	}
}

func TestTableHitsRenderedToMarkdown(t *testing.T) {
	tableHit := models.SearchHit{
		ChunkType:    models.ChunkTypeTable,
		ReportPeriod: "2024-09-30",
		Text:         "<table><tr><td>营业收入</td><td>100</td></tr></table>",
	}
	vectors := &fakeVectors{byPeriod: []models.SearchHit{tableHit}}
	s, _ := newTestService(vectors)

	got, err := s.GetAnalysisContext(context.Background(), "三六零", "2024-09-30", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if strings.Contains(got, "<table") {
		t.Errorf("table HTML leaked into context:\n%s", got)
	}
	if !strings.Contains(got, "营业收入") {
		t.Errorf("table content lost:\n%s", got)
	}
}

func TestSearchNormalizesFilterPeriod(t *testing.T) {
	vectors := &fakeVectors{byPeriod: textHits("2024-09-30", "a")}
	s, embedder := newTestService(vectors)

	hits, err := s.Search(context.Background(), "现金流", 7, &interfaces.SearchFilter{
		CompanyName:  "三六零",
		ReportPeriod: "20240930",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits", len(hits))
	}
	if embedder.queries[0] != "现金流" {
		t.Errorf("query text = %q", embedder.queries[0])
	}
	call := vectors.calls[0]
	if call.topK != 7 {
		t.Errorf("topK = %d, want 7", call.topK)
	}
	if call.filter == nil || call.filter.ReportPeriod != "2024-09-30" {
		t.Errorf("filter = %+v", call.filter)
	}

	if _, err := s.Search(context.Background(), "  ", 5, nil); common.KindOf(err) != common.KindInvalidInput {
		t.Errorf("blank query kind = %s", common.KindOf(err))
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	vectors := &fakeVectors{unfiltered: textHits("2024-09-30", "a")}
	s, _ := newTestService(vectors)

	if _, err := s.Search(context.Background(), "研发投入", 0, nil); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := vectors.calls[0].topK; got != similarTopK {
		t.Errorf("default topK = %d, want %d", got, similarTopK)
	}
}
