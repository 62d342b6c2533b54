package handlers

import (
	"context"
	"errors"

	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

// fakeIngestion records calls and returns scripted results.
type fakeIngestion struct {
	record  *models.IngestRecord
	err     error
	deleted int64
	lastReq interfaces.IngestRequest
}

func (f *fakeIngestion) IngestReport(ctx context.Context, req interfaces.IngestRequest) (*models.IngestRecord, error) {
	f.lastReq = req
	return f.record, f.err
}

func (f *fakeIngestion) BatchIngest(ctx context.Context, reqs []interfaces.IngestRequest) []interfaces.BatchItemResult {
	results := make([]interfaces.BatchItemResult, len(reqs))
	for i := range reqs {
		results[i] = interfaces.BatchItemResult{Index: i, Success: i%2 == 0}
		if !results[i].Success {
			results[i].Error = "chunking produced no chunks"
		}
	}
	return results
}

func (f *fakeIngestion) DeleteReport(ctx context.Context, reportID string) (int64, error) {
	return f.deleted, f.err
}

func (f *fakeIngestion) Stats(ctx context.Context) (*interfaces.VectorStoreStats, error) {
	return &interfaces.VectorStoreStats{Backend: "embedded", Collection: "financial_reports", Records: 42}, f.err
}

// fakeSearcher implements RetrievalService for the search handler.
type fakeSearcher struct {
	hits       []models.SearchHit
	err        error
	lastTopK   int
	lastFilter *interfaces.SearchFilter
}

func (f *fakeSearcher) RetrieveByPeriod(ctx context.Context, company, period string) ([]models.SearchHit, error) {
	return nil, nil
}
func (f *fakeSearcher) RetrieveByCompany(ctx context.Context, company string, topK int) ([]models.SearchHit, error) {
	return nil, nil
}
func (f *fakeSearcher) RetrieveHistorical(ctx context.Context, company, current string, numPeriods int) ([]interfaces.PeriodHits, error) {
	return nil, nil
}
func (f *fakeSearcher) RetrieveSimilar(ctx context.Context, query string, topK int) ([]models.SearchHit, error) {
	return nil, nil
}
func (f *fakeSearcher) Search(ctx context.Context, query string, topK int, filter *interfaces.SearchFilter) ([]models.SearchHit, error) {
	f.lastTopK = topK
	f.lastFilter = filter
	return f.hits, f.err
}
func (f *fakeSearcher) GetAnalysisContext(ctx context.Context, company, period, query string) (string, error) {
	return "", nil
}

// fakeReports implements ReportService with scripted returns.
type fakeReports struct {
	result  *models.ReportResult
	run     *models.ReportRun
	report  *models.ReportDocument
	reports []*models.ReportDocument
	pdfPath string
	err     error
	deleted []string
}

func (f *fakeReports) GenerateReport(ctx context.Context, req interfaces.ReportRequest) (*models.ReportResult, error) {
	return f.result, f.err
}
func (f *fakeReports) StartRun(ctx context.Context, req interfaces.ReportRequest) (*models.ReportRun, error) {
	return f.run, f.err
}
func (f *fakeReports) GetRun(ctx context.Context, runID string) (*models.ReportRun, error) {
	return f.run, f.err
}
func (f *fakeReports) ListRuns(ctx context.Context, limit int) ([]*models.ReportRun, error) {
	if f.run == nil {
		return nil, f.err
	}
	return []*models.ReportRun{f.run}, f.err
}
func (f *fakeReports) GetReport(ctx context.Context, reportID string) (*models.ReportDocument, error) {
	return f.report, f.err
}
func (f *fakeReports) ListReports(ctx context.Context, companyCode string) ([]*models.ReportDocument, error) {
	return f.reports, f.err
}
func (f *fakeReports) DeleteReport(ctx context.Context, reportID string) error {
	f.deleted = append(f.deleted, reportID)
	return f.err
}
func (f *fakeReports) ExportReportPDF(ctx context.Context, reportID string) (string, error) {
	return f.pdfPath, f.err
}

// fakeFinData serves one complete-data fixture.
type fakeFinData struct {
	data *models.CompleteData
	err  error
}

func (f *fakeFinData) GetIncomeStatement(ctx context.Context, code, period string) (*models.IncomeStatement, error) {
	return nil, errors.New("not used")
}
func (f *fakeFinData) GetBalanceSheet(ctx context.Context, code, period string) (*models.BalanceSheet, error) {
	return nil, errors.New("not used")
}
func (f *fakeFinData) GetCashFlow(ctx context.Context, code, period string) (*models.CashFlow, error) {
	return nil, errors.New("not used")
}
func (f *fakeFinData) GetHistoricalPeriods(ctx context.Context, code, current string, count int) ([]string, error) {
	return nil, nil
}
func (f *fakeFinData) GetCompleteData(ctx context.Context, code, period string, includePrevious bool) (*models.CompleteData, error) {
	return f.data, f.err
}
func (f *fakeFinData) HealthCheck(ctx context.Context) error { return f.err }

// fakeCompanies is an in-memory CompanyStorage.
type fakeCompanies struct {
	companies []*models.Company
}

func (f *fakeCompanies) UpsertCompany(ctx context.Context, company *models.Company) error {
	f.companies = append(f.companies, company)
	return nil
}
func (f *fakeCompanies) GetCompany(ctx context.Context, code string) (*models.Company, error) {
	for _, c := range f.companies {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, errors.New("not found")
}
func (f *fakeCompanies) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	return f.companies, nil
}
func (f *fakeCompanies) ListCompaniesByIndustry(ctx context.Context, industry string) ([]*models.Company, error) {
	var out []*models.Company
	for _, c := range f.companies {
		if c.Industry == industry {
			out = append(out, c)
		}
	}
	return out, nil
}
func (f *fakeCompanies) DeleteCompany(ctx context.Context, code string) error { return nil }
func (f *fakeCompanies) CountCompanies(ctx context.Context) (int, error) {
	return len(f.companies), nil
}

// healthProbe satisfies the health-checked upstream interfaces.
type healthProbe struct {
	err error
}

func (p *healthProbe) HealthCheck(ctx context.Context) error { return p.err }

// fakeEmbedder wraps healthProbe into an EmbeddingService.
type fakeEmbedder struct{ healthProbe }

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return nil, nil
}
func (f *fakeEmbedder) ModelName() string { return "BAAI/bge-large-zh-v1.5" }
func (f *fakeEmbedder) Dimension() int    { return 1024 }

// fakeVectors wraps healthProbe into a VectorStore.
type fakeVectors struct{ healthProbe }

func (f *fakeVectors) EnsureCollection(ctx context.Context) error { return nil }
func (f *fakeVectors) Insert(ctx context.Context, records []*models.VectorRecord) error {
	return nil
}
func (f *fakeVectors) Search(ctx context.Context, vector []float32, topK int, filter *interfaces.SearchFilter) ([]models.SearchHit, error) {
	return nil, nil
}
func (f *fakeVectors) DeleteByReport(ctx context.Context, reportID string) (int64, error) {
	return 0, nil
}
func (f *fakeVectors) Stats(ctx context.Context) (*interfaces.VectorStoreStats, error) {
	return nil, nil
}
func (f *fakeVectors) Close() error { return nil }

// fakeLLM wraps healthProbe into an LLMService.
type fakeLLM struct{ healthProbe }

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", nil
}
func (f *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", nil
}
func (f *fakeLLM) Provider() string { return "deepseek" }
func (f *fakeLLM) Close() error     { return nil }
