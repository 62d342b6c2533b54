package reports

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/ternarybob/finreview/internal/services/indicators"
	"github.com/ternarybob/finreview/internal/services/industry"
	"github.com/ternarybob/finreview/internal/services/prompts"
	"github.com/ternarybob/finreview/internal/workflow"
)

// ---------------------------------------------------------------------
// In-memory storage fakes
// ---------------------------------------------------------------------

type memoryStorage struct {
	mu        sync.Mutex
	companies map[string]*models.Company
	reports   map[string]*models.ReportDocument
	runs      map[string]*models.ReportRun
	ingests   map[string]*models.IngestRecord
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		companies: make(map[string]*models.Company),
		reports:   make(map[string]*models.ReportDocument),
		runs:      make(map[string]*models.ReportRun),
		ingests:   make(map[string]*models.IngestRecord),
	}
}

func (m *memoryStorage) Companies() interfaces.CompanyStorage { return (*memoryCompanies)(m) }
func (m *memoryStorage) Reports() interfaces.ReportStorage    { return (*memoryReports)(m) }
func (m *memoryStorage) Runs() interfaces.RunStorage          { return (*memoryRuns)(m) }
func (m *memoryStorage) Ingests() interfaces.IngestStorage    { return (*memoryIngests)(m) }
func (m *memoryStorage) Close() error                         { return nil }

type memoryCompanies memoryStorage

func (m *memoryCompanies) UpsertCompany(ctx context.Context, company *models.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[company.Code] = company
	return nil
}

func (m *memoryCompanies) GetCompany(ctx context.Context, code string) (*models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if company, ok := m.companies[code]; ok {
		return company, nil
	}
	return nil, common.E(common.KindNotFound, "test", "company not found")
}

func (m *memoryCompanies) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Company, 0, len(m.companies))
	for _, company := range m.companies {
		out = append(out, company)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memoryCompanies) ListCompaniesByIndustry(ctx context.Context, industryCode string) ([]*models.Company, error) {
	all, _ := m.ListCompanies(ctx)
	var out []*models.Company
	for _, company := range all {
		if company.Industry == industryCode {
			out = append(out, company)
		}
	}
	return out, nil
}

func (m *memoryCompanies) DeleteCompany(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.companies, code)
	return nil
}

func (m *memoryCompanies) CountCompanies(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.companies), nil
}

type memoryReports memoryStorage

func (m *memoryReports) SaveReport(ctx context.Context, doc *models.ReportDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[doc.ReportID] = doc
	return nil
}

func (m *memoryReports) GetReport(ctx context.Context, reportID string) (*models.ReportDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.reports[reportID]; ok {
		return doc, nil
	}
	return nil, common.E(common.KindNotFound, "test", "report not found")
}

func (m *memoryReports) ListReports(ctx context.Context) ([]*models.ReportDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ReportDocument, 0, len(m.reports))
	for _, doc := range m.reports {
		out = append(out, doc)
	}
	return out, nil
}

func (m *memoryReports) ListReportsByCompany(ctx context.Context, companyCode string) ([]*models.ReportDocument, error) {
	all, _ := m.ListReports(ctx)
	var out []*models.ReportDocument
	for _, doc := range all {
		if doc.CompanyCode == companyCode {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *memoryReports) DeleteReport(ctx context.Context, reportID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, reportID)
	return nil
}

func (m *memoryReports) CountReports(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports), nil
}

type memoryRuns memoryStorage

func (m *memoryRuns) SaveRun(ctx context.Context, run *models.ReportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	m.runs[run.RunID] = &copied
	return nil
}

func (m *memoryRuns) GetRun(ctx context.Context, runID string) (*models.ReportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		copied := *run
		return &copied, nil
	}
	return nil, common.E(common.KindNotFound, "test", "run not found")
}

func (m *memoryRuns) ListRuns(ctx context.Context, limit int) ([]*models.ReportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ReportRun, 0, len(m.runs))
	for _, run := range m.runs {
		copied := *run
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryRuns) ListRunsByStatus(ctx context.Context, status string) ([]*models.ReportRun, error) {
	all, _ := m.ListRuns(ctx, 0)
	var out []*models.ReportRun
	for _, run := range all {
		if run.Status == status {
			out = append(out, run)
		}
	}
	return out, nil
}

func (m *memoryRuns) DeleteRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
	return nil
}

type memoryIngests memoryStorage

func (m *memoryIngests) SaveIngest(ctx context.Context, record *models.IngestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingests[record.IngestID] = record
	return nil
}

func (m *memoryIngests) ListIngests(ctx context.Context, limit int) ([]*models.IngestRecord, error) {
	return nil, nil
}

func (m *memoryIngests) ListIngestsByReport(ctx context.Context, reportID string) ([]*models.IngestRecord, error) {
	return nil, nil
}

func (m *memoryIngests) DeleteIngestsByReport(ctx context.Context, reportID string) error {
	return nil
}

// ---------------------------------------------------------------------
// Workflow dependency fakes
// ---------------------------------------------------------------------

type stubFinData struct {
	data *models.CompleteData
	err  error
}

func (f *stubFinData) GetIncomeStatement(ctx context.Context, code, period string) (*models.IncomeStatement, error) {
	return nil, nil
}
func (f *stubFinData) GetBalanceSheet(ctx context.Context, code, period string) (*models.BalanceSheet, error) {
	return nil, nil
}
func (f *stubFinData) GetCashFlow(ctx context.Context, code, period string) (*models.CashFlow, error) {
	return nil, nil
}
func (f *stubFinData) GetHistoricalPeriods(ctx context.Context, code, current string, count int) ([]string, error) {
	return nil, nil
}
func (f *stubFinData) GetCompleteData(ctx context.Context, code, period string, includePrevious bool) (*models.CompleteData, error) {
	return f.data, f.err
}
func (f *stubFinData) HealthCheck(ctx context.Context) error { return nil }

type stubLLM struct {
	response string
	err      error
}

func (f *stubLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return f.response, f.err
}
func (f *stubLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}
func (f *stubLLM) Provider() string                      { return "stub" }
func (f *stubLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *stubLLM) Close() error                          { return nil }

type stubRetrieval struct{}

func (f *stubRetrieval) RetrieveByPeriod(ctx context.Context, company, period string) ([]models.SearchHit, error) {
	return nil, nil
}
func (f *stubRetrieval) RetrieveByCompany(ctx context.Context, company string, topK int) ([]models.SearchHit, error) {
	return nil, nil
}
func (f *stubRetrieval) RetrieveHistorical(ctx context.Context, company, current string, numPeriods int) ([]interfaces.PeriodHits, error) {
	return nil, nil
}
func (f *stubRetrieval) RetrieveSimilar(ctx context.Context, query string, topK int) ([]models.SearchHit, error) {
	return nil, nil
}
func (f *stubRetrieval) Search(ctx context.Context, query string, topK int, filter *interfaces.SearchFilter) ([]models.SearchHit, error) {
	return nil, nil
}
func (f *stubRetrieval) GetAnalysisContext(ctx context.Context, company, period, query string) (string, error) {
	return "=== 当前期财报 ===\n营收稳健。", nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (f *recordingEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}
func (f *recordingEvents) Unsubscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}
func (f *recordingEvents) Publish(ctx context.Context, event interfaces.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}
func (f *recordingEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return f.Publish(ctx, event)
}
func (f *recordingEvents) Close() error { return nil }

func (f *recordingEvents) byType(eventType interfaces.EventType) []interfaces.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []interfaces.Event
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type stubIngestion struct {
	deleted []string
}

func (f *stubIngestion) IngestReport(ctx context.Context, req interfaces.IngestRequest) (*models.IngestRecord, error) {
	return nil, nil
}
func (f *stubIngestion) BatchIngest(ctx context.Context, reqs []interfaces.IngestRequest) []interfaces.BatchItemResult {
	return nil
}
func (f *stubIngestion) DeleteReport(ctx context.Context, reportID string) (int64, error) {
	f.deleted = append(f.deleted, reportID)
	return 3, nil
}
func (f *stubIngestion) Stats(ctx context.Context) (*interfaces.VectorStoreStats, error) {
	return nil, nil
}

// ---------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------

func passingReport() string {
	return "## 核心结论\n营收56.32亿元，同比增长5.21%。\n" +
		"## 分项分析\n毛利率62.15%，研发费用率18.40%。\n" +
		"## 综合判断\n合同负债增长8.4%。\n" +
		"## 投资建议\n关注订单节奏。\n" +
		strings.Repeat("补充。", 200)
}

func fixtureData() *models.CompleteData {
	return &models.CompleteData{
		FinancialData: models.FinancialData{
			IncomeStatement: &models.IncomeStatement{
				Revenue:         models.Float(5.6e9),
				Cost:            models.Float(2.1e9),
				NetProfitParent: models.Float(0.8e9),
			},
			BalanceSheet: &models.BalanceSheet{
				TotalAssets: models.Float(40e9),
				TotalEquity: models.Float(25e9),
			},
		},
		PreviousData: &models.FinancialData{
			IncomeStatement: &models.IncomeStatement{
				Revenue:         models.Float(5.2e9),
				NetProfitParent: models.Float(0.75e9),
			},
		},
	}
}

type testEnv struct {
	service   *Service
	storage   *memoryStorage
	events    *recordingEvents
	ingestion *stubIngestion
	outputDir string
}

func newTestEnv(t *testing.T, findata *stubFinData, llm *stubLLM) *testEnv {
	t.Helper()
	logger := arbor.NewLogger()

	store, err := prompts.NewStore(common.PromptsConfig{}, logger)
	require.NoError(t, err)

	nodes := workflow.NewNodes(workflow.Dependencies{
		FinData:    findata,
		Indicators: indicators.NewService(logger),
		Retrieval:  &stubRetrieval{},
		LLM:        llm,
		Industries: industry.NewService(logger),
		Prompts:    store,
		Config:     common.WorkflowConfig{MaxRegenerations: 2, QualityThreshold: 60, MaxSteps: 32},
		Logger:     logger,
	})

	storage := newMemoryStorage()
	require.NoError(t, storage.Companies().UpsertCompany(context.Background(), &models.Company{
		Code: "601360", Name: "三六零", Industry: "computer",
	}))

	events := &recordingEvents{}
	ingestion := &stubIngestion{}
	outputDir := t.TempDir()

	service, err := NewService(Options{
		Nodes:     nodes,
		Storage:   storage,
		Ingestion: ingestion,
		Events:    events,
		Config:    common.ReportsConfig{OutputDir: outputDir},
		Logger:    logger,
	})
	require.NoError(t, err)

	return &testEnv{service: service, storage: storage, events: events, ingestion: ingestion, outputDir: outputDir}
}

// ---------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------

func TestResolveRequestByName(t *testing.T) {
	env := newTestEnv(t, &stubFinData{data: fixtureData()}, &stubLLM{response: passingReport()})

	state, err := env.service.resolveRequest(context.Background(), interfaces.ReportRequest{
		CompanyName:  "三六零",
		ReportPeriod: "2024Q3",
	})
	require.NoError(t, err)
	assert.Equal(t, "601360", state.CompanyCode)
	assert.Equal(t, "computer", state.Industry)
	assert.Equal(t, "2024-09-30", state.ReportPeriod)
}

func TestResolveRequestByCode(t *testing.T) {
	env := newTestEnv(t, &stubFinData{data: fixtureData()}, &stubLLM{response: passingReport()})

	state, err := env.service.resolveRequest(context.Background(), interfaces.ReportRequest{
		CompanyCode:  "601360.SH",
		ReportPeriod: "20240930",
	})
	require.NoError(t, err)
	assert.Equal(t, "三六零", state.CompanyName)
	assert.Equal(t, "601360", state.CompanyCode)
	assert.Equal(t, "computer", state.Industry)
}

func TestResolveRequestErrors(t *testing.T) {
	env := newTestEnv(t, &stubFinData{data: fixtureData()}, &stubLLM{response: passingReport()})
	ctx := context.Background()

	_, err := env.service.resolveRequest(ctx, interfaces.ReportRequest{ReportPeriod: "2024Q3"})
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))

	_, err = env.service.resolveRequest(ctx, interfaces.ReportRequest{CompanyName: "三六零"})
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))

	_, err = env.service.resolveRequest(ctx, interfaces.ReportRequest{CompanyName: "未知公司", ReportPeriod: "2024Q3"})
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	// Untracked code without an industry cannot run the workflow.
	_, err = env.service.resolveRequest(ctx, interfaces.ReportRequest{CompanyCode: "000001", ReportPeriod: "2024Q3"})
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))

	_, err = env.service.resolveRequest(ctx, interfaces.ReportRequest{CompanyCode: "abc", ReportPeriod: "2024Q3"})
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
}

func TestGenerateReportArchivesResult(t *testing.T) {
	env := newTestEnv(t, &stubFinData{data: fixtureData()}, &stubLLM{response: passingReport()})
	ctx := context.Background()

	result, err := env.service.GenerateReport(ctx, interfaces.ReportRequest{
		CompanyName:  "三六零",
		ReportPeriod: "2024-09-30",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, passingReport(), result.Report)
	assert.Equal(t, 100, result.QualityScore)

	doc, err := env.service.GetReport(ctx, "601360_2024-09-30")
	require.NoError(t, err)
	assert.Equal(t, passingReport(), doc.Markdown)
	assert.Contains(t, doc.FilePath, "三六零_2024-09-30_财报点评.md")

	content, err := os.ReadFile(doc.FilePath)
	require.NoError(t, err)
	assert.Equal(t, passingReport(), string(content))

	completed := env.events.byType(interfaces.EventReportCompleted)
	require.Len(t, completed, 1)
}

func TestGenerateReportFailureNotArchived(t *testing.T) {
	findata := &stubFinData{err: common.E(common.KindNotFound, "findata", "no rows")}
	env := newTestEnv(t, findata, &stubLLM{response: passingReport()})

	result, err := env.service.GenerateReport(context.Background(), interfaces.ReportRequest{
		CompanyName:  "三六零",
		ReportPeriod: "2024-09-30",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "未找到601360的2024-09-30期财报数据", result.Errors[0])

	_, err = env.service.GetReport(context.Background(), "601360_2024-09-30")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
	assert.Empty(t, env.events.byType(interfaces.EventReportCompleted))
}

func TestGenerateReportDegradedFailureKeepsPartialOutput(t *testing.T) {
	env := newTestEnv(t, &stubFinData{data: fixtureData()}, &stubLLM{err: errors.New("model down")})

	result, err := env.service.GenerateReport(context.Background(), interfaces.ReportRequest{
		CompanyName:  "三六零",
		ReportPeriod: "2024-09-30",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "报告生成失败。", result.Report)
	assert.Equal(t, 2, result.RegenerationCount)
	assert.NotNil(t, result.Indicators)
}

func TestStartRunCompletesAsynchronously(t *testing.T) {
	env := newTestEnv(t, &stubFinData{data: fixtureData()}, &stubLLM{response: passingReport()})
	ctx := context.Background()

	run, err := env.service.StartRun(ctx, interfaces.ReportRequest{
		CompanyName:  "三六零",
		ReportPeriod: "2024Q3",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(run.RunID, "run_"))
	assert.Equal(t, models.RunStatusPending, run.Status)

	require.Eventually(t, func() bool {
		stored, err := env.service.GetRun(ctx, run.RunID)
		return err == nil && stored.Status == models.RunStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := env.service.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "601360_2024-09-30", stored.ReportID)
	assert.Equal(t, 100, stored.QualityScore)
	require.NotNil(t, stored.CompletedAt)
}

func TestStartRunFailureRecordsError(t *testing.T) {
	findata := &stubFinData{err: common.E(common.KindNotFound, "findata", "no rows")}
	env := newTestEnv(t, findata, &stubLLM{})
	ctx := context.Background()

	run, err := env.service.StartRun(ctx, interfaces.ReportRequest{
		CompanyName:  "三六零",
		ReportPeriod: "2024Q3",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := env.service.GetRun(ctx, run.RunID)
		return err == nil && stored.Status == models.RunStatusFailed
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := env.service.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Contains(t, stored.Error, "未找到601360的2024-09-30期财报数据")
}

func TestDeleteReportRemovesVectors(t *testing.T) {
	env := newTestEnv(t, &stubFinData{data: fixtureData()}, &stubLLM{response: passingReport()})
	ctx := context.Background()

	_, err := env.service.GenerateReport(ctx, interfaces.ReportRequest{
		CompanyName:  "三六零",
		ReportPeriod: "2024-09-30",
	})
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteReport(ctx, "601360_2024-09-30"))
	assert.Equal(t, []string{"601360_2024-09-30"}, env.ingestion.deleted)

	_, err = env.service.GetReport(ctx, "601360_2024-09-30")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	// Deleting again reports not_found.
	err = env.service.DeleteReport(ctx, "601360_2024-09-30")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestListReportsByCompany(t *testing.T) {
	env := newTestEnv(t, &stubFinData{data: fixtureData()}, &stubLLM{response: passingReport()})
	ctx := context.Background()

	_, err := env.service.GenerateReport(ctx, interfaces.ReportRequest{
		CompanyName:  "三六零",
		ReportPeriod: "2024-09-30",
	})
	require.NoError(t, err)

	all, err := env.service.ListReports(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	scoped, err := env.service.ListReports(ctx, "601360")
	require.NoError(t, err)
	assert.Len(t, scoped, 1)

	other, err := env.service.ListReports(ctx, "002415")
	require.NoError(t, err)
	assert.Empty(t, other)
}
