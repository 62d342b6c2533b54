package models

import "fmt"

const (
	// ChunkTypeSummary marks 重要提示/摘要 sections
	ChunkTypeSummary = "summary"
	// ChunkTypeBusinessOverview marks 主营业务/行业情况 sections
	ChunkTypeBusinessOverview = "business_overview"
	// ChunkTypeManagementDiscussion marks 管理层讨论与分析 sections
	ChunkTypeManagementDiscussion = "management_discussion"
	// ChunkTypeFinancialAnalysis marks 财务状况/利润 sections
	ChunkTypeFinancialAnalysis = "financial_analysis"
	// ChunkTypeCashflow marks 现金流 sections
	ChunkTypeCashflow = "cashflow"
	// ChunkTypeRisk marks 风险/重大事项 sections
	ChunkTypeRisk = "risk"
	// ChunkTypeGovernance marks 治理/董事会 sections
	ChunkTypeGovernance = "governance"
	// ChunkTypeNotes marks 附注/补充资料 sections
	ChunkTypeNotes = "notes"
	// ChunkTypeTable marks chunks holding a single protected HTML table
	ChunkTypeTable = "table"
	// ChunkTypeOther is the fallback classification
	ChunkTypeOther = "other"
)

// Persisted field byte limits. Text is truncated on a codepoint boundary
// before storage, never mid-rune.
const (
	MaxChunkIDBytes   = 128
	MaxChunkTextBytes = 8192
	MaxTitleBytes     = 512
	MaxFilePathBytes  = 256
)

// Chunk is one retrieval unit produced by the markdown chunker.
// ChunkText already includes the heading path prefix.
type Chunk struct {
	ChunkID     string   `json:"chunk_id"`    // ck_{index}
	ChunkIndex  int      `json:"chunk_index"` // 0-based, dense per report
	ChunkText   string   `json:"chunk_text"`
	ChunkLength int      `json:"chunk_length"` // rune count of ChunkText
	TitlePath   []string `json:"title_path"`   // heading stack top-down; not persisted to the vector store
	Title       string   `json:"title"`        // innermost heading, "" at document top level
	TitleLevel  int      `json:"title_level"`  // 1-6, 0 when no heading applies
	ChunkType   string   `json:"chunk_type"`
	CreatedAt   int64    `json:"created_at"` // unix seconds
	FilePath    string   `json:"file_path"`
}

// VectorRecord is the persisted row in the vector collection.
type VectorRecord struct {
	ChunkID      string    `json:"chunk_id"`
	Embedding    []float32 `json:"-"`
	ChunkText    string    `json:"chunk_text"`
	ReportID     string    `json:"report_id"`
	CompanyName  string    `json:"company_name"`
	CompanyCode  string    `json:"company_code"`
	ReportPeriod string    `json:"report_period"`
	ChunkType    string    `json:"chunk_type"`
	Title        string    `json:"title"`
	ChunkIndex   int64     `json:"chunk_index"`
	PageNumber   int64     `json:"page_number"` // -1 when unknown
	FilePath     string    `json:"file_path"`
	CreatedAt    int64     `json:"created_at"`
}

// SearchHit is one scored vector search result. Hits are ordered by score
// descending; equal scores fall back to ascending chunk index.
type SearchHit struct {
	ChunkID      string  `json:"chunk_id"`
	ReportID     string  `json:"report_id"`
	CompanyName  string  `json:"company_name"`
	CompanyCode  string  `json:"company_code"`
	ReportPeriod string  `json:"report_period"`
	ChunkType    string  `json:"chunk_type"`
	ChunkIndex   int64   `json:"chunk_index"`
	Text         string  `json:"text"`
	Score        float32 `json:"score"`
}

// MakeReportID composes the report scope key used across the vector store
// and the report archive.
func MakeReportID(companyCode, reportPeriod string) string {
	return fmt.Sprintf("%s_%s", companyCode, reportPeriod)
}

// ChunkIDForIndex returns the chunker-assigned id for a chunk position.
func ChunkIDForIndex(index int) string {
	return fmt.Sprintf("ck_%d", index)
}

// MakeChunkKey composes the globally unique vector row key from the report
// scope and the chunker-assigned chunk id. Ingesting the same report twice
// produces the same keys, so re-ingest overwrites instead of duplicating.
func MakeChunkKey(reportID, chunkID string) string {
	return fmt.Sprintf("%s_%s", reportID, chunkID)
}
