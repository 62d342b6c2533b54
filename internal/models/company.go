package models

import "time"

// Company is one tracked listed company in the catalog.
type Company struct {
	Code      string    `json:"code" badgerhold:"key"` // six-digit A-share code
	Name      string    `json:"name"`
	Industry  string    `json:"industry" badgerhold:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Report run lifecycle states.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ReportRun tracks one asynchronous report generation request.
type ReportRun struct {
	RunID        string     `json:"run_id" badgerhold:"key"` // run_{uuid}
	CompanyName  string     `json:"company_name"`
	CompanyCode  string     `json:"company_code" badgerhold:"index"`
	Industry     string     `json:"industry"`
	ReportPeriod string     `json:"report_period"`
	Status       string     `json:"status" badgerhold:"index"`
	Error        string     `json:"error,omitempty"`
	QualityScore int        `json:"quality_score"`
	ReportID     string     `json:"report_id,omitempty"` // set on completion
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ReportDocument is one archived generated report.
type ReportDocument struct {
	ReportID          string    `json:"report_id" badgerhold:"key"` // {code}_{period}
	CompanyName       string    `json:"company_name"`
	CompanyCode       string    `json:"company_code" badgerhold:"index"`
	ReportPeriod      string    `json:"report_period"`
	Industry          string    `json:"industry"`
	Markdown          string    `json:"markdown"`
	QualityScore      int       `json:"quality_score"`
	RegenerationCount int       `json:"regeneration_count"`
	FilePath          string    `json:"file_path,omitempty"` // exported markdown location
	GeneratedAt       time.Time `json:"generated_at"`
}

// IngestRecord is the stored summary of one ingestion job.
type IngestRecord struct {
	IngestID     string    `json:"ingest_id" badgerhold:"key"` // ing_{uuid}
	ReportID     string    `json:"report_id" badgerhold:"index"`
	CompanyName  string    `json:"company_name"`
	CompanyCode  string    `json:"company_code"`
	ReportPeriod string    `json:"report_period"`
	FilePath     string    `json:"file_path"`
	ChunkCount   int       `json:"chunk_count"`
	Inserted     int       `json:"inserted"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
