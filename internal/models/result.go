package models

// ReportResult is the envelope returned for a completed report run.
// Success is true exactly when no error was recorded; warnings alone do not
// fail a run.
type ReportResult struct {
	Success           bool          `json:"success"`
	CompanyName       string        `json:"company_name"`
	CompanyCode       string        `json:"company_code"`
	Industry          string        `json:"industry"`
	ReportPeriod      string        `json:"report_period"`
	Report            string        `json:"report"`
	Indicators        *IndicatorSet `json:"indicators,omitempty"`
	QualityScore      int           `json:"quality_score"`
	RegenerationCount int           `json:"regeneration_count"`
	LLMCalls          int           `json:"llm_calls"`
	ToolsCalled       []string      `json:"tools_called,omitempty"`
	ProcessingSteps   []string      `json:"processing_steps,omitempty"`
	ProcessingTime    float64       `json:"processing_time"` // seconds
	Errors            []string      `json:"errors,omitempty"`
	Warnings          []string      `json:"warnings,omitempty"`
}

// ResultFromState collapses a finished workflow state into the result
// envelope.
func ResultFromState(s *ReportState, processingTime float64) *ReportResult {
	return &ReportResult{
		Success:           len(s.Errors) == 0,
		CompanyName:       s.CompanyName,
		CompanyCode:       s.CompanyCode,
		Industry:          s.Industry,
		ReportPeriod:      s.ReportPeriod,
		Report:            s.Report,
		Indicators:        s.Indicators,
		QualityScore:      s.QualityScore,
		RegenerationCount: s.RegenerationCount,
		LLMCalls:          s.LLMCalls,
		ToolsCalled:       s.ToolsCalled,
		ProcessingSteps:   s.ProcessingSteps,
		ProcessingTime:    processingTime,
		Errors:            s.Errors,
		Warnings:          s.Warnings,
	}
}
