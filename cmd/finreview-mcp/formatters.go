package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/finreview/internal/models"
)

// formatSearchHits formats vector search hits as markdown
func formatSearchHits(query string, hits []models.SearchHit) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\" (%d results)\n\n", query, len(hits)))

	if len(hits) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, hit := range hits {
		sb.WriteString(fmt.Sprintf("### %d. %s %s\n", i+1, hit.CompanyName, hit.ReportPeriod))
		sb.WriteString(fmt.Sprintf("**Section:** %s (chunk %d)\n", hit.ChunkType, hit.ChunkIndex))
		sb.WriteString(fmt.Sprintf("**Score:** %.4f\n\n", hit.Score))

		text := hit.Text
		if len(text) > 600 {
			text = text[:600] + "..."
		}
		sb.WriteString(text)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatReportResult formats the generation envelope and report as markdown
func formatReportResult(result *models.ReportResult) string {
	var sb strings.Builder

	status := "成功"
	if !result.Success {
		status = "失败"
	}
	sb.WriteString(fmt.Sprintf("## %s (%s) %s 财报点评 — %s\n\n", result.CompanyName, result.CompanyCode, result.ReportPeriod, status))
	sb.WriteString(fmt.Sprintf("**质量评分:** %d  **重新生成:** %d 次  **LLM调用:** %d 次  **耗时:** %.1fs\n\n",
		result.QualityScore, result.RegenerationCount, result.LLMCalls, result.ProcessingTime))

	if len(result.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("**错误:** %s\n\n", strings.Join(result.Errors, "; ")))
	}
	if len(result.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("**警告:** %s\n\n", strings.Join(result.Warnings, "; ")))
	}

	if result.Report != "" {
		sb.WriteString("---\n\n")
		sb.WriteString(result.Report)
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatIngestRecord formats an ingest outcome as markdown
func formatIngestRecord(record *models.IngestRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## 入库完成: %s\n\n", record.ReportID))
	sb.WriteString(fmt.Sprintf("**公司:** %s (%s)\n", record.CompanyName, record.CompanyCode))
	sb.WriteString(fmt.Sprintf("**期间:** %s\n", record.ReportPeriod))
	sb.WriteString(fmt.Sprintf("**分块数:** %d  **写入数:** %d  **耗时:** %dms\n", record.ChunkCount, record.Inserted, record.DurationMS))
	return sb.String()
}
