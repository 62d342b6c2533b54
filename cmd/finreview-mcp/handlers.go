package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleSearchChunks implements the search_chunks tool
func handleSearchChunks(retrieval interfaces.RetrievalService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return textResult("Error: query parameter is required"), nil
		}

		topK := request.GetInt("top_k", 5)
		if topK > 50 {
			topK = 50
		}

		var filter *interfaces.SearchFilter
		company := request.GetString("company_name", "")
		period := request.GetString("report_period", "")
		chunkType := request.GetString("chunk_type", "")
		if company != "" || period != "" || chunkType != "" {
			filter = &interfaces.SearchFilter{
				CompanyName:  company,
				ReportPeriod: period,
				ChunkType:    chunkType,
			}
		}

		hits, err := retrieval.Search(ctx, query, topK, filter)
		if err != nil {
			logger.Error().Err(err).Msg("Search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		return textResult(formatSearchHits(query, hits)), nil
	}
}

// handleAnalysisContext implements the analysis_context tool
func handleAnalysisContext(retrieval interfaces.RetrievalService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company, err := request.RequireString("company_name")
		if err != nil || company == "" {
			return textResult("Error: company_name parameter is required"), nil
		}
		period, err := request.RequireString("report_period")
		if err != nil || period == "" {
			return textResult("Error: report_period parameter is required"), nil
		}
		resolved, err := common.ResolvePeriod(period)
		if err != nil {
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}

		query := request.GetString("query", "")

		contextText, err := retrieval.GetAnalysisContext(ctx, company, resolved, query)
		if err != nil {
			logger.Error().Err(err).Str("company", company).Msg("GetAnalysisContext failed")
			return textResult(fmt.Sprintf("Context error: %v", err)), nil
		}
		if contextText == "" {
			return textResult(fmt.Sprintf("No ingested filings found for %s %s.", company, resolved)), nil
		}

		return textResult(contextText), nil
	}
}

// handleFinancialRatios implements the financial_ratios tool
func handleFinancialRatios(findata interfaces.FinancialDataService, indicators interfaces.IndicatorService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawCode, err := request.RequireString("stock_code")
		if err != nil || rawCode == "" {
			return textResult("Error: stock_code parameter is required"), nil
		}
		code := common.ParseStockCode(rawCode)
		if code.Code == "" {
			return textResult(fmt.Sprintf("Error: unrecognizable stock code %q", rawCode)), nil
		}

		period, err := request.RequireString("report_period")
		if err != nil || period == "" {
			return textResult("Error: report_period parameter is required"), nil
		}
		resolved, err := common.ResolvePeriod(period)
		if err != nil {
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}

		data, err := findata.GetCompleteData(ctx, code.Code, resolved, true)
		if err != nil {
			logger.Error().Err(err).Str("stock_code", code.Code).Msg("GetCompleteData failed")
			return textResult(fmt.Sprintf("Data service error: %v", err)), nil
		}

		var prevBalance *models.BalanceSheet
		if data.PreviousData != nil {
			prevBalance = data.PreviousData.BalanceSheet
		}
		report := indicators.ComputeRatios(data.IncomeStatement, data.BalanceSheet, data.CashFlow, prevBalance, resolved)

		text := fmt.Sprintf("## %s %s 财务比率\n\n%s", code.Code, resolved, indicators.FormatRatios(report))
		return textResult(text), nil
	}
}

// handleGenerateReport implements the generate_report tool
func handleGenerateReport(reports interfaces.ReportService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := request.GetString("company_name", "")
		code := request.GetString("company_code", "")
		if name == "" && code == "" {
			return textResult("Error: company_name or company_code parameter is required"), nil
		}
		period, err := request.RequireString("report_period")
		if err != nil || period == "" {
			return textResult("Error: report_period parameter is required"), nil
		}

		result, err := reports.GenerateReport(ctx, interfaces.ReportRequest{
			CompanyName:  name,
			CompanyCode:  code,
			Industry:     request.GetString("industry", ""),
			ReportPeriod: period,
		})
		if err != nil {
			logger.Error().Err(err).Str("company", name).Msg("GenerateReport failed")
			return textResult(fmt.Sprintf("Generation error: %v", err)), nil
		}

		return textResult(formatReportResult(result)), nil
	}
}

// handleIngestMarkdown implements the ingest_markdown tool
func handleIngestMarkdown(ingestion interfaces.IngestionService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("company_name")
		if err != nil || name == "" {
			return textResult("Error: company_name parameter is required"), nil
		}
		code, err := request.RequireString("company_code")
		if err != nil || code == "" {
			return textResult("Error: company_code parameter is required"), nil
		}
		period, err := request.RequireString("report_period")
		if err != nil || period == "" {
			return textResult("Error: report_period parameter is required"), nil
		}
		resolved, err := common.ResolvePeriod(period)
		if err != nil {
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}

		path := request.GetString("markdown_path", "")
		text := request.GetString("markdown_text", "")
		if path == "" && text == "" {
			return textResult("Error: markdown_path or markdown_text parameter is required"), nil
		}

		record, err := ingestion.IngestReport(ctx, interfaces.IngestRequest{
			CompanyName:  name,
			CompanyCode:  code,
			ReportPeriod: resolved,
			FilePath:     path,
			Content:      text,
		})
		if err != nil {
			logger.Error().Err(err).Str("company", name).Msg("IngestReport failed")
			return textResult(fmt.Sprintf("Ingest error: %v", err)), nil
		}

		return textResult(formatIngestRecord(record)), nil
	}
}
