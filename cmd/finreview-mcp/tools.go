package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchChunksTool returns the search_chunks tool definition
func createSearchChunksTool() mcp.Tool {
	return mcp.NewTool("search_chunks",
		mcp.WithDescription("Semantic search over ingested A-share earnings filings (vector similarity)"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language query, Chinese or English"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum results to return (default: 5, max: 50)"),
		),
		mcp.WithString("company_name",
			mcp.Description("Restrict to one company, e.g. 三六零"),
		),
		mcp.WithString("report_period",
			mcp.Description("Restrict to one period: 2024-09-30, 20240930, or 2024Q3"),
		),
		mcp.WithString("chunk_type",
			mcp.Description("Filter by section: summary, business_overview, management_discussion, financial_analysis, cashflow"),
		),
	)
}

// createAnalysisContextTool returns the analysis_context tool definition
func createAnalysisContextTool() mcp.Tool {
	return mcp.NewTool("analysis_context",
		mcp.WithDescription("Assemble the sectioned analysis context for one company and period: current filing, historical comparison, and related reference material"),
		mcp.WithString("company_name",
			mcp.Required(),
			mcp.Description("Company display name, e.g. 三六零"),
		),
		mcp.WithString("report_period",
			mcp.Required(),
			mcp.Description("Report period: 2024-09-30, 20240930, or 2024Q3"),
		),
		mcp.WithString("query",
			mcp.Description("Optional focus query for the reference-material section"),
		),
	)
}

// createFinancialRatiosTool returns the financial_ratios tool definition
func createFinancialRatiosTool() mcp.Tool {
	return mcp.NewTool("financial_ratios",
		mcp.WithDescription("Fetch the three financial statements and compute the ratio report (盈利能力/营运效率/偿债能力/现金质量/杜邦分析)"),
		mcp.WithString("stock_code",
			mcp.Required(),
			mcp.Description("Stock code: 601360, 601360.SH, or sh601360"),
		),
		mcp.WithString("report_period",
			mcp.Required(),
			mcp.Description("Report period: 2024-09-30, 20240930, or 2024Q3"),
		),
	)
}

// createGenerateReportTool returns the generate_report tool definition
func createGenerateReportTool() mcp.Tool {
	return mcp.NewTool("generate_report",
		mcp.WithDescription("Run the full earnings-review workflow and return the generated markdown report with its quality envelope"),
		mcp.WithString("company_name",
			mcp.Description("Company display name (this or company_code is required)"),
		),
		mcp.WithString("company_code",
			mcp.Description("Six-digit stock code (this or company_name is required)"),
		),
		mcp.WithString("report_period",
			mcp.Required(),
			mcp.Description("Report period: 2024-09-30, 20240930, or 2024Q3"),
		),
		mcp.WithString("industry",
			mcp.Description("Industry code for companies not in the catalog"),
		),
	)
}

// createIngestMarkdownTool returns the ingest_markdown tool definition
func createIngestMarkdownTool() mcp.Tool {
	return mcp.NewTool("ingest_markdown",
		mcp.WithDescription("Chunk, embed, and store a markdown earnings filing in the vector store"),
		mcp.WithString("company_name",
			mcp.Required(),
			mcp.Description("Company display name"),
		),
		mcp.WithString("company_code",
			mcp.Required(),
			mcp.Description("Six-digit stock code"),
		),
		mcp.WithString("report_period",
			mcp.Required(),
			mcp.Description("Report period: 2024-09-30, 20240930, or 2024Q3"),
		),
		mcp.WithString("markdown_path",
			mcp.Description("Path to the markdown filing (this or markdown_text is required)"),
		),
		mcp.WithString("markdown_text",
			mcp.Description("Inline markdown content (this or markdown_path is required)"),
		),
	)
}
