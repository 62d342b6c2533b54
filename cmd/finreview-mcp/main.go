package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/finreview/internal/app"
	"github.com/ternarybob/finreview/internal/common"
)

func main() {
	configPath := os.Getenv("FINREVIEW_CONFIG")
	if configPath == "" {
		configPath = "finreview.toml"
	}

	var configFiles []string
	if _, err := os.Stat(configPath); err == nil {
		configFiles = append(configFiles, configPath)
	}
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Background jobs would write to stdio mid-session; keep them off.
	config.Scheduler.Enabled = false

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(context.Background(), config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"finreview",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createSearchChunksTool(), handleSearchChunks(application.Retrieval, logger))
	mcpServer.AddTool(createAnalysisContextTool(), handleAnalysisContext(application.Retrieval, logger))
	mcpServer.AddTool(createFinancialRatiosTool(), handleFinancialRatios(application.FinData, application.Indicators, logger))
	mcpServer.AddTool(createGenerateReportTool(), handleGenerateReport(application.Reports, logger))
	mcpServer.AddTool(createIngestMarkdownTool(), handleIngestMarkdown(application.Ingestion, logger))

	// Blocks on stdio.
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
