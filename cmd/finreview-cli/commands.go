package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/app"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/ternarybob/finreview/internal/services/chunker"
	"github.com/ternarybob/finreview/internal/services/embeddings"
	"github.com/ternarybob/finreview/internal/services/findata"
	"github.com/ternarybob/finreview/internal/services/indicators"
	"github.com/ternarybob/finreview/internal/services/ingestion"
	"github.com/ternarybob/finreview/internal/storage"
)

// loadConfig loads the TOML config named by -config, falling back to
// defaults when the flag is empty and no finreview.toml is present.
func loadConfig(path string) (*common.Config, error) {
	if path == "" {
		if _, err := os.Stat("finreview.toml"); err == nil {
			path = "finreview.toml"
		}
	}
	if path == "" {
		return common.LoadFromFiles()
	}
	return common.LoadFromFiles(path)
}

// cliLogger is quieter than the server logger; warnings still surface.
func cliLogger() arbor.ILogger {
	return arbor.NewLogger().WithLevelFromString("warn")
}

func runChunk(args []string) error {
	fs := flag.NewFlagSet("chunk", flag.ContinueOnError)
	in := fs.String("in", "", "markdown file to chunk (required)")
	out := fs.String("out", "", "output JSON path (default stdout)")
	configPath := fs.String("config", "", "configuration file path")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}
	if *in == "" {
		return usageErrorf("chunk: -in is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}

	svc, err := chunker.NewService(cfg.Chunking, cliLogger())
	if err != nil {
		return err
	}
	chunks, err := svc.ChunkMarkdown(string(content), *in)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return err
	}
	if *out == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("已生成 %d 个分块: %s\n", len(chunks), *out)
	return nil
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	in := fs.String("in", "", "markdown file to ingest (required)")
	name := fs.String("name", "", "company display name (required)")
	code := fs.String("code", "", "six-digit stock code (required)")
	period := fs.String("period", "", "report period, e.g. 2024-09-30 or 2024Q3 (required)")
	configPath := fs.String("config", "", "configuration file path")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}
	if *in == "" || *name == "" || *code == "" || *period == "" {
		return usageErrorf("ingest: -in, -name, -code, and -period are required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := cliLogger()
	ctx := context.Background()

	resolved, err := common.ResolvePeriod(*period)
	if err != nil {
		return err
	}

	manager, err := storage.NewStorageManager(logger, cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	vectors, err := storage.NewVectorStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer vectors.Close()
	if err := vectors.EnsureCollection(ctx); err != nil {
		return err
	}

	chunkSvc, err := chunker.NewService(cfg.Chunking, logger)
	if err != nil {
		return err
	}
	embedder, err := embeddings.NewClient(cfg.Embedding, cfg.Vector.Dimension, logger)
	if err != nil {
		return err
	}

	svc := ingestion.NewService(chunkSvc, embedder, vectors, manager.Ingests(), cfg.Embedding, logger)
	record, err := svc.IngestReport(ctx, interfaces.IngestRequest{
		CompanyName:  *name,
		CompanyCode:  *code,
		ReportPeriod: resolved,
		FilePath:     *in,
	})
	if err != nil {
		return err
	}

	fmt.Printf("入库完成: %s\n", record.ReportID)
	fmt.Printf("  分块数: %d  写入数: %d  耗时: %dms\n", record.ChunkCount, record.Inserted, record.DurationMS)
	return nil
}

func runRatios(args []string) error {
	fs := flag.NewFlagSet("ratios", flag.ContinueOnError)
	code := fs.String("code", "", "six-digit stock code (required)")
	period := fs.String("period", "", "report period (required)")
	reportType := fs.String("type", "", "report type A or B (default from config)")
	configPath := fs.String("config", "", "configuration file path")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}
	if *code == "" || *period == "" {
		return usageErrorf("ratios: -code and -period are required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := cliLogger()

	parsed := common.ParseStockCode(*code)
	if parsed.Code == "" {
		return usageErrorf("ratios: unrecognizable stock code %q", *code)
	}
	resolved, err := common.ResolvePeriod(*period)
	if err != nil {
		return err
	}
	if *reportType == "" {
		*reportType = cfg.FinData.ReportType
	}

	client, err := findata.NewClient(cfg.FinData.BaseURL,
		findata.WithTimeout(time.Duration(cfg.FinData.TimeoutSec)*time.Second),
		findata.WithReportType(*reportType),
		findata.WithRateLimit(cfg.FinData.RatePerSecond),
		findata.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	data, err := client.GetCompleteData(context.Background(), parsed.Code, resolved, true)
	if err != nil {
		return err
	}

	svc := indicators.NewService(logger)
	var prevBalance *models.BalanceSheet
	if data.PreviousData != nil {
		prevBalance = data.PreviousData.BalanceSheet
	}
	report := svc.ComputeRatios(data.IncomeStatement, data.BalanceSheet, data.CashFlow, prevBalance, resolved)

	fmt.Printf("%s %s 财务比率\n\n", parsed.Code, resolved)
	fmt.Println(svc.FormatRatios(report))
	return nil
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	name := fs.String("name", "", "company display name")
	code := fs.String("code", "", "six-digit stock code")
	industry := fs.String("industry", "", "industry code for untracked companies")
	period := fs.String("period", "", "report period (required)")
	outDir := fs.String("out", "", "report output directory (overrides config)")
	configPath := fs.String("config", "", "configuration file path")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}
	if *name == "" && *code == "" {
		return usageErrorf("generate: -name or -code is required")
	}
	if *period == "" {
		return usageErrorf("generate: -period is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.Reports.OutputDir = *outDir
	}
	cfg.Scheduler.Enabled = false

	logger := cliLogger()
	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := application.Reports.GenerateReport(ctx, interfaces.ReportRequest{
		CompanyName:  *name,
		CompanyCode:  *code,
		Industry:     *industry,
		ReportPeriod: *period,
	})
	if err != nil {
		return err
	}

	fmt.Printf("公司: %s (%s)  期间: %s\n", result.CompanyName, result.CompanyCode, result.ReportPeriod)
	fmt.Printf("质量评分: %d  重新生成: %d 次  LLM调用: %d 次  耗时: %.1fs\n",
		result.QualityScore, result.RegenerationCount, result.LLMCalls, result.ProcessingTime)
	if len(result.Warnings) > 0 {
		fmt.Printf("警告: %s\n", strings.Join(result.Warnings, "; "))
	}
	if !result.Success {
		return fmt.Errorf("生成失败: %s", strings.Join(result.Errors, "; "))
	}

	path := filepath.Join(cfg.Reports.OutputDir,
		fmt.Sprintf("%s_%s_财报点评.md", result.CompanyName, result.ReportPeriod))
	fmt.Printf("报告已写入: %s\n", path)
	return nil
}

func runDeleteReport(args []string) error {
	fs := flag.NewFlagSet("delete-report", flag.ContinueOnError)
	reportID := fs.String("id", "", "report id, e.g. 601360_2024-09-30 (required)")
	configPath := fs.String("config", "", "configuration file path")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}
	if *reportID == "" {
		return usageErrorf("delete-report: -id is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := cliLogger()
	ctx := context.Background()

	manager, err := storage.NewStorageManager(logger, cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	vectors, err := storage.NewVectorStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer vectors.Close()

	chunkSvc, err := chunker.NewService(cfg.Chunking, logger)
	if err != nil {
		return err
	}
	embedder, err := embeddings.NewClient(cfg.Embedding, cfg.Vector.Dimension, logger)
	if err != nil {
		return err
	}

	svc := ingestion.NewService(chunkSvc, embedder, vectors, manager.Ingests(), cfg.Embedding, logger)
	deleted, err := svc.DeleteReport(ctx, *reportID)
	if err != nil {
		return err
	}

	fmt.Printf("已删除 %s 的 %d 条向量记录\n", *reportID, deleted)
	return nil
}
