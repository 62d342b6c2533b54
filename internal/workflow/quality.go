package workflow

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/finreview/internal/common"
)

var numericTokenRegex = regexp.MustCompile(`\d+\.?\d*%?`)

// requiredSections are the chapters every report must carry.
var requiredSections = []string{"核心结论", "分项分析", "综合判断", "投资建议"}

const (
	minReportLength       = 500
	minNumericTokens      = 5
	shortReportPenalty    = 20
	missingSectionPenalty = 15
	dataPenalty           = 10
)

// ScoreReport rates a generated report on a 0-100 scale. An empty report
// scores zero outright.
func ScoreReport(report string) (int, []string) {
	if report == "" {
		return 0, nil
	}

	score := 100
	var issues []string

	if utf8.RuneCountInString(report) < minReportLength {
		issues = append(issues, "报告过短")
		score -= shortReportPenalty
	}

	for _, section := range requiredSections {
		if !strings.Contains(report, section) {
			issues = append(issues, fmt.Sprintf("缺少%s章节", section))
			score -= missingSectionPenalty
		}
	}

	if len(numericTokenRegex.FindAllString(report, minNumericTokens)) < minNumericTokens {
		issues = append(issues, "报告中数据引用不足")
		score -= dataPenalty
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, issues
}

// ShouldRegenerate decides whether the report goes back through generation.
// An empty report never regenerates; it failed structurally, not textually.
func ShouldRegenerate(report string, score, regenerationCount int, cfg common.WorkflowConfig) bool {
	if report == "" {
		return false
	}
	threshold := cfg.QualityThreshold
	if threshold <= 0 {
		threshold = 60
	}
	maxRegenerations := cfg.MaxRegenerations
	if maxRegenerations < 0 {
		maxRegenerations = 0
	}
	return score < threshold && regenerationCount < maxRegenerations
}
