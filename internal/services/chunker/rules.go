package chunker

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/models"
)

// ClassificationRule maps one chunk type to the keywords that select it.
// Rules are evaluated in order; the first keyword hit wins.
type ClassificationRule struct {
	Type     string   `yaml:"type" json:"type"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// DefaultRules returns the built-in classification order for A-share
// filings. Broad buckets come after narrow ones so 财务状况 beats 财务 via
// rule position, not keyword length.
func DefaultRules() []ClassificationRule {
	return []ClassificationRule{
		{Type: models.ChunkTypeManagementDiscussion, Keywords: []string{"管理层讨论", "经营情况", "分析", "讨论与分析"}},
		{Type: models.ChunkTypeFinancialAnalysis, Keywords: []string{"财务状况", "利润", "成本", "费用", "毛利", "收入", "财务"}},
		{Type: models.ChunkTypeCashflow, Keywords: []string{"现金流", "经营活动产生", "投资活动", "筹资活动"}},
		{Type: models.ChunkTypeRisk, Keywords: []string{"风险", "重大事项", "诉讼", "承诺", "不确定性"}},
		{Type: models.ChunkTypeGovernance, Keywords: []string{"治理", "董事会", "监事会", "内控", "审计"}},
		{Type: models.ChunkTypeBusinessOverview, Keywords: []string{"主营业务", "行业情况", "产品", "市场", "区域"}},
		{Type: models.ChunkTypeSummary, Keywords: []string{"重要提示", "摘要"}},
		{Type: models.ChunkTypeNotes, Keywords: []string{"附注", "补充资料"}},
	}
}

type rulesFile struct {
	Rules []ClassificationRule `yaml:"rules"`
}

// LoadRules reads a classification rule file, replacing the built-in set.
func LoadRules(path string) ([]ClassificationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.Wrap(common.KindNotFound, "chunker.rules", err)
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, common.Wrap(common.KindInvalidInput, "chunker.rules", err)
	}
	if len(rf.Rules) == 0 {
		return nil, common.E(common.KindInvalidInput, "chunker.rules", "rule file defines no rules")
	}
	return rf.Rules, nil
}
