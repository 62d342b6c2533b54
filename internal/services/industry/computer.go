package industry

import "github.com/ternarybob/finreview/internal/models"

// ComputerProfile returns the built-in 计算机 (TMT) analysis profile.
// Revenue growth dominates the read in this sector; profit growth is
// secondary, expense ratios are leading indicators, and contract
// liabilities or inventory carry the business-model signal.
func ComputerProfile() *models.IndustryProfile {
	return &models.IndustryProfile{
		Code:        "computer",
		Name:        "计算机",
		Description: "TMT高风险偏好板块，以成长性和高估值为特征",
		Characteristics: []models.IndustryCharacteristic{
			{Name: "成长性", Description: "属于TMT高风偏板块，成长性和想象空间显著影响估值"},
			{Name: "高估值", Description: "估值倍数相比传统行业偏高，甚至采用终局估值法"},
			{Name: "业绩不可预测", Description: "业绩可预测性差，主观调节能力强，不适用传统行业的细拆报表预测方法"},
		},
		Indicators: []models.IndicatorSpec{
			{
				Key:         "revenue_growth",
				DisplayName: "营业收入增速",
				Priority:    models.PriorityCore,
				Description: "最直接影响股价的核心指标，反映公司成长性",
				Unit:        "%",
				DBFields:    []string{"b001101000", "b001101000_prev"},
			},
			{
				Key:         "segment_revenue_growth",
				DisplayName: "细分板块收入增速",
				Priority:    models.PriorityCore,
				Description: "某些关键业务板块的增速可能是股价决定因素",
				Unit:        "%",
			},
			{
				Key:         "net_profit_growth",
				DisplayName: "净利润增速",
				Priority:    models.PriorityCore,
				Description: "次要核心指标，重要性弱于收入增速",
				Unit:        "%",
				DBFields:    []string{"b002000000", "b002000000_prev"},
			},
			{
				Key:         "gross_margin",
				DisplayName: "毛利率",
				Priority:    models.PriorityAuxiliary,
				Description: "反映增速的质量和健康程度，与收入增速结合判断",
				Unit:        "%",
				DBFields:    []string{"b001101000", "b001201000"},
			},
			{
				Key:         "rd_expense_ratio",
				DisplayName: "研发费用率",
				Priority:    models.PriorityAuxiliary,
				Description: "增速/战略的先导性指标，造假程度低",
				Unit:        "%",
				DBFields:    []string{"b001216000", "b001101000"},
			},
			{
				Key:         "sales_expense_ratio",
				DisplayName: "销售费用率",
				Priority:    models.PriorityAuxiliary,
				Description: "反映商务费用或投流费用，是收入增速的重要指标",
				Unit:        "%",
				DBFields:    []string{"b001209000", "b001101000"},
			},
			{
				Key:         "contract_liability_change",
				DisplayName: "合同负债变化",
				Priority:    models.PrioritySpecific,
				Description: "对云计算等订阅制公司，反映未确认收入，有很强的增长先导性",
				Unit:        "%",
				DBFields:    []string{"a002128000", "a002128000_prev"},
			},
			{
				Key:         "inventory_change",
				DisplayName: "存货季度环比变化",
				Priority:    models.PrioritySpecific,
				Description: "对算力/服务器公司，反映未确认收入的硬件产品，是收入先导性指标",
				Unit:        "元",
				DBFields:    []string{"a001123000", "a001123000_prev"},
			},
		},
	}
}
