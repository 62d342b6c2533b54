package prompts

// Template names. Override files in the configured prompt directory use
// these names with a .txt or .md extension.
const (
	TemplateSystem           = "system"
	TemplateCoreAnalysis     = "core_analysis"
	TemplateAuxiliary        = "auxiliary_analysis"
	TemplateSpecificAnalysis = "specific_analysis"
	TemplateReport           = "report"
)

const defaultSystemTemplate = `你是一位资深的A股{industry}行业财务分析师，擅长解读上市公司财报。
你的分析风格客观、严谨，注重数据支撑，避免空泛的表述。
输出使用简体中文，金额单位保持原始数据的单位，百分比保留两位小数。`

const defaultCoreAnalysisTemplate = `请分析 {company_name} {report_period} 期的核心财务指标。

核心指标数据：
{core_indicators_data}

要求：
1. 逐项解读营收和利润的同比变化，判断增长质量
2. 结合{industry}行业特点，评估增长的可持续性
3. 指出数据中值得关注的异常点
4. 控制在300字以内，直接给出分析结论，不要重复原始数据`

const defaultAuxiliaryAnalysisTemplate = `请分析 {company_name} {report_period} 期的辅助财务指标。

辅助指标数据：
{auxiliary_indicators_data}

核心指标分析摘要：
{core_indicators_summary}

要求：
1. 解读毛利率和各项费用率的变动方向及原因
2. 结合核心指标摘要，判断盈利能力的边际变化
3. 关注研发投入强度的变化对竞争力的含义
4. 控制在300字以内`

const defaultSpecificAnalysisTemplate = `请分析 {company_name} {report_period} 期的业务先导指标。

公司业务模式：{business_type}

个性化指标数据：
{specific_indicators_data}

要求：
1. 合同负债变化反映订阅收入的预收情况，存货变化反映备货与交付节奏
2. 结合业务模式判断这些先导指标对未来收入的指示意义
3. 控制在200字以内`

const defaultReportTemplate = `请基于以下分析结果，为 {company_name} 撰写 {report_period} 期财报点评报告。

行业：{industry}

核心指标分析：
{core_analysis}

辅助指标分析：
{auxiliary_analysis}

个性化指标分析：
{specific_analysis}

财报原文参考：
{unstructured_context}

报告要求：
1. 使用 Markdown 格式，必须包含以下四个章节：核心结论、分项分析、综合判断、投资建议
2. 核心结论：三句话以内概括本期财报的关键信息
3. 分项分析：整合上述各项指标分析，引用具体数据
4. 综合判断：评估公司基本面的边际变化方向
5. 投资建议：给出明确的关注要点与风险提示，不构成投资建议的免责声明
6. 全文800-1500字，数据引用必须来自上述分析内容`

// defaultTemplates maps template names to their built-in Chinese text.
var defaultTemplates = map[string]string{
	TemplateSystem:           defaultSystemTemplate,
	TemplateCoreAnalysis:     defaultCoreAnalysisTemplate,
	TemplateAuxiliary:        defaultAuxiliaryAnalysisTemplate,
	TemplateSpecificAnalysis: defaultSpecificAnalysisTemplate,
	TemplateReport:           defaultReportTemplate,
}
