package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

func newTestChunker(t *testing.T, maxChars, minChars int) interfaces.ChunkerService {
	t.Helper()
	svc, err := NewService(common.ChunkingConfig{MaxChars: maxChars, MinChars: minChars}, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestChunkMarkdown_EmptyInput(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	for _, content := range []string{"", "   ", "\n\n\t\n"} {
		chunks, err := svc.ChunkMarkdown(content, "test.md")
		if err != nil {
			t.Fatalf("ChunkMarkdown(%q): %v", content, err)
		}
		if len(chunks) != 0 {
			t.Errorf("ChunkMarkdown(%q) = %d chunks, want 0", content, len(chunks))
		}
	}
}

func TestChunkMarkdown_InvalidUTF8(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	chunks, err := svc.ChunkMarkdown(string([]byte{0x41, 0xff, 0xfe}), "test.md")
	if err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
	if kind := common.KindOf(err); kind != common.KindInvalidInput {
		t.Errorf("error kind = %s, want %s", kind, common.KindInvalidInput)
	}
	if chunks != nil {
		t.Errorf("expected nil chunks, got %d", len(chunks))
	}
}

func TestChunkMarkdown_SingleSection(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	content := "# 一、重要提示\n\n本报告摘要来自年度报告全文。\n"
	chunks, err := svc.ChunkMarkdown(content, "601360_2024.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}

	c := chunks[0]
	if c.ChunkID != "ck_0" || c.ChunkIndex != 0 {
		t.Errorf("identity = %s/%d, want ck_0/0", c.ChunkID, c.ChunkIndex)
	}
	want := "# 一、重要提示\n\n本报告摘要来自年度报告全文。"
	if c.ChunkText != want {
		t.Errorf("chunk text = %q, want %q", c.ChunkText, want)
	}
	if c.Title != "一、重要提示" || c.TitleLevel != 1 {
		t.Errorf("title = %q level %d", c.Title, c.TitleLevel)
	}
	if c.ChunkType != "summary" {
		t.Errorf("chunk type = %s, want summary", c.ChunkType)
	}
	if c.ChunkLength != utf8.RuneCountInString(c.ChunkText) {
		t.Errorf("chunk length = %d, want rune count %d", c.ChunkLength, utf8.RuneCountInString(c.ChunkText))
	}
	if c.FilePath != "601360_2024.md" {
		t.Errorf("file path = %q", c.FilePath)
	}
	if c.CreatedAt == 0 {
		t.Error("created_at not set")
	}
}

func TestChunkMarkdown_HeadingStack(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	content := "# 第一节\n## 子节A\n\n内容一。\n\n## 子节B\n\n内容二。\n"
	chunks, err := svc.ChunkMarkdown(content, "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	if got, want := chunks[0].ChunkText, "# 第一节\n## 子节A\n\n内容一。"; got != want {
		t.Errorf("chunk 0 text = %q, want %q", got, want)
	}
	if got, want := chunks[1].ChunkText, "# 第一节\n## 子节B\n\n内容二。"; got != want {
		t.Errorf("chunk 1 text = %q, want %q", got, want)
	}

	wantPath := []string{"第一节", "子节B"}
	if len(chunks[1].TitlePath) != 2 || chunks[1].TitlePath[0] != wantPath[0] || chunks[1].TitlePath[1] != wantPath[1] {
		t.Errorf("chunk 1 title path = %v, want %v", chunks[1].TitlePath, wantPath)
	}
	if chunks[1].Title != "子节B" || chunks[1].TitleLevel != 2 {
		t.Errorf("chunk 1 title = %q level %d", chunks[1].Title, chunks[1].TitleLevel)
	}
}

func TestChunkMarkdown_HeadingStackPopsToRoot(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	content := "### 深层\n\n内容甲。\n\n# 顶层\n\n内容乙。\n"
	chunks, err := svc.ChunkMarkdown(content, "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if got, want := chunks[1].ChunkText, "# 顶层\n\n内容乙。"; got != want {
		t.Errorf("chunk 1 text = %q, want %q", got, want)
	}
	if chunks[1].TitleLevel != 1 {
		t.Errorf("chunk 1 title level = %d, want 1", chunks[1].TitleLevel)
	}
}

func TestChunkMarkdown_TableAtomic(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	table := "<table><tr><td>营业收入</td><td>100</td></tr></table>"
	content := "## 主要会计数据\n\n" + table + "\n\n表后段落。\n"
	chunks, err := svc.ChunkMarkdown(content, "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	// Table chunks carry the bare table, no heading prefix.
	if chunks[0].ChunkText != table {
		t.Errorf("table chunk text = %q, want %q", chunks[0].ChunkText, table)
	}
	if chunks[0].ChunkType != "table" {
		t.Errorf("table chunk type = %s, want table", chunks[0].ChunkType)
	}
	if chunks[0].Title != "主要会计数据" {
		t.Errorf("table chunk title = %q", chunks[0].Title)
	}

	if got, want := chunks[1].ChunkText, "## 主要会计数据\n\n表后段落。"; got != want {
		t.Errorf("chunk 1 text = %q, want %q", got, want)
	}
}

func TestChunkMarkdown_TableCaseInsensitive(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	table := "<TABLE><TR><TD>净利润</TD></TR></TABLE>"
	chunks, err := svc.ChunkMarkdown(table+"\n", "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].ChunkText != table || chunks[0].ChunkType != "table" {
		t.Errorf("chunk = %q type %s", chunks[0].ChunkText, chunks[0].ChunkType)
	}
}

func TestChunkMarkdown_LargeTableTruncated(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	table := "<table>" + strings.Repeat("<tr><td>数据内容测试</td></tr>", 400) + "</table>"
	chunks, err := svc.ChunkMarkdown(table, "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}

	c := chunks[0]
	if len(c.ChunkText) > 8192 {
		t.Errorf("chunk text = %d bytes, want <= 8192", len(c.ChunkText))
	}
	if !utf8.ValidString(c.ChunkText) {
		t.Error("truncated chunk text is not valid UTF-8")
	}
	if c.ChunkType != "table" {
		t.Errorf("chunk type = %s, want table", c.ChunkType)
	}
	if c.ChunkLength != utf8.RuneCountInString(c.ChunkText) {
		t.Errorf("chunk length = %d, want %d", c.ChunkLength, utf8.RuneCountInString(c.ChunkText))
	}
}

func TestChunkMarkdown_SentenceSplit(t *testing.T) {
	svc := newTestChunker(t, 20, 0)

	chunks, err := svc.ChunkMarkdown("第一句话结束。第二句话结束。第三句话结束。", "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if got, want := chunks[0].ChunkText, "第一句话结束。 第二句话结束。"; got != want {
		t.Errorf("chunk 0 = %q, want %q", got, want)
	}
	if got, want := chunks[1].ChunkText, "第三句话结束。"; got != want {
		t.Errorf("chunk 1 = %q, want %q", got, want)
	}
}

func TestChunkMarkdown_LongSentenceStandsAlone(t *testing.T) {
	svc := newTestChunker(t, 10, 0)

	long := "一二三四五六七八九十十一十二。"
	chunks, err := svc.ChunkMarkdown(long+"短句。", "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].ChunkText != long {
		t.Errorf("chunk 0 = %q, want unsplit sentence %q", chunks[0].ChunkText, long)
	}
	if chunks[1].ChunkText != "短句。" {
		t.Errorf("chunk 1 = %q, want %q", chunks[1].ChunkText, "短句。")
	}
}

func TestChunkMarkdown_ShortTailMergesBack(t *testing.T) {
	svc := newTestChunker(t, 16, 6)

	chunks, err := svc.ChunkMarkdown("第一句话结束。第二句话结束。尾巴。", "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	want := "第一句话结束。 第二句话结束。 尾巴。"
	if chunks[0].ChunkText != want {
		t.Errorf("chunk 0 = %q, want %q", chunks[0].ChunkText, want)
	}
}

func TestMergeShortSegments_HeadFoldsForward(t *testing.T) {
	s := &Service{maxChars: 20, minChars: 8, rules: DefaultRules(), logger: arbor.NewLogger()}

	got := s.mergeShortSegments([]string{"短头", "后面这段足够长没问题"})
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if want := "短头 后面这段足够长没问题"; got[0] != want {
		t.Errorf("merged = %q, want %q", got[0], want)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "decimal point does not split",
			text: "增长3.5亿元。去年为2.1亿元。",
			want: []string{"增长3.5亿元。", "去年为2.1亿元。"},
		},
		{
			name: "mixed terminators",
			text: "上半年高增；下半年趋稳",
			want: []string{"上半年高增；", "下半年趋稳"},
		},
		{
			name: "ascii period",
			text: "Q1 was strong.Next target is 2.5x growth.",
			want: []string{"Q1 was strong.", "Next target is 2.5x growth."},
		},
		{
			name: "no terminator keeps everything",
			text: "没有终止符的一行\n换行后的内容",
			want: []string{"没有终止符的一行\n换行后的内容"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sentences %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkMarkdown_CodeFencePreserved(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	content := "介绍段。\n\n```go\nfunc main() {}\n```\n\n结束段。\n"
	chunks, err := svc.ChunkMarkdown(content, "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	want := "介绍段。\n\n```go\nfunc main() {}\n```\n\n结束段。"
	if chunks[0].ChunkText != want {
		t.Errorf("chunk = %q, want %q", chunks[0].ChunkText, want)
	}
}

func TestChunkMarkdown_UnterminatedFence(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	chunks, err := svc.ChunkMarkdown("```python\nprint(1)", "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if got, want := chunks[0].ChunkText, "```python\nprint(1)"; got != want {
		t.Errorf("chunk = %q, want %q", got, want)
	}
}

func TestChunkMarkdown_HeadingOnlyDocument(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	chunks, err := svc.ChunkMarkdown("# 第一节\n## 第二节\n", "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}

	c := chunks[0]
	if c.ChunkID != "ck_0" {
		t.Errorf("chunk id = %s, want ck_0", c.ChunkID)
	}
	if want := "# 第一节\n## 第二节"; c.ChunkText != want {
		t.Errorf("chunk text = %q, want %q", c.ChunkText, want)
	}
	if c.ChunkType != "other" {
		t.Errorf("chunk type = %s, want other", c.ChunkType)
	}
	if c.Title != "第二节" || c.TitleLevel != 2 {
		t.Errorf("title = %q level %d", c.Title, c.TitleLevel)
	}
}

func TestChunkMarkdown_ListBlock(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	content := "## 风险因素\n\n- 市场竞争加剧\n- 技术迭代风险\n- 人才流失\n"
	chunks, err := svc.ChunkMarkdown(content, "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	want := "## 风险因素\n\n- 市场竞争加剧\n- 技术迭代风险\n- 人才流失"
	if chunks[0].ChunkText != want {
		t.Errorf("chunk = %q, want %q", chunks[0].ChunkText, want)
	}
	if chunks[0].ChunkType != "risk" {
		t.Errorf("chunk type = %s, want risk", chunks[0].ChunkType)
	}
}

func TestChunkMarkdown_DenseIndexes(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	content := "# 一、经营情况\n\n段落甲。\n\n<table><tr><td>1</td></tr></table>\n\n# 二、财务状况\n\n段落乙。\n"
	chunks, err := svc.ChunkMarkdown(content, "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d index = %d", i, c.ChunkIndex)
		}
		if want := fmt.Sprintf("ck_%d", i); c.ChunkID != want {
			t.Errorf("chunk %d id = %s, want %s", i, c.ChunkID, want)
		}
		if strings.TrimSpace(c.ChunkText) == "" {
			t.Errorf("chunk %d has empty text", i)
		}
	}
}

func TestClassifyChunk_RuleOrder(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	tests := []struct {
		name      string
		text      string
		titlePath []string
		want      string
	}{
		{"table beats keywords", "<table>利润表</table>", nil, "table"},
		{"analysis before cashflow", "本期现金流分析如下", nil, "management_discussion"},
		{"cashflow keyword", "经营活动产生的现金流量净额增加", nil, "cashflow"},
		{"governance keyword", "董事会决议公告", nil, "governance"},
		{"title path contributes", "正文内容", []string{"管理层讨论与分析"}, "management_discussion"},
		{"revenue keyword", "本期营业收入同比增长", nil, "financial_analysis"},
		{"no keyword falls through", "没有关键词的一段话", nil, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.ClassifyChunk(tt.text, tt.titlePath); got != tt.want {
				t.Errorf("ClassifyChunk(%q, %v) = %s, want %s", tt.text, tt.titlePath, got, tt.want)
			}
		})
	}
}

func TestChunkMarkdown_QuoteBlock(t *testing.T) {
	svc := newTestChunker(t, 600, 200)

	chunks, err := svc.ChunkMarkdown("> 本表按合并口径填列。\n", "test.md")
	if err != nil {
		t.Fatalf("ChunkMarkdown: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if got, want := chunks[0].ChunkText, "> 本表按合并口径填列。"; got != want {
		t.Errorf("chunk = %q, want %q", got, want)
	}
}
