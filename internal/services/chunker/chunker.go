package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

var (
	tablePattern   = regexp.MustCompile(`(?is)<table[\s\S]*?</table>`)
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletPattern  = regexp.MustCompile(`^[\*\-\+]\s+`)
	orderedPattern = regexp.MustCompile(`^\d+\.\s+`)
)

const tableMarkerPrefix = "[[TABLE_BLOCK_"

// Sentence terminators for body splitting. A terminator followed by a
// digit does not end a sentence, so "3.5亿" stays intact.
var sentenceTerminators = map[rune]bool{
	'。': true, '！': true, '？': true, '!': true, '?': true,
	'；': true, ';': true, '．': true, '.': true,
}

// Service splits Markdown filings into heading-aware, classified chunks.
// HTML tables are protected as atomic chunks and bodies never break
// mid-sentence.
type Service struct {
	maxChars int
	minChars int
	rules    []ClassificationRule
	logger   arbor.ILogger
}

// NewService creates a chunker from config. When cfg.RulesFile is set the
// keyword rules are loaded from it, otherwise the built-in set applies.
func NewService(cfg common.ChunkingConfig, logger arbor.ILogger) (interfaces.ChunkerService, error) {
	if cfg.MaxChars <= 0 {
		return nil, common.E(common.KindInvalidInput, "chunker.new", "max_chars must be positive")
	}

	rules := DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
		logger.Info().Str("file", cfg.RulesFile).Int("rules", len(loaded)).Msg("Loaded chunk classification rules")
	}

	return &Service{
		maxChars: cfg.MaxChars,
		minChars: cfg.MinChars,
		rules:    rules,
		logger:   logger,
	}, nil
}

// ChunkMarkdown splits a Markdown document into ordered chunks. Empty or
// whitespace-only input yields zero chunks without error; invalid UTF-8
// fails fast.
func (s *Service) ChunkMarkdown(content string, filePath string) ([]*models.Chunk, error) {
	if !utf8.ValidString(content) {
		return nil, common.E(common.KindInvalidInput, "chunker.chunk", "markdown is not valid UTF-8")
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	safeText, tables := extractTables(content)
	blocks, unterminated := scanBlocks(safeText)
	if unterminated {
		s.logger.Warn().Str("file", filePath).Msg("Unterminated code fence, region treated as paragraph")
	}

	run := &chunkRun{
		svc:       s,
		filePath:  filePath,
		createdAt: time.Now().Unix(),
	}

	for _, blk := range blocks {
		switch blk.kind {
		case blockHeading:
			run.flush()
			run.pushHeading(blk)
		case blockTable:
			run.flush()
			table, ok := tables[strings.TrimSpace(blk.text)]
			if !ok {
				table = blk.text
			}
			run.emitTable(table)
		default:
			for _, segment := range s.blockSegments(blk) {
				segment = strings.TrimSpace(segment)
				if segment == "" {
					continue
				}
				run.addSegment(segment)
			}
		}
	}
	run.flush()

	// Heading-only documents keep their structure as a single chunk.
	if len(run.chunks) == 0 && len(run.headings) > 0 {
		run.emitHeadingOnly()
	}

	return run.chunks, nil
}

// ClassifyChunk returns the chunk type for a text under a heading path.
// The table check is structural; everything else is keyword rules in
// declaration order, first match wins.
func (s *Service) ClassifyChunk(text string, titlePath []string) string {
	lowered := strings.ToLower(text)
	if strings.Contains(lowered, "<table") && strings.Contains(lowered, "</table>") {
		return models.ChunkTypeTable
	}

	corpus := strings.Join(titlePath, " ") + " " + text
	for _, rule := range s.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(corpus, keyword) {
				return rule.Type
			}
		}
	}
	return models.ChunkTypeOther
}

// extractTables replaces every HTML table span with a placeholder line so
// block parsing cannot cut through a table. Returns the rewritten text and
// the placeholder-to-table map.
func extractTables(text string) (string, map[string]string) {
	tables := make(map[string]string)
	safe := tablePattern.ReplaceAllStringFunc(text, func(match string) string {
		placeholder := fmt.Sprintf("[[TABLE_BLOCK_%d]]", len(tables))
		tables[placeholder] = strings.TrimSpace(match)
		return "\n" + placeholder + "\n"
	})
	return safe, tables
}

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockList
	blockQuote
	blockCode
	blockTable
)

type block struct {
	kind  blockKind
	text  string
	level int    // heading blocks only
	title string // heading blocks only
}

// scanBlocks walks the document line by line producing typed blocks. Blank
// lines flush the accumulator; inside a code fence no other rule fires.
// An unterminated fence downgrades to a paragraph block and is reported.
func scanBlocks(text string) ([]block, bool) {
	var (
		blocks  []block
		buf     []string
		bufKind blockKind
		active  bool
		inCode  bool
		fence   string
	)

	flush := func() {
		if active && len(buf) > 0 {
			blocks = append(blocks, block{kind: bufKind, text: strings.Join(buf, "\n")})
		}
		buf = buf[:0]
		active = false
	}

	startBuffer := func(kind blockKind, line string) {
		if active && bufKind != kind {
			flush()
		}
		bufKind = kind
		active = true
		buf = append(buf, line)
	}

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)

		if inCode {
			buf = append(buf, line)
			if strings.HasPrefix(stripped, fence) {
				inCode = false
				blocks = append(blocks, block{kind: blockCode, text: strings.Join(buf, "\n")})
				buf = buf[:0]
				active = false
			}
			continue
		}

		if strings.HasPrefix(stripped, "```") || strings.HasPrefix(stripped, "~~~") {
			flush()
			inCode = true
			fence = stripped[:3]
			buf = append(buf, line)
			continue
		}

		if stripped == "" {
			flush()
			continue
		}

		if m := headingPattern.FindStringSubmatch(stripped); m != nil {
			flush()
			blocks = append(blocks, block{
				kind:  blockHeading,
				text:  stripped,
				level: len(m[1]),
				title: strings.TrimSpace(m[2]),
			})
			continue
		}

		if strings.HasPrefix(stripped, tableMarkerPrefix) && strings.HasSuffix(stripped, "]]") {
			flush()
			blocks = append(blocks, block{kind: blockTable, text: stripped})
			continue
		}

		if bulletPattern.MatchString(stripped) || orderedPattern.MatchString(stripped) {
			startBuffer(blockList, line)
			continue
		}

		if strings.HasPrefix(stripped, ">") {
			startBuffer(blockQuote, line)
			continue
		}

		startBuffer(blockParagraph, line)
	}

	if inCode {
		if len(buf) > 0 {
			blocks = append(blocks, block{kind: blockParagraph, text: strings.Join(buf, "\n")})
		}
		return blocks, true
	}
	flush()
	return blocks, false
}

// blockSegments turns one block into chunk-ready segments. Prose blocks
// longer than maxChars are split at sentence boundaries; code is never
// split.
func (s *Service) blockSegments(blk block) []string {
	switch blk.kind {
	case blockParagraph, blockList, blockQuote:
		text := strings.TrimSpace(blk.text)
		if text == "" {
			return nil
		}
		if utf8.RuneCountInString(text) <= s.maxChars {
			return []string{text}
		}
		return s.splitLongBlock(text)
	case blockCode:
		return []string{strings.Trim(blk.text, "\n")}
	default:
		return []string{blk.text}
	}
}

// splitLongBlock splits an over-long prose block into sentence-packed
// segments of at most maxChars. A single sentence over the limit stands
// alone rather than being cut mid-sentence.
func (s *Service) splitLongBlock(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []string{text}
	}

	var segments []string
	buf := ""
	for _, sent := range sentences {
		if buf == "" {
			buf = sent
			continue
		}
		candidate := buf + " " + sent
		if utf8.RuneCountInString(candidate) <= s.maxChars {
			buf = candidate
			continue
		}
		segments = append(segments, buf)
		if utf8.RuneCountInString(sent) > s.maxChars {
			segments = append(segments, sent)
			buf = ""
		} else {
			buf = sent
		}
	}
	if buf != "" {
		segments = append(segments, buf)
	}

	return s.mergeShortSegments(segments)
}

// mergeShortSegments folds segments under minChars into their predecessor,
// or for a short head segment into its successor.
func (s *Service) mergeShortSegments(segments []string) []string {
	if s.minChars <= 0 || len(segments) < 2 {
		return segments
	}

	merged := make([]string, 0, len(segments))
	for _, seg := range segments {
		if len(merged) > 0 && utf8.RuneCountInString(seg) < s.minChars {
			merged[len(merged)-1] = merged[len(merged)-1] + " " + seg
			continue
		}
		merged = append(merged, seg)
	}
	if len(merged) > 1 && utf8.RuneCountInString(merged[0]) < s.minChars {
		merged[1] = merged[0] + " " + merged[1]
		merged = merged[1:]
	}
	return merged
}

// splitSentences cuts text at sentence terminators. The digit lookahead
// cannot be expressed in RE2, so this is a manual rune scan.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !sentenceTerminators[runes[i]] {
			continue
		}
		if i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		if sent := strings.TrimSpace(string(runes[start : i+1])); sent != "" {
			sentences = append(sentences, sent)
		}
		start = i + 1
	}
	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

type headingFrame struct {
	level int
	title string
	line  string
}

// chunkRun holds the mutable state of one ChunkMarkdown call: the heading
// stack, the segment accumulator and the emitted chunks.
type chunkRun struct {
	svc       *Service
	filePath  string
	createdAt int64
	headings  []headingFrame
	parts     []string
	curLen    int
	chunks    []*models.Chunk
}

// pushHeading pops every frame at the same or deeper level, then pushes.
func (r *chunkRun) pushHeading(blk block) {
	for len(r.headings) > 0 && r.headings[len(r.headings)-1].level >= blk.level {
		r.headings = r.headings[:len(r.headings)-1]
	}
	r.headings = append(r.headings, headingFrame{level: blk.level, title: blk.title, line: blk.text})
}

// addSegment accumulates a segment, flushing first when it would push the
// buffer past maxChars. Segments over the limit become their own chunk.
func (r *chunkRun) addSegment(segment string) {
	segLen := utf8.RuneCountInString(segment)
	if segLen > r.svc.maxChars {
		r.flush()
		r.emit(segment)
		return
	}
	if r.curLen > 0 && r.curLen+segLen+2 > r.svc.maxChars {
		r.flush()
	}
	r.parts = append(r.parts, segment)
	r.curLen += segLen + 2
}

// flush emits the accumulated body as one chunk, if any.
func (r *chunkRun) flush() {
	parts := make([]string, 0, len(r.parts))
	for _, p := range r.parts {
		if t := strings.Trim(p, "\n"); strings.TrimSpace(t) != "" {
			parts = append(parts, t)
		}
	}
	r.parts = r.parts[:0]
	r.curLen = 0

	body := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if body == "" {
		return
	}
	r.emit(body)
}

// emit writes one body chunk composed under the current heading lines.
func (r *chunkRun) emit(body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	text := body
	if len(r.headings) > 0 {
		text = r.headingLines() + "\n\n" + body
	}
	r.append(text, r.svc.ClassifyChunk(text, r.titlePath()))
}

// emitTable writes a table chunk verbatim. Tables skip heading
// composition; they are their own atomic payload.
func (r *chunkRun) emitTable(table string) {
	table = strings.TrimSpace(table)
	if table == "" {
		return
	}
	truncated := common.TruncateBytes(table, models.MaxChunkTextBytes)
	if len(truncated) < len(table) {
		r.svc.logger.Warn().
			Str("file", r.filePath).
			Int("bytes", len(table)).
			Msg("Table chunk truncated to persisted size cap")
	}
	r.append(truncated, models.ChunkTypeTable)
}

// emitHeadingOnly preserves a document that holds headings but no body.
func (r *chunkRun) emitHeadingOnly() {
	r.append(r.headingLines(), models.ChunkTypeOther)
}

func (r *chunkRun) headingLines() string {
	lines := make([]string, len(r.headings))
	for i, h := range r.headings {
		lines[i] = h.line
	}
	return strings.Join(lines, "\n")
}

func (r *chunkRun) titlePath() []string {
	if len(r.headings) == 0 {
		return nil
	}
	path := make([]string, len(r.headings))
	for i, h := range r.headings {
		path[i] = h.title
	}
	return path
}

func (r *chunkRun) append(text, chunkType string) {
	text = common.TruncateBytes(text, models.MaxChunkTextBytes)
	titlePath := r.titlePath()
	title := ""
	if len(titlePath) > 0 {
		title = common.TruncateBytes(titlePath[len(titlePath)-1], models.MaxTitleBytes)
	}

	index := len(r.chunks)
	r.chunks = append(r.chunks, &models.Chunk{
		ChunkID:     models.ChunkIDForIndex(index),
		ChunkIndex:  index,
		ChunkText:   text,
		ChunkLength: utf8.RuneCountInString(text),
		TitlePath:   titlePath,
		Title:       title,
		TitleLevel:  len(titlePath),
		ChunkType:   chunkType,
		CreatedAt:   r.createdAt,
		FilePath:    r.filePath,
	})
}
