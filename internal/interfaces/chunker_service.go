package interfaces

import (
	"github.com/ternarybob/finreview/internal/models"
)

// ChunkerService splits Markdown filings into classified retrieval chunks.
// Chunking is pure CPU work; implementations carry no I/O beyond optional
// rule files loaded at construction.
type ChunkerService interface {
	// ChunkMarkdown splits a Markdown document into heading-aware chunks.
	// filePath is recorded on each chunk for provenance; it is not read.
	ChunkMarkdown(content string, filePath string) ([]*models.Chunk, error)

	// ClassifyChunk returns the chunk type for a text under a heading path.
	ClassifyChunk(text string, titlePath []string) string
}
