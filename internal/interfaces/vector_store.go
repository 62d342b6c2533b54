package interfaces

import (
	"context"

	"github.com/ternarybob/finreview/internal/models"
)

// SearchFilter narrows a vector search to a metadata scope. Empty fields
// are unconstrained.
type SearchFilter struct {
	CompanyName  string
	CompanyCode  string
	ReportPeriod string
	ChunkType    string
}

// VectorStoreStats summarizes the state of the vector collection.
type VectorStoreStats struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection"`
	Records    int64  `json:"records"`
	Dimension  int    `json:"dimension"`
	// Orphans counts lazily deleted graph nodes (embedded backend only)
	Orphans int64 `json:"orphans,omitempty"`
}

// VectorStore persists and searches embedded chunks. Two implementations
// exist: a Milvus-backed store and an embedded HNSW store for single-node
// deployments.
type VectorStore interface {
	// EnsureCollection creates the collection and index if absent and loads
	// it for search. Idempotent.
	EnsureCollection(ctx context.Context) error

	// Insert writes records (upsert semantics per chunk_id) and flushes.
	Insert(ctx context.Context, records []*models.VectorRecord) error

	// Search returns the top-k hits for the query vector, most similar
	// first, optionally filtered.
	Search(ctx context.Context, vector []float32, topK int, filter *SearchFilter) ([]models.SearchHit, error)

	// DeleteByReport removes every record in one report scope. Returns the
	// number of records removed where the backend can report it.
	DeleteByReport(ctx context.Context, reportID string) (int64, error)

	// Stats reports collection statistics.
	Stats(ctx context.Context) (*VectorStoreStats, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the backend connection or persists the index.
	Close() error
}
