package interfaces

import "context"

// EmbeddingService generates dense vectors for chunk text and queries.
type EmbeddingService interface {
	// EmbedTexts embeds a batch of document texts, preserving order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single search query (cached).
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// ModelName returns the embedding model identifier
	ModelName() string

	// Dimension returns the embedding vector dimension
	Dimension() int

	// HealthCheck verifies the embedding service is reachable
	HealthCheck(ctx context.Context) error
}
