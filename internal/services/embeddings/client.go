package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

const (
	// maxEmbedBytes caps each text sent to the embedding service. Storage
	// keeps up to 8192 bytes; the vector represents the chunk's prefix.
	maxEmbedBytes = 1024

	// queryCacheSize bounds the retrieval-side query embedding cache.
	queryCacheSize = 512

	maxAttempts = 3
)

// Client talks to the embedding HTTP service. Document texts go out in
// batches; query embeddings are cached.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	batchSize  int
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *lru.Cache[string, []float32]
	logger     arbor.ILogger
}

// NewClient creates an embedding client. dimension is the expected vector
// width; responses with a different width are rejected.
func NewClient(cfg common.EmbeddingConfig, dimension int, logger arbor.ILogger) (interfaces.EmbeddingService, error) {
	if cfg.BaseURL == "" {
		return nil, common.E(common.KindInvalidInput, "embeddings.new", "base_url is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 60
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}

	cache, err := lru.New[string, []float32](queryCacheSize)
	if err != nil {
		return nil, common.Wrap(common.KindInternal, "embeddings.new", err)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimension:  dimension,
		batchSize:  cfg.BatchSize,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		cache:      cache,
		logger:     logger,
	}, nil
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	BatchSize int      `json:"batch_size"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Model      string      `json:"model"`
	Dimension  int         `json:"dimension"`
	Count      int         `json:"count"`
}

// EmbedTexts embeds document texts in order. Texts are prepared first:
// table HTML becomes cell text, then everything is truncated to
// maxEmbedBytes on a codepoint boundary. An empty input makes no call.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	prepared := make([]string, len(texts))
	for i, text := range texts {
		prepared[i] = prepareText(text)
	}

	results := make([][]float32, 0, len(prepared))
	for start := 0; start < len(prepared); start += c.batchSize {
		end := start + c.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}

		vectors, err := c.embedWithRetry(ctx, prepared[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, vectors...)
	}

	c.logger.Debug().Int("texts", len(texts)).Int("batch_size", c.batchSize).Msg("Embedded document texts")
	return results, nil
}

// EmbedQuery embeds a single search query through an LRU cache.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if vec, ok := c.cache.Get(query); ok {
		return vec, nil
	}

	vectors, err := c.embedWithRetry(ctx, []string{prepareText(query)})
	if err != nil {
		return nil, err
	}
	vec := vectors[0]
	c.cache.Add(query, vec)
	return vec, nil
}

// ModelName returns the embedding model identifier.
func (c *Client) ModelName() string {
	return c.model
}

// Dimension returns the embedding vector dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

// HealthCheck verifies the embedding service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return common.Wrap(common.KindInternal, "embeddings.health", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.Wrap(common.KindTransientUpstream, "embeddings.health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.E(common.KindTransientUpstream, "embeddings.health",
			fmt.Sprintf("health endpoint returned status %d", resp.StatusCode))
	}
	return nil
}

// embedWithRetry retries transient failures with exponential backoff.
// Permanent upstream errors and context cancellation return immediately.
func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, common.Wrap(common.KindCancelled, "embeddings.embed", err)
		}
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			c.logger.Warn().
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying embedding request")
			select {
			case <-ctx.Done():
				return nil, common.Wrap(common.KindCancelled, "embeddings.embed", ctx.Err())
			case <-time.After(backoff):
			}
		}

		vectors, err := c.embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !common.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, common.Wrap(common.KindCancelled, "embeddings.embed", err)
	}

	body, err := json.Marshal(embedRequest{Texts: texts, Model: c.model, BatchSize: c.batchSize})
	if err != nil {
		return nil, common.Wrap(common.KindInternal, "embeddings.embed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, common.Wrap(common.KindInternal, "embeddings.embed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, common.Wrap(common.KindCancelled, "embeddings.embed", ctx.Err())
		}
		return nil, common.Wrap(common.KindTransientUpstream, "embeddings.embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		kind := common.KindPermanentUpstream
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = common.KindTransientUpstream
		}
		return nil, common.E(kind, "embeddings.embed",
			fmt.Sprintf("embedding service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, common.Wrap(common.KindPermanentUpstream, "embeddings.embed", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, common.E(common.KindPermanentUpstream, "embeddings.embed",
			fmt.Sprintf("got %d embeddings for %d texts", len(result.Embeddings), len(texts)))
	}
	for i, vec := range result.Embeddings {
		if c.dimension > 0 && len(vec) != c.dimension {
			return nil, common.E(common.KindPermanentUpstream, "embeddings.embed",
				fmt.Sprintf("embedding %d has dimension %d, want %d", i, len(vec), c.dimension))
		}
	}
	return result.Embeddings, nil
}

// prepareText converts table HTML to plain cell text and truncates to the
// embedding byte cap. Raw tags carry little semantic signal for retrieval.
func prepareText(text string) string {
	if strings.Contains(strings.ToLower(text), "<table") {
		if cells := extractTableText(text); cells != "" {
			text = cells
		}
	}
	return common.TruncateBytes(text, maxEmbedBytes)
}

// extractTableText pulls cell contents out of table HTML, joined by single
// spaces. Returns "" when parsing yields nothing usable.
func extractTableText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var cells []string
	doc.Find("th, td").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			cells = append(cells, text)
		}
	})
	return strings.Join(cells, " ")
}
