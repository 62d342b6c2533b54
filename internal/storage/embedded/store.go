package embedded

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const (
	hnswM        = 16
	hnswEfSearch = 64
	hnswMl       = 0.25
)

// Store implements the VectorStore interface with an in-process HNSW graph.
// Vectors live in the graph, row metadata in a Badger payload store next to
// the index file. It serves single-node deployments with no Milvus available.
type Store struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	payloads *badgerhold.Store

	// chunk key <-> graph key mapping. Replaced and deleted rows stay in
	// the graph as orphans until the index is rebuilt; they are unmapped
	// here and skipped at search time.
	keys    map[string]uint64
	rev     map[uint64]string
	nextKey uint64

	collection string
	dimension  int
	indexPath  string
	logger     arbor.ILogger
	closed     bool
}

// storeMeta is the gob-persisted companion of the graph file.
type storeMeta struct {
	Keys      map[string]uint64
	NextKey   uint64
	Dimension int
}

// vectorPayload is the Badger row holding everything about a chunk except
// its embedding.
type vectorPayload struct {
	ChunkID      string `badgerhold:"key"`
	GraphKey     uint64
	ChunkText    string
	ReportID     string `badgerhold:"index"`
	CompanyName  string
	CompanyCode  string
	ReportPeriod string
	ChunkType    string
	Title        string
	ChunkIndex   int64
	PageNumber   int64
	FilePath     string
	CreatedAt    int64
}

// NewStore opens (or creates) the embedded index at cfg.IndexPath.
func NewStore(cfg common.VectorConfig, logger arbor.ILogger) (interfaces.VectorStore, error) {
	if cfg.IndexPath == "" {
		return nil, common.E(common.KindInvalidInput, "embedded.open", "index path is required")
	}
	if cfg.Dimension <= 0 {
		return nil, common.E(common.KindInvalidInput, "embedded.open", "dimension must be positive")
	}

	dir := filepath.Dir(cfg.IndexPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, common.Wrap(common.KindInternal, "embedded.open", err)
	}

	payloadPath := filepath.Join(dir, "payloads")
	options := badgerhold.DefaultOptions
	options.Dir = payloadPath
	options.ValueDir = payloadPath
	options.Logger = nil
	payloads, err := badgerhold.Open(options)
	if err != nil {
		return nil, common.Wrap(common.KindInternal, "embedded.open", err)
	}

	s := &Store{
		graph:      newGraph(),
		payloads:   payloads,
		keys:       make(map[string]uint64),
		rev:        make(map[uint64]string),
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		indexPath:  cfg.IndexPath,
		logger:     logger,
	}

	if _, err := os.Stat(cfg.IndexPath); err == nil {
		if err := s.load(); err != nil {
			payloads.Close()
			return nil, err
		}
		logger.Info().
			Str("path", cfg.IndexPath).
			Int("records", len(s.keys)).
			Msg("Loaded embedded vector index")
	} else {
		logger.Info().Str("path", cfg.IndexPath).Msg("Starting with empty embedded vector index")
	}

	return s, nil
}

func newGraph() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = hnswM
	graph.EfSearch = hnswEfSearch
	graph.Ml = hnswMl
	return graph
}

// EnsureCollection is a no-op for the embedded backend; the index is
// created on open.
func (s *Store) EnsureCollection(ctx context.Context) error {
	return nil
}

// Insert adds records to the graph and payload store. An existing chunk key
// is replaced: the old graph node is orphaned and a new one added.
func (s *Store) Insert(ctx context.Context, records []*models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return common.E(common.KindInternal, "embedded.insert", "store is closed")
	}

	for _, r := range records {
		if len(r.Embedding) != s.dimension {
			return common.E(common.KindInvalidInput, "embedded.insert",
				fmt.Sprintf("record %s has dimension %d, want %d", r.ChunkID, len(r.Embedding), s.dimension))
		}
	}

	for _, r := range records {
		chunkID := common.TruncateBytes(r.ChunkID, models.MaxChunkIDBytes)

		if oldKey, exists := s.keys[chunkID]; exists {
			delete(s.rev, oldKey)
			delete(s.keys, chunkID)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(r.Embedding))
		copy(vec, r.Embedding)
		normalizeInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.keys[chunkID] = key
		s.rev[key] = chunkID

		payload := &vectorPayload{
			ChunkID:      chunkID,
			GraphKey:     key,
			ChunkText:    common.TruncateBytes(r.ChunkText, models.MaxChunkTextBytes),
			ReportID:     r.ReportID,
			CompanyName:  r.CompanyName,
			CompanyCode:  r.CompanyCode,
			ReportPeriod: r.ReportPeriod,
			ChunkType:    r.ChunkType,
			Title:        common.TruncateBytes(r.Title, models.MaxTitleBytes),
			ChunkIndex:   r.ChunkIndex,
			PageNumber:   r.PageNumber,
			FilePath:     common.TruncateBytes(r.FilePath, models.MaxFilePathBytes),
			CreatedAt:    r.CreatedAt,
		}
		if err := s.payloads.Upsert(chunkID, payload); err != nil {
			return common.Wrap(common.KindInternal, "embedded.insert", err)
		}
	}

	if err := s.saveLocked(); err != nil {
		return err
	}

	s.logger.Debug().Int("records", len(records)).Msg("Inserted vector records into embedded index")
	return nil
}

// Search returns the top-k hits ordered by score descending, ties broken by
// ascending chunk index. Scores are cosine similarity, matching the Milvus
// backend.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter *interfaces.SearchFilter) ([]models.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, common.E(common.KindInternal, "embedded.search", "store is closed")
	}
	if len(vector) != s.dimension {
		return nil, common.E(common.KindInvalidInput, "embedded.search",
			fmt.Sprintf("query has dimension %d, want %d", len(vector), s.dimension))
	}
	if topK <= 0 {
		topK = 10
	}
	if s.graph.Len() == 0 {
		return []models.SearchHit{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeInPlace(query)

	// Over-fetch to survive orphaned nodes and post-search filtering.
	orphans := s.graph.Len() - len(s.keys)
	limit := topK + orphans
	if filter != nil {
		limit = topK*4 + orphans
	}
	if limit > s.graph.Len() {
		limit = s.graph.Len()
	}

	nodes := s.graph.Search(query, limit)

	hits := make([]models.SearchHit, 0, topK)
	for _, node := range nodes {
		chunkID, ok := s.rev[node.Key]
		if !ok {
			continue
		}

		var payload vectorPayload
		if err := s.payloads.Get(chunkID, &payload); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return nil, common.Wrap(common.KindInternal, "embedded.search", err)
		}
		if filter != nil {
			if filter.CompanyName != "" && payload.CompanyName != filter.CompanyName {
				continue
			}
			if filter.CompanyCode != "" && payload.CompanyCode != filter.CompanyCode {
				continue
			}
			if filter.ReportPeriod != "" && payload.ReportPeriod != filter.ReportPeriod {
				continue
			}
			if filter.ChunkType != "" && payload.ChunkType != filter.ChunkType {
				continue
			}
		}

		distance := s.graph.Distance(query, node.Value)
		hits = append(hits, models.SearchHit{
			ChunkID:      chunkID,
			ReportID:     payload.ReportID,
			CompanyName:  payload.CompanyName,
			CompanyCode:  payload.CompanyCode,
			ReportPeriod: payload.ReportPeriod,
			ChunkType:    payload.ChunkType,
			ChunkIndex:   payload.ChunkIndex,
			Text:         payload.ChunkText,
			Score:        1 - distance,
		})
	}

	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteByReport unmaps every chunk of one report and removes its payload
// rows. Graph nodes stay behind as orphans.
func (s *Store) DeleteByReport(ctx context.Context, reportID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, common.E(common.KindInternal, "embedded.delete_report", "store is closed")
	}

	var payloads []vectorPayload
	if err := s.payloads.Find(&payloads, badgerhold.Where("ReportID").Eq(reportID)); err != nil {
		return 0, common.Wrap(common.KindInternal, "embedded.delete_report", err)
	}
	if len(payloads) == 0 {
		return 0, nil
	}

	for _, p := range payloads {
		if key, exists := s.keys[p.ChunkID]; exists {
			delete(s.rev, key)
			delete(s.keys, p.ChunkID)
		}
		if err := s.payloads.Delete(p.ChunkID, &vectorPayload{}); err != nil && err != badgerhold.ErrNotFound {
			return 0, common.Wrap(common.KindInternal, "embedded.delete_report", err)
		}
	}

	if err := s.saveLocked(); err != nil {
		return 0, err
	}

	removed := int64(len(payloads))
	s.logger.Info().Str("report_id", reportID).Int64("removed", removed).Msg("Deleted report vectors from embedded index")
	return removed, nil
}

// Stats reports live record and orphan counts.
func (s *Store) Stats(ctx context.Context) (*interfaces.VectorStoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, common.E(common.KindInternal, "embedded.stats", "store is closed")
	}

	return &interfaces.VectorStoreStats{
		Backend:    "embedded",
		Collection: s.collection,
		Records:    int64(len(s.keys)),
		Dimension:  s.dimension,
		Orphans:    int64(s.graph.Len() - len(s.keys)),
	}, nil
}

// HealthCheck reports whether the store is open.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return common.E(common.KindInternal, "embedded.health", "store is closed")
	}
	return nil
}

// Flush persists the current index without closing the store. The
// scheduler calls this periodically so a crash loses at most one
// interval of inserts.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return common.E(common.KindPrecondition, "embedded.flush", "store is closed")
	}
	return s.saveLocked()
}

// Close persists the index and releases the payload store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.saveLocked(); err != nil {
		s.payloads.Close()
		return err
	}
	return s.payloads.Close()
}

// saveLocked writes the graph and metadata atomically. Callers must hold
// the mutex.
func (s *Store) saveLocked() error {
	tmpPath := s.indexPath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return common.Wrap(common.KindInternal, "embedded.save", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return common.Wrap(common.KindInternal, "embedded.save", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return common.Wrap(common.KindInternal, "embedded.save", err)
	}
	if err := os.Rename(tmpPath, s.indexPath); err != nil {
		os.Remove(tmpPath)
		return common.Wrap(common.KindInternal, "embedded.save", err)
	}

	metaPath := s.indexPath + ".meta"
	tmpMeta := metaPath + ".tmp"
	metaFile, err := os.Create(tmpMeta)
	if err != nil {
		return common.Wrap(common.KindInternal, "embedded.save", err)
	}
	meta := storeMeta{Keys: s.keys, NextKey: s.nextKey, Dimension: s.dimension}
	if err := gob.NewEncoder(metaFile).Encode(meta); err != nil {
		metaFile.Close()
		os.Remove(tmpMeta)
		return common.Wrap(common.KindInternal, "embedded.save", err)
	}
	if err := metaFile.Close(); err != nil {
		os.Remove(tmpMeta)
		return common.Wrap(common.KindInternal, "embedded.save", err)
	}
	if err := os.Rename(tmpMeta, metaPath); err != nil {
		os.Remove(tmpMeta)
		return common.Wrap(common.KindInternal, "embedded.save", err)
	}
	return nil
}

// load restores the graph and metadata written by saveLocked.
func (s *Store) load() error {
	metaFile, err := os.Open(s.indexPath + ".meta")
	if err != nil {
		return common.Wrap(common.KindInternal, "embedded.load", err)
	}
	var meta storeMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		metaFile.Close()
		return common.Wrap(common.KindInternal, "embedded.load", err)
	}
	metaFile.Close()

	if meta.Dimension != s.dimension {
		return common.E(common.KindInvalidInput, "embedded.load",
			fmt.Sprintf("index dimension %d does not match configured %d", meta.Dimension, s.dimension))
	}

	s.keys = meta.Keys
	s.nextKey = meta.NextKey
	s.rev = make(map[uint64]string, len(meta.Keys))
	for id, key := range meta.Keys {
		s.rev[key] = id
	}

	file, err := os.Open(s.indexPath)
	if err != nil {
		return common.Wrap(common.KindInternal, "embedded.load", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return common.Wrap(common.KindInternal, "embedded.load", err)
	}
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func sortHits(hits []models.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
}
