package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/storage/badger"
	"github.com/ternarybob/finreview/internal/storage/embedded"
	"github.com/ternarybob/finreview/internal/storage/milvus"
)

// NewStorageManager creates the Badger-backed document storage manager.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	return badger.NewManager(logger, &config.Storage.Badger)
}

// NewVectorStore creates the vector store backend selected by config.
func NewVectorStore(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.VectorStore, error) {
	switch config.Vector.Backend {
	case "milvus":
		return milvus.NewStore(ctx, config.Milvus, config.Vector, logger)
	case "embedded":
		return embedded.NewStore(config.Vector, logger)
	default:
		return nil, common.E(common.KindInvalidInput, "storage.factory",
			fmt.Sprintf("unsupported vector backend: %s (expected milvus or embedded)", config.Vector.Backend))
	}
}
