package storage

import (
	"context"

	"dromadaire/internal/model"
)

// SelectionStore remembers the last chain selection across sessions.
type SelectionStore interface {
	// LoadSelection returns the saved source identifiers. ok is false when
	// nothing has been saved yet.
	LoadSelection(ctx context.Context) (ids []string, ok bool, err error)
	SaveSelection(ctx context.Context, ids []string) error
}

// PoolSink persists an aggregate snapshot.
type PoolSink interface {
	PutPools(ctx context.Context, pools []model.LiquidityPool) error
}
