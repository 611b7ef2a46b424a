// Package store persists revoke proofs and the sync cursor. The in-memory
// store serves single-instance deployments and tests; redis and postgres let
// several instances share one index and resume after restarts.
package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/proof/models"
)

// Store is the proof index. Presence is monotonic: nothing ever deletes a
// record, and the cursor only moves forward.
type Store interface {
	// PutIfAbsent stores rec unless its key is already present. The first
	// observation wins; inserted reports whether rec was written.
	PutIfAbsent(ctx context.Context, rec models.Record) (inserted bool, err error)
	// Find returns sentinel.ErrNotFound when no proof exists for key.
	Find(ctx context.Context, key models.Key) (*models.Record, error)
	ListByWallet(ctx context.Context, wallet common.Address) ([]models.Record, error)
	// LoadCursor returns the zero cursor before the first sync.
	LoadCursor(ctx context.Context) (models.Cursor, error)
	// AdvanceCursor sets the cursor to max(current, block) and returns the result.
	AdvanceCursor(ctx context.Context, block uint64) (models.Cursor, error)
	Ping(ctx context.Context) error
}
