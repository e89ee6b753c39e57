package opstore

import (
	"github.com/eil-protocol/eil-go/eiltypes"
)

// MonitoredBatch is the persisted status row for one batch of one
// cross-chain operation.
type MonitoredBatch struct {
	OpID          string               // operation identifier, with BatchIndex forms the primary key
	BatchIndex    int                  // position of the batch inside its operation
	ChainID       eiltypes.ChainId     //
	UserOpHash    []byte               // signing hash of the batch's user operation
	Status        eiltypes.BatchStatus //
	TxHash        []byte               // bundler transaction hash, empty until submitted
	RevertReason  string               // populated only for failed batches
	UpdatedAtUnix int64                // unix seconds of the last status change
}

// BatchStore persists batch execution progress.
// Regardless of the underlying implementation.
type BatchStore interface {
	// Insert or overwrite the row keyed by (OpID, BatchIndex).
	Upsert(b *MonitoredBatch) error

	// Get all rows of one operation, ordered by batch index.
	// Result can be an empty slice.
	GetByOp(opID string) ([]*MonitoredBatch, error)

	// Get rows in any of the given statuses.
	GetByStatus(status ...eiltypes.BatchStatus) ([]*MonitoredBatch, error)

	// Release the resource the store occupies.
	Close() error
}
