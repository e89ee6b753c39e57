package opstore

import (
	"sort"
	"sync"

	"github.com/eil-protocol/eil-go/eiltypes"
)

type batchKey struct {
	opID  string
	index int
}

// MemoryBatchStore keeps rows in a map. Used when persistence across
// restarts is not wanted.
type MemoryBatchStore struct {
	mu   sync.Mutex
	rows map[batchKey]*MonitoredBatch
}

func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{rows: make(map[batchKey]*MonitoredBatch)}
}

func (s *MemoryBatchStore) Upsert(b *MonitoredBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.rows[batchKey{b.OpID, b.BatchIndex}] = &cp
	return nil
}

func (s *MemoryBatchStore) GetByOp(opID string) ([]*MonitoredBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var batches []*MonitoredBatch
	for k, b := range s.rows {
		if k.opID == opID {
			cp := *b
			batches = append(batches, &cp)
		}
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].BatchIndex < batches[j].BatchIndex })
	return batches, nil
}

func (s *MemoryBatchStore) GetByStatus(status ...eiltypes.BatchStatus) ([]*MonitoredBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[eiltypes.BatchStatus]bool, len(status))
	for _, st := range status {
		wanted[st] = true
	}
	var batches []*MonitoredBatch
	for _, b := range s.rows {
		if wanted[b.Status] {
			cp := *b
			batches = append(batches, &cp)
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].OpID != batches[j].OpID {
			return batches[i].OpID < batches[j].OpID
		}
		return batches[i].BatchIndex < batches[j].BatchIndex
	})
	return batches, nil
}

func (s *MemoryBatchStore) Close() error {
	return nil
}
