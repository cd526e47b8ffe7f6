package bus

import (
	"context"
	"sort"
	"sync"

	"github.com/seam-labs/eventflow/workflow"
)

// MemRecordStore is a thread-safe in-memory record store.
type MemRecordStore struct {
	mu      sync.RWMutex
	records map[string][]workflow.Record // runID -> records
}

// NewMemRecordStore creates a new in-memory record store.
func NewMemRecordStore() *MemRecordStore {
	return &MemRecordStore{
		records: make(map[string][]workflow.Record),
	}
}

func (s *MemRecordStore) Append(_ context.Context, r workflow.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.RunID] = append(s.records[r.RunID], r)
	return nil
}

func (s *MemRecordStore) List(_ context.Context, runID string, afterSeq uint64, limit int) ([]workflow.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[runID]
	var result []workflow.Record

	for _, r := range all {
		if afterSeq > 0 && r.Seq <= afterSeq {
			continue
		}
		result = append(result, r)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}

func (s *MemRecordStore) LatestSeq(_ context.Context, runID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[runID]
	if len(records) == 0 {
		return 0, nil
	}

	var maxSeq uint64
	for _, r := range records {
		if r.Seq > maxSeq {
			maxSeq = r.Seq
		}
	}
	return maxSeq, nil
}

// RunIDs returns distinct run IDs from the store, sorted lexically.
func (s *MemRecordStore) RunIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Compile-time interface check.
var _ RecordStore = (*MemRecordStore)(nil)
