package bus

import (
	"context"
	"log/slog"

	"github.com/seam-labs/eventflow/workflow"
)

// StoreSubscriber writes records to a RecordStore.
// It satisfies workflow.Monitor semantics for use as a bus subscriber handler.
type StoreSubscriber struct {
	store  RecordStore
	logger *slog.Logger
}

// NewStoreSubscriber creates a new StoreSubscriber.
func NewStoreSubscriber(store RecordStore, logger *slog.Logger) *StoreSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSubscriber{
		store:  store,
		logger: logger,
	}
}

// Handle persists a single record to the store.
func (s *StoreSubscriber) Handle(r workflow.Record) {
	if err := s.store.Append(context.Background(), r); err != nil {
		s.logger.Error("failed to persist record",
			"run_id", r.RunID,
			"kind", r.Kind,
			"seq", r.Seq,
			"error", err,
		)
	}
}
