package bus

import (
	"context"

	"github.com/seam-labs/eventflow/workflow"
)

// RecordStore persists execution records for replay.
type RecordStore interface {
	// Append stores a record.
	Append(ctx context.Context, r workflow.Record) error

	// List returns records for a run, optionally filtered.
	// afterSeq: return records with Seq > afterSeq (0 means all)
	// limit: max records to return (0 means no limit)
	List(ctx context.Context, runID string, afterSeq uint64, limit int) ([]workflow.Record, error)

	// LatestSeq returns the highest Seq for a run (0 if no records).
	LatestSeq(ctx context.Context, runID string) (uint64, error)
}
