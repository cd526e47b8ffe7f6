package bus

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seam-labs/eventflow/workflow"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStoreConfig configures the SQLite record store.
type SQLiteStoreConfig struct {
	// DSN is the database connection string.
	DSN string

	// RetentionAge deletes records older than this duration (0 = no age pruning).
	RetentionAge time.Duration

	// RetentionCount keeps at most this many records per run (0 = no count pruning).
	RetentionCount int

	// PruneInterval is how often to run pruning (default 1 hour).
	PruneInterval time.Duration
}

// SQLiteRecordStore persists records to a SQLite database.
// It satisfies the RecordStore interface and supports WAL mode
// for concurrent read access and a background pruner goroutine.
type SQLiteRecordStore struct {
	db   *sql.DB
	cfg  SQLiteStoreConfig
	stop chan struct{}
	done chan struct{}
}

// NewSQLiteRecordStore opens (or creates) a SQLite record store.
func NewSQLiteRecordStore(cfg SQLiteStoreConfig) (*SQLiteRecordStore, error) {
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}

	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: set WAL mode: %w", err)
	}

	// Create schema.
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}

	s := &SQLiteRecordStore{
		db:   db,
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	// Start background pruner if any retention is configured.
	if cfg.RetentionAge > 0 || cfg.RetentionCount > 0 {
		go s.pruneLoop()
	} else {
		close(s.done)
	}

	return s, nil
}

// Append stores a record in the database.
func (s *SQLiteRecordStore) Append(ctx context.Context, r workflow.Record) error {
	payload := r.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (run_id, seq, kind, step, event_type, time, elapsed, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.Seq,
		string(r.Kind),
		r.Step,
		string(r.EventType),
		r.Time.Format(time.RFC3339Nano),
		int64(r.Elapsed),
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: append: %w", err)
	}
	return nil
}

// List returns records for a run, optionally filtered by afterSeq and limit.
func (s *SQLiteRecordStore) List(ctx context.Context, runID string, afterSeq uint64, limit int) ([]workflow.Record, error) {
	var rows *sql.Rows
	var err error

	query := `SELECT run_id, seq, kind, step, event_type, time, elapsed, payload
	           FROM records WHERE run_id = ? AND seq > ? ORDER BY seq ASC`
	args := []any{runID, afterSeq}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err = s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// LatestSeq returns the highest Seq for a run (0 if no records).
func (s *SQLiteRecordStore) LatestSeq(ctx context.Context, runID string) (uint64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM records WHERE run_id = ?`, runID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: latest seq: %w", err)
	}
	if !seq.Valid || seq.Int64 < 0 {
		return 0, nil
	}
	return uint64(seq.Int64), nil // #nosec G115 -- seq is always non-negative (auto-increment)
}

// RunIDs returns distinct run IDs from the store.
func (s *SQLiteRecordStore) RunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT run_id FROM records ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: run ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close stops the background pruner and closes the database connection.
func (s *SQLiteRecordStore) Close() error {
	select {
	case <-s.stop:
		// Already closed.
	default:
		close(s.stop)
	}
	<-s.done
	return s.db.Close()
}

// Prune runs a single pruning pass. Exported for testing.
func (s *SQLiteRecordStore) Prune(ctx context.Context) error {
	if s.cfg.RetentionAge > 0 {
		cutoff := time.Now().Add(-s.cfg.RetentionAge).Format(time.RFC3339Nano)
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM records WHERE time < ?`, cutoff,
		); err != nil {
			return fmt.Errorf("sqlitestore: prune by age: %w", err)
		}
	}

	if s.cfg.RetentionCount > 0 {
		// For each run, keep only the most recent RetentionCount records.
		rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM records`)
		if err != nil {
			return fmt.Errorf("sqlitestore: prune list runs: %w", err)
		}
		var runIDs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("sqlitestore: prune scan run id: %w", err)
			}
			runIDs = append(runIDs, id)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("sqlitestore: prune rows err: %w", err)
		}

		for _, runID := range runIDs {
			if _, err := s.db.ExecContext(ctx,
				`DELETE FROM records WHERE run_id = ? AND id NOT IN (
					SELECT id FROM records WHERE run_id = ? ORDER BY seq DESC LIMIT ?
				)`, runID, runID, s.cfg.RetentionCount,
			); err != nil {
				return fmt.Errorf("sqlitestore: prune by count for %s: %w", runID, err)
			}
		}
	}

	return nil
}

func (s *SQLiteRecordStore) pruneLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.Prune(context.Background())
		}
	}
}

func scanRecords(rows *sql.Rows) ([]workflow.Record, error) {
	var records []workflow.Record
	for rows.Next() {
		var (
			r           workflow.Record
			kind        string
			eventType   string
			timeStr     string
			elapsedNano int64
			payloadJSON string
		)
		err := rows.Scan(
			&r.RunID,
			&r.Seq,
			&kind,
			&r.Step,
			&eventType,
			&timeStr,
			&elapsedNano,
			&payloadJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: scan record: %w", err)
		}

		r.Kind = workflow.RecordKind(kind)
		r.EventType = workflow.EventType(eventType)
		r.Elapsed = time.Duration(elapsedNano)

		t, err := time.Parse(time.RFC3339Nano, timeStr)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: parse time %q: %w", timeStr, err)
		}
		r.Time = t

		if payloadJSON != "" && payloadJSON != "{}" {
			if err := json.Unmarshal([]byte(payloadJSON), &r.Payload); err != nil {
				return nil, fmt.Errorf("sqlitestore: unmarshal payload: %w", err)
			}
		} else {
			r.Payload = map[string]any{}
		}

		records = append(records, r)
	}
	return records, rows.Err()
}

// Compile-time interface check.
var _ RecordStore = (*SQLiteRecordStore)(nil)
