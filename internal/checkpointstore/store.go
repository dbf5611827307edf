// Package checkpointstore is the host's responsibility named in
// SPEC_FULL.md §1's "deliberately out of scope" list: durable persistence of
// checkpoint artifacts. The core engine only ever produces and consumes
// dtre.Checkpoint values in memory; this package is how a host process keeps
// them across restarts. Grounded closely on the teacher's internal/store
// (SQLite via database/sql + github.com/mattn/go-sqlite3, WAL mode, a single
// writer connection), generalized from flow-event storage to checkpoint-blob
// storage.
package checkpointstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/codec"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id            TEXT NOT NULL,
	transaction_index INTEGER NOT NULL,
	hash              BLOB NOT NULL,
	timestamp_unix    INTEGER NOT NULL,
	serializer_name   TEXT NOT NULL,
	serializer_version TEXT NOT NULL,
	state_blob        BLOB NOT NULL,
	PRIMARY KEY (run_id, transaction_index)
);
`

// Store provides durable storage for checkpoint artifacts, keyed by an
// opaque run identifier chosen by the host (e.g. a flow token or job ID).
type Store struct {
	db         *sql.DB
	serializer codec.Serializer
}

// Open creates or opens a SQLite database at path, applies pragmas matching
// the teacher's single-writer WAL configuration, and ensures the schema
// exists. Checkpoint state blobs are encoded with serializer.
func Open(path string, serializer codec.Serializer) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("checkpointstore: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpointstore: ping: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("checkpointstore: pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpointstore: schema: %w", err)
	}

	return &Store{db: db, serializer: serializer}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save persists cp under runID, encoding its state with the Store's
// serializer. Re-saving the same (runID, transaction index) overwrites the
// prior entry.
func Save[S dtre.State[S]](s *Store, runID string, cp dtre.Checkpoint[S]) error {
	blob, err := s.serializer.Encode(cp.State)
	if err != nil {
		return fmt.Errorf("checkpointstore: encode state: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO checkpoints (run_id, transaction_index, hash, timestamp_unix, serializer_name, serializer_version, state_blob)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, transaction_index) DO UPDATE SET
			hash=excluded.hash, timestamp_unix=excluded.timestamp_unix,
			serializer_name=excluded.serializer_name, serializer_version=excluded.serializer_version,
			state_blob=excluded.state_blob`,
		runID, cp.TransactionIndex, cp.Hash[:], cp.Timestamp.Unix(),
		s.serializer.Name(), s.serializer.FormatVersion(), blob,
	)
	if err != nil {
		return fmt.Errorf("checkpointstore: save: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint for runID at the given transaction index,
// decoding its state blob into a fresh S via newState. It is the caller's
// responsibility to verify serializer compatibility for cross-process
// portability; Load itself decodes unconditionally.
func Load[S dtre.State[S]](s *Store, runID string, transactionIndex int, newState func() S) (dtre.Checkpoint[S], error) {
	row := s.db.QueryRow(
		`SELECT hash, timestamp_unix, state_blob FROM checkpoints WHERE run_id = ? AND transaction_index = ?`,
		runID, transactionIndex,
	)
	var hashBytes []byte
	var tsUnix int64
	var blob []byte
	if err := row.Scan(&hashBytes, &tsUnix, &blob); err != nil {
		return dtre.Checkpoint[S]{}, fmt.Errorf("checkpointstore: load: %w", err)
	}

	state := newState()
	if err := s.serializer.Decode(blob, &state); err != nil {
		return dtre.Checkpoint[S]{}, fmt.Errorf("checkpointstore: decode state: %w", err)
	}

	var hash dtre.StateHash
	copy(hash[:], hashBytes)

	return dtre.Checkpoint[S]{
		State:            state,
		Hash:             hash,
		TransactionIndex: transactionIndex,
		Timestamp:        time.Unix(tsUnix, 0).UTC(),
	}, nil
}

// LatestIndex returns the highest persisted transaction index for runID, and
// false if runID has no checkpoints.
func (s *Store) LatestIndex(runID string) (int, bool, error) {
	row := s.db.QueryRow(`SELECT MAX(transaction_index) FROM checkpoints WHERE run_id = ?`, runID)
	var idx sql.NullInt64
	if err := row.Scan(&idx); err != nil {
		return 0, false, fmt.Errorf("checkpointstore: latest index: %w", err)
	}
	if !idx.Valid {
		return 0, false, nil
	}
	return int(idx.Int64), true, nil
}

// ListIndices returns every persisted transaction index for runID, ascending.
func (s *Store) ListIndices(runID string) ([]int, error) {
	rows, err := s.db.Query(`SELECT transaction_index FROM checkpoints WHERE run_id = ? ORDER BY transaction_index ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("checkpointstore: list indices: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("checkpointstore: scan index: %w", err)
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}
