package checkpointstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/codec"
)

type counterState struct{ Balance int64 }

func (s counterState) Clone() counterState { return s }
func (s counterState) Validate() error     { return nil }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	s, err := Open(path, codec.Compact{})
	require.NoError(t, err, "Open")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	cp := dtre.Checkpoint[counterState]{
		State:            counterState{Balance: 42},
		Hash:             dtre.StateHash{0xaa, 0xbb},
		TransactionIndex: 3,
		Timestamp:        time.Unix(1000, 0).UTC(),
	}

	require.NoError(t, Save[counterState](s, "run-1", cp))

	loaded, err := Load[counterState](s, "run-1", 3, func() counterState { return counterState{} })
	require.NoError(t, err, "Load")
	assert.Equal(t, cp.State, loaded.State)
	assert.Equal(t, cp.Hash, loaded.Hash)
	assert.Equal(t, cp.TransactionIndex, loaded.TransactionIndex)
	assert.True(t, loaded.Timestamp.Equal(cp.Timestamp), "loaded timestamp = %v, want %v", loaded.Timestamp, cp.Timestamp)
}

func TestSaveOverwritesSameIndex(t *testing.T) {
	s := openTestStore(t)
	first := dtre.Checkpoint[counterState]{State: counterState{Balance: 1}, TransactionIndex: 5, Timestamp: time.Unix(0, 0)}
	second := dtre.Checkpoint[counterState]{State: counterState{Balance: 2}, TransactionIndex: 5, Timestamp: time.Unix(1, 0)}

	require.NoError(t, Save[counterState](s, "run-2", first), "Save first")
	require.NoError(t, Save[counterState](s, "run-2", second), "Save second")

	loaded, err := Load[counterState](s, "run-2", 5, func() counterState { return counterState{} })
	require.NoError(t, err, "Load")
	assert.Equal(t, int64(2), loaded.State.Balance, "expected the later save to win")

	indices, err := s.ListIndices("run-2")
	require.NoError(t, err, "ListIndices")
	assert.Len(t, indices, 1, "expected exactly 1 persisted index after overwriting the same one")
}

func TestLatestIndexAndListIndices(t *testing.T) {
	s := openTestStore(t)
	for _, idx := range []int{10, 30, 20} {
		cp := dtre.Checkpoint[counterState]{State: counterState{Balance: int64(idx)}, TransactionIndex: idx, Timestamp: time.Unix(0, 0)}
		require.NoError(t, Save[counterState](s, "run-3", cp), "Save %d", idx)
	}

	latest, ok, err := s.LatestIndex("run-3")
	require.NoError(t, err, "LatestIndex")
	require.True(t, ok)
	assert.Equal(t, 30, latest, "expected latest index 30")

	indices, err := s.ListIndices("run-3")
	require.NoError(t, err, "ListIndices")
	assert.Equal(t, []int{10, 20, 30}, indices, "expected ascending order")
}

func TestLatestIndexEmptyRun(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.LatestIndex("no-such-run")
	require.NoError(t, err, "LatestIndex")
	assert.False(t, ok, "expected ok=false for a run with no checkpoints")
}
