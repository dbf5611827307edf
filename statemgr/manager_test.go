package statemgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/codec"
	"github.com/dtre-go/dtre/dtctx"
)

type counterState struct {
	Balance int64
}

func (s counterState) Clone() counterState { return s }

func (s counterState) Validate() error {
	if s.Balance < 0 {
		return errNegativeBalance
	}
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }

const errNegativeBalance = errString("balance must not be negative")

type addTx struct {
	txID   string
	amount int64
}

func (a addTx) ID() string           { return a.txID }
func (a addTx) Timestamp() time.Time { return time.Time{} }
func (a addTx) Validate() error      { return nil }

type addRules struct{}

func (addRules) Version() dtre.Version { return dtre.NewVersion(1, 0, 0) }
func (addRules) Apply(s counterState, tx addTx, ctx any) (counterState, error) {
	return counterState{Balance: s.Balance + tx.amount}, nil
}

type failingRules struct{}

func (failingRules) Version() dtre.Version { return dtre.NewVersion(1, 0, 0) }
func (failingRules) Apply(s counterState, tx addTx, ctx any) (counterState, error) {
	return s, errNegativeBalance
}

func newCtx() *dtctx.Context { return dtctx.NewBuilder().Build() }

func TestApplyTransactionSuccess(t *testing.T) {
	m, err := New[counterState](counterState{Balance: 100}, codec.Compact{})
	require.NoError(t, err)
	transition, err := ApplyTransaction[counterState, addTx, addRules](m, addTx{txID: "tx1", amount: 50}, addRules{}, newCtx())
	require.NoError(t, err)
	assert.Equal(t, int64(150), m.CurrentState().Balance)
	assert.Equal(t, "tx1", transition.TransactionID)
	assert.Equal(t, 1, m.TransactionCount())
}

func TestApplyTransactionFailureAtomicity(t *testing.T) {
	m, err := New[counterState](counterState{Balance: 100}, codec.Compact{})
	require.NoError(t, err)
	beforeHash, _ := m.CurrentHash()
	beforeCount := m.TransactionCount()

	_, err = ApplyTransaction[counterState, addTx, failingRules](m, addTx{txID: "bad"}, failingRules{}, newCtx())
	require.Error(t, err, "expected ApplyTransaction to fail")

	afterHash, _ := m.CurrentHash()
	assert.Equal(t, beforeHash, afterHash, "current_hash must be unchanged after a failed apply")
	assert.Equal(t, beforeCount, m.TransactionCount(), "transaction_count must be unchanged after a failed apply")
	assert.Equal(t, int64(100), m.CurrentState().Balance, "current_state must be unchanged after a failed apply")
}

func TestCheckpointRoundTrip(t *testing.T) {
	m, err := New[counterState](counterState{Balance: 10}, codec.Compact{})
	require.NoError(t, err)
	_, err = ApplyTransaction[counterState, addTx, addRules](m, addTx{txID: "t1", amount: 5}, addRules{}, newCtx())
	require.NoError(t, err)

	cp, err := m.CreateCheckpoint(time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(15), cp.State.Balance)
	assert.Equal(t, 1, cp.TransactionIndex)

	// diverge, then restore and verify we land back exactly at the checkpoint.
	_, err = ApplyTransaction[counterState, addTx, addRules](m, addTx{txID: "t2", amount: 1000}, addRules{}, newCtx())
	require.NoError(t, err)
	require.NoError(t, m.RestoreCheckpoint(cp))
	assert.Equal(t, int64(15), m.CurrentState().Balance, "expected state restored to the checkpoint")
	assert.Equal(t, 1, m.TransactionCount())
	restoredHash, _ := m.CurrentHash()
	assert.Equal(t, cp.Hash, restoredHash, "restored hash must match the checkpoint's recorded hash")
}

func TestRestoreCheckpointRejectsHashMismatch(t *testing.T) {
	m, err := New[counterState](counterState{Balance: 10}, codec.Compact{})
	require.NoError(t, err)
	cp, err := m.CreateCheckpoint(time.Unix(0, 0))
	require.NoError(t, err)
	cp.Hash[0] ^= 0xff // corrupt the recorded hash

	assert.Error(t, m.RestoreCheckpoint(cp), "expected RestoreCheckpoint to reject a mismatched hash")
}

func TestNewFromCheckpointCarriesTransactionCount(t *testing.T) {
	cp := dtre.Checkpoint[counterState]{
		State:            counterState{Balance: 42},
		TransactionIndex: 7,
		Timestamp:        time.Unix(0, 0),
	}
	hash, err := hashOf(cp.State)
	require.NoError(t, err)
	cp.Hash = hash

	m, err := NewFromCheckpoint[counterState](cp, codec.Compact{})
	require.NoError(t, err)
	assert.Equal(t, 7, m.TransactionCount())
	assert.Equal(t, int64(42), m.CurrentState().Balance)
}

func hashOf(s counterState) (dtre.StateHash, error) {
	m, err := New[counterState](s, codec.Compact{})
	if err != nil {
		return dtre.StateHash{}, err
	}
	return m.CurrentHash()
}

func TestCompareStates(t *testing.T) {
	m, err := New[counterState](counterState{Balance: 1}, codec.Compact{})
	require.NoError(t, err)
	equal, err := m.CompareStates(counterState{Balance: 5}, counterState{Balance: 5})
	require.NoError(t, err)
	assert.True(t, equal, "expected identical states to compare equal")
	equal, err = m.CompareStates(counterState{Balance: 5}, counterState{Balance: 6})
	require.NoError(t, err)
	assert.False(t, equal, "expected different states to compare unequal")
}
