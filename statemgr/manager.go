// Package statemgr implements C5: the state manager that owns the live
// state, applies transactions through a rule set with strict failure
// atomicity, and creates/restores checkpoints. Grounded closely on
// original_source/src/state_manager.rs.
package statemgr

import (
	"fmt"
	"time"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/codec"
	"github.com/dtre-go/dtre/dtctx"
	"github.com/dtre-go/dtre/dtreerr"
	"github.com/dtre-go/dtre/hashstate"
)

// Manager owns current_state, a hasher, an ordered list of checkpoints, and
// a transaction count.
type Manager[S dtre.State[S]] struct {
	currentState     S
	serializer       codec.Serializer
	checkpoints      []dtre.Checkpoint[S]
	transactionCount int
}

// New validates initial and, if it passes, returns a Manager seeded with it.
func New[S dtre.State[S]](initial S, serializer codec.Serializer) (*Manager[S], error) {
	if err := initial.Validate(); err != nil {
		return nil, &dtreerr.StateError{
			Kind:   dtreerr.StateTransitionFailed,
			Reason: fmt.Sprintf("initial state validation failed: %v", err),
		}
	}
	return &Manager[S]{currentState: initial, serializer: serializer}, nil
}

// NewFromCheckpoint validates cp.State and returns a Manager resuming from
// it, with transaction_count carried over from cp.TransactionIndex.
func NewFromCheckpoint[S dtre.State[S]](cp dtre.Checkpoint[S], serializer codec.Serializer) (*Manager[S], error) {
	m, err := New[S](cp.State.Clone(), serializer)
	if err != nil {
		return nil, err
	}
	m.transactionCount = cp.TransactionIndex
	return m, nil
}

// CurrentState returns the live state.
func (m *Manager[S]) CurrentState() S { return m.currentState }

// CurrentHash hashes the live state.
func (m *Manager[S]) CurrentHash() (dtre.StateHash, error) {
	return hashstate.Hash[S](m.currentState, m.serializer)
}

// TransactionCount returns the number of successfully applied transactions.
func (m *Manager[S]) TransactionCount() int { return m.transactionCount }

// Checkpoints returns all checkpoints created so far.
func (m *Manager[S]) Checkpoints() []dtre.Checkpoint[S] { return m.checkpoints }

// ClearCheckpoints empties the checkpoint list.
func (m *Manager[S]) ClearCheckpoints() { m.checkpoints = nil }

// ApplyTransaction is the central operation (SPEC_FULL.md §4.5):
//  1. tx.Validate() — failure leaves state untouched.
//  2. snapshot from_state/from_hash.
//  3. rules.Apply(current, tx, ctx) — any error leaves state untouched.
//  4. new_state.Validate() — failure leaves state untouched.
//  5. compute to_hash, swap state in, increment count.
//
// It is a free function, not a method, because Manager's receiver fixes
// only S while this operation additionally needs T and R — Go does not
// allow a method to introduce type parameters beyond its receiver's.
func ApplyTransaction[S dtre.State[S], T dtre.Transaction, R dtre.RuleSet[S, T]](
	m *Manager[S], tx T, rules R, ctx *dtctx.Context,
) (dtre.StateTransition[S], error) {
	var zero dtre.StateTransition[S]

	if err := tx.Validate(); err != nil {
		return zero, &dtreerr.ProcessingError{
			Kind:          dtreerr.ProcessingTransactionFailed,
			TransactionID: tx.ID(),
			Reason:        fmt.Sprintf("transaction validation failed: %v", err),
		}
	}

	fromState := m.currentState.Clone()
	fromHash, err := hashstate.Hash[S](fromState, m.serializer)
	if err != nil {
		return zero, &dtreerr.SerializationError{Kind: dtreerr.SerializationEncodeFailed, Reason: "hashing from_state", Wrapped: err}
	}

	newState, err := rules.Apply(m.currentState, tx, ctx)
	if err != nil {
		return zero, err
	}

	if err := newState.Validate(); err != nil {
		return zero, &dtreerr.ProcessingError{
			Kind:          dtreerr.ProcessingTransactionFailed,
			TransactionID: tx.ID(),
			Reason:        fmt.Sprintf("new state validation failed: %v", err),
		}
	}

	toHash, err := hashstate.Hash[S](newState, m.serializer)
	if err != nil {
		return zero, &dtreerr.SerializationError{Kind: dtreerr.SerializationEncodeFailed, Reason: "hashing to_state", Wrapped: err}
	}

	m.currentState = newState
	m.transactionCount++

	return dtre.StateTransition[S]{
		FromState:     fromState,
		ToState:       newState,
		FromHash:      fromHash,
		ToHash:        toHash,
		TransactionID: tx.ID(),
	}, nil
}

// CreateCheckpoint snapshots the current state and appends it.
func (m *Manager[S]) CreateCheckpoint(at time.Time) (dtre.Checkpoint[S], error) {
	hash, err := m.CurrentHash()
	if err != nil {
		return dtre.Checkpoint[S]{}, err
	}
	cp := dtre.Checkpoint[S]{
		State:            m.currentState.Clone(),
		Hash:             hash,
		TransactionIndex: m.transactionCount,
		Timestamp:        at,
	}
	m.checkpoints = append(m.checkpoints, cp)
	return cp, nil
}

// RestoreCheckpoint validates cp.State, re-derives its hash, and rejects a
// mismatch as a CheckpointError before touching any manager state.
func (m *Manager[S]) RestoreCheckpoint(cp dtre.Checkpoint[S]) error {
	if err := cp.State.Validate(); err != nil {
		return &dtreerr.StateError{
			Kind:   dtreerr.StateCheckpointError,
			Reason: fmt.Sprintf("checkpoint state validation failed: %v", err),
		}
	}
	computed, err := hashstate.Hash[S](cp.State, m.serializer)
	if err != nil {
		return &dtreerr.SerializationError{Kind: dtreerr.SerializationEncodeFailed, Reason: "hashing checkpoint state", Wrapped: err}
	}
	if computed != cp.Hash {
		return &dtreerr.StateError{
			Kind:   dtreerr.StateCheckpointError,
			Reason: fmt.Sprintf("checkpoint hash mismatch: expected %s, got %s", cp.Hash, computed),
		}
	}
	m.currentState = cp.State.Clone()
	m.transactionCount = cp.TransactionIndex
	return nil
}

// CalculateDiff returns a and b paired with their hashes.
func (m *Manager[S]) CalculateDiff(a, b S) (dtre.StateDiff[S], error) {
	fromHash, err := hashstate.Hash[S](a, m.serializer)
	if err != nil {
		return dtre.StateDiff[S]{}, err
	}
	toHash, err := hashstate.Hash[S](b, m.serializer)
	if err != nil {
		return dtre.StateDiff[S]{}, err
	}
	return dtre.StateDiff[S]{FromState: a, ToState: b, FromHash: fromHash, ToHash: toHash}, nil
}

// CompareStates reports equality by hash.
func (m *Manager[S]) CompareStates(a, b S) (bool, error) {
	ha, err := hashstate.Hash[S](a, m.serializer)
	if err != nil {
		return false, err
	}
	hb, err := hashstate.Hash[S](b, m.serializer)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}
