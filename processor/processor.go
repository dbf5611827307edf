// Package processor implements C6: drives a transaction sequence through a
// StateManager, recording the execution trace in strict lockstep and
// managing checkpoint intervals. Grounded on
// original_source/src/transaction_processor.rs.
package processor

import (
	"log/slog"
	"time"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/codec"
	"github.com/dtre-go/dtre/dtctx"
	"github.com/dtre-go/dtre/statemgr"
	"github.com/dtre-go/dtre/tracelog"
)

// Processor wraps a StateManager plus the ExecutionTrace accumulated while
// driving transactions through it. events mirrors the same run as a typed,
// replayable trace log (C9); every real processor drives it, so it is never
// just a unit-tested component sitting off to the side.
type Processor[S dtre.State[S], T dtre.Transaction, R dtre.RuleSet[S, T]] struct {
	manager *statemgr.Manager[S]
	trace   dtre.ExecutionTrace
	log     *slog.Logger
	now     func() time.Time
	events  *tracelog.ExecutionTraceLog
}

// New constructs a Processor over a freshly-validated initial state. now
// supplies timestamps for the typed event trace; a nil now defaults to
// time.Now.
func New[S dtre.State[S], T dtre.Transaction, R dtre.RuleSet[S, T]](
	initial S, serializer codec.Serializer, log *slog.Logger, now func() time.Time,
) (*Processor[S, T, R], error) {
	m, err := statemgr.New[S](initial, serializer)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	p := &Processor[S, T, R]{manager: m, log: log, now: now}
	p.events = tracelog.NewExecutionTraceLog(now())
	p.events.AddEvent(tracelog.TraceEvent{Timestamp: now(), EventType: tracelog.ReplayStarted})
	return p, nil
}

// FromCheckpoint constructs a Processor whose state and transaction-count
// cursor resume from cp; subsequent trace appends continue that numbering.
func FromCheckpoint[S dtre.State[S], T dtre.Transaction, R dtre.RuleSet[S, T]](
	cp dtre.Checkpoint[S], serializer codec.Serializer, log *slog.Logger, now func() time.Time,
) (*Processor[S, T, R], error) {
	m, err := statemgr.NewFromCheckpoint[S](cp, serializer)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	p := &Processor[S, T, R]{manager: m, log: log, now: now}
	p.trace.TransactionsProcessed = cp.TransactionIndex
	p.events = tracelog.NewExecutionTraceLog(now())
	p.events.AddEvent(tracelog.TraceEvent{
		Timestamp:        now(),
		EventType:        tracelog.CheckpointRestored,
		TransactionIndex: cp.TransactionIndex,
		StateHashAfter:   cp.Hash,
		HasHashAfter:     true,
	})
	return p, nil
}

// Manager exposes the underlying StateManager for callers that need direct
// checkpoint access (e.g. the replay engine).
func (p *Processor[S, T, R]) Manager() *statemgr.Manager[S] { return p.manager }

// Trace returns the accumulated ExecutionTrace.
func (p *Processor[S, T, R]) Trace() dtre.ExecutionTrace { return p.trace }

// EventLog returns the typed execution trace (C9) accumulated alongside
// Trace. Callers that need structured replay diagnostics — rather than the
// plain lockstep lists in ExecutionTrace — read this instead.
func (p *Processor[S, T, R]) EventLog() *tracelog.ExecutionTraceLog { return p.events }

// Finish marks the event log complete at end, recording whether the run
// succeeded or failed.
func (p *Processor[S, T, R]) Finish(end time.Time, err error) {
	eventType := tracelog.ReplayCompleted
	data := []tracelog.KV(nil)
	if err != nil {
		eventType = tracelog.ReplayFailed
		data = []tracelog.KV{{Key: "error", Value: err.Error()}}
	}
	p.events.AddEvent(tracelog.TraceEvent{Timestamp: end, EventType: eventType, Data: data})
	p.events.Complete(end)
}

// ProcessTransactions iterates seq in order, stopping at the first error.
// The trace reflects only successful steps.
func (p *Processor[S, T, R]) ProcessTransactions(seq []T, rules R, ctx *dtctx.Context) error {
	return p.ProcessTransactionsWithCheckpoints(seq, rules, ctx, 0)
}

// ProcessTransactionsWithCheckpoints additionally creates a checkpoint after
// every interval-th successful transaction (interval<=0 disables
// checkpointing entirely).
func (p *Processor[S, T, R]) ProcessTransactionsWithCheckpoints(
	seq []T, rules R, ctx *dtctx.Context, interval int,
) error {
	for _, tx := range seq {
		p.events.AddEvent(tracelog.TraceEvent{
			Timestamp: tx.Timestamp(), EventType: tracelog.TransactionStarted,
			TransactionID: tx.ID(), HasTransaction: true,
		})
		p.events.AddEvent(tracelog.TraceEvent{
			Timestamp: tx.Timestamp(), EventType: tracelog.RuleApplicationStarted,
			TransactionID: tx.ID(), HasTransaction: true,
		})

		transition, err := statemgr.ApplyTransaction[S, T, R](p.manager, tx, rules, ctx)
		if err != nil {
			p.log.Error("transaction failed", "transaction_id", tx.ID(), "error", err)
			p.events.AddEvent(tracelog.TraceEvent{
				Timestamp: tx.Timestamp(), EventType: tracelog.TransactionFailed,
				TransactionID: tx.ID(), HasTransaction: true,
				Data: []tracelog.KV{{Key: "error", Value: err.Error()}},
			})
			return err
		}

		p.trace.StateTransitions = append(p.trace.StateTransitions, dtre.StateTransitionInfo{
			FromHash:      transition.FromHash,
			ToHash:        transition.ToHash,
			TransactionID: transition.TransactionID,
		})
		p.trace.RuleApplications = append(p.trace.RuleApplications, dtre.RuleApplication{
			RuleVersion:     rules.Version(),
			TransactionID:   tx.ID(),
			TransactionTime: tx.Timestamp(),
		})
		p.trace.TransactionsProcessed++
		p.log.Debug("transaction applied", "transaction_id", tx.ID(), "count", p.trace.TransactionsProcessed)

		p.events.AddEvent(tracelog.TraceEvent{
			Timestamp: tx.Timestamp(), EventType: tracelog.RuleApplicationCompleted,
			TransactionID: tx.ID(), HasTransaction: true,
		})
		p.events.AddEvent(tracelog.TraceEvent{
			Timestamp: tx.Timestamp(), EventType: tracelog.TransactionCompleted,
			TransactionID: tx.ID(), HasTransaction: true,
		})
		p.events.AddEvent(tracelog.TraceEvent{
			Timestamp: tx.Timestamp(), EventType: tracelog.StateTransitionEvent,
			TransactionID: tx.ID(), HasTransaction: true,
			StateHashBefore: transition.FromHash, HasHashBefore: true,
			StateHashAfter: transition.ToHash, HasHashAfter: true,
		})

		if interval > 0 && p.trace.TransactionsProcessed%interval == 0 {
			cp, err := p.manager.CreateCheckpoint(tx.Timestamp())
			if err != nil {
				return err
			}
			p.trace.Checkpoints = append(p.trace.Checkpoints, dtre.CheckpointInfo{
				Hash:             cp.Hash,
				TransactionIndex: cp.TransactionIndex,
				Timestamp:        cp.Timestamp,
			})
			p.log.Info("checkpoint created", "transaction_index", cp.TransactionIndex)
			p.events.AddEvent(tracelog.TraceEvent{
				Timestamp: cp.Timestamp, EventType: tracelog.CheckpointCreated,
				TransactionIndex: cp.TransactionIndex,
				StateHashAfter:   cp.Hash, HasHashAfter: true,
			})
		}
	}
	return nil
}
