// Package tracelog implements C9: a deterministic, side-effect-free logger
// and event trace. Every record here is a plain value — no I/O occurs from
// inside this package, and it deliberately does not use log/slog (which the
// rest of this repository uses for ambient operational diagnostics):
// wiring any I/O-capable logger into this component would violate its own
// determinism requirement. Grounded on original_source/src/logging.rs.
package tracelog

import (
	"time"

	"github.com/dtre-go/dtre"
)

// LogLevel is an explicit ordinal enum. shouldLog compares these ordinals
// directly; the order Trace < Debug < Info < Warn < Error must hold
// regardless of any future reordering of the declarations below
// (SPEC_FULL.md §9).
type LogLevel int

const (
	Trace LogLevel = iota
	Debug
	Info
	Warn
	Error
)

func (l LogLevel) String() string {
	switch l {
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogEntry is a single deterministic log record. Construction follows a
// builder pattern (With* methods return a modified copy) matching
// original_source/src/logging.rs's LogEntry.
type LogEntry struct {
	Level            LogLevel
	Timestamp        time.Time
	TransactionID    string
	HasTransaction   bool
	TransactionIndex int
	RuleVersion      dtre.Version
	HasRuleVersion   bool
	StateHash        dtre.StateHash
	HasStateHash     bool
	Message          string
	Metadata         []KV
}

// KV is an ordered key/value pair.
type KV struct {
	Key   string
	Value string
}

// NewLogEntry constructs a bare entry at the given level/timestamp/message.
func NewLogEntry(level LogLevel, timestamp time.Time, message string) LogEntry {
	return LogEntry{Level: level, Timestamp: timestamp, Message: message}
}

// WithTransaction returns a copy of e with transaction context attached.
func (e LogEntry) WithTransaction(id string, index int) LogEntry {
	e.TransactionID = id
	e.HasTransaction = true
	e.TransactionIndex = index
	return e
}

// WithRule returns a copy of e with rule-version context attached.
func (e LogEntry) WithRule(version dtre.Version) LogEntry {
	e.RuleVersion = version
	e.HasRuleVersion = true
	return e
}

// WithStateHash returns a copy of e with a state hash attached.
func (e LogEntry) WithStateHash(hash dtre.StateHash) LogEntry {
	e.StateHash = hash
	e.HasStateHash = true
	return e
}

// WithMetadata returns a copy of e with one more metadata pair appended.
func (e LogEntry) WithMetadata(key, value string) LogEntry {
	e.Metadata = append(append([]KV(nil), e.Metadata...), KV{Key: key, Value: value})
	return e
}

// DeterministicLogger collects LogEntry values without side effects,
// filtering by a minimum level on insert.
type DeterministicLogger struct {
	entries  []LogEntry
	minLevel LogLevel
}

// NewDeterministicLogger returns a logger that records levels >= minLevel.
func NewDeterministicLogger(minLevel LogLevel) *DeterministicLogger {
	return &DeterministicLogger{minLevel: minLevel}
}

// AllLevels returns a logger that captures every level.
func AllLevels() *DeterministicLogger { return NewDeterministicLogger(Trace) }

// InfoLevel returns a logger that captures Info and above (the default).
func InfoLevel() *DeterministicLogger { return NewDeterministicLogger(Info) }

func (l *DeterministicLogger) shouldLog(level LogLevel) bool {
	return level >= l.minLevel
}

// Log records entry if it meets the minimum level.
func (l *DeterministicLogger) Log(entry LogEntry) {
	if l.shouldLog(entry.Level) {
		l.entries = append(l.entries, entry)
	}
}

func (l *DeterministicLogger) Trace(ts time.Time, message string) { l.Log(NewLogEntry(Trace, ts, message)) }
func (l *DeterministicLogger) Debug(ts time.Time, message string) { l.Log(NewLogEntry(Debug, ts, message)) }
func (l *DeterministicLogger) Info(ts time.Time, message string)  { l.Log(NewLogEntry(Info, ts, message)) }
func (l *DeterministicLogger) Warn(ts time.Time, message string)  { l.Log(NewLogEntry(Warn, ts, message)) }
func (l *DeterministicLogger) ErrorLog(ts time.Time, message string) {
	l.Log(NewLogEntry(Error, ts, message))
}

// Entries returns all collected entries.
func (l *DeterministicLogger) Entries() []LogEntry { return l.entries }

func (l *DeterministicLogger) Len() int       { return len(l.entries) }
func (l *DeterministicLogger) IsEmpty() bool  { return len(l.entries) == 0 }
func (l *DeterministicLogger) Clear()         { l.entries = nil }

// FilterByLevel returns entries at exactly the given level.
func (l *DeterministicLogger) FilterByLevel(level LogLevel) []LogEntry {
	var out []LogEntry
	for _, e := range l.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// FilterByTransaction returns entries tagged with the given transaction ID.
func (l *DeterministicLogger) FilterByTransaction(transactionID string) []LogEntry {
	var out []LogEntry
	for _, e := range l.entries {
		if e.HasTransaction && e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out
}

// TraceEventType enumerates the typed events an ExecutionTraceLog records.
type TraceEventType int

const (
	ReplayStarted TraceEventType = iota
	TransactionStarted
	TransactionCompleted
	TransactionFailed
	RuleApplicationStarted
	RuleApplicationCompleted
	StateTransitionEvent
	CheckpointCreated
	CheckpointRestored
	ReplayCompleted
	ReplayFailed
)

// TraceEvent is one event in the execution trace.
type TraceEvent struct {
	Timestamp        time.Time
	EventType        TraceEventType
	TransactionID    string
	HasTransaction   bool
	TransactionIndex int
	StateHashBefore  dtre.StateHash
	HasHashBefore    bool
	StateHashAfter   dtre.StateHash
	HasHashAfter     bool
	Data             []KV
}

// ExecutionTraceLog stores deterministic logs plus a typed event stream.
type ExecutionTraceLog struct {
	StartTime time.Time
	EndTime   time.Time
	HasEnded  bool
	Logs      []LogEntry
	Events    []TraceEvent
}

// NewExecutionTraceLog starts a trace at startTime.
func NewExecutionTraceLog(startTime time.Time) *ExecutionTraceLog {
	return &ExecutionTraceLog{StartTime: startTime}
}

func (t *ExecutionTraceLog) AddLog(entry LogEntry)     { t.Logs = append(t.Logs, entry) }
func (t *ExecutionTraceLog) AddEvent(event TraceEvent) { t.Events = append(t.Events, event) }

// Complete marks the trace as finished at endTime.
func (t *ExecutionTraceLog) Complete(endTime time.Time) {
	t.EndTime = endTime
	t.HasEnded = true
}

// EventsByType returns all events of the given type.
func (t *ExecutionTraceLog) EventsByType(eventType TraceEventType) []TraceEvent {
	var out []TraceEvent
	for _, e := range t.Events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// EventsByTransaction returns all events tagged with the given transaction ID.
func (t *ExecutionTraceLog) EventsByTransaction(transactionID string) []TraceEvent {
	var out []TraceEvent
	for _, e := range t.Events {
		if e.HasTransaction && e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out
}
