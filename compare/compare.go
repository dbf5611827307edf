// Package compare implements C8: structural comparison of two ReplayResults
// and the migration-impact pairing used by AnalyzeMigrationImpact. Grounded
// on original_source/src/result_comparison.rs, which defines two genuinely
// distinct pairing algorithms that this package keeps distinct:
// compare_transitions (max-length, zero-pads the shorter side) versus
// find_state_differences (min-length zip, used for migration impact).
package compare

import (
	"fmt"
	"sort"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/codec"
	"github.com/dtre-go/dtre/hashstate"
)

// TransitionDifference is a per-index comparison between two execution
// traces' state transitions.
type TransitionDifference struct {
	Index         int
	TransactionID string
	BaselineHash  dtre.StateHash
	ComparisonHash dtre.StateHash
	HashesMatch   bool
}

// PerformanceComparison is informational only.
type PerformanceComparison struct {
	BaselineMetrics   dtre.PerformanceMetrics
	ComparisonMetrics dtre.PerformanceMetrics
}

// ResultComparison is the full output of Compare.
type ResultComparison[S dtre.State[S]] struct {
	FinalStateMatches       bool
	FinalHashMatches        bool
	TransactionCountMatches bool
	Transitions             []TransitionDifference
	Performance             PerformanceComparison
}

// DivergentTransitionCount counts transitions with HashesMatch == false.
func (rc ResultComparison[S]) DivergentTransitionCount() int {
	n := 0
	for _, t := range rc.Transitions {
		if !t.HashesMatch {
			n++
		}
	}
	return n
}

// FirstDivergence returns the first divergent transition, if any.
func (rc ResultComparison[S]) FirstDivergence() (TransitionDifference, bool) {
	for _, t := range rc.Transitions {
		if !t.HashesMatch {
			return t, true
		}
	}
	return TransitionDifference{}, false
}

// AreIdentical reports whether baseline and comparison agree on everything
// this comparison tracks.
func (rc ResultComparison[S]) AreIdentical() bool {
	return rc.FinalStateMatches && rc.FinalHashMatches && rc.TransactionCountMatches && rc.DivergentTransitionCount() == 0
}

// Summary is a short human-readable description, useful for logs/reports.
func (rc ResultComparison[S]) Summary() string {
	if rc.AreIdentical() {
		return "replay results are identical"
	}
	return "replay results diverge"
}

// Compare compares two ReplayResults structurally. FinalStateMatches is
// computed by independently re-hashing each side's FinalState with enc —
// a deliberately distinct check from FinalHashMatches (which trusts the
// FinalHash each side already recorded), so a divergence between a stored
// hash and the state it claims to describe still surfaces. Missing entries
// on the shorter side compare against the all-zero sentinel hash and are
// marked divergent (max-length zero-padding, distinct from
// FindStateDifferences' min-length zip below).
func Compare[S dtre.State[S]](baseline, comparison dtre.ReplayResult[S], enc codec.Serializer) (ResultComparison[S], error) {
	baselineStateHash, err := hashstate.Hash[S](baseline.FinalState, enc)
	if err != nil {
		return ResultComparison[S]{}, fmt.Errorf("hash baseline final state: %w", err)
	}
	comparisonStateHash, err := hashstate.Hash[S](comparison.FinalState, enc)
	if err != nil {
		return ResultComparison[S]{}, fmt.Errorf("hash comparison final state: %w", err)
	}

	rc := ResultComparison[S]{
		FinalHashMatches:        baseline.FinalHash == comparison.FinalHash,
		FinalStateMatches:       baselineStateHash == comparisonStateHash,
		TransactionCountMatches: baseline.ExecutionTrace.TransactionsProcessed == comparison.ExecutionTrace.TransactionsProcessed,
		Performance: PerformanceComparison{
			BaselineMetrics:   baseline.PerformanceMetrics,
			ComparisonMetrics: comparison.PerformanceMetrics,
		},
	}
	rc.Transitions = compareTransitions(baseline.ExecutionTrace.StateTransitions, comparison.ExecutionTrace.StateTransitions)
	return rc, nil
}

func compareTransitions(a, b []dtre.StateTransitionInfo) []TransitionDifference {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]TransitionDifference, 0, n)
	for i := 0; i < n; i++ {
		var baselineHash, comparisonHash dtre.StateHash
		var txID string
		if i < len(a) {
			baselineHash = a[i].ToHash
			txID = a[i].TransactionID
		}
		if i < len(b) {
			comparisonHash = b[i].ToHash
			if txID == "" {
				txID = b[i].TransactionID
			}
		}
		out = append(out, TransitionDifference{
			Index:          i,
			TransactionID:  txID,
			BaselineHash:   baselineHash,
			ComparisonHash: comparisonHash,
			HashesMatch:    i < len(a) && i < len(b) && baselineHash == comparisonHash,
		})
	}
	return out
}

// StateDifference is one divergent index from FindStateDifferences, used by
// AnalyzeMigrationImpact.
type StateDifference struct {
	TransactionID  string
	TransactionIndex int
	BaselineHash   dtre.StateHash
	ComparisonHash dtre.StateHash
	Description    string
}

// ImpactAnalysis is the result of pairing two replays run under different
// rule versions over the same input.
type ImpactAnalysis struct {
	Differences          []StateDifference
	IdenticalFinalState  bool
	IdenticalFinalHash   bool
}

// IsSafeMigration reports whether the comparison rule set is a safe
// migration from the baseline: identical final state, identical final hash,
// and no per-transition differences.
func (ia ImpactAnalysis) IsSafeMigration() bool {
	return ia.IdenticalFinalState && ia.IdenticalFinalHash && len(ia.Differences) == 0
}

// FindStateDifferences zips the two transition lists up to the shorter
// length (unlike compareTransitions' max-length zero-padding) and emits one
// StateDifference per index whose to_hash differs. Like Compare,
// IdenticalFinalState re-hashes each side's FinalState with enc rather than
// trusting the recorded FinalHash, which IdenticalFinalHash checks instead.
func FindStateDifferences[S dtre.State[S]](baseline, comparison dtre.ReplayResult[S], enc codec.Serializer) (ImpactAnalysis, error) {
	baselineStateHash, err := hashstate.Hash[S](baseline.FinalState, enc)
	if err != nil {
		return ImpactAnalysis{}, fmt.Errorf("hash baseline final state: %w", err)
	}
	comparisonStateHash, err := hashstate.Hash[S](comparison.FinalState, enc)
	if err != nil {
		return ImpactAnalysis{}, fmt.Errorf("hash comparison final state: %w", err)
	}

	a := baseline.ExecutionTrace.StateTransitions
	b := comparison.ExecutionTrace.StateTransitions
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var diffs []StateDifference
	for i := 0; i < n; i++ {
		if a[i].ToHash != b[i].ToHash {
			diffs = append(diffs, StateDifference{
				TransactionID:    a[i].TransactionID,
				TransactionIndex: i,
				BaselineHash:     a[i].ToHash,
				ComparisonHash:   b[i].ToHash,
				Description:      "to_hash differs between baseline and comparison rule sets",
			})
		}
	}
	return ImpactAnalysis{
		Differences:         diffs,
		IdenticalFinalState: baselineStateHash == comparisonStateHash,
		IdenticalFinalHash:  baseline.FinalHash == comparison.FinalHash,
	}, nil
}

// BalanceDifference is a generic helper for comparing numeric maps (e.g. a
// ledger's per-account balances) across two replays.
type BalanceDifference[K comparable] struct {
	Key        K
	Baseline   int64
	Comparison int64
	Difference int64
}

// AnalyzeBalanceDifferences pairs keys from baseline and comparison, filling
// missing entries with 0, and computes (comparison - baseline) per key. This
// is a free function, not a method on a "DiffAnalyzer" receiver: Go methods
// cannot introduce type parameters beyond their receiver's, the same
// constraint that makes statemgr.ApplyTransaction a free function.
func AnalyzeBalanceDifferences[K comparable](baseline, comparison map[K]int64) []BalanceDifference[K] {
	keys := map[K]struct{}{}
	for k := range baseline {
		keys[k] = struct{}{}
	}
	for k := range comparison {
		keys[k] = struct{}{}
	}
	type keyed struct {
		key K
		str string
	}
	ordered := make([]keyed, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, keyed{key: k, str: fmt.Sprintf("%v", k)})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].str < ordered[j].str })

	out := make([]BalanceDifference[K], 0, len(ordered))
	for _, k := range ordered {
		b := baseline[k.key]
		c := comparison[k.key]
		out = append(out, BalanceDifference[K]{Key: k.key, Baseline: b, Comparison: c, Difference: c - b})
	}
	return out
}

// TotalBalanceDifference sums the Difference field across diffs.
func TotalBalanceDifference[K comparable](diffs []BalanceDifference[K]) int64 {
	var total int64
	for _, d := range diffs {
		total += d.Difference
	}
	return total
}

// LargestDifferences returns diffs sorted by descending |Difference|.
func LargestDifferences[K comparable](diffs []BalanceDifference[K]) []BalanceDifference[K] {
	out := append([]BalanceDifference[K](nil), diffs...)
	sort.Slice(out, func(i, j int) bool {
		return abs64(out[i].Difference) > abs64(out[j].Difference)
	})
	return out
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
