// Package dtctx implements C2: the execution context, the sole channel
// through which a RuleSet may read otherwise non-pure inputs (time,
// randomness, external facts/entities, collection ordering) plus the
// non-determinism guard that rejects genuinely non-pure operations.
//
// OrderingRules and the entity resolver's error taxonomy have no surviving
// counterpart in the retrieved Rust source snapshot for this context module;
// they are built directly from the specification text, in the same builder
// idiom as the rest of this file.
package dtctx

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dtre-go/dtre/dtreerr"
)

// Operation enumerates the non-pure operations the guard can reject.
type Operation string

const (
	OpSystemTime           Operation = "system_time"
	OpRandomWithoutSeed    Operation = "random_without_seed"
	OpNetworkAccess        Operation = "network_access"
	OpFileSystemRead       Operation = "filesystem_read"
	OpFileSystemWrite      Operation = "filesystem_write"
	OpEnvironmentVariable  Operation = "environment_variable"
	OpThreadSpawn          Operation = "thread_spawn"
	OpProcessSpawn         Operation = "process_spawn"
)

// NonDeterminismGuard rejects enumerated non-deterministic operations in
// strict mode; in permissive mode every operation passes. The guard itself
// is stateless beyond this one flag — no process-wide singleton.
type NonDeterminismGuard struct {
	Strict bool
}

// CheckOperation returns a *dtreerr.ProcessingError naming op when the guard
// is strict; nil in permissive mode.
func (g NonDeterminismGuard) CheckOperation(op Operation) error {
	if !g.Strict {
		return nil
	}
	return &dtreerr.ProcessingError{
		Kind:      dtreerr.ProcessingNonDeterministicOp,
		Operation: string(op),
		Reason:    "non-deterministic operation attempted under strict guard",
	}
}

// SeededRandom is a ChaCha8-backed PRNG. Cloning a SeededRandom restarts its
// sequence from the stored seed rather than copying the generator's
// internal state — this is intentional (SPEC_FULL.md §9): two cloned
// contexts must reproduce identical random streams, so a mid-replay clone
// does not continue the parent's stream.
type SeededRandom struct {
	seed   [32]byte
	source *rand.ChaCha8
}

// NewSeededRandom derives a ChaCha8 seed from a u64, matching the spec's
// "random_seed: u64" option: the seed is placed in the low 8 bytes and the
// remainder zero-filled, which keeps the derivation simple and total.
func NewSeededRandom(seed uint64) *SeededRandom {
	var seedBytes [32]byte
	for i := 0; i < 8; i++ {
		seedBytes[i] = byte(seed >> (8 * i))
	}
	return &SeededRandom{seed: seedBytes, source: rand.NewChaCha8(seedBytes)}
}

// Clone restarts the sequence from the original seed.
func (s *SeededRandom) Clone() *SeededRandom {
	return &SeededRandom{seed: s.seed, source: rand.NewChaCha8(s.seed)}
}

func (s *SeededRandom) NextU64() uint64 { return s.source.Uint64() }
func (s *SeededRandom) NextU32() uint32 { return uint32(s.source.Uint64() >> 32) }

// GenRange returns a value in [lo, hi).
func (s *SeededRandom) GenRange(lo, hi uint64) uint64 {
	if hi <= lo {
		return lo
	}
	return lo + s.source.Uint64()%(hi-lo)
}

func (s *SeededRandom) GenBool() bool { return s.source.Uint64()%2 == 0 }

// ExternalFacts is an immutable typed dictionary. Lookups fail silently
// (ok=false) on a missing key or a type mismatch — there is no error kind
// for facts, unlike entities.
type ExternalFacts map[string]any

// Fact looks up key in facts and type-asserts it to V. A missing key or a
// mismatched type both report ok=false with no error, per the spec's
// "fail silently" requirement.
func Fact[V any](facts ExternalFacts, key string) (V, bool) {
	var zero V
	raw, present := facts[key]
	if !present {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// EntityResolver is like ExternalFacts but a missing id is an error
// (ExternalEntityNotFound) and a type mismatch is a distinct error
// (ExternalEntityTypeMismatch) naming the requested type.
type EntityResolver map[string]any

// Entity looks up id in resolver and type-asserts it to V.
func Entity[V any](resolver EntityResolver, id string) (V, error) {
	var zero V
	raw, present := resolver[id]
	if !present {
		return zero, &dtreerr.ProcessingError{
			Kind:     dtreerr.ProcessingEntityNotFound,
			EntityID: id,
			Reason:   "entity not found in resolver",
		}
	}
	v, ok := raw.(V)
	if !ok {
		return zero, &dtreerr.ProcessingError{
			Kind:          dtreerr.ProcessingEntityTypeMismatch,
			EntityID:      id,
			RequestedType: typeName[V](),
			Reason:        "entity found but does not match the requested type",
		}
	}
	return v, nil
}

func typeName[V any]() string {
	var zero V
	return fmt.Sprintf("%T", zero)
}

// OrderingRules holds optional canonical orderings per entity type.
// Enforce controls whether ValidateOrdering rejects a disagreeing sequence;
// tests may disable enforcement.
type OrderingRules struct {
	Orderings map[string][]string
	Enforce   bool
}

// ValidateOrdering compares actual against the registered ordering for
// entityType (if any) and reports an OrderingViolation when they disagree
// and enforcement is on.
func (o OrderingRules) ValidateOrdering(entityType string, actual []string) error {
	if !o.Enforce {
		return nil
	}
	expected, ok := o.Orderings[entityType]
	if !ok {
		return nil
	}
	if !slices.Equal(expected, actual) {
		return &dtreerr.ProcessingError{
			Kind:     dtreerr.ProcessingOrderingViolation,
			Expected: strings.Join(expected, ","),
			Actual:   strings.Join(actual, ","),
			Reason:   "supplied sequence disagrees with the registered canonical ordering",
		}
	}
	return nil
}

// SortByOrdering reorders ids in place according to the registered ordering
// for entityType, falling back to a lexicographic sort when no explicit
// order is registered.
func (o OrderingRules) SortByOrdering(entityType string, ids []string) {
	order, ok := o.Orderings[entityType]
	if !ok {
		sort.Strings(ids)
		return
	}
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	sort.SliceStable(ids, func(i, j int) bool {
		ri, iok := rank[ids[i]]
		rj, jok := rank[ids[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}


// Context bundles all deterministic substitutes for non-pure inputs. It is
// value-cloneable: Clone yields an independent instance seeded identically
// (including a restarted PRNG sequence).
type Context struct {
	time      time.Time
	random    *SeededRandom
	facts     ExternalFacts
	entities  EntityResolver
	ordering  OrderingRules
	guard     NonDeterminismGuard
	randomSeed uint64
}

// Now returns the frozen "current" instant.
func (c *Context) Now() time.Time { return c.time }

// WithTime returns a new Context with t substituted for the current time,
// leaving c unchanged.
func (c *Context) WithTime(t time.Time) *Context {
	clone := *c
	clone.time = t
	return &clone
}

func (c *Context) Random() *SeededRandom         { return c.random }
func (c *Context) Facts() ExternalFacts          { return c.facts }
func (c *Context) Entities() EntityResolver      { return c.entities }
func (c *Context) Ordering() OrderingRules       { return c.ordering }
func (c *Context) Guard() NonDeterminismGuard    { return c.guard }

// Clone returns an independent Context seeded identically: its PRNG
// restarts from the original seed rather than continuing the parent's
// stream (SPEC_FULL.md §4.2/§9).
func (c *Context) Clone() *Context {
	clone := *c
	clone.random = NewSeededRandom(c.randomSeed)
	return &clone
}

// Builder constructs a Context fluently, mirroring the teacher's
// functional-options idiom while matching the original ExecutionContextBuilder
// defaults (time defaults to the zero time.Time unless WithTime is called —
// never time.Now(), so construction stays reproducible; seed defaults to 0).
type Builder struct {
	time     time.Time
	seed     uint64
	facts    ExternalFacts
	entities EntityResolver
	ordering map[string][]string
	enforce  bool
	strict   bool
}

// NewBuilder returns a Builder with the spec's defaults: seed 0, permissive
// guard, no facts/entities/ordering registered.
func NewBuilder() *Builder {
	return &Builder{
		facts:    ExternalFacts{},
		entities: EntityResolver{},
		ordering: map[string][]string{},
	}
}

func (b *Builder) WithTime(t time.Time) *Builder {
	b.time = t
	return b
}

func (b *Builder) WithRandomSeed(seed uint64) *Builder {
	b.seed = seed
	return b
}

func (b *Builder) WithExternalFact(key string, value any) *Builder {
	b.facts[key] = value
	return b
}

func (b *Builder) WithExternalEntity(id string, value any) *Builder {
	b.entities[id] = value
	return b
}

func (b *Builder) WithOrdering(entityType string, ids []string) *Builder {
	b.ordering[entityType] = append([]string(nil), ids...)
	return b
}

// WithOrderingEnforcement toggles whether ValidateOrdering rejects a
// disagreeing sequence; tests may pass false to disable it.
func (b *Builder) WithOrderingEnforcement(enforce bool) *Builder {
	b.enforce = enforce
	return b
}

func (b *Builder) WithStrictGuard(strict bool) *Builder {
	b.strict = strict
	return b
}

// Build materializes the Context.
func (b *Builder) Build() *Context {
	return &Context{
		time:       b.time,
		random:     NewSeededRandom(b.seed),
		randomSeed: b.seed,
		facts:      b.facts,
		entities:   b.entities,
		ordering:   OrderingRules{Orderings: b.ordering, Enforce: b.enforce},
		guard:      NonDeterminismGuard{Strict: b.strict},
	}
}
