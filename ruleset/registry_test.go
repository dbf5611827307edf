package ruleset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/dtreerr"
)

type fakeState int

func (s fakeState) Clone() fakeState { return s }
func (s fakeState) Validate() error  { return nil }

type fakeTx string

func (t fakeTx) ID() string           { return string(t) }
func (t fakeTx) Timestamp() time.Time { return time.Time{} }
func (t fakeTx) Validate() error      { return nil }

type fakeRules struct{ v dtre.Version }

func (r fakeRules) Version() dtre.Version                                  { return r.v }
func (r fakeRules) Apply(s fakeState, tx fakeTx, ctx any) (fakeState, error) { return s, nil }

func TestRegistryRejectsExactDuplicate(t *testing.T) {
	reg := NewRegistry[fakeState, fakeTx]()
	v := dtre.NewVersion(1, 0, 0)
	rs := NewVersionedRuleSet[fakeState, fakeTx](v, fakeRules{v: v}, RuleSetMetadata{Name: "first"})
	require.NoError(t, reg.Register(rs), "first registration should succeed")

	dup := NewVersionedRuleSet[fakeState, fakeTx](v, fakeRules{v: v}, RuleSetMetadata{Name: "second"})
	err := reg.Register(dup)
	require.Error(t, err, "expected registering the same version twice to fail")
	assert.True(t, dtreerr.IsRuleError(err))
}

func TestRegistryRejectsConflictingVersion(t *testing.T) {
	reg := NewRegistry[fakeState, fakeTx]()
	v1 := dtre.NewVersion(1, 0, 0)
	require.NoError(t, reg.Register(NewVersionedRuleSet[fakeState, fakeTx](v1, fakeRules{v: v1}, RuleSetMetadata{})))
	// Same (major, minor) as v1 but a different patch — not an exact
	// duplicate, but still a conflicting slot.
	v1Patch := dtre.NewVersion(1, 0, 1)
	err := reg.Register(NewVersionedRuleSet[fakeState, fakeTx](v1Patch, fakeRules{v: v1Patch}, RuleSetMetadata{}))
	require.Error(t, err, "expected conflicting version registration to fail")
	assert.True(t, dtreerr.IsRuleError(err))
}

func TestRegistryStableRetrieval(t *testing.T) {
	reg := NewRegistry[fakeState, fakeTx]()
	v := dtre.NewVersion(1, 0, 0)
	rs := NewVersionedRuleSet[fakeState, fakeTx](v, fakeRules{v: v}, RuleSetMetadata{Name: "stable"})
	require.NoError(t, reg.Register(rs))
	got1, ok := reg.Get(v)
	require.True(t, ok, "expected Get to find the registered version")
	got2, _ := reg.Get(v)
	assert.Same(t, got1, got2, "expected repeated Get to return the same entry")
}

func TestRegistryLatestVersion(t *testing.T) {
	reg := NewRegistry[fakeState, fakeTx]()
	versions := []dtre.Version{dtre.NewVersion(1, 0, 0), dtre.NewVersion(1, 5, 0), dtre.NewVersion(2, 0, 0)}
	for _, v := range versions {
		require.NoError(t, reg.Register(NewVersionedRuleSet[fakeState, fakeTx](v, fakeRules{v: v}, RuleSetMetadata{})))
	}
	latest, ok := reg.LatestVersion()
	require.True(t, ok)
	assert.Equal(t, dtre.NewVersion(2, 0, 0), latest)
}

func TestRegistryCompatibleWith(t *testing.T) {
	reg := NewRegistry[fakeState, fakeTx]()
	v1 := dtre.NewVersion(1, 0, 0)
	v1_1 := dtre.NewVersion(1, 1, 0)
	v2 := dtre.NewVersion(2, 0, 0)
	for _, v := range []dtre.Version{v1, v1_1, v2} {
		require.NoError(t, reg.Register(NewVersionedRuleSet[fakeState, fakeTx](v, fakeRules{v: v}, RuleSetMetadata{})))
	}
	compatible := reg.CompatibleWith(dtre.NewVersion(1, 9, 0))
	assert.Len(t, compatible, 2, "expected 2 entries compatible with major version 1")
}

func TestLoadMetadata(t *testing.T) {
	yamlDoc := []byte("name: flat-fee\ndescription: a flat transfer fee\nauthor: ops-team\n")
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	meta, err := LoadMetadata(yamlDoc, createdAt)
	require.NoError(t, err)
	assert.Equal(t, "flat-fee", meta.Name)
	assert.Equal(t, "a flat transfer fee", meta.Description)
	assert.True(t, meta.HasAuthor)
	assert.Equal(t, "ops-team", meta.Author)
	assert.True(t, meta.CreatedAt.Equal(createdAt), "expected CreatedAt to be stamped with the supplied time, not time.Now()")
}
