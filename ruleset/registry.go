// Package ruleset implements C4: versioned rule-set registration, conflict
// detection, and compatibility queries. Grounded almost one-to-one on
// original_source/src/rule_set.rs, realized with an interface in place of a
// boxed trait object.
package ruleset

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/dtreerr"
)

// RuleSetMetadata is attached to a registered rule set for diagnostics only;
// it does not participate in registry equality/conflict checks.
type RuleSetMetadata struct {
	Name        string
	Description string
	Author      string
	HasAuthor   bool
	CreatedAt   time.Time
}

// LoadMetadata reads {name, description, author} from a YAML fixture and
// stamps CreatedAt with createdAt — never time.Now(), so loading metadata
// stays reproducible in tests.
func LoadMetadata(yamlBytes []byte, createdAt time.Time) (RuleSetMetadata, error) {
	var doc struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Author      string `yaml:"author"`
	}
	if err := yaml.Unmarshal(yamlBytes, &doc); err != nil {
		return RuleSetMetadata{}, fmt.Errorf("ruleset: load metadata: %w", err)
	}
	return RuleSetMetadata{
		Name:        doc.Name,
		Description: doc.Description,
		Author:      doc.Author,
		HasAuthor:   doc.Author != "",
		CreatedAt:   createdAt,
	}, nil
}

// VersionedRuleSet pairs a Version and RuleSet implementation with metadata.
type VersionedRuleSet[S dtre.State[S], T dtre.Transaction] struct {
	version  dtre.Version
	rules    dtre.RuleSet[S, T]
	metadata RuleSetMetadata
}

// NewVersionedRuleSet constructs a VersionedRuleSet.
func NewVersionedRuleSet[S dtre.State[S], T dtre.Transaction](
	version dtre.Version, rules dtre.RuleSet[S, T], metadata RuleSetMetadata,
) *VersionedRuleSet[S, T] {
	return &VersionedRuleSet[S, T]{version: version, rules: rules, metadata: metadata}
}

func (v *VersionedRuleSet[S, T]) Version() dtre.Version       { return v.version }
func (v *VersionedRuleSet[S, T]) Metadata() RuleSetMetadata   { return v.metadata }
func (v *VersionedRuleSet[S, T]) Rules() dtre.RuleSet[S, T]   { return v.rules }

// IsCompatibleWith reports major-version equality with other.
func (v *VersionedRuleSet[S, T]) IsCompatibleWith(other dtre.Version) bool {
	return v.version.IsCompatibleWith(other)
}

// Registry manages multiple rule-set versions for a given (S, T) pair.
type Registry[S dtre.State[S], T dtre.Transaction] struct {
	byVersion map[dtre.Version]*VersionedRuleSet[S, T]
}

// NewRegistry returns an empty Registry.
func NewRegistry[S dtre.State[S], T dtre.Transaction]() *Registry[S, T] {
	return &Registry[S, T]{byVersion: make(map[dtre.Version]*VersionedRuleSet[S, T])}
}

// Register inserts rs keyed by its exact version. An exact duplicate version
// fails with RegistrationFailed. An existing entry sharing (major, minor)
// but a different patch fails with VersionConflict — registering 1.2.3 when
// 1.2.0 is already present would silently shadow whichever of the two
// "1.2" callers expect to resolve via Latest, so it is rejected instead.
func (r *Registry[S, T]) Register(rs *VersionedRuleSet[S, T]) error {
	v := rs.Version()
	if _, exists := r.byVersion[v]; exists {
		return &dtreerr.RuleError{
			Kind:   dtreerr.RuleRegistrationFailed,
			Reason: fmt.Sprintf("version %s already exists", v),
		}
	}
	if err := r.checkConflicts(v); err != nil {
		return err
	}
	r.byVersion[v] = rs
	return nil
}

func (r *Registry[S, T]) checkConflicts(v dtre.Version) error {
	for existing := range r.byVersion {
		if existing.Major == v.Major && existing.Minor == v.Minor && existing.Patch != v.Patch {
			return &dtreerr.RuleError{
				Kind:   dtreerr.RuleVersionConflict,
				Reason: fmt.Sprintf("version %s conflicts with existing version %s", v, existing),
			}
		}
	}
	return nil
}

// Get returns the rule set registered at v, if any.
func (r *Registry[S, T]) Get(v dtre.Version) (*VersionedRuleSet[S, T], bool) {
	rs, ok := r.byVersion[v]
	return rs, ok
}

// Contains reports whether v is registered.
func (r *Registry[S, T]) Contains(v dtre.Version) bool {
	_, ok := r.byVersion[v]
	return ok
}

// Versions returns all registered versions, in no particular order.
func (r *Registry[S, T]) Versions() []dtre.Version {
	out := make([]dtre.Version, 0, len(r.byVersion))
	for v := range r.byVersion {
		out = append(out, v)
	}
	return out
}

// CompatibleWith returns all entries sharing v's major version.
func (r *Registry[S, T]) CompatibleWith(v dtre.Version) []*VersionedRuleSet[S, T] {
	var out []*VersionedRuleSet[S, T]
	for _, rs := range r.byVersion {
		if rs.IsCompatibleWith(v) {
			out = append(out, rs)
		}
	}
	return out
}

// Remove deletes the entry at v, if present, returning it.
func (r *Registry[S, T]) Remove(v dtre.Version) (*VersionedRuleSet[S, T], bool) {
	rs, ok := r.byVersion[v]
	if ok {
		delete(r.byVersion, v)
	}
	return rs, ok
}

// LatestVersion returns the lexicographically-greatest registered version.
func (r *Registry[S, T]) LatestVersion() (dtre.Version, bool) {
	var best dtre.Version
	found := false
	for v := range r.byVersion {
		if !found || best.Less(v) {
			best = v
			found = true
		}
	}
	return best, found
}

// Latest returns the rule set at the latest registered version.
func (r *Registry[S, T]) Latest() (*VersionedRuleSet[S, T], bool) {
	v, ok := r.LatestVersion()
	if !ok {
		return nil, false
	}
	return r.Get(v)
}
