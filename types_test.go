package dtre

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionString(t *testing.T) {
	v := NewVersion(1, 2, 3)
	assert.Equal(t, "1.2.3", v.String())
}

func TestVersionIsCompatibleWith(t *testing.T) {
	a := NewVersion(1, 0, 0)
	b := NewVersion(1, 9, 9)
	c := NewVersion(2, 0, 0)
	assert.True(t, a.IsCompatibleWith(b), "expected %s compatible with %s", a, b)
	assert.False(t, a.IsCompatibleWith(c), "expected %s incompatible with %s", a, c)
}

func TestVersionLess(t *testing.T) {
	cases := []struct {
		a, b Version
		want bool
	}{
		{NewVersion(1, 0, 0), NewVersion(2, 0, 0), true},
		{NewVersion(1, 1, 0), NewVersion(1, 0, 9), false},
		{NewVersion(1, 0, 0), NewVersion(1, 0, 1), true},
		{NewVersion(1, 0, 0), NewVersion(1, 0, 0), false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, c.a.Less(c.b), "%s.Less(%s)", c.a, c.b)
	}
}

func TestStateHashStringAndIsZero(t *testing.T) {
	var h StateHash
	require.True(t, h.IsZero(), "zero-value StateHash should report IsZero")
	assert.Equal(t, strings.Repeat("0", 64), h.String())

	h[0] = 0xab
	assert.False(t, h.IsZero(), "non-zero hash should not report IsZero")
	assert.Equal(t, "ab", h.String()[:2])
}
