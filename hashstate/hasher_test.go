package hashstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/codec"
)

type intState int

func (s intState) Clone() intState { return s }
func (s intState) Validate() error { return nil }

func TestHashIsRepeatable(t *testing.T) {
	h1, err := Hash[intState](intState(7), codec.Compact{})
	require.NoError(t, err)
	h2, err := Hash[intState](intState(7), codec.Compact{})
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "hash(S) must be repeatable for the same S")
}

func TestHashDistinguishesDifferentStates(t *testing.T) {
	h1, err := Hash[intState](intState(1), codec.Compact{})
	require.NoError(t, err)
	h2, err := Hash[intState](intState(2), codec.Compact{})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "different states must hash differently")
}

func TestHashChainOrderSensitive(t *testing.T) {
	var a, b dtre.StateHash
	a[0] = 1
	b[0] = 2

	ab := HashChain([]dtre.StateHash{a, b})
	ba := HashChain([]dtre.StateHash{b, a})
	assert.NotEqual(t, ab, ba, "hash_chain(a,b) must differ from hash_chain(b,a) when a != b")
}

func TestHashChainSingleNotEqualToHash(t *testing.T) {
	var h dtre.StateHash
	h[0] = 0xaa
	chained := HashChain([]dtre.StateHash{h})
	assert.NotEqual(t, h, chained, "hash_chain([h]) must not equal h (domain separation)")
}

func TestExtendChainNotEquivalentToHashChain(t *testing.T) {
	var h1, h2 dtre.StateHash
	h1[0] = 1
	h2[0] = 2

	extended := ExtendChain(h1, h2)
	chained := HashChain([]dtre.StateHash{h1, h2})
	assert.NotEqual(t, extended, chained, "extend_chain must not be equivalent to hash_chain over the same two hashes")
}

func TestExtendChainOrderSensitive(t *testing.T) {
	var h1, h2 dtre.StateHash
	h1[0] = 1
	h2[0] = 2

	assert.NotEqual(t, ExtendChain(h1, h2), ExtendChain(h2, h1), "extend_chain(h1,h2) must differ from extend_chain(h2,h1)")
}
