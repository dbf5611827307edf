package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string
	Amount  int64
	Tags    []string
	Weights map[string]int64
}

func TestCompactEncodeDeterministic(t *testing.T) {
	v := sample{
		Name:   "café",
		Amount: 42,
		Tags:   []string{"a", "b"},
		Weights: map[string]int64{
			"z": 1,
			"a": 2,
			"m": 3,
		},
	}

	a, err := (Compact{}).Encode(v)
	require.NoError(t, err)
	b, err := (Compact{}).Encode(v)
	require.NoError(t, err)
	assert.Equal(t, a, b, "repeated encodes of the same value must be byte-identical")
}

func TestCompactEncodeRoundTrip(t *testing.T) {
	v := sample{
		Name:   "widget",
		Amount: 7,
		Tags:   []string{"x", "y", "z"},
		Weights: map[string]int64{
			"one": 1,
			"two": 2,
		},
	}

	encoded, err := (Compact{}).Encode(v)
	require.NoError(t, err)

	var out sample
	require.NoError(t, (Compact{}).Decode(encoded, &out))

	assert.Equal(t, v.Name, out.Name)
	assert.Equal(t, v.Amount, out.Amount)
	assert.Equal(t, v.Tags, out.Tags)
	for k, want := range v.Weights {
		assert.Equal(t, want, out.Weights[k], "Weights[%q]", k)
	}
}

func TestCompactEncodeMapKeyOrderIndependent(t *testing.T) {
	m1 := map[string]int64{"a": 1, "b": 2, "c": 3}
	m2 := map[string]int64{"c": 3, "b": 2, "a": 1}

	e1, err := (Compact{}).Encode(m1)
	require.NoError(t, err)
	e2, err := (Compact{}).Encode(m2)
	require.NoError(t, err)
	assert.Equal(t, e1, e2, "maps with identical content but different construction order must encode identically")
}

func TestCompactEncodeRejectsFloats(t *testing.T) {
	_, err := (Compact{}).Encode(3.14)
	assert.Error(t, err, "expected an error encoding a float value")
}

func TestCompactEncodeNFCNormalizesStrings(t *testing.T) {
	// "é" as a single code point (U+00E9) vs. "e" + combining acute accent
	// (U+0065 U+0301) are canonically equivalent and must hash identically.
	precomposed := "café"
	decomposed := "café"

	e1, err := (Compact{}).Encode(precomposed)
	require.NoError(t, err)
	e2, err := (Compact{}).Encode(decomposed)
	require.NoError(t, err)
	assert.Equal(t, e1, e2, "NFC-equivalent strings must encode identically")
}

func TestJSONRoundTrip(t *testing.T) {
	v := sample{Name: "n", Amount: 1, Tags: []string{"t"}, Weights: map[string]int64{"k": 1}}
	enc, err := JSON{}.Encode(v)
	require.NoError(t, err)
	var out sample
	require.NoError(t, JSON{}.Decode(enc, &out))
	assert.Equal(t, v.Name, out.Name)
	assert.Equal(t, v.Amount, out.Amount)
}

func TestSerializationContextMatches(t *testing.T) {
	ctx := FromSerializer(Compact{})
	assert.True(t, ctx.Matches(Compact{}), "expected context derived from Compact to match Compact")
	assert.False(t, ctx.Matches(JSON{}), "expected context derived from Compact to not match JSON")
}
