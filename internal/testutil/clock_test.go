package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequentialClockAdvancesByStep(t *testing.T) {
	base := time.Unix(1000, 0)
	c := NewSequentialClock(base, time.Second)

	assert.True(t, c.Next().Equal(base), "first Next()")
	assert.True(t, c.Next().Equal(base.Add(time.Second)), "second Next()")
	assert.True(t, c.Current().Equal(base.Add(2*time.Second)), "Current()")
}

func TestSequentialClockReset(t *testing.T) {
	base := time.Unix(0, 0)
	c := NewSequentialClock(base, time.Minute)
	c.Next()
	c.Next()
	c.Reset()
	assert.True(t, c.Next().Equal(base), "expected Reset to rewind to base")
}

func TestSequentialClockDeterministicAcrossInstances(t *testing.T) {
	base := time.Unix(0, 0)
	a := NewSequentialClock(base, time.Second)
	b := NewSequentialClock(base, time.Second)
	for i := 0; i < 10; i++ {
		assert.True(t, a.Next().Equal(b.Next()), "two independently constructed clocks must produce identical sequences")
	}
}

func TestSequentialIDGenerator(t *testing.T) {
	g := NewSequentialIDGenerator("tx")
	assert.Equal(t, "tx-0001", g.Next())
	assert.Equal(t, "tx-0002", g.Next())
}

func TestFixedIDGenerator(t *testing.T) {
	g := NewFixedIDGenerator("acct-1")
	assert.Equal(t, "acct-1", g.Next())
	assert.Equal(t, "acct-1", g.Next())
}

func TestFixedIDGeneratorDefaultsWhenEmpty(t *testing.T) {
	g := NewFixedIDGenerator("")
	assert.Equal(t, "test-id-default", g.Next(), "expected default id for empty input")
}
