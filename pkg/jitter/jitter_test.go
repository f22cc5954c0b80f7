package jitter

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationWithinBounds(t *testing.T) {
	base := time.Second

	for i := 0; i < 100; i++ {
		d := Duration(base, DefaultJitter)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}

func TestDurationWithRandDeterministic(t *testing.T) {
	a := DurationWithRand(time.Second, DefaultJitter, rand.New(rand.NewPCG(42, 0)))
	b := DurationWithRand(time.Second, DefaultJitter, rand.New(rand.NewPCG(42, 0)))

	assert.Equal(t, a, b)
}

func TestExponentialBackoffGrows(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Minute

	assert.Equal(t, base, ExponentialBackoff(base, max, 0, 0))
	assert.Equal(t, 2*base, ExponentialBackoff(base, max, 1, 0))
	assert.Equal(t, 4*base, ExponentialBackoff(base, max, 2, 0))
}

func TestExponentialBackoffCappedByMax(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	assert.Equal(t, max, ExponentialBackoff(base, max, 10, 0))
}
