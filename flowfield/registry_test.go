package flowfield

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSharesOneGeneratorPerKey(t *testing.T) {
	r := NewRegistry(100, 100, 10, nil)
	key := DerivedKey(55, 55, 10)

	first := r.Acquire(key, 55, 55)
	second := r.Acquire(key, 55, 55)

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Len())
}

func TestReleaseEvictsOnLastReference(t *testing.T) {
	r := NewRegistry(100, 100, 10, nil)
	key := ExplicitKey("rally-point")

	r.Acquire(key, 20, 20)
	r.Acquire(key, 20, 20)
	require.Equal(t, 1, r.Len())

	r.Release(key)
	assert.Equal(t, 1, r.Len(), "field must survive while a reference remains")

	r.Release(key)
	assert.Equal(t, 0, r.Len(), "last release must evict the field")
}

func TestReleaseUnknownKeyIsHarmless(t *testing.T) {
	r := NewRegistry(100, 100, 10, nil)
	r.Release(ExplicitKey("never-acquired"))
	assert.Equal(t, 0, r.Len())
}

func TestExplicitAndDerivedKeysNeverCollide(t *testing.T) {
	// An explicit id that happens to look like coordinates must not share a
	// field with the derived key for those coordinates.
	explicit := ExplicitKey("5,5")
	derived := DerivedKey(55, 55, 10)
	assert.NotEqual(t, explicit, derived)

	r := NewRegistry(100, 100, 10, nil)
	r.Acquire(explicit, 55, 55)
	r.Acquire(derived, 55, 55)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryObstaclesFanOutToEveryField(t *testing.T) {
	r := NewRegistry(10, 10, 1, nil)
	a := r.Acquire(ExplicitKey("a"), 0.5, 0.5)
	b := r.Acquire(ExplicitKey("b"), 9.5, 9.5)

	for row := 0; row < 10; row++ {
		r.AddObstacle(4.5, float64(row)+0.5)
	}
	assert.True(t, math.IsInf(a.Cost(9.5, 0.5), 1))
	assert.True(t, math.IsInf(b.Cost(0.5, 9.5), 1))

	r.RemoveObstacle(4.5, 4.5)
	r.Invalidate()
	assert.False(t, math.IsInf(a.Cost(9.5, 0.5), 1))
	assert.False(t, math.IsInf(b.Cost(0.5, 9.5), 1))
}
