package opt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleableSpace() DesignSpace {
	return DesignSpace{
		Numeric: map[string]NumericRange{
			"USAGE": {Low: ptr(0), High: ptr(10)},
		},
		Categorical: map[string]CategoricalDomain{
			"STAGE": {Allowed: []string{"A", "B"}},
		},
	}
}

func TestCircuitBreakIfEmpty(t *testing.T) {
	// Nothing resolved anywhere.
	err := circuitBreakIfEmpty(DesignSpace{
		Numeric:     map[string]NumericRange{"X": {}},
		Categorical: map[string]CategoricalDomain{"C": {}},
	})
	require.Error(t, err)
	assert.True(t, IsInfeasible(err))

	// A declared-empty categorical domain is fatal even with a sampleable
	// numeric feature alongside.
	err = circuitBreakIfEmpty(DesignSpace{
		Numeric:     map[string]NumericRange{"X": {Low: ptr(0), High: ptr(1)}},
		Categorical: map[string]CategoricalDomain{"C": {Allowed: []string{}}},
	})
	require.Error(t, err)
	assert.True(t, IsInfeasible(err))

	assert.NoError(t, circuitBreakIfEmpty(sampleableSpace()))
}

func TestBuildPool_BoundsAndUniqueness(t *testing.T) {
	pool, err := BuildPool(sampleableSpace(), 64, 42)
	require.NoError(t, err)
	require.NotEmpty(t, pool.Points)
	assert.LessOrEqual(t, len(pool.Points), 64)
	assert.Equal(t, []string{"USAGE"}, pool.Schema.NumericFeatures)
	assert.Equal(t, []string{"STAGE"}, pool.Schema.CategoricalFeatures)

	seen := map[string]bool{}
	for _, p := range pool.Points {
		v := p.Numeric["USAGE"]
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 10.0)
		assert.Contains(t, []string{"A", "B"}, p.Categorical["STAGE"])

		key := dedupKey(pool.Schema, p)
		assert.False(t, seen[key], "duplicate candidate %s", key)
		seen[key] = true
	}
}

func TestBuildPool_StepGrid(t *testing.T) {
	space := DesignSpace{Numeric: map[string]NumericRange{
		"USAGE": {Low: ptr(0), High: ptr(10), Step: ptr(2.5)},
	}}
	pool, err := BuildPool(space, 32, 7)
	require.NoError(t, err)
	for _, p := range pool.Points {
		v := p.Numeric["USAGE"]
		steps := v / 2.5
		assert.InDelta(t, math.Round(steps), steps, 1e-9, "value %v off the step grid", v)
	}
}

func TestBuildPool_DedupShrinksCoarseGrid(t *testing.T) {
	space := DesignSpace{Numeric: map[string]NumericRange{
		"USAGE": {Low: ptr(0), High: ptr(1), Step: ptr(1)},
	}}
	pool, err := BuildPool(space, 50, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(pool.Points), 2)
}

func TestBuildPool_Deterministic(t *testing.T) {
	a, err := BuildPool(sampleableSpace(), 32, 1729)
	require.NoError(t, err)
	b, err := BuildPool(sampleableSpace(), 32, 1729)
	require.NoError(t, err)
	require.Equal(t, len(a.Points), len(b.Points))
	for i := range a.Points {
		assert.Equal(t, a.Points[i], b.Points[i])
	}

	c, err := BuildPool(sampleableSpace(), 32, 9)
	require.NoError(t, err)
	assert.NotEqual(t, a.Points, c.Points)
}

func TestBuildPool_OpenBoundsFeatureDropped(t *testing.T) {
	space := DesignSpace{
		Numeric: map[string]NumericRange{
			"OPEN": {},
		},
		Categorical: map[string]CategoricalDomain{
			"STAGE": {Allowed: []string{"A", "B"}},
		},
	}
	pool, err := BuildPool(space, 16, 5)
	require.NoError(t, err)
	assert.Empty(t, pool.Schema.NumericFeatures)
	assert.Equal(t, []string{"STAGE"}, pool.Schema.CategoricalFeatures)
	for _, p := range pool.Points {
		assert.Nil(t, p.Numeric)
	}
}
