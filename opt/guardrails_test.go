package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySafetyFilter_DeterministicLimits(t *testing.T) {
	mu := []float64{0, 1, 2, 3}
	sigma := []float64{0, 0, 0, 0}
	limits := &AbsLimits{Low: ptr(0.5), High: ptr(2.5)}

	keep, blocked := ApplySafetyFilter(mu, sigma, 2.0, ModeDeterministic, limits)
	assert.Equal(t, []bool{false, true, true, false}, keep)
	assert.Equal(t, 2, blocked)
}

func TestApplySafetyFilter_DeterministicNoLimits(t *testing.T) {
	keep, blocked := ApplySafetyFilter([]float64{0, 100, -100}, []float64{0, 0, 0}, 2.0, ModeDeterministic, nil)
	assert.Equal(t, []bool{true, true, true}, keep)
	assert.Zero(t, blocked)
}

func TestApplySafetyFilter_RelativeBand(t *testing.T) {
	mu := []float64{0, 10, 20}

	keep, blocked := ApplySafetyFilter(mu, []float64{100, 100, 100}, 1.0, ModeApproxRF, nil)
	assert.Equal(t, []bool{true, true, true}, keep)
	assert.Zero(t, blocked)

	keep, blocked = ApplySafetyFilter(mu, []float64{1, 1, 1}, 1.0, ModeApproxRF, nil)
	assert.Equal(t, []bool{false, true, false}, keep)
	assert.Equal(t, 2, blocked)
}

func TestApplySafetyFilter_ZeroSigmaKeepsOnlyMedian(t *testing.T) {
	keep, blocked := ApplySafetyFilter([]float64{1, 2, 3}, []float64{0, 0, 0}, 2.0, ModeApproxRF, nil)
	assert.Equal(t, []bool{false, true, false}, keep)
	assert.Equal(t, 2, blocked)
}

func TestApplyNoveltyFilter(t *testing.T) {
	meta := DistanceMeta{Numeric: map[string]NumericRange{"X": {Low: ptr(0), High: ptr(1)}}}
	pool := []Point{
		{Numeric: map[string]float64{"X": 0.5}},
		{Numeric: map[string]float64{"X": 0.9}},
	}
	training := []Point{{Numeric: map[string]float64{"X": 0.5}}}

	keep, blocked := ApplyNoveltyFilter(pool, training, 0.05, meta)
	assert.Equal(t, []bool{false, true}, keep)
	assert.Equal(t, 1, blocked)

	// No training reference keeps everything.
	keep, blocked = ApplyNoveltyFilter(pool, nil, 0.05, meta)
	assert.Equal(t, []bool{true, true}, keep)
	assert.Zero(t, blocked)

	// eps 0 disables the filter even for exact duplicates.
	keep, blocked = ApplyNoveltyFilter(pool, training, 0, meta)
	assert.Equal(t, []bool{true, true}, keep)
	assert.Zero(t, blocked)
}

func TestSummarizeDiversity(t *testing.T) {
	meta := DistanceMeta{Numeric: map[string]NumericRange{"X": {Low: ptr(0), High: ptr(1)}}}
	pool := []Point{
		{Numeric: map[string]float64{"X": 0}},
		{Numeric: map[string]float64{"X": 0.4}},
		{Numeric: map[string]float64{"X": 1}},
	}

	assert.Nil(t, SummarizeDiversity(pool, []int{0}, meta))
	assert.Nil(t, SummarizeDiversity(pool, nil, meta))

	got := SummarizeDiversity(pool, []int{0, 1, 2}, meta)
	require.NotNil(t, got)
	assert.InDelta(t, 0.4, *got, 1e-12)
}

func TestComputeUncertainFraction(t *testing.T) {
	assert.Zero(t, ComputeUncertainFraction(nil, 1))
	// The threshold is inclusive.
	assert.Equal(t, 0.5, ComputeUncertainFraction([]float64{0.1, 0.2, 0.3, 0.4}, 0.3))
	assert.Equal(t, 1.0, ComputeUncertainFraction([]float64{0, 0}, 0))
}

func TestBuildMetrics(t *testing.T) {
	d := 0.2
	m := BuildMetrics(100, []int{3, 7, 9}, 10, 5, &d, 0.33)
	assert.Equal(t, 100, m.CandidateCount)
	assert.Equal(t, 3, m.SelectedCount)
	assert.Equal(t, 10, m.SafetyBlocked)
	assert.Equal(t, 5, m.NoveltyBlocked)
	assert.Equal(t, &d, m.DiversityMin)
	assert.Equal(t, 0.33, m.ApproxUncertainFrac)
}
