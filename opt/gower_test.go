package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gowerMeta() DistanceMeta {
	return DistanceMeta{
		Numeric: map[string]NumericRange{
			"X": {Low: ptr(0), High: ptr(10)},
		},
		Categorical: map[string]CategoricalDomain{
			"STAGE": {Allowed: []string{"A", "B"}},
		},
	}
}

func TestGowerMatrix_IdentityAndBounds(t *testing.T) {
	points := []Point{
		{Numeric: map[string]float64{"X": 0}, Categorical: map[string]string{"STAGE": "A"}},
		{Numeric: map[string]float64{"X": 5}, Categorical: map[string]string{"STAGE": "A"}},
		{Numeric: map[string]float64{"X": 10}, Categorical: map[string]string{"STAGE": "B"}},
	}
	d := GowerMatrix(points, points, gowerMeta())
	for i := range points {
		assert.Zero(t, d[i][i])
		for j := range points {
			assert.GreaterOrEqual(t, d[i][j], 0.0)
			assert.LessOrEqual(t, d[i][j], 1.0)
			assert.Equal(t, d[i][j], d[j][i])
		}
	}

	// |0-5|/10 averaged with an equal categorical.
	assert.InDelta(t, 0.25, d[0][1], 1e-12)
	// |0-10|/10 averaged with a differing categorical.
	assert.InDelta(t, 1.0, d[0][2], 1e-12)
}

func TestGowerMatrix_MissingFeaturesSkipped(t *testing.T) {
	a := []Point{{Numeric: map[string]float64{"X": 3}}}
	b := []Point{{Categorical: map[string]string{"STAGE": "B"}}}
	d := GowerMatrix(a, b, gowerMeta())
	// No feature comparable on both sides.
	assert.Zero(t, d[0][0])

	// A shared categorical alongside a one-sided numeric: only the shared
	// feature counts in the denominator.
	b[0].Categorical["STAGE"] = "B"
	a[0].Categorical = map[string]string{"STAGE": "A"}
	d = GowerMatrix(a, b, gowerMeta())
	assert.InDelta(t, 1.0, d[0][0], 1e-12)
}

func TestGowerMatrix_ZeroRangeContributesNothing(t *testing.T) {
	meta := DistanceMeta{Numeric: map[string]NumericRange{
		"X": {Low: ptr(5), High: ptr(5)},
		"Y": {Low: ptr(0), High: ptr(2)},
	}}
	a := []Point{{Numeric: map[string]float64{"X": 5, "Y": 0}}}
	b := []Point{{Numeric: map[string]float64{"X": 5, "Y": 1}}}
	d := GowerMatrix(a, b, meta)
	// X is compared (denominator 2) but adds zero; Y adds 0.5.
	require.Len(t, d, 1)
	assert.InDelta(t, 0.25, d[0][0], 1e-12)
}

func TestGowerMatrix_UnknownRangeContributesNothing(t *testing.T) {
	meta := DistanceMeta{Numeric: map[string]NumericRange{"X": {}}}
	a := []Point{{Numeric: map[string]float64{"X": 1}}}
	b := []Point{{Numeric: map[string]float64{"X": 100}}}
	d := GowerMatrix(a, b, meta)
	assert.Zero(t, d[0][0])
}
