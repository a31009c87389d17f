package opt

import "math"

// DistanceMeta carries the per-feature ranges/domains the Gower distance
// normalizes against. Same shape as the pruned space's numeric/categorical
// blocks.
type DistanceMeta struct {
	Numeric     map[string]NumericRange
	Categorical map[string]CategoricalDomain
}

// MetaFromSpace extracts distance metadata from a pruned design space.
func MetaFromSpace(space DesignSpace) DistanceMeta {
	return DistanceMeta{Numeric: space.Numeric, Categorical: space.Categorical}
}

// GowerMatrix computes the pairwise Gower dissimilarity between two point
// lists. Every value is in [0, 1].
//
// Per pair, each feature compared contributes |a-b|/range (numeric; 0 when
// the range is 0 or unknown) or 0/1 equality (categorical), and the sum is
// divided by the number of features actually compared. Features missing a
// value on either side are skipped and do not count in the denominator.
// A pair with no comparable features gets distance 0.
//
// This is a bounded, symmetric dissimilarity, not a strict metric when
// feature sets differ per row.
func GowerMatrix(a, b []Point, meta DistanceMeta) [][]float64 {
	numFeats := sortedKeysNumeric(meta.Numeric)
	catFeats := sortedKeysCategorical(meta.Categorical)

	// Precompute numeric denominators.
	den := make([]float64, len(numFeats))
	for k, f := range numFeats {
		r := meta.Numeric[f]
		if r.Low != nil && r.High != nil {
			den[k] = *r.High - *r.Low
		}
	}

	out := make([][]float64, len(a))
	for i := range a {
		out[i] = make([]float64, len(b))
		for j := range b {
			sum := 0.0
			compared := 0
			for k, f := range numFeats {
				av, aok := a[i].Numeric[f]
				bv, bok := b[j].Numeric[f]
				if !aok || !bok {
					continue
				}
				if den[k] != 0 {
					sum += math.Abs(av-bv) / den[k]
				}
				compared++
			}
			for _, f := range catFeats {
				av, aok := a[i].Categorical[f]
				bv, bok := b[j].Categorical[f]
				if !aok || !bok {
					continue
				}
				if av != bv {
					sum++
				}
				compared++
			}
			if compared > 0 {
				out[i][j] = sum / float64(compared)
			}
		}
	}
	return out
}
