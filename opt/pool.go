package opt

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// Point is one mixed-type candidate or observation. Values live in separate
// numeric/categorical maps; a feature absent from both maps is "missing" and
// is skipped by the distance engine.
type Point struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

// Schema is the declared, ordered feature list for a pool: numeric then
// categorical, each sorted by name. It fixes dedup-key and CSV column order.
type Schema struct {
	NumericFeatures     []string
	CategoricalFeatures []string
}

// Columns returns all feature names in schema order.
func (s Schema) Columns() []string {
	out := make([]string, 0, len(s.NumericFeatures)+len(s.CategoricalFeatures))
	out = append(out, s.NumericFeatures...)
	out = append(out, s.CategoricalFeatures...)
	return out
}

// Pool is a finite ordered list of unique candidate points.
type Pool struct {
	Schema Schema
	Points []Point
}

// circuitBreakIfEmpty rejects a space with nothing to sample: no numeric
// feature with a resolved low<=high range AND no categorical feature with a
// non-empty domain. A declared-but-empty categorical domain is always fatal,
// even when other features remain sampleable.
func circuitBreakIfEmpty(space DesignSpace) error {
	hasNumeric := false
	for _, r := range space.Numeric {
		if r.Low != nil && r.High != nil && *r.Low <= *r.High {
			hasNumeric = true
			break
		}
	}

	hasCategorical := false
	for _, feat := range space.CategoricalFeatures() {
		allowed := space.Categorical[feat].Allowed
		if allowed == nil {
			continue
		}
		if len(allowed) == 0 {
			return infeasibleErrorf("[candidate_pool] categorical %q has empty allowed domain", feat)
		}
		hasCategorical = true
	}

	if !hasNumeric && !hasCategorical {
		return infeasibleErrorf(
			"empty feasible set: no valid numeric ranges and no categorical domains; relax constraints, set numeric bounds, or provide categorical allowed sets")
	}
	return nil
}

// BuildPool samples up to nPool unique candidates from a pruned space.
//
// Numeric features with resolved bounds are sampled with Latin Hypercube
// stratification and snapped to their step grid; features with open bounds
// are left out of the pool entirely. Categorical features with known domains
// are drawn uniformly. Rows are deduplicated on the full value tuple, so the
// pool may come back smaller than requested, especially on coarse step grids.
func BuildPool(space DesignSpace, nPool int, seed int64) (*Pool, error) {
	if err := circuitBreakIfEmpty(space); err != nil {
		return nil, err
	}

	rng := NewPartitionedRNG(NewRunKey(seed))

	var numFeats []string
	var lows, highs []float64
	var steps []*float64
	for _, f := range space.NumericFeatures() {
		r := space.Numeric[f]
		if r.Low == nil || r.High == nil || *r.High < *r.Low {
			continue
		}
		numFeats = append(numFeats, f)
		lows = append(lows, *r.Low)
		highs = append(highs, *r.High)
		steps = append(steps, copyPtr(r.Step))
	}

	var catFeats []string
	var catDomains [][]string
	for _, f := range space.CategoricalFeatures() {
		allowed := space.Categorical[f].Allowed
		if allowed == nil {
			continue
		}
		catFeats = append(catFeats, f)
		catDomains = append(catDomains, allowed)
	}

	numSamples := sampleNumericLHS(lows, highs, steps, nPool, rng.ForSubsystem(SubsystemLHS))
	catSamples := sampleCategorical(catDomains, nPool, rng.ForSubsystem(SubsystemCategorical))

	schema := Schema{NumericFeatures: numFeats, CategoricalFeatures: catFeats}
	pool := &Pool{Schema: schema}
	seen := make(map[string]bool, nPool)
	for i := 0; i < nPool; i++ {
		p := Point{}
		if len(numFeats) > 0 {
			p.Numeric = make(map[string]float64, len(numFeats))
			for j, f := range numFeats {
				p.Numeric[f] = numSamples[i][j]
			}
		}
		if len(catFeats) > 0 {
			p.Categorical = make(map[string]string, len(catFeats))
			for j, f := range catFeats {
				p.Categorical[f] = catSamples[i][j]
			}
		}
		key := dedupKey(schema, p)
		if seen[key] {
			continue
		}
		seen[key] = true
		pool.Points = append(pool.Points, p)
		if len(pool.Points) >= nPool {
			break
		}
	}

	return pool, nil
}

// sampleNumericLHS draws n stratified samples over the box [lows, highs]:
// one stratum per sample per dimension, independently permuted per dimension,
// then scaled to bounds and snapped to the step grid from low (clamped after
// snapping).
func sampleNumericLHS(lows, highs []float64, steps []*float64, n int, rng *rand.Rand) [][]float64 {
	d := len(lows)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, d)
	}
	if d == 0 || n == 0 {
		return out
	}

	col := make([]float64, n)
	for j := 0; j < d; j++ {
		for i := 0; i < n; i++ {
			col[i] = (float64(i) + rng.Float64()) / float64(n)
		}
		rng.Shuffle(n, func(a, b int) { col[a], col[b] = col[b], col[a] })

		span := highs[j] - lows[j]
		for i := 0; i < n; i++ {
			v := lows[j] + col[i]*span
			if step := steps[j]; step != nil && *step > 0 {
				v = lows[j] + math.Round((v-lows[j])/(*step))*(*step)
				v = math.Min(math.Max(v, lows[j]), highs[j])
			}
			out[i][j] = v
		}
	}
	return out
}

// sampleCategorical draws n tuples, each feature independently uniform over
// its domain.
func sampleCategorical(domains [][]string, n int, rng *rand.Rand) [][]string {
	out := make([][]string, n)
	for i := range out {
		row := make([]string, len(domains))
		for j, dom := range domains {
			row[j] = dom[rng.Intn(len(dom))]
		}
		out[i] = row
	}
	return out
}

// dedupKey builds a canonical tuple key over all schema features.
func dedupKey(schema Schema, p Point) string {
	var b strings.Builder
	for _, f := range schema.NumericFeatures {
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(p.Numeric[f], 'g', -1, 64))
		b.WriteByte(';')
	}
	for _, f := range schema.CategoricalFeatures {
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(p.Categorical[f])
		b.WriteByte(';')
	}
	return b.String()
}
