package opt

import "math"

// Guardrail filters: safety (extreme-prediction rejection), novelty
// (too-close-to-training rejection), and the diversity/uncertainty summaries
// the HITL ladder consumes.

// AbsLimits is an absolute keep-interval on predicted mu; either bound may be
// nil (open). Only consulted in deterministic mode.
type AbsLimits struct {
	Low  *float64
	High *float64
}

// ApplySafetyFilter returns a keep mask over mu plus the blocked count.
//
// Deterministic mode keeps points inside the closed [Low, High] interval.
// Every other mode is a relative-outlier filter: keep points whose mu lies
// within k*sigma of the batch median. A sigma==0 point then survives only
// when its mu equals the median exactly, which can reject all-but-one
// candidate in fully deterministic batches.
func ApplySafetyFilter(mu, sigma []float64, k float64, mode UncertaintyMode, limits *AbsLimits) ([]bool, int) {
	n := len(mu)
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	if mode == ModeDeterministic {
		if limits != nil {
			for i, m := range mu {
				if limits.Low != nil && m < *limits.Low {
					keep[i] = false
				}
				if limits.High != nil && m > *limits.High {
					keep[i] = false
				}
			}
		}
	} else {
		med := median(mu)
		for i, m := range mu {
			if math.Abs(m-med) > k*sigma[i] {
				keep[i] = false
			}
		}
	}

	blocked := 0
	for _, kp := range keep {
		if !kp {
			blocked++
		}
	}
	return keep, blocked
}

// ApplyNoveltyFilter keeps a candidate iff its minimum Gower distance to
// every training point is >= eps. An empty pool or empty training reference
// keeps everything with zero blocked.
func ApplyNoveltyFilter(pool []Point, training []Point, eps float64, meta DistanceMeta) ([]bool, int) {
	n := len(pool)
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}
	if n == 0 || len(training) == 0 {
		return keep, 0
	}

	dist := GowerMatrix(pool, training, meta)
	blocked := 0
	for i := range pool {
		minD := math.Inf(1)
		for j := range training {
			if dist[i][j] < minD {
				minD = dist[i][j]
			}
		}
		if minD < eps {
			keep[i] = false
			blocked++
		}
	}
	return keep, blocked
}

// SummarizeDiversity returns the minimum pairwise Gower distance among the
// selected subset (upper triangle only), or nil for fewer than two selected.
func SummarizeDiversity(pool []Point, selected []int, meta DistanceMeta) *float64 {
	if len(selected) < 2 {
		return nil
	}
	subset := make([]Point, len(selected))
	for i, idx := range selected {
		subset[i] = pool[idx]
	}
	dist := GowerMatrix(subset, subset, meta)
	minD := math.Inf(1)
	for i := 0; i < len(subset); i++ {
		for j := i + 1; j < len(subset); j++ {
			if dist[i][j] < minD {
				minD = dist[i][j]
			}
		}
	}
	return &minD
}

// ComputeUncertainFraction returns the fraction of sigma entries at or above
// sigmaHi. Empty input yields 0.
func ComputeUncertainFraction(sigma []float64, sigmaHi float64) float64 {
	if len(sigma) == 0 {
		return 0
	}
	count := 0
	for _, s := range sigma {
		if s >= sigmaHi {
			count++
		}
	}
	return float64(count) / float64(len(sigma))
}

// Metrics aggregates the counts the HITL ladder evaluates. Pure data.
type Metrics struct {
	CandidateCount      int      `json:"candidate_count"`
	SelectedCount       int      `json:"selected_count"`
	SafetyBlocked       int      `json:"safety_blocked"`
	NoveltyBlocked      int      `json:"novelty_blocked"`
	DiversityMin        *float64 `json:"diversity_min"`
	DiversityEps        *float64 `json:"diversity_eps,omitempty"`
	ApproxUncertainFrac float64  `json:"approx_uncertain_frac"`
}

// BuildMetrics assembles the metrics record consumed by EvaluateHITLLevel.
func BuildMetrics(candidateCount int, selected []int, safetyBlocked, noveltyBlocked int,
	diversityMin *float64, approxUncertainFrac float64) Metrics {
	return Metrics{
		CandidateCount:      candidateCount,
		SelectedCount:       len(selected),
		SafetyBlocked:       safetyBlocked,
		NoveltyBlocked:      noveltyBlocked,
		DiversityMin:        diversityMin,
		ApproxUncertainFrac: approxUncertainFrac,
	}
}
