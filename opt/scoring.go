package opt

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Predictor is the opaque champion model contract: a mean prediction per
// candidate point.
type Predictor interface {
	Predict(points []Point) ([]float64, error)
}

// UncertaintyEstimator is the optional native-uncertainty capability. Models
// that expose it are used directly in ModeNative; everything else falls back
// to the approximate proxy.
type UncertaintyEstimator interface {
	PredictStd(points []Point) ([]float64, error)
}

// UncertaintyMode selects how sigma is obtained for scoring.
type UncertaintyMode string

const (
	// ModeDeterministic uses sigma = 0 for every point.
	ModeDeterministic UncertaintyMode = "deterministic"
	// ModeNative uses the model's PredictStd when available, silently falling
	// back to ModeApproxRF when the model lacks it or it fails.
	ModeNative UncertaintyMode = "native"
	// ModeApproxRF synthesizes sigma from the spread of mu around its own
	// median. An uncalibrated proxy: non-negative and roughly ordered by
	// distance from the median, nothing more.
	ModeApproxRF UncertaintyMode = "approx_rf"
)

// approxEpsilon floors the approximate sigma away from exact zero.
const approxEpsilon = 1e-6

// PredictMuSigma returns (mu, sigma) for candidates X under the given mode.
// A failing Predict is a model error; a failing PredictStd is downgraded to
// the approximate path without surfacing the failure.
func PredictMuSigma(model Predictor, x []Point, mode UncertaintyMode) (mu, sigma []float64, err error) {
	if len(x) == 0 {
		return []float64{}, []float64{}, nil
	}

	mu, err = model.Predict(x)
	if err != nil {
		return nil, nil, modelErrorf("model predict failed: %v", err)
	}
	if len(mu) != len(x) {
		return nil, nil, modelErrorf("model returned %d predictions for %d candidates", len(mu), len(x))
	}
	n := len(mu)

	if mode == ModeDeterministic {
		return mu, make([]float64, n), nil
	}

	if mode == ModeNative {
		if est, ok := model.(UncertaintyEstimator); ok {
			std, stdErr := est.PredictStd(x)
			if stdErr == nil && len(std) == n {
				sigma = make([]float64, n)
				for i, s := range std {
					sigma[i] = math.Max(s, 0)
				}
				return mu, sigma, nil
			}
			// fall through to approx
		}
	}

	// Approximate sigma: MAD-normalized distance from the batch median,
	// rescaled by the overall spread and floored at approxEpsilon.
	med := median(mu)
	dev := make([]float64, n)
	for i, m := range mu {
		dev[i] = math.Abs(m - med)
	}
	mad := median(dev)
	if mad == 0 {
		mad = approxEpsilon
	}
	spread := popStdDev(mu)
	if spread == 0 {
		spread = 1.0
	}
	sigma = make([]float64, n)
	for i := range dev {
		sigma[i] = math.Max(dev[i]/mad*0.25*spread, approxEpsilon)
	}
	return mu, sigma, nil
}

// ScoreAcquisition computes per-point acquisition scores for maximization.
//
//	EI : (mu-yBest)*Phi(z) + sigma*phi(z), z = (mu-yBest)/sigma  (sigma>0)
//	UCB: mu + k*sigma
//	PI : Phi(z)
//
// qEI is mapped to EI for per-point scoring; the batch aspect is handled by
// SelectBatch. Degenerate sigma==0 points use the exact limits: EI becomes
// max(mu-yBest, 0), PI becomes 1 if mu>yBest else 0.
func ScoreAcquisition(acq string, mu, sigma []float64, yBest, ucbK float64) ([]float64, error) {
	name := strings.ToUpper(strings.TrimSpace(acq))
	if name == "QEI" {
		name = "EI"
	}
	switch name {
	case "EI", "UCB", "PI":
	default:
		return nil, configErrorf("unknown acquisition %q", acq)
	}

	norm := distuv.UnitNormal
	out := make([]float64, len(mu))
	for i := range mu {
		m, s := mu[i], sigma[i]
		switch name {
		case "UCB":
			out[i] = m + ucbK*s
		case "EI":
			if s > 0 {
				z := (m - yBest) / s
				out[i] = (m-yBest)*norm.CDF(z) + s*norm.Prob(z)
			} else {
				out[i] = math.Max(m-yBest, 0)
			}
		case "PI":
			if s > 0 {
				out[i] = norm.CDF((m - yBest) / s)
			} else if m > yBest {
				out[i] = 1.0
			}
		}
	}
	return out, nil
}

// SelectBatch picks up to k indices balancing score and mutual diversity.
//
// It starts from the best-scoring candidate, then greedily adds the candidate
// with the largest minimum Gower distance to the already-selected set, ties
// broken by higher raw score. A nil meta disables the diversity stage and
// returns only the single best candidate.
func SelectBatch(points []Point, scores []float64, k int, meta *DistanceMeta) []int {
	n := len(points)
	if n == 0 || k <= 0 {
		return []int{}
	}
	if k > n {
		k = n
	}

	best := 0
	for i := 1; i < n; i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	selected := []int{best}
	if k == 1 || meta == nil {
		return selected
	}

	dist := GowerMatrix(points, points, *meta)
	inBatch := make([]bool, n)
	inBatch[best] = true

	for len(selected) < k {
		bestIdx := -1
		bestMinD := math.Inf(-1)
		for i := 0; i < n; i++ {
			if inBatch[i] {
				continue
			}
			minD := math.Inf(1)
			for _, s := range selected {
				if dist[i][s] < minD {
					minD = dist[i][s]
				}
			}
			if minD > bestMinD || (minD == bestMinD && bestIdx >= 0 && scores[i] > scores[bestIdx]) {
				bestMinD = minD
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		inBatch[bestIdx] = true
		selected = append(selected, bestIdx)
	}
	return selected
}

// median returns the middle value (mean of the two middles for even length),
// matching numpy semantics. Returns 0 for an empty slice.
func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// popStdDev is the population standard deviation (divide by n).
func popStdDev(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(n)
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}
