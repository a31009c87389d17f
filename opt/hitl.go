package opt

import "fmt"

// Human-in-the-loop risk ladder. Levels:
//
//	L0 OK, L1 heads-up, L2 elevated, L3 high, L4 infeasible (hard block).
//
// Each rule may only raise the level; L4 short-circuits the remaining rules.

// Thresholds parameterize the ladder rules.
type Thresholds struct {
	MinSelectedOK    float64 `yaml:"min_selected_ok" json:"min_selected_ok"`
	BatchFractionLow float64 `yaml:"batch_fraction_low" json:"batch_fraction_low"`
	DiversityEps     float64 `yaml:"diversity_eps" json:"diversity_eps"`
	UncertainFracHi  float64 `yaml:"uncertain_frac_hi" json:"uncertain_frac_hi"`
	BlockRateHi      float64 `yaml:"block_rate_hi" json:"block_rate_hi"`
}

// DefaultThresholds returns the stock ladder thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSelectedOK:    1,
		BatchFractionLow: 0.5,
		DiversityEps:     0.15,
		UncertainFracHi:  0.60,
		BlockRateHi:      0.50,
	}
}

// EvaluateHITLLevel computes the ladder level (0-4) and its messages from
// selection metrics. Rules, in order:
//
//  1. L4 when fewer than MinSelectedOK candidates were selected; returns
//     immediately without evaluating further rules.
//  2. L3 when (safety+novelty blocked) / candidate count >= BlockRateHi.
//  3. L2 when the batch is underfilled below BatchFractionLow of the request,
//     or the uncertain fraction reaches UncertainFracHi.
//  4. L1 when diversity_min is known and below DiversityEps.
//
// The metrics' DiversityEps, when set, overrides the threshold's.
func EvaluateHITLLevel(m Metrics, requestedBatch int, t Thresholds) (int, []string) {
	level := 0
	var msgs []string

	dEps := t.DiversityEps
	if m.DiversityEps != nil {
		dEps = *m.DiversityEps
	}

	if float64(m.SelectedCount) < t.MinSelectedOK {
		msgs = append(msgs, "Empty batch: no feasible proposals selected. Relax constraints or broaden bounds.")
		return 4, msgs
	}

	blockRate := 0.0
	if m.CandidateCount > 0 {
		blockRate = float64(m.SafetyBlocked+m.NoveltyBlocked) / float64(m.CandidateCount)
	}
	if blockRate >= t.BlockRateHi {
		level = maxInt(level, 3)
		msgs = append(msgs, fmt.Sprintf("Severe pruning: %.0f%% of pool blocked by safety/novelty.", blockRate*100))
	}

	if requestedBatch > 0 && m.SelectedCount < int(t.BatchFractionLow*float64(requestedBatch)) {
		level = maxInt(level, 2)
		msgs = append(msgs, fmt.Sprintf("Underfilled batch: %d/%d selected. Relax constraints for more candidates.",
			m.SelectedCount, requestedBatch))
	}
	if m.ApproxUncertainFrac >= t.UncertainFracHi {
		level = maxInt(level, 2)
		msgs = append(msgs, fmt.Sprintf("High uncertainty: %d%% of selected have high sigma.",
			int(m.ApproxUncertainFrac*100)))
	}

	if m.DiversityMin != nil && *m.DiversityMin < dEps {
		level = maxInt(level, 1)
		msgs = append(msgs, fmt.Sprintf("Low diversity: min pairwise distance %.2f < eps=%.2f.", *m.DiversityMin, dEps))
	}

	return level, msgs
}

// RequireAck reports whether the level demands operator acknowledgment.
// L4 also returns true, but it is a hard block upstream; callers must check
// the level itself to distinguish block from ack.
func RequireAck(level int) bool {
	return level >= 1
}

// AckRecord is the per-evaluation acknowledgment document. The operator
// acknowledgment action is the only thing that ever fills AckTS.
type AckRecord struct {
	AckRequired bool     `json:"ack_required"`
	Level       int      `json:"level"`
	Messages    []string `json:"messages"`
	Operator    string   `json:"operator"`
	AckTS       *string  `json:"ack_ts"`
}

// BuildAckRecord creates the acknowledgment record for a ladder evaluation.
// An empty operator is recorded as "unknown".
func BuildAckRecord(level int, messages []string, operator string) AckRecord {
	if operator == "" {
		operator = "unknown"
	}
	if messages == nil {
		messages = []string{}
	}
	return AckRecord{
		AckRequired: RequireAck(level),
		Level:       level,
		Messages:    append([]string(nil), messages...),
		Operator:    operator,
	}
}

// SummarizeForTrace merges the ladder level into the key metrics for the
// optimization trace payload.
func SummarizeForTrace(level int, m Metrics) map[string]any {
	return map[string]any{
		"candidate_count":       m.CandidateCount,
		"selected_count":        m.SelectedCount,
		"safety_blocked":        m.SafetyBlocked,
		"novelty_blocked":       m.NoveltyBlocked,
		"diversity_min":         m.DiversityMin,
		"approx_uncertain_frac": m.ApproxUncertainFrac,
		"hitl_level":            level,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
