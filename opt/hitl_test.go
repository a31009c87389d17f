package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateHITLLevel_EmptyBatchShortCircuits(t *testing.T) {
	// Everything else is also bad; the empty batch must win alone.
	d := 0.01
	m := Metrics{
		CandidateCount:      10,
		SelectedCount:       0,
		SafetyBlocked:       9,
		NoveltyBlocked:      1,
		DiversityMin:        &d,
		ApproxUncertainFrac: 1.0,
	}
	level, msgs := EvaluateHITLLevel(m, 8, DefaultThresholds())
	assert.Equal(t, 4, level)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Empty batch")
}

func TestEvaluateHITLLevel_SeverePruning(t *testing.T) {
	m := Metrics{CandidateCount: 10, SelectedCount: 5, SafetyBlocked: 3, NoveltyBlocked: 2}
	level, msgs := EvaluateHITLLevel(m, 4, DefaultThresholds())
	assert.Equal(t, 3, level)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Severe pruning")
}

func TestEvaluateHITLLevel_Underfilled(t *testing.T) {
	m := Metrics{CandidateCount: 100, SelectedCount: 3}
	level, msgs := EvaluateHITLLevel(m, 8, DefaultThresholds())
	assert.Equal(t, 2, level)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Underfilled batch")

	// Exactly at the fraction is not underfilled.
	m.SelectedCount = 4
	level, msgs = EvaluateHITLLevel(m, 8, DefaultThresholds())
	assert.Zero(t, level)
	assert.Empty(t, msgs)
}

func TestEvaluateHITLLevel_HighUncertainty(t *testing.T) {
	m := Metrics{CandidateCount: 100, SelectedCount: 8, ApproxUncertainFrac: 0.60}
	level, msgs := EvaluateHITLLevel(m, 8, DefaultThresholds())
	assert.Equal(t, 2, level)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "High uncertainty")
}

func TestEvaluateHITLLevel_LowDiversity(t *testing.T) {
	d := 0.10
	m := Metrics{CandidateCount: 100, SelectedCount: 8, DiversityMin: &d}
	level, msgs := EvaluateHITLLevel(m, 8, DefaultThresholds())
	assert.Equal(t, 1, level)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Low diversity")

	// A per-run eps override relaxes the rule.
	eps := 0.05
	m.DiversityEps = &eps
	level, msgs = EvaluateHITLLevel(m, 8, DefaultThresholds())
	assert.Zero(t, level)
	assert.Empty(t, msgs)
}

func TestEvaluateHITLLevel_LevelsAreMonotoneMax(t *testing.T) {
	d := 0.10
	m := Metrics{
		CandidateCount:      10,
		SelectedCount:       8,
		SafetyBlocked:       5,
		NoveltyBlocked:      1,
		DiversityMin:        &d,
		ApproxUncertainFrac: 0.9,
	}
	level, msgs := EvaluateHITLLevel(m, 8, DefaultThresholds())
	assert.Equal(t, 3, level)
	assert.Len(t, msgs, 3)
}

func TestRequireAck(t *testing.T) {
	assert.False(t, RequireAck(0))
	for l := 1; l <= 4; l++ {
		assert.True(t, RequireAck(l))
	}
}

func TestBuildAckRecord(t *testing.T) {
	rec := BuildAckRecord(2, nil, "")
	assert.True(t, rec.AckRequired)
	assert.Equal(t, 2, rec.Level)
	assert.Equal(t, []string{}, rec.Messages)
	assert.Equal(t, "unknown", rec.Operator)
	assert.Nil(t, rec.AckTS)

	rec = BuildAckRecord(0, []string{"note"}, "alex")
	assert.False(t, rec.AckRequired)
	assert.Equal(t, []string{"note"}, rec.Messages)
	assert.Equal(t, "alex", rec.Operator)
}

func TestSummarizeForTrace(t *testing.T) {
	m := Metrics{CandidateCount: 5, SelectedCount: 2, SafetyBlocked: 1}
	out := SummarizeForTrace(3, m)
	assert.Equal(t, 5, out["candidate_count"])
	assert.Equal(t, 2, out["selected_count"])
	assert.Equal(t, 1, out["safety_blocked"])
	assert.Equal(t, 3, out["hitl_level"])
}
