package opt

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/doe-wizard/doe-opt/opt/artifacts"
)

// Single-pass orchestrator. One run wires inference → constraints → pool →
// scoring → guardrails → selection → HITL, with a three-step fallback ladder:
//
//	normal → relaxed_guardrails → no_guardrails_topk
//
// The ladder exists because constraint/guardrail interactions can empty the
// feasible set; the design prefers always producing some artifact over strict
// guardrail enforcement, with the downgrade logged and recorded in the run
// log rather than hidden.

// Ladder step names recorded in the run log.
const (
	LadderNormal           = "normal"
	LadderRelaxedGuardrail = "relaxed_guardrails"
	LadderNoGuardrailsTopK = "no_guardrails_topk"
)

// Scored wraps a candidate with its scoring fields.
type Scored struct {
	Point Point
	Mu    float64
	Sigma float64
	Score float64
}

// HITLInfo is the operator-facing ladder outcome of a run.
type HITLInfo struct {
	Level       int
	AckRequired bool
	Messages    []string
}

// RunRequest describes one headless optimization run.
type RunRequest struct {
	Slug            string
	Profile         Profile
	Champion        ChampionBundle
	Model           Predictor
	TrainingPreview []Point
	Settings        Settings
	Thresholds      Thresholds
	LockPolicy      LockPolicy
	// ArtifactsDir is the artifact root; artifacts land under
	// ArtifactsDir/Slug/. Empty disables writing.
	ArtifactsDir string
	// AutoAck stamps the ack record immediately after evaluation.
	AutoAck bool
}

// RunResult carries the artifacts of a completed run.
type RunResult struct {
	SettingsDoc artifacts.SettingsDoc
	TraceDoc    artifacts.TraceDoc
	Header      []string
	Proposals   []Scored
	HITL        HITLInfo
	LadderStep  string
}

type passResult struct {
	settingsDoc artifacts.SettingsDoc
	traceDoc    artifacts.TraceDoc
	schema      Schema
	proposals   []Scored
	hitl        HITLInfo
}

// seedConstraints builds the default constraint spec for a space: numeric
// features keep their bounds (open bounds default to [0,1] so a bare profile
// still samples), categorical features keep their domains, nothing locked.
func seedConstraints(space DesignSpace) ConstraintSpec {
	numeric := make(map[string]NumericConstraint, len(space.Numeric))
	for f, r := range space.Numeric {
		low, high := copyPtr(r.Low), copyPtr(r.High)
		if low == nil && high == nil {
			low, high = ptr(0), ptr(1)
		}
		numeric[f] = NumericConstraint{Low: low, High: high, Step: copyPtr(r.Step)}
	}
	categorical := make(map[string]CategoricalConstraint, len(space.Categorical))
	for f, dom := range space.Categorical {
		categorical[f] = CategoricalConstraint{Allowed: dom.Allowed}
	}
	return ConstraintSpec{Numeric: numeric, Categorical: categorical}
}

func poolSizeFor(s Settings) int {
	if s.PoolSize > 0 {
		return s.PoolSize
	}
	n := 20 * s.BatchSize
	if n < 128 {
		n = 128
	}
	return n
}

// preparePipeline runs the deterministic front half shared by every ladder
// step: space inference, constraint normalization, pruning, and the model
// compatibility check.
func preparePipeline(req RunRequest, s Settings) (pruned DesignSpace, norm NormalizedConstraints, err error) {
	space := InferSpaceFromRoles(req.Profile, req.Champion)
	norm, err = ValidateConstraints(space, seedConstraints(space))
	if err != nil {
		return DesignSpace{}, norm, err
	}
	pruned, err = ApplyConstraints(space, norm, req.LockPolicy)
	if err != nil {
		return DesignSpace{}, norm, err
	}
	if err := EncodeForModel(pruned); err != nil {
		return DesignSpace{}, norm, err
	}
	return pruned, norm, nil
}

// singlePass executes the full guarded pipeline once with the given guardrail
// parameters. It fails with an infeasible-tagged error when safety and
// novelty filtering leave no candidate.
func singlePass(req RunRequest, s Settings, training []Point, thresholds Thresholds) (*passResult, error) {
	t0 := time.Now()

	pruned, norm, err := preparePipeline(req, s)
	if err != nil {
		return nil, err
	}

	pool, err := BuildPool(pruned, poolSizeFor(s), s.Seed)
	if err != nil {
		return nil, err
	}

	mu, sigma, err := PredictMuSigma(req.Model, pool.Points, s.UncertaintyMode)
	if err != nil {
		return nil, err
	}
	if len(mu) == 0 {
		return nil, infeasibleErrorf("empty candidate pool after sampling")
	}

	yBest := floats.Max(mu) - 1e-6
	scores, err := ScoreAcquisition(s.AcquisitionForScoring, mu, sigma, yBest, s.UCBK)
	if err != nil {
		return nil, err
	}

	safetyMode := ModeApproxRF
	if s.UncertaintyMode == ModeDeterministic {
		safetyMode = ModeDeterministic
	}
	keepSafety, safetyBlocked := ApplySafetyFilter(mu, sigma, s.SafetyK, safetyMode, nil)
	meta := MetaFromSpace(pruned)
	keepNovel, noveltyBlocked := ApplyNoveltyFilter(pool.Points, training, s.NoveltyEps, meta)

	var kept []int
	for i := range pool.Points {
		if keepSafety[i] && keepNovel[i] {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		metrics := BuildMetrics(len(pool.Points), nil, safetyBlocked, noveltyBlocked, nil, 0)
		_, msgs := EvaluateHITLLevel(metrics, s.BatchSize, thresholds)
		return nil, infeasibleErrorf("HITL L4: infeasible: %s", strings.Join(msgs, " "))
	}

	keptPoints := make([]Point, len(kept))
	keptScores := make([]float64, len(kept))
	keptSigma := make([]float64, len(kept))
	for i, idx := range kept {
		keptPoints[i] = pool.Points[idx]
		keptScores[i] = scores[idx]
		keptSigma[i] = sigma[idx]
	}
	selected := SelectBatch(keptPoints, keptScores, s.BatchSize, &meta)
	final := make([]int, len(selected))
	for i, sIdx := range selected {
		final[i] = kept[sIdx]
	}

	diversityMin := SummarizeDiversity(pool.Points, final, meta)
	sigmaHi := quantile75(keptSigma)
	finalSigma := make([]float64, len(final))
	for i, idx := range final {
		finalSigma[i] = sigma[idx]
	}
	uncertainFrac := ComputeUncertainFraction(finalSigma, sigmaHi)

	metrics := BuildMetrics(len(pool.Points), final, safetyBlocked, noveltyBlocked, diversityMin, uncertainFrac)
	level, messages := EvaluateHITLLevel(metrics, s.BatchSize, thresholds)
	ack := BuildAckRecord(level, messages, "")

	proposals := make([]Scored, len(final))
	for i, idx := range final {
		proposals[i] = Scored{Point: pool.Points[idx], Mu: mu[idx], Sigma: sigma[idx], Score: scores[idx]}
	}

	return &passResult{
		settingsDoc: buildSettingsDoc(s, norm, sigmaHi),
		traceDoc: artifacts.TraceDoc{
			SchemaVersion:       artifacts.SchemaVersionTrace,
			CandidateCount:      len(pool.Points),
			DiversityKept:       len(final),
			SafetyBlocked:       safetyBlocked,
			NoveltyBlocked:      noveltyBlocked,
			DiversityMin:        diversityMin,
			ApproxUncertainFrac: uncertainFrac,
			HITLLevel:           level,
			HITLMessages:        orEmpty(messages),
			RuntimeSec:          time.Since(t0).Seconds(),
			TimestampUTC:        artifacts.NowUTC(),
			Ack:                 ackToDoc(ack),
		},
		schema:    pool.Schema,
		proposals: proposals,
		hitl:      HITLInfo{Level: level, AckRequired: RequireAck(level), Messages: messages},
	}, nil
}

// runTopK is the last ladder step: constraints only, no guardrails, no
// diversity re-ranking, plain top-k by acquisition score. It cannot fail for
// lack of a feasible pool; a space with nothing to sample yields a
// header-only output.
func runTopK(req RunRequest, s Settings, thresholds Thresholds) (*passResult, error) {
	pruned, norm, err := preparePipeline(req, s)
	if err != nil {
		return nil, err
	}

	var pool *Pool
	if p, err := BuildPool(pruned, poolSizeFor(s), s.Seed); err == nil {
		pool = p
	} else if IsInfeasible(err) {
		pool = &Pool{}
	} else {
		return nil, err
	}

	var mu, sigma, scores []float64
	if len(pool.Points) > 0 {
		mu, sigma, err = PredictMuSigma(req.Model, pool.Points, s.UncertaintyMode)
		if err != nil {
			return nil, err
		}
		yBest := floats.Max(mu) - 1e-6
		scores, err = ScoreAcquisition(s.AcquisitionForScoring, mu, sigma, yBest, s.UCBK)
		if err != nil {
			return nil, err
		}
	}

	order := argsortDesc(scores)
	if len(order) > s.BatchSize {
		order = order[:s.BatchSize]
	}

	proposals := make([]Scored, len(order))
	for i, idx := range order {
		proposals[i] = Scored{Point: pool.Points[idx], Mu: mu[idx], Sigma: sigma[idx], Score: scores[idx]}
	}

	meta := MetaFromSpace(pruned)
	var diversityMin *float64
	if len(order) > 0 {
		diversityMin = SummarizeDiversity(pool.Points, order, meta)
	}
	sigmaHi := quantile75(sigma)
	uncertainFrac := 0.0
	if len(order) > 0 {
		selSigma := make([]float64, len(order))
		for i, idx := range order {
			selSigma[i] = sigma[idx]
		}
		uncertainFrac = ComputeUncertainFraction(selSigma, sigmaHi)
	}

	return &passResult{
		settingsDoc: buildSettingsDoc(s, norm, sigmaHi),
		traceDoc: artifacts.TraceDoc{
			SchemaVersion:       artifacts.SchemaVersionTrace,
			CandidateCount:      len(pool.Points),
			DiversityKept:       len(order),
			DiversityMin:        diversityMin,
			ApproxUncertainFrac: uncertainFrac,
			HITLLevel:           0,
			HITLMessages:        []string{"Fallback: guardrails bypassed for headless artifact creation."},
			TimestampUTC:        artifacts.NowUTC(),
			Ack: artifacts.Ack{
				Level:    0,
				Messages: []string{"Fallback path"},
				Operator: "unknown",
			},
		},
		schema:    pool.Schema,
		proposals: proposals,
		hitl:      HITLInfo{Level: 0, Messages: []string{"fallback_no_guardrails"}},
	}, nil
}

// RunHeadless executes one optimization request through the fallback ladder
// and, when an artifacts directory is configured, writes the settings,
// proposals and trace artifacts plus a run-log entry.
//
// Only infeasibility enters the ladder; configuration and model errors
// propagate unchanged so the operator can fix them.
func RunHeadless(req RunRequest) (*RunResult, error) {
	if req.Model == nil {
		return nil, configErrorf("run request has no model")
	}
	if req.Slug == "" {
		req.Slug = "session"
	}
	if req.Thresholds == (Thresholds{}) {
		req.Thresholds = DefaultThresholds()
	}
	if req.Settings.Acquisition == "" {
		req.Settings = HeadlessDefaults()
	}
	settings, warnings, err := NormalizeSettings(req.Settings)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logrus.Warnf("settings: %s", w)
	}

	ladderStep := LadderNormal
	pass, err := singlePass(req, settings, req.TrainingPreview, req.Thresholds)
	if err != nil {
		if !IsInfeasible(err) {
			return nil, err
		}
		logrus.Warnf("normal pass infeasible (%v); relaxing guardrails", err)
		ladderStep = LadderRelaxedGuardrail
		relaxed := settings
		relaxed.SafetyK = 0
		relaxed.NoveltyEps = 0
		pass, err = singlePass(req, relaxed, nil, req.Thresholds)
		if err != nil {
			logrus.Warnf("relaxed pass failed (%v); falling back to plain top-k", err)
			ladderStep = LadderNoGuardrailsTopK
			pass, err = runTopK(req, settings, req.Thresholds)
			if err != nil {
				return nil, err
			}
		}
	}

	if req.AutoAck {
		ts := artifacts.NowUTC()
		pass.traceDoc.Ack.AckTS = &ts
	}

	result := &RunResult{
		SettingsDoc: pass.settingsDoc,
		TraceDoc:    pass.traceDoc,
		Header:      proposalsHeader(pass.schema),
		Proposals:   pass.proposals,
		HITL:        pass.hitl,
		LadderStep:  ladderStep,
	}

	if req.ArtifactsDir != "" {
		if err := writeArtifacts(req, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func writeArtifacts(req RunRequest, res *RunResult) error {
	dir := artifacts.SessionDir(req.ArtifactsDir, req.Slug)
	if err := artifacts.WriteJSON(filepath.Join(dir, artifacts.SettingsFile), res.SettingsDoc); err != nil {
		return err
	}
	rows := make([][]string, len(res.Proposals))
	for i, p := range res.Proposals {
		rows[i] = proposalRow(res.Header, p)
	}
	if err := artifacts.WriteProposalsCSV(filepath.Join(dir, artifacts.ProposalsFile), res.Header, rows); err != nil {
		return err
	}
	if err := artifacts.WriteJSON(filepath.Join(dir, artifacts.TraceFile), res.TraceDoc); err != nil {
		return err
	}

	logPath := filepath.Join(dir, req.Slug+"_screen5_log.jsonl")
	entry := map[string]any{
		"slug":                    req.Slug,
		"event":                   "screen5_run_headless",
		"ladder_step":             res.LadderStep,
		"batch_size":              res.SettingsDoc.BatchSize,
		"acquisition":             res.SettingsDoc.Acquisition,
		"acquisition_for_scoring": res.SettingsDoc.AcquisitionForScoring,
		"uncertainty_mode":        res.SettingsDoc.UncertaintyMode,
		"guardrails":              res.SettingsDoc.Guardrails,
		"hitl_level":              res.TraceDoc.HITLLevel,
	}
	if err := artifacts.AppendRunLog(logPath, entry); err != nil {
		return err
	}
	logrus.Infof("run %s: wrote %s artifacts (ladder=%s, hitl=L%d, proposals=%d)",
		req.Slug, dir, res.LadderStep, res.TraceDoc.HITLLevel, len(res.Proposals))
	return nil
}

// proposalsHeader is the proposals.csv column list: schema features followed
// by the scoring fields.
func proposalsHeader(schema Schema) []string {
	return append(schema.Columns(), "_mu", "_sigma", "_score")
}

// proposalRow renders one proposal in header order.
func proposalRow(header []string, p Scored) []string {
	row := make([]string, len(header))
	for i, col := range header {
		switch col {
		case "_mu":
			row[i] = formatFloat(p.Mu)
		case "_sigma":
			row[i] = formatFloat(p.Sigma)
		case "_score":
			row[i] = formatFloat(p.Score)
		default:
			if v, ok := p.Point.Numeric[col]; ok {
				row[i] = formatFloat(v)
			} else {
				row[i] = p.Point.Categorical[col]
			}
		}
	}
	return row
}

func buildSettingsDoc(s Settings, norm NormalizedConstraints, sigmaHi float64) artifacts.SettingsDoc {
	return artifacts.SettingsDoc{
		SchemaVersion:         artifacts.SchemaVersionSettings,
		BatchSize:             s.BatchSize,
		Acquisition:           s.Acquisition,
		AcquisitionForScoring: s.AcquisitionForScoring,
		UCBK:                  s.UCBK,
		Seed:                  s.Seed,
		UncertaintyMode:       string(s.UncertaintyMode),
		Constraints:           norm,
		Guardrails: artifacts.Guardrails{
			SafetyK:    s.SafetyK,
			NoveltyEps: s.NoveltyEps,
			SigmaHi:    sigmaHi,
		},
		TimestampUTC: artifacts.NowUTC(),
	}
}

func ackToDoc(a AckRecord) artifacts.Ack {
	return artifacts.Ack{
		AckRequired: a.AckRequired,
		Level:       a.Level,
		Messages:    a.Messages,
		Operator:    a.Operator,
		AckTS:       a.AckTS,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// quantile75 returns the empirical 75th percentile, 0 for empty input.
func quantile75(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	return stat.Quantile(0.75, stat.Empirical, s, nil)
}

func argsortDesc(scores []float64) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	return idx
}

func orEmpty(msgs []string) []string {
	if msgs == nil {
		return []string{}
	}
	return msgs
}
