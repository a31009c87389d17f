package opt

import (
	"fmt"
	"sort"
	"strings"
)

// Settings registry: allowed acquisitions and uncertainty modes, plus
// normalization of run settings coming from the CLI or a defaults file.

// Acquisitions is the set of accepted acquisition names (canonical casing).
var Acquisitions = map[string]bool{
	"qEI": true,
	"EI":  true,
	"UCB": true,
	"PI":  true,
}

// UncertaintyModes is the set of accepted uncertainty modes.
var UncertaintyModes = map[UncertaintyMode]bool{
	ModeNative:        true,
	ModeApproxRF:      true,
	ModeDeterministic: true,
}

// Settings are the per-run optimization knobs.
type Settings struct {
	Acquisition string `json:"acquisition" yaml:"acquisition"`
	// AcquisitionForScoring is derived by NormalizeSettings: qEI maps to EI
	// for per-point scoring while the original name is kept for audit.
	AcquisitionForScoring string          `json:"acquisition_for_scoring,omitempty" yaml:"-"`
	BatchSize             int             `json:"batch_size" yaml:"batch_size"`
	UCBK                  float64         `json:"ucb_k" yaml:"ucb_k"`
	UncertaintyMode       UncertaintyMode `json:"uncertainty_mode" yaml:"uncertainty_mode"`
	Seed                  int64           `json:"seed" yaml:"seed"`
	SafetyK               float64         `json:"safety_k" yaml:"safety_k"`
	NoveltyEps            float64         `json:"novelty_eps" yaml:"novelty_eps"`
	// PoolSize overrides the derived pool size when > 0.
	PoolSize int `json:"pool_size,omitempty" yaml:"pool_size"`
}

// DefaultSettings returns the stock screen defaults.
func DefaultSettings() Settings {
	return Settings{
		Acquisition:     "EI",
		BatchSize:       4,
		UCBK:            1.96,
		UncertaintyMode: ModeDeterministic,
		Seed:            1729,
	}
}

// HeadlessDefaults returns the defaults used by headless runs, guardrails
// included.
func HeadlessDefaults() Settings {
	return Settings{
		Acquisition:     "qEI",
		BatchSize:       8,
		UCBK:            1.96,
		UncertaintyMode: ModeApproxRF,
		Seed:            1729,
		SafetyK:         2.0,
		NoveltyEps:      0.05,
	}
}

// NormalizeSettings validates and canonicalizes run settings. It errors on an
// unknown acquisition or uncertainty mode, and on a non-positive ucb_k when
// the acquisition is UCB. Non-fatal oddities come back as warnings.
func NormalizeSettings(s Settings) (Settings, []string, error) {
	var warnings []string

	acqUpper := strings.ToUpper(strings.TrimSpace(s.Acquisition))
	canonical := ""
	for a := range Acquisitions {
		if strings.ToUpper(a) == acqUpper {
			canonical = a
			break
		}
	}
	if canonical == "" {
		return s, nil, configErrorf("unknown acquisition %q; allowed: %v", s.Acquisition, acquisitionNames())
	}
	s.Acquisition = canonical
	if acqUpper == "QEI" {
		s.AcquisitionForScoring = "EI"
	} else {
		s.AcquisitionForScoring = acqUpper
	}

	mode := UncertaintyMode(strings.ToLower(strings.TrimSpace(string(s.UncertaintyMode))))
	if !UncertaintyModes[mode] {
		return s, nil, configErrorf("unknown uncertainty_mode %q; allowed: %v", s.UncertaintyMode, modeNames())
	}
	s.UncertaintyMode = mode

	if s.AcquisitionForScoring == "UCB" && s.UCBK <= 0 {
		return s, nil, configErrorf("ucb_k must be a positive number when acquisition is UCB")
	}

	if s.BatchSize <= 0 {
		warnings = append(warnings, "batch size is non-positive; consider setting a positive integer")
	}
	if s.NoveltyEps < 0 {
		warnings = append(warnings, fmt.Sprintf("negative novelty_eps %v disables the novelty filter", s.NoveltyEps))
	}

	return s, warnings, nil
}

func acquisitionNames() []string {
	out := make([]string, 0, len(Acquisitions))
	for a := range Acquisitions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func modeNames() []string {
	out := make([]string, 0, len(UncertaintyModes))
	for m := range UncertaintyModes {
		out = append(out, string(m))
	}
	sort.Strings(out)
	return out
}
