package opt

import (
	"regexp"
	"sort"
)

// ColumnProfile is one column's entry in the session profile, as produced by
// the upstream profiling step.
type ColumnProfile struct {
	Column              string   `json:"column"`
	Dtype               string   `json:"dtype"`
	NUnique             int      `json:"n_unique"`
	NRows               int      `json:"n_rows,omitempty"`
	NRowsUsed           int      `json:"n_rows_used,omitempty"`
	ValueClassification string   `json:"value_classification"`
	ExampleValues       []string `json:"example_values,omitempty"`
}

// Profile is the session data profile consumed by space inference.
type Profile struct {
	ColumnsProfile []ColumnProfile `json:"columns_profile"`
}

// ChampionSettings carries the champion model's declared feature list and
// response column.
type ChampionSettings struct {
	ResponseCol string   `json:"response_col"`
	Features    []string `json:"features"`
}

// ModelParams holds the subset of model parameters the engine cares about.
type ModelParams struct {
	EnableCategorical bool `json:"enable_categorical"`
}

// ModelSignature identifies the champion model type and its parameters.
type ModelSignature struct {
	Type   string      `json:"type"`
	Params ModelParams `json:"params"`
}

// ChampionBundle is the champion-model descriptor exported by the modeling
// step. The engine treats the model itself as an opaque Predictor; only the
// declared features, response column and categorical-support flag matter here.
type ChampionBundle struct {
	Settings       ChampionSettings `json:"settings"`
	ModelSignature ModelSignature   `json:"model_signature"`
}

// NumericRange is a numeric feature's bounds. Nil fields are unresolved
// ("open"); bounds come from user constraints, never invented here.
type NumericRange struct {
	Low  *float64 `json:"low"`
	High *float64 `json:"high"`
	Step *float64 `json:"step"`
}

// CategoricalDomain is a categorical feature's allowed value set.
// A nil Allowed slice means the domain is unknown; an empty non-nil slice is
// a declared-empty domain and is always infeasible.
type CategoricalDomain struct {
	Allowed []string `json:"allowed"`
}

// DesignSpace is the mixed-type search space for one optimization run.
// A feature appears in exactly one of Numeric, Categorical or Excluded.
// Spaces are value objects: pruning produces a new space, never mutates one.
type DesignSpace struct {
	Numeric                map[string]NumericRange      `json:"numeric"`
	Categorical            map[string]CategoricalDomain `json:"categorical"`
	Excluded               []string                     `json:"excluded"`
	ModelFeatures          []string                     `json:"model_features"`
	ModelEnableCategorical bool                         `json:"model_enable_categorical"`
}

// NumericFeatures returns the numeric feature names in sorted order.
// Map iteration order is randomized in Go; every consumer that samples or
// serializes must use this order to stay deterministic.
func (s DesignSpace) NumericFeatures() []string {
	return sortedKeysNumeric(s.Numeric)
}

// CategoricalFeatures returns the categorical feature names in sorted order.
func (s DesignSpace) CategoricalFeatures() []string {
	return sortedKeysCategorical(s.Categorical)
}

func sortedKeysNumeric(m map[string]NumericRange) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysCategorical(m map[string]CategoricalDomain) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// idLikePattern matches identifier/timestamp-style column names, delimited by
// start/end or underscores (WAFER_ID, uuid, TS_TIMESTAMP, ...).
var idLikePattern = regexp.MustCompile(`(?i)(?:^|_)(id|uuid|guid|timestamp)(?:$|_)`)

func isIDLike(col string) bool {
	return idLikePattern.MatchString(col)
}

// isHighCard treats an explicit high_cardinality tag, or a unique count above
// half the profiled rows, as a non-design column.
func isHighCard(c ColumnProfile) bool {
	if c.ValueClassification == "high_cardinality" {
		return true
	}
	rows := c.NRowsUsed
	if rows == 0 {
		rows = c.NRows
	}
	return c.NUnique > 0 && rows > 0 && float64(c.NUnique) > 0.5*float64(rows)
}

func isConstant(c ColumnProfile) bool {
	return c.ValueClassification == "constant"
}

// isCategoricalDtype classifies object/category/bool dtypes as categorical,
// plus numeric-typed columns with a small unique count (2..10). The
// low-cardinality branch is a heuristic, not a guarantee: an ambiguous
// low-cardinality numeric column is still treated as categorical.
func isCategoricalDtype(c ColumnProfile) bool {
	switch c.Dtype {
	case "object", "category", "bool":
		return true
	}
	return c.NUnique > 1 && c.NUnique <= 10
}

// InferSpaceFromRoles builds the mixed-type design space from a session
// profile and champion bundle.
//
// A column is excluded when its name looks ID/timestamp-like, it is
// high-cardinality or constant, or it is the champion's response column.
// Remaining columns are split categorical vs numeric by isCategoricalDtype.
// Numeric features start with open bounds; categorical domains are seeded
// from example_values when the profile provides them.
//
// Inference never fails: columns without a name are skipped, and missing
// profile fields degrade to their zero values.
func InferSpaceFromRoles(profile Profile, champion ChampionBundle) DesignSpace {
	numeric := make(map[string]NumericRange)
	categorical := make(map[string]CategoricalDomain)
	var excluded []string

	for _, c := range profile.ColumnsProfile {
		name := c.Column
		if name == "" {
			continue
		}
		if isIDLike(name) || isHighCard(c) || isConstant(c) {
			excluded = append(excluded, name)
			continue
		}
		if isCategoricalDtype(c) {
			var allowed []string
			if c.ExampleValues != nil {
				allowed = append([]string(nil), c.ExampleValues...)
			}
			categorical[name] = CategoricalDomain{Allowed: allowed}
		} else {
			numeric[name] = NumericRange{}
		}
	}

	// The response column is a readback, not a design knob.
	if resp := champion.Settings.ResponseCol; resp != "" {
		if _, ok := numeric[resp]; ok {
			delete(numeric, resp)
			excluded = append(excluded, resp)
		}
		if _, ok := categorical[resp]; ok {
			delete(categorical, resp)
			excluded = append(excluded, resp)
		}
	}

	excluded = dedupSorted(excluded)

	return DesignSpace{
		Numeric:                numeric,
		Categorical:            categorical,
		Excluded:               excluded,
		ModelFeatures:          append([]string(nil), champion.Settings.Features...),
		ModelEnableCategorical: champion.ModelSignature.Params.EnableCategorical,
	}
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
