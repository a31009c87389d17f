package opt

import "sort"

// Constraint normalization and pruning.
//
// ValidateConstraints merges user constraints with the inferred space into a
// normalized form where every feature has resolved-or-open bounds.
// ApplyConstraints produces a new pruned DesignSpace; EncodeForModel enforces
// champion compatibility; IsFeasible checks a single point.

// NumericConstraint is the user's input for one numeric feature: either a
// relation (">=", "<=", "=") with a value, or explicit low/high/step.
// "=" collapses the range to a point and sets Lock.
type NumericConstraint struct {
	Relation string   `json:"relation,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Low      *float64 `json:"low,omitempty"`
	High     *float64 `json:"high,omitempty"`
	Step     *float64 `json:"step,omitempty"`
	Lock     bool     `json:"lock,omitempty"`
}

// CategoricalConstraint restricts a categorical feature's domain.
type CategoricalConstraint struct {
	Allowed []string `json:"allowed,omitempty"`
	Lock    bool     `json:"lock,omitempty"`
}

// ConstraintSpec is the per-feature user constraint input.
type ConstraintSpec struct {
	Numeric     map[string]NumericConstraint     `json:"numeric,omitempty"`
	Categorical map[string]CategoricalConstraint `json:"categorical,omitempty"`
}

// NormalizedNumeric is a numeric constraint after validation: bounds resolved
// or explicitly open (nil), lock defaulted to false.
type NormalizedNumeric struct {
	Low  *float64 `json:"low"`
	High *float64 `json:"high"`
	Step *float64 `json:"step"`
	Lock bool     `json:"lock"`
}

// NormalizedCategorical is a categorical constraint after validation.
type NormalizedCategorical struct {
	Allowed []string `json:"allowed"`
	Lock    bool     `json:"lock"`
}

// NormalizedConstraints covers every feature in the space, constrained or not.
type NormalizedConstraints struct {
	Numeric     map[string]NormalizedNumeric     `json:"numeric"`
	Categorical map[string]NormalizedCategorical `json:"categorical"`
}

// LockPolicy decides what ApplyConstraints does when a categorical lock
// leaves more than one allowed value.
type LockPolicy string

const (
	// LockPolicyError rejects the ambiguity. Default.
	LockPolicyError LockPolicy = "error"
	// LockPolicyFirst keeps the first remaining value. This reproduces the
	// legacy convention; the pick is positional, not inferred.
	LockPolicyFirst LockPolicy = "first"
	// LockPolicyExplicit requires the constraint itself to already be a
	// singleton.
	LockPolicyExplicit LockPolicy = "require-explicit"
)

// ValidLockPolicy reports whether p names a known policy ("" defaults to error).
func ValidLockPolicy(p LockPolicy) bool {
	switch p {
	case "", LockPolicyError, LockPolicyFirst, LockPolicyExplicit:
		return true
	}
	return false
}

// ValidateConstraints normalizes user constraints against the inferred space.
//
// Numeric: a relation must be one of >=, <=, = and requires a value; "="
// forces low=high=value with lock. Explicit low/high pass through. Errors on
// unknown features and low > high. Every numeric feature in the space appears
// in the output, unconstrained ones with the space's own (possibly open)
// bounds and lock=false.
//
// Categorical: lock requires a non-empty allowed list; allowed values must be
// a subset of the inferred domain when one is known. Unconstrained features
// pass through with the inferred domain.
func ValidateConstraints(space DesignSpace, c ConstraintSpec) (NormalizedConstraints, error) {
	norm := NormalizedConstraints{
		Numeric:     make(map[string]NormalizedNumeric),
		Categorical: make(map[string]NormalizedCategorical),
	}

	for _, feat := range sortedConstraintKeys(c.Numeric) {
		spec := c.Numeric[feat]
		if _, ok := space.Numeric[feat]; !ok {
			return norm, configErrorf("[constraints.numeric] unknown numeric feature: %s", feat)
		}
		low, high, step, lock := spec.Low, spec.High, spec.Step, spec.Lock

		if spec.Relation != "" {
			switch spec.Relation {
			case ">=", "<=", "=":
			default:
				return norm, configErrorf("[%s] relation must be one of >=, <=, =", feat)
			}
			if spec.Value == nil {
				return norm, configErrorf("[%s] relation %q requires a value", feat, spec.Relation)
			}
			v := *spec.Value
			switch spec.Relation {
			case "=":
				low, high, lock = ptr(v), ptr(v), true
			case ">=":
				low = ptr(v)
			case "<=":
				high = ptr(v)
			}
		}

		if low != nil && high != nil && *low > *high {
			return norm, configErrorf("[%s] low > high is invalid (low=%v, high=%v)", feat, *low, *high)
		}

		norm.Numeric[feat] = NormalizedNumeric{Low: low, High: high, Step: step, Lock: lock}
	}

	// Unconstrained numeric features stay open with the space's own bounds.
	for feat, r := range space.Numeric {
		if _, ok := norm.Numeric[feat]; !ok {
			norm.Numeric[feat] = NormalizedNumeric{Low: r.Low, High: r.High, Step: r.Step}
		}
	}

	for _, feat := range sortedConstraintKeysCat(c.Categorical) {
		spec := c.Categorical[feat]
		dom, ok := space.Categorical[feat]
		if !ok {
			return norm, configErrorf("[constraints.categorical] unknown categorical feature: %s", feat)
		}
		if spec.Lock && len(spec.Allowed) == 0 {
			return norm, configErrorf("[%s] lock=true requires a non-empty allowed list", feat)
		}
		allowed := spec.Allowed
		if allowed != nil {
			if len(allowed) == 0 {
				return norm, configErrorf("[%s] allowed must be a non-empty list", feat)
			}
			if len(dom.Allowed) > 0 {
				var outside []string
				for _, v := range allowed {
					if !containsString(dom.Allowed, v) {
						outside = append(outside, v)
					}
				}
				if len(outside) > 0 {
					return norm, configErrorf("[%s] values not in domain: %v", feat, outside)
				}
			}
			allowed = append([]string(nil), allowed...)
		} else {
			allowed = dom.Allowed
		}
		norm.Categorical[feat] = NormalizedCategorical{Allowed: allowed, Lock: spec.Lock}
	}

	for feat, dom := range space.Categorical {
		if _, ok := norm.Categorical[feat]; !ok {
			norm.Categorical[feat] = NormalizedCategorical{Allowed: dom.Allowed}
		}
	}

	// A declared-empty domain can only arrive via the space itself; it is
	// still a config error, not something sampling should discover later.
	for feat, spec := range norm.Categorical {
		if spec.Allowed != nil && len(spec.Allowed) == 0 {
			return norm, configErrorf("[%s] categorical allowed cannot be empty", feat)
		}
	}

	return norm, nil
}

// ApplyConstraints prunes the space under normalized constraints.
//
// Numeric bounds clamp to the intersection of space and constraint; a lock
// with only one known bound copies it to the other. Categorical domains
// intersect when both sides are known; the constraint wins when the space's
// domain is unknown. A lock that still leaves >1 values is resolved by the
// LockPolicy.
func ApplyConstraints(space DesignSpace, norm NormalizedConstraints, policy LockPolicy) (DesignSpace, error) {
	if !ValidLockPolicy(policy) {
		return DesignSpace{}, configErrorf("unknown lock policy %q", policy)
	}
	if policy == "" {
		policy = LockPolicyError
	}

	numeric := make(map[string]NumericRange, len(space.Numeric))
	for feat, r := range space.Numeric {
		spec := NumericRange{Low: copyPtr(r.Low), High: copyPtr(r.High), Step: copyPtr(r.Step)}
		c, ok := norm.Numeric[feat]
		if ok {
			if c.Low != nil {
				if spec.Low == nil || *c.Low > *spec.Low {
					spec.Low = ptr(*c.Low)
				}
			}
			if c.High != nil {
				if spec.High == nil || *c.High < *spec.High {
					spec.High = ptr(*c.High)
				}
			}
			if c.Step != nil {
				spec.Step = ptr(*c.Step)
			}
			if c.Lock {
				switch {
				case spec.Low == nil && spec.High == nil:
					// Lock with no resolvable value stays deferred.
				case spec.Low == nil:
					spec.Low = ptr(*spec.High)
				case spec.High == nil:
					spec.High = ptr(*spec.Low)
				}
			}
		}
		numeric[feat] = spec
	}

	categorical := make(map[string]CategoricalDomain, len(space.Categorical))
	for feat, dom := range space.Categorical {
		allowed := dom.Allowed
		c, ok := norm.Categorical[feat]
		if ok {
			if allowed != nil && c.Allowed != nil {
				var inter []string
				for _, v := range c.Allowed {
					if containsString(allowed, v) {
						inter = append(inter, v)
					}
				}
				if inter == nil {
					inter = []string{}
				}
				allowed = inter
			} else if c.Allowed != nil {
				allowed = append([]string(nil), c.Allowed...)
			}
			if c.Lock && len(allowed) > 1 {
				switch policy {
				case LockPolicyFirst:
					allowed = allowed[:1]
				case LockPolicyExplicit:
					return DesignSpace{}, configErrorf(
						"[%s] lock requires an explicit singleton allowed list, got %d values", feat, len(allowed))
				default:
					return DesignSpace{}, configErrorf(
						"[%s] lock is ambiguous: %d allowed values remain; pick one or use lock policy %q",
						feat, len(allowed), LockPolicyFirst)
				}
			}
		}
		categorical[feat] = CategoricalDomain{Allowed: allowed}
	}

	return DesignSpace{
		Numeric:                numeric,
		Categorical:            categorical,
		Excluded:               append([]string(nil), space.Excluded...),
		ModelFeatures:          append([]string(nil), space.ModelFeatures...),
		ModelEnableCategorical: space.ModelEnableCategorical,
	}, nil
}

// EncodeForModel enforces champion compatibility for categorical features.
// A champion with enable_categorical=false cannot consume a variable
// categorical feature: every categorical feature in the model's declared
// feature list must be locked to a singleton domain.
func EncodeForModel(space DesignSpace) error {
	if space.ModelEnableCategorical {
		return nil
	}
	for _, feat := range space.CategoricalFeatures() {
		if !containsString(space.ModelFeatures, feat) {
			continue
		}
		allowed := space.Categorical[feat].Allowed
		if len(allowed) != 1 {
			return configErrorf(
				"[encode_for_model] champion model cannot consume categorical %q unless it is locked to a single value or encoded numerically upstream", feat)
		}
	}
	return nil
}

// IsFeasible checks a candidate point against normalized constraints.
// Features absent from the point, and unconstrained bounds, pass.
func IsFeasible(p Point, norm NormalizedConstraints) bool {
	for feat, spec := range norm.Numeric {
		v, ok := p.Numeric[feat]
		if !ok {
			continue
		}
		if spec.Low != nil && v < *spec.Low {
			return false
		}
		if spec.High != nil && v > *spec.High {
			return false
		}
	}
	for feat, spec := range norm.Categorical {
		v, ok := p.Categorical[feat]
		if !ok || spec.Allowed == nil {
			continue
		}
		if !containsString(spec.Allowed, v) {
			return false
		}
	}
	return true
}

func ptr(v float64) *float64 { return &v }

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func sortedConstraintKeys(m map[string]NumericConstraint) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedConstraintKeysCat(m map[string]CategoricalConstraint) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
