package speaker

import "sort"

// Thresholds are the closed-set decision parameters.
type Thresholds struct {
	// HighConfidence accepts the top candidate outright.
	HighConfidence float64
	// MinAcceptable is the floor for a gap rescue.
	MinAcceptable float64
	// Gap is the lead over the runner-up a gap rescue needs.
	Gap float64
}

// DefaultThresholds returns 0.58 / 0.40 / 0.15.
func DefaultThresholds() Thresholds {
	return Thresholds{HighConfidence: 0.58, MinAcceptable: 0.40, Gap: 0.15}
}

// ThresholdConfig is the configured form of Thresholds. Unset fields take
// the default; an explicit 0 is kept.
type ThresholdConfig struct {
	HighConfidence *float64 `yaml:"high_confidence" mapstructure:"high_confidence" validate:"omitempty,gte=0,lte=1"`
	MinAcceptable  *float64 `yaml:"min_acceptable" mapstructure:"min_acceptable" validate:"omitempty,gte=0,lte=1"`
	Gap            *float64 `yaml:"gap" mapstructure:"gap" validate:"omitempty,gte=0,lte=1"`
}

// Resolve returns the configured thresholds over the defaults.
func (c ThresholdConfig) Resolve() Thresholds {
	t := DefaultThresholds()
	for _, f := range []struct {
		dst *float64
		src *float64
	}{
		{&t.HighConfidence, c.HighConfidence},
		{&t.MinAcceptable, c.MinAcceptable},
		{&t.Gap, c.Gap},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return t
}

// Rule names the branch that produced a Match.
type Rule string

const (
	RuleHighConfidence Rule = "high_confidence"
	RuleGapRescue      Rule = "gap_rescue"
)

// Match is an accepted identification.
type Match struct {
	Candidate
	Rule Rule
	// Gap is top - second, or 0 with a single candidate.
	Gap float64
}

// epsilon absorbs float noise in score subtraction so that a gap of exactly
// the threshold is accepted.
const epsilon = 1e-9

// Decide applies the decision rule to a ranked or unranked candidate list:
// top >= HighConfidence accepts; otherwise with two or more candidates,
// top >= MinAcceptable and top-second >= Gap accepts; anything else declines.
func Decide(candidates []Candidate, t Thresholds) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	top := ranked[0]
	if top.Score >= t.HighConfidence {
		m := Match{Candidate: top, Rule: RuleHighConfidence}
		if len(ranked) > 1 {
			m.Gap = top.Score - ranked[1].Score
		}
		return m, true
	}
	if len(ranked) < 2 {
		return Match{}, false
	}
	gap := top.Score - ranked[1].Score
	if top.Score >= t.MinAcceptable && gap+epsilon >= t.Gap {
		return Match{Candidate: top, Rule: RuleGapRescue, Gap: gap}, true
	}
	return Match{}, false
}
