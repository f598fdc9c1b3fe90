package diarization

import (
	"sort"

	"github.com/kbukum/meetingflow/transcription"
)

// DefaultOutlierThreshold is the segment share below which a label is
// treated as noise.
const DefaultOutlierThreshold = 0.3

// Config configures a Corrector.
type Config struct {
	// OutlierThreshold defaults when unset. An explicit 0 disables
	// reassignment.
	OutlierThreshold *float64 `yaml:"outlier_threshold" mapstructure:"outlier_threshold" validate:"omitempty,gte=0,lte=1"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.OutlierThreshold == nil {
		v := DefaultOutlierThreshold
		c.OutlierThreshold = &v
	}
}

// Corrector relabels transcripts. It is stateless and safe for concurrent use.
type Corrector struct {
	threshold float64
}

// NewCorrector creates a Corrector.
func NewCorrector(cfg Config) *Corrector {
	cfg.ApplyDefaults()
	return &Corrector{threshold: *cfg.OutlierThreshold}
}

// Correct returns a new transcript with every label replaced by its mapped
// name (unmapped labels pass through), then every label whose share of
// segments is below the outlier threshold reassigned to the most frequent
// label. Ties for most frequent go to the label that appears first. The
// input is not modified.
func (c *Corrector) Correct(t transcription.Transcript, mapping map[string]string) transcription.Transcript {
	out := t.Clone()
	if len(out.Segments) == 0 {
		return out
	}

	for i := range out.Segments {
		if name, ok := mapping[out.Segments[i].Speaker]; ok && name != "" {
			out.Segments[i].Speaker = name
		}
	}

	counts := make(map[string]int)
	for _, s := range out.Segments {
		counts[s.Speaker]++
	}
	labels := out.Labels()
	dominant := labels[0]
	for _, label := range labels[1:] {
		if counts[label] > counts[dominant] {
			dominant = label
		}
	}

	total := float64(len(out.Segments))
	for i := range out.Segments {
		label := out.Segments[i].Speaker
		if label != dominant && float64(counts[label])/total < c.threshold {
			out.Segments[i].Speaker = dominant
		}
	}
	return out
}

// ErrorRate is the diarization error rate of hypothesis against reference:
// for every reference segment, the time overlapped by a hypothesis segment
// with a different label plus the time no hypothesis segment covers, summed
// and divided by the total reference duration. The result is capped at 1.0;
// a reference with no duration yields 0.
func ErrorRate(reference, hypothesis transcription.Transcript) float64 {
	var total, errTime float64
	for _, r := range reference.Segments {
		dur := r.End - r.Start
		if dur <= 0 {
			continue
		}
		total += dur

		var covered []span
		for _, h := range hypothesis.Segments {
			lo, hi := max(r.Start, h.Start), min(r.End, h.End)
			if hi <= lo {
				continue
			}
			covered = append(covered, span{lo, hi})
			if h.Speaker != r.Speaker {
				errTime += hi - lo
			}
		}
		errTime += dur - union(covered)
	}
	if total == 0 {
		return 0
	}
	return min(errTime/total, 1.0)
}

type span struct{ lo, hi float64 }

func union(spans []span) float64 {
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })
	var sum float64
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.lo > cur.hi {
			sum += cur.hi - cur.lo
			cur = s
			continue
		}
		cur.hi = max(cur.hi, s.hi)
	}
	return sum + cur.hi - cur.lo
}
