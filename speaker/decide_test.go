package speaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kbukum/meetingflow/transcription"
)

func cands(scores ...float64) []Candidate {
	out := make([]Candidate, len(scores))
	for i, s := range scores {
		out[i] = Candidate{Identity: Identity{ID: string(rune('a' + i)), Name: string(rune('A' + i))}, Score: s}
	}
	return out
}

func TestDecide(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name     string
		scores   []float64
		accept   bool
		wantName string
		rule     Rule
	}{
		{name: "high confidence regardless of gap", scores: []float64{0.70, 0.69}, accept: true, wantName: "A", rule: RuleHighConfidence},
		{name: "high confidence single candidate", scores: []float64{0.70}, accept: true, wantName: "A", rule: RuleHighConfidence},
		{name: "gap rescue", scores: []float64{0.50, 0.30}, accept: true, wantName: "A", rule: RuleGapRescue},
		{name: "gap too small", scores: []float64{0.50, 0.40}, accept: false},
		{name: "gap exactly at threshold", scores: []float64{0.55, 0.40}, accept: true, wantName: "A", rule: RuleGapRescue},
		{name: "below minimum", scores: []float64{0.39, 0.10}, accept: false},
		{name: "single weak candidate", scores: []float64{0.50}, accept: false},
		{name: "unranked input", scores: []float64{0.20, 0.62, 0.10}, accept: true, wantName: "B", rule: RuleHighConfidence},
		{name: "no candidates", accept: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Decide(cands(tt.scores...), th)
			assert.Equal(t, tt.accept, ok)
			if tt.accept {
				assert.Equal(t, tt.wantName, m.Identity.Name)
				assert.Equal(t, tt.rule, m.Rule)
			}
		})
	}
}

func TestThresholdConfigResolve(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	assert.Equal(t, DefaultThresholds(), ThresholdConfig{}.Resolve())
	assert.Equal(t, Thresholds{HighConfidence: 0.58, MinAcceptable: 0.40, Gap: 0.2}, ThresholdConfig{Gap: f(0.2)}.Resolve())

	zeroGap := ThresholdConfig{Gap: f(0)}.Resolve()
	assert.Equal(t, Thresholds{HighConfidence: 0.58, MinAcceptable: 0.40, Gap: 0}, zeroGap)
	m, ok := Decide(cands(0.45, 0.45), zeroGap)
	assert.True(t, ok, "a zero gap accepts a tie above the floor")
	assert.Equal(t, RuleGapRescue, m.Rule)
}

func seg(start, end, conf float64) transcription.Segment {
	return transcription.Segment{Start: start, End: end, Confidence: conf}
}

func TestSelectSample(t *testing.T) {
	w := SampleWindow{}
	w.ApplyDefaults()
	assert.Equal(t, 4500*time.Millisecond, w.Target)

	tests := []struct {
		name string
		segs []transcription.Segment
		want transcription.Segment
	}{
		{
			name: "in window by confidence",
			segs: []transcription.Segment{seg(0, 10, 0.99), seg(10, 14, 0.7), seg(20, 25, 0.9)},
			want: seg(20, 25, 0.9),
		},
		{
			name: "confidence tie keeps earliest",
			segs: []transcription.Segment{seg(0, 3, 0.8), seg(5, 11, 0.8)},
			want: seg(0, 3, 0.8),
		},
		{
			name: "closest to target",
			segs: []transcription.Segment{seg(0, 1, 0.9), seg(2, 9, 0.5), seg(10, 12.5, 0.1)},
			want: seg(10, 12.5, 0.1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectSample(tt.segs, w)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := SelectSample(nil, w)
	assert.False(t, ok)
}
