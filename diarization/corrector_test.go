package diarization

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kbukum/meetingflow/transcription"
)

func tr(labels ...string) transcription.Transcript {
	t := transcription.Transcript{}
	for i, l := range labels {
		t.Segments = append(t.Segments, transcription.Segment{
			Start: float64(i), End: float64(i + 1), Speaker: l, Text: l,
		})
	}
	return t
}

func speakers(t transcription.Transcript) []string {
	out := make([]string, len(t.Segments))
	for i, s := range t.Segments {
		out[i] = s.Speaker
	}
	return out
}

func TestCorrectReassignsRareLabel(t *testing.T) {
	// C holds 1 of 5 segments (0.2 < 0.3); A and B hold 0.4 each.
	in := tr("A", "B", "A", "C", "B")
	got := NewCorrector(Config{}).Correct(in, nil)

	assert.Equal(t, []string{"A", "B", "A", "A", "B"}, speakers(got))
	for i := range got.Segments {
		assert.Equal(t, in.Segments[i].Start, got.Segments[i].Start)
		assert.Equal(t, in.Segments[i].End, got.Segments[i].End)
		assert.Equal(t, in.Segments[i].Text, got.Segments[i].Text)
	}
	assert.Equal(t, "C", in.Segments[3].Speaker, "input must not be modified")
}

func TestCorrectAppliesMappingFirst(t *testing.T) {
	in := tr("Speaker A", "Speaker B", "Speaker A", "Speaker B")
	got := NewCorrector(Config{}).Correct(in, map[string]string{"Speaker A": "Alice"})
	assert.Equal(t, []string{"Alice", "Speaker B", "Alice", "Speaker B"}, speakers(got))
}

func TestCorrectMappingMergesLabels(t *testing.T) {
	// After mapping Alice holds 3/5 and B 2/5, so nothing is rare.
	in := tr("A", "B", "C", "B", "D")
	got := NewCorrector(Config{}).Correct(in, map[string]string{"A": "Alice", "C": "Alice", "D": "Alice"})
	assert.Equal(t, []string{"Alice", "B", "Alice", "B", "Alice"}, speakers(got))
}

func TestCorrectDominantTieGoesToFirstLabel(t *testing.T) {
	// Four labels at 0.25 each: all but the first collapse into it.
	got := NewCorrector(Config{}).Correct(tr("B", "A", "C", "D"), nil)
	assert.Equal(t, []string{"B", "B", "B", "B"}, speakers(got))
}

func TestCorrectNoChangeAboveThreshold(t *testing.T) {
	in := tr("A", "B", "A", "B", "B")
	threshold := 0.3
	got := NewCorrector(Config{OutlierThreshold: &threshold}).Correct(in, map[string]string{})
	assert.Equal(t, speakers(in), speakers(got))

	empty := NewCorrector(Config{}).Correct(transcription.Transcript{}, nil)
	assert.Empty(t, empty.Segments)
}

func TestCorrectZeroThresholdKeepsRareLabels(t *testing.T) {
	zero := 0.0
	in := tr("A", "B", "A", "C", "B")
	got := NewCorrector(Config{OutlierThreshold: &zero}).Correct(in, nil)
	assert.Equal(t, speakers(in), speakers(got))
}

func TestErrorRate(t *testing.T) {
	seg := func(start, end float64, label string) transcription.Segment {
		return transcription.Segment{Start: start, End: end, Speaker: label}
	}
	ref := transcription.Transcript{Segments: []transcription.Segment{seg(0, 10, "A"), seg(10, 20, "B")}}

	tests := []struct {
		name string
		hyp  []transcription.Segment
		want float64
	}{
		{name: "perfect", hyp: []transcription.Segment{seg(0, 10, "A"), seg(10, 20, "B")}, want: 0},
		{name: "confusion", hyp: []transcription.Segment{seg(0, 10, "A"), seg(10, 20, "A")}, want: 0.5},
		{name: "missed", hyp: []transcription.Segment{seg(0, 10, "A")}, want: 0.5},
		{name: "partial", hyp: []transcription.Segment{seg(0, 5, "A"), seg(5, 10, "B"), seg(10, 20, "B")}, want: 0.25},
		{name: "overlapping hypotheses", hyp: []transcription.Segment{seg(0, 8, "A"), seg(4, 10, "A"), seg(10, 20, "B")}, want: 0},
		{name: "capped", hyp: []transcription.Segment{seg(0, 20, "C"), seg(0, 20, "D")}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorRate(ref, transcription.Transcript{Segments: tt.hyp})
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	assert.Equal(t, 0.0, ErrorRate(transcription.Transcript{}, ref))
}
