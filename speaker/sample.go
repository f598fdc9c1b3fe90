package speaker

import (
	"math"
	"time"

	"github.com/kbukum/meetingflow/transcription"
)

// SampleWindow bounds the clip submitted for a label.
type SampleWindow struct {
	Min    time.Duration `yaml:"min" mapstructure:"min"`
	Max    time.Duration `yaml:"max" mapstructure:"max"`
	Target time.Duration `yaml:"target" mapstructure:"target"`
}

// ApplyDefaults sets 3s / 6s / 4.5s.
func (w *SampleWindow) ApplyDefaults() {
	if w.Min <= 0 {
		w.Min = 3 * time.Second
	}
	if w.Max <= 0 {
		w.Max = 6 * time.Second
	}
	if w.Target <= 0 {
		w.Target = 4500 * time.Millisecond
	}
}

// SelectSample picks the segment to identify a label by. Segments whose
// duration lies in [Min, Max] win, highest confidence first and earliest on
// ties. Otherwise the segment closest to Target is chosen.
func SelectSample(segments []transcription.Segment, w SampleWindow) (transcription.Segment, bool) {
	if len(segments) == 0 {
		return transcription.Segment{}, false
	}
	lo, hi, target := w.Min.Seconds(), w.Max.Seconds(), w.Target.Seconds()

	best := -1
	for i, s := range segments {
		d := s.Duration()
		if d < lo || d > hi {
			continue
		}
		if best < 0 || s.Confidence > segments[best].Confidence {
			best = i
		}
	}
	if best >= 0 {
		return segments[best], true
	}

	best = 0
	bestDist := math.Abs(segments[0].Duration() - target)
	for i := 1; i < len(segments); i++ {
		if dist := math.Abs(segments[i].Duration() - target); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return segments[best], true
}
