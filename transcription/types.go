package transcription

import (
	"fmt"
	"strings"
)

// DefaultSpeakerLabel is assigned to segments a backend returned without a
// diarization label, and to the synthesized full-duration segment.
const DefaultSpeakerLabel = "Speaker 0"

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Start is the segment start time in seconds, relative to the canonical audio.
	Start float64 `json:"start"`
	// End is the segment end time in seconds. Always >= Start.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
	// Speaker is the diarization label, or a resolved identity after
	// identification and correction.
	Speaker string `json:"speaker"`
	// Confidence is the backend's confidence in [0, 1]; 0 when unreported.
	Confidence float64 `json:"confidence,omitempty"`
	// Source is the index (in concatenation order) of the audio source the
	// segment belongs to.
	Source int `json:"source"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// SourceSpan locates one input source inside the canonical audio.
type SourceSpan struct {
	Ref      string  `json:"ref"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

// End returns Offset + Duration.
func (s SourceSpan) End() float64 { return s.Offset + s.Duration }

// Transcript is an ordered list of segments plus metadata. Values are
// treated as immutable; transformations return a new Transcript.
type Transcript struct {
	Segments []Segment    `json:"segments"`
	Duration float64      `json:"duration"`
	Language string       `json:"language,omitempty"`
	Provider string       `json:"provider,omitempty"`
	Sources  []SourceSpan `json:"sources,omitempty"`
}

// Clone returns a deep copy.
func (t Transcript) Clone() Transcript {
	out := t
	out.Segments = append([]Segment(nil), t.Segments...)
	out.Sources = append([]SourceSpan(nil), t.Sources...)
	return out
}

// Labels returns the distinct speaker labels in order of first appearance.
func (t Transcript) Labels() []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, s := range t.Segments {
		if _, ok := seen[s.Speaker]; ok {
			continue
		}
		seen[s.Speaker] = struct{}{}
		labels = append(labels, s.Speaker)
	}
	return labels
}

// SegmentsFor returns the segments carrying label, in order.
func (t Transcript) SegmentsFor(label string) []Segment {
	var out []Segment
	for _, s := range t.Segments {
		if s.Speaker == label {
			out = append(out, s)
		}
	}
	return out
}

// Text renders the transcript as "[mm:ss] speaker: text" lines.
func (t Transcript) Text() string {
	var b strings.Builder
	for _, s := range t.Segments {
		m := int(s.Start) / 60
		sec := int(s.Start) % 60
		fmt.Fprintf(&b, "[%02d:%02d] %s: %s\n", m, sec, s.Speaker, strings.TrimSpace(s.Text))
	}
	return b.String()
}

// Request is the input to Gateway.Transcribe.
type Request struct {
	// JobID scopes scratch files and the canonical audio object.
	JobID string `json:"job_id"`
	// Sources are blob store paths of the input audio files.
	Sources []string `json:"sources"`
	// Order lists indexes into Sources giving the concatenation order.
	// Empty means list order.
	Order []int `json:"order,omitempty"`
	// Language is a BCP-47 code hint; empty lets the backend detect it.
	Language string `json:"language,omitempty"`
	// Hotwords are forwarded as vocabulary boost hints.
	Hotwords []string `json:"hotwords,omitempty"`
}

// Result is the output of Gateway.Transcribe.
type Result struct {
	Transcript Transcript
	// CanonicalAudio is the blob store path of the single audio stream the
	// transcript's timestamps refer to.
	CanonicalAudio string
}
