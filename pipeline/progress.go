package pipeline

// Stage boundaries in percent of the job.
const (
	ProgressStart       = 0
	ProgressTranscribed = 40
	ProgressIdentified  = 60
	ProgressCorrected   = 70
	ProgressDone        = 100
)

// EstimateFactor is processing seconds per second of audio.
const EstimateFactor = 0.25

// Estimate returns the remaining seconds for a job at progress, or nil while
// the audio duration is unknown.
func Estimate(duration float64, progress int) *float64 {
	if duration <= 0 {
		return nil
	}
	var v float64
	if progress < ProgressDone {
		v = duration * EstimateFactor * (1 - float64(progress)/100)
	}
	if v < 0 {
		v = 0
	}
	return &v
}
