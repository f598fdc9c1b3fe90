package transcription

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/media"
	"github.com/kbukum/meetingflow/observability"
	"github.com/kbukum/meetingflow/provider"
	"github.com/kbukum/meetingflow/resilience"
	"github.com/kbukum/meetingflow/storage"
)

// Config configures the gateway.
type Config struct {
	// MaskingMarkers are substrings a backend inserts in place of redacted
	// speech. Any of them in the output fails the job.
	MaskingMarkers []string `yaml:"masking_markers" mapstructure:"masking_markers"`
	// Poll drives every backend's submit/poll loop.
	Poll resilience.PollPolicy `yaml:"poll" mapstructure:"poll"`
	// SignedURLTTL bounds the canonical audio URL handed to backends.
	SignedURLTTL time.Duration `yaml:"signed_url_ttl" mapstructure:"signed_url_ttl"`
	// ScratchDir holds downloads and the concatenated stream. Empty uses os.TempDir.
	ScratchDir string `yaml:"scratch_dir" mapstructure:"scratch_dir"`
	// CanonicalPrefix is the blob store prefix for canonical audio.
	CanonicalPrefix string `yaml:"canonical_prefix" mapstructure:"canonical_prefix"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if len(c.MaskingMarkers) == 0 {
		c.MaskingMarkers = []string{"[MASKED]", "[SENSITIVE]"}
	}
	c.Poll.ApplyDefaults()
	if c.SignedURLTTL <= 0 {
		c.SignedURLTTL = time.Hour
	}
	if c.CanonicalPrefix == "" {
		c.CanonicalPrefix = "canonical"
	}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(log *logger.Logger) Option {
	return func(g *Gateway) { g.log = log.WithComponent("transcription") }
}

// WithFallbackHook is called whenever a backend failure moves the gateway
// on to the next backend.
func WithFallbackHook(fn func(ctx context.Context, from string)) Option {
	return func(g *Gateway) { g.onFallback = fn }
}

// Gateway assembles the audio for a job and transcribes it with an ordered
// list of backends, falling through on operational failures.
type Gateway struct {
	cfg        Config
	store      storage.BlobStore
	media      media.Transcoder
	backends   []Backend
	log        *logger.Logger
	onFallback func(ctx context.Context, from string)
}

// NewGateway creates a gateway. backends are tried in order: primary first.
func NewGateway(cfg Config, store storage.BlobStore, transcoder media.Transcoder, backends []Backend, opts ...Option) *Gateway {
	cfg.ApplyDefaults()
	g := &Gateway{
		cfg:      cfg,
		store:    store,
		media:    transcoder,
		backends: backends,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type attemptResult struct {
	provider string
	outcome  *Outcome
}

// Transcribe produces a single transcript for all of req's sources.
func (g *Gateway) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if len(g.backends) == 0 {
		return nil, &TranscriptionError{JobID: req.JobID, Err: provider.ErrNoAttempts}
	}
	order, err := resolveOrder(len(req.Sources), req.Order)
	if err != nil {
		return nil, &TranscriptionError{JobID: req.JobID, Err: err}
	}
	log := g.log.WithFields(logger.Fields(logger.FieldJobID, req.JobID))

	scratch, err := os.MkdirTemp(g.cfg.ScratchDir, "transcribe-")
	if err != nil {
		return nil, &TranscriptionError{JobID: req.JobID, Err: errors.Internal(err)}
	}
	defer os.RemoveAll(scratch)

	audio, err := g.assemble(ctx, scratch, req, order)
	if err != nil {
		return nil, err
	}
	log.Info("audio assembled", logger.Fields("sources", len(audio.spans), "duration_s", audio.total))

	canonical := path.Join(g.cfg.CanonicalPrefix, req.JobID, "canonical"+audio.ext)
	url, err := g.publish(ctx, audio.path, canonical)
	if err != nil {
		return nil, &TranscriptionError{JobID: req.JobID, Err: err}
	}

	sub := Submission{
		AudioURL:      url,
		AudioPath:     audio.path,
		Language:      req.Language,
		Hotwords:      req.Hotwords,
		SpeakerLabels: true,
	}
	attempts := make([]provider.Attempt[attemptResult], 0, len(g.backends))
	for _, b := range g.backends {
		attempts = append(attempts, provider.Attempt[attemptResult]{
			Name: b.Name(),
			Run: func(ctx context.Context) (attemptResult, error) {
				out, err := g.attempt(ctx, b, sub)
				return attemptResult{provider: b.Name(), outcome: out}, err
			},
		})
	}

	res, err := provider.RunFallback(ctx, attempts, g.classifier(ctx, log))
	if err != nil {
		return nil, terminalError(req.JobID, canonical, err)
	}

	transcript := normalize(res.outcome, audio.spans, audio.total)
	transcript.Provider = res.provider
	if transcript.Language == "" {
		transcript.Language = req.Language
	}
	log.Info("transcription complete", logger.Fields(
		logger.FieldProvider, res.provider,
		"segments", len(transcript.Segments),
	))
	return &Result{Transcript: transcript, CanonicalAudio: canonical}, nil
}

// attempt submits to one backend and polls it to completion.
func (g *Gateway) attempt(ctx context.Context, b Backend, sub Submission) (*Outcome, error) {
	ctx, span := observability.StartSpan(ctx, "transcription."+b.Name())
	defer span.End()

	id, err := b.Submit(ctx, sub)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	observability.SetSpanAttribute(ctx, "transcription.backend_job_id", id)
	if r, ok := b.(Releaser); ok {
		defer r.Release(id)
	}

	// Transient poll failures leave the remote job running; only the
	// deadline ends polling for them.
	var transient error
	out, err := resilience.PollUntil(ctx, g.cfg.Poll, func(ctx context.Context) (*Outcome, bool, error) {
		o, err := b.Poll(ctx, id)
		switch {
		case err == nil:
			return o, o != nil && o.Done, nil
		case ctx.Err() != nil:
			return nil, false, ctx.Err()
		case transientPoll(err):
			transient = err
			return nil, false, nil
		}
		return nil, false, err
	})
	if stderrors.Is(err, resilience.ErrPollDeadline) {
		if transient != nil {
			err = fmt.Errorf("%w, last poll error: %v", err, transient)
		}
		err = errors.NetworkTimeout(b.Name(), err)
	}
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	if marker := g.findMarker(out); marker != "" {
		return nil, &SensitiveContentError{Provider: b.Name(), Marker: marker}
	}
	return out, nil
}

func transientPoll(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrCodeNetworkTimeout, errors.ErrCodeRateLimited:
		return true
	}
	return false
}

func (g *Gateway) classifier(ctx context.Context, log *logger.Logger) provider.Classifier {
	return func(name string, err error) provider.Decision {
		decision := provider.TryNext
		switch errors.CodeOf(err) {
		case errors.ErrCodeSensitiveContent, errors.ErrCodeAudioFormat:
			decision = provider.Stop
		}
		if stderrors.Is(err, context.Canceled) {
			decision = provider.Stop
		}
		log.Warn("transcription backend failed", logger.Fields(
			logger.FieldProvider, name,
			logger.FieldError, err.Error(),
			"decision", decision.String(),
		))
		if decision == provider.TryNext && g.onFallback != nil {
			g.onFallback(ctx, name)
		}
		return decision
	}
}

func (g *Gateway) findMarker(out *Outcome) string {
	for _, m := range g.cfg.MaskingMarkers {
		if strings.Contains(out.Text, m) {
			return m
		}
		for _, s := range out.Segments {
			if strings.Contains(s.Text, m) {
				return m
			}
		}
	}
	return ""
}

// terminalError maps the last attempt's failure onto the gateway's
// error types.
func terminalError(jobID, canonical string, err error) error {
	var sensitive *SensitiveContentError
	if stderrors.As(err, &sensitive) {
		return sensitive
	}
	switch errors.CodeOf(err) {
	case errors.ErrCodeSensitiveContent:
		name := ""
		var ae *provider.AttemptError
		if stderrors.As(err, &ae) {
			name = ae.Name
		}
		return &SensitiveContentError{Provider: name}
	case errors.ErrCodeAudioFormat:
		return &AudioFormatError{Source: canonical, Err: err}
	}
	return &TranscriptionError{JobID: jobID, Err: err}
}

type assembled struct {
	path  string
	ext   string
	spans []SourceSpan
	total float64
}

// assemble downloads the sources in order, probes them and concatenates
// them when there is more than one.
func (g *Gateway) assemble(ctx context.Context, scratch string, req Request, order []int) (*assembled, error) {
	out := &assembled{ext: audioExt(req.Sources[order[0]])}
	locals := make([]string, 0, len(order))
	for i, idx := range order {
		ref := req.Sources[idx]
		local := filepath.Join(scratch, fmt.Sprintf("source-%03d%s", i, audioExt(ref)))
		if err := g.download(ctx, ref, local); err != nil {
			return nil, &TranscriptionError{JobID: req.JobID, Err: err}
		}
		d, err := g.media.Probe(ctx, local)
		if err != nil {
			return nil, &AudioFormatError{Source: ref, Err: err}
		}
		out.spans = append(out.spans, SourceSpan{Ref: ref, Offset: out.total, Duration: d})
		out.total += d
		locals = append(locals, local)
	}

	if len(locals) == 1 {
		out.path = locals[0]
		return out, nil
	}
	out.path = filepath.Join(scratch, "canonical"+out.ext)
	if err := g.media.Concat(ctx, locals, out.path); err != nil {
		return nil, &AudioFormatError{Source: "concat", Err: err}
	}
	return out, nil
}

func (g *Gateway) download(ctx context.Context, ref, local string) error {
	rc, err := g.store.Download(ctx, ref)
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NotFound("audio source", ref)
	}
	if err != nil {
		return errors.Internal(err)
	}
	defer rc.Close()

	f, err := os.Create(local)
	if err != nil {
		return errors.Internal(err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return errors.Internal(err)
	}
	if err := f.Close(); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (g *Gateway) publish(ctx context.Context, local, ref string) (string, error) {
	f, err := os.Open(local)
	if err != nil {
		return "", errors.Internal(err)
	}
	defer f.Close()
	if err := g.store.Upload(ctx, ref, f); err != nil {
		return "", errors.Internal(err)
	}
	url, err := g.store.SignedURL(ctx, ref, g.cfg.SignedURLTTL)
	if err != nil {
		return "", errors.Internal(err)
	}
	return url, nil
}

// resolveOrder validates order as a permutation of [0, n). Empty means
// identity.
func resolveOrder(n int, order []int) ([]int, error) {
	if n == 0 {
		return nil, errors.InvalidInput("sources", "at least one audio source is required")
	}
	if len(order) == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	if len(order) != n {
		return nil, errors.InvalidInput("order", fmt.Sprintf("has %d entries for %d sources", len(order), n))
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return nil, errors.InvalidInput("order", fmt.Sprintf("index %d is out of range or repeated", idx))
		}
		seen[idx] = true
	}
	return append([]int(nil), order...), nil
}

func audioExt(ref string) string {
	if ext := path.Ext(ref); ext != "" {
		return ext
	}
	return ".wav"
}

// normalize turns a backend outcome into a Transcript: unlabeled segments get
// the default label, an empty segmentation becomes one full-duration
// segment, segments are ordered by start and each is attributed to, and
// clamped inside, the source window its start falls in.
func normalize(out *Outcome, spans []SourceSpan, total float64) Transcript {
	if total <= 0 {
		total = out.Duration
	}

	segs := make([]Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Speaker == "" {
			s.Speaker = DefaultSpeakerLabel
		}
		segs = append(segs, s)
	}
	if len(segs) == 0 {
		segs = append(segs, Segment{
			Start:   0,
			End:     total,
			Text:    strings.TrimSpace(out.Text),
			Speaker: DefaultSpeakerLabel,
		})
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })

	for i := range segs {
		attribute(&segs[i], spans, total)
	}

	return Transcript{
		Segments: segs,
		Duration: total,
		Language: out.Language,
		Sources:  append([]SourceSpan(nil), spans...),
	}
}

func attribute(s *Segment, spans []SourceSpan, total float64) {
	if s.Start < 0 {
		s.Start = 0
	}
	if total > 0 && s.Start > total {
		s.Start = total
	}
	if s.End < s.Start {
		s.End = s.Start
	}
	if len(spans) == 0 {
		return
	}

	idx := 0
	for i, span := range spans {
		if span.Offset <= s.Start {
			idx = i
		}
	}
	s.Source = idx
	if end := spans[idx].End(); s.End > end {
		s.End = end
	}
	if s.End < s.Start {
		s.End = s.Start
	}
}
