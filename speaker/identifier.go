package speaker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/media"
	"github.com/kbukum/meetingflow/observability"
	"github.com/kbukum/meetingflow/storage"
	"github.com/kbukum/meetingflow/transcription"
)

// Config configures the Identifier.
type Config struct {
	Thresholds   ThresholdConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Sample       SampleWindow    `yaml:"sample" mapstructure:"sample"`
	SignedURLTTL time.Duration   `yaml:"signed_url_ttl" mapstructure:"signed_url_ttl"`
	ScratchDir   string          `yaml:"scratch_dir" mapstructure:"scratch_dir"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	c.Sample.ApplyDefaults()
	if c.SignedURLTTL <= 0 {
		c.SignedURLTTL = 15 * time.Minute
	}
}

// Identifier maps diarization labels to identity names.
type Identifier struct {
	cfg        Config
	thresholds Thresholds
	store      storage.BlobStore
	media      media.Transcoder
	searcher   Searcher
	log        *logger.Logger
}

// NewIdentifier creates an Identifier.
func NewIdentifier(cfg Config, store storage.BlobStore, transcoder media.Transcoder, searcher Searcher, log *logger.Logger) *Identifier {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Identifier{
		cfg:        cfg,
		thresholds: cfg.Thresholds.Resolve(),
		store:      store,
		media:      transcoder,
		searcher:   searcher,
		log:        log.WithComponent("speaker"),
	}
}

// Identify returns label -> identity name for every label it could resolve.
// It never fails: a label whose sample cannot be extracted or searched, or
// whose scores are inconclusive, is left out of the map.
func (i *Identifier) Identify(ctx context.Context, t transcription.Transcript, audioRef string, identities []Identity) map[string]string {
	mapping := make(map[string]string)
	if len(identities) == 0 || len(t.Segments) == 0 {
		return mapping
	}

	scratch, err := os.MkdirTemp(i.cfg.ScratchDir, "identify-")
	if err != nil {
		i.log.Warn("identification skipped", logger.ErrorFields("scratch_dir", err))
		return mapping
	}
	defer os.RemoveAll(scratch)

	audio := filepath.Join(scratch, "canonical"+path.Ext(audioRef))
	if err := i.fetch(ctx, audioRef, audio); err != nil {
		i.log.Warn("identification skipped", logger.ErrorFields("download_audio", err))
		return mapping
	}

	for n, label := range t.Labels() {
		if ctx.Err() != nil {
			break
		}
		log := i.log.WithFields(logger.Fields(logger.FieldLabel, label))

		match, ok, err := i.identifyLabel(ctx, t, label, n, audio, audioRef, identities)
		switch {
		case err != nil:
			log.Warn("label kept: identification failed", logger.Fields(logger.FieldError, err.Error()))
		case !ok:
			log.Info("label kept: no confident match")
		default:
			mapping[label] = match.Identity.Name
			log.Info("label identified", logger.Fields(
				"identity", match.Identity.Name,
				"score", match.Score,
				"gap", match.Gap,
				"rule", string(match.Rule),
			))
		}
	}
	return mapping
}

func (i *Identifier) identifyLabel(ctx context.Context, t transcription.Transcript, label string, n int, audio, audioRef string, identities []Identity) (Match, bool, error) {
	ctx, span := observability.StartSpan(ctx, "speaker.identify_label")
	defer span.End()
	observability.SetSpanAttribute(ctx, "speaker.label", label)

	sample, ok := SelectSample(t.SegmentsFor(label), i.cfg.Sample)
	if !ok {
		return Match{}, false, nil
	}

	clip := filepath.Join(i.scratchOf(audio), fmt.Sprintf("sample-%02d.wav", n))
	if err := i.media.Extract(ctx, audio, sample.Start, sample.Duration(), clip); err != nil {
		observability.SetSpanError(ctx, err)
		return Match{}, false, fmt.Errorf("extract sample: %w", err)
	}

	ref := path.Join(path.Dir(audioRef), "samples", fmt.Sprintf("%02d.wav", n))
	url, err := i.publish(ctx, clip, ref)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return Match{}, false, err
	}
	defer func() {
		if err := i.store.Delete(context.WithoutCancel(ctx), ref); err != nil {
			i.log.Debug("sample cleanup failed", logger.ErrorFields("delete_sample", err))
		}
	}()

	candidates, err := i.searcher.Execute(ctx, SearchRequest{SampleURL: url, Identities: identities})
	if err != nil {
		observability.SetSpanError(ctx, err)
		return Match{}, false, fmt.Errorf("search: %w", err)
	}

	match, ok := Decide(candidates, i.thresholds)
	if ok {
		observability.SetSpanAttribute(ctx, "speaker.rule", string(match.Rule))
	}
	return match, ok, nil
}

func (i *Identifier) scratchOf(audio string) string { return filepath.Dir(audio) }

func (i *Identifier) fetch(ctx context.Context, ref, local string) error {
	rc, err := i.store.Download(ctx, ref)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (i *Identifier) publish(ctx context.Context, local, ref string) (string, error) {
	f, err := os.Open(local)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := i.store.Upload(ctx, ref, f); err != nil {
		return "", fmt.Errorf("upload sample: %w", err)
	}
	url, err := i.store.SignedURL(ctx, ref, i.cfg.SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign sample: %w", err)
	}
	return url, nil
}
