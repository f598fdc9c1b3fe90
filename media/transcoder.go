// Package media is the transcode capability: duration probing, lossless
// concatenation of audio sources and clip extraction, implemented with
// ffprobe and ffmpeg subprocesses.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/process"
)

// Transcoder is the audio capability the pipeline depends on.
type Transcoder interface {
	// Probe returns the duration of the media file in seconds.
	Probe(ctx context.Context, path string) (float64, error)
	// Concat joins inputs in order into output.
	Concat(ctx context.Context, inputs []string, output string) error
	// Extract writes the [start, start+duration) window of input to output
	// as 16 kHz mono WAV.
	Extract(ctx context.Context, input string, start, duration float64, output string) error
}

// Config locates the binaries.
type Config struct {
	FFmpegPath  string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
}

// ApplyDefaults resolves the binaries from PATH.
func (c *Config) ApplyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
}

// FFmpeg implements Transcoder.
type FFmpeg struct {
	cfg    Config
	runner process.Runner
}

// NewFFmpeg creates an FFmpeg transcoder. A nil runner uses process.Exec.
func NewFFmpeg(cfg Config, runner process.Runner) *FFmpeg {
	cfg.ApplyDefaults()
	if runner == nil {
		runner = process.Exec{}
	}
	return &FFmpeg{cfg: cfg, runner: runner}
}

// CheckTools verifies both binaries are on PATH.
func (f *FFmpeg) CheckTools() error {
	for _, bin := range []string{f.cfg.FFmpegPath, f.cfg.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("media: tool not found in PATH: %s", bin)
		}
	}
	return nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the container duration with ffprobe. Unreadable media is an
// AUDIO_FORMAT_ERROR.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	res, err := f.runner.Run(ctx, process.Command{
		Binary: f.cfg.FFprobePath,
		Args:   []string{"-v", "error", "-show_entries", "format=duration", "-of", "json", path},
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		return 0, errors.AudioFormat("cannot probe "+filepath.Base(path), err)
	}

	var out probeOutput
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return 0, errors.AudioFormat("unparseable probe output", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil || d < 0 {
		return 0, errors.AudioFormat("media has no duration", err)
	}
	return d, nil
}

// Concat uses the concat demuxer with stream copy, so inputs must share a
// codec. The list file is written next to output.
func (f *FFmpeg) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("media: concat needs at least one input")
	}

	list, err := os.CreateTemp(filepath.Dir(output), "concat-*.txt")
	if err != nil {
		return fmt.Errorf("media: create concat list: %w", err)
	}
	defer os.Remove(list.Name())

	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			list.Close()
			return fmt.Errorf("media: resolve %s: %w", in, err)
		}
		fmt.Fprintf(list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("media: write concat list: %w", err)
	}

	_, err = f.runner.Run(ctx, process.Command{
		Binary: f.cfg.FFmpegPath,
		Args:   []string{"-y", "-v", "error", "-f", "concat", "-safe", "0", "-i", list.Name(), "-c", "copy", output},
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errors.AudioFormat("cannot concatenate sources", err)
	}
	return nil
}

// Extract cuts a clip and re-encodes it for identity search.
func (f *FFmpeg) Extract(ctx context.Context, input string, start, duration float64, output string) error {
	if duration <= 0 {
		return fmt.Errorf("media: extract duration must be positive, got %.3f", duration)
	}
	_, err := f.runner.Run(ctx, process.Command{
		Binary: f.cfg.FFmpegPath,
		Args: []string{
			"-y", "-v", "error",
			"-ss", formatSeconds(start),
			"-t", formatSeconds(duration),
			"-i", input,
			"-ac", "1", "-ar", "16000",
			"-f", "wav", output,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errors.AudioFormat("cannot extract clip", err)
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

var _ Transcoder = (*FFmpeg)(nil)
