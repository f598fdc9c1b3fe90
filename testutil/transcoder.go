package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/kbukum/meetingflow/media"
)

// Transcoder is a media.Transcoder over text files: an audio file holds its
// duration in seconds. Concat writes the summed duration and Extract writes
// "<start>+<duration>".
type Transcoder struct {
	mu      sync.Mutex
	concats [][]string
}

var _ media.Transcoder = (*Transcoder)(nil)

func (t *Transcoder) Probe(_ context.Context, path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	return d, nil
}

func (t *Transcoder) Concat(ctx context.Context, inputs []string, output string) error {
	var total float64
	for _, in := range inputs {
		d, err := t.Probe(ctx, in)
		if err != nil {
			return err
		}
		total += d
	}
	t.mu.Lock()
	t.concats = append(t.concats, append([]string(nil), inputs...))
	t.mu.Unlock()
	return os.WriteFile(output, []byte(strconv.FormatFloat(total, 'f', -1, 64)), 0o600)
}

func (t *Transcoder) Extract(_ context.Context, _ string, start, duration float64, output string) error {
	return os.WriteFile(output, []byte(fmt.Sprintf("%.1f+%.1f", start, duration)), 0o600)
}

// Concats returns the input lists of every Concat call.
func (t *Transcoder) Concats() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]string(nil), t.concats...)
}
