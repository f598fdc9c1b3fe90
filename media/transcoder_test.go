package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/process"
)

type recordingRunner struct {
	cmds   []process.Command
	stdout string
	err    error
	// lists captures concat list contents while the file still exists.
	lists []string
}

func (r *recordingRunner) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	r.cmds = append(r.cmds, cmd)
	for i, a := range cmd.Args {
		if a == "-i" && strings.HasSuffix(cmd.Args[i+1], ".txt") {
			b, _ := os.ReadFile(cmd.Args[i+1])
			r.lists = append(r.lists, string(b))
		}
	}
	return &process.Result{Stdout: []byte(r.stdout)}, r.err
}

func TestProbe_ParsesDuration(t *testing.T) {
	r := &recordingRunner{stdout: `{"format":{"duration":"12.500000"}}`}
	f := NewFFmpeg(Config{}, r)

	d, err := f.Probe(context.Background(), "a.mp3")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, d, 1e-9)
	require.Len(t, r.cmds, 1)
	assert.Equal(t, "ffprobe", r.cmds[0].Binary)
	assert.Equal(t, "a.mp3", r.cmds[0].Args[len(r.cmds[0].Args)-1])
}

func TestProbe_FailureIsAudioFormatError(t *testing.T) {
	r := &recordingRunner{err: fmt.Errorf("exit 1")}
	f := NewFFmpeg(Config{}, r)

	_, err := f.Probe(context.Background(), "broken.bin")
	assert.Equal(t, errors.ErrCodeAudioFormat, errors.CodeOf(err))

	r = &recordingRunner{stdout: `{"format":{}}`}
	_, err = NewFFmpeg(Config{}, r).Probe(context.Background(), "x")
	assert.Equal(t, errors.ErrCodeAudioFormat, errors.CodeOf(err))
}

func TestConcat_WritesOrderedList(t *testing.T) {
	dir := t.TempDir()
	r := &recordingRunner{}
	f := NewFFmpeg(Config{FFmpegPath: "/opt/ffmpeg"}, r)

	out := filepath.Join(dir, "joined.mp3")
	err := f.Concat(context.Background(), []string{filepath.Join(dir, "b.mp3"), filepath.Join(dir, "a.mp3")}, out)
	require.NoError(t, err)

	require.Len(t, r.lists, 1)
	lines := strings.Split(strings.TrimSpace(r.lists[0]), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "b.mp3")
	assert.Contains(t, lines[1], "a.mp3")
	assert.Equal(t, "/opt/ffmpeg", r.cmds[0].Binary)
	assert.Equal(t, out, r.cmds[0].Args[len(r.cmds[0].Args)-1])

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "concat list should be removed")
}

func TestConcat_NoInputs(t *testing.T) {
	f := NewFFmpeg(Config{}, &recordingRunner{})
	assert.Error(t, f.Concat(context.Background(), nil, "out.mp3"))
}

func TestExtract_Args(t *testing.T) {
	r := &recordingRunner{}
	f := NewFFmpeg(Config{}, r)

	require.NoError(t, f.Extract(context.Background(), "in.mp3", 61.25, 4.5, "clip.wav"))
	args := strings.Join(r.cmds[0].Args, " ")
	assert.Contains(t, args, "-ss 61.250 -t 4.500 -i in.mp3")
	assert.Contains(t, args, "-ac 1 -ar 16000")

	assert.Error(t, f.Extract(context.Background(), "in.mp3", 0, 0, "clip.wav"))
}
