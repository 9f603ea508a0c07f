// Package transcode converts compressed voice notes into a waveform the speech
// recognizer can decode.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ashureev/companion/internal/agent"
)

const collaborator = "transcode"

// ErrEmptyInput is returned when there is no audio to convert.
var ErrEmptyInput = errors.New("empty audio input")

// Transcoder converts encoded audio (Telegram voice notes are ogg/opus) into
// 16 kHz mono PCM WAV.
type Transcoder interface {
	Transcode(ctx context.Context, audio []byte) ([]byte, error)
}

// outputArgs are the ffmpeg output options shared by every backend.
var outputArgs = []string{"-vn", "-ac", "1", "-ar", "16000", "-acodec", "pcm_s16le", "-f", "wav"}

// FFmpeg runs a local ffmpeg binary over stdin/stdout.
type FFmpeg struct {
	path string
}

// NewFFmpeg creates a local transcoder. An empty path means "ffmpeg" on PATH.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path}
}

// Transcode implements Transcoder.
func (f *FFmpeg) Transcode(ctx context.Context, audio []byte) ([]byte, error) {
	if len(audio) == 0 {
		return nil, agent.Wrap(collaborator, "ffmpeg", ErrEmptyInput)
	}

	args := append([]string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0"}, outputArgs...)
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, f.path, args...)
	cmd.Stdin = bytes.NewReader(audio)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, agent.Wrap(collaborator, "ffmpeg", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}
	if stdout.Len() == 0 {
		return nil, agent.Wrap(collaborator, "ffmpeg", errors.New("no output produced"))
	}
	return stdout.Bytes(), nil
}

var _ Transcoder = (*FFmpeg)(nil)
