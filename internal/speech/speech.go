// Package speech turns recorded voice into text.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ashureev/companion/internal/agent"
)

// DefaultModel is the Whisper model used when none is configured.
const DefaultModel = "whisper-1"

const collaborator = "speech"

var (
	// ErrNoSpeech means the audio was decoded but contained no words.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrUnavailable means the recognition service could not be reached or failed.
	ErrUnavailable = errors.New("speech service unavailable")
)

// Recognizer transcribes a WAV waveform.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte) (string, error)
}

// Whisper uses the OpenAI audio transcription endpoint.
type Whisper struct {
	client openai.Client
	model  string
}

// NewWhisper creates a Whisper recognizer.
func NewWhisper(apiKey, baseURL, model string, timeout time.Duration, extra ...option.RequestOption) *Whisper {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	opts = append(opts, extra...)
	if model == "" {
		model = DefaultModel
	}
	return &Whisper{client: openai.NewClient(opts...), model: model}
}

// Recognize implements Recognizer.
func (w *Whisper) Recognize(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", agent.Wrap(collaborator, "transcribe", ErrNoSpeech)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "voice.wav", "audio/wav"),
		Model: openai.AudioModel(w.model),
	})
	if err != nil {
		return "", agent.Wrap(collaborator, "transcribe", fmt.Errorf("%w: %w", ErrUnavailable, err))
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", agent.Wrap(collaborator, "transcribe", ErrNoSpeech)
	}
	return text, nil
}

var _ Recognizer = (*Whisper)(nil)
