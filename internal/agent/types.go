// Package agent implements the AI completion gateway used by the conversation
// controller, plus the error type shared by every collaborator adapter.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names accepted by NewFromConfig.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default models per provider.
const (
	DefaultOpenAIModel    = "gpt-3.5-turbo"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// ErrEmptyCompletion is returned when the provider answers without any text.
var ErrEmptyCompletion = errors.New("empty completion")

// Gateway turns a prompt into model text.
//
// promptContext is optional. When non-empty it is sent ahead of prompt as
// instructions for the model (persona preamble followed by any derived
// context block); prompt carries the user's question.
type Gateway interface {
	Complete(ctx context.Context, prompt, promptContext string) (string, error)
}

// GatewayError reports a failed collaborator call. Every adapter (AI,
// translation, speech, transcoding, geocoding) wraps its failures in one so
// the controller can treat them uniformly.
type GatewayError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *GatewayError unless it is nil or already one.
func Wrap(collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return err
	}
	return &GatewayError{Collaborator: collaborator, Op: op, Err: err}
}

// Config holds gateway configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultConfig returns default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderOpenAI,
		MaxTokens:   1000,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}
