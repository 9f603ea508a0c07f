package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/companion/internal/metrics"
)

// Service wraps a provider Gateway with logging and call metrics.
type Service struct {
	gateway Gateway
	metrics *metrics.Metrics
}

// NewService creates a service around an existing gateway.
func NewService(gateway Gateway, m *metrics.Metrics) *Service {
	return &Service{gateway: gateway, metrics: m}
}

// NewFromConfig builds the provider selected by cfg.Provider.
func NewFromConfig(cfg Config, m *metrics.Metrics) (*Service, error) {
	var gw Gateway
	switch cfg.Provider {
	case ProviderOpenAI, "":
		gw = NewOpenAI(cfg)
	case ProviderAnthropic:
		gw = NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	slog.Info("AI gateway configured", "provider", cfg.Provider, "model", cfg.Model)
	return NewService(gw, m), nil
}

// Complete forwards to the provider. Failures are returned as *GatewayError.
func (s *Service) Complete(ctx context.Context, prompt, promptContext string) (string, error) {
	start := time.Now()
	text, err := s.gateway.Complete(ctx, prompt, promptContext)
	err = Wrap("ai", "complete", err)
	s.metrics.Collaborator("ai", err)
	if err != nil {
		slog.Warn("AI completion failed",
			"collaborator", "ai",
			"duration", time.Since(start),
			"error", err)
		return "", err
	}
	slog.Debug("AI completion",
		"prompt_len", len(prompt),
		"context_len", len(promptContext),
		"reply_len", len(text),
		"duration", time.Since(start))
	return text, nil
}

var _ Gateway = (*Service)(nil)
var _ Gateway = (*OpenAI)(nil)
var _ Gateway = (*Anthropic)(nil)
