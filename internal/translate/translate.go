// Package translate provides text translation collaborators.
package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ashureev/companion/internal/agent"
	"github.com/ashureev/companion/internal/locale"
)

// DefaultGoogleURL is the Cloud Translation v2 endpoint.
const DefaultGoogleURL = "https://translation.googleapis.com/language/translate/v2"

const collaborator = "translate"

// ErrEmptyTranslation is returned when the service answers with no text.
var ErrEmptyTranslation = errors.New("empty translation")

// Translator translates text into target, detecting the source language.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Google calls the Cloud Translation v2 REST API.
type Google struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewGoogle creates a Google translator. An empty endpoint uses DefaultGoogleURL.
func NewGoogle(apiKey, endpoint string, timeout time.Duration) *Google {
	if endpoint == "" {
		endpoint = DefaultGoogleURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Google{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Translate implements Translator.
func (g *Google) Translate(ctx context.Context, text, target string) (string, error) {
	form := url.Values{}
	form.Set("q", text)
	form.Set("target", locale.ServiceCode(target))
	form.Set("format", "text")
	form.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", agent.Wrap(collaborator, "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", agent.Wrap(collaborator, "post", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", agent.Wrap(collaborator, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		return "", agent.Wrap(collaborator, "post", fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}

	out := gjson.GetBytes(body, "data.translations.0.translatedText").String()
	if out == "" {
		return "", agent.Wrap(collaborator, "decode", ErrEmptyTranslation)
	}
	return out, nil
}

// LLM translates by prompting the AI gateway. It is the fallback when no
// translation API key is configured.
type LLM struct {
	gateway agent.Gateway
}

// NewLLM creates a gateway-backed translator.
func NewLLM(gateway agent.Gateway) *LLM {
	return &LLM{gateway: gateway}
}

// Translate implements Translator.
func (l *LLM) Translate(ctx context.Context, text, target string) (string, error) {
	instructions := fmt.Sprintf(
		"You are a translation engine. Detect the language of the user's message and translate it into %s (%s). "+
			"Reply with the translation only, without quotes or commentary.",
		locale.Name(target), target)

	out, err := l.gateway.Complete(ctx, text, instructions)
	if err != nil {
		return "", agent.Wrap(collaborator, "llm", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", agent.Wrap(collaborator, "llm", ErrEmptyTranslation)
	}
	return out, nil
}

var (
	_ Translator = (*Google)(nil)
	_ Translator = (*LLM)(nil)
)
