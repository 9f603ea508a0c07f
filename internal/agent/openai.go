package agent

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Gateway with the chat completions API. Any
// OpenAI-compatible endpoint works through Config.BaseURL.
type OpenAI struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewOpenAI creates an OpenAI gateway. Extra request options are appended
// after the ones derived from cfg.
func NewOpenAI(cfg Config, extra ...option.RequestOption) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

// Complete sends promptContext as the system message and prompt as the user message.
func (o *OpenAI) Complete(ctx context.Context, prompt, promptContext string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if promptContext != "" {
		messages = append(messages, openai.SystemMessage(promptContext))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    messages,
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(o.maxTokens)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Wrap("ai", "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", Wrap("ai", "chat completion", ErrEmptyCompletion)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", Wrap("ai", "chat completion", ErrEmptyCompletion)
	}
	return text, nil
}
