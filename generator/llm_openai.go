package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements LLMClient using the official openai-go SDK (chat completions).
// Any OpenAI-compatible endpoint works through BaseURL (DeepSeek, Gemini's compat layer).
type OpenAILLM struct {
	Model   string
	Options Options
	Opts    []option.RequestOption
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAILLM{Model: cfg.Model, Options: cfg.Options, Opts: opts}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	client := openai.NewClient(o.Opts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	}
	if o.Options.Temperature > 0 {
		params.Temperature = openai.Float(o.Options.Temperature)
	}
	if o.Options.TopP > 0 {
		params.TopP = openai.Float(o.Options.TopP)
	}
	if o.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(o.Options.MaxTokens)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" || strings.TrimSpace(choice.Message.Refusal) != "" {
		reason := strings.TrimSpace(choice.Message.Refusal)
		if reason == "" {
			reason = "content_filter"
		}
		return "", fmt.Errorf("%w: %s", ErrBlocked, reason)
	}
	return choice.Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.Code == "insufficient_quota":
		return fmt.Errorf("%w: %w", ErrQuota, err)
	case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		// 密钥无效按配置错误处理，避免把上游报文透给客户端。
		return fmt.Errorf("%w: provider rejected credentials (http %d)", ErrNotConfigured, apiErr.StatusCode)
	case apiErr.Code == "content_filter", apiErr.Code == "content_policy_violation":
		return fmt.Errorf("%w: %w", ErrBlocked, err)
	}
	return &ProviderError{StatusCode: apiErr.StatusCode, err: err}
}
