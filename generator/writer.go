package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Writer 负责把 (subject, readingLevel) 交给模型并返回正文。
type Writer struct {
	llm    LLMClient
	logger zerolog.Logger
}

func NewWriter(llm LLMClient, logger zerolog.Logger) (*Writer, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Writer{llm: llm, logger: logger}, nil
}

// Write builds the prompt, calls the model once and post-processes the reply.
// No retries: the caller decides whether to ask again.
func (w *Writer) Write(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(string(req.ReadingLevel)) == "" {
		return "", errors.New("subject and reading level are required")
	}
	prompt := BuildEssayPrompt(req)

	raw, err := w.llm.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	text, err := PostProcess(raw)
	if err != nil {
		return "", fmt.Errorf("post-process: %w", err)
	}
	w.logger.Debug().
		Str("subject", req.Subject).
		Str("reading_level", string(req.ReadingLevel)).
		Int("words", WordCount(text)).
		Msg("essay written")
	return text, nil
}

// Unconfigured is the LLMClient used when no provider key is available.
// It fails closed on every call so the endpoint reports a configuration error.
type Unconfigured struct{}

func (Unconfigured) Complete(context.Context, Prompt) (string, error) {
	return "", ErrNotConfigured
}

// BuildLLM picks the provider implementation for the given settings.
func BuildLLM(s LLMSettings) (LLMClient, error) {
	switch s.Provider {
	case "mock":
		return MockLLM{}, nil
	case "openai", "deepseek", "gemini":
		// DeepSeek/Gemini 提供 OpenAI 兼容接口，需填写 base_url。
		if s.Provider != "openai" && s.BaseURL == "" {
			return nil, fmt.Errorf("llm provider %s requires base_url (OpenAI-compatible endpoint)", s.Provider)
		}
		if s.APIKey == "" {
			return Unconfigured{}, nil
		}
		return NewOpenAILLMFromConfig(&s)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", s.Provider)
	}
}
