package generator

import "context"

// LLMClient completes one prompt. Implementations must not retry on their own.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Prompt is the system + user message pair sent to the model.
type Prompt struct {
	System string
	User   string
}

// LLMSettings selects and tunes a provider. See BuildLLM.
type LLMSettings struct {
	Provider string // openai | deepseek | gemini | mock
	Model    string
	APIKey   string
	BaseURL  string
	Options  Options
}
