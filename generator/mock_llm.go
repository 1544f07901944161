package generator

import (
	"context"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	var sb strings.Builder
	sb.WriteString("This is a placeholder essay written without a model.\n\n")
	sb.WriteString("It was requested with the following brief:\n\n")
	sb.WriteString("> ")
	sb.WriteString(strings.ReplaceAll(strings.TrimSpace(prompt.User), "\n", "\n> "))
	sb.WriteString("\n")
	return sb.String(), nil
}
