package generator

import "errors"

// 生成失败的分类，服务端据此返回结构化的错误码，前端不再需要匹配文本。
var (
	ErrNotConfigured = errors.New("generation provider is not configured")
	ErrQuota         = errors.New("generation quota exhausted")
	ErrBlocked       = errors.New("content generation blocked")
	ErrEmpty         = errors.New("model returned empty essay")
)

// ProviderError wraps a failure reported by the LLM provider.
type ProviderError struct {
	StatusCode int
	err        error
}

func (e *ProviderError) Error() string {
	return e.err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.err
}
