package generator

import "essay_reader/essay"

// Request describes the essay to write.
type Request struct {
	Subject      string             `json:"subject"`
	ReadingLevel essay.ReadingLevel `json:"readingLevel"`
}

// Options tune the provider call. Zero values fall back to provider defaults.
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int64
}
