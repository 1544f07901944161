package genclient

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a generation failure.
type Kind int

const (
	// Transport: no response was received.
	Transport Kind = iota + 1
	// Rejected: the endpoint answered with a non-success status.
	Rejected
	// Protocol: the response body could not be understood.
	Protocol
	// Configuration: the serving layer has no provider credential.
	Configuration
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Rejected:
		return "rejected"
	case Protocol:
		return "protocol"
	case Configuration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Reason refines a Rejected failure so callers can word their message without
// inspecting text. Codes match the endpoint's "code" field.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonQuota          Reason = "quota_exhausted"
	ReasonContentBlocked Reason = "content_blocked"
	ReasonInvalidRequest Reason = "invalid_request"
	ReasonProvider       Reason = "provider_error"
)

// GenerationError is returned by every failed GenerateEssay call.
// Message is suitable for direct display.
type GenerationError struct {
	Kind       Kind
	Reason     Reason
	Message    string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("essay generation failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("essay generation failed (%s)", e.Kind)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// AsGenerationError extracts a *GenerationError from err.
func AsGenerationError(err error) (*GenerationError, bool) {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

// IsKind reports whether err is a GenerationError of the given kind.
func IsKind(err error, kind Kind) bool {
	gerr, ok := AsGenerationError(err)
	return ok && gerr.Kind == kind
}

// IsQuota reports whether the endpoint refused because the quota is exhausted.
func IsQuota(err error) bool {
	gerr, ok := AsGenerationError(err)
	return ok && gerr.Reason == ReasonQuota
}

// IsContentBlocked reports whether the provider's safety filter blocked the request.
func IsContentBlocked(err error) bool {
	gerr, ok := AsGenerationError(err)
	return ok && gerr.Reason == ReasonContentBlocked
}

// sniffReason is a compatibility shim for endpoints that send only free text.
func sniffReason(message string) Reason {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "quota"):
		return ReasonQuota
	case strings.Contains(lower, "blocked"):
		return ReasonContentBlocked
	}
	return ReasonNone
}
