package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"essay_reader/generator"
)

// Error codes sent in the "code" field; genclient maps them back to reasons.
const (
	codeInvalidRequest = "invalid_request"
	codeContentBlocked = "content_blocked"
	codeQuota          = "quota_exhausted"
	codeConfiguration  = "configuration"
	codeProvider       = "provider_error"
)

const maxGenerateBody = 64 << 10

type generateResp struct {
	Essay string `json:"essay"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generator.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", codeInvalidRequest)
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" || strings.TrimSpace(string(req.ReadingLevel)) == "" {
		respondError(w, http.StatusBadRequest, "Subject and reading level are required", codeInvalidRequest)
		return
	}
	if err := s.catalog.Validate(req.Subject, req.ReadingLevel); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), codeInvalidRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	text, err := s.writer.Write(ctx, req)
	s.metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		status, message, code := classifyGenerateError(err)
		s.metrics.Generations.WithLabelValues(code).Inc()
		// 不回显底层错误，避免把密钥或供应商细节透传给客户端
		s.logger.Warn().Err(err).
			Str("subject", req.Subject).
			Str("reading_level", string(req.ReadingLevel)).
			Str("code", code).
			Msg("essay generation failed")
		respondError(w, status, message, code)
		return
	}
	s.metrics.Generations.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, generateResp{Essay: text})
}

func classifyGenerateError(err error) (int, string, string) {
	switch {
	case errors.Is(err, generator.ErrNotConfigured):
		return http.StatusInternalServerError, "Server configuration error", codeConfiguration
	case errors.Is(err, generator.ErrQuota):
		return http.StatusTooManyRequests, "API quota exceeded. Please try again later.", codeQuota
	case errors.Is(err, generator.ErrBlocked):
		return http.StatusBadRequest, "Content generation was blocked. Please try a different subject.", codeContentBlocked
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The essay took too long to generate. Please try again.", codeProvider
	case errors.Is(err, generator.ErrEmpty):
		return http.StatusBadGateway, "The model returned an empty essay. Please try again.", codeProvider
	default:
		return http.StatusInternalServerError, "Failed to generate essay. Please try again.", codeProvider
	}
}
