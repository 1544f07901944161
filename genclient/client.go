// Package genclient calls the essay generation endpoint.
package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"essay_reader/essay"
)

const (
	defaultTimeout  = 90 * time.Second
	maxResponseSize = 4 << 20
)

// Client posts {subject, readingLevel} to the generation endpoint.
// It holds no shared state: writing the result into the session is the caller's job.
type Client struct {
	endpoint   string
	httpClient *http.Client
	catalog    *essay.Catalog
	logger     zerolog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCatalog makes the client reject inputs outside the catalog before any network call.
func WithCatalog(catalog essay.Catalog) Option {
	return func(c *Client) {
		c.catalog = &catalog
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New builds a client for the endpoint URL (for example http://host/api/generate-essay).
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("generation endpoint is required")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type generateRequest struct {
	Subject      string             `json:"subject"`
	ReadingLevel essay.ReadingLevel `json:"readingLevel"`
}

type generateResponse struct {
	Essay   *string `json:"essay"`
	Content *string `json:"content"`
	Error   string  `json:"error"`
	Code    string  `json:"code"`
}

// GenerateEssay returns the generated text verbatim, or a *GenerationError.
// It never retries.
func (c *Client) GenerateEssay(ctx context.Context, subject string, level essay.ReadingLevel) (string, error) {
	subject = strings.TrimSpace(subject)
	if c.catalog != nil {
		if err := c.catalog.Validate(subject, level); err != nil {
			return "", &GenerationError{Kind: Rejected, Reason: ReasonInvalidRequest, Message: err.Error(), Err: err}
		}
	} else if subject == "" || strings.TrimSpace(string(level)) == "" {
		return "", &GenerationError{Kind: Rejected, Reason: ReasonInvalidRequest, Message: "Subject and reading level are required"}
	}

	body, err := json.Marshal(generateRequest{Subject: subject, ReadingLevel: level})
	if err != nil {
		return "", &GenerationError{Kind: Protocol, Message: "Could not encode the generation request.", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Kind: Transport, Message: "Could not reach the essay service.", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("subject", subject).Msg("generation request failed")
		return "", &GenerationError{Kind: Transport, Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &GenerationError{Kind: Transport, Message: "The connection dropped while reading the essay.", Err: err, StatusCode: resp.StatusCode}
	}
	c.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("subject", subject).
		Str("reading_level", string(level)).
		Msg("generation response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", rejection(resp.StatusCode, raw)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &GenerationError{Kind: Protocol, Message: "The essay service sent an unreadable response.", Err: err, StatusCode: resp.StatusCode}
	}
	text := parsed.Essay
	if text == nil {
		text = parsed.Content
	}
	if text == nil || strings.TrimSpace(*text) == "" {
		return "", &GenerationError{Kind: Protocol, Message: "The essay service returned no essay.", StatusCode: resp.StatusCode}
	}
	return *text, nil
}

func rejection(status int, raw []byte) error {
	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || strings.TrimSpace(parsed.Error) == "" {
		return &GenerationError{
			Kind:       Rejected,
			Message:    fmt.Sprintf("The essay service failed (%d %s).", status, http.StatusText(status)),
			StatusCode: status,
		}
	}
	reason := Reason(parsed.Code)
	if reason == ReasonNone {
		reason = sniffReason(parsed.Error)
	}
	kind := Rejected
	if parsed.Code == "configuration" {
		kind = Configuration
		reason = ReasonNone
	}
	return &GenerationError{Kind: kind, Reason: reason, Message: parsed.Error, StatusCode: status}
}

func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "The essay service took too long to answer. Please try again."
	}
	if errors.Is(err, context.Canceled) {
		return "The essay request was cancelled."
	}
	return "Could not reach the essay service. Check your connection and try again."
}
