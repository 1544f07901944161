// Package remote implements persistence.Gateway against the server's
// /api/essays endpoints, authenticating with a bearer token.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"essay_reader/auth"
	"essay_reader/essay"
	"essay_reader/persistence"
)

const maxResponseSize = 8 << 20

// Gateway talks to a remote essay_reader server.
type Gateway struct {
	baseURL string
	token   string
	// subject of token; every call must name this user
	userID     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option customizes the gateway.
type Option func(*Gateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// New returns a gateway for the server at baseURL (for example http://localhost:8080).
// The server acts as the token's subject, so calls for any other user are refused locally.
// An empty token yields a gateway on which every call is unauthenticated.
func New(baseURL, token string, opts ...Option) (*Gateway, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote base url is required")
	}
	token = strings.TrimSpace(token)
	var userID string
	if token != "" {
		subject, err := auth.SubjectOf(token)
		if err != nil {
			return nil, fmt.Errorf("remote token: %w", err)
		}
		userID = string(subject)
	}
	g := &Gateway{
		baseURL:    baseURL,
		token:      token,
		userID:     userID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Close is a no-op; the HTTP client owns no per-gateway resources.
func (g *Gateway) Close() error {
	return nil
}

type essayBody struct {
	Subject      string             `json:"subject"`
	ReadingLevel essay.ReadingLevel `json:"reading_level"`
	Content      string             `json:"content"`
}

func bodyOf(key essay.Key) essayBody {
	return essayBody{Subject: key.Subject, ReadingLevel: key.ReadingLevel, Content: key.Content}
}

type listResp struct {
	Essays []persistence.SavedEssayRecord `json:"essays"`
}

type idResp struct {
	ID string `json:"id"`
}

type errorResp struct {
	Error string `json:"error"`
}

func (g *Gateway) ListSaved(ctx context.Context, userID string) ([]persistence.SavedEssayRecord, error) {
	if err := g.check(userID); err != nil {
		return nil, err
	}
	var out listResp
	if err := g.do(ctx, http.MethodGet, "/api/essays", nil, &out); err != nil {
		return nil, err
	}
	if out.Essays == nil {
		out.Essays = make([]persistence.SavedEssayRecord, 0)
	}
	return out.Essays, nil
}

func (g *Gateway) Save(ctx context.Context, userID string, key essay.Key) (string, error) {
	if err := g.check(userID); err != nil {
		return "", err
	}
	if err := persistence.CheckKey(key); err != nil {
		return "", err
	}
	var out idResp
	if err := g.do(ctx, http.MethodPost, "/api/essays", bodyOf(key), &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", persistence.Rejectedf(nil, "The server did not return an id for the saved essay.")
	}
	return out.ID, nil
}

func (g *Gateway) Remove(ctx context.Context, id, userID string) error {
	if err := g.check(userID); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return persistence.Rejectedf(nil, "Cannot remove an essay without an id.")
	}
	return g.do(ctx, http.MethodDelete, "/api/essays/"+url.PathEscape(id), nil, nil)
}

func (g *Gateway) FindDuplicate(ctx context.Context, userID string, key essay.Key) (string, error) {
	if err := g.check(userID); err != nil {
		return "", err
	}
	var out idResp
	if err := g.do(ctx, http.MethodPost, "/api/essays/match", bodyOf(key), &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (g *Gateway) check(userID string) error {
	if err := persistence.CheckUser(userID); err != nil {
		return err
	}
	if g.token == "" {
		return persistence.ErrUnauthenticated
	}
	if userID != g.userID {
		return &persistence.Error{
			Kind:    persistence.Unauthenticated,
			Message: "Signed in as a different user. Please login again.",
			Err:     fmt.Errorf("token subject %q, call for %q", g.userID, userID),
		}
	}
	return nil
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return persistence.Rejectedf(err, "Could not encode the request.")
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return persistence.Unavailable(err, "")
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("saved essays request failed")
		return persistence.Unavailable(err, "")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return persistence.Unavailable(fmt.Errorf("read response: %w", err), "")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return persistence.Unavailable(fmt.Errorf("decode response: %w", err), "The saved essays service sent an unreadable response.")
	}
	return nil
}

func statusError(status int, raw []byte) error {
	var parsed errorResp
	_ = json.Unmarshal(raw, &parsed)
	message := strings.TrimSpace(parsed.Error)
	cause := fmt.Errorf("status %d", status)

	switch status {
	case http.StatusUnauthorized:
		return &persistence.Error{Kind: persistence.Unauthenticated, Message: message, Err: cause}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return persistence.Unavailable(cause, message)
	}
	if message == "" {
		message = fmt.Sprintf("The saved essays service refused the request (%d %s).", status, http.StatusText(status))
	}
	return persistence.Rejectedf(cause, "%s", message)
}
