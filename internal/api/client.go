package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/classpad-app/classpad-sync/internal/auth"
)

// ErrUnauthenticated indicates no usable credential was available. The
// request is never sent in that case.
var ErrUnauthenticated = errors.New("unauthenticated")

// StatusError is returned for non-2xx responses. Message carries the
// server-provided message verbatim when present, else the per-operation
// fallback.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api responded %d: %s", e.Code, e.Message)
}

// RequestError is returned when the request never produced a response
// (connection failure, timeout, cancelled context).
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// TokenSource hands out the bearer token attached to every request.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the classroom task REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  zerolog.Logger
}

// NewClient constructs an API client rooted at baseURL (conventionally
// ending in /api).
func NewClient(baseURL string, tokens TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  logger.With().Str("component", "api_client").Logger(),
	}
}

type errorEnvelope struct {
	Message string `json:"message"`
}

// do performs one authenticated round-trip and decodes the JSON response
// body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}, fallback string) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := fallback
		var envelope errorEnvelope
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); decodeErr == nil && strings.TrimSpace(envelope.Message) != "" {
			message = strings.TrimSpace(envelope.Message)
		}
		c.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("api request rejected")
		return &StatusError{Code: resp.StatusCode, Message: message}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
	}

	return nil
}

var _ TokenSource = (*auth.Source)(nil)
