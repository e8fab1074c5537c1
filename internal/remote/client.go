// Package remote is the HTTP+JSON transport to the records API.
package remote

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

	"github.com/google/uuid"
)

// Sentinel errors for common HTTP error classes. A *StatusError unwraps to
// one of these when the status matches.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrEmptyBody    = errors.New("empty response body")

	errInvalidJSON = errors.New("decode response: invalid JSON")
)

// Remote performs one JSON request against the API. Implementations return an
// error for transport failures, non-success statuses and undecodable bodies.
type Remote interface {
	Do(ctx context.Context, method, path string, body any) (json.RawMessage, error)
}

// StatusError is a rejection reported by the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// BodyError is a success status whose body cannot be used: empty, not JSON,
// or carrying an error field. The server did answer, so it is reachable.
type BodyError struct {
	StatusCode int
	Err        error
}

func (e *BodyError) Error() string { return e.Err.Error() }
func (e *BodyError) Unwrap() error { return e.Err }

// Client is an HTTP client for the records API rooted at BaseURL
// (for example "http://localhost:3000/api").
type Client struct {
	BaseURL   string
	Token     string
	UserAgent string
	HTTP      *http.Client
}

// New creates a client. A zero timeout means requests wait until their
// context ends.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: "imtti-client",
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// Do sends body (JSON encoded when non-nil) and returns the raw JSON response.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(respBody)
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, &BodyError{StatusCode: resp.StatusCode, Err: ErrEmptyBody}
	}
	if !json.Valid(respBody) {
		return nil, &BodyError{StatusCode: resp.StatusCode, Err: errInvalidJSON}
	}
	if msg := errorMessage(respBody); msg != "" {
		return nil, &BodyError{
			StatusCode: resp.StatusCode,
			Err:        &StatusError{StatusCode: resp.StatusCode, Message: msg},
		}
	}

	return json.RawMessage(respBody), nil
}

// errorMessage extracts the message of an {"error": ...} body. The field may
// be a string or an object with code and message. Returns "" when absent.
func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Error) == 0 || string(envelope.Error) == "null" || string(envelope.Error) == "false" {
		return ""
	}

	var s string
	if json.Unmarshal(envelope.Error, &s) == nil {
		if s == "" {
			return "API call failed"
		}
		return s
	}

	var structured struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &structured) == nil {
		switch {
		case structured.Message != "" && structured.Code != "":
			return structured.Code + ": " + structured.Message
		case structured.Message != "":
			return structured.Message
		case structured.Code != "":
			return structured.Code
		}
	}
	return "API call failed"
}
