// Package collab contains the external-API collaborators the assistant
// dispatches to: calendar, mail, contacts, weather, web search, lead scraping,
// content generation, video rendering and billing. Each collaborator is a thin
// request/response wrapper over a documented third-party HTTP API, exposed to
// the dispatcher as an interface so tests can substitute fakes.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError represents an error envelope returned by a collaborator API
// ({status: "error", message: ...} in upstream terms). The dispatcher
// surfaces its Message to the user verbatim; any other error type is treated
// as unexpected and replaced with a generic failure reply.
type APIError struct {
	// Service names the collaborator ("calendar", "mail", ...).
	Service string

	// Message is the upstream error message, safe to show the user.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

// Errf builds an *APIError for the given service.
func Errf(service, format string, args ...any) *APIError {
	return &APIError{Service: service, Message: fmt.Sprintf(format, args...)}
}

// TokenSource supplies a bearer token for an authenticated API. The Google
// collaborators take one so the credential bootstrap (outside this package)
// can refresh tokens however it likes.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

// Token returns the static token.
func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no access token configured")
	}
	return string(s), nil
}

// httpDoer is satisfied by *http.Client; split out for tests.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 90 * time.Second}
}

// doJSON performs an HTTP request with an optional JSON body and decodes the
// JSON response into out. A non-2xx status is returned as an *APIError with
// the response body as the message.
func doJSON(ctx context.Context, client httpDoer, service, method, url string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", service, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", service, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Errf(service, "request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Errf(service, "reading response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Errf(service, "%s (HTTP %d)", condense(data), resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Errf(service, "decoding response: %v", err)
	}
	return nil
}

// condense extracts a short human-readable message from an error body.
func condense(data []byte) string {
	var envelope struct {
		Error any `json:"error"`
		// OpenWeatherMap and some others use "message" at the top level.
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		switch e := envelope.Error.(type) {
		case string:
			if e != "" {
				return e
			}
		case map[string]any:
			if msg, ok := e["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	s := string(data)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
