package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

var ErrEmptyResponse = errors.New("backend returned an empty body")

// APIError is a non-2xx answer from the parking backend. Message and
// ErrorText carry the body's "message" and "error" fields when present.
type APIError struct {
	StatusCode int
	Message    string
	ErrorText  string
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("backend %d: %s", e.StatusCode, e.Message)
	case e.ErrorText != "":
		return fmt.Sprintf("backend %d: %s", e.StatusCode, e.ErrorText)
	}
	return fmt.Sprintf("backend %d", e.StatusCode)
}

// UserMessage picks "message", then "error", then fallback.
func (e *APIError) UserMessage(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	if e.ErrorText != "" {
		return e.ErrorText
	}
	return fallback
}

// ErrorMessage extracts a user-facing message from any error returned by the
// client. Errors that did not come from a backend response yield fallback.
func ErrorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage(fallback)
	}
	return fallback
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx so that backend calls
// made on its behalf are authorized as that user.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type Options struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
}

// Client talks to the parking backend REST API.
type Client struct {
	http         *resty.Client
	serviceToken string
	logger       zerolog.Logger
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	return &Client{
		http:         httpClient,
		serviceToken: opts.ServiceToken,
		logger:       logger.With().Str("component", "backend").Logger(),
	}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	token := tokenFrom(ctx)
	if token == "" {
		token = c.serviceToken
	}
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// do executes one call and decodes a 2xx body into out. Bodies of other
// statuses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.request(ctx)
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode()).
		Dur("took", time.Since(start)).
		Msg("backend request")

	if resp.IsError() || resp.StatusCode() >= http.StatusMultipleChoices {
		return newAPIError(resp.StatusCode(), resp.Body())
	}
	if out == nil {
		return nil
	}
	raw := resp.Body()
	if len(raw) == 0 {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// newAPIError reads "message" and "error" out of a JSON body. Plain-text
// bodies are kept in Body only.
func newAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(raw)}
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return apiErr
	}
	apiErr.Message = stringField(payload.Message)
	apiErr.ErrorText = stringField(payload.Error)
	return apiErr
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
