// Package backend is a client for the marketplace backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"modelmarket/internal/domain"
)

// ErrNotConfigured is returned when no API base URL is set.
var ErrNotConfigured = errors.New("backend API not configured")

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend API error (%d): %s", e.Code, e.Body)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	apiKey     string
}

type Option func(*Client)

// WithRate limits outgoing requests to rps per second. Zero or less means no limit.
func WithRate(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithAPIKey sets the key forwarded to the chat model provider.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithToken returns a client that forwards the caller's bearer token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) Configured() bool { return c.baseURL != "" }

type tokenKey struct{}

// ContextWithToken attaches a bearer token that overrides the client's own for one call.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatReply struct {
	Reply    string `json:"reply"`
	Model    string `json:"model,omitempty"`
	Fallback bool   `json:"fallback"`
}

func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (ChatReply, error) {
	var out ChatReply
	err := c.doJSON(ctx, http.MethodPost, "/chat", map[string]any{"messages": messages}, &out)
	return out, err
}

// Analytics returns the backend's usage summary for the given range (e.g. "7d").
func (c *Client) Analytics(ctx context.Context, rangeParam string) (map[string]any, error) {
	path := "/analytics"
	if rangeParam != "" {
		path += "?range=" + url.QueryEscape(rangeParam)
	}
	out := map[string]any{}
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

type CheckoutRequest struct {
	UserID    string `json:"user_id"`
	Tokens    int64  `json:"tokens"`
	AmountUSD int64  `json:"amount_cents"`
	ReturnURL string `json:"return_url,omitempty"`
}

type CheckoutSession struct {
	SessionID      string `json:"session_id"`
	URL            string `json:"url"`
	PublishableKey string `json:"publishable_key,omitempty"`
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	var out CheckoutSession
	err := c.doJSON(ctx, http.MethodPost, "/payments/checkout", req, &out)
	return out, err
}

// PaymentStatus is the backend's view of a checkout session.
type PaymentStatus struct {
	Reference string `json:"reference"`
	UserID    string `json:"user_id"`
	Paid      bool   `json:"paid"`
	Tokens    int64  `json:"tokens"`
}

func (c *Client) VerifyPayment(ctx context.Context, sessionID string) (PaymentStatus, error) {
	var out PaymentStatus
	err := c.doJSON(ctx, http.MethodGet, "/payments/verify/"+url.PathEscape(sessionID), nil, &out)
	return out, err
}

// UploadModel sends a spooled model file to the backend and returns its remote URL.
func (c *Client) UploadModel(ctx context.Context, file domain.FileRef) (string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", file.Name)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/models/upload", pr, mw.FormDataContentType(), &out); err != nil {
		_ = pr.CloseWithError(err)
		return "", err
	}
	return out.URL, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var r io.Reader
	contentType := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, r, contentType, result)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, result any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	token := c.token
	if t, ok := ctx.Value(tokenKey{}).(string); ok && t != "" {
		token = t
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.apiKey != "" {
		req.Header.Set("X-OpenRouter-Key", c.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
