// Package client is a typed HTTP client for the Knox transaction service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"knoxharness/logger"
	"knoxharness/models"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
)

// APIError is a non-2xx response from Knox with the service's structured
// error body and the HTTP status preserved.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("knox api error (status %d, code %q): %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the Knox service. A single Client is safe for sequential
// reuse across repeated calls; the harness never shares one across concurrent
// steps.
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	maxRetries int
	log        *zap.Logger
}

type Option func(*Client)

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient swaps the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMaxRetries overrides how many times a transport-level failure is
// retried. Status errors are never retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    trimSlash(baseURL),
		apiKey:     apiKey,
		http:       &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		log:        logger.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PutTransaction upserts one versioned transaction record. The version query
// parameter falls back to the standard template records id when the record
// carries no explicit version.
func (c *Client) PutTransaction(ctx context.Context, txn models.TransactionData) (*models.Transaction, error) {
	version := txn.TransactionMetadata.StandardTemplateRecordsID
	if txn.Version != nil {
		version = *txn.Version
	}
	query := url.Values{"version": []string{strconv.Itoa(version)}}

	var envelope struct {
		Data models.Transaction `json:"data"`
	}
	if err := c.do(ctx, http.MethodPut, "/v1/transactions", query, txn, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// SearchTransactions runs a filtered search and returns the raw result page.
func (c *Client) SearchTransactions(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	var result models.SearchResult
	if err := c.do(ctx, http.MethodPost, "/v1/transactions/search", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health is a binary readiness gate: it succeeds only on a 200 response whose
// body reports status "OK".
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, nil, &status); err != nil {
		return err
	}
	if status.Status != "OK" {
		return fmt.Errorf("knox health reported %q, want \"OK\"", status.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	c.log.Debug("knox request", zap.String("method", method), zap.String("url", endpoint))

	resp, err := c.send(ctx, method, endpoint, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

// send issues the request, retrying transport-level failures. Each attempt
// gets a fresh body reader.
func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.log.Debug("knox request retry", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, fmt.Errorf("%s %s: %w", method, endpoint, lastErr)
}

func apiError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status, Message: "unknown"}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
		}
		apiErr.Code = envelope.Error.Code
	}
	return apiErr
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
