// Package apiclient talks to the expense collection resource over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
)

// maxErrorBody caps how much of a failed response is read looking for a message.
const maxErrorBody = 64 << 10

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "HTTP Error: " + strconv.Itoa(e.Code)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	metrics    *metrics.Metrics
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPIClient) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New returns a client for the collection at baseURL, e.g.
// http://localhost:8090/api/expenses.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the collection URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// List fetches the whole collection in server order.
func (c *Client) List(ctx context.Context) (expenses []core.Expense, err error) {
	defer func() { c.observe(ctx, http.MethodGet, c.baseURL, err) }()

	resp, err := c.do(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(&expenses); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

// Create posts in and returns the stored record. A non-2xx response yields a
// StatusError whose Message is taken from the body's "message" field when
// present.
func (c *Client) Create(ctx context.Context, in core.ExpenseInput) (created core.Expense, err error) {
	defer func() { c.observe(ctx, http.MethodPost, c.baseURL, err) }()

	payload, err := json.Marshal(in)
	if err != nil {
		return core.Expense{}, fmt.Errorf("encode expense: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL, payload)
	if err != nil {
		return core.Expense{}, err
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return core.Expense{}, &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	// Some services answer 201 or 204 with no body.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Expense{}, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			return core.Expense{}, fmt.Errorf("decode expense: %w", err)
		}
	}
	return created, nil
}

// Delete removes the record with the given id.
func (c *Client) Delete(ctx context.Context, id core.ExpenseID) (err error) {
	target := c.baseURL + "/" + url.PathEscape(id.String())
	defer func() { c.observe(ctx, http.MethodDelete, target, err) }()

	resp, err := c.do(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if !success(resp.StatusCode) {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) observe(ctx context.Context, method, target string, err error) {
	c.metrics.BackendRequest(method, err)
	if err != nil {
		c.logger.WarnContext(ctx, "Expense API call failed",
			log.FieldMethod, method,
			log.FieldURL, target,
			log.FieldError, err.Error())
		return
	}
	c.logger.DebugContext(ctx, "Expense API call succeeded",
		log.FieldMethod, method,
		log.FieldURL, target)
}

func success(code int) bool {
	return code >= 200 && code < 300
}

// errorMessage extracts "message" from a JSON error body. Anything else
// yields "".
func errorMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&body); err != nil {
		return ""
	}
	return body.Message
}
