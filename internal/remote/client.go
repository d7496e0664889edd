package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response size (32MB)
	MaxResponseSize = 32 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "recordsync/1.0"

	// PriorityHeader carries the operation's scheduling hint.
	PriorityHeader = "X-Request-Priority"
)

// ServerInfo describes the remote service.
type ServerInfo struct {
	APIVersion string `json:"apiVersion"`
}

type queryRequest struct {
	RecordType string `json:"recordType,omitempty"`
	Predicate  string `json:"predicate,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
}

type queryResponse struct {
	Records []*Record `json:"records"`
	Cursor  string    `json:"cursor,omitempty"`
}

type subscriptionRequest struct {
	RecordType     string   `json:"recordType"`
	Predicate      string   `json:"predicate"`
	FiresOn        []string `json:"firesOn"`
	SilentDelivery bool     `json:"silentDelivery"`
}

// Client is the HTTP implementation of Database.
type Client struct {
	endpoint string
	scope    Scope
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ Database = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	token      string
	timeout    time.Duration
	rps        float64
	burst      int
	httpClient *http.Client
	logger     *slog.Logger
}

// WithToken authenticates requests with a static bearer token.
func WithToken(token string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.token = token
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.timeout = timeout
	}
}

// WithRateLimit paces requests client side. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(cfg *clientConfig) {
		cfg.rps = rps
		cfg.burst = burst
	}
}

// WithHTTPClient replaces the underlying HTTP client. The token option wraps its transport.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) {
		cfg.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// NewClient creates a client for the given endpoint and scope.
func NewClient(endpoint string, scope Scope, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}
	if !scope.Valid() {
		return nil, fmt.Errorf("invalid scope %q", scope)
	}

	cfg := &clientConfig{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}
	if cfg.token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.token,
			TokenType:   "Bearer",
		}))
		authed.Timeout = httpClient.Timeout
		httpClient = authed
	}

	limit := rate.Inf
	burst := cfg.burst
	if cfg.rps > 0 {
		limit = rate.Limit(cfg.rps)
		if burst <= 0 {
			burst = 1
		}
	}

	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		scope:    scope,
		client:   httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   cfg.logger,
	}, nil
}

// Scope returns the database scope.
func (c *Client) Scope() Scope {
	return c.scope
}

// Add starts op on a new goroutine.
func (c *Client) Add(ctx context.Context, op *QueryOperation) error {
	if err := op.MarkAdded(); err != nil {
		return err
	}
	go c.runQuery(ctx, op)
	return nil
}

func (c *Client) runQuery(ctx context.Context, op *QueryOperation) {
	resp, err := c.query(ctx, op)
	if err != nil {
		c.logger.Debug("Query page failed", "operation", op.ID, "error", err)
		op.complete(nil, err)
		return
	}

	for _, rec := range resp.Records {
		if op.RecordFetched != nil {
			op.RecordFetched(rec)
		}
	}

	var next *Cursor
	if resp.Cursor != "" {
		cur := Cursor(resp.Cursor)
		next = &cur
	}
	op.complete(next, nil)
}

func (op *QueryOperation) complete(next *Cursor, err error) {
	if op.QueryCompleted != nil {
		op.QueryCompleted(next, err)
	}
}

func (c *Client) query(ctx context.Context, op *QueryOperation) (*queryResponse, error) {
	body := queryRequest{
		Limit:  op.ResultsLimit,
		Cursor: string(op.Cursor),
	}
	if op.Query != nil {
		body.RecordType = op.Query.RecordType
		body.Predicate = string(op.Query.Predicate)
	}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, c.scopedURL("records", "query"), op.Priority, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveSubscription upserts sub on a new goroutine and reports to done.
func (c *Client) SaveSubscription(ctx context.Context, sub *Subscription, done func(error)) {
	go func() {
		body := subscriptionRequest{
			RecordType:     sub.RecordType,
			Predicate:      string(sub.Predicate),
			FiresOn:        sub.Options.Names(),
			SilentDelivery: sub.SilentDelivery,
		}
		err := c.do(ctx, http.MethodPut, c.scopedURL("subscriptions", url.PathEscape(sub.ID)), PriorityUtility, body, nil)
		if done != nil {
			done(err)
		}
	}()
}

// ServerInfo fetches the service description.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.do(ctx, http.MethodGet, c.endpoint+"/v1/info", PriorityUserInitiated, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) scopedURL(parts ...string) string {
	return c.endpoint + "/v1/" + string(c.scope) + "/" + strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, target string, priority Priority, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(PriorityHeader, priorityHeaderValue(priority))

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return NewNetworkError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength > MaxResponseSize {
		return fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
			resp.ContentLength, MaxResponseSize)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return NewNetworkError(fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(data)) > MaxResponseSize {
		return fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewHTTPError(resp.StatusCode, resp.Header, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Code: CodeInternalError, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

func priorityHeaderValue(p Priority) string {
	if p == PriorityUtility {
		return "background"
	}
	if p == "" {
		return string(PriorityUserInitiated)
	}
	return string(p)
}

// IsNotFound reports whether err is an UnknownItem failure.
func IsNotFound(err error) bool {
	var remoteErr *Error
	return errors.As(err, &remoteErr) && remoteErr.Code == CodeUnknownItem
}
