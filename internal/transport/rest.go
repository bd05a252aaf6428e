package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	authHeaderKey = "Authorization"
	contentType   = "application/json"
)

// Connectivity reports whether the device currently has a network path
type Connectivity interface {
	Online() bool
}

// RESTTransport performs JSON requests against the backend with bounded retry
type RESTTransport struct {
	baseURL      string
	httpClient   *http.Client
	retryClient  *retryablehttp.Client
	headers      map[string]string
	logger       types.Logger
	hooks        *types.Hooks
	connectivity Connectivity
}

// Request describes one logical request
type Request struct {
	Method string
	Path   string

	// Body is encoded as JSON when RawBody is empty
	Body interface{}

	// RawBody is sent as-is with ContentType
	RawBody     []byte
	ContentType string

	Headers map[string]string
}

// WithBearer returns a copy of r carrying token as a bearer credential
func (r Request) WithBearer(token string) *Request {
	headers := make(map[string]string, len(r.Headers)+1)
	for k, v := range r.Headers {
		headers[k] = v
	}
	headers[authHeaderKey] = "Bearer " + token
	r.Headers = headers
	return &r
}

// NewRESTTransport creates a new REST transport
func NewRESTTransport(opts *Options) *RESTTransport {
	if opts == nil {
		opts = &Options{}
	}

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = types.DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: types.DefaultTimeout,
		}
	}

	if opts.RetryConfig == nil {
		opts.RetryConfig = types.DefaultRetryConfig()
	}

	t := &RESTTransport{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		hooks:        opts.Hooks,
		connectivity: opts.Connectivity,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = opts.HTTPClient
	retryClient.RetryMax = 0
	if opts.RetryConfig.MaxAttempts > 1 {
		retryClient.RetryMax = opts.RetryConfig.MaxAttempts - 1
	}
	retryClient.RetryWaitMin = opts.RetryConfig.RetryWait
	retryClient.RetryWaitMax = opts.RetryConfig.MaxWait
	retryClient.CheckRetry = t.checkRetry
	retryClient.Backoff = Backoff
	retryClient.ErrorHandler = t.giveUp
	retryClient.RequestLogHook = t.beforeAttempt
	retryClient.Logger = nil
	if opts.Logger != nil {
		retryClient.Logger = &retryLogger{logger: opts.Logger}
	}
	t.retryClient = retryClient

	// Set default headers
	headers := map[string]string{
		"Accept":     contentType,
		"User-Agent": types.UserAgent,
		"Client-Id":  uuid.New().String(),
	}

	// Merge custom headers
	for k, v := range opts.Headers {
		headers[k] = v
	}
	t.headers = headers

	return t
}

// Execute performs the request and decodes a 2xx body into result.
// Every failure is a *types.Error.
func (t *RESTTransport) Execute(ctx context.Context, r *Request, result interface{}) error {
	if t.connectivity != nil && !t.connectivity.Online() {
		return types.NewError(types.KindNoInternet, 0, nil)
	}

	endpoint, err := t.resolve(r.Path)
	if err != nil {
		return types.NewError(types.KindInvalidURL, 0, err)
	}

	var body interface{}
	reqContentType := r.ContentType
	switch {
	case len(r.RawBody) > 0:
		body = r.RawBody
	case r.Body != nil:
		encoded, err := json.Marshal(r.Body)
		if err != nil {
			return types.NewError(types.KindUnknown, 0, errors.Wrap(err, "failed to marshal request"))
		}
		body = encoded
		reqContentType = contentType
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	// Create HTTP request
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return types.NewError(types.KindInvalidURL, 0, errors.Wrap(err, "failed to create request"))
	}

	// Set headers
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	if reqContentType != "" {
		httpReq.Header.Set("Content-Type", reqContentType)
	}
	for k, v := range r.Headers {
		httpReq.Header.Set(k, v)
	}

	// Call request hook
	if t.hooks != nil && t.hooks.OnRequest != nil {
		t.hooks.OnRequest(ctx, httpReq.Request)
	}

	// Log request
	if t.logger != nil {
		t.logger.Debug("HTTP request", "method", method, "path", r.Path, "size", len(r.RawBody))
	}

	// Execute request
	start := time.Now()
	resp, err := t.retryClient.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return t.fail(ctx, classifyError(err))
	}
	defer resp.Body.Close()

	// Call response hook
	if t.hooks != nil && t.hooks.OnResponse != nil {
		t.hooks.OnResponse(ctx, resp, duration)
	}

	// Read response
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return t.fail(ctx, types.NewError(types.KindInvalidResponse, resp.StatusCode, errors.Wrap(err, "failed to read response")))
	}

	// Log response
	if t.logger != nil {
		t.logger.Debug("HTTP response", "path", r.Path, "status", resp.StatusCode, "duration", duration, "size", len(respBody))
	}

	// Check status code
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return t.fail(ctx, t.handleHTTPError(resp.StatusCode, respBody))
	}

	// Decode
	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return t.fail(ctx, types.NewError(types.KindDecoding, resp.StatusCode, errors.Wrap(err, "failed to decode response")))
		}
	}

	return nil
}

func (t *RESTTransport) fail(ctx context.Context, err *types.Error) error {
	if t.hooks != nil && t.hooks.OnError != nil {
		t.hooks.OnError(ctx, err)
	}
	return err
}

func (t *RESTTransport) resolve(path string) (string, error) {
	raw := t.baseURL + path
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", raw)
	}
	return u.String(), nil
}

// checkRetry retries 5xx responses and transport errors that are not
// connectivity, reachability or timeout failures
func (t *RESTTransport) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryable(err), nil
	}
	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return true, nil
	}
	return false, nil
}

// beforeAttempt drops pooled connections ahead of a retry so it dials fresh
func (t *RESTTransport) beforeAttempt(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}
	t.httpClient.CloseIdleConnections()
	if t.logger != nil {
		t.logger.Info("Retrying request", "method", req.Method, "path", req.URL.Path, "attempt", attempt)
	}
}

// giveUp hands the last response or error back to Execute for classification
func (t *RESTTransport) giveUp(resp *http.Response, err error, attempts int) (*http.Response, error) {
	if t.logger != nil {
		t.logger.Warn("Giving up on request", "attempts", attempts, "error", err)
	}
	if err != nil && resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, err
	}
	return resp, err
}

// Backoff waits base * 2^attempt with attempt counted from 1, capped at max
func Backoff(base, max time.Duration, attemptNum int, _ *http.Response) time.Duration {
	wait := time.Duration(float64(base) * math.Pow(2, float64(attemptNum+1)))
	if max > 0 && (wait > max || wait <= 0) {
		return max
	}
	return wait
}

// handleHTTPError handles HTTP errors
func (t *RESTTransport) handleHTTPError(statusCode int, body []byte) *types.Error {
	// Try to parse error response
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	_ = json.Unmarshal(body, &errResp)

	msg := errResp.Message
	if msg == "" {
		msg = errResp.Error
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		e := types.NewError(types.KindUnauthorized, statusCode, nil)
		if msg != "" {
			e.Err = errors.New(msg)
		}
		return e
	case statusCode >= 400 && statusCode <= 499:
		e := types.NewError(types.KindClient, statusCode, nil)
		if msg != "" {
			e.Message = msg
		}
		return e
	case statusCode >= 500 && statusCode <= 599:
		// Create base message with status code and description
		baseMsg := fmt.Sprintf("Server error: %d", statusCode)
		if desc := httpStatusDescription(statusCode); desc != "" {
			baseMsg = fmt.Sprintf("Server error: %d (%s)", statusCode, desc)
		}

		// Append parsed error message if available
		if msg != "" {
			baseMsg = fmt.Sprintf("%s: %s", baseMsg, msg)
		}

		return &types.Error{
			Kind:       types.KindServer,
			Message:    baseMsg,
			StatusCode: statusCode,
		}
	default:
		return types.NewError(types.KindInvalidResponse, statusCode, nil)
	}
}

// httpStatusDescription returns a human-readable description for common HTTP status codes.
// This helps users understand errors like 525 (SSL Handshake Failed) which are Cloudflare-specific.
func httpStatusDescription(statusCode int) string {
	descriptions := map[int]string{
		500: "Internal Server Error",
		501: "Not Implemented",
		502: "Bad Gateway",
		503: "Service Unavailable",
		504: "Gateway Timeout",
		520: "Web Server Error",
		521: "Web Server Is Down",
		522: "Connection Timed Out",
		523: "Origin Is Unreachable",
		524: "A Timeout Occurred",
		525: "SSL Handshake Failed",
		526: "Invalid SSL Certificate",
		527: "Railgun Error",
		530: "Origin DNS Error",
	}
	return descriptions[statusCode]
}

// Options for REST transport
type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	Headers      map[string]string
	RetryConfig  *types.RetryConfig
	Logger       types.Logger
	Hooks        *types.Hooks
	Connectivity Connectivity
}

// retryLogger adapts our logger to retryablehttp
type retryLogger struct {
	logger types.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
