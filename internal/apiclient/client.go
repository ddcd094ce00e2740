// Package apiclient is the HTTP adapter used by contract scenarios. It sends a single
// request, measures wall-clock latency and normalizes every outcome (2xx, 4xx, 5xx or a
// transport failure) into a Result so that callers decide what counts as a pass.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"petcontract/internal/core"
	"petcontract/internal/httpclient"
)

// maxBodySize caps how much of a response body is retained (compression bomb protection)
const maxBodySize = 4 * 1024 * 1024

// Request describes one HTTP call relative to the client's base URL.
type Request struct {
	Method string
	// Path is appended to the base URL. It may already carry a query string.
	Path    string
	Query   url.Values
	Headers map[string]string
	// Body is JSON-marshaled unless it is []byte or json.RawMessage, which are sent verbatim.
	Body any
	// Upload switches the request to multipart/form-data. Body is ignored when set.
	Upload *Upload
}

// Upload is a single file part plus optional form fields.
type Upload struct {
	FieldName string
	FileName  string
	Content   []byte
	Fields    map[string]string
}

// Client sends requests to one API base URL
type Client struct {
	httpClient     *http.Client
	baseURL        string
	defaultHeaders map[string]string
	logger         *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the pooled default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHeader adds a header sent with every request unless the request overrides it
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithLogger sets the logger used for per-request debug lines
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for baseURL. A trailing slash on baseURL is ignored.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: httpclient.NewHTTPClient(nil),
		baseURL:    strings.TrimRight(baseURL, "/"),
		defaultHeaders: map[string]string{
			"Accept":          "application/json",
			"Accept-Encoding": "gzip, deflate, br",
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send performs exactly one attempt and never returns nil. Non-2xx statuses are ordinary
// Results; connection failures and timeouts set Result.Err with status 0.
func (c *Client) Send(ctx context.Context, req Request) *Result {
	result := &Result{Method: req.Method, URL: c.resolveURL(req)}

	httpReq, err := c.buildRequest(ctx, req, result.URL)
	if err != nil {
		result.Err = err
		return result
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		result.Elapsed = time.Since(start)
		result.Err = classifyTransportError(err, result.Elapsed)
		c.logger.Debug("request failed",
			"method", req.Method,
			"url", result.URL,
			"elapsed_ms", result.Elapsed.Milliseconds(),
			"error", err,
		)
		return result
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	result.Elapsed = time.Since(start)
	result.Status = resp.StatusCode
	result.StatusText = statusText(resp)
	result.Headers = resp.Header.Clone()
	if err != nil {
		result.Err = core.NewTransportError("failed to read response body: "+err.Error(), err)
		return result
	}

	body, decoded := decompressBody(raw, resp.Header.Get("Content-Encoding"))
	result.Body = body
	result.Decoded = decoded

	c.logger.Debug("request completed",
		"method", req.Method,
		"url", result.URL,
		"status", result.Status,
		"elapsed_ms", result.Elapsed.Milliseconds(),
		"bytes", len(result.Body),
	)
	return result
}

func (c *Client) resolveURL(req Request) string {
	target := c.baseURL + req.Path
	if len(req.Query) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + req.Query.Encode()
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request, target string) (*http.Request, error) {
	var (
		bodyReader  io.Reader
		contentType string
	)

	switch {
	case req.Upload != nil:
		payload, ct, err := encodeMultipart(req.Upload)
		if err != nil {
			return nil, core.NewDefinitionError("failed to encode multipart body", err)
		}
		bodyReader = bytes.NewReader(payload)
		contentType = ct
	case req.Body != nil:
		payload, err := encodeJSONBody(req.Body)
		if err != nil {
			return nil, core.NewDefinitionError("failed to marshal request body", err)
		}
		bodyReader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return nil, core.NewDefinitionError("failed to create request", err)
	}

	for key, value := range c.defaultHeaders {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

func encodeJSONBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func encodeMultipart(up *Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range up.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	field := up.FieldName
	if field == "" {
		field = "file"
	}
	fileName := up.FileName
	if fileName == "" {
		fileName = "upload.bin"
	}
	part, err := w.CreateFormFile(field, fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(up.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// statusText extracts the reason phrase ("Not Found") from the status line.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

func classifyTransportError(err error, elapsed time.Duration) *core.HarnessError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return core.NewTransportError(fmt.Sprintf("request timed out after %s", elapsed.Round(time.Millisecond)), err)
	}
	if errors.Is(err, context.Canceled) {
		return core.NewTransportError("request canceled", err)
	}
	return core.NewTransportError("failed to send request: "+err.Error(), err)
}
