package erp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/erp/labeldesk/internal/infrastructure/erp"

// Client talks to the ERP OData services. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	tracer  trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLimiter replaces the request-rate limiter.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// NewClient validates cfg and creates a client.
func NewClient(cfg Config, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger.Named("erp"),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get fetches path (service path plus query, relative to the base URL) and decodes the body.
func (c *Client) Get(ctx context.Context, path string) (Document, error) {
	body, _, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return DecodeBody(body)
}

// Batch posts the GET paths as one $batch call to servicePath and returns one
// document per path, in order.
func (c *Client) Batch(ctx context.Context, servicePath string, paths []string) ([]Document, error) {
	req := NewBatchRequest(paths)
	headers := map[string]string{
		"Content-Type": req.ContentType(),
		"Accept":       "multipart/mixed",
	}

	body, respHeader, err := c.do(ctx, http.MethodPost, servicePath+"/$batch", req.Body(), headers)
	if err != nil {
		return nil, err
	}
	return DecodeBatchResponse(respHeader.Get("Content-Type"), body, req.Boundary, len(paths))
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, headers map[string]string) ([]byte, http.Header, error) {
	ctx, span := c.tracer.Start(ctx, "erp "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("erp.path", path),
		),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, c.fail(span, fmt.Errorf("%w: rate limiter: %v", ErrUpstreamUnavailable, err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.endpoint(path), reader)
	if err != nil {
		return nil, nil, c.fail(span, fmt.Errorf("erp: build request: %w", err))
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	req.Header.Set("Cookie", "sap-usercontext=sap-client="+c.cfg.Client)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, c.fail(span, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("erp call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, nil, c.fail(span, &StatusError{StatusCode: resp.StatusCode, Method: method, Path: path})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, nil, c.fail(span, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err))
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, nil, c.fail(span, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, c.cfg.MaxResponseBytes))
	}
	return body, resp.Header, nil
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
