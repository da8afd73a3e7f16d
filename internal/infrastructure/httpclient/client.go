// Package httpclient holds the upstream API clients. None of them retry:
// retries belong to the caller's retry policy.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultTimeout  = 10 * time.Second
	maxErrorBodyLen = 256
)

// Options configures a single upstream client.
type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables throttling
	Burst     int
}

type baseClient struct {
	name    string
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newBaseClient(name string, opts Options, logger *zap.Logger) baseClient {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return baseClient{
		name: name,
		client: &fasthttp.Client{
			Name:                "portfolio_tracker",
			MaxIdleConnDuration: 30 * time.Second,
		},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		limiter: limiter,
		logger:  logger.Named(name),
	}
}

// Name returns the provider name used in errors and metrics.
func (c *baseClient) Name() string { return c.name }

func (c *baseClient) requireKey() error {
	if c.apiKey == "" {
		return &entity.ConfigError{Field: c.name + ".apiKey", Message: "API key is not configured"}
	}
	return nil
}

// buildURL joins the base URL, a path and key/value query pairs.
func (c *baseClient) buildURL(path string, query ...string) string {
	u := c.baseURL + path
	if len(query) < 2 {
		return u
	}
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	for i := 0; i+1 < len(query); i += 2 {
		args.Add(query[i], query[i+1])
	}
	return u + "?" + args.String()
}

// getJSON performs a GET request and decodes a 2xx body into dst.
func (c *baseClient) getJSON(ctx context.Context, requestURL string, headers map[string]string, dst any) error {
	body, err := c.get(ctx, requestURL, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		c.logger.Error("Failed to decode upstream response", zap.String("url", redactURL(requestURL)), zap.Error(err))
		return &entity.ProviderError{Provider: c.name, Kind: entity.KindDecode, Message: "failed to decode response", Err: err}
	}
	return nil
}

// get performs a GET request and returns the body of a 2xx response.
func (c *baseClient) get(ctx context.Context, requestURL string, headers map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limiter: %w", c.name, err)
		}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.logger.Debug("Requesting upstream", zap.String("url", redactURL(requestURL)))
	start := time.Now()
	err := c.client.DoDeadline(req, resp, deadline)
	metrics.UpstreamLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		perr := classifyTransportError(c.name, err)
		metrics.UpstreamRequests.WithLabelValues(c.name, string(perr.Kind)).Inc()
		c.logger.Warn("Upstream request failed", zap.String("url", redactURL(requestURL)), zap.String("kind", string(perr.Kind)), zap.Error(err))
		return nil, perr
	}

	status := resp.StatusCode()
	body := append([]byte(nil), resp.Body()...)
	if status < 200 || status >= 300 {
		metrics.UpstreamRequests.WithLabelValues(c.name, fmt.Sprintf("%dxx", status/100)).Inc()
		c.logger.Warn("Upstream returned non-2xx status",
			zap.String("url", redactURL(requestURL)),
			zap.Int("statusCode", status),
			zap.ByteString("responseBody", truncate(body)))
		return nil, &entity.ProviderError{
			Provider: c.name,
			Status:   status,
			Kind:     entity.KindStatus,
			Message:  errorMessage(body, status),
		}
	}
	metrics.UpstreamRequests.WithLabelValues(c.name, "ok").Inc()
	return body, nil
}

func classifyTransportError(provider string, err error) *entity.ProviderError {
	kind := entity.KindNetwork
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, fasthttp.ErrTimeout), errors.Is(err, fasthttp.ErrDialTimeout), errors.Is(err, context.DeadlineExceeded):
		kind = entity.KindTimeout
	case errors.As(err, &dnsErr):
		kind = entity.KindDNS
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = entity.KindTimeout
	}
	return &entity.ProviderError{Provider: provider, Kind: kind, Message: err.Error(), Err: err}
}

// errorMessage extracts "message" or "error" from a JSON error body.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Message      string `json:"message"`
		Error        any    `json:"error"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.ErrorMessage != "":
			return payload.ErrorMessage
		}
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
	}
	if len(body) > 0 {
		return string(truncate(body))
	}
	return fasthttp.StatusMessage(status)
}

func truncate(body []byte) []byte {
	if len(body) > maxErrorBodyLen {
		return body[:maxErrorBodyLen]
	}
	return body
}

// redactURL hides apikey query values in logs.
func redactURL(u string) string {
	i := strings.Index(u, "apikey=")
	if i < 0 {
		return u
	}
	end := strings.IndexByte(u[i:], '&')
	if end < 0 {
		return u[:i] + "apikey=***"
	}
	return u[:i] + "apikey=***" + u[i+end:]
}
