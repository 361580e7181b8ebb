// Package ollama wraps the Ollama API client with per-request timeouts,
// retries with linear backoff and a consecutive-failure circuit breaker.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/garnizeh/fixit/internal/config"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// Client wraps the Ollama API client.
type Client struct {
	api    *api.Client
	cfg    config.OllamaConfig
	client *http.Client

	failures  atomic.Int32
	openUntil atomic.Int64 // unix nano
	closed    atomic.Bool
}

// GenerateResult is the concatenated model output of one generate call.
type GenerateResult struct {
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
}

type generateOptions struct {
	format json.RawMessage
}

// GenerateOption tunes a single Generate call.
type GenerateOption func(*generateOptions)

// WithJSONFormat asks the model to answer with a single JSON document.
func WithJSONFormat() GenerateOption {
	return func(o *generateOptions) { o.format = json.RawMessage(`"json"`) }
}

// package-level logger for pkg/ollama; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func NewClient(cfg config.OllamaConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		api:    api.NewClient(u, httpClient),
		cfg:    cfg,
		client: httpClient,
	}
	logger.Info("ollama: client created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

// NewDefaultClient builds a client over a tuned keep-alive transport.
func NewDefaultClient(cfg config.OllamaConfig) (*Client, error) {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 15 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return NewClient(cfg, &http.Client{Transport: tr})
}

// Close releases idle connections of the underlying transport. It is idempotent.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
			logger.Info("ollama: idle connections closed")
		}
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if c.cfg.CircuitFailureThreshold <= 0 || c.failures.Load() < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}
	if time.Now().UnixNano() < c.openUntil.Load() {
		return true
	}
	// half-open: let the next request through
	c.failures.Store(0)
	return false
}

func (c *Client) recordFailure() {
	v := c.failures.Add(1)
	if c.cfg.CircuitFailureThreshold > 0 && v >= int32(c.cfg.CircuitFailureThreshold) {
		c.openUntil.Store(time.Now().Add(c.cfg.CircuitReset).UnixNano())
		logger.Warn("ollama: circuit opened", slog.Int("failures", int(v)), slog.Duration("reset", c.cfg.CircuitReset))
	}
}

func (c *Client) recordSuccess() { c.failures.Store(0) }

// ModelInfo is a lightweight descriptor of a locally available model.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ListModels returns the models installed on the Ollama instance.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if c.isCircuitOpen() {
		return nil, ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("list models: %w", err)
	}

	out := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, ModelInfo{Name: m.Name, Size: m.Size})
	}
	c.recordSuccess()
	return out, nil
}

// Health succeeds when the instance answers and has at least one model.
func (c *Client) Health(ctx context.Context) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if len(models) == 0 {
		c.recordFailure()
		return errors.New("health check failed: no models installed")
	}
	return nil
}

// Generate sends prompt to model and returns the concatenated response.
// Failed attempts are retried up to cfg.Retries times; each failure counts
// towards opening the circuit.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts ...GenerateOption) (GenerateResult, error) {
	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}

	stream := false
	req := &api.GenerateRequest{Model: model, Prompt: prompt, Stream: &stream, Format: o.format}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if c.isCircuitOpen() {
			return GenerateResult{}, ErrCircuitOpen
		}

		start := time.Now()
		text, err := c.generateOnce(ctx, req)
		if err == nil {
			c.recordSuccess()
			return GenerateResult{Text: text, Meta: map[string]any{
				"model":      model,
				"latency_ms": time.Since(start).Milliseconds(),
				"attempts":   attempt + 1,
			}}, nil
		}

		lastErr = err
		c.recordFailure()
		logger.Warn("ollama: generate attempt failed", slog.String("model", model), slog.Int("attempt", attempt+1), slog.Any("error", err))

		if attempt == c.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return GenerateResult{}, fmt.Errorf("generate canceled: %w", ctx.Err())
		case <-time.After(c.cfg.Backoff * time.Duration(attempt+1)):
		}
	}

	return GenerateResult{}, fmt.Errorf("generate failed after retries: %w", lastErr)
}

func (c *Client) generateOnce(ctx context.Context, req *api.GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var sb strings.Builder
	err := c.api.Generate(ctx, req, func(r api.GenerateResponse) error {
		sb.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
