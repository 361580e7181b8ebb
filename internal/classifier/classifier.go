// Package classifier turns a free-text service request into a structured
// ServiceAnalysis by prompting a language model and validating its answer
// against an embedded JSON schema.
package classifier

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/fixit/internal/config"
	"github.com/garnizeh/fixit/internal/metrics"
	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/ollama"
)

//go:embed prompt.tmpl
var defaultPrompt string

//go:embed schema.json
var analysisSchema []byte

const (
	NotEstimated = "Not Estimated"

	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Generator is a text-completion backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier is what request intake depends on.
type Classifier interface {
	Classify(ctx context.Context, description string) (models.ServiceAnalysis, error)
}

// DefaultAnalysis is the analysis used when classification is unavailable.
func DefaultAnalysis() models.ServiceAnalysis {
	return models.ServiceAnalysis{
		JobType:           models.CategoryOther,
		Urgency:           models.UrgencyMedium,
		Severity:          models.SeverityModerate,
		EstimatedDuration: NotEstimated,
		PriceEstimate:     models.PriceRequiresQuote,
	}
}

type Engine struct {
	gen      Generator
	provider string
	prompt   string
	schema   *jsonschema.Schema
	timeout  time.Duration
	logger   *slog.Logger
	closer   io.Closer
}

var _ Classifier = (*Engine)(nil)

// NewEngine wraps gen. A nil gen yields an engine that always reports the
// classifier as unavailable.
func NewEngine(gen Generator, cfg config.EngineConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(analysisSchema, rs); err != nil {
		return nil, fmt.Errorf("compile analysis schema: %w", err)
	}

	prompt := defaultPrompt
	if strings.TrimSpace(cfg.Template) != "" {
		prompt = cfg.Template
	}
	// fail fast on a broken override
	if _, err := ollama.RenderTemplate(prompt, promptData("sample")); err != nil {
		return nil, fmt.Errorf("prompt template: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	provider := cfg.Provider
	if gen == nil {
		provider = ProviderNone
	}
	return &Engine{gen: gen, provider: provider, prompt: prompt, schema: rs, timeout: timeout, logger: logger}, nil
}

// New builds the engine for cfg.EngineConfig.Provider.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	switch cfg.EngineConfig.Provider {
	case ProviderOllama:
		client, err := ollama.NewDefaultClient(cfg.Ollama)
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		e, err := NewEngine(NewOllamaGenerator(client, cfg.EngineConfig.Model), cfg.EngineConfig, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		e.closer = client
		return e, nil
	case ProviderGemini:
		gen, err := NewGeminiGenerator(ctx, GeminiOptions{APIKey: cfg.Gemini.APIKey, Model: cfg.EngineConfig.Model})
		if err != nil {
			return nil, err
		}
		return NewEngine(gen, cfg.EngineConfig, logger)
	case ProviderNone, "":
		return NewEngine(nil, cfg.EngineConfig, logger)
	}
	return nil, fmt.Errorf("unknown classifier provider %q", cfg.EngineConfig.Provider)
}

func (e *Engine) Provider() string { return e.provider }

type healthChecker interface {
	Health(ctx context.Context) error
}

// Health reports whether the backend is reachable. Backends without a health
// check are assumed ready.
func (e *Engine) Health(ctx context.Context) error {
	if e.gen == nil {
		return fmt.Errorf("%w: no provider configured", models.ErrClassifierUnavailable)
	}
	hc, ok := e.gen.(healthChecker)
	if !ok {
		return nil
	}
	if err := hc.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrClassifierUnavailable, err)
	}
	return nil
}

func (e *Engine) Close() error {
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

// Classify asks the model for an analysis of description. Every failure,
// including timeouts and answers that do not match the schema, is reported
// as models.ErrClassifierUnavailable.
func (e *Engine) Classify(ctx context.Context, description string) (models.ServiceAnalysis, error) {
	if e.gen == nil {
		metrics.ClassifierRequests.WithLabelValues(e.provider, "disabled").Inc()
		return models.ServiceAnalysis{}, fmt.Errorf("%w: no classifier configured", models.ErrClassifierUnavailable)
	}

	prompt, err := ollama.RenderTemplate(e.prompt, promptData(description))
	if err != nil {
		return models.ServiceAnalysis{}, e.fail("render", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return models.ServiceAnalysis{}, e.fail("generate", err)
	}

	a, err := e.parse(ctx, out)
	if err != nil {
		e.logger.Warn("classifier returned an unusable answer", "provider", e.provider, "error", err, "raw_len", len(out))
		return models.ServiceAnalysis{}, e.fail("invalid", err)
	}

	metrics.ClassifierRequests.WithLabelValues(e.provider, "ok").Inc()
	e.logger.Info("service request classified", "provider", e.provider, "job_type", a.JobType,
		"urgency", a.Urgency, "latency_ms", time.Since(start).Milliseconds())
	return a, nil
}

func (e *Engine) fail(outcome string, err error) error {
	metrics.ClassifierRequests.WithLabelValues(e.provider, outcome).Inc()
	return fmt.Errorf("%w: %s: %w", models.ErrClassifierUnavailable, outcome, err)
}

func (e *Engine) parse(ctx context.Context, out string) (models.ServiceAnalysis, error) {
	j := extractJSON(out)
	if j == "" {
		return models.ServiceAnalysis{}, errors.New("no JSON object found in response")
	}

	kerrs, err := e.schema.ValidateBytes(ctx, []byte(j))
	if err != nil {
		return models.ServiceAnalysis{}, fmt.Errorf("schema validate: %w", err)
	}
	if len(kerrs) > 0 {
		msgs := make([]string, 0, len(kerrs))
		for _, k := range kerrs {
			msgs = append(msgs, k.PropertyPath+": "+k.Message)
		}
		return models.ServiceAnalysis{}, fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; "))
	}

	var a models.ServiceAnalysis
	if err := json.Unmarshal([]byte(j), &a); err != nil {
		return models.ServiceAnalysis{}, fmt.Errorf("json unmarshal: %w", err)
	}
	if strings.TrimSpace(a.EstimatedDuration) == "" {
		a.EstimatedDuration = NotEstimated
	}
	if a.PriceEstimate == "" {
		a.PriceEstimate = models.PriceRequiresQuote
	}
	return a, nil
}

// extractJSON returns the substring from the first '{' to the last '}',
// which tolerates answers wrapped in prose or markdown fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

func promptData(description string) map[string]string {
	join := func(vs []string) string { return strings.Join(vs, ", ") }
	cats := make([]string, 0, len(models.JobCategories))
	for _, c := range models.JobCategories {
		cats = append(cats, string(c))
	}
	return map[string]string{
		"Description":    strings.TrimSpace(description),
		"JobTypes":       join(cats),
		"Urgencies":      join([]string{string(models.UrgencyLow), string(models.UrgencyMedium), string(models.UrgencyHigh), string(models.UrgencyEmergency)}),
		"Severities":     join([]string{string(models.SeverityMinor), string(models.SeverityModerate), string(models.SeverityMajor), string(models.SeverityCritical)}),
		"PriceEstimates": join([]string{string(models.PriceAffordable), string(models.PriceModerate), string(models.PricePremium), string(models.PriceRequiresQuote)}),
	}
}
