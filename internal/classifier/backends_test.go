package classifier_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/fixit/internal/classifier"
	"github.com/garnizeh/fixit/internal/config"
	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/ollama"
)

const plumbingJSON = `{"jobType":"Plumbing","urgency":"High","severity":"Major","estimatedDuration":"2 hours","priceEstimate":"Moderate"}`

func TestOllamaGenerator_EndToEnd(t *testing.T) {
	var format any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		format = body["format"]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "llama3", "response": plumbingJSON, "done": true})
	}))
	defer srv.Close()

	client, err := ollama.NewClient(config.OllamaConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}, srv.Client())
	require.NoError(t, err)
	defer client.Close()

	e, err := classifier.NewEngine(classifier.NewOllamaGenerator(client, "llama3"), config.EngineConfig{Provider: "ollama"}, nil)
	require.NoError(t, err)

	got, err := e.Classify(context.Background(), "burst pipe")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPlumbing, got.JobType)
	assert.Equal(t, "json", format)
}

func TestOllamaGenerator_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not loaded"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := ollama.NewClient(config.OllamaConfig{BaseURL: srv.URL, Timeout: time.Second}, srv.Client())
	require.NoError(t, err)
	defer client.Close()

	e, err := classifier.NewEngine(classifier.NewOllamaGenerator(client, "llama3"), config.EngineConfig{Provider: "ollama"}, nil)
	require.NoError(t, err)

	_, err = e.Classify(context.Background(), "burst pipe")
	assert.ErrorIs(t, err, models.ErrClassifierUnavailable)
}

func TestEngine_Health(t *testing.T) {
	tags := func(names ...string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/tags" {
				http.NotFound(w, r)
				return
			}
			list := make([]map[string]any, 0, len(names))
			for _, n := range names {
				list = append(list, map[string]any{"name": n, "model": n, "size": 42})
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"models": list})
		}))
	}
	ollamaEngine := func(t *testing.T, srv *httptest.Server) *classifier.Engine {
		t.Helper()
		client, err := ollama.NewClient(config.OllamaConfig{BaseURL: srv.URL, Timeout: time.Second}, srv.Client())
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })
		e, err := classifier.NewEngine(classifier.NewOllamaGenerator(client, "llama3"), config.EngineConfig{Provider: "ollama"}, nil)
		require.NoError(t, err)
		return e
	}

	t.Run("ollama with models", func(t *testing.T) {
		srv := tags("llama3")
		defer srv.Close()
		assert.NoError(t, ollamaEngine(t, srv).Health(context.Background()))
	})
	t.Run("ollama without models", func(t *testing.T) {
		srv := tags()
		defer srv.Close()
		assert.ErrorIs(t, ollamaEngine(t, srv).Health(context.Background()), models.ErrClassifierUnavailable)
	})
	t.Run("no provider", func(t *testing.T) {
		e, err := classifier.NewEngine(nil, config.EngineConfig{}, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, e.Health(context.Background()), models.ErrClassifierUnavailable)
	})
	t.Run("backend without a health check", func(t *testing.T) {
		gen := generatorFunc(func(context.Context, string) (string, error) { return plumbingJSON, nil })
		e, err := classifier.NewEngine(gen, config.EngineConfig{Provider: "gemini"}, nil)
		require.NoError(t, err)
		assert.NoError(t, e.Health(context.Background()))
	})
}

func TestGeminiGenerator_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": plumbingJSON}}},
			}},
		})
	}))
	defer srv.Close()

	gen, err := classifier.NewGeminiGenerator(context.Background(), classifier.GeminiOptions{
		APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: srv.URL, HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	e, err := classifier.NewEngine(gen, config.EngineConfig{Provider: "gemini"}, nil)
	require.NoError(t, err)

	got, err := e.Classify(context.Background(), "burst pipe")
	require.NoError(t, err)
	assert.Equal(t, models.UrgencyHigh, got.Urgency)
}

func TestNewGeminiGenerator_RequiresSettings(t *testing.T) {
	_, err := classifier.NewGeminiGenerator(context.Background(), classifier.GeminiOptions{Model: "m"})
	assert.Error(t, err)
	_, err = classifier.NewGeminiGenerator(context.Background(), classifier.GeminiOptions{APIKey: "k"})
	assert.Error(t, err)
}
