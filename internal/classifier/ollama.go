package classifier

import (
	"context"

	"github.com/garnizeh/fixit/pkg/ollama"
)

// OllamaGenerator asks a local Ollama model for a JSON answer.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
}

func NewOllamaGenerator(client *ollama.Client, model string) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model}
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := g.client.Generate(ctx, g.model, prompt, ollama.WithJSONFormat())
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Health checks that the Ollama instance answers and has models installed.
func (g *OllamaGenerator) Health(ctx context.Context) error {
	return g.client.Health(ctx)
}
