// Package enrich fills missing entity fields with model-generated values,
// validating every response against the field's closed grammar before it is
// allowed anywhere near the reconciler.
package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolve-cli/pkg/anthropic"
)

const systemPrompt = `You enrich structured company records. Answer with only the value requested: no preamble, no markdown, no explanations. If you genuinely cannot determine the value, answer exactly "Unknown".`

// Generator produces one completion for one prompt. Implementations must be
// safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelGenerator is the production Generator backed by the Anthropic client.
// The shared system prompt carries a 1-hour cache breakpoint so a batch run
// pays for it once.
type ModelGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewModelGenerator creates a ModelGenerator.
func NewModelGenerator(client anthropic.Client, modelName string, maxTokens int64, temperature float64) *ModelGenerator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &ModelGenerator{
		client:      client,
		model:       modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (g *ModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	temp := g.temperature
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "enrich: generate")
	}
	resp.Usage.LogCost(g.model, "enrich")
	return strings.TrimSpace(resp.Text()), nil
}
