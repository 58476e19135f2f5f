package vision

import (
	"context"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/engagement-cli/pkg/anthropic"
	"github.com/sells-group/engagement-cli/pkg/ollama"
)

// Model is a vision-capable inference backend.
type Model interface {
	// Name identifies the backend model in logs and metrics.
	Name() string
	// Analyze sends an image with a prompt and returns the raw answer text.
	Analyze(ctx context.Context, image []byte, prompt string) (string, error)
}

// AnthropicModel analyzes screenshots with a Claude model.
type AnthropicModel struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicModel creates an AnthropicModel. maxTokens <= 0 uses 1024.
func NewAnthropicModel(client anthropic.Client, model string, maxTokens int64) *AnthropicModel {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicModel{client: client, model: model, maxTokens: maxTokens}
}

// Name implements Model.
func (m *AnthropicModel) Name() string { return m.model }

// Analyze implements Model.
func (m *AnthropicModel) Analyze(ctx context.Context, image []byte, prompt string) (string, error) {
	temp := 0.0
	resp, err := m.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       m.model,
		MaxTokens:   m.maxTokens,
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: prompt,
			Images:  []anthropic.Image{{MediaType: imageMediaType(image), Data: image}},
		}},
	})
	if err != nil {
		return "", eris.Wrap(err, "vision: anthropic analyze")
	}
	resp.Usage.LogCost(m.model, "vision")
	return resp.Text(), nil
}

// imageMediaType sniffs the screenshot format, defaulting to PNG which is
// what the browser captures.
func imageMediaType(image []byte) string {
	ct := http.DetectContentType(image)
	switch ct {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return ct
	}
	return "image/png"
}

// OllamaModel analyzes screenshots with a local Ollama model.
type OllamaModel struct {
	client ollama.Client
	model  string
}

// NewOllamaModel creates an OllamaModel.
func NewOllamaModel(client ollama.Client, model string) *OllamaModel {
	return &OllamaModel{client: client, model: model}
}

// Name implements Model.
func (m *OllamaModel) Name() string { return m.model }

// Analyze implements Model.
func (m *OllamaModel) Analyze(ctx context.Context, image []byte, prompt string) (string, error) {
	resp, err := m.client.Generate(ctx, ollama.GenerateRequest{
		Model:  m.model,
		Prompt: prompt,
		Images: [][]byte{image},
	})
	if err != nil {
		return "", eris.Wrap(err, "vision: ollama analyze")
	}
	return strings.TrimSpace(resp.Response), nil
}

// Check verifies that the server is reachable and the model is installed.
func (m *OllamaModel) Check(ctx context.Context) error {
	tags, err := m.client.Tags(ctx)
	if err != nil {
		return eris.Wrap(err, "vision: ollama health check")
	}
	if !tags.Has(m.model) {
		return eris.Errorf("vision: ollama model %q is not installed", m.model)
	}
	return nil
}
