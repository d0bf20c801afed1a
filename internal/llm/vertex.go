package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

// DefaultVertexModel is used when no model name is configured.
const DefaultVertexModel = "gemini-2.0-flash-001"

// VertexGenerator generates text with a Gemini model on Vertex AI.
type VertexGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewVertexGenerator creates a client for project/location. Credentials come
// from the environment unless opts say otherwise.
func NewVertexGenerator(ctx context.Context, project, location, model string, opts ...option.ClientOption) (*VertexGenerator, error) {
	if project == "" {
		return nil, errors.New("vertex generator: project is required")
	}
	if location == "" {
		location = "us-central1"
	}
	if model == "" {
		model = DefaultVertexModel
	}

	client, err := genai.NewClient(ctx, project, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SetTemperature(0)

	return &VertexGenerator{client: client, model: m}, nil
}

// Generate returns the text parts of the first candidate.
func (g *VertexGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	return responseText(resp)
}

// Close releases the client.
func (g *VertexGenerator) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("vertex generate: no candidates returned")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("vertex generate: response has no text")
	}
	return sb.String(), nil
}
