package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
	"google.golang.org/genai"
)

// GeminiEngine serves llm.provider "gemini".
type GeminiEngine struct {
	client *genai.Client
	config ChatConfig
}

func NewGeminiEngine(ctx context.Context, config ChatConfig) (*GeminiEngine, error) {
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: config.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEngine{client: c, config: config}, nil
}

// Complete folds system messages into the system instruction and sends the
// rest as alternating user/model turns.
func (g *GeminiEngine) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	var system []*genai.Part
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, &genai.Part{Text: m.Content})
		case models.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	temperature := float32(g.config.Temperature)
	contentConfig := &genai.GenerateContentConfig{Temperature: &temperature}
	if len(system) > 0 {
		contentConfig.SystemInstruction = &genai.Content{Parts: system}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.config.Model, contents, contentConfig)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", classifyGemini(err))
	}
	if result == nil || len(result.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	return result.Text(), nil
}

// GeminiEmbedder embeds queries with the Gemini embedding models.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int32
}

func NewGeminiEmbedder(ctx context.Context, config EmbedderConfig) (*GeminiEmbedder, error) {
	if config.Model == "" {
		config.Model = "gemini-embedding-001"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: config.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding client: %w", err)
	}
	return &GeminiEmbedder{client: c, model: config.Model, dimensions: int32(config.Dimensions)}, nil
}

func (g *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embedConfig := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"}
	if g.dimensions > 0 {
		embedConfig.OutputDimensionality = &g.dimensions
	}

	result, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), embedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", classifyGemini(err))
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("failed to embed query: empty vector")
	}
	return result.Embeddings[0].Values, nil
}

func classifyGemini(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return fmt.Errorf("%w: %v", types.ErrUnauthorized, err)
	}
	return classify(err)
}
