package llm

import (
	"context"

	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/config"
)

// NewChatModel picks the chat backend named by llm.provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (types.ChatModel, error) {
	chatConfig := ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
	}
	if cfg.LLM.Provider == "gemini" {
		engine, err := NewGeminiEngine(ctx, chatConfig)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}

	engine, err := NewWithConfig(chatConfig)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// NewEmbedder picks the embedding backend named by embedding.provider.
func NewEmbedder(ctx context.Context, cfg *config.Config) (types.Embedder, error) {
	embedderConfig := EmbedderConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Dimensions: cfg.Embedding.Dimensions,
	}
	if cfg.Embedding.Provider == "gemini" {
		embedder, err := NewGeminiEmbedder(ctx, embedderConfig)
		if err != nil {
			return nil, err
		}
		return embedder, nil
	}

	embedder, err := NewEmbedderWithConfig(embedderConfig)
	if err != nil {
		return nil, err
	}
	return embedder, nil
}
