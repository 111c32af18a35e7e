package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	llmProviders         = []string{"ollama", "openai", "gemini"}
	vectorStoreBackends  = []string{"pgvector", "qdrant"}
	conversationBackends = []string{"postgres", "redis", "sqlite", "memory"}
	supportedLogFormats  = []string{"text", "json"}
)

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// LLM
	if !oneOf(c.LLM.Provider, llmProviders) {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unsupported provider %q", c.LLM.Provider),
		})
	}

	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	}

	if c.LLM.BaseURL != "" && !validURL(c.LLM.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid base URL",
		})
	}

	if (c.LLM.Provider == "openai" || c.LLM.Provider == "gemini") && c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: fmt.Sprintf("api key is required for provider %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Embedding
	if !oneOf(c.Embedding.Provider, llmProviders) {
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unsupported provider %q", c.Embedding.Provider),
		})
	}

	if c.Embedding.Dimensions < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimensions",
			Message: "dimensions must be positive",
		})
	}

	// Database
	if !validURL(c.Database.URL) {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.Collection == "" {
		errors = append(errors, ValidationError{
			Field:   "database.collection",
			Message: "collection is required",
		})
	}

	// Stores
	if !oneOf(c.VectorStore.Backend, vectorStoreBackends) {
		errors = append(errors, ValidationError{
			Field:   "vector_store.backend",
			Message: fmt.Sprintf("unsupported backend %q", c.VectorStore.Backend),
		})
	}

	if !oneOf(c.Conversations.Backend, conversationBackends) {
		errors = append(errors, ValidationError{
			Field:   "conversations.backend",
			Message: fmt.Sprintf("unsupported backend %q", c.Conversations.Backend),
		})
	}

	if c.Conversations.MessageLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "conversations.message_limit",
			Message: "message_limit must be positive",
		})
	}

	// Retrieval
	if c.Retrieval.DefaultTopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.default_top_k",
			Message: "default_top_k must be at least 1",
		})
	}

	if c.Retrieval.FetchKFloor < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.fetch_k_floor",
			Message: "fetch_k_floor must be at least 1",
		})
	}

	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.mmr_lambda",
			Message: "mmr_lambda must be between 0 and 1",
		})
	}

	// Server
	if c.Server.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Server.RequestTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.request_timeout",
			Message: "request_timeout must be positive",
		})
	}

	if !oneOf(c.Log.Format, supportedLogFormats) {
		errors = append(errors, ValidationError{
			Field:   "log.format",
			Message: "format must be text or json",
		})
	}

	return errors
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
