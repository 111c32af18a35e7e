package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider    string  `yaml:"provider"`
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		APIKey      string  `yaml:"api_key"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Embedding struct {
		Provider   string `yaml:"provider"`
		BaseURL    string `yaml:"base_url"`
		Model      string `yaml:"model"`
		APIKey     string `yaml:"api_key"`
		Dimensions int    `yaml:"dimensions"`
	} `yaml:"embedding"`

	Database struct {
		URL             string `yaml:"url"`
		Collection      string `yaml:"collection"`
		CollectionTable string `yaml:"collection_table"`
		EmbeddingTable  string `yaml:"embedding_table"`
	} `yaml:"database"`

	VectorStore struct {
		Backend          string `yaml:"backend"`
		QdrantHost       string `yaml:"qdrant_host"`
		QdrantPort       int    `yaml:"qdrant_port"`
		QdrantAPIKey     string `yaml:"qdrant_api_key"`
		QdrantUseTLS     bool   `yaml:"qdrant_use_tls"`
		QdrantCollection string `yaml:"qdrant_collection"`
	} `yaml:"vector_store"`

	Conversations struct {
		Backend       string `yaml:"backend"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		SQLitePath    string `yaml:"sqlite_path"`
		MessageLimit  int    `yaml:"message_limit"`
	} `yaml:"conversations"`

	Retrieval struct {
		DefaultTopK int     `yaml:"default_top_k"`
		FetchKFloor int     `yaml:"fetch_k_floor"`
		MMRLambda   float64 `yaml:"mmr_lambda"`
	} `yaml:"retrieval"`

	Server struct {
		Addr           string        `yaml:"addr"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		RateLimit      float64       `yaml:"rate_limit"`
		RateBurst      int           `yaml:"rate_burst"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LoadConfig reads .env (if present), the YAML file at path or the first
// default location found, then applies environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/handbook/config.yaml"),
			"/etc/handbook/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = defaultChatModel(config.LLM.Provider)
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1024
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = config.LLM.Provider
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = defaultEmbeddingModel(config.Embedding.Provider)
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == config.LLM.Provider {
		config.Embedding.BaseURL = config.LLM.BaseURL
	}
	if config.Embedding.APIKey == "" && config.Embedding.Provider == config.LLM.Provider {
		config.Embedding.APIKey = config.LLM.APIKey
	}
	if config.Embedding.Dimensions == 0 {
		config.Embedding.Dimensions = 1536
	}

	if config.Database.URL == "" {
		config.Database.URL = postgresURLFromEnv()
	}
	if config.Database.Collection == "" {
		config.Database.Collection = "seattle_docs"
	}
	if config.Database.CollectionTable == "" {
		config.Database.CollectionTable = "langchain_pg_collection"
	}
	if config.Database.EmbeddingTable == "" {
		config.Database.EmbeddingTable = "langchain_pg_embedding"
	}

	if config.VectorStore.Backend == "" {
		config.VectorStore.Backend = "pgvector"
	}
	if config.VectorStore.QdrantHost == "" {
		config.VectorStore.QdrantHost = "localhost"
	}
	if config.VectorStore.QdrantPort == 0 {
		config.VectorStore.QdrantPort = 6334
	}
	if config.VectorStore.QdrantCollection == "" {
		config.VectorStore.QdrantCollection = config.Database.Collection
	}

	if config.Conversations.Backend == "" {
		config.Conversations.Backend = "postgres"
	}
	if config.Conversations.RedisAddr == "" {
		config.Conversations.RedisAddr = "127.0.0.1:6379"
	}
	if config.Conversations.SQLitePath == "" {
		config.Conversations.SQLitePath = "handbook.db"
	}
	if config.Conversations.MessageLimit == 0 {
		config.Conversations.MessageLimit = 50
	}

	if config.Retrieval.DefaultTopK == 0 {
		config.Retrieval.DefaultTopK = 6
	}
	if config.Retrieval.FetchKFloor == 0 {
		config.Retrieval.FetchKFloor = 12
	}
	if config.Retrieval.MMRLambda == 0 {
		config.Retrieval.MMRLambda = 0.5
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 10 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 90 * time.Second
	}
	if config.Server.RequestTimeout == 0 {
		config.Server.RequestTimeout = 60 * time.Second
	}
	if config.Server.RateLimit == 0 {
		config.Server.RateLimit = 2
	}
	if config.Server.RateBurst == 0 {
		config.Server.RateBurst = 5
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func defaultChatModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-2.5-flash"
	default:
		return "mistral"
	}
}

func defaultEmbeddingModel(provider string) string {
	switch provider {
	case "openai":
		return "text-embedding-3-small"
	case "gemini":
		return "gemini-embedding-001"
	default:
		return "nomic-embed-text:latest"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.LLM.Provider == "" || config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
		if config.Embedding.Provider == "ollama" {
			config.Embedding.BaseURL = baseURL
		}
	}
	for provider, env := range map[string]string{"openai": "OPENAI_API_KEY", "gemini": "GEMINI_API_KEY"} {
		key := os.Getenv(env)
		if key == "" {
			continue
		}
		if config.LLM.Provider == provider && config.LLM.APIKey == "" {
			config.LLM.APIKey = key
		}
		if config.Embedding.Provider == provider && config.Embedding.APIKey == "" {
			config.Embedding.APIKey = key
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if collection := os.Getenv("PGVECTOR_COLLECTION"); collection != "" {
		config.Database.Collection = collection
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Conversations.RedisAddr = addr
	}
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		config.VectorStore.QdrantHost = host
	}
	if port, err := strconv.Atoi(os.Getenv("QDRANT_PORT")); err == nil {
		config.VectorStore.QdrantPort = port
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}

// postgresURLFromEnv builds a connection string from the libpq-style PG*
// variables.
func postgresURLFromEnv() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(envOr("PGUSER", "postgres"), envOr("PGPASSWORD", "postgres")),
		Host:   envOr("PGHOST", "localhost") + ":" + envOr("PGPORT", "5432"),
		Path:   "/" + envOr("PGDATABASE", "seattle_rag"),
	}
	return u.String()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
