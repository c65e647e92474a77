package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type VaultConfig struct {
	Path            string   `yaml:"path"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

type LLMConfig struct {
	DefaultProvider string  `yaml:"default_provider"`
	OllamaURL       string  `yaml:"ollama_url"`
	OllamaModel     string  `yaml:"ollama_model"`
	OpenAIModel     string  `yaml:"openai_model"`
	AnthropicModel  string  `yaml:"anthropic_model"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`

	// API keys come from the environment only, never from config files.
	OpenAIKey    string `yaml:"-"`
	AnthropicKey string `yaml:"-"`
}

type EmbeddingConfig struct {
	Model     string  `yaml:"model"`
	BaseURL   string  `yaml:"base_url"`
	RateLimit float64 `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	TableName   string `yaml:"table_name"`
	VectorDim   int    `yaml:"vector_dim"`
	BatchSize   int    `yaml:"batch_size"`
	SearchLimit int    `yaml:"search_limit"`
}

type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MinChunkSize int `yaml:"min_chunk_size"`
}

type RAGConfig struct {
	TopK         int `yaml:"top_k"`
	ContextLimit int `yaml:"context_limit"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	Streaming bool   `yaml:"streaming"`
}

type Config struct {
	Vault     VaultConfig     `yaml:"vault"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	RAG       RAGConfig       `yaml:"rag"`
	Server    ServerConfig    `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/spiritual-chatbot/config.yaml"),
			"/etc/spiritual-chatbot/config.yaml",
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
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.DefaultProvider == "" {
		config.LLM.DefaultProvider = "ollama"
	}
	if config.LLM.OllamaURL == "" {
		config.LLM.OllamaURL = "http://localhost:11434"
	}
	if config.LLM.OllamaModel == "" {
		config.LLM.OllamaModel = "llama3.1"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = config.LLM.OllamaURL
	}
	if config.Embedding.RateLimit == 0 {
		config.Embedding.RateLimit = 4
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "note_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 32
	}
	if config.Database.SearchLimit == 0 {
		config.Database.SearchLimit = 10
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 800
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 150
	}
	if config.Chunker.MinChunkSize == 0 {
		config.Chunker.MinChunkSize = 100
	}

	if config.RAG.TopK == 0 {
		config.RAG.TopK = 10
	}
	if config.RAG.ContextLimit == 0 {
		config.RAG.ContextLimit = 2000
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.OllamaURL = baseURL
		config.Embedding.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if vaultPath := os.Getenv("VAULT_PATH"); vaultPath != "" {
		config.Vault.Path = vaultPath
	}
	config.LLM.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	config.LLM.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
}
