package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Ollama       OllamaConfig       `mapstructure:"ollama"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Embedding    EmbeddingConfig    `mapstructure:"embedding"`
	Qdrant       QdrantConfig       `mapstructure:"qdrant"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	MaxSize int           `mapstructure:"max_size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type OllamaConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	HebrewModel   string        `mapstructure:"hebrew_model"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

type RemoteConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

type OrchestratorConfig struct {
	HebrewRouting   bool `mapstructure:"hebrew_routing"`
	FallbackEnabled bool `mapstructure:"fallback_enabled"`
}

type EmbeddingConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
	CacheSize int    `mapstructure:"cache_size"`
}

type QdrantConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type PipelineConfig struct {
	EnableEmbeddings    bool `mapstructure:"enable_embeddings"`
	EnableLLM           bool `mapstructure:"enable_llm"`
	EnableVectorStorage bool `mapstructure:"enable_vector_storage"`
	BatchSize           int  `mapstructure:"batch_size"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Enable environment variable override
	viper.AutomaticEnv()

	viper.BindEnv("remote.api_key", "REMOTE_LLM_API_KEY")
	viper.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")

	setDefaults()

	// Read config file (optional if not present)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Override with environment variables explicitly
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		config.Redis.Address = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		config.Redis.Password = pass
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			config.Redis.DB = n
		}
	}
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		config.Ollama.BaseURL = url
	}
	if key := os.Getenv("REMOTE_LLM_API_KEY"); key != "" {
		config.Remote.APIKey = key
	}
	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		config.Qdrant.Host = host
	}

	if config.Remote.Enabled && config.Remote.APIKey == "" {
		return nil, fmt.Errorf("REMOTE_LLM_API_KEY is required when the remote backend is enabled")
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 120*time.Second)

	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.ttl", time.Hour)

	viper.SetDefault("ollama.base_url", "http://localhost:11434")
	viper.SetDefault("ollama.model", "mistral:7b-instruct")
	viper.SetDefault("ollama.hebrew_model", "dictalm2.0-instruct:Q4_K_M")
	viper.SetDefault("ollama.temperature", 0.3)
	viper.SetDefault("ollama.max_tokens", 300)
	viper.SetDefault("ollama.timeout", 15*time.Second)
	viper.SetDefault("ollama.max_concurrent", 10)

	viper.SetDefault("remote.enabled", false)
	viper.SetDefault("remote.model", "meta-llama/Llama-3.1-70B-Instruct")
	viper.SetDefault("remote.max_tokens", 2048)
	viper.SetDefault("remote.timeout", 10*time.Second)
	viper.SetDefault("remote.max_concurrent", 10)

	viper.SetDefault("orchestrator.hebrew_routing", true)
	viper.SetDefault("orchestrator.fallback_enabled", true)

	viper.SetDefault("embedding.endpoint", "http://localhost:11434/v1")
	viper.SetDefault("embedding.model", "nomic-embed-text")
	viper.SetDefault("embedding.dimension", 768)
	viper.SetDefault("embedding.batch_size", 32)
	viper.SetDefault("embedding.cache_size", 10000)

	viper.SetDefault("qdrant.host", "localhost")
	viper.SetDefault("qdrant.port", 6334)
	viper.SetDefault("qdrant.collection", "call_transcriptions")
	viper.SetDefault("qdrant.timeout", 30*time.Second)

	viper.SetDefault("pipeline.enable_embeddings", true)
	viper.SetDefault("pipeline.enable_llm", true)
	viper.SetDefault("pipeline.enable_vector_storage", true)
	viper.SetDefault("pipeline.batch_size", 10)
}
