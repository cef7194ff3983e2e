package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string          `mapstructure:"port"`
	UploadDir       string          `mapstructure:"upload_dir"`
	DatabasePath    string          `mapstructure:"database_path"`
	FetchTimeoutSec int             `mapstructure:"fetch_timeout_sec"`
	Embedding       EmbeddingConfig `mapstructure:"embedding"`
	Qdrant          QdrantConfig    `mapstructure:"qdrant"`
	Extract         ExtractConfig   `mapstructure:"extract"`
	Search          SearchConfig    `mapstructure:"search"`
	Backfill        BackfillConfig  `mapstructure:"backfill"`
}

type EmbeddingConfig struct {
	APIKey        string `mapstructure:"OPENAI_API_KEY"`
	Model         string `mapstructure:"model"`
	BaseURL       string `mapstructure:"base_url"`
	AllowFallback bool   `mapstructure:"allow_fallback"`
	CacheSize     int    `mapstructure:"cache_size"`
	MaxInputChars int    `mapstructure:"max_input_chars"`
}

type QdrantConfig struct {
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"QDRANT_API_KEY"`
	Collection string `mapstructure:"collection"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

type ExtractConfig struct {
	ChunkSize    int   `mapstructure:"chunk_size"`
	MaxFileBytes int64 `mapstructure:"max_file_bytes"`
	TimeoutSec   int   `mapstructure:"timeout_sec"`
}

type SearchConfig struct {
	RecentWindow int     `mapstructure:"recent_window"`
	Threshold    float64 `mapstructure:"threshold"`
}

type BackfillConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Secrets come from the environment, never the config file.
	v.BindEnv("embedding.OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("qdrant.QDRANT_API_KEY", "QDRANT_API_KEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "knowledge.db"
	}
}
