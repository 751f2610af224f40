// Package config holds the YAML-backed configuration structs for the
// ingestion and RPC-server entrypoints. Adapted from the teacher's
// providers.go load/validate pattern (os.ReadFile + yaml.Unmarshal +
// per-field Validate), generalized from provider rate-limit config to the
// RAG pipeline's own set of concerns (KV store path, vector store, cache,
// ledger, embedder, RPC bind address).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// QdrantConfig points at the vector store collection.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// EmbedderConfig points at the external embedding service.
type EmbedderConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig configures the embedding cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// PostgresConfig configures the ingestion-run ledger.
type PostgresConfig struct {
	DSN            string        `yaml:"dsn"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
}

// IngestConfig is the configuration for the ragingest CLI.
type IngestConfig struct {
	KVStorePath     string         `yaml:"kv_store_path"`
	Qdrant          QdrantConfig   `yaml:"qdrant"`
	Embedder        EmbedderConfig `yaml:"embedder"`
	Redis           RedisConfig    `yaml:"redis"`
	Postgres        PostgresConfig `yaml:"postgres"`
	IntervalMinutes int            `yaml:"interval_minutes"`
	LogLevel        string         `yaml:"log_level"`
}

// ServerConfig is the configuration for the ragserve RPC server, mirroring
// original_source/rag-rpc-server/src/config.rs's ServerConfig defaults.
type ServerConfig struct {
	Host       string         `yaml:"host"`
	Port       int            `yaml:"port"`
	Qdrant     QdrantConfig   `yaml:"qdrant"`
	Embedder   EmbedderConfig `yaml:"embedder"`
	Redis      RedisConfig    `yaml:"redis"`
	MinMatches int            `yaml:"min_matches"`
	LogLevel   string         `yaml:"log_level"`
}

// DefaultIngestConfig mirrors the teacher's convention of shipping usable
// zero-config defaults rather than requiring a file for local runs.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		KVStorePath: "data/market.db",
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "trading_patterns",
		},
		Embedder: EmbedderConfig{
			BaseURL: "http://localhost:8081",
			Timeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		Postgres: PostgresConfig{
			QueryTimeout: 5 * time.Second,
		},
		IntervalMinutes: 15,
		LogLevel:        "info",
	}
}

// DefaultServerConfig mirrors ServerConfig::default() in config.rs.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host: "0.0.0.0",
		Port: 7879,
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "trading_patterns",
		},
		Embedder: EmbedderConfig{
			BaseURL: "http://localhost:8081",
			Timeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		MinMatches: 3,
		LogLevel:   "info",
	}
}

// LoadIngestConfig loads an IngestConfig from YAML, falling back to defaults
// for any field the file omits.
func LoadIngestConfig(path string) (IngestConfig, error) {
	cfg := DefaultIngestConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read ingest config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse ingest config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: invalid ingest config: %w", err)
	}
	return cfg, nil
}

// LoadServerConfig loads a ServerConfig from YAML, falling back to defaults
// for any field the file omits.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read server config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: invalid server config: %w", err)
	}
	return cfg, nil
}

// Validate checks IngestConfig invariants.
func (c IngestConfig) Validate() error {
	if c.KVStorePath == "" {
		return fmt.Errorf("kv_store_path cannot be empty")
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("qdrant.collection cannot be empty")
	}
	if c.Embedder.BaseURL == "" {
		return fmt.Errorf("embedder.base_url cannot be empty")
	}
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive, got %d", c.IntervalMinutes)
	}
	return nil
}

// Validate checks ServerConfig invariants.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in (0, 65535], got %d", c.Port)
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("qdrant.collection cannot be empty")
	}
	if c.Embedder.BaseURL == "" {
		return fmt.Errorf("embedder.base_url cannot be empty")
	}
	if c.MinMatches <= 0 {
		return fmt.Errorf("min_matches must be positive, got %d", c.MinMatches)
	}
	return nil
}

// Addr formats the host:port bind address for the RPC server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
