// Package config provides unified configuration loading for the inquiry analyzer.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/BOSEON-SEO/CSAI/internal/analysis"
	"github.com/BOSEON-SEO/CSAI/internal/confidence"
	"github.com/BOSEON-SEO/CSAI/internal/embedding"
	"github.com/BOSEON-SEO/CSAI/internal/features"
	"github.com/BOSEON-SEO/CSAI/internal/retrieval"
)

// Config holds all configuration for the inquiry analyzer.
type Config struct {
	Observability ObservabilityConfig       `yaml:"observability"`
	Tagger        TaggerConfig              `yaml:"tagger"`
	Embedding     EmbeddingConfig           `yaml:"embedding"`
	Cache         CacheConfig               `yaml:"cache"`
	Corpus        CorpusConfig              `yaml:"corpus"`
	Features      features.ComplexityConfig `yaml:"features"`
	Confidence    confidence.Thresholds     `yaml:"confidence"`
	Analysis      analysis.Config           `yaml:"analysis"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json or console
	ServiceName string `yaml:"service_name"`
	MetricsAddr string `yaml:"metrics_addr"` // empty disables the /metrics listener
}

// TaggerConfig holds part-of-speech tagger settings.
type TaggerConfig struct {
	Driver  string        `yaml:"driver"` // rule or http
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Driver    string        `yaml:"driver"` // http or hash
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
	TLS      bool   `yaml:"tls"`
}

// CorpusConfig holds corpus backend settings.
type CorpusConfig struct {
	Adapter      string                 `yaml:"adapter"`       // memory or pgvector
	SnapshotPath string                 `yaml:"snapshot_path"` // SQLite snapshot loaded by the memory adapter
	Postgres     PostgresConfig         `yaml:"postgres"`
	Search       retrieval.SearchConfig `yaml:"search"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN          string        `yaml:"dsn"`
	Table        string        `yaml:"table"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// Load reads .env files, then the YAML file, then applies environment overrides.
func Load(path string, dotenvFiles ...string) (*Config, error) {
	if err := loadDotEnv(dotenvFiles...); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Corpus.SnapshotPath != "" {
			cfg.Corpus.SnapshotPath = ResolveRelativePath(path, cfg.Corpus.SnapshotPath)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads the given .env files; missing files are skipped. Variables
// already set in the environment win.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "inquiry-analyzer",
		},
		Tagger: TaggerConfig{
			Driver:  "rule",
			Model:   "ko_core_news_sm",
			Timeout: 5 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Driver:    "http",
			BaseURL:   "http://localhost:8080/v1",
			Model:     embedding.DefaultModel,
			Dimension: embedding.DefaultDimension,
			Timeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        24 * time.Hour,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "csai:",
			},
		},
		Corpus: CorpusConfig{
			Adapter: "memory",
			Postgres: PostgresConfig{
				Table:        "corpus_entries",
				QueryTimeout: 5 * time.Second,
			},
			Search: retrieval.DefaultSearchConfig(),
		},
		Features:   features.DefaultComplexityConfig(),
		Confidence: confidence.DefaultThresholds(),
		Analysis:   analysis.DefaultConfig(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := oneOf("tagger driver", c.Tagger.Driver, "rule", "http"); err != nil {
		return err
	}
	if c.Tagger.Driver == "http" && c.Tagger.BaseURL == "" {
		return fmt.Errorf("tagger base_url is required for the http driver")
	}

	if err := oneOf("embedding driver", c.Embedding.Driver, "http", "hash"); err != nil {
		return err
	}
	if c.Embedding.Driver == "http" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding base_url is required for the http driver")
	}
	if c.Embedding.Dimension < 1 {
		return fmt.Errorf("invalid embedding dimension: %d", c.Embedding.Dimension)
	}

	if err := oneOf("cache driver", c.Cache.Driver, "none", "memory", "redis"); err != nil {
		return err
	}

	if err := oneOf("corpus adapter", c.Corpus.Adapter, "memory", "pgvector"); err != nil {
		return err
	}
	if c.Corpus.Adapter == "pgvector" && c.Corpus.Postgres.DSN == "" {
		return fmt.Errorf("corpus postgres dsn is required for the pgvector adapter")
	}

	for name, v := range map[string]float64{
		"corpus.search.min_hybrid_score":   c.Corpus.Search.MinHybridScore,
		"corpus.search.min_dense_score":    c.Corpus.Search.MinDenseScore,
		"analysis.alpha":                   c.Analysis.Alpha,
		"confidence.complexity_penalty":    c.Confidence.ComplexityPenalty,
		"confidence.specialist_complexity": c.Confidence.SpecialistComplexity,
		"confidence.min_average_score":     c.Confidence.MinAverageScore,
		"confidence.min_confidence":        c.Confidence.MinConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}

	if c.Analysis.MatchLimit < 1 || c.Analysis.MatchLimit > 50 {
		return fmt.Errorf("analysis match_limit must be between 1 and 50")
	}
	if c.Analysis.BatchWorkers < 1 {
		return fmt.Errorf("analysis batch_workers must be positive")
	}

	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (want one of %s)", name, value, strings.Join(allowed, ", "))
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Observability.MetricsAddr = v
	}

	if v := os.Getenv("TAGGER_URL"); v != "" {
		cfg.Tagger.Driver = "http"
		cfg.Tagger.BaseURL = v
	}

	if v := os.Getenv("EMBEDDING_URL"); v != "" {
		cfg.Embedding.Driver = "http"
		cfg.Embedding.BaseURL = v
	}

	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		opts, err := redis.ParseURL(v)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = opts.Addr
		cfg.Cache.Redis.Username = opts.Username
		cfg.Cache.Redis.Password = opts.Password
		cfg.Cache.Redis.DB = opts.DB
		cfg.Cache.Redis.TLS = opts.TLSConfig != nil
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "postgres") {
			cfg.Corpus.Adapter = "pgvector"
			cfg.Corpus.Postgres.DSN = v
		} else if strings.HasPrefix(v, "sqlite:") {
			cfg.Corpus.Adapter = "memory"
			cfg.Corpus.SnapshotPath = strings.TrimPrefix(v, "sqlite:")
		}
	}

	if v := os.Getenv("BATCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BATCH_WORKERS: %w", err)
		}
		cfg.Analysis.BatchWorkers = n
	}

	return nil
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
