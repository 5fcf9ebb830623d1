// Package config loads SDK configuration from YAML with environment
// overrides. Every section maps onto a package-level Config; zero values
// fall back to that package's defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the full SDK configuration tree.
type Config struct {
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Graph     GraphConfig     `yaml:"graph"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PipelineConfig tunes the event pipeline.
type PipelineConfig struct {
	BatchSize         int           `yaml:"batchSize" validate:"gte=0"`
	BatchInterval     time.Duration `yaml:"batchInterval" validate:"gte=0"`
	MaxRetries        int           `yaml:"maxRetries" validate:"gte=0"`
	CriticalThreshold float64       `yaml:"criticalThreshold" validate:"gte=0,lte=1"`
}

// GraphConfig tunes the knowledge graph store.
type GraphConfig struct {
	ClusterThreshold     float64 `yaml:"clusterThreshold" validate:"gte=0,lte=1"`
	DefaultTopK          int     `yaml:"defaultTopK" validate:"gte=0"`
	DefaultMinSimilarity float64 `yaml:"defaultMinSimilarity" validate:"gte=0,lte=1"`
}

// ExtractorConfig tunes entity extraction.
type ExtractorConfig struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold" validate:"gte=0,lte=1"`
	ExtendsConfidence   float64 `yaml:"extendsConfidence" validate:"gte=0,lte=1"`
}

// EmbedderConfig selects and tunes the embedding backend.
type EmbedderConfig struct {
	// Dimensions of the embedding space. Default: 384.
	Dimensions int `yaml:"dimensions" validate:"gte=0"`

	// CacheEntries bounds the text-to-vector cache. 0 uses the default.
	CacheEntries int `yaml:"cacheEntries" validate:"gte=0"`

	// ModelPath and TokenizerPath select the local ONNX model when the
	// onnx build tag is active. Empty means the deterministic hash
	// embedder.
	ModelPath     string `yaml:"modelPath"`
	TokenizerPath string `yaml:"tokenizerPath"`
}

// LoggingConfig tunes the zap logger built by NewLogger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Development switches to zap's development encoder.
	Development bool `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			BatchSize:         10,
			BatchInterval:     time.Second,
			MaxRetries:        3,
			CriticalThreshold: 0.9,
		},
		Graph: GraphConfig{
			ClusterThreshold:     0.7,
			DefaultTopK:          10,
			DefaultMinSimilarity: 0.5,
		},
		Extractor: ExtractorConfig{
			SimilarityThreshold: 0.8,
			ExtendsConfidence:   0.9,
		},
		Embedder: EmbedderConfig{
			Dimensions: 384,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Load reads YAML from path (skipped when path is empty), applies SYNAPSE_*
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := configValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides maps SYNAPSE_* variables onto the tree. Unparseable
// values are ignored in favor of the file/default value.
func applyEnvOverrides(cfg *Config) {
	overrideInt("SYNAPSE_PIPELINE_BATCH_SIZE", &cfg.Pipeline.BatchSize)
	overrideDuration("SYNAPSE_PIPELINE_BATCH_INTERVAL", &cfg.Pipeline.BatchInterval)
	overrideInt("SYNAPSE_PIPELINE_MAX_RETRIES", &cfg.Pipeline.MaxRetries)
	overrideFloat("SYNAPSE_PIPELINE_CRITICAL_THRESHOLD", &cfg.Pipeline.CriticalThreshold)

	overrideFloat("SYNAPSE_GRAPH_CLUSTER_THRESHOLD", &cfg.Graph.ClusterThreshold)
	overrideInt("SYNAPSE_GRAPH_DEFAULT_TOP_K", &cfg.Graph.DefaultTopK)
	overrideFloat("SYNAPSE_GRAPH_MIN_SIMILARITY", &cfg.Graph.DefaultMinSimilarity)

	overrideFloat("SYNAPSE_EXTRACTOR_SIMILARITY_THRESHOLD", &cfg.Extractor.SimilarityThreshold)
	overrideFloat("SYNAPSE_EXTRACTOR_EXTENDS_CONFIDENCE", &cfg.Extractor.ExtendsConfidence)

	overrideInt("SYNAPSE_EMBEDDER_DIMENSIONS", &cfg.Embedder.Dimensions)
	overrideInt("SYNAPSE_EMBEDDER_CACHE_ENTRIES", &cfg.Embedder.CacheEntries)
	overrideString("SYNAPSE_EMBEDDER_MODEL_PATH", &cfg.Embedder.ModelPath)
	overrideString("SYNAPSE_EMBEDDER_TOKENIZER_PATH", &cfg.Embedder.TokenizerPath)

	overrideString("SYNAPSE_LOG_LEVEL", &cfg.Logging.Level)
	if v := os.Getenv("SYNAPSE_LOG_DEVELOPMENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.Development = b
		}
	}
}

func overrideString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func overrideDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// NewLogger builds a zap logger from the logging section.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
