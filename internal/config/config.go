package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Models  ModelsConfig  `json:"models"`
	Cache   CacheConfig   `json:"cache"`
	Service ServiceConfig `json:"service"`
	Advisor AdvisorConfig `json:"advisor"`
}

// ModelsConfig locates the two model artifacts
type ModelsConfig struct {
	ClassifierPath   string `json:"classifier_path"`
	SegmentationPath string `json:"segmentation_path"`
}

// CacheConfig holds configuration for the result cache
type CacheConfig struct {
	Capacity int `json:"capacity"` // 0 = unbounded
}

// ServiceConfig holds configuration for the inference service
type ServiceConfig struct {
	// ContinueOnLoadFailure selects the deterministic fallback predictor
	// when model loading fails, instead of surfacing the load error.
	ContinueOnLoadFailure bool `json:"continue_on_load_failure"`
	// DebugPredictor replaces both real strategies with the label-cycling
	// debug predictor.
	DebugPredictor bool `json:"debug_predictor"`
}

// AdvisorConfig holds configuration for the optional care advisor
type AdvisorConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Model   string `json:"model"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			ClassifierPath:   "models/plant_disease_classifier.onnx",
			SegmentationPath: "models/plant_disease_segmentation.onnx",
		},
		Cache: CacheConfig{
			Capacity: 0,
		},
		Service: ServiceConfig{
			ContinueOnLoadFailure: true,
			DebugPredictor:        false,
		},
		Advisor: AdvisorConfig{
			Enabled: false,
			URL:     "http://localhost:11434",
			Model:   "llava",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// FromEnv builds a configuration from environment variables, loading a .env
// file first when one is present.
func FromEnv() *Config {
	_ = godotenv.Load()

	cfg := Default()
	if v := os.Getenv("LEAF_CLASSIFIER_PATH"); v != "" {
		cfg.Models.ClassifierPath = v
	}
	if v := os.Getenv("LEAF_SEGMENTATION_PATH"); v != "" {
		cfg.Models.SegmentationPath = v
	}
	if v := os.Getenv("LEAF_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Capacity = n
		}
	}
	if v := os.Getenv("LEAF_CONTINUE_ON_LOAD_FAILURE"); v != "" {
		cfg.Service.ContinueOnLoadFailure = v == "1" || v == "true"
	}
	if v := os.Getenv("LEAF_DEBUG_PREDICTOR"); v != "" {
		cfg.Service.DebugPredictor = v == "1" || v == "true"
	}
	if v := os.Getenv("LEAF_ADVISOR_URL"); v != "" {
		cfg.Advisor.Enabled = true
		cfg.Advisor.URL = v
	}
	if v := os.Getenv("LEAF_ADVISOR_MODEL"); v != "" {
		cfg.Advisor.Model = v
	}
	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Models.ClassifierPath == "" {
		return fmt.Errorf("models.classifier_path cannot be empty")
	}
	if c.Models.SegmentationPath == "" {
		return fmt.Errorf("models.segmentation_path cannot be empty")
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity cannot be negative")
	}
	if c.Advisor.Enabled && c.Advisor.URL == "" {
		return fmt.Errorf("advisor.url cannot be empty when the advisor is enabled")
	}
	return nil
}
