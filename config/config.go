// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package config reads all runtime configuration from the environment.
// Components never read env vars themselves; everything funnels through
// Load so a deployment is described in one place.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tripweaver/concierge/agents"
	"tripweaver/concierge/llm"
	"tripweaver/concierge/metrics"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Port string

	// Provider credentials. An empty key disables that provider.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	BedrockRegion   string
	BedrockModel    string

	LLMRetryBudget     int
	LLMFallbackEnabled bool

	// Per-agent model overrides keyed by agent type.
	AgentConfigs map[agents.AgentType]agents.Config

	MetricsSampleRate    float64
	MetricsBatchSize     int
	MetricsFlushInterval time.Duration
	AlertThresholdsFile  string

	DatabaseURL string
	RedisURL    string
}

// Load reads the environment into a Config. Invalid values are logged and
// fall back to defaults; Load never fails.
func Load() *Config {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		BedrockRegion:        os.Getenv("BEDROCK_REGION"),
		BedrockModel:         os.Getenv("BEDROCK_MODEL"),
		LLMRetryBudget:       getInt("LLM_RETRY_BUDGET", 2),
		LLMFallbackEnabled:   getBool("LLM_FALLBACK_ENABLED", true),
		MetricsSampleRate:    getFloat("METRICS_SAMPLE_RATE", metrics.DefaultSampleRate),
		MetricsBatchSize:     getInt("METRICS_BATCH_SIZE", metrics.DefaultBatchSize),
		MetricsFlushInterval: getDuration("METRICS_FLUSH_INTERVAL", metrics.DefaultFlushInterval),
		AlertThresholdsFile:  os.Getenv("ALERT_THRESHOLDS_FILE"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_ADDR"),
		AgentConfigs:         make(map[agents.AgentType]agents.Config),
	}

	for _, agentType := range []agents.AgentType{
		agents.AgentTypeLodging, agents.AgentTypeDining, agents.AgentTypeActivities,
		agents.AgentTypeValidator, agents.AgentTypeConcierge,
	} {
		cfg.AgentConfigs[agentType] = loadAgentConfig(agentType)
	}

	return cfg
}

// loadAgentConfig reads CONCIERGE_<AGENT>_MODEL/_TEMPERATURE/_TIMEOUT on
// top of the agent defaults.
func loadAgentConfig(agentType agents.AgentType) agents.Config {
	prefix := "CONCIERGE_" + strings.ToUpper(string(agentType)) + "_"

	c := agents.DefaultConfig()
	if model := os.Getenv(prefix + "MODEL"); model != "" {
		c.Model = model
	}
	c.Temperature = getFloat(prefix+"TEMPERATURE", c.Temperature)
	c.Timeout = getDuration(prefix+"TIMEOUT", c.Timeout)
	return c
}

// ManagerConfig maps the env settings onto the LLM manager.
func (c *Config) ManagerConfig() llm.ManagerConfig {
	mc := llm.DefaultManagerConfig()
	mc.RetryBudget = c.LLMRetryBudget
	return mc
}

// CollectorConfig assembles the metrics collector configuration,
// including the optional YAML alert-threshold override file.
func (c *Config) CollectorConfig() metrics.CollectorConfig {
	mc := metrics.DefaultCollectorConfig()
	mc.SampleRate = c.MetricsSampleRate
	mc.BatchSize = c.MetricsBatchSize
	mc.FlushInterval = c.MetricsFlushInterval

	if c.AlertThresholdsFile != "" {
		defaults, perAgent, err := LoadThresholds(c.AlertThresholdsFile)
		if err != nil {
			log.Printf("[Config] Failed to load alert thresholds from %s: %v", c.AlertThresholdsFile, err)
		} else {
			if defaults != nil {
				mc.Defaults = *defaults
			}
			mc.AgentThresholds = perAgent
		}
	}
	return mc
}

// thresholdsFile is the YAML shape of the override file:
//
//	defaults:
//	  max_execution_time: 30s
//	  min_confidence: 0.4
//	  max_tokens: 8000
//	agents:
//	  validator:
//	    min_confidence: 0.6
type thresholdsFile struct {
	Defaults *yamlThresholds           `yaml:"defaults"`
	Agents   map[string]yamlThresholds `yaml:"agents"`
}

// yamlThresholds mirrors metrics.Thresholds with a string duration so the
// file can say "30s" instead of nanoseconds.
type yamlThresholds struct {
	MaxExecutionTime string  `yaml:"max_execution_time"`
	MinConfidence    float64 `yaml:"min_confidence"`
	MaxTokens        int     `yaml:"max_tokens"`
}

func (y yamlThresholds) toThresholds() (metrics.Thresholds, error) {
	t := metrics.DefaultThresholds()
	if y.MaxExecutionTime != "" {
		d, err := time.ParseDuration(y.MaxExecutionTime)
		if err != nil {
			return t, fmt.Errorf("invalid max_execution_time %q: %w", y.MaxExecutionTime, err)
		}
		t.MaxExecutionTime = d
	}
	if y.MinConfidence > 0 {
		t.MinConfidence = y.MinConfidence
	}
	if y.MaxTokens > 0 {
		t.MaxTokens = y.MaxTokens
	}
	return t, nil
}

// LoadThresholds parses a YAML threshold override file.
func LoadThresholds(path string) (*metrics.Thresholds, map[string]metrics.Thresholds, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var file thresholdsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse thresholds file: %w", err)
	}

	var defaults *metrics.Thresholds
	if file.Defaults != nil {
		t, err := file.Defaults.toThresholds()
		if err != nil {
			return nil, nil, err
		}
		defaults = &t
	}

	var perAgent map[string]metrics.Thresholds
	if len(file.Agents) > 0 {
		perAgent = make(map[string]metrics.Thresholds, len(file.Agents))
		for agent, y := range file.Agents {
			t, err := y.toThresholds()
			if err != nil {
				return nil, nil, err
			}
			perAgent[agent] = t
		}
	}
	return defaults, perAgent, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using default %g", key, v, fallback)
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return d
}
