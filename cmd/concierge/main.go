// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// The concierge service plans travel itineraries with a pool of research
// agents behind an HTTP API.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/cors"

	"tripweaver/concierge/config"
	"tripweaver/concierge/cost"
	"tripweaver/concierge/llm"
	"tripweaver/concierge/llm/anthropic"
	"tripweaver/concierge/llm/bedrock"
	"tripweaver/concierge/llm/openai"
	"tripweaver/concierge/metrics"
	"tripweaver/concierge/orchestrator"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		log.Fatalf("provider setup failed: %v", err)
	}

	manager, err := llm.NewManager(cfg.ManagerConfig(), providers...)
	if err != nil {
		log.Fatalf("LLM manager setup failed: %v", err)
	}
	manager.OnAttempt = func(att llm.Attempt) {
		metrics.ObserveProviderAttempt(att.Provider, att.Success, string(att.Class), att.Latency)
	}

	collector := metrics.NewCollector(cfg.CollectorConfig(), buildMetricsStore(cfg))
	defer collector.Close()

	store, err := buildItineraryStore(cfg)
	if err != nil {
		log.Fatalf("itinerary store setup failed: %v", err)
	}

	orchConfig := orchestrator.DefaultOrchestratorConfig()
	orchConfig.AgentConfigs = cfg.AgentConfigs
	orchConfig.Pricing = cost.LoadPricingFromEnv()
	orch, err := orchestrator.New(manager, collector, store, orchConfig)
	if err != nil {
		log.Fatalf("orchestrator setup failed: %v", err)
	}

	server := NewServer(orch, collector, store)
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(server.Router())

	log.Printf("TripWeaver concierge listening on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}

// buildProviders assembles the fallback chain from configured credentials:
// Anthropic primary, then OpenAI, then Bedrock. Fallbacks are skipped when
// disabled.
func buildProviders(ctx context.Context, cfg *config.Config) ([]llm.Provider, error) {
	var providers []llm.Provider

	if cfg.AnthropicAPIKey != "" {
		p, err := anthropic.NewProvider(anthropic.Config{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.LLMFallbackEnabled || len(providers) == 0 {
		if cfg.OpenAIAPIKey != "" {
			p, err := openai.NewProvider(openai.Config{APIKey: cfg.OpenAIAPIKey})
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}
		if cfg.BedrockRegion != "" {
			p, err := bedrock.NewProvider(ctx, bedrock.Config{
				Region: cfg.BedrockRegion,
				Model:  cfg.BedrockModel,
			})
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}
	}
	if cfg.LLMFallbackEnabled && len(providers) > 1 {
		return providers, nil
	}
	if len(providers) > 1 {
		providers = providers[:1]
	}
	return providers, nil
}

// buildMetricsStore prefers PostgreSQL when DATABASE_URL is set.
func buildMetricsStore(cfg *config.Config) metrics.Store {
	if cfg.DatabaseURL == "" {
		return metrics.NewMemoryStore()
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Printf("[Main] Failed to open metrics database, using memory store: %v", err)
		return metrics.NewMemoryStore()
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Printf("[Main] Metrics database unreachable, using memory store: %v", err)
		return metrics.NewMemoryStore()
	}
	return metrics.NewPostgresStore(db)
}

// buildItineraryStore prefers Redis when REDIS_ADDR is set.
func buildItineraryStore(cfg *config.Config) (orchestrator.ItineraryStore, error) {
	if cfg.RedisURL == "" {
		return orchestrator.NewMemoryItineraryStore(), nil
	}
	return orchestrator.NewRedisItineraryStore(cfg.RedisURL, orchestrator.DefaultItineraryTTL)
}
