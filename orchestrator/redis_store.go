// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"tripweaver/concierge/agents"
	"tripweaver/concierge/shared/apperrors"
)

const itineraryKeyPrefix = "itinerary:"

// DefaultItineraryTTL bounds how long stored itineraries live in Redis.
const DefaultItineraryTTL = 7 * 24 * time.Hour

// RedisItineraryStore persists itineraries as JSON values with a TTL.
type RedisItineraryStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisItineraryStore connects to Redis at the given URL
// (redis://host:port or redis://host:port/db) and verifies the connection.
func NewRedisItineraryStore(url string, ttl time.Duration) (*RedisItineraryStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisItineraryStoreWithClient(client, ttl), nil
}

// NewRedisItineraryStoreWithClient wraps an existing client; used by tests.
func NewRedisItineraryStoreWithClient(client *redis.Client, ttl time.Duration) *RedisItineraryStore {
	if ttl <= 0 {
		ttl = DefaultItineraryTTL
	}
	return &RedisItineraryStore{client: client, ttl: ttl}
}

// Save marshals and stores the itinerary under its id.
func (s *RedisItineraryStore) Save(ctx context.Context, itinerary *agents.Itinerary) (string, error) {
	if itinerary.ID == "" {
		itinerary.ID = uuid.New().String()
	}

	payload, err := json.Marshal(itinerary)
	if err != nil {
		return "", fmt.Errorf("failed to marshal itinerary: %w", err)
	}
	if err := s.client.Set(ctx, itineraryKeyPrefix+itinerary.ID, payload, s.ttl).Err(); err != nil {
		return "", apperrors.Database("itinerary-store", "failed to store itinerary", err)
	}
	return itinerary.ID, nil
}

// Get fetches and unmarshals the itinerary by id.
func (s *RedisItineraryStore) Get(ctx context.Context, id string) (*agents.Itinerary, error) {
	payload, err := s.client.Get(ctx, itineraryKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("itinerary-store", "itinerary "+id+" not found")
	}
	if err != nil {
		return nil, apperrors.Database("itinerary-store", "failed to load itinerary", err)
	}

	var itinerary agents.Itinerary
	if err := json.Unmarshal(payload, &itinerary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal itinerary %s: %w", id, err)
	}
	return &itinerary, nil
}

// Close releases the underlying connection pool.
func (s *RedisItineraryStore) Close() error {
	return s.client.Close()
}
