// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"tripweaver/concierge/agents"
	"tripweaver/concierge/shared/apperrors"
)

func sampleItinerary() *agents.Itinerary {
	return &agents.Itinerary{
		Destination:  "Seville",
		DurationDays: 2,
		Days: []agents.ItineraryDay{
			{Day: 1, Theme: "old town", Activities: []string{"Alcazar"}, Meals: []string{"Tapas Bar"}},
			{Day: 2, Theme: "river", Activities: []string{"Triana Walk"}, Meals: []string{"Mercado"}},
		},
		Lodging: []string{"Hotel Plaza"},
	}
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	store := NewMemoryItineraryStore()

	id, err := store.Save(context.Background(), sampleItinerary())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("expected an assigned id")
	}

	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Destination != "Seville" || len(got.Days) != 2 {
		t.Errorf("unexpected itinerary: %+v", got)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryItineraryStore()

	_, err := store.Get(context.Background(), "nope")
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestMemoryStoreKeepsExplicitID(t *testing.T) {
	store := NewMemoryItineraryStore()

	itinerary := sampleItinerary()
	itinerary.ID = "fixed-id"
	id, err := store.Save(context.Background(), itinerary)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != "fixed-id" {
		t.Errorf("id = %q, want fixed-id", id)
	}
}

func newRedisStore(t *testing.T) (*RedisItineraryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisItineraryStoreWithClient(client, time.Hour), mr
}

func TestRedisStoreSaveAndGet(t *testing.T) {
	store, _ := newRedisStore(t)
	defer store.Close()

	id, err := store.Save(context.Background(), sampleItinerary())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Destination != "Seville" || len(got.Days) != 2 || got.Days[1].Meals[0] != "Mercado" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}

func TestRedisStoreGetMissing(t *testing.T) {
	store, _ := newRedisStore(t)
	defer store.Close()

	_, err := store.Get(context.Background(), "missing")
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	defer store.Close()

	id, err := store.Save(context.Background(), sampleItinerary())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(context.Background(), id); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("expected not_found after TTL expiry, got %v", err)
	}
}

func TestNewRedisItineraryStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisItineraryStore("not-a-url", time.Hour); err == nil {
		t.Fatal("expected URL parse error")
	}
}
