// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"tripweaver/concierge/agents"
	"tripweaver/concierge/shared/apperrors"
)

// ItineraryStore is the persistence boundary for finished itineraries.
type ItineraryStore interface {
	// Save persists the itinerary and returns its id, assigning one when
	// the itinerary has none.
	Save(ctx context.Context, itinerary *agents.Itinerary) (string, error)

	// Get returns the itinerary by id, or a not_found error.
	Get(ctx context.Context, id string) (*agents.Itinerary, error)
}

// MemoryItineraryStore keeps itineraries in process memory.
type MemoryItineraryStore struct {
	mu    sync.RWMutex
	items map[string]agents.Itinerary
}

// NewMemoryItineraryStore creates an empty in-memory store.
func NewMemoryItineraryStore() *MemoryItineraryStore {
	return &MemoryItineraryStore{items: make(map[string]agents.Itinerary)}
}

// Save stores a copy of the itinerary.
func (s *MemoryItineraryStore) Save(ctx context.Context, itinerary *agents.Itinerary) (string, error) {
	if itinerary.ID == "" {
		itinerary.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itinerary.ID] = *itinerary
	return itinerary.ID, nil
}

// Get returns a copy of the stored itinerary.
func (s *MemoryItineraryStore) Get(ctx context.Context, id string) (*agents.Itinerary, error) {
	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("itinerary-store", "itinerary "+id+" not found")
	}
	return &item, nil
}
