// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"sync"
	"time"
)

// TraceEntry is one line of the run's conversation log.
type TraceEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
}

// Trace accumulates the conversation log of a run. Research tasks append
// concurrently, so appends are locked.
type Trace struct {
	mu      sync.Mutex
	entries []TraceEntry
}

// NewTrace creates an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Add appends one entry.
func (t *Trace) Add(actor, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, TraceEntry{
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Message:   message,
	})
}

// Entries returns a copy of the log in append order.
func (t *Trace) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
