// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package logger provides structured JSON logging for the concierge pipeline.
// Every entry carries the emitting component, the orchestration run id, and
// an optional per-call request id so a single run's trace can be reassembled
// from interleaved output.
package logger
