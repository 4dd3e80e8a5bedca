// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tripweaver/concierge/agents"
	"tripweaver/concierge/metrics"
	"tripweaver/concierge/orchestrator"
	"tripweaver/concierge/shared/apperrors"
	"tripweaver/concierge/shared/logger"
)

// Server wires the orchestrator and monitoring surfaces into HTTP handlers.
type Server struct {
	orch      *orchestrator.Orchestrator
	collector *metrics.Collector
	store     orchestrator.ItineraryStore
	log       *logger.Logger
}

// NewServer creates the API server. The collector may be nil; benchmark and
// alert endpoints then answer with empty lists.
func NewServer(orch *orchestrator.Orchestrator, collector *metrics.Collector, store orchestrator.ItineraryStore) *Server {
	return &Server{
		orch:      orch,
		collector: collector,
		store:     store,
		log:       logger.New("api"),
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/v1/itineraries", s.handleCreateItinerary).Methods("POST")
	r.HandleFunc("/api/v1/itineraries/{id}", s.handleGetItinerary).Methods("GET")
	r.HandleFunc("/api/v1/agents/benchmarks", s.handleBenchmarks).Methods("GET")
	r.HandleFunc("/api/v1/agents/alerts", s.handleAlerts).Methods("GET")

	return r
}

// recoverMiddleware converts a handler panic into a well-formed
// success:false body instead of a bare 500.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panicked", map[string]interface{}{
					"path":  r.URL.Path,
					"panic": fmt.Sprint(rec),
				})
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleCreateItinerary runs a full plan. A failed run is still a 200 with
// success:false; only a malformed request body is a client error.
func (s *Server) handleCreateItinerary(w http.ResponseWriter, r *http.Request) {
	var req agents.TravelRequirements
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result := s.orch.Run(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetItinerary(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "itinerary storage is not configured")
		return
	}

	id := mux.Vars(r)["id"]
	itinerary, err := s.store.Get(r.Context(), id)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			writeError(w, http.StatusNotFound, "itinerary not found")
			return
		}
		s.log.ErrorWithCause("failed to load itinerary", err, map[string]interface{}{"id": id})
		writeError(w, http.StatusServiceUnavailable, "itinerary storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"itinerary": itinerary,
	})
}

func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	var benchmarks []metrics.AgentBenchmark
	if s.collector != nil {
		if agentType := r.URL.Query().Get("agent_type"); agentType != "" {
			if b, ok := s.collector.GetBenchmark(agentType, r.URL.Query().Get("period")); ok {
				benchmarks = append(benchmarks, b)
			}
		} else {
			benchmarks = s.collector.GetBenchmarks()
		}
	}
	if benchmarks == nil {
		benchmarks = []metrics.AgentBenchmark{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"benchmarks": benchmarks,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var alerts []metrics.PerformanceAlert
	if s.collector != nil {
		alerts = s.collector.GetAlerts(
			r.URL.Query().Get("agent_type"),
			metrics.AlertSeverity(r.URL.Query().Get("severity")),
		)
	}
	if alerts == nil {
		alerts = []metrics.PerformanceAlert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"alerts":  alerts,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are gone at this point; nothing to do but log.
		logger.New("api").ErrorWithCause("failed to encode response", err, nil)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
