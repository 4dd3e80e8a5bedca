// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

var levelRank = map[LogLevel]int{
	DEBUG: 0,
	INFO:  1,
	WARN:  2,
	ERROR: 3,
}

// Logger provides structured logging with run correlation. Run and request
// identity is attached with With; clones share the component identity.
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	runID     string
	requestID string
	minLevel  int
}

// LogEntry represents a structured log entry. RunID ties an entry to a single
// orchestration run; RequestID to an individual agent or provider call.
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	RunID      string                 `json:"run_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component
func New(component string) *Logger {
	// Instance ID comes from the environment (set during deployment)
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		minLevel:   minLevelFromEnv(),
	}
}

func minLevelFromEnv() int {
	level := LogLevel(strings.ToUpper(os.Getenv("LOG_LEVEL")))
	if rank, ok := levelRank[level]; ok {
		return rank
	}
	return levelRank[INFO]
}

// With returns a clone carrying run and request identity.
func (l *Logger) With(runID, requestID string) *Logger {
	clone := *l
	clone.runID = runID
	clone.requestID = requestID
	return &clone
}

// Log creates a structured log entry and writes it to stdout
func (l *Logger) Log(level LogLevel, message string, fields map[string]interface{}) {
	if levelRank[level] < l.minLevel {
		return
	}

	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		RunID:      l.runID,
		RequestID:  l.requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	log.Println(string(jsonBytes))
}

// Info logs an informational message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.Log(INFO, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.Log(ERROR, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.Log(WARN, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.Log(DEBUG, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(message, fields)
}

// ErrorWithCause logs an error together with its underlying cause
func (l *Logger) ErrorWithCause(message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(message, fields)
}
