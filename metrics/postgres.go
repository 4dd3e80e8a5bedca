// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PostgresStore implements Store using PostgreSQL via database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed store. The caller owns the
// database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the agent_metrics table. Applied by migration
// tooling, not by the store itself.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS agent_metrics (
	id                TEXT PRIMARY KEY,
	agent_type        TEXT NOT NULL,
	run_id            TEXT NOT NULL,
	request_id        TEXT,
	execution_time_ms BIGINT NOT NULL,
	prompt_tokens     INT NOT NULL,
	completion_tokens INT NOT NULL,
	confidence        DOUBLE PRECISION NOT NULL,
	success           BOOLEAN NOT NULL,
	fallback          BOOLEAN NOT NULL,
	model             TEXT,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_metrics_type_time ON agent_metrics (agent_type, created_at);
`
}

const insertQuery = `
	INSERT INTO agent_metrics (
		id, agent_type, run_id, request_id, execution_time_ms,
		prompt_tokens, completion_tokens, confidence, success, fallback,
		model, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

func (s *PostgresStore) Store(ctx context.Context, record AgentPerformanceMetrics) error {
	_, err := s.db.ExecContext(ctx, insertQuery,
		record.ID, record.AgentType, record.RunID, nullString(record.RequestID),
		record.ExecutionTime.Milliseconds(), record.PromptTokens, record.CompletionTokens,
		record.Confidence, record.Success, record.Fallback,
		nullString(record.Model), record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store metric: %w", err)
	}
	return nil
}

// StoreBatch writes all records inside one transaction so a partial batch
// never lands.
func (s *PostgresStore) StoreBatch(ctx context.Context, records []AgentPerformanceMetrics) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, record := range records {
		_, err := stmt.ExecContext(ctx,
			record.ID, record.AgentType, record.RunID, nullString(record.RequestID),
			record.ExecutionTime.Milliseconds(), record.PromptTokens, record.CompletionTokens,
			record.Confidence, record.Success, record.Fallback,
			nullString(record.Model), record.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to store metric %s: %w", record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, agentType string, start, end time.Time) ([]AgentPerformanceMetrics, error) {
	query := `
		SELECT id, agent_type, run_id, request_id, execution_time_ms,
			   prompt_tokens, completion_tokens, confidence, success, fallback,
			   model, created_at
		FROM agent_metrics
		WHERE created_at >= $1 AND created_at < $2
	`
	args := []interface{}{start, end}
	if agentType != "" {
		query += " AND agent_type = $3"
		args = append(args, agentType)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []AgentPerformanceMetrics
	for rows.Next() {
		var r AgentPerformanceMetrics
		var requestID, model sql.NullString
		var execMs int64
		if err := rows.Scan(
			&r.ID, &r.AgentType, &r.RunID, &requestID, &execMs,
			&r.PromptTokens, &r.CompletionTokens, &r.Confidence, &r.Success, &r.Fallback,
			&model, &r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		r.RequestID = requestID.String
		r.Model = model.String
		r.ExecutionTime = time.Duration(execMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM agent_metrics WHERE created_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup metrics: %w", err)
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}
