// Package store archives query results in Postgres. The archive is optional:
// the engine runs without it, and the server only wires it up when a database
// URL is configured.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"rlm-engine/engine"
	apperrors "rlm-engine/errors"
)

// Record is one archived query with its result and optional trajectory.
type Record struct {
	ID               uuid.UUID `json:"id"`
	Question         string    `json:"question"`
	Answer           string    `json:"answer"`
	Confidence       string    `json:"confidence"`
	Evidence         *string   `json:"evidence"`
	Verification     *string   `json:"verification"`
	SubCallsUsed     int       `json:"sub_calls_used"`
	RootInputTokens  int       `json:"root_input_tokens"`
	RootOutputTokens int       `json:"root_output_tokens"`
	SubInputTokens   int       `json:"sub_input_tokens"`
	SubOutputTokens  int       `json:"sub_output_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

type ResultStore struct {
	DB     *sql.DB
	logger *zap.Logger
}

func New(connStr string, logger *zap.Logger) (*ResultStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, apperrors.WrapError(err, "open database")
	}
	if err := db.Ping(); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	logger.Info("Connected to result archive database")
	return &ResultStore{DB: db, logger: logger}, nil
}

// EnsureSchema creates the archive tables if they do not already exist.
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS query_results (
            id UUID PRIMARY KEY,
            question TEXT NOT NULL,
            answer TEXT NOT NULL,
            confidence TEXT NOT NULL DEFAULT 'unknown',
            evidence TEXT,
            verification TEXT,
            sub_calls_used INT NOT NULL DEFAULT 0,
            root_input_tokens INT NOT NULL DEFAULT 0,
            root_output_tokens INT NOT NULL DEFAULT 0,
            sub_input_tokens INT NOT NULL DEFAULT 0,
            sub_output_tokens INT NOT NULL DEFAULT 0,
            trajectory JSONB,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_query_results_created_at ON query_results(created_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// SaveResult archives one finished query and returns the record id.
func (s *ResultStore) SaveResult(ctx context.Context, question string, result engine.QueryResult) (uuid.UUID, error) {
	id := uuid.New()

	var trajectory any
	if len(result.Trajectory) > 0 {
		data, err := json.Marshal(result.Trajectory)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to marshal trajectory: %w", err)
		}
		trajectory = data
	}

	query := `
		INSERT INTO query_results
			(id, question, answer, confidence, evidence, verification,
			 sub_calls_used, root_input_tokens, root_output_tokens,
			 sub_input_tokens, sub_output_tokens, trajectory)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.DB.ExecContext(ctx, query,
		id,
		question,
		result.Answer,
		result.Confidence,
		result.Evidence,
		result.Verification,
		result.SubCallsUsed,
		result.RootInputTokens,
		result.RootOutputTokens,
		result.SubInputTokens,
		result.SubOutputTokens,
		trajectory,
	)
	if err != nil {
		return uuid.Nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}

	s.logger.Debug("Archived query result", zap.String("id", id.String()))
	return id, nil
}

// ListRecent returns the newest n archived results without trajectories.
func (s *ResultStore) ListRecent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 20
	}
	query := `
		SELECT id, question, answer, confidence, evidence, verification,
		       sub_calls_used, root_input_tokens, root_output_tokens,
		       sub_input_tokens, sub_output_tokens, created_at
		FROM query_results
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.DB.QueryContext(ctx, query, n)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.Question,
			&rec.Answer,
			&rec.Confidence,
			&rec.Evidence,
			&rec.Verification,
			&rec.SubCallsUsed,
			&rec.RootInputTokens,
			&rec.RootOutputTokens,
			&rec.SubInputTokens,
			&rec.SubOutputTokens,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *ResultStore) Close() error {
	return s.DB.Close()
}
