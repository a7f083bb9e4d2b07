package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

const (
	schemaLockKey      = int64(2026101801)
	defaultListLimit   = 50
	maxListLimit       = 500
	maxJournalErrorLen = 2000
)

// OutcomeJournal stores one row per task attempt outcome.
type OutcomeJournal struct {
	db  *sql.DB
	now func() time.Time
}

func NewOutcomeJournal(db *sql.DB) *OutcomeJournal {
	return &OutcomeJournal{db: db, now: time.Now}
}

func (j *OutcomeJournal) EnsureSchema(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS intake_outcomes (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	file_name TEXT,
	status TEXT NOT NULL,
	rule TEXT,
	error_message TEXT,
	retry_counter INTEGER NOT NULL DEFAULT 0,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_intake_outcomes_file_id ON intake_outcomes(file_id, finished_at DESC);
CREATE INDEX IF NOT EXISTS idx_intake_outcomes_status ON intake_outcomes(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (j *OutcomeJournal) RecordOutcome(ctx context.Context, outcome domain.Outcome) error {
	if strings.TrimSpace(outcome.FileID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record outcome", errors.New("file id is required"))
	}
	finishedAt := outcome.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = j.now()
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO intake_outcomes (id, file_id, file_name, status, rule, error_message, retry_counter, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, uuid.NewString(), outcome.FileID, nullString(outcome.FileName), string(outcome.Status),
		nullString(string(outcome.Rule)), nullString(truncate(outcome.Error, maxJournalErrorLen)),
		outcome.RetryCounter, finishedAt.UTC())
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "record outcome", err)
	}
	return nil
}

// ListOutcomes returns the newest outcomes for fileID first.
func (j *OutcomeJournal) ListOutcomes(ctx context.Context, fileID string, limit int) ([]domain.Outcome, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT file_id, file_name, status, rule, error_message, retry_counter, finished_at
FROM intake_outcomes
WHERE file_id = $1
ORDER BY finished_at DESC
LIMIT $2
`, fileID, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list outcomes", err)
	}
	defer rows.Close()

	out := make([]domain.Outcome, 0)
	for rows.Next() {
		var (
			outcome  domain.Outcome
			fileName sql.NullString
			status   string
			rule     sql.NullString
			errMsg   sql.NullString
		)
		if err := rows.Scan(&outcome.FileID, &fileName, &status, &rule, &errMsg, &outcome.RetryCounter, &outcome.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcome.FileName = fileName.String
		outcome.Status = domain.OutcomeStatus(status)
		outcome.Rule = domain.Rule(rule.String)
		outcome.Error = errMsg.String
		out = append(out, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func truncate(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[:n]
}
