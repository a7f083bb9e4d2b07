package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

func newJournalWithMock(t *testing.T) (*OutcomeJournal, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewOutcomeJournal(db), mock, func() { _ = db.Close() }
}

func TestRecordOutcomeInsertsRow(t *testing.T) {
	journal, mock, done := newJournalWithMock(t)
	defer done()

	finished := time.Date(2024, 3, 5, 18, 30, 0, 0, time.FixedZone("CST", -6*3600))
	mock.ExpectExec("INSERT INTO intake_outcomes").
		WithArgs(sqlmock.AnyArg(), "1234", "a.docx", "rejected", "ignored_file_type", nil, 0, finished.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := journal.RecordOutcome(context.Background(), domain.Outcome{
		FileID:     "1234",
		FileName:   "a.docx",
		Status:     domain.OutcomeRejected,
		Rule:       domain.RuleIgnoredType,
		FinishedAt: finished,
	})
	if err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordOutcomeFailureIsTemporary(t *testing.T) {
	journal, mock, done := newJournalWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO intake_outcomes").WillReturnError(errors.New("connection reset"))

	err := journal.RecordOutcome(context.Background(), domain.Outcome{FileID: "1", Status: domain.OutcomeAbandoned, Error: "boom"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestRecordOutcomeRequiresFileID(t *testing.T) {
	journal, mock, done := newJournalWithMock(t)
	defer done()

	if err := journal.RecordOutcome(context.Background(), domain.Outcome{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListOutcomesScansRows(t *testing.T) {
	journal, mock, done := newJournalWithMock(t)
	defer done()

	finished := time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"file_id", "file_name", "status", "rule", "error_message", "retry_counter", "finished_at"}).
		AddRow("1", "a.wav", "abandoned", nil, "box: 503", 3, finished).
		AddRow("1", nil, "retrying", nil, "box: 503", 2, finished.Add(-time.Minute))
	mock.ExpectQuery("SELECT file_id, file_name, status").
		WithArgs("1", maxListLimit).
		WillReturnRows(rows)

	got, err := journal.ListOutcomes(context.Background(), "1", 10000)
	if err != nil {
		t.Fatalf("ListOutcomes() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(got))
	}
	if got[0].Status != domain.OutcomeAbandoned || got[0].RetryCounter != 3 || got[0].Error != "box: 503" || got[0].FileName != "a.wav" {
		t.Fatalf("unexpected first outcome %+v", got[0])
	}
	if got[1].FileName != "" || got[1].Rule != domain.RuleNone {
		t.Fatalf("unexpected second outcome %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	journal, mock, done := newJournalWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS intake_outcomes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := journal.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNullString(t *testing.T) {
	if got := nullString(""); got.Valid {
		t.Fatalf("expected invalid NullString, got %+v", got)
	}
	if got := nullString("x"); got != (sql.NullString{String: "x", Valid: true}) {
		t.Fatalf("unexpected NullString %+v", got)
	}
}
