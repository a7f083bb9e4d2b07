package ports

import (
	"context"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// IntakeSubmitter is the inbound contract for producers of intake tasks.
type IntakeSubmitter interface {
	Submit(ctx context.Context, fileID string) (domain.IntakeTask, error)
}

// TaskProcessor runs a single attempt of the intake pipeline for one task.
type TaskProcessor interface {
	Process(ctx context.Context, task domain.IntakeTask) (domain.Outcome, error)
}

// CatalogAdmin exposes the configuration cache to operators.
type CatalogAdmin interface {
	IgnoredExtensions(ctx context.Context) (domain.IgnoreSet, error)
	Invalidate()
}

// LedgerReader is the read model over the ledger.
type LedgerReader interface {
	ListKnownFileIDs(ctx context.Context) (domain.FileIDSet, error)
}

// OutcomeReader lists journaled outcomes for one file, newest first.
type OutcomeReader interface {
	ListOutcomes(ctx context.Context, fileID string, limit int) ([]domain.Outcome, error)
}
