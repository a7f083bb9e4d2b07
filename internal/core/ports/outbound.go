package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// TaskSink accepts intake tasks from producers.
type TaskSink interface {
	Enqueue(ctx context.Context, task domain.IntakeTask) error
}

// TaskQueue carries intake tasks from producers to workers in FIFO order.
type TaskQueue interface {
	TaskSink
	Dequeue(ctx context.Context) (domain.IntakeTask, error)
	Len() int
	Close()
}

// FileStorage reads files and folder hierarchy from the storage provider.
type FileStorage interface {
	GetFile(ctx context.Context, fileID string) (domain.FileDescriptor, error)
	AncestorPath(ctx context.Context, file domain.FileDescriptor) (domain.PathSegments, error)
	OpenContent(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// DurationExtractor measures the playable length of a media stream.
type DurationExtractor interface {
	MeasureDuration(ctx context.Context, fileName string, content io.Reader) (time.Duration, error)
}

// Ledger is the append-only record of processed files.
type Ledger interface {
	ListKnownFileIDs(ctx context.Context) (domain.FileIDSet, error)
	AppendEntry(ctx context.Context, entry domain.LedgerEntry) error
}

// IntakeCatalog serves externally configured lookup data.
type IntakeCatalog interface {
	IgnoredExtensions(ctx context.Context) (domain.IgnoreSet, error)
	KnownClients(ctx context.Context) ([]domain.ClientTemplate, error)
	Invalidate()
}

// OutcomeJournal keeps an audit trail of task outcomes.
type OutcomeJournal interface {
	RecordOutcome(ctx context.Context, outcome domain.Outcome) error
}

// WorkerObserver receives worker lifecycle signals for metrics.
type WorkerObserver interface {
	StartTask()
	FinishTask(outcome domain.Outcome, duration time.Duration)
	ObserveQueueDepth(depth int)
}
