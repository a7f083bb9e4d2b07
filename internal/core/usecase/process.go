package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
	"github.com/kirillkom/file-intake/internal/core/ports"
)

type ProcessOptions struct {
	ReportingLocation *time.Location
	FileLinkBase      string
	CatalogPolicy     CatalogPolicy
	Logger            *slog.Logger
	Now               func() time.Time
}

// ProcessIntakeUseCase runs one attempt of the intake pipeline:
// resolve, gate, extract, record.
type ProcessIntakeUseCase struct {
	storage    ports.FileStorage
	extractor  ports.DurationExtractor
	ledger     ports.Ledger
	catalog    ports.IntakeCatalog
	gate       *Gate
	classifier *Classifier

	location     *time.Location
	fileLinkBase string
	policy       CatalogPolicy
	logger       *slog.Logger
	now          func() time.Time
}

func NewProcessIntakeUseCase(
	storage ports.FileStorage,
	extractor ports.DurationExtractor,
	ledger ports.Ledger,
	catalog ports.IntakeCatalog,
	gate *Gate,
	classifier *Classifier,
	opts ProcessOptions,
) *ProcessIntakeUseCase {
	loc := opts.ReportingLocation
	if loc == nil {
		loc = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	policy := opts.CatalogPolicy
	if policy == "" {
		policy = CatalogStrict
	}
	return &ProcessIntakeUseCase{
		storage:      storage,
		extractor:    extractor,
		ledger:       ledger,
		catalog:      catalog,
		gate:         gate,
		classifier:   classifier,
		location:     loc,
		fileLinkBase: opts.FileLinkBase,
		policy:       policy,
		logger:       logger,
		now:          now,
	}
}

// Process returns a recorded or rejected outcome on success. Any returned
// error means the attempt failed; the caller decides whether to retry.
func (uc *ProcessIntakeUseCase) Process(ctx context.Context, task domain.IntakeTask) (domain.Outcome, error) {
	outcome := domain.Outcome{
		FileID:       task.FileID,
		RetryCounter: task.RetryCounter,
	}

	file, err := uc.resolveFile(ctx, task.FileID)
	if err != nil {
		return outcome, err
	}
	outcome.FileName = file.Name

	decision, err := uc.gate.Evaluate(ctx, file, func(ctx context.Context) (domain.PathSegments, error) {
		return uc.storage.AncestorPath(ctx, file)
	})
	if err != nil {
		return outcome, fmt.Errorf("gate file: %w", err)
	}
	if !decision.Accepted() {
		uc.logger.Info("file_rejected",
			"file_id", file.ID,
			"file_name", file.Name,
			"rule", string(decision.Rule),
			"reason", decision.Reason,
			"retry_counter", task.RetryCounter,
		)
		outcome.Status = domain.OutcomeRejected
		outcome.Rule = decision.Rule
		outcome.FinishedAt = uc.now()
		return outcome, nil
	}

	// The roster is needed to build the row; load it before paying for
	// the download.
	roster, err := uc.roster(ctx)
	if err != nil {
		return outcome, err
	}

	duration, err := uc.extractDuration(ctx, file)
	if err != nil {
		return outcome, err
	}

	entry := uc.buildEntry(file, decision.Path, roster, duration)
	if err := uc.record(ctx, entry); err != nil {
		if domain.IsKind(err, domain.ErrDuplicateEntry) {
			uc.logger.Info("file_rejected",
				"file_id", file.ID,
				"file_name", file.Name,
				"rule", string(domain.RuleDuplicate),
				"reason", "recorded concurrently",
				"retry_counter", task.RetryCounter,
			)
			outcome.Status = domain.OutcomeRejected
			outcome.Rule = domain.RuleDuplicate
			outcome.FinishedAt = uc.now()
			return outcome, nil
		}
		return outcome, err
	}

	uc.logger.Info("file_recorded",
		"file_id", file.ID,
		"file_name", file.Name,
		"category", string(entry.Category),
		"turnaround", string(entry.Turnaround),
		"client", entry.ClientName,
		"duration_s", entry.Duration.Seconds(),
		"path", decision.Path.String(),
	)
	outcome.Status = domain.OutcomeRecorded
	outcome.FinishedAt = uc.now()
	return outcome, nil
}

func (uc *ProcessIntakeUseCase) resolveFile(ctx context.Context, fileID string) (domain.FileDescriptor, error) {
	if strings.TrimSpace(fileID) == "" {
		return domain.FileDescriptor{}, domain.WrapError(domain.ErrInvalidInput, "resolve file", errors.New("empty file id"))
	}
	file, err := uc.storage.GetFile(ctx, fileID)
	if err != nil {
		return domain.FileDescriptor{}, fmt.Errorf("fetch file descriptor: %w", err)
	}
	if file.ID == "" {
		file.ID = fileID
	}
	return file, nil
}

// extractDuration owns the downloaded stream for the length of the call.
func (uc *ProcessIntakeUseCase) extractDuration(ctx context.Context, file domain.FileDescriptor) (time.Duration, error) {
	content, err := uc.storage.OpenContent(ctx, file.ID)
	if err != nil {
		return 0, fmt.Errorf("open file content: %w", err)
	}
	defer func() {
		if closeErr := content.Close(); closeErr != nil {
			uc.logger.Warn("content_close_failed", "file_id", file.ID, "error", closeErr)
		}
	}()

	duration, err := uc.extractor.MeasureDuration(ctx, file.Name, content)
	if err != nil {
		return 0, fmt.Errorf("measure duration: %w", err)
	}
	return duration, nil
}

func (uc *ProcessIntakeUseCase) buildEntry(
	file domain.FileDescriptor,
	path domain.PathSegments,
	roster []domain.ClientTemplate,
	duration time.Duration,
) domain.LedgerEntry {
	cls := uc.classifier.Classify(path, roster, file.CreatedBy)

	received := file.CreatedAt
	if received.IsZero() {
		received = uc.now()
	}

	notes := strings.TrimSpace(file.Description)
	if cls.ClientSource == domain.ClientSourceUploader {
		notes = strings.TrimSpace(notes + " (client taken from uploader)")
	}

	return domain.LedgerEntry{
		FileID:     file.ID,
		FileName:   file.Name,
		FileLink:   uc.fileLink(file.ID),
		Category:   cls.Category,
		Turnaround: cls.Turnaround,
		ClientName: cls.ClientName,
		Template:   templateFor(roster, cls.ClientName),
		Duration:   duration,
		ReceivedAt: received.In(uc.location),
		Notes:      notes,
	}
}

func (uc *ProcessIntakeUseCase) roster(ctx context.Context) ([]domain.ClientTemplate, error) {
	roster, err := uc.catalog.KnownClients(ctx)
	if err == nil {
		return roster, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if uc.policy == CatalogPermissive {
		uc.logger.Warn("client_roster_unavailable", "policy", string(uc.policy), "error", err)
		return nil, nil
	}
	return nil, domain.WrapError(domain.ErrConfigUnavailable, "load client roster", err)
}

func (uc *ProcessIntakeUseCase) record(ctx context.Context, entry domain.LedgerEntry) error {
	if err := uc.ledger.AppendEntry(ctx, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (uc *ProcessIntakeUseCase) fileLink(fileID string) string {
	if uc.fileLinkBase == "" {
		return ""
	}
	return strings.TrimRight(uc.fileLinkBase, "/") + "/" + fileID
}
