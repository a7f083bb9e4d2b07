package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/file-intake/internal/core/domain"
	"github.com/kirillkom/file-intake/internal/core/ports"
)

const maxFileIDLength = 128

// IntakeUseCase is the producer-side facade shared by the webhook and the
// reprocess endpoint. Submission never waits on worker progress.
type IntakeUseCase struct {
	queue ports.TaskSink
}

func NewIntakeUseCase(queue ports.TaskSink) *IntakeUseCase {
	return &IntakeUseCase{queue: queue}
}

func (uc *IntakeUseCase) Submit(ctx context.Context, fileID string) (domain.IntakeTask, error) {
	id, err := normalizeFileID(fileID)
	if err != nil {
		return domain.IntakeTask{}, domain.WrapError(domain.ErrInvalidInput, "submit intake task", err)
	}

	task := domain.NewIntakeTask(id)
	if err := uc.queue.Enqueue(ctx, task); err != nil {
		return domain.IntakeTask{}, fmt.Errorf("enqueue intake task: %w", err)
	}
	return task, nil
}

func normalizeFileID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", errors.New("file id is required")
	}
	if len(id) > maxFileIDLength {
		return "", fmt.Errorf("file id longer than %d characters", maxFileIDLength)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' {
			return "", fmt.Errorf("file id contains invalid character %q", r)
		}
	}
	return id, nil
}
