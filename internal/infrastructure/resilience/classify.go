package resilience

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// ErrorClassification tells the executor whether to try again and whether
// the failure counts against the breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

var (
	notFailed = ErrorClassification{}
	transient = ErrorClassification{Retryable: true, RecordFailure: true}
	permanent = ErrorClassification{Retryable: false, RecordFailure: true}
)

// Classify covers what every remote dependency shares: a cancelled caller
// is neither retried nor blamed on the dependency, and an open breaker is
// always worth another attempt later. isTransient decides the rest.
func Classify(err error, isTransient func(error) bool) ErrorClassification {
	switch {
	case err == nil:
		return notFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return notFailed
	case IsCircuitOpen(err):
		return transient
	case isTransient != nil && isTransient(err):
		return transient
	default:
		return permanent
	}
}

// WrapTemporary tags err with domain.ErrTemporary when classify would retry
// it, so the worker requeues the task instead of abandoning it.
func WrapTemporary(operation string, err error, classify ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify == nil {
		classify = defaultClassifier
	}
	if IsCircuitOpen(err) || classify(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(err error) ErrorClassification {
	return Classify(err, nil)
}
