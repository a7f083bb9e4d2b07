package resilience

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// StatusError is a non-2xx answer from a remote HTTP API.
type StatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "http status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// NewStatusError reads at most 2KiB of the response body into the error.
func NewStatusError(service, operation string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Service:    service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ClassifyHTTP retries transport failures and throttling/5xx answers.
// Other statuses are the caller's fault and do not trip the breaker.
func ClassifyHTTP(err error) ErrorClassification {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && !IsRetryableStatus(statusErr.StatusCode) {
		return notFailed
	}
	return Classify(err, isTransientHTTP)
}

func isTransientHTTP(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatus(statusErr.StatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ToDomainError maps a remote failure onto the domain error kinds:
// 404 is not-found; retryable statuses, transport errors and an open
// breaker are temporary. Anything else is returned unchanged.
func ToDomainError(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrFileNotFound) {
		return err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return domain.WrapError(domain.ErrFileNotFound, operation, err)
	}
	return WrapTemporary(operation, err, ClassifyHTTP)
}
