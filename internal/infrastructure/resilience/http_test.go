package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

func TestClassifyHTTP(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"canceled", context.Canceled, false, false},
		{"open circuit", gobreaker.ErrOpenState, true, true},
		{"throttled", &StatusError{StatusCode: http.StatusTooManyRequests}, true, true},
		{"server error", fmt.Errorf("wrapped: %w", &StatusError{StatusCode: http.StatusBadGateway}), true, true},
		{"not found", &StatusError{StatusCode: http.StatusNotFound}, false, false},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, true, true},
		{"other", errors.New("decode"), false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyHTTP(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("ClassifyHTTP(%v) = %+v", tc.err, got)
			}
		})
	}
}

func TestToDomainError(t *testing.T) {
	notFound := ToDomainError("get file", &StatusError{StatusCode: http.StatusNotFound, Status: "404 Not Found"})
	if !domain.IsKind(notFound, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", notFound)
	}

	throttled := ToDomainError("get file", &StatusError{StatusCode: http.StatusTooManyRequests})
	if !domain.IsKind(throttled, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", throttled)
	}

	forbidden := &StatusError{StatusCode: http.StatusForbidden}
	if got := ToDomainError("get file", forbidden); got != error(forbidden) {
		t.Fatalf("expected error unchanged, got %v", got)
	}
	if ToDomainError("x", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestNewStatusErrorCapturesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusServiceUnavailable)
	_, _ = rec.WriteString("maintenance")

	err := NewStatusError("box", "get file", rec.Result())
	if err.StatusCode != http.StatusServiceUnavailable || err.Body != "maintenance" {
		t.Fatalf("unexpected status error %+v", err)
	}
	if err.Error() != "box get file status: 503 Service Unavailable: maintenance" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
