package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/file-intake/internal/core/domain"
	"github.com/kirillkom/file-intake/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

func TestTaskCodecRoundTrip(t *testing.T) {
	payload, err := encodeTask(domain.IntakeTask{FileID: "1234", RetryCounter: 2})
	if err != nil {
		t.Fatalf("encodeTask() error = %v", err)
	}
	if string(payload) != `{"file_id":"1234","retry_counter":2}` {
		t.Fatalf("unexpected payload %s", payload)
	}
	task, err := decodeTask(payload)
	if err != nil {
		t.Fatalf("decodeTask() error = %v", err)
	}
	if task.FileID != "1234" || task.RetryCounter != 2 {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestDecodeTaskAcceptsBareID(t *testing.T) {
	task, err := decodeTask([]byte(" 98765\n"))
	if err != nil {
		t.Fatalf("decodeTask() error = %v", err)
	}
	if task.FileID != "98765" || task.RetryCounter != 0 {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestDecodeTaskRejectsBadPayloads(t *testing.T) {
	for _, payload := range []string{"", "   ", "{", `{"file_id":" "}`} {
		if _, err := decodeTask([]byte(payload)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("decodeTask(%q) expected ErrInvalidInput, got %v", payload, err)
		}
	}
	task, err := decodeTask([]byte(`{"file_id":"1","retry_counter":-4}`))
	if err != nil || task.RetryCounter != 0 {
		t.Fatalf("expected negative counter clamped, got %+v, %v", task, err)
	}
}

func TestEncodeTaskRequiresID(t *testing.T) {
	if _, err := encodeTask(domain.IntakeTask{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"nil", nil, false, false},
		{"canceled", context.Canceled, false, false},
		{"timeout", fmt.Errorf("nats publish: %w", nats.ErrTimeout), true, true},
		{"no servers", nats.ErrNoServers, true, true},
		{"other", errors.New("bad subject"), false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyNATSError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("classifyNATSError() = %+v", got)
			}
		})
	}
}

func TestPublishErrorsBecomeTemporary(t *testing.T) {
	err := resilience.WrapTemporary("nats publish", nats.ErrDisconnected, classifyNATSError)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	plain := errors.New("bad subject")
	if err := resilience.WrapTemporary("nats publish", plain, classifyNATSError); err != plain {
		t.Fatalf("expected error unchanged, got %v", err)
	}
}
