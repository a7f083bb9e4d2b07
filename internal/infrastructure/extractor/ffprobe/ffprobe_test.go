package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
	"github.com/kirillkom/file-intake/internal/infrastructure/storage/localfs"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a unix shell")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func newSpool(t *testing.T) *localfs.Spool {
	t.Helper()
	spool, err := localfs.New(filepath.Join(t.TempDir(), "spool"))
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	return spool
}

func TestResultDuration(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   time.Duration
	}{
		{"format", Result{Format: Format{Duration: "123.5"}}, 123500 * time.Millisecond},
		{"stream fallback", Result{Format: Format{Duration: "N/A"}, Streams: []Stream{{Duration: "10"}, {Duration: "12.5"}}}, 12500 * time.Millisecond},
		{"missing", Result{}, 0},
		{"garbage", Result{Format: Format{Duration: "bad"}}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.result.Duration(); got != tc.want {
				t.Fatalf("Duration() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMeasureDurationRunsProbeAndCleansSpool(t *testing.T) {
	script := writeScript(t, `for last; do :; done
if [ ! -s "$last" ]; then echo "missing input" >&2; exit 1; fi
echo '{"format":{"format_name":"mp3","duration":"90.000000"},"streams":[{"index":0,"codec_type":"audio","duration":"90.0"}]}'
`)
	spool := newSpool(t)
	extractor := New(script, spool, time.Minute)

	got, err := extractor.MeasureDuration(context.Background(), "call.mp3", strings.NewReader("ID3 audio bytes"))
	if err != nil {
		t.Fatalf("MeasureDuration() error = %v", err)
	}
	if got != 90*time.Second {
		t.Fatalf("MeasureDuration() = %v, want 90s", got)
	}

	entries, err := os.ReadDir(spool.Dir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected spool to be empty, found %d files", len(entries))
	}
}

func TestMeasureDurationProbeFailureIsRetryable(t *testing.T) {
	script := writeScript(t, `echo "moov atom not found" >&2
exit 1
`)
	spool := newSpool(t)
	extractor := New(script, spool, time.Minute)

	_, err := extractor.MeasureDuration(context.Background(), "partial.mp4", strings.NewReader("truncated"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsRetryable(err) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected retryable temporary error, got %v", err)
	}
	if !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	entries, _ := os.ReadDir(spool.Dir())
	if len(entries) != 0 {
		t.Fatalf("spool must be cleaned on failure, found %d files", len(entries))
	}
}

func TestMeasureDurationMissingBinaryIsRetryable(t *testing.T) {
	extractor := New(filepath.Join(t.TempDir(), "no-such-ffprobe"), newSpool(t), time.Minute)

	_, err := extractor.MeasureDuration(context.Background(), "a.wav", strings.NewReader("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsRetryable(err) {
		t.Fatalf("missing binary should be retryable, got %v", err)
	}
}
