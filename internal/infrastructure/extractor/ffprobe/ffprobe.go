// Package ffprobe measures media duration by running ffprobe against a
// spooled copy of the content.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
	"github.com/kirillkom/file-intake/internal/infrastructure/storage/localfs"
)

const DefaultTimeout = 2 * time.Minute

// Result is the subset of ffprobe JSON output the extractor reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

type Format struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// Duration prefers the container duration and falls back to the longest
// stream. Zero means ffprobe reported none.
func (r Result) Duration() time.Duration {
	seconds := parseSeconds(r.Format.Duration)
	if seconds <= 0 {
		for _, stream := range r.Streams {
			if s := parseSeconds(stream.Duration); s > seconds {
				seconds = s
			}
		}
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

type Extractor struct {
	binary  string
	spool   *localfs.Spool
	timeout time.Duration
}

func New(binary string, spool *localfs.Spool, timeout time.Duration) *Extractor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{binary: binary, spool: spool, timeout: timeout}
}

// MeasureDuration spools content to disk, probes it and removes the spool
// file before returning.
func (e *Extractor) MeasureDuration(ctx context.Context, fileName string, content io.Reader) (time.Duration, error) {
	path, release, err := e.spool.Write(ctx, fileName, content)
	if err != nil {
		return 0, fmt.Errorf("spool content: %w", err)
	}
	defer release()

	probeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := Inspect(probeCtx, e.binary, path)
	if err != nil {
		return 0, err
	}
	return result.Duration(), nil
}

// Inspect runs ffprobe on path. A non-zero exit is a temporary failure;
// partially synced uploads fail to probe until the upload completes.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("ffprobe inspect: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail := strings.TrimSpace(string(exitErr.Stderr))
			return Result{}, domain.WrapError(domain.ErrTemporary, "ffprobe inspect", fmt.Errorf("%w: %s", err, detail))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

func parseSeconds(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}
