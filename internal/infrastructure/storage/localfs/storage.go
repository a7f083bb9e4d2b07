package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const spoolPattern = "intake-*"

// Spool materializes downloaded content as short-lived local files for
// tools that need a path rather than a stream.
type Spool struct {
	basePath string
}

func New(basePath string) (*Spool, error) {
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), "file-intake")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Spool{basePath: basePath}, nil
}

func (s *Spool) Dir() string {
	return s.basePath
}

// Write copies data into a fresh spool file named after fileName's
// extension. The returned release func removes the file and is safe to
// call more than once.
func (s *Spool) Write(ctx context.Context, fileName string, data io.Reader) (string, func(), error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	f, err := os.CreateTemp(s.basePath, spoolPattern+safeExt(fileName))
	if err != nil {
		return "", nil, fmt.Errorf("create spool file: %w", err)
	}
	path := f.Name()
	release := func() { _ = os.Remove(path) }

	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: data}); err != nil {
		f.Close()
		release()
		return "", nil, fmt.Errorf("write spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("close spool file: %w", err)
	}
	return path, release, nil
}

// Sweep removes spool files older than maxAge, left behind by a crash.
func (s *Spool) Sweep(maxAge time.Duration) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.basePath, spoolPattern))
	if err != nil {
		return 0, fmt.Errorf("list spool files: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

func safeExt(fileName string) string {
	ext := filepath.Ext(filepath.Base(fileName))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return strings.ToLower(ext)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
