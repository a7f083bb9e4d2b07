package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

type storageFake struct {
	mu sync.Mutex

	files   map[string]domain.FileDescriptor
	paths   map[string]domain.PathSegments
	content string

	getErr  error
	pathErr error
	openErr error

	getCalls  int
	pathCalls int
	openCalls int
	closed    int
}

func newStorageFake() *storageFake {
	return &storageFake{
		files:   map[string]domain.FileDescriptor{},
		paths:   map[string]domain.PathSegments{},
		content: "media-bytes",
	}
}

func (f *storageFake) addFile(file domain.FileDescriptor, path ...string) {
	f.files[file.ID] = file
	f.paths[file.ID] = domain.PathSegments(path)
}

func (f *storageFake) GetFile(_ context.Context, fileID string) (domain.FileDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return domain.FileDescriptor{}, f.getErr
	}
	file, ok := f.files[fileID]
	if !ok {
		return domain.FileDescriptor{}, domain.WrapError(domain.ErrFileNotFound, "get file", io.EOF)
	}
	return file, nil
}

func (f *storageFake) AncestorPath(_ context.Context, file domain.FileDescriptor) (domain.PathSegments, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pathCalls++
	if f.pathErr != nil {
		return nil, f.pathErr
	}
	return f.paths[file.ID], nil
}

func (f *storageFake) OpenContent(context.Context, string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &trackedReader{Reader: strings.NewReader(f.content), onClose: func() {
		f.mu.Lock()
		f.closed++
		f.mu.Unlock()
	}}, nil
}

type trackedReader struct {
	io.Reader
	onClose func()
}

func (r *trackedReader) Close() error {
	r.onClose()
	return nil
}

type extractorFake struct {
	mu       sync.Mutex
	duration time.Duration
	delay    time.Duration
	err      error
	calls    int
}

func (f *extractorFake) MeasureDuration(_ context.Context, _ string, content io.Reader) (time.Duration, error) {
	f.mu.Lock()
	f.calls++
	delay, duration, failure := f.delay, f.duration, f.err
	f.mu.Unlock()

	if _, err := io.Copy(io.Discard, content); err != nil {
		return 0, err
	}
	time.Sleep(delay)
	if failure != nil {
		return 0, failure
	}
	return duration, nil
}

func (f *extractorFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type ledgerFake struct {
	mu sync.Mutex

	entries   []domain.LedgerEntry
	listErr   error
	appendErr error

	listCalls int
}

func (f *ledgerFake) ListKnownFileIDs(context.Context) (domain.FileIDSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	set := domain.NewFileIDSet()
	for _, entry := range f.entries {
		set[entry.FileID] = struct{}{}
	}
	return set, nil
}

func (f *ledgerFake) AppendEntry(_ context.Context, entry domain.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	for _, existing := range f.entries {
		if existing.FileID == entry.FileID {
			return domain.WrapError(domain.ErrDuplicateEntry, "append", errors.New(entry.FileID))
		}
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *ledgerFake) appended() []domain.LedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LedgerEntry(nil), f.entries...)
}

type catalogFake struct {
	ignored   []string
	clients   []domain.ClientTemplate
	ignoreErr error
	rosterErr error
}

func (f *catalogFake) IgnoredExtensions(context.Context) (domain.IgnoreSet, error) {
	if f.ignoreErr != nil {
		return domain.IgnoreSet{}, f.ignoreErr
	}
	return domain.NewIgnoreSet(f.ignored), nil
}

func (f *catalogFake) KnownClients(context.Context) ([]domain.ClientTemplate, error) {
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return f.clients, nil
}

func (f *catalogFake) Invalidate() {}

type journalFake struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
}

func (f *journalFake) RecordOutcome(_ context.Context, outcome domain.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func (f *journalFake) recorded() []domain.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Outcome(nil), f.outcomes...)
}
