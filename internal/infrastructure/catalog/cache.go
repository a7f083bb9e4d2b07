package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// Source loads the externally maintained lookup data. Implementations are
// called only on a cache miss.
type Source interface {
	LoadIgnoredExtensions(ctx context.Context) ([]string, error)
	LoadClients(ctx context.Context) ([]domain.ClientTemplate, error)
}

// Cache serves immutable snapshots of the catalog. A refresh builds a new
// snapshot and publishes it with a single pointer swap, so readers see
// either the old or the new value and never a partial one.
type Cache struct {
	source Source
	logger *slog.Logger

	ignored *cell[domain.IgnoreSet]
	clients *cell[[]domain.ClientTemplate]
}

func NewCache(source Source, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{source: source, logger: logger}
	c.ignored = &cell[domain.IgnoreSet]{name: "ignored_types", logger: logger, load: func(ctx context.Context) (domain.IgnoreSet, error) {
		exts, err := source.LoadIgnoredExtensions(ctx)
		if err != nil {
			return domain.IgnoreSet{}, err
		}
		return domain.NewIgnoreSet(exts), nil
	}}
	c.clients = &cell[[]domain.ClientTemplate]{name: "clients", logger: logger, load: func(ctx context.Context) ([]domain.ClientTemplate, error) {
		clients, err := source.LoadClients(ctx)
		if err != nil {
			return nil, err
		}
		return append([]domain.ClientTemplate(nil), clients...), nil
	}}
	return c
}

func (c *Cache) IgnoredExtensions(ctx context.Context) (domain.IgnoreSet, error) {
	set, err := c.ignored.get(ctx)
	if err != nil {
		return domain.IgnoreSet{}, fmt.Errorf("load ignored extensions: %w", err)
	}
	return set, nil
}

// KnownClients returns the roster in sheet order. Callers must not modify
// the returned slice.
func (c *Cache) KnownClients(ctx context.Context) ([]domain.ClientTemplate, error) {
	clients, err := c.clients.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load client roster: %w", err)
	}
	return clients, nil
}

// Invalidate drops both snapshots; the next read rebuilds from the source.
// The age of each dropped snapshot is logged, -1 when none was held.
func (c *Cache) Invalidate() {
	c.logger.Info("catalog_invalidated",
		"ignored_types_age_s", ageSeconds(c.ignored.invalidate()),
		"clients_age_s", ageSeconds(c.clients.invalidate()),
	)
}

func ageSeconds(age time.Duration, held bool) float64 {
	if !held {
		return -1
	}
	return age.Seconds()
}

type snapshot[T any] struct {
	value    T
	loadedAt time.Time
}

// cell holds one lazily built snapshot. Concurrent misses are collapsed
// into a single load.
type cell[T any] struct {
	name   string
	load   func(ctx context.Context) (T, error)
	logger *slog.Logger

	current    atomic.Pointer[snapshot[T]]
	lastLoaded atomic.Pointer[time.Time]
	generation atomic.Uint64
	rebuild    sync.Mutex
}

func (c *cell[T]) get(ctx context.Context) (T, error) {
	if snap := c.current.Load(); snap != nil {
		return snap.value, nil
	}

	c.rebuild.Lock()
	defer c.rebuild.Unlock()

	if snap := c.current.Load(); snap != nil {
		return snap.value, nil
	}

	gen := c.generation.Load()
	var previous time.Time
	if last := c.lastLoaded.Load(); last != nil {
		previous = *last
	}
	started := time.Now()
	value, err := c.load(ctx)
	if err != nil {
		var zero T
		c.logger.Warn("catalog_refresh_failed", "snapshot", c.name, "error", err)
		return zero, err
	}

	// An Invalidate that raced with the load must not be lost.
	loadedAt := time.Now()
	if c.generation.Load() == gen {
		c.current.Store(&snapshot[T]{value: value, loadedAt: loadedAt})
	}
	c.lastLoaded.Store(&loadedAt)
	attrs := []any{"snapshot", c.name, "duration_ms", loadedAt.Sub(started).Milliseconds()}
	if !previous.IsZero() {
		attrs = append(attrs, "since_previous_s", loadedAt.Sub(previous).Seconds())
	}
	c.logger.Info("catalog_refreshed", attrs...)
	return value, nil
}

// invalidate reports how long the dropped snapshot had been served.
func (c *cell[T]) invalidate() (time.Duration, bool) {
	c.generation.Add(1)
	old := c.current.Swap(nil)
	if old == nil {
		return 0, false
	}
	return time.Since(old.loadedAt), true
}
