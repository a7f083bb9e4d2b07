package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/file-intake/internal/core/domain"
	"github.com/kirillkom/file-intake/internal/core/ports"
)

// CatalogPolicy controls what happens when the ignore list or the client
// roster cannot be loaded.
type CatalogPolicy string

const (
	// CatalogStrict fails the attempt so the task is retried.
	CatalogStrict CatalogPolicy = "strict"
	// CatalogPermissive proceeds with an empty ignore list or roster.
	CatalogPermissive CatalogPolicy = "permissive"
)

func ParseCatalogPolicy(raw string) CatalogPolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(CatalogPermissive)) {
		return CatalogPermissive
	}
	return CatalogStrict
}

// Decision is the gate verdict for one file. A rejection is a normal result.
type Decision struct {
	Rule   domain.Rule
	Path   domain.PathSegments
	Reason string
}

func (d Decision) Accepted() bool {
	return d.Rule == domain.RuleNone
}

// PathResolver resolves the ancestor path on demand so that cheap rules can
// reject a file before the folder walk is paid for.
type PathResolver func(ctx context.Context) (domain.PathSegments, error)

type Gate struct {
	catalog  ports.IntakeCatalog
	ledger   ports.Ledger
	keywords []string
	policy   CatalogPolicy
	logger   *slog.Logger
}

func NewGate(
	catalog ports.IntakeCatalog,
	ledger ports.Ledger,
	keywords []string,
	policy CatalogPolicy,
	logger *slog.Logger,
) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = CatalogStrict
	}
	cleaned := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			cleaned = append(cleaned, keyword)
		}
	}
	return &Gate{
		catalog:  catalog,
		ledger:   ledger,
		keywords: cleaned,
		policy:   policy,
		logger:   logger,
	}
}

// Evaluate applies the exclusion rules in order; the first matching rule wins.
func (g *Gate) Evaluate(ctx context.Context, file domain.FileDescriptor, resolve PathResolver) (Decision, error) {
	ignored, err := g.ignoreSet(ctx)
	if err != nil {
		return Decision{}, err
	}
	if ext := file.EffectiveExtension(); ignored.Contains(ext) {
		return reject(domain.RuleIgnoredType, nil, fmt.Sprintf("ignored file type %q", ext)), nil
	}

	path, err := resolve(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrFileNotFound) {
			return reject(domain.RulePathUnresolved, nil, err.Error()), nil
		}
		return Decision{}, fmt.Errorf("resolve ancestor path: %w", err)
	}
	if path.Empty() {
		return reject(domain.RulePathUnresolved, path, "empty ancestor path"), nil
	}

	if keyword, segment, ok := g.excludedFolder(path); ok {
		return reject(domain.RuleExcludedFolder, path, fmt.Sprintf("folder %q matches %q", segment, keyword)), nil
	}

	known, err := g.ledger.ListKnownFileIDs(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("list known file ids: %w", err)
	}
	if known.Contains(file.ID) {
		return reject(domain.RuleDuplicate, path, "already processed"), nil
	}

	return Decision{Path: path}, nil
}

func (g *Gate) ignoreSet(ctx context.Context) (domain.IgnoreSet, error) {
	set, err := g.catalog.IgnoredExtensions(ctx)
	if err == nil {
		return set, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.IgnoreSet{}, err
	}
	if g.policy == CatalogPermissive {
		g.logger.Warn("ignore_list_unavailable", "policy", string(g.policy), "error", err)
		return domain.NewIgnoreSet(nil), nil
	}
	return domain.IgnoreSet{}, domain.WrapError(domain.ErrConfigUnavailable, "load ignore list", err)
}

func (g *Gate) excludedFolder(path domain.PathSegments) (keyword, segment string, ok bool) {
	for _, seg := range path {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		lowered := strings.ToLower(seg)
		for _, kw := range g.keywords {
			if strings.Contains(lowered, kw) {
				return kw, seg, true
			}
		}
	}
	return "", "", false
}

func reject(rule domain.Rule, path domain.PathSegments, reason string) Decision {
	return Decision{Rule: rule, Path: path, Reason: reason}
}
