package usecase

import (
	"strings"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// ClientFallback decides what fills the client column when no folder in the
// path names a known client.
type ClientFallback string

const (
	FallbackNone     ClientFallback = "none"
	FallbackUploader ClientFallback = "uploader"
)

func ParseClientFallback(raw string) ClientFallback {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(FallbackUploader):
		return FallbackUploader
	default:
		return FallbackNone
	}
}

// Classifier maps a folder path to a category, turnaround tier and client.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	turnaround map[string]domain.TurnaroundTier
	categories map[string]domain.Category
	fallback   ClientFallback
}

func NewClassifier(tables domain.RuleTables, fallback ClientFallback) *Classifier {
	turnaround := make(map[string]domain.TurnaroundTier, len(tables.Turnaround))
	for _, rule := range tables.Turnaround {
		if _, exists := turnaround[rule.Folder]; !exists {
			turnaround[rule.Folder] = rule.Tier
		}
	}
	categories := make(map[string]domain.Category, len(tables.Categories))
	for _, rule := range tables.Categories {
		if _, exists := categories[rule.Folder]; !exists {
			categories[rule.Folder] = rule.Category
		}
	}
	if fallback == "" {
		fallback = FallbackNone
	}
	return &Classifier{
		turnaround: turnaround,
		categories: categories,
		fallback:   fallback,
	}
}

func (c *Classifier) Classify(path domain.PathSegments, roster []domain.ClientTemplate, uploader domain.Identity) domain.ClassificationResult {
	result := domain.ClassificationResult{
		Category:   c.category(path),
		Turnaround: c.turnaroundTier(path),
	}

	if name, ok := matchClient(path, roster); ok {
		result.ClientName = name
		result.ClientSource = domain.ClientSourceFolder
		return result
	}

	if c.fallback == FallbackUploader {
		if name := uploaderName(uploader); name != "" {
			result.ClientName = name
			result.ClientSource = domain.ClientSourceUploader
		}
	}
	return result
}

// Segments are compared literally and the first match in scan order wins.
func (c *Classifier) turnaroundTier(path domain.PathSegments) domain.TurnaroundTier {
	for _, segment := range path {
		if tier, ok := c.turnaround[segment]; ok {
			return tier
		}
	}
	return domain.TurnaroundStandard
}

func (c *Classifier) category(path domain.PathSegments) domain.Category {
	for _, segment := range path {
		if category, ok := c.categories[segment]; ok {
			return category
		}
	}
	return domain.CategoryGeneral
}

func matchClient(path domain.PathSegments, roster []domain.ClientTemplate) (string, bool) {
	if len(roster) == 0 {
		return "", false
	}
	for _, segment := range path {
		candidate := strings.TrimSpace(segment)
		if candidate == "" {
			continue
		}
		for _, client := range roster {
			if strings.EqualFold(candidate, strings.TrimSpace(client.ClientName)) {
				return client.ClientName, true
			}
		}
	}
	return "", false
}

func uploaderName(id domain.Identity) string {
	if login := strings.TrimSpace(id.Login); login != "" {
		return login
	}
	return strings.TrimSpace(id.Name)
}

// templateFor returns the roster template for a client, or a zero link.
func templateFor(roster []domain.ClientTemplate, clientName string) domain.Hyperlink {
	if clientName == "" {
		return domain.Hyperlink{}
	}
	for _, client := range roster {
		if client.ClientName == clientName {
			return client.Template
		}
	}
	return domain.Hyperlink{}
}
