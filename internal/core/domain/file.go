package domain

import (
	"strings"
	"time"
)

type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login"`
}

// FileDescriptor is a read-only snapshot of a stored file.
type FileDescriptor struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Extension      string    `json:"extension,omitempty"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      Identity  `json:"created_by"`
	ParentFolderID string    `json:"parent_folder_id,omitempty"`
}

// EffectiveExtension returns the explicit extension, falling back to the
// trailing dot-suffix of the name. The result has no leading dot and is
// lower-cased.
func (f FileDescriptor) EffectiveExtension() string {
	if ext := normalizeExtension(f.Extension); ext != "" {
		return ext
	}
	idx := strings.LastIndex(f.Name, ".")
	if idx < 0 || idx == len(f.Name)-1 {
		return ""
	}
	return normalizeExtension(f.Name[idx+1:])
}

// PathSegments lists folder names from the nearest ancestor up to the root.
type PathSegments []string

func (p PathSegments) Empty() bool {
	for _, segment := range p {
		if strings.TrimSpace(segment) != "" {
			return false
		}
	}
	return true
}

// String renders the path root-first, the way a user sees it.
func (p PathSegments) String() string {
	parts := make([]string, 0, len(p))
	for i := len(p) - 1; i >= 0; i-- {
		parts = append(parts, p[i])
	}
	return strings.Join(parts, "/")
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	ext = strings.TrimPrefix(ext, ".")
	return strings.ToLower(ext)
}
