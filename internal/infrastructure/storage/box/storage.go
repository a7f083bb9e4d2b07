package box

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// Storage adapts Client to ports.FileStorage.
type Storage struct {
	client *Client
}

func NewStorage(client *Client) *Storage {
	return &Storage{client: client}
}

func (s *Storage) GetFile(ctx context.Context, fileID string) (domain.FileDescriptor, error) {
	f, err := s.client.getFile(ctx, fileID)
	if err != nil {
		return domain.FileDescriptor{}, fmt.Errorf("box get file %s: %w", fileID, err)
	}
	if f.Type != "" && f.Type != "file" {
		return domain.FileDescriptor{}, domain.WrapError(domain.ErrInvalidInput, "box get file", fmt.Errorf("item %s is a %s", fileID, f.Type))
	}
	return f.toDescriptor(), nil
}

// AncestorPath walks parent folders from the file's folder up to, but not
// including, the account root. Segments are nearest-first.
func (s *Storage) AncestorPath(ctx context.Context, file domain.FileDescriptor) (domain.PathSegments, error) {
	maxDepth := s.client.cfg.MaxFolderDepth
	seen := make(map[string]struct{}, 8)
	var path domain.PathSegments

	current := strings.TrimSpace(file.ParentFolderID)
	for current != "" && current != RootFolderID {
		if _, dup := seen[current]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "box ancestor path", fmt.Errorf("folder cycle at %s", current))
		}
		if len(path) >= maxDepth {
			return nil, domain.WrapError(domain.ErrInvalidInput, "box ancestor path", fmt.Errorf("folder depth exceeds %d", maxDepth))
		}
		seen[current] = struct{}{}

		f, err := s.client.getFolder(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("box get folder %s: %w", current, err)
		}
		path = append(path, f.Name)

		if f.Parent == nil {
			break
		}
		current = strings.TrimSpace(f.Parent.ID)
	}
	return path, nil
}

func (s *Storage) OpenContent(ctx context.Context, fileID string) (io.ReadCloser, error) {
	body, err := s.client.download(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("box download %s: %w", fileID, err)
	}
	if body == nil {
		return nil, errors.New("box download returned no body")
	}
	return body, nil
}
