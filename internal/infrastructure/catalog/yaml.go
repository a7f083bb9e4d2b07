package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// FileSource reads the catalog from a YAML document on every load:
//
//	ignored_types: [docx, pdf]
//	customers:
//	  - name: Acme Legal
//	    template_text: Acme Template
//	    template_url: https://docs.example.com/acme
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type fileDocument struct {
	IgnoredTypes []string `yaml:"ignored_types"`
	Customers    []struct {
		Name         string `yaml:"name"`
		TemplateText string `yaml:"template_text"`
		TemplateURL  string `yaml:"template_url"`
	} `yaml:"customers"`
}

func (s *FileSource) LoadIgnoredExtensions(ctx context.Context) ([]string, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.IgnoredTypes, nil
}

func (s *FileSource) LoadClients(ctx context.Context) ([]domain.ClientTemplate, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ClientTemplate, 0, len(doc.Customers))
	for _, row := range doc.Customers {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			continue
		}
		text := strings.TrimSpace(row.TemplateText)
		if text == "" && row.TemplateURL != "" {
			text = name
		}
		out = append(out, domain.ClientTemplate{
			ClientName: name,
			Template:   domain.Hyperlink{Text: text, URL: strings.TrimSpace(row.TemplateURL)},
		})
	}
	return out, nil
}

func (s *FileSource) read(ctx context.Context) (fileDocument, error) {
	if err := ctx.Err(); err != nil {
		return fileDocument{}, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fileDocument{}, fmt.Errorf("read catalog file: %w", err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fileDocument{}, fmt.Errorf("decode catalog file %s: %w", s.path, err)
	}
	return doc, nil
}
