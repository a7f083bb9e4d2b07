package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

type rawTables struct {
	Turnaround []struct {
		Folder string `yaml:"folder"`
		Tier   string `yaml:"tier"`
	} `yaml:"turnaround"`
	Categories []struct {
		Folder   string `yaml:"folder"`
		Category string `yaml:"category"`
	} `yaml:"categories"`
	NeverProcessKeywords *[]string `yaml:"never_process_keywords"`
}

// Load returns the built-in tables when path is empty. A section missing
// from the file keeps its default; a present section replaces it wholesale.
func Load(path string) (domain.RuleTables, error) {
	if strings.TrimSpace(path) == "" {
		return domain.DefaultRuleTables(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RuleTables{}, fmt.Errorf("read rules file: %w", err)
	}
	tables, err := Parse(raw)
	if err != nil {
		return domain.RuleTables{}, fmt.Errorf("rules file %s: %w", path, err)
	}
	return tables, nil
}

func Parse(data []byte) (domain.RuleTables, error) {
	var raw rawTables
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.RuleTables{}, fmt.Errorf("decode rules: %w", err)
	}

	tables := domain.DefaultRuleTables()
	var problems []error

	if raw.Turnaround != nil {
		tables.Turnaround = make([]domain.TurnaroundRule, 0, len(raw.Turnaround))
		for i, row := range raw.Turnaround {
			tier, ok := domain.ParseTurnaround(strings.TrimSpace(row.Tier))
			if !ok {
				problems = append(problems, fmt.Errorf("turnaround[%d]: unknown tier %q", i, row.Tier))
				continue
			}
			if row.Folder == "" {
				problems = append(problems, fmt.Errorf("turnaround[%d]: folder is required", i))
				continue
			}
			tables.Turnaround = append(tables.Turnaround, domain.TurnaroundRule{Folder: row.Folder, Tier: tier})
		}
	}

	if raw.Categories != nil {
		tables.Categories = make([]domain.CategoryRule, 0, len(raw.Categories))
		for i, row := range raw.Categories {
			category, ok := domain.ParseCategory(strings.TrimSpace(row.Category))
			if !ok {
				problems = append(problems, fmt.Errorf("categories[%d]: unknown category %q", i, row.Category))
				continue
			}
			if row.Folder == "" {
				problems = append(problems, fmt.Errorf("categories[%d]: folder is required", i))
				continue
			}
			tables.Categories = append(tables.Categories, domain.CategoryRule{Folder: row.Folder, Category: category})
		}
	}

	if raw.NeverProcessKeywords != nil {
		tables.NeverProcessKeywords = []string{}
		for _, keyword := range *raw.NeverProcessKeywords {
			if keyword = strings.TrimSpace(keyword); keyword != "" {
				tables.NeverProcessKeywords = append(tables.NeverProcessKeywords, keyword)
			}
		}
	}

	if len(problems) > 0 {
		return domain.RuleTables{}, errors.Join(problems...)
	}
	return tables, nil
}
