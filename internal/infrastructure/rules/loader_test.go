package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	tables, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(tables.Turnaround) != 3 || len(tables.Categories) != 8 || len(tables.NeverProcessKeywords) != 2 {
		t.Fatalf("unexpected defaults %+v", tables)
	}
}

func TestParseReplacesOnlyPresentSections(t *testing.T) {
	tables, err := Parse([]byte(`
turnaround:
  - folder: "Same Day"
    tier: Rush
never_process_keywords: ["Old", "  ", "Trash"]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(tables.Turnaround) != 1 || tables.Turnaround[0].Tier != domain.TurnaroundRushed {
		t.Fatalf("unexpected turnaround %+v", tables.Turnaround)
	}
	if len(tables.Categories) != len(domain.DefaultRuleTables().Categories) {
		t.Fatalf("categories should keep defaults, got %+v", tables.Categories)
	}
	if strings.Join(tables.NeverProcessKeywords, ",") != "Old,Trash" {
		t.Fatalf("unexpected keywords %v", tables.NeverProcessKeywords)
	}
}

func TestParseEmptyKeywordListDisablesExclusion(t *testing.T) {
	tables, err := Parse([]byte("never_process_keywords: []\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(tables.NeverProcessKeywords) != 0 {
		t.Fatalf("expected no keywords, got %v", tables.NeverProcessKeywords)
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	_, err := Parse([]byte(`
turnaround:
  - folder: "Tomorrow"
    tier: Urgent
categories:
  - folder: "Vet Clients"
    category: Veterinary
  - folder: ""
    category: Legal
`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"Urgent", "Veterinary", "folder is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("categories:\n  - folder: Court Clients\n    category: Legal\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	tables, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(tables.Categories) != 1 || tables.Categories[0].Folder != "Court Clients" {
		t.Fatalf("unexpected categories %+v", tables.Categories)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
