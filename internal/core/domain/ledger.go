package domain

import (
	"strings"
	"time"
)

type Hyperlink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

func (h Hyperlink) IsZero() bool {
	return h.Text == "" && h.URL == ""
}

// ClientTemplate is one row of the known-client roster.
type ClientTemplate struct {
	ClientName string    `json:"client_name"`
	Template   Hyperlink `json:"template"`
}

// LedgerEntry is the append-only record written for every accepted file.
type LedgerEntry struct {
	FileID     string         `json:"file_id"`
	FileName   string         `json:"file_name"`
	FileLink   string         `json:"file_link,omitempty"`
	Category   Category       `json:"category"`
	Turnaround TurnaroundTier `json:"turnaround"`
	ClientName string         `json:"client_name,omitempty"`
	Template   Hyperlink      `json:"template"`
	Duration   time.Duration  `json:"duration"`
	ReceivedAt time.Time      `json:"received_at"`
	Notes      string         `json:"notes,omitempty"`
}

// Minutes is the billable length rounded to two decimals.
func (e LedgerEntry) Minutes() float64 {
	m := e.Duration.Minutes()
	return float64(int64(m*100+0.5)) / 100
}

// IgnoreSet is an immutable, case-insensitive set of file extensions.
type IgnoreSet struct {
	exts map[string]struct{}
}

func NewIgnoreSet(extensions []string) IgnoreSet {
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		norm := normalizeExtension(ext)
		if norm == "" {
			continue
		}
		exts[norm] = struct{}{}
	}
	return IgnoreSet{exts: exts}
}

func (s IgnoreSet) Contains(ext string) bool {
	norm := normalizeExtension(ext)
	if norm == "" {
		return false
	}
	_, ok := s.exts[norm]
	return ok
}

func (s IgnoreSet) Len() int {
	return len(s.exts)
}

// Values returns the normalised extensions in no particular order.
func (s IgnoreSet) Values() []string {
	out := make([]string, 0, len(s.exts))
	for ext := range s.exts {
		out = append(out, ext)
	}
	return out
}

// FileIDSet holds ids already present in the ledger.
type FileIDSet map[string]struct{}

func NewFileIDSet(ids ...string) FileIDSet {
	set := make(FileIDSet, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func (s FileIDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}
