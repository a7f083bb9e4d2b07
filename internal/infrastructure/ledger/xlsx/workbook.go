package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

const (
	JobLogSheet       = "Job Log"
	IgnoredTypesSheet = "Ignored Types"
	CustomersSheet    = "Customers"

	fileIDHeader   = "File ID"
	fileLinkHeader = "File Link"
	dateLayout     = "2006-01-02"

	lockRetryDelay = 20 * time.Millisecond
)

var jobLogHeader = []string{
	"Status", "QA Date", "Client", "Template", "Category", "File Name",
	"File Link", "Date Received", "IC Due Date", "Final Due Date", "Special Due Date",
	"Returned", "Transcriptionist", "Duration", "Minutes", "TAT",
	"Number of Speakers", "Verbatim or Timestamps", "TT", "Type", "IC Rate", "IC Total",
	"Rate", "Pricing", "Special Rate", "Special Template", "Feedback",
	"Notes and Comments", fileIDHeader,
}

// 1-based column positions inside jobLogHeader.
const (
	colClient    = 3
	colTemplate  = 4
	colCategory  = 5
	colFileName  = 6
	colFileLink  = 7
	colReceived  = 8
	colDuration  = 14
	colMinutes   = 15
	colTAT       = 16
	colNotes     = 28
	colFileID    = 29
	columnsTotal = 29
)

// Workbook keeps the job ledger and the configuration sheets in a single
// xlsx file. Every call reopens the file so edits made by operators
// between calls are picked up. Worker processes sharing the file are
// serialized through an advisory lock on <path>.lock.
type Workbook struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

func NewWorkbook(path string) *Workbook {
	return &Workbook{path: path, lock: flock.New(path + ".lock")}
}

func (w *Workbook) Path() string {
	return w.path
}

// EnsureWorkbook creates the file with empty configuration sheets and the
// ledger header when it does not exist yet.
func (w *Workbook) EnsureWorkbook(ctx context.Context) error {
	unlock, err := w.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := os.Stat(w.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat workbook: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := ensureJobLog(f); err != nil {
		return err
	}
	configSheets := []struct {
		name   string
		header []interface{}
	}{
		{IgnoredTypesSheet, []interface{}{"Extension"}},
		{CustomersSheet, []interface{}{"Client", "Template"}},
	}
	for _, sheet := range configSheets {
		if _, err := f.NewSheet(sheet.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet.name, err)
		}
		if err := f.SetSheetRow(sheet.name, "A1", &sheet.header); err != nil {
			return fmt.Errorf("write %s header: %w", sheet.name, err)
		}
	}
	if err := dropDefaultSheet(f); err != nil {
		return err
	}
	return w.save(f)
}

// ListKnownFileIDs reads the File ID column of the ledger. A missing
// workbook or ledger sheet yields an empty set.
func (w *Workbook) ListKnownFileIDs(ctx context.Context) (domain.FileIDSet, error) {
	unlock, err := w.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := w.open()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewFileIDSet(), nil
		}
		return nil, err
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(JobLogSheet); err != nil || idx < 0 {
		return domain.NewFileIDSet(), nil
	}
	rows, err := f.GetRows(JobLogSheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "read ledger rows", err)
	}
	return knownFileIDs(f, rows), nil
}

// AppendEntry adds one row to the ledger, writing the header first when
// the sheet is empty.
func (w *Workbook) AppendEntry(ctx context.Context, entry domain.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(entry.FileID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "append ledger entry", errors.New("file id is required"))
	}
	unlock, err := w.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := w.open()
	if errors.Is(err, fs.ErrNotExist) {
		f = excelize.NewFile()
		err = nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ensureJobLog(f); err != nil {
		return err
	}
	if err := dropDefaultSheet(f); err != nil {
		return err
	}

	rows, err := f.GetRows(JobLogSheet)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "read ledger rows", err)
	}
	// The gate checked for duplicates before the download; another worker
	// may have recorded the same file since.
	if knownFileIDs(f, rows).Contains(strings.TrimSpace(entry.FileID)) {
		return domain.WrapError(domain.ErrDuplicateEntry, "append ledger entry", fmt.Errorf("file %s already recorded", entry.FileID))
	}
	rowNum := len(rows) + 1

	if err := writeEntry(f, rowNum, entry); err != nil {
		return err
	}
	return w.save(f)
}

// LoadIgnoredExtensions reads column A of the ignored types sheet,
// skipping the header row.
func (w *Workbook) LoadIgnoredExtensions(ctx context.Context) ([]string, error) {
	unlock, err := w.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(IgnoredTypesSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", IgnoredTypesSheet, err)
	}
	var out []string
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if ext := strings.TrimSpace(row[0]); ext != "" {
			out = append(out, ext)
		}
	}
	return out, nil
}

// LoadClients reads the customers sheet in order. Column B holds the
// template either as a cell hyperlink or as a HYPERLINK formula.
func (w *Workbook) LoadClients(ctx context.Context) ([]domain.ClientTemplate, error) {
	unlock, err := w.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(CustomersSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", CustomersSheet, err)
	}

	var out []domain.ClientTemplate
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		client := domain.ClientTemplate{ClientName: name}
		template, err := readTemplateCell(f, i+1)
		if err != nil {
			return nil, err
		}
		if template.IsZero() && len(row) > 1 {
			template.Text = strings.TrimSpace(row[1])
		}
		client.Template = template
		out = append(out, client)
	}
	return out, nil
}

// acquire takes the in-process mutex and then the file lock, shared for
// readers and exclusive for writers.
func (w *Workbook) acquire(ctx context.Context, exclusive bool) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			w.mu.Unlock()
			return nil, fmt.Errorf("create workbook dir: %w", err)
		}
	}

	tryLock := w.lock.TryRLockContext
	if exclusive {
		tryLock = w.lock.TryLockContext
	}
	locked, err := tryLock(ctx, lockRetryDelay)
	if err != nil || !locked {
		w.mu.Unlock()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, domain.WrapError(domain.ErrTemporary, "lock workbook", err)
	}
	return func() {
		_ = w.lock.Unlock()
		w.mu.Unlock()
	}, nil
}

// knownFileIDs collects the File ID column, falling back to the id at the
// end of the File Link formula for rows written before that column existed.
func knownFileIDs(f *excelize.File, rows [][]string) domain.FileIDSet {
	set := domain.NewFileIDSet()
	if len(rows) == 0 {
		return set
	}
	idCol := headerIndex(rows[0], fileIDHeader)
	linkCol := headerIndex(rows[0], fileLinkHeader)

	for i, row := range rows[1:] {
		if idCol >= 0 && idCol < len(row) && strings.TrimSpace(row[idCol]) != "" {
			set[strings.TrimSpace(row[idCol])] = struct{}{}
			continue
		}
		if linkCol < 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(linkCol+1, i+2)
		if err != nil {
			continue
		}
		formula, err := f.GetCellFormula(JobLogSheet, cell)
		if err != nil || formula == "" {
			continue
		}
		if link, _, ok := parseHyperlinkFormula(formula); ok {
			if id := lastPathSegment(link); id != "" {
				set[id] = struct{}{}
			}
		}
	}
	return set
}

func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open workbook %s: %w", w.path, err)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "open workbook", err)
	}
	return f, nil
}

func (w *Workbook) save(f *excelize.File) error {
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create workbook dir: %w", err)
		}
	}
	if err := f.SaveAs(w.path); err != nil {
		return domain.WrapError(domain.ErrTemporary, "save workbook", err)
	}
	return nil
}

func ensureJobLog(f *excelize.File) error {
	idx, err := f.GetSheetIndex(JobLogSheet)
	if err != nil {
		return fmt.Errorf("lookup ledger sheet: %w", err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(JobLogSheet); err != nil {
			return fmt.Errorf("create ledger sheet: %w", err)
		}
	}
	rows, err := f.GetRows(JobLogSheet)
	if err != nil {
		return fmt.Errorf("read ledger header: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return nil
	}
	header := make([]interface{}, len(jobLogHeader))
	for i, name := range jobLogHeader {
		header[i] = name
	}
	if err := f.SetSheetRow(JobLogSheet, "A1", &header); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	return nil
}

// dropDefaultSheet removes the blank sheet excelize adds to new files.
func dropDefaultSheet(f *excelize.File) error {
	const defaultSheet = "Sheet1"
	idx, err := f.GetSheetIndex(defaultSheet)
	if err != nil || idx < 0 || len(f.GetSheetList()) < 2 {
		return nil
	}
	rows, err := f.GetRows(defaultSheet)
	if err != nil || len(rows) > 0 {
		return nil
	}
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}
	return nil
}

func writeEntry(f *excelize.File, rowNum int, entry domain.LedgerEntry) error {
	values := make([]interface{}, columnsTotal)
	values[colClient-1] = entry.ClientName
	values[colCategory-1] = string(entry.Category)
	values[colFileName-1] = entry.FileName
	if !entry.ReceivedAt.IsZero() {
		values[colReceived-1] = entry.ReceivedAt.Format(dateLayout)
	}
	if entry.Duration > 0 {
		values[colDuration-1] = formatClock(entry)
		values[colMinutes-1] = entry.Minutes()
	}
	values[colTAT-1] = string(entry.Turnaround)
	values[colNotes-1] = entry.Notes
	values[colFileID-1] = entry.FileID

	for i, v := range values {
		if s, ok := v.(string); ok && s == "" {
			values[i] = nil
		}
	}

	start, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(JobLogSheet, start, &values); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}

	if !entry.Template.IsZero() && entry.Template.URL != "" {
		if err := setFormula(f, colTemplate, rowNum, hyperlinkFormula(entry.Template.URL, entry.Template.Text)); err != nil {
			return err
		}
	}
	if entry.FileLink != "" {
		if err := setFormula(f, colFileLink, rowNum, hyperlinkFormula(entry.FileLink, "Link")); err != nil {
			return err
		}
	}
	return nil
}

func setFormula(f *excelize.File, col, row int, formula string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellFormula(JobLogSheet, cell, formula); err != nil {
		return fmt.Errorf("write formula %s: %w", cell, err)
	}
	return nil
}

func readTemplateCell(f *excelize.File, row int) (domain.Hyperlink, error) {
	cell, err := excelize.CoordinatesToCellName(2, row)
	if err != nil {
		return domain.Hyperlink{}, err
	}
	text, err := f.GetCellValue(CustomersSheet, cell)
	if err != nil {
		return domain.Hyperlink{}, fmt.Errorf("read template %s: %w", cell, err)
	}
	text = strings.TrimSpace(text)

	if ok, target, err := f.GetCellHyperLink(CustomersSheet, cell); err == nil && ok && target != "" {
		return domain.Hyperlink{Text: text, URL: target}, nil
	}
	if formula, err := f.GetCellFormula(CustomersSheet, cell); err == nil && formula != "" {
		if url, label, ok := parseHyperlinkFormula(formula); ok {
			if label == "" {
				label = text
			}
			return domain.Hyperlink{Text: label, URL: url}, nil
		}
	}
	return domain.Hyperlink{Text: text}, nil
}

func headerIndex(header []string, name string) int {
	for i, cell := range header {
		if strings.EqualFold(strings.TrimSpace(cell), name) {
			return i
		}
	}
	return -1
}

func formatClock(entry domain.LedgerEntry) string {
	total := int64(entry.Duration.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func lastPathSegment(link string) string {
	link = strings.TrimRight(strings.TrimSpace(link), "/")
	if idx := strings.LastIndex(link, "/"); idx >= 0 {
		return link[idx+1:]
	}
	return ""
}
