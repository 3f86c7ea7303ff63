package sheet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/xuri/excelize/v2"
)

const (
	logSheet  = "Audit Log"
	logSuffix = "_audit_log.xlsx"
)

// fallback layouts accepted when reading timestamps written by other tools
var timestampLayouts = []string{
	audit.TimestampLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// AuditLog implements audit.Repository with one workbook per log key under
// dir. Every append rewrites the whole workbook.
type AuditLog struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewAuditLog creates a store writing workbooks under dir.
func NewAuditLog(dir string, logger *slog.Logger) *AuditLog {
	return &AuditLog{dir: dir, logger: logger}
}

// Path returns the workbook path of a log key.
func (l *AuditLog) Path(key string) string {
	return filepath.Join(l.dir, fileStem(key)+logSuffix)
}

// Append adds the event as the last row of its log.
func (l *AuditLog) Append(ctx context.Context, key string, event *audit.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.read(ctx, key)
	if err != nil {
		return err
	}
	event.LogKey = key
	event.Seq = int64(len(events) + 1)
	events = append(events, *event)

	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, eventRow(e))
	}
	if err := writeWorkbook(l.Path(key), logSheet, audit.Columns, rows); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// List returns the events of a log in row order. A log whose header does not
// match the current columns reads as empty and is replaced on the next
// append.
func (l *AuditLog) List(ctx context.Context, key string) ([]audit.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx, key)
}

// Keys lists the log keys that have a workbook.
func (l *AuditLog) Keys(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, "*"+logSuffix))
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		key, err := url.PathUnescape(strings.TrimSuffix(filepath.Base(m), logSuffix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Flush is a no-op: appends are written through.
func (l *AuditLog) Flush(ctx context.Context, key string) error {
	return nil
}

func (l *AuditLog) read(ctx context.Context, key string) ([]audit.Event, error) {
	path := l.Path(key)
	rows, err := readRows(path)
	if err != nil {
		l.quarantine(ctx, path, err)
		return nil, nil
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if !sameHeader(rows[0], audit.Columns) {
		if l.logger != nil {
			l.logger.WarnContext(ctx, "audit log header does not match; starting a fresh log", "path", path, "header", rows[0])
		}
		return nil, nil
	}

	return parseEvents(key, rows[1:], func(row int, value string) {
		if l.logger != nil {
			l.logger.WarnContext(ctx, "unreadable audit timestamp", "path", path, "row", row, "value", value)
		}
	}), nil
}

// quarantine moves an unreadable workbook aside so the next append starts a
// fresh log in its place.
func (l *AuditLog) quarantine(ctx context.Context, path string, cause error) {
	aside := fmt.Sprintf("%s.unreadable-%s", path, time.Now().Format("20060102T150405.000000"))
	err := os.Rename(path, aside)
	if l.logger == nil {
		return
	}
	if err != nil {
		l.logger.WarnContext(ctx, "audit log unreadable; starting a fresh log", "path", path, "error", cause, "rename_error", err)
		return
	}
	l.logger.WarnContext(ctx, "audit log unreadable; moved aside and starting a fresh log", "path", path, "moved_to", aside, "error", cause)
}

// WriteLog writes events as a standalone workbook, used for log export.
func WriteLog(w io.Writer, events []audit.Event) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, eventRow(e))
	}
	f, err := newWorkbook(logSheet, audit.Columns, rows)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// ReadLog parses a workbook produced by WriteLog or an audit store.
func ReadLog(r io.Reader) ([]audit.Event, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading workbook: %w", err)
	}
	if len(rows) == 0 || !sameHeader(rows[0], audit.Columns) {
		return nil, nil
	}
	return parseEvents("", rows[1:], nil), nil
}

// parseEvents converts data rows to events. badTimestamp is called with the
// sheet row number of each unparseable timestamp.
func parseEvents(key string, rows [][]string, badTimestamp func(row int, value string)) []audit.Event {
	events := make([]audit.Event, 0, len(rows))
	for i, row := range rows {
		ts, err := parseTimestamp(cell(row, 0))
		if err != nil && badTimestamp != nil {
			badTimestamp(i+2, cell(row, 0))
		}
		events = append(events, audit.Event{
			Seq:       int64(i + 1),
			LogKey:    key,
			Timestamp: ts,
			Username:  cell(row, 1),
			Action:    audit.Action(cell(row, 2)),
			Case:      cell(row, 3),
			Series:    cell(row, 4),
			Details:   cell(row, 5),
		})
	}
	return events
}

func eventRow(e audit.Event) []any {
	return []any{
		e.Timestamp.In(time.Local).Format(audit.TimestampLayout),
		e.Username,
		string(e.Action),
		e.Case,
		e.Series,
		e.Details,
	}
}

func parseTimestamp(value string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var ts time.Time
		ts, err = time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}

func sameHeader(row, want []string) bool {
	if len(row) < len(want) {
		return false
	}
	for i, w := range want {
		if !strings.EqualFold(strings.TrimSpace(row[i]), w) {
			return false
		}
	}
	for _, extra := range row[len(want):] {
		if strings.TrimSpace(extra) != "" {
			return false
		}
	}
	return true
}

// fileStem maps a log key to a file name component. Letters, digits, '-',
// '_' and non-leading '.' are kept; every other byte is percent-encoded, so
// distinct keys never share a file and Keys can decode the name back.
func fileStem(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '_':
			b.WriteByte(c)
		case c == '.' && i > 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
