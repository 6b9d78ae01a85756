// Package logfile appends per-cycle probe records to a time-rotated text log.
//
// The file name is derived from a strftime pattern every time a cycle logs,
// so the log rotates as soon as the formatted name changes.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// TimestampLayout is the layout of the leading [timestamp] of every record.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one line of the log.
type Record struct {
	Time      time.Time
	Name      string
	Address   string
	Reachable bool
	Latency   *float64
}

// FormatRecord renders r as
// "[YYYY-MM-DD HH:MM:SS] name (address) - Reachable, Latency: 1.23 ms".
func FormatRecord(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (%s) - ", r.Time.Format(TimestampLayout), r.Name, r.Address)
	if r.Reachable {
		b.WriteString("Reachable")
	} else {
		b.WriteString("Unreachable")
	}
	if r.Reachable && r.Latency != nil {
		fmt.Fprintf(&b, ", Latency: %.2f ms", *r.Latency)
	}
	return b.String()
}

// PathResolver maps a point in time to the log file for that rotation window.
type PathResolver struct {
	dir     string
	pattern *strftime.Strftime
}

func NewPathResolver(dir, format string) (*PathResolver, error) {
	if format == "" {
		return nil, fmt.Errorf("log filename format is empty")
	}
	pattern, err := strftime.New(format)
	if err != nil {
		return nil, fmt.Errorf("log filename format %q: %w", format, err)
	}
	return &PathResolver{dir: dir, pattern: pattern}, nil
}

// Path returns the log file path for t.
func (p *PathResolver) Path(t time.Time) string {
	return filepath.Join(p.dir, p.pattern.FormatString(t))
}

// Dir returns the log directory.
func (p *PathResolver) Dir() string { return p.dir }

// WriteError reports that records could not be persisted.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write log %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer appends lines to log files. Calls are expected to be sequential.
type Writer struct{}

func NewWriter() *Writer { return &Writer{} }

// Append writes lines to the file at path, one per line, and syncs it to disk.
// The parent directory is created when missing.
func (w *Writer) Append(path string, lines []string) (err error) {
	if len(lines) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("ensure log directory: %w", err)}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: path, Err: cerr}
		}
	}()

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
