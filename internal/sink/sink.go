// Package sink writes consolidated records to CSV or JSON destinations.
package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/summary"
)

// Mode selects how an existing CSV destination is treated.
type Mode int

const (
	// ModeOverwrite truncates the destination and writes a header.
	ModeOverwrite Mode = iota
	// ModeAppend appends rows, writing the header only to an empty file.
	ModeAppend
)

// Layout is the column layout of the records being written.
type Layout struct {
	GroupLabel string
	Columns    []string
}

// WriteError reports a destination that cannot be opened or written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Sink persists a batch of records.
type Sink interface {
	Write(layout Layout, records []model.Record) error
}

// CSV writes comma-separated values with a header row. Path "-" is stdout.
type CSV struct {
	Path string
	Mode Mode
	// Stdout is used for Path "-"; nil means os.Stdout.
	Stdout io.Writer
}

func (c *CSV) Write(layout Layout, records []model.Record) error {
	if c.Path == "-" {
		if err := WriteCSV(c.stdout(), layout, records, true); err != nil {
			return &WriteError{Path: c.Path, Err: err}
		}
		return nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if c.Mode == ModeAppend {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(c.Path, flags, 0o644)
	if err != nil {
		return &WriteError{Path: c.Path, Err: err}
	}
	header := true
	if c.Mode == ModeAppend {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return &WriteError{Path: c.Path, Err: err}
		}
		header = fi.Size() == 0
	}
	if err := WriteCSV(f, layout, records, header); err != nil {
		f.Close()
		return &WriteError{Path: c.Path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: c.Path, Err: err}
	}
	return nil
}

func (c *CSV) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

// WriteCSV encodes records to w in layout column order. Absent values are
// empty cells.
func WriteCSV(w io.Writer, layout Layout, records []model.Record, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(layout.Columns); err != nil {
			return err
		}
	}
	row := make([]string, len(layout.Columns))
	for _, r := range records {
		for i, col := range layout.Columns {
			row[i] = cell(layout, &r, col)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(layout Layout, r *model.Record, col string) string {
	switch col {
	case layout.GroupLabel:
		return r.GroupKey
	case model.TimestampColumn:
		return r.Timestamp
	}
	m, ok := model.MetricByColumn(col)
	if !ok {
		return ""
	}
	v, ok := r.Get(m)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JSON writes records as an array of column-keyed objects. Path "-" is stdout.
type JSON struct {
	Path   string
	Pretty bool
	// Stdout is used for Path "-"; nil means os.Stdout.
	Stdout io.Writer
}

func (j *JSON) Write(layout Layout, records []model.Record) error {
	var w io.Writer
	var f *os.File
	if j.Path == "-" {
		w = j.Stdout
		if w == nil {
			w = os.Stdout
		}
	} else {
		var err error
		f, err = os.Create(j.Path)
		if err != nil {
			return &WriteError{Path: j.Path, Err: err}
		}
		w = f
	}

	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		m := r.ToMap(layout.GroupLabel)
		// keep only the layout's columns
		row := make(map[string]any, len(layout.Columns))
		for _, c := range layout.Columns {
			row[c] = m[c]
		}
		out = append(out, row)
	}
	enc := json.NewEncoder(w)
	if j.Pretty {
		enc.SetIndent("", "  ")
	}
	err := enc.Encode(out)
	if f != nil {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return &WriteError{Path: j.Path, Err: err}
	}
	return nil
}

// Summary writes per-group statistics as CSV. Path "-" is stdout.
type Summary struct {
	Path   string
	Stdout io.Writer
}

func (s *Summary) Write(groupLabel string, groups []summary.Group) error {
	if s.Path == "-" {
		w := s.Stdout
		if w == nil {
			w = os.Stdout
		}
		if err := summary.WriteCSV(w, groupLabel, groups); err != nil {
			return &WriteError{Path: s.Path, Err: err}
		}
		return nil
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return &WriteError{Path: s.Path, Err: err}
	}
	if err := summary.WriteCSV(f, groupLabel, groups); err != nil {
		f.Close()
		return &WriteError{Path: s.Path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: s.Path, Err: err}
	}
	return nil
}
