package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/summary"
)

var hostLayout = Layout{
	GroupLabel: "Host",
	Columns:    model.Columns("Host", false),
}

func sampleRecords() []model.Record {
	var a model.Record
	a.GroupKey = "alpha"
	a.Timestamp = "Monday, January 1, 2024 10:00:00 AM"
	a.Set(model.PostTimeSeconds, 1.5)
	a.Set(model.DownloadTimeSeconds, 2)
	a.Set(model.PostRateFilesPerSec, 10)
	a.Set(model.DownloadRateFilesPerSec, 8.25)

	var b model.Record
	b.GroupKey = "beta"
	b.Set(model.PostTimeSeconds, 3)
	return []model.Record{a, b}
}

const wantHostCSV = `Host,Timestamp,Post_Time_Seconds,Download_Time_Seconds,Post_Rate_Files_per_Sec,Download_Rate_Files_per_Sec
alpha,"Monday, January 1, 2024 10:00:00 AM",1.5,2,10,8.25
beta,,3,,,
`

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, hostLayout, sampleRecords(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != wantHostCSV {
		t.Fatalf("csv mismatch:\n%s\nwant:\n%s", got, wantHostCSV)
	}
}

func TestCSVOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NetworkSpeed.csv")
	if err := os.WriteFile(path, []byte("stale\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := &CSV{Path: path, Mode: ModeOverwrite}
	if err := s.Write(hostLayout, sampleRecords()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != wantHostCSV {
		t.Fatalf("file mismatch:\n%s", b)
	}
}

func TestCSVAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NetworkSpeed.csv")
	s := &CSV{Path: path, Mode: ModeAppend}
	recs := sampleRecords()
	if err := s.Write(hostLayout, recs[:1]); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.Write(hostLayout, recs[1:]); err != nil {
		t.Fatalf("second append: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != wantHostCSV {
		t.Fatalf("file mismatch:\n%s\nwant:\n%s", b, wantHostCSV)
	}
}

func TestCSVAppendToEmptyFileWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := &CSV{Path: path, Mode: ModeAppend}
	if err := s.Write(hostLayout, sampleRecords()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != wantHostCSV {
		t.Fatalf("file mismatch:\n%s", b)
	}
}

func TestCSVStdout(t *testing.T) {
	var buf bytes.Buffer
	s := &CSV{Path: "-", Mode: ModeAppend, Stdout: &buf}
	if err := s.Write(hostLayout, sampleRecords()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != wantHostCSV {
		t.Fatalf("stdout mismatch:\n%s", buf.String())
	}
}

func TestWriteErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "out.csv")
	sinks := map[string]Sink{
		"csv":  &CSV{Path: path},
		"json": &JSON{Path: path},
	}
	for name, s := range sinks {
		t.Run(name, func(t *testing.T) {
			err := s.Write(hostLayout, sampleRecords())
			var we *WriteError
			if !errors.As(err, &we) {
				t.Fatalf("expected WriteError, got %v", err)
			}
			if we.Path != path || !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("unexpected WriteError: %v", we)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	s := &JSON{Path: "-", Pretty: true, Stdout: &buf}
	if err := s.Write(hostLayout, sampleRecords()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(got))
	}
	if got[0]["Host"] != "alpha" || got[0]["Download_Rate_Files_per_Sec"] != 8.25 {
		t.Fatalf("unexpected first object: %v", got[0])
	}
	if v, ok := got[1]["Download_Time_Seconds"]; !ok || v != nil {
		t.Fatalf("absent metric should be null, got %v (present=%v)", v, ok)
	}
	if _, ok := got[0]["Post_Rate_MB_per_Sec"]; ok {
		t.Fatalf("extended column leaked into basic layout: %v", got[0])
	}
}

func TestSummary(t *testing.T) {
	groups := summary.Summarize(sampleRecords(), summary.RangeAll, time.Now())

	var buf bytes.Buffer
	if err := (&Summary{Path: "-", Stdout: &buf}).Write("Host", groups); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "alpha,1,1,10.000,0.000,") || !strings.HasPrefix(lines[2], "beta,1,0,,,") {
		t.Fatalf("unexpected summary:\n%s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "summary.csv")
	if err := (&Summary{Path: path}).Write("Host", groups); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if string(data) != buf.String() {
		t.Fatalf("file summary differs from stdout summary:\n%s", data)
	}

	missing := filepath.Join(t.TempDir(), "missing-dir", "summary.csv")
	var we *WriteError
	if err := (&Summary{Path: missing}).Write("Host", groups); !errors.As(err, &we) {
		t.Fatalf("expected WriteError, got %v", err)
	}
}
