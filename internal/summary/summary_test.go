package summary

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
)

func rec(key, ts string, postMB, postFiles float64) model.Record {
	var r model.Record
	r.GroupKey = key
	r.Timestamp = ts
	r.Set(model.PostRateMBPerSec, postMB)
	r.Set(model.PostRateFilesPerSec, postFiles)
	return r
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"", RangeAll, false},
		{"all", RangeAll, false},
		{"Today", RangeToday, false},
		{"week", RangeWeek, false},
		{" month ", RangeMonth, false},
		{"year", RangeAll, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRangeContains(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rng  Range
		t    time.Time
		want bool
	}{
		{"today same day", RangeToday, time.Date(2024, time.March, 15, 0, 5, 0, 0, time.UTC), true},
		{"today yesterday", RangeToday, time.Date(2024, time.March, 14, 23, 59, 0, 0, time.UTC), false},
		{"week inside", RangeWeek, time.Date(2024, time.March, 8, 0, 0, 1, 0, time.UTC), true},
		{"week boundary", RangeWeek, time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC), false},
		{"month inside", RangeMonth, time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC), true},
		{"month outside", RangeMonth, time.Date(2024, time.February, 14, 0, 0, 0, 0, time.UTC), false},
		{"all old", RangeAll, time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rng.Contains(tt.t, now); got != tt.want {
				t.Fatalf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, time.January, 1, 22, 5, 9, 0, time.UTC)
	for _, s := range []string{"Monday, January 1, 2024 10:05:09 PM", "Monday, January 1, 2024 22:05:09"} {
		got, ok := ParseTimestamp(s, time.UTC)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseTimestamp(%q) = %v, %v; want %v", s, got, ok, want)
		}
	}
	if _, ok := ParseTimestamp("yesterday", time.UTC); ok {
		t.Fatalf("expected unparseable timestamp to fail")
	}
}

func TestSummarize(t *testing.T) {
	records := []model.Record{
		rec("us-east-1", "Monday, January 1, 2024 10:00:00 AM", 10, 4),
		rec("us-east-1", "Monday, January 1, 2024 11:00:00 AM", 20, 6),
		rec("eu-west-1", "Monday, January 1, 2024 10:00:00 AM", 7.5, 3),
		{GroupKey: ""},
	}
	groups := Summarize(records, RangeAll, time.Now())
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d: %+v", len(groups), groups)
	}
	if groups[0].Key != UnknownGroup || groups[1].Key != "eu-west-1" || groups[2].Key != "us-east-1" {
		t.Fatalf("unexpected group order: %+v", groups)
	}

	us := groups[2]
	if us.Records != 2 {
		t.Fatalf("us-east-1 records = %d, want 2", us.Records)
	}
	mb := us.Stats[2]
	if mb.N != 2 || mb.Mean != 15 || math.Abs(mb.StdDev-math.Sqrt(50)) > 1e-9 {
		t.Fatalf("post MB/sec stat = %+v", mb)
	}
	if us.Stats[1].N != 0 {
		t.Fatalf("download files/sec should have no values: %+v", us.Stats[1])
	}

	eu := groups[1].Stats[0]
	if eu.N != 1 || eu.Mean != 3 || eu.StdDev != 0 {
		t.Fatalf("single value stat = %+v", eu)
	}
	if groups[0].Records != 1 || groups[0].Stats[0].N != 0 {
		t.Fatalf("unknown group = %+v", groups[0])
	}
}

func TestSummarizeRangeSkipsOldAndUnparsed(t *testing.T) {
	now := time.Date(2024, time.January, 3, 12, 0, 0, 0, time.UTC)
	records := []model.Record{
		rec("alpha", "Wednesday, January 3, 2024 9:00:00 AM", 10, 1),
		rec("alpha", "Monday, January 1, 2024 9:00:00 AM", 30, 1),
		rec("alpha", "", 50, 1),
	}
	groups := Summarize(records, RangeToday, now)
	if len(groups) != 1 || groups[0].Records != 1 || groups[0].Stats[2].Mean != 10 {
		t.Fatalf("today summary = %+v", groups)
	}
	if all := Summarize(records, RangeAll, now); all[0].Records != 3 {
		t.Fatalf("all summary = %+v", all)
	}
}

func TestWriteCSV(t *testing.T) {
	records := []model.Record{
		rec("alpha", "", 10, 4),
		rec("alpha", "", 20, 6),
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, "Host", Summarize(records, RangeAll, time.Now())); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "Host,Records," +
		"Post_Rate_Files_per_Sec_Count,Post_Rate_Files_per_Sec_Mean,Post_Rate_Files_per_Sec_StdDev," +
		"Download_Rate_Files_per_Sec_Count,Download_Rate_Files_per_Sec_Mean,Download_Rate_Files_per_Sec_StdDev," +
		"Post_Rate_MB_per_Sec_Count,Post_Rate_MB_per_Sec_Mean,Post_Rate_MB_per_Sec_StdDev," +
		"Download_Rate_MB_per_Sec_Count,Download_Rate_MB_per_Sec_Mean,Download_Rate_MB_per_Sec_StdDev\n" +
		"alpha,2,2,5.000,1.414,0,,,2,15.000,7.071,0,,\n"
	if buf.String() != want {
		t.Fatalf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
}
