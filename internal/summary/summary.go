// Package summary aggregates consolidated records per host or region.
package summary

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
)

// UnknownGroup is the key of records that never saw a group-key line.
const UnknownGroup = "Unknown"

// Metrics are the throughput columns summarized per group.
var Metrics = []model.Metric{
	model.PostRateFilesPerSec,
	model.DownloadRateFilesPerSec,
	model.PostRateMBPerSec,
	model.DownloadRateMBPerSec,
}

// Range restricts a summary to records from a recent period.
type Range int

const (
	RangeAll Range = iota
	RangeToday
	RangeWeek
	RangeMonth
)

func (r Range) String() string {
	switch r {
	case RangeToday:
		return "today"
	case RangeWeek:
		return "week"
	case RangeMonth:
		return "month"
	}
	return "all"
}

// ParseRange accepts all, today, week or month. Empty means all.
func ParseRange(s string) (Range, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return RangeAll, nil
	case "today":
		return RangeToday, nil
	case "week":
		return RangeWeek, nil
	case "month":
		return RangeMonth, nil
	}
	return RangeAll, fmt.Errorf("invalid summary range %q; expected all, today, week or month", s)
}

// Contains reports whether t falls in the range as seen at now. Week and
// month start at midnight seven days or one calendar month before today.
func (r Range) Contains(t, now time.Time) bool {
	y, m, d := now.Date()
	loc := now.Location()
	switch r {
	case RangeToday:
		ty, tm, td := t.In(loc).Date()
		return ty == y && tm == m && td == d
	case RangeWeek:
		return t.After(time.Date(y, m, d-7, 0, 0, 0, 0, loc))
	case RangeMonth:
		return t.After(time.Date(y, m-1, d, 0, 0, 0, 0, loc))
	}
	return true
}

var timestampLayouts = []string{
	"Monday, January 2, 2006 3:04:05 PM",
	"Monday, January 2, 2006 15:04:05",
}

// ParseTimestamp parses a record timestamp such as
// "Monday, January 1, 2024 10:00:00 AM" in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Stat describes the present values of one metric in a group.
type Stat struct {
	N      int
	Mean   float64
	StdDev float64
}

// Group is the summary of all records sharing a group key.
type Group struct {
	Key     string
	Records int
	// Stats is indexed like Metrics.
	Stats []Stat
}

// Summarize groups records by key and computes the mean and sample
// standard deviation of each summarized metric. Outside RangeAll, records
// whose timestamp is missing or unparseable are skipped. Groups are
// returned sorted by key.
func Summarize(records []model.Record, rng Range, now time.Time) []Group {
	type samples struct {
		records int
		values  [][]float64
	}
	byKey := make(map[string]*samples)
	for i := range records {
		r := &records[i]
		if rng != RangeAll {
			t, ok := ParseTimestamp(r.Timestamp, now.Location())
			if !ok || !rng.Contains(t, now) {
				continue
			}
		}
		key := r.GroupKey
		if key == "" {
			key = UnknownGroup
		}
		s := byKey[key]
		if s == nil {
			s = &samples{values: make([][]float64, len(Metrics))}
			byKey[key] = s
		}
		s.records++
		for j, m := range Metrics {
			if v, ok := r.Get(m); ok {
				s.values[j] = append(s.values[j], v)
			}
		}
	}

	groups := make([]Group, 0, len(byKey))
	for key, s := range byKey {
		g := Group{Key: key, Records: s.records, Stats: make([]Stat, len(Metrics))}
		for j, vs := range s.values {
			g.Stats[j] = describe(vs)
		}
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

func describe(vs []float64) Stat {
	switch len(vs) {
	case 0:
		return Stat{}
	case 1:
		return Stat{N: 1, Mean: vs[0]}
	}
	mean, std := stat.MeanStdDev(vs, nil)
	return Stat{N: len(vs), Mean: mean, StdDev: std}
}

// Columns returns the summary header for the given group label.
func Columns(groupLabel string) []string {
	cols := []string{groupLabel, "Records"}
	for _, m := range Metrics {
		c := m.Column()
		cols = append(cols, c+"_Count", c+"_Mean", c+"_StdDev")
	}
	return cols
}

// WriteCSV writes groups with a header row. Mean and standard deviation
// of a metric with no values are empty cells.
func WriteCSV(w io.Writer, groupLabel string, groups []Group) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(groupLabel)); err != nil {
		return err
	}
	for _, g := range groups {
		row := []string{g.Key, strconv.Itoa(g.Records)}
		for _, s := range g.Stats {
			mean, std := "", ""
			if s.N > 0 {
				mean = strconv.FormatFloat(s.Mean, 'f', 3, 64)
				std = strconv.FormatFloat(s.StdDev, 'f', 3, 64)
			}
			row = append(row, strconv.Itoa(s.N), mean, std)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
