package cmd

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/assembler"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/client"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/sink"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/summary"
)

// Source names accepted by --source.
const (
	SourceFile       = "file"
	SourceCloudWatch = "cloudwatch"
)

// DefaultOutput is the CSV written when --out is not given.
const DefaultOutput = "NetworkSpeed.csv"

// Options holds CLI options after parsing flags and env defaults.
type Options struct {
	LogPath      string
	Out          string
	Append       bool
	OutputFormat string
	PrettyJSON   bool
	GroupKey     string
	Extended     bool
	Lookahead    string
	Select       string
	LogLevel     string
	Summary      string
	SummaryRange string

	Source        string
	GroupsCSV     string
	Region        string
	Profile       string
	FilterPattern string
	StartRFC3339  string
	EndRFC3339    string
	Concurrency   int
}

// Validate checks relationships and required flags.
// Returns an error message and exit code; if the log path is missing for
// the file source, it returns ("", 2) and the caller should invoke usage().
func (o *Options) Validate() (string, int) {
	switch o.Source {
	case SourceFile:
		if o.LogPath == "" {
			// Caller prints usage() which exits(2)
			return "", 2
		}
	case SourceCloudWatch:
		if len(ParseGroupsCSV(o.GroupsCSV)) == 0 {
			return "error: --source cloudwatch requires --groups (or LOG_GROUP_NAMES)", 2
		}
	default:
		return fmt.Sprintf("error: unknown --source %q; expected file or cloudwatch", o.Source), 2
	}
	if o.OutputFormat != "csv" && o.OutputFormat != "json" {
		return fmt.Sprintf("error: unknown --output-format %q; expected csv or json", o.OutputFormat), 2
	}
	if o.PrettyJSON && o.OutputFormat != "json" {
		return "error: --pretty requires --output-format json", 2
	}
	if o.Append && o.OutputFormat != "csv" {
		return "error: --append requires --output-format csv", 2
	}
	if _, err := o.Format(); err != nil {
		return "error: " + err.Error(), 2
	}
	if _, err := o.LookaheadMode(); err != nil {
		return "error: " + err.Error(), 2
	}
	if _, err := summary.ParseRange(o.SummaryRange); err != nil {
		return "error: " + err.Error(), 2
	}
	if o.Summary != "" && o.Summary == o.Out && o.Out != "-" {
		return "error: --summary must differ from --out", 2
	}
	if _, err := ParseLogLevel(o.LogLevel); err != nil {
		return "error: " + err.Error(), 2
	}
	if CountFlagOccurrences("--out") > 1 {
		return "error: --out specified multiple times", 2
	}
	return "", 0
}

// Format returns the log format selected by --group-key and --extended.
func (o *Options) Format() (assembler.Format, error) {
	return assembler.ParseFormat(o.GroupKey, o.Extended)
}

// LookaheadMode returns the mode selected by --lookahead.
func (o *Options) LookaheadMode() (assembler.LookaheadMode, error) {
	return assembler.ParseLookaheadMode(o.Lookahead)
}

// AuthOptions returns the AWS settings for the CloudWatch source.
func (o *Options) AuthOptions() client.AuthOptions {
	return client.AuthOptions{Region: o.Region, Profile: o.Profile}
}

// SummaryPeriod returns the period selected by --summary-range.
func (o *Options) SummaryPeriod() summary.Range {
	r, _ := summary.ParseRange(o.SummaryRange)
	return r
}

// Sink builds the record sink for --out and --output-format.
func (o *Options) Sink() sink.Sink {
	if o.OutputFormat == "json" {
		return &sink.JSON{Path: o.Out, Pretty: o.PrettyJSON}
	}
	mode := sink.ModeOverwrite
	if o.Append {
		mode = sink.ModeAppend
	}
	return &sink.CSV{Path: o.Out, Mode: mode}
}

// CollectOptions parses flags with environment-backed defaults and returns Options.
func CollectOptions() *Options {
	out := DefaultOutput
	var appendFlag bool
	var outputFormat string
	var prettyJSON bool
	groupKey := "any"
	extended := true
	var lookahead string
	var selectExpr string
	logLevel := "info"
	var summaryPath string
	var summaryRange string
	var source string
	var groupsCSV string
	var region string
	var profileFlag string
	var filterPattern string
	var startStr string
	var endStr string
	concurrency := 4

	if v := os.Getenv("PERF_LOG_OUTPUT"); v != "" {
		out = v
	}
	if v := os.Getenv("PERF_LOG_GROUP_KEY"); v != "" {
		groupKey = v
	}
	if v := os.Getenv("PERF_LOG_LEVEL"); v != "" {
		logLevel = v
	}
	if v := os.Getenv("LOG_GROUP_NAMES"); v != "" {
		groupsCSV = v
	}
	if v := os.Getenv("PERF_LOG_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			concurrency = n
		}
	}

	flag.StringVar(&out, "out", out, "Output path; - for stdout (or set PERF_LOG_OUTPUT)")
	flag.BoolVar(&appendFlag, "append", false, "Append to the CSV output without repeating the header")
	flag.StringVar(&outputFormat, "output-format", "csv", "Output format: csv or json")
	flag.BoolVar(&prettyJSON, "pretty", false, "Pretty-print JSON output")
	flag.StringVar(&groupKey, "group-key", groupKey, "Group key line: host (Machine:), region (Beginning test to ... Database) or any")
	flag.BoolVar(&extended, "extended", extended, "Parse MB/sec, Mbits/sec lines after rate lines and emit their columns")
	flag.StringVar(&lookahead, "lookahead", "consume", "Line after a rate line that is not a unit pair: consume or reprocess")
	flag.StringVar(&selectExpr, "select", "", "JMESPath expression selecting records, e.g. [?Host=='alpha']")
	flag.StringVar(&summaryPath, "summary", "", "Also write per-group count, mean and stddev of rate columns as CSV; - for stdout")
	flag.StringVar(&summaryRange, "summary-range", "all", "Records included in --summary: all, today, week or month")
	flag.StringVar(&logLevel, "log-level", logLevel, "Log level: debug, info, warn or error (or set PERF_LOG_LEVEL)")
	flag.StringVar(&source, "source", SourceFile, "Line source: file or cloudwatch")
	flag.StringVar(&groupsCSV, "groups", groupsCSV, "Comma-separated CloudWatch log group names")
	flag.StringVar(&region, "region", os.Getenv("AWS_REGION"), "AWS region (optional; falls back to AWS defaults)")
	flag.StringVar(&profileFlag, "profile", "", "AWS shared config profile (or set AWS_PROFILE)")
	flag.StringVar(&filterPattern, "filter-pattern", "", "CloudWatch Logs filter pattern (optional)")
	flag.StringVar(&startStr, "start", "", "Start time RFC3339 (e.g., 2025-08-30T15:04:05Z)")
	flag.StringVar(&endStr, "end", "", "End time RFC3339 (e.g., 2025-08-31T15:04:05Z)")
	flag.IntVar(&concurrency, "concurrency", concurrency, "Concurrent CloudWatch group searches")
	flag.Parse()

	return &Options{
		LogPath:       flag.Arg(0),
		Out:           out,
		Append:        appendFlag,
		OutputFormat:  strings.ToLower(outputFormat),
		PrettyJSON:    prettyJSON,
		GroupKey:      groupKey,
		Extended:      extended,
		Lookahead:     lookahead,
		Select:        selectExpr,
		LogLevel:      logLevel,
		Summary:       summaryPath,
		SummaryRange:  summaryRange,
		Source:        strings.ToLower(source),
		GroupsCSV:     groupsCSV,
		Region:        region,
		Profile:       profileFlag,
		FilterPattern: filterPattern,
		StartRFC3339:  startStr,
		EndRFC3339:    endStr,
		Concurrency:   concurrency,
	}
}

// ParseGroupsCSV turns a comma-separated groups string into slice, trimming empties.
func ParseGroupsCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var groups []string
	for _, g := range strings.Split(csv, ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// ResolveTimeWindow computes the [start,end] from optional RFC3339 strings.
// Rules:
// - both empty: last 24h ending at now
// - only start: end = now
// - only end: start = end - 24h
// - both set: validate start <= end
func ResolveTimeWindow(startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	if startStr == "" && endStr == "" {
		return now.Add(-24 * time.Hour), now, nil
	}
	var start time.Time
	var end time.Time
	var err error
	if startStr != "" {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if startStr != "" && endStr == "" {
		end = now
	} else if startStr == "" && endStr != "" {
		start = end.Add(-24 * time.Hour)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrStartAfterEnd
	}
	return start, end, nil
}

// ErrStartAfterEnd represents an invalid time window where start > end.
var ErrStartAfterEnd = &timeRangeError{"start is after end"}

type timeRangeError struct{ s string }

func (e *timeRangeError) Error() string { return e.s }

// CountFlagOccurrences counts how many times a long flag (e.g., "--out") appears
// considering "--flag value", "--flag=value" and the single-dash forms.
func CountFlagOccurrences(flagName string) int {
	name := strings.TrimLeft(flagName, "-")
	forms := []string{"-" + name, "--" + name}
	count := 0
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		for _, f := range forms {
			if a == f {
				count++
				// Skip value if present and not another flag
				if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
					i++
				}
				break
			}
			if strings.HasPrefix(a, f+"=") {
				count++
				break
			}
		}
	}
	return count
}
