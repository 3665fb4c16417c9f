package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/assembler"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/client"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/inspector"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/sink"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/source"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/summary"
	"github.com/Nao-Mk2/perf-log-consolidator/internal/util"

	"github.com/Nao-Mk2/perf-log-consolidator/cmd"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: perf-log-consolidator [--out NetworkSpeed.csv] [--append] [--group-key host|region|any] [--select <jmespath>] [--summary out.csv] <log-file>")
	fmt.Fprintln(os.Stderr, "       perf-log-consolidator --source cloudwatch --groups g1,g2 [--region us-east-1] [--start RFC3339] [--end RFC3339]")
	fmt.Fprintln(os.Stderr, "Log files ending in .gz or .zst are decompressed; - reads stdin.")
	fmt.Fprintln(os.Stderr, "Environment: PERF_LOG_OUTPUT, PERF_LOG_GROUP_KEY, PERF_LOG_LEVEL, LOG_GROUP_NAMES; AWS credentials from default sources.")
	os.Exit(2)
}

// lineSource is an assembler input that must be released after the run.
type lineSource interface {
	assembler.LineSource
	Close() error
}

type nopCloser struct{ assembler.LineSource }

func (nopCloser) Close() error { return nil }

func main() {
	// Parse flags/env and validate relationships
	opts := cmd.CollectOptions()
	if msg, code := opts.Validate(); code != 0 {
		if msg == "" {
			usage()
		}
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(code)
	}

	logger, _, err := cmd.NewLogger(os.Stderr, opts.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	format, _ := opts.Format()
	lookahead, _ := opts.LookaheadMode()
	logger.Debug("starting", "source", opts.Source, "group_key", format.GroupKey, "extended", format.Extended, "lookahead", lookahead)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src, err := openSource(ctx, opts, logger)
	if err != nil {
		var mie *source.MissingInputError
		if errors.As(err, &mie) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		var tpe *time.ParseError
		if errors.Is(err, cmd.ErrStartAfterEnd) || errors.As(err, &tpe) {
			fmt.Fprintf(os.Stderr, "invalid time window: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "source error: %v\n", err)
		os.Exit(1)
	}

	// Assemble all records before touching the destination
	asm := assembler.New(format, assembler.WithLookahead(lookahead), assembler.WithLogger(logger))
	var records []model.Record
	err = asm.Run(src, func(r model.Record) error {
		records = append(records, r)
		return nil
	})
	_ = src.Close()
	if err != nil {
		var pe *assembler.ParseError
		if errors.As(err, &pe) {
			logger.Error("metric parse failed", "line", pe.Line, "pattern", pe.Pattern, "text", pe.Text)
		}
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("records assembled", "records", len(records))

	selected, err := util.SelectRecords(format.GroupLabel(), records, opts.Select)
	if err != nil {
		fmt.Fprintf(os.Stderr, "select error: %v\n", err)
		os.Exit(1)
	}
	if opts.Select != "" {
		logger.Info("records selected", "expr", opts.Select, "records", len(selected))
	}

	layout := sink.Layout{GroupLabel: format.GroupLabel(), Columns: format.Columns()}
	if err := opts.Sink().Write(layout, selected); err != nil {
		logger.Error("write failed", "path", opts.Out, "err", err)
		fmt.Fprintf(os.Stderr, "Error writing data: %v\n", err)
		var we *sink.WriteError
		if errors.As(err, &we) && opts.Out != "-" {
			// Keep the parsed data: dump it where the user can still capture it
			fmt.Fprintf(os.Stderr, "writing %d records to stdout instead\n", len(selected))
			if err := sink.WriteCSV(os.Stdout, layout, selected, true); err != nil {
				fmt.Fprintf(os.Stderr, "stdout write error: %v\n", err)
			}
		}
		os.Exit(1)
	}
	if opts.Summary != "" {
		groups := summary.Summarize(selected, opts.SummaryPeriod(), time.Now())
		if err := (&sink.Summary{Path: opts.Summary}).Write(format.GroupLabel(), groups); err != nil {
			logger.Error("summary write failed", "path", opts.Summary, "err", err)
			fmt.Fprintf(os.Stderr, "Error writing summary: %v\n", err)
			os.Exit(1)
		}
		logger.Info("summary written", "path", opts.Summary, "groups", len(groups), "range", opts.SummaryPeriod())
	}
	if opts.Out != "-" {
		verb := "written to"
		if opts.Append {
			verb = "appended to"
		}
		fmt.Printf("Data has been %s %s\n", verb, opts.Out)
	}
}

// openSource returns the line source selected by --source.
func openSource(ctx context.Context, opts *cmd.Options, logger *slog.Logger) (lineSource, error) {
	if opts.Source == cmd.SourceFile {
		f, err := source.OpenFile(opts.LogPath)
		if err != nil {
			return nil, err
		}
		logger.Debug("reading log file", "path", opts.LogPath)
		return f, nil
	}

	groups := cmd.ParseGroupsCSV(opts.GroupsCSV)
	start, end, err := cmd.ResolveTimeWindow(opts.StartRFC3339, opts.EndRFC3339, time.Now())
	if err != nil {
		return nil, err
	}
	cw, err := client.NewCloudWatchClient(ctx, opts.AuthOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create CloudWatch client: %w", err)
	}

	insp := inspector.New(cw, groups, start, end)
	insp.SetWorkers(opts.Concurrency)
	events, err := insp.Search(ctx, opts.FilterPattern)
	if err != nil {
		return nil, fmt.Errorf("search error: %w", err)
	}
	if len(events) == 0 {
		logger.Warn("no log events found",
			"groups", groups,
			"start", start.UTC().Format(time.RFC3339),
			"end", end.UTC().Format(time.RFC3339))
	}
	logger.Debug("fetched log events", "events", len(events), "groups", len(groups))
	return nopCloser{source.NewCloudWatch(events)}, nil
}
