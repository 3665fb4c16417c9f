// Package assembler turns benchmark log lines into consolidated test records.
//
// Lines are consumed in a single forward pass. A mutable accumulator is
// filled as group-key, timestamp and metric lines are seen, and copied out
// whenever a test block completes or the timestamp changes.
package assembler

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
)

// LineSource is satisfied by *bufio.Scanner.
type LineSource interface {
	Scan() bool
	Text() string
	Err() error
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLookahead sets how a non-matching line after a rate line is handled.
func WithLookahead(m LookaheadMode) Option {
	return func(a *Assembler) { a.lookahead = m }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// Assembler holds the configuration for assembly runs. It keeps no state
// between runs and may be reused.
type Assembler struct {
	format    Format
	lookahead LookaheadMode
	logger    *slog.Logger
}

// New creates an Assembler for the given format.
func New(format Format, opts ...Option) *Assembler {
	a := &Assembler{
		format:    format,
		lookahead: LookaheadConsume,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Format returns the format the assembler was built with.
func (a *Assembler) Format() Format { return a.format }

// Assemble runs a new Assembler over an in-memory slice of lines and
// returns every emitted record.
func Assemble(format Format, lines []string, opts ...Option) ([]model.Record, error) {
	var out []model.Record
	err := New(format, opts...).Run(&sliceSource{lines: lines}, func(r model.Record) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// Run reads src to the end and calls emit for each completed record, in
// order. Processing stops at the first ParseError or emit error. After the
// final flush, the error reported by src.Err, if any, is returned.
func (a *Assembler) Run(src LineSource, emit func(model.Record) error) error {
	r := &run{
		Assembler: a,
		src:       src,
		emit:      emit,
		groups:    a.format.groupPatterns(),
	}
	for {
		line, no, ok := r.next()
		if !ok {
			break
		}
		if err := r.process(line, no); err != nil {
			return err
		}
	}
	if err := r.flush(); err != nil {
		return err
	}
	a.logger.Debug("assembly finished", "lines", r.lineNo, "records", r.emitted)
	if err := src.Err(); err != nil {
		return fmt.Errorf("read lines: %w", err)
	}
	return nil
}

// run is the per-call state: the accumulator and the lookahead buffer.
type run struct {
	*Assembler
	src    LineSource
	emit   func(model.Record) error
	groups []*regexp.Regexp

	acc     model.Record
	lineNo  int
	emitted int

	pending    string
	pendingNo  int
	hasPending bool
}

func (r *run) next() (string, int, bool) {
	if r.hasPending {
		r.hasPending = false
		return r.pending, r.pendingNo, true
	}
	if !r.src.Scan() {
		return "", 0, false
	}
	r.lineNo++
	return r.src.Text(), r.lineNo, true
}

func (r *run) pushBack(line string, no int) {
	r.pending, r.pendingNo, r.hasPending = line, no, true
}

func (r *run) process(line string, no int) error {
	for _, p := range r.groups {
		if m := p.FindStringSubmatch(line); m != nil {
			r.acc.GroupKey = strings.TrimSpace(m[1])
			break
		}
	}

	if ts := timestampPattern.FindString(line); ts != "" {
		if r.acc.Timestamp != "" && r.acc.Timestamp != ts {
			if err := r.flush(); err != nil {
				return err
			}
			r.acc.ClearMetrics()
		}
		r.acc.Timestamp = ts
	}

	postTime := postTimePattern.FindStringSubmatch(line)
	downloadTime := downloadTimePattern.FindStringSubmatch(line)
	postRate := postRatePattern.FindStringSubmatch(line)
	downloadRate := downloadRatePattern.FindStringSubmatch(line)

	if postTime != nil {
		if err := r.store(model.PostTimeSeconds, "post time", postTime[1], no); err != nil {
			return err
		}
	}
	if downloadTime != nil {
		if err := r.store(model.DownloadTimeSeconds, "download time", downloadTime[1], no); err != nil {
			return err
		}
	}
	if postRate != nil {
		if err := r.store(model.PostRateFilesPerSec, "post rate", postRate[1], no); err != nil {
			return err
		}
		if err := r.unitPair(model.PostRateMBPerSec, model.PostRateMbitsPerSec); err != nil {
			return err
		}
	}
	if downloadRate != nil {
		if err := r.store(model.DownloadRateFilesPerSec, "download rate", downloadRate[1], no); err != nil {
			return err
		}
		if err := r.unitPair(model.DownloadRateMBPerSec, model.DownloadRateMbitsPerSec); err != nil {
			return err
		}
	}

	if r.acc.HasPrimaryMetrics() {
		if err := r.flush(); err != nil {
			return err
		}
		r.acc.ClearMetrics()
	}
	return nil
}

// unitPair pulls the line after a rate line and stores its MB/Mbits pair.
func (r *run) unitPair(mb, mbits model.Metric) error {
	if !r.format.Extended {
		return nil
	}
	line, no, ok := r.next()
	if !ok {
		return nil
	}
	m := unitPairPattern.FindStringSubmatch(line)
	if m == nil {
		if r.lookahead == LookaheadReprocess {
			r.pushBack(line, no)
			return nil
		}
		r.logger.Debug("discarding line after rate line", "line", no, "text", line)
		return nil
	}
	if err := r.store(mb, "unit pair MB/sec", m[1], no); err != nil {
		return err
	}
	return r.store(mbits, "unit pair Mbits/sec", m[2], no)
}

func (r *run) store(m model.Metric, pattern, text string, no int) error {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return &ParseError{Line: no, Pattern: pattern, Text: text, Err: err}
	}
	r.acc.Set(m, v)
	return nil
}

// flush emits the accumulator if it carries at least one metric.
func (r *run) flush() error {
	if !r.acc.HasAnyMetric() {
		return nil
	}
	if err := r.emit(r.acc); err != nil {
		return err
	}
	r.emitted++
	r.logger.Debug("record emitted", "group", r.acc.GroupKey, "timestamp", r.acc.Timestamp, "line", r.lineNo)
	return nil
}

type sliceSource struct {
	lines []string
	cur   string
}

func (s *sliceSource) Scan() bool {
	if len(s.lines) == 0 {
		return false
	}
	s.cur, s.lines = s.lines[0], s.lines[1:]
	return true
}

func (s *sliceSource) Text() string { return s.cur }
func (s *sliceSource) Err() error   { return nil }
