package source

import (
	"sort"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
)

// messageKeys are tried in order when a CloudWatch message is a JSON object
// written by a log agent.
var messageKeys = []string{"message", "log", "msg"}

// CloudWatch is a line source over fetched CloudWatch events. Events are
// replayed stream by stream so that one benchmark run is never interleaved
// with another.
type CloudWatch struct {
	lines []string
	cur   string
}

// NewCloudWatch orders records by log group, log stream and timestamp and
// splits their messages into lines. Records with equal timestamps keep
// their input order.
func NewCloudWatch(records []model.LogRecord) *CloudWatch {
	sorted := make([]model.LogRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.LogGroup != b.LogGroup {
			return a.LogGroup < b.LogGroup
		}
		if a.LogStream != b.LogStream {
			return a.LogStream < b.LogStream
		}
		return a.Timestamp.Before(b.Timestamp)
	})

	var p fastjson.Parser
	var lines []string
	for _, r := range sorted {
		msg := messageText(&p, r.Message)
		for _, line := range strings.Split(msg, "\n") {
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
	}
	return &CloudWatch{lines: lines}
}

// messageText unwraps JSON-encoded agent messages; anything else is
// returned unchanged.
func messageText(p *fastjson.Parser, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return strings.TrimSuffix(raw, "\n")
	}
	v, err := p.Parse(trimmed)
	if err != nil || v.Type() != fastjson.TypeObject {
		return strings.TrimSuffix(raw, "\n")
	}
	for _, k := range messageKeys {
		if f := v.Get(k); f != nil && f.Type() == fastjson.TypeString {
			return strings.TrimSuffix(string(f.GetStringBytes()), "\n")
		}
	}
	return strings.TrimSuffix(raw, "\n")
}

// Len returns the number of remaining lines.
func (c *CloudWatch) Len() int { return len(c.lines) }

func (c *CloudWatch) Scan() bool {
	if len(c.lines) == 0 {
		return false
	}
	c.cur, c.lines = c.lines[0], c.lines[1:]
	return true
}

func (c *CloudWatch) Text() string { return c.cur }

func (c *CloudWatch) Err() error { return nil }
