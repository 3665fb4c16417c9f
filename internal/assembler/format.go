package assembler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
)

// GroupKey selects which line identifies the test subject.
type GroupKey int

const (
	// GroupKeyHost matches "Machine: <name>" lines.
	GroupKeyHost GroupKey = iota
	// GroupKeyRegion matches "==========Beginning test to <name> Database==========" lines.
	GroupKeyRegion
	// GroupKeyAny accepts both forms.
	GroupKeyAny
)

func (g GroupKey) String() string {
	switch g {
	case GroupKeyHost:
		return "host"
	case GroupKeyRegion:
		return "region"
	case GroupKeyAny:
		return "any"
	}
	return fmt.Sprintf("GroupKey(%d)", int(g))
}

// LookaheadMode decides what happens to the line after a rate line when it
// is not a unit-pair line.
type LookaheadMode int

const (
	// LookaheadConsume drops the line.
	LookaheadConsume LookaheadMode = iota
	// LookaheadReprocess hands the line back to the main loop.
	LookaheadReprocess
)

func (m LookaheadMode) String() string {
	switch m {
	case LookaheadConsume:
		return "consume"
	case LookaheadReprocess:
		return "reprocess"
	}
	return fmt.Sprintf("LookaheadMode(%d)", int(m))
}

// ParseLookaheadMode parses "consume" or "reprocess".
func ParseLookaheadMode(s string) (LookaheadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "consume":
		return LookaheadConsume, nil
	case "reprocess":
		return LookaheadReprocess, nil
	}
	return 0, fmt.Errorf("invalid lookahead mode %q; expected consume or reprocess", s)
}

// Format describes one log format variant.
type Format struct {
	GroupKey GroupKey
	// Extended enables unit-pair lookahead and the MB/Mbits columns.
	Extended bool
}

var (
	// HostFormat is the iPerf log layout: Machine lines, basic columns.
	HostFormat = Format{GroupKey: GroupKeyHost}
	// RegionFormat is the database upload layout: region banners, extended columns.
	RegionFormat = Format{GroupKey: GroupKeyRegion, Extended: true}
)

// ParseFormat builds a Format from CLI values.
func ParseFormat(groupKey string, extended bool) (Format, error) {
	f := Format{Extended: extended}
	switch strings.ToLower(strings.TrimSpace(groupKey)) {
	case "host":
		f.GroupKey = GroupKeyHost
	case "region":
		f.GroupKey = GroupKeyRegion
	case "", "any":
		f.GroupKey = GroupKeyAny
	default:
		return Format{}, fmt.Errorf("invalid group key %q; expected host, region or any", groupKey)
	}
	return f, nil
}

// GroupLabel is the column header for the group key.
func (f Format) GroupLabel() string {
	if f.GroupKey == GroupKeyRegion {
		return "Region"
	}
	return "Host"
}

// Columns returns the output column order for f.
func (f Format) Columns() []string {
	return model.Columns(f.GroupLabel(), f.Extended)
}

var (
	hostPattern         = regexp.MustCompile(`Machine: (.+?)(?:\s|$)`)
	regionPattern       = regexp.MustCompile(`==========Beginning test to (.+?) Database==========`)
	timestampPattern    = regexp.MustCompile(`\w+,\s\w+\s\d+,\s\d+\s[\d:]+(?:\s[AP]M)?`)
	postTimePattern     = regexp.MustCompile(`Seconds to Post File: ([\d.]+)s`)
	downloadTimePattern = regexp.MustCompile(`Seconds to Download File: ([\d.]+)s`)
	postRatePattern     = regexp.MustCompile(`Post Directory rate: ([\d.]+) files/sec`)
	downloadRatePattern = regexp.MustCompile(`Download Directory rate: ([\d.]+) files/sec`)
	unitPairPattern     = regexp.MustCompile(`([\d.]+) MB/sec, ([\d.]+) Mbits/sec`)
)

func (f Format) groupPatterns() []*regexp.Regexp {
	switch f.GroupKey {
	case GroupKeyHost:
		return []*regexp.Regexp{hostPattern}
	case GroupKeyRegion:
		return []*regexp.Regexp{regionPattern}
	default:
		return []*regexp.Regexp{hostPattern, regionPattern}
	}
}
