package model

// Metric identifies one numeric field of a Record.
type Metric int

const (
	PostTimeSeconds Metric = iota
	DownloadTimeSeconds
	PostRateFilesPerSec
	DownloadRateFilesPerSec
	PostRateMBPerSec
	PostRateMbitsPerSec
	DownloadRateMBPerSec
	DownloadRateMbitsPerSec

	numMetrics
)

// PrimaryMetrics must all be present for a test block to be complete.
var PrimaryMetrics = []Metric{
	PostTimeSeconds,
	DownloadTimeSeconds,
	PostRateFilesPerSec,
	DownloadRateFilesPerSec,
}

// SecondaryMetrics come from the unit-pair line following a rate line.
var SecondaryMetrics = []Metric{
	PostRateMBPerSec,
	PostRateMbitsPerSec,
	DownloadRateMBPerSec,
	DownloadRateMbitsPerSec,
}

var metricColumns = [numMetrics]string{
	PostTimeSeconds:         "Post_Time_Seconds",
	DownloadTimeSeconds:     "Download_Time_Seconds",
	PostRateFilesPerSec:     "Post_Rate_Files_per_Sec",
	DownloadRateFilesPerSec: "Download_Rate_Files_per_Sec",
	PostRateMBPerSec:        "Post_Rate_MB_per_Sec",
	PostRateMbitsPerSec:     "Post_Rate_Mbits_per_Sec",
	DownloadRateMBPerSec:    "Download_Rate_MB_per_Sec",
	DownloadRateMbitsPerSec: "Download_Rate_Mbits_per_Sec",
}

// TimestampColumn is the column name of Record.Timestamp.
const TimestampColumn = "Timestamp"

// Column returns the output column name, e.g. "Post_Time_Seconds".
func (m Metric) Column() string {
	if m < 0 || m >= numMetrics {
		return ""
	}
	return metricColumns[m]
}

func (m Metric) String() string { return m.Column() }

// MetricByColumn looks up a metric by its column name.
func MetricByColumn(column string) (Metric, bool) {
	for m, c := range metricColumns {
		if c == column {
			return Metric(m), true
		}
	}
	return 0, false
}

// Record is one consolidated transfer test. The zero value has no group
// key, no timestamp and no metrics. Records are plain values: assigning or
// appending one copies every field.
type Record struct {
	GroupKey  string
	Timestamp string

	values  [numMetrics]float64
	present [numMetrics]bool
}

// Get returns the metric value and whether it was set.
func (r *Record) Get(m Metric) (float64, bool) {
	if m < 0 || m >= numMetrics {
		return 0, false
	}
	return r.values[m], r.present[m]
}

// Set stores v for m, overwriting any previous value.
func (r *Record) Set(m Metric, v float64) {
	if m < 0 || m >= numMetrics {
		return
	}
	r.values[m] = v
	r.present[m] = true
}

// Clear removes the value of m.
func (r *Record) Clear(m Metric) {
	if m < 0 || m >= numMetrics {
		return
	}
	r.values[m] = 0
	r.present[m] = false
}

// ClearMetrics removes every metric, keeping group key and timestamp.
func (r *Record) ClearMetrics() {
	r.values = [numMetrics]float64{}
	r.present = [numMetrics]bool{}
}

// HasAnyMetric reports whether at least one metric is set.
func (r *Record) HasAnyMetric() bool {
	for _, p := range r.present {
		if p {
			return true
		}
	}
	return false
}

// HasPrimaryMetrics reports whether all four primary metrics are set.
func (r *Record) HasPrimaryMetrics() bool {
	for _, m := range PrimaryMetrics {
		if !r.present[m] {
			return false
		}
	}
	return true
}

// Columns returns the fixed output column order. groupLabel is "Host" or
// "Region"; extended adds the four secondary unit columns.
func Columns(groupLabel string, extended bool) []string {
	cols := []string{groupLabel, TimestampColumn}
	for _, m := range PrimaryMetrics {
		cols = append(cols, m.Column())
	}
	if extended {
		for _, m := range SecondaryMetrics {
			cols = append(cols, m.Column())
		}
	}
	return cols
}

// ToMap returns the record keyed by column name. Absent values map to nil.
func (r *Record) ToMap(groupLabel string) map[string]any {
	out := make(map[string]any, int(numMetrics)+2)
	out[groupLabel] = optionalString(r.GroupKey)
	out[TimestampColumn] = optionalString(r.Timestamp)
	for m := Metric(0); m < numMetrics; m++ {
		if v, ok := r.Get(m); ok {
			out[m.Column()] = v
		} else {
			out[m.Column()] = nil
		}
	}
	return out
}

// RecordFromMap is the inverse of ToMap. Unknown keys are ignored; numeric
// values may be float64 or int.
func RecordFromMap(groupLabel string, in map[string]any) Record {
	var r Record
	if s, ok := in[groupLabel].(string); ok {
		r.GroupKey = s
	}
	if s, ok := in[TimestampColumn].(string); ok {
		r.Timestamp = s
	}
	for k, v := range in {
		m, ok := MetricByColumn(k)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			r.Set(m, n)
		case int:
			r.Set(m, float64(n))
		}
	}
	return r
}

func optionalString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
