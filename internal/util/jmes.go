package util

import (
	"fmt"
	"strings"

	"github.com/jmespath/go-jmespath"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
)

// SelectRecords evaluates a JMESPath expression against the records, viewed
// as an array of column-keyed objects (absent values are null), and returns
// the records the expression yields, e.g. "[?Host=='alpha']".
// The result must be an array of objects; object keys that are not columns
// are ignored. An empty expression returns records unchanged.
func SelectRecords(groupLabel string, records []model.Record, jmes string) ([]model.Record, error) {
	if strings.TrimSpace(jmes) == "" {
		return records, nil
	}
	input := make([]any, 0, len(records))
	for _, r := range records {
		input = append(input, r.ToMap(groupLabel))
	}
	res, err := jmespath.Search(jmes, input)
	if err != nil {
		return nil, fmt.Errorf("jmespath search failed: %w", err)
	}
	if isEmpty(res) {
		return nil, nil
	}
	items, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("jmespath result is %T, want an array of records", res)
	}
	out := make([]model.Record, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("jmespath result element %d is %T, want an object", i, it)
		}
		out = append(out, model.RecordFromMap(groupLabel, obj))
	}
	return out, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if t, ok := v.([]any); ok {
		return len(t) == 0
	}
	return false
}
