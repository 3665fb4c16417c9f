package inspector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
)

// GroupSearcher fetches the events of one log group.
// *client.CloudWatchClient implements it.
type GroupSearcher interface {
	SearchGroup(ctx context.Context, group, filterPattern string, startMs, endMs int64) ([]model.LogRecord, error)
}

// Inspector fetches benchmark logs across multiple CloudWatch log groups.
type Inspector struct {
	client    GroupSearcher
	groups    []string
	startTime time.Time
	endTime   time.Time
	workers   int
}

const defaultWorkers = 4

// New creates an Inspector.
func New(client GroupSearcher, groups []string, startTime, endTime time.Time) *Inspector {
	return &Inspector{client: client, groups: groups, startTime: startTime, endTime: endTime, workers: defaultWorkers}
}

// SetWorkers sets the number of concurrent group searches (minimum 1).
func (in *Inspector) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	in.workers = n
}

// Search fetches events matching filterPattern from every configured group.
// An empty pattern fetches all events. The first failing group aborts the
// search. Results are ordered by group, stream and timestamp.
func (in *Inspector) Search(ctx context.Context, filterPattern string) ([]model.LogRecord, error) {
	if len(in.groups) == 0 {
		return nil, errors.New("no log groups configured")
	}
	// CloudWatch Logs filter pattern treats special characters as token separators
	// unless the term is quoted. Quote the string to match the literal sequence.
	fp := filterPattern
	if fp != "" && !(len(fp) >= 2 && fp[0] == '"' && fp[len(fp)-1] == '"') {
		fp = "\"" + fp + "\""
	}
	startMs := in.startTime.UnixMilli()
	endMs := in.endTime.UnixMilli()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := in.workers
	if workers > len(in.groups) {
		workers = len(in.groups)
	}
	groupChan := make(chan string, len(in.groups))
	resultChan := make(chan []model.LogRecord, len(in.groups))
	errorChan := make(chan error, len(in.groups))

	for _, g := range in.groups {
		groupChan <- g
	}
	close(groupChan)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range groupChan {
				if ctx.Err() != nil {
					return
				}
				records, err := in.client.SearchGroup(ctx, group, fp, startMs, endMs)
				if err != nil {
					errorChan <- err
					cancel()
					return
				}
				resultChan <- records
			}
		}()
	}
	wg.Wait()
	close(resultChan)
	close(errorChan)

	if err := <-errorChan; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var allRecords []model.LogRecord
	for records := range resultChan {
		allRecords = append(allRecords, records...)
	}

	// Events that share a millisecond keep the order the API returned them in,
	// which is the order they were written to the stream.
	sort.SliceStable(allRecords, func(i, j int) bool {
		a, b := allRecords[i], allRecords[j]
		if a.LogGroup != b.LogGroup {
			return a.LogGroup < b.LogGroup
		}
		if a.LogStream != b.LogStream {
			return a.LogStream < b.LogStream
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	return allRecords, nil
}
