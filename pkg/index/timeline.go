package index

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/memory"
)

// BucketSize is a fixed bucket width for timeline aggregation.
type BucketSize string

// Supported bucket sizes.
const (
	BucketHour  BucketSize = "1h"
	BucketDay   BucketSize = "1d"
	BucketWeek  BucketSize = "1w"
	BucketMonth BucketSize = "1m"
)

// DefaultTimelineWindow is the look-back used when no start time is given.
const DefaultTimelineWindow = 30 * 24 * time.Hour

// ParseBucketSize validates a bucket size string.
func ParseBucketSize(s string) (BucketSize, error) {
	switch BucketSize(s) {
	case BucketHour, BucketDay, BucketWeek, BucketMonth:
		return BucketSize(s), nil
	default:
		return "", errors.New(errors.ErrCodeInvalidBucket, "unknown bucket size: %q", s)
	}
}

// AlignDown returns the natural UTC boundary at or before t: the hour for 1h,
// midnight for 1d, Monday 00:00 for 1w, first-of-month 00:00 for 1m.
func (b BucketSize) AlignDown(t time.Time) time.Time {
	t = t.UTC()
	switch b {
	case BucketHour:
		return t.Truncate(time.Hour)
	case BucketDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case BucketWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// time.Weekday counts Sunday as 0; shift so Monday is the boundary.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour)
	}
}

// Next returns the start of the bucket after the one starting at aligned.
func (b BucketSize) Next(aligned time.Time) time.Time {
	switch b {
	case BucketHour:
		return aligned.Add(time.Hour)
	case BucketDay:
		return aligned.AddDate(0, 0, 1)
	case BucketWeek:
		return aligned.AddDate(0, 0, 7)
	case BucketMonth:
		return aligned.AddDate(0, 1, 0)
	default:
		return aligned.Add(time.Hour)
	}
}

// Bucket is one aggregated interval. Start keys the bucket; the interval
// runs to the next bucket's start.
type Bucket struct {
	Start time.Time `json:"bucket_start"`
	Count int       `json:"count"`
}

// TimelineQuery selects nodes and buckets for a time range.
type TimelineQuery struct {
	// Start and End bound the range [Start, End). A zero End defaults to
	// now; a zero Start defaults to End minus DefaultTimelineWindow.
	Start time.Time
	End   time.Time

	Size  BucketSize
	Scope memory.Scope
	Type  string
}

// TimelineResult holds the full matching node set and the contiguous bucket
// coverage. Total always equals both the bucket sum and len(Nodes).
type TimelineResult struct {
	Nodes   []memory.GraphNode
	Buckets []Bucket
	Start   time.Time
	End     time.Time
	Total   int
}

// Timeline aggregates node creation times into aligned buckets.
//
// The buckets contiguously cover [start, end) with no gaps; empty buckets
// are emitted with a zero count. Only non-tombstoned nodes with created_at
// in range are counted.
func (ix *Index) Timeline(ctx context.Context, q TimelineQuery) (TimelineResult, error) {
	if _, err := ParseBucketSize(string(q.Size)); err != nil {
		return TimelineResult{}, err
	}

	end := q.End
	if end.IsZero() {
		end = ix.clk.Now()
	}
	start := q.Start
	if start.IsZero() {
		start = end.Add(-DefaultTimelineWindow)
	}
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return TimelineResult{}, errors.New(errors.ErrCodeValidation,
			"timeline start %s is not before end %s", start, end)
	}

	nodes, err := ix.store.List(ctx, memory.ListOptions{Scope: q.Scope, Type: q.Type})
	if err != nil {
		return TimelineResult{}, err
	}

	var inRange []memory.GraphNode
	for _, n := range nodes {
		created := n.CreatedAt.UTC()
		if !created.Before(start) && created.Before(end) {
			inRange = append(inRange, n)
		}
	}
	slices.SortFunc(inRange, func(a, b memory.GraphNode) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	// Boundaries cover the range: the first bucket is aligned at or before
	// start, the last one contains end-1.
	var buckets []Bucket
	for cur := q.Size.AlignDown(start); cur.Before(end); cur = q.Size.Next(cur) {
		buckets = append(buckets, Bucket{Start: cur})
	}

	for _, n := range inRange {
		created := n.CreatedAt.UTC()
		i := slices.IndexFunc(buckets, func(b Bucket) bool {
			return !created.Before(b.Start) && created.Before(q.Size.Next(b.Start))
		})
		if i >= 0 {
			buckets[i].Count++
		}
	}

	return TimelineResult{
		Nodes:   inRange,
		Buckets: buckets,
		Start:   start,
		End:     end,
		Total:   len(inRange),
	}, nil
}
