package index

import (
	"context"
	"testing"
	"time"

	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/memory"
)

func TestParseBucketSize(t *testing.T) {
	for _, valid := range []string{"1h", "1d", "1w", "1m"} {
		if _, err := ParseBucketSize(valid); err != nil {
			t.Errorf("ParseBucketSize(%q) err = %v", valid, err)
		}
	}
	if _, err := ParseBucketSize("2h"); !errors.Is(err, errors.ErrCodeInvalidBucket) {
		t.Errorf("ParseBucketSize(2h) err = %v, want INVALID_BUCKET_SIZE", err)
	}
}

func TestAlignDown(t *testing.T) {
	// 2026-08-19 is a Wednesday.
	ts := time.Date(2026, 8, 19, 14, 37, 12, 0, time.UTC)

	tests := []struct {
		size BucketSize
		want time.Time
	}{
		{size: BucketHour, want: time.Date(2026, 8, 19, 14, 0, 0, 0, time.UTC)},
		{size: BucketDay, want: time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)},
		{size: BucketWeek, want: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)}, // Monday
		{size: BucketMonth, want: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.size), func(t *testing.T) {
			if got := tt.size.AlignDown(ts); !got.Equal(tt.want) {
				t.Errorf("AlignDown() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlignDownWeekOnMonday(t *testing.T) {
	// Already Monday midnight: alignment is a fixpoint.
	monday := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	if got := BucketWeek.AlignDown(monday); !got.Equal(monday) {
		t.Errorf("AlignDown(monday) = %v, want %v", got, monday)
	}

	// Sunday aligns back six days.
	sunday := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	if got := BucketWeek.AlignDown(sunday); !got.Equal(monday) {
		t.Errorf("AlignDown(sunday) = %v, want %v", got, monday)
	}
}

func TestNext(t *testing.T) {
	jan31 := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		size BucketSize
		from time.Time
		want time.Time
	}{
		{size: BucketHour, from: jan31, want: jan31.Add(time.Hour)},
		{size: BucketDay, from: jan31, want: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{size: BucketWeek, from: jan31, want: time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)},
		{
			size: BucketMonth,
			from: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.size), func(t *testing.T) {
			if got := tt.size.Next(tt.from); !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimelineContiguousCoverage(t *testing.T) {
	ix, store, clk := newTestIndex(t, nil)
	ctx := context.Background()

	// Three nodes over three days, with a gap day in between.
	base := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	clk.Set(base)
	seed(t, store, memory.GraphNode{ID: "a", Type: "concept", Scope: memory.ScopeLocal})
	clk.Set(base.AddDate(0, 0, 2))
	seed(t, store, memory.GraphNode{ID: "b", Type: "concept", Scope: memory.ScopeLocal})
	seed(t, store, memory.GraphNode{ID: "c", Type: "concept", Scope: memory.ScopeLocal})

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)
	res, err := ix.Timeline(ctx, TimelineQuery{Start: start, End: end, Size: BucketDay})
	if err != nil {
		t.Fatalf("Timeline() err = %v", err)
	}

	if len(res.Buckets) != 3 {
		t.Fatalf("Buckets = %d, want 3 (contiguous days)", len(res.Buckets))
	}
	for i, b := range res.Buckets {
		want := start.AddDate(0, 0, i)
		if !b.Start.Equal(want) {
			t.Errorf("bucket[%d].Start = %v, want %v", i, b.Start, want)
		}
	}

	counts := []int{res.Buckets[0].Count, res.Buckets[1].Count, res.Buckets[2].Count}
	if counts[0] != 1 || counts[1] != 0 || counts[2] != 2 {
		t.Errorf("counts = %v, want [1 0 2]", counts)
	}

	sum := counts[0] + counts[1] + counts[2]
	if sum != res.Total || res.Total != len(res.Nodes) {
		t.Errorf("sum %d, Total %d, len(Nodes) %d must all agree", sum, res.Total, len(res.Nodes))
	}
}

func TestTimelineDefaultsAndValidation(t *testing.T) {
	ix, store, clk := newTestIndex(t, nil)
	ctx := context.Background()

	seed(t, store, memory.GraphNode{ID: "recent", Type: "concept", Scope: memory.ScopeLocal})
	clk.Advance(time.Hour)

	// Zero start/end default to the trailing window ending now.
	res, err := ix.Timeline(ctx, TimelineQuery{Size: BucketDay})
	if err != nil {
		t.Fatalf("Timeline() err = %v", err)
	}
	if res.Total != 1 {
		t.Errorf("Total = %d, want 1", res.Total)
	}
	if !res.End.Equal(clk.Now()) {
		t.Errorf("End = %v, want %v", res.End, clk.Now())
	}
	if !res.Start.Equal(res.End.Add(-DefaultTimelineWindow)) {
		t.Errorf("Start = %v, want End minus default window", res.Start)
	}

	// Inverted range.
	_, err = ix.Timeline(ctx, TimelineQuery{
		Start: clk.Now(),
		End:   clk.Now().Add(-time.Hour),
		Size:  BucketHour,
	})
	if !errors.Is(err, errors.ErrCodeValidation) {
		t.Errorf("inverted range err = %v, want VALIDATION_ERROR", err)
	}

	// Unknown bucket size.
	_, err = ix.Timeline(ctx, TimelineQuery{Size: "1y"})
	if !errors.Is(err, errors.ErrCodeInvalidBucket) {
		t.Errorf("bad bucket err = %v, want INVALID_BUCKET_SIZE", err)
	}
}

func TestTimelineHalfOpenRange(t *testing.T) {
	ix, store, clk := newTestIndex(t, nil)
	ctx := context.Background()

	end := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	clk.Set(end.Add(-time.Second))
	seed(t, store, memory.GraphNode{ID: "inside", Type: "concept", Scope: memory.ScopeLocal})
	clk.Set(end)
	seed(t, store, memory.GraphNode{ID: "boundary", Type: "concept", Scope: memory.ScopeLocal})

	res, err := ix.Timeline(ctx, TimelineQuery{
		Start: end.AddDate(0, 0, -1),
		End:   end,
		Size:  BucketDay,
	})
	if err != nil {
		t.Fatalf("Timeline() err = %v", err)
	}
	if res.Total != 1 || res.Nodes[0].ID != "inside" {
		t.Errorf("half-open range included the end boundary: %+v", res.Nodes)
	}
}

func TestTimelineExcludesTombstones(t *testing.T) {
	ix, store, _ := newTestIndex(t, nil)
	ctx := context.Background()

	seed(t, store, memory.GraphNode{ID: "kept", Type: "concept", Scope: memory.ScopeLocal})
	seed(t, store, memory.GraphNode{ID: "gone", Type: "concept", Scope: memory.ScopeLocal})
	if res := store.Delete(ctx, memory.ScopeLocal, "gone"); !res.Success {
		t.Fatalf("Delete() failed: %v", res.Error)
	}

	res, err := ix.Timeline(ctx, TimelineQuery{Size: BucketDay})
	if err != nil {
		t.Fatalf("Timeline() err = %v", err)
	}
	if res.Total != 1 || res.Nodes[0].ID != "kept" {
		t.Errorf("tombstone counted in timeline: %+v", res.Nodes)
	}
}
