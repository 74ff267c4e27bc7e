package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphmem/graphmem/pkg/query"
)

func parseTimeFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC 3339, e.g. 2026-08-01T00:00:00Z)", s)
	}
	return t, nil
}

func newTimelineCmd(configPath *string) *cobra.Command {
	var (
		scopeStr string
		nodeType string
		bucket   string
		startStr string
		endStr   string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show node creation counts over time",
		Long: `Timeline buckets node creation times into aligned intervals (hourly,
daily, weekly, or monthly) and shows the counts. Buckets contiguously cover
the range; empty intervals show as zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScopeFlag(scopeStr)
			if err != nil {
				return err
			}
			start, err := parseTimeFlag(startStr)
			if err != nil {
				return err
			}
			end, err := parseTimeFlag(endStr)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), *configPath, func(a *app) error {
				res, err := a.engine.Timeline(cmd.Context(), query.TimelineOptions{
					Start:      start,
					End:        end,
					BucketSize: bucket,
					Scope:      scope,
					Type:       nodeType,
				})
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				printTimeline(res)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&scopeStr, "scope", "s", "", "restrict to one scope")
	cmd.Flags().StringVarP(&nodeType, "type", "t", "", "restrict to one node type")
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "1d", "bucket size: 1h, 1d, 1w, 1m")
	cmd.Flags().StringVar(&startStr, "start", "", "range start (RFC 3339, default 30 days before end)")
	cmd.Flags().StringVar(&endStr, "end", "", "range end (RFC 3339, default now)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the timeline as JSON")
	return cmd
}

// printTimeline draws a textual bar chart of bucket counts.
func printTimeline(res query.TimelineResult) {
	fmt.Println(StyleTitle.Render("Timeline") + StyleDim.Render(fmt.Sprintf("  %s → %s",
		res.Start.Format("2006-01-02 15:04"), res.End.Format("2006-01-02 15:04"))))

	keys := make([]string, 0, len(res.Buckets))
	maxCount := 0
	for k, c := range res.Buckets {
		keys = append(keys, k)
		maxCount = max(maxCount, c)
	}
	slices.Sort(keys)

	const barWidth = 40
	for _, k := range keys {
		count := res.Buckets[k]
		bar := ""
		if maxCount > 0 {
			bar = strings.Repeat("█", count*barWidth/maxCount)
		}
		fmt.Printf("%s  %s %s\n",
			StyleDim.Render(k),
			StyleValue.Render(fmt.Sprintf("%4d", count)),
			StyleSuccess.Render(bar))
	}
	printDetail("%d node(s) in range", res.Total)
}

func newStatsCmd(configPath *string) *cobra.Command {
	var (
		scopeStr string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the memory store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScopeFlag(scopeStr)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				stats, err := a.engine.StatsFor(cmd.Context(), scope)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(stats)
				}

				printKeyValue("nodes", fmt.Sprintf("%d", stats.TotalNodes))
				printKeyValue("last 24h", fmt.Sprintf("%d", stats.Recent24h))
				if !stats.OldestNode.IsZero() {
					printKeyValue("oldest", stats.OldestNode.Format("2006-01-02 15:04"))
					printKeyValue("newest", stats.NewestNode.Format("2006-01-02 15:04"))
				}
				for _, scope := range slices.Sorted(maps.Keys(stats.NodesByScope)) {
					printDetail("%s: %d", renderScope(scope), stats.NodesByScope[scope])
				}
				for _, typ := range slices.Sorted(maps.Keys(stats.NodesByType)) {
					printDetail("%s: %d", typ, stats.NodesByType[typ])
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&scopeStr, "scope", "s", "", "restrict to one scope")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	return cmd
}
