package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphmem/graphmem/pkg/memory"
	"github.com/graphmem/graphmem/pkg/query"
)

// printNodeList writes a compact one-line-per-node listing.
func printNodeList(nodes []memory.GraphNode, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}
	if len(nodes) == 0 {
		printInfo("No matching nodes")
		return nil
	}
	for _, n := range nodes {
		fmt.Printf("%s  %s  %s  v%d  %s\n",
			StyleValue.Render(n.ID),
			StyleDim.Render(n.Type),
			renderScope(string(n.Scope)),
			n.Version,
			StyleDim.Render(n.CreatedAt.Format("2006-01-02 15:04")))
	}
	printDetail("%d node(s)", len(nodes))
	return nil
}

func newQueryCmd(configPath *string) *cobra.Command {
	var (
		scopeStr string
		nodeType string
		limit    int
		offset   int
		orderBy  string
		order    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Query nodes by ID or content",
		Long: `Query dispatches on the shape of the text: strings that look like system
node IDs resolve by direct lookup, "*" lists everything, and anything else
runs a ranked content search.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScopeFlag(scopeStr)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				logger := loggerFromContext(cmd.Context())
				p := newProgress(logger)

				nodes, err := a.engine.Query(cmd.Context(), args[0], query.Options{
					Type:    nodeType,
					Scope:   scope,
					Limit:   limit,
					Offset:  offset,
					OrderBy: query.OrderBy(orderBy),
					Order:   query.Order(order),
				})
				if err != nil {
					return err
				}
				p.done(fmt.Sprintf("Query matched %d node(s)", len(nodes)))
				return printNodeList(nodes, asJSON)
			})
		},
	}

	cmd.Flags().StringVarP(&scopeStr, "scope", "s", "", "restrict to one scope")
	cmd.Flags().StringVarP(&nodeType, "type", "t", "", "restrict to one node type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (0 = no limit)")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip the first N results")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "ordering field: created_at (default), updated_at, relevance")
	cmd.Flags().StringVar(&order, "order", "", "ordering direction: desc (default), asc")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newSearchCmd(configPath *string) *cobra.Command {
	var (
		scopeStr  string
		limit     int
		threshold float64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search nodes by relevance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScopeFlag(scopeStr)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				nodes, err := a.engine.Search(cmd.Context(), args[0], query.SearchOptions{
					Limit:     limit,
					Threshold: threshold,
					Scope:     scope,
				})
				if err != nil {
					return err
				}
				return printNodeList(nodes, asJSON)
			})
		},
	}

	cmd.Flags().StringVarP(&scopeStr, "scope", "s", "", "restrict to one scope")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "drop results scoring below this relevance")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newRelatedCmd(configPath *string) *cobra.Command {
	var (
		relType string
		limit   int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "related <id>",
		Short: "List nodes connected to a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				nodes, err := a.engine.Related(cmd.Context(), args[0], query.RelatedOptions{
					Limit:            limit,
					RelationshipType: relType,
				})
				if err != nil {
					return err
				}
				return printNodeList(nodes, asJSON)
			})
		},
	}

	cmd.Flags().StringVarP(&relType, "rel-type", "r", "", "restrict to one relationship type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (0 = no limit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}
