package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/memory"
)

// parseAttributes turns key=value arguments into an attribute map. Values
// that parse as JSON keep their JSON type; everything else is a string, so
// `count=3` is a number and `name=alice` is a string.
func parseAttributes(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	attrs := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q (want key=value)", arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		attrs[key] = parsed
	}
	return attrs, nil
}

// parseScopeFlag validates the --scope flag, treating "" as all scopes.
func parseScopeFlag(s string) (memory.Scope, error) {
	scope, ok := memory.ParseScope(s)
	if !ok {
		return "", errors.New(errors.ErrCodeInvalidScope, "unknown scope: %q", s)
	}
	return scope, nil
}

// printNode writes a node summary to stdout, or raw JSON when asJSON is set.
func printNode(node memory.GraphNode, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(node)
	}

	printKeyValue("id", node.ID)
	printKeyValue("type", node.Type)
	printKeyValue("scope", renderScope(string(node.Scope)))
	printKeyValue("version", fmt.Sprintf("%d", node.Version))
	printKeyValue("created", node.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	printKeyValue("updated", node.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	if len(node.Attributes) > 0 {
		data, err := json.MarshalIndent(node.Attributes, "  ", "  ")
		if err != nil {
			return err
		}
		printKeyValue("attributes", "")
		fmt.Println("  " + string(data))
	}
	return nil
}

func newCreateCmd(configPath *string) *cobra.Command {
	var (
		scopeStr string
		id       string
	)

	cmd := &cobra.Command{
		Use:   "create <type> [key=value ...]",
		Short: "Create a memory node",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScopeFlag(scopeStr)
			if err != nil {
				return err
			}
			attrs, err := parseAttributes(args[1:])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), *configPath, func(a *app) error {
				res := a.store.Create(cmd.Context(), memory.GraphNode{
					ID:         id,
					Type:       args[0],
					Scope:      scope,
					Attributes: attrs,
				})
				if !res.Success {
					printError("%s", errors.UserMessage(res.Error))
					return res.Error
				}
				printSuccess("Created %s node %s in %s", args[0], res.NodeID, renderScope(string(scope)))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&scopeStr, "scope", "s", "local", "node scope: local, identity, environment, community")
	cmd.Flags().StringVar(&id, "id", "", "explicit node ID (generated when empty)")
	return cmd
}

func newGetCmd(configPath *string) *cobra.Command {
	var (
		scopeStr string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a node by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScopeFlag(scopeStr)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				node, err := a.store.Resolve(cmd.Context(), scope, args[0])
				if err != nil {
					return err
				}
				return printNode(node, asJSON)
			})
		},
	}

	cmd.Flags().StringVarP(&scopeStr, "scope", "s", "", "restrict lookup to one scope (default probes all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the node as JSON")
	return cmd
}

func newUpdateCmd(configPath *string) *cobra.Command {
	var (
		scopeStr      string
		expectVersion int
	)

	cmd := &cobra.Command{
		Use:   "update <id> key=value [key=value ...]",
		Short: "Merge attributes into a node",
		Long: `Update merges the given attributes into the node: new keys are added,
existing keys overwritten. With --expect-version the update only applies if
the node is still at that version.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScopeFlag(scopeStr)
			if err != nil {
				return err
			}
			attrs, err := parseAttributes(args[1:])
			if err != nil {
				return err
			}

			var expected *int
			if expectVersion > 0 {
				expected = &expectVersion
			}

			return withApp(cmd.Context(), *configPath, func(a *app) error {
				res := a.store.Update(cmd.Context(), scope, args[0], attrs, expected)
				if !res.Success {
					printError("%s", errors.UserMessage(res.Error))
					return res.Error
				}
				printSuccess("Updated %s (%d attributes)", res.NodeID, len(attrs))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&scopeStr, "scope", "s", "", "restrict lookup to one scope (default probes all)")
	cmd.Flags().IntVar(&expectVersion, "expect-version", 0, "fail unless the node is at this version")
	return cmd
}

func newForgetCmd(configPath *string) *cobra.Command {
	var scopeStr string

	cmd := &cobra.Command{
		Use:   "forget <id>",
		Short: "Delete a node (tombstone)",
		Long: `Forget tombstones a node: its attributes are cleared and the ID stays
reserved so it can never be reused. Forgetting an unknown or already
forgotten node is an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScopeFlag(scopeStr)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				res := a.store.Delete(cmd.Context(), scope, args[0])
				if !res.Success {
					printError("%s", errors.UserMessage(res.Error))
					return res.Error
				}
				printSuccess("Forgot %s", res.NodeID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&scopeStr, "scope", "s", "", "restrict lookup to one scope (default probes all)")
	return cmd
}
