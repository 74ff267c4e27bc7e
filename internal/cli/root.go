package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/graphmem/graphmem/pkg/buildinfo"
)

// Execute runs the graphmem CLI with the given base context and returns an
// error if any command fails.
//
// The function sets up the root command with all subcommands, configures
// logging based on the --verbose flag, and executes the command tree. The
// logger is attached to the context and accessible to all commands via
// loggerFromContext.
func Execute(ctx context.Context) error {
	return Root().ExecuteContext(ctx)
}

// Root builds the graphmem root command with all subcommands attached.
func Root() *cobra.Command {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          "graphmem",
		Short:        "graphmem stores and visualizes a scoped memory graph",
		Long:         `graphmem is a CLI for a versioned, scoped graph memory store: create and mutate nodes, query them by ID or content, and render the relationship graph as SVG.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (TOML)")

	root.AddCommand(newCreateCmd(&configPath))
	root.AddCommand(newGetCmd(&configPath))
	root.AddCommand(newUpdateCmd(&configPath))
	root.AddCommand(newForgetCmd(&configPath))
	root.AddCommand(newQueryCmd(&configPath))
	root.AddCommand(newSearchCmd(&configPath))
	root.AddCommand(newRelatedCmd(&configPath))
	root.AddCommand(newTimelineCmd(&configPath))
	root.AddCommand(newStatsCmd(&configPath))
	root.AddCommand(newRenderCmd(&configPath))
	root.AddCommand(newBrowseCmd(&configPath))

	return root
}
