package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphmem/graphmem/internal/config"
	"github.com/graphmem/graphmem/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string // output file path ("-" writes to stdout)
	layout   string // layout algorithm: force, timeline, hierarchical
	format   string // output format: svg, html, dot
	scope    string // scope filter
	nodeType string // node type filter
	hours    int    // creation window in hours (negative disables)
	width    int    // viewport width in pixels
	height   int    // viewport height in pixels
	limit    int    // maximum node count
}

// validFormats is the set of supported output formats.
var validFormats = map[string]bool{"svg": true, "html": true, "dot": true}

func newRenderCmd(configPath *string) *cobra.Command {
	opts := renderOpts{
		layout: string(render.LayoutForce),
		format: "svg",
	}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the memory graph to SVG",
		Long: `Render selects a subgraph (by type, scope, and creation window), lays it
out, and writes an SVG document. The dot format emits Graphviz DOT instead,
and html wraps the SVG in a standalone page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validFormats[opts.format] {
				return fmt.Errorf("invalid format: %s (must be 'svg', 'html', or 'dot')", opts.format)
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				applyRenderDefaults(&opts, cmd.Flags().Changed, a.cfg.Render)
				return runRender(cmd.Context(), a, &opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default memory_graph.<format>, '-' for stdout)")
	cmd.Flags().StringVarP(&opts.layout, "layout", "l", opts.layout, "layout: force (default), timeline, hierarchical")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg (default), html, dot")
	cmd.Flags().StringVarP(&opts.scope, "scope", "s", "", "restrict to one scope")
	cmd.Flags().StringVarP(&opts.nodeType, "type", "t", "", "restrict to one node type")
	cmd.Flags().IntVar(&opts.hours, "hours", render.DefaultHours, "creation window in hours (negative = all time)")
	cmd.Flags().IntVar(&opts.width, "width", render.DefaultWidth, "frame width")
	cmd.Flags().IntVar(&opts.height, "height", render.DefaultHeight, "frame height")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", render.DefaultLimit, "maximum nodes to render (0 = none, negative = all)")
	return cmd
}

// applyRenderDefaults overrides flag defaults with the config's render
// section. A flag the user set explicitly always wins, even when it matches
// the built-in default.
func applyRenderDefaults(opts *renderOpts, changed func(string) bool, cfg config.Render) {
	if !changed("hours") && cfg.DefaultHours != 0 {
		opts.hours = cfg.DefaultHours
	}
	if !changed("limit") && cfg.DefaultLimit != 0 {
		opts.limit = cfg.DefaultLimit
	}
}

func runRender(ctx context.Context, a *app, opts *renderOpts) error {
	logger := loggerFromContext(ctx)

	scope, err := parseScopeFlag(opts.scope)
	if err != nil {
		return err
	}
	renderOptions := render.Options{
		NodeType: opts.nodeType,
		Scope:    scope,
		Hours:    opts.hours,
		Layout:   render.Layout(opts.layout),
		Width:    opts.width,
		Height:   opts.height,
		Limit:    opts.limit,
	}

	p := newProgress(logger)
	var data []byte
	switch opts.format {
	case "dot":
		dot, err := a.renderer.RenderDOT(ctx, renderOptions)
		if err != nil {
			return err
		}
		data = []byte(dot)
	case "html":
		svg, err := a.renderer.Render(ctx, renderOptions)
		if err != nil {
			return err
		}
		data = render.WrapHTML(svg, "memory graph")
	default:
		data, err = a.renderer.Render(ctx, renderOptions)
		if err != nil {
			return err
		}
	}
	p.done(fmt.Sprintf("Rendered %s layout", opts.layout))

	if opts.output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	path := outputPath(opts.output, opts.format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	printSuccess("Generated %s", path)
	printFile(path)
	return nil
}

// outputPath derives the output file path. An empty output falls back to
// memory_graph.<format>; a mismatched extension gets the format appended.
func outputPath(output, format string) string {
	if output == "" {
		return "memory_graph." + format
	}
	if ext := strings.TrimPrefix(filepath.Ext(output), "."); validFormats[ext] {
		return output
	}
	return output + "." + format
}
