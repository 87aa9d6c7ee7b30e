package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
)

// IndexCmd indexes bundles into lexical graphs.
type IndexCmd struct {
	Path    string        `arg:"" help:"Bundle file or directory of bundles"`
	Graph   string        `help:"Extend an existing graph (id or name) with a single bundle"`
	Workers int           `default:"${workers}" help:"Size of the indexing worker pool"`
	Timeout time.Duration `default:"${index_timeout}" help:"Deadline for the worker phase of each file (0 disables)"`
}

// Run executes the index command.
func (c *IndexCmd) Run(app *App) error {
	ctx := context.Background()
	path, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("accessing %s: %w", path, err)
	}

	app.Config.Workers = c.Workers
	app.Config.IndexTimeout = c.Timeout
	if err := app.Config.Validate(); err != nil {
		return err
	}

	store, closeStore, err := app.openStore(false)
	if err != nil {
		return err
	}
	defer closeStore()

	pipeline := app.pipeline(store)
	green := color.New(color.FgGreen)

	if c.Graph != "" {
		res, err := pipeline.ExtendGraph(ctx, c.Graph, path)
		if err != nil {
			return fmt.Errorf("extending %s: %w", c.Graph, err)
		}
		green.Fprintf(app.Out, "✓ Extended graph %s\n", res.Name)
		fmt.Fprintf(app.Out, "  ID:        %s\n", res.GraphID)
		fmt.Fprintf(app.Out, "  Elements:  %d\n", res.Elements)
		fmt.Fprintf(app.Out, "  Nodes:     %d\n", res.Nodes)
		fmt.Fprintf(app.Out, "  Edges:     %d\n", res.Edges)
		return nil
	}

	var progress func(string, float64)
	if !app.Quiet {
		green.Fprintf(app.Err, "Indexing %s\n", path)
		progress = func(phase string, pct float64) {
			fmt.Fprintf(app.Err, "\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	result, err := pipeline.IndexPath(ctx, path, progress)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	if progress != nil {
		fmt.Fprintln(app.Err)
	}

	green.Fprintln(app.Out, "✓ Indexing complete")
	fmt.Fprintf(app.Out, "  Files:     %d\n", result.Files)
	fmt.Fprintf(app.Out, "  Indexed:   %d\n", result.Indexed)
	if result.Failed > 0 {
		color.New(color.FgYellow).Fprintf(app.Out, "  Failed:    %d\n", result.Failed)
	}
	fmt.Fprintf(app.Out, "  Nodes:     %d\n", result.Nodes)
	fmt.Fprintf(app.Out, "  Edges:     %d\n", result.Edges)
	fmt.Fprintf(app.Out, "  Duration:  %.2fs\n", result.DurationSecs)
	return nil
}
