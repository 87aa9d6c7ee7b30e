package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/Benny93/lexigraph/internal/graph"
)

var statTypes = []graph.NodeType{
	graph.NodeParagraph,
	graph.NodeTable,
	graph.NodeHeader,
	graph.NodeUnigram,
	graph.NodeBigram,
	graph.NodeTrigram,
}

// StatsCmd shows the size of one graph.
type StatsCmd struct {
	Graph string `arg:"" help:"Graph id or name"`
	JSON  bool   `help:"Print stats as JSON"`
}

// Run executes the stats command.
func (c *StatsCmd) Run(app *App) error {
	ctx := context.Background()
	store, closeStore, err := app.openStore(true)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := store.Resolve(ctx, c.Graph)
	if err != nil {
		return err
	}
	g, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	if c.JSON {
		data, err := json.MarshalIndent(g.Stats(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(app.Out, string(data))
		return nil
	}

	info := g.Info()
	fmt.Fprintf(app.Out, "Graph %s (%s)\n", info.Name, info.ID)
	fmt.Fprintf(app.Out, "  Updated:     %s\n", info.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(app.Out, "  Nodes:       %d\n", info.Nodes)
	fmt.Fprintf(app.Out, "  Edges:       %d\n", info.Edges)
	for _, t := range statTypes {
		fmt.Fprintf(app.Out, "  %-12s %d\n", string(t)+":", g.CountByType(t))
	}
	return nil
}

// ListCmd lists all indexed graphs.
type ListCmd struct {
	JSON bool `help:"Print the list as JSON"`
}

// Run executes the list command.
func (c *ListCmd) Run(app *App) error {
	ctx := context.Background()
	store, closeStore, err := app.openStore(true)
	if err != nil {
		return err
	}
	defer closeStore()

	infos, err := store.List(ctx)
	if err != nil {
		return err
	}

	if c.JSON {
		if infos == nil {
			infos = []graph.Info{}
		}
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(app.Out, string(data))
		return nil
	}

	if len(infos) == 0 {
		fmt.Fprintln(app.Out, "No indexed graphs found")
		return nil
	}

	fmt.Fprintln(app.Out, "Indexed graphs:")
	for _, info := range infos {
		fmt.Fprintf(app.Out, "\n  %s\n", info.Name)
		fmt.Fprintf(app.Out, "    ID:      %s\n", info.ID)
		fmt.Fprintf(app.Out, "    Nodes:   %d\n", info.Nodes)
		fmt.Fprintf(app.Out, "    Edges:   %d\n", info.Edges)
		fmt.Fprintf(app.Out, "    Updated: %s\n", info.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// CleanCmd deletes one graph or the whole index.
type CleanCmd struct {
	Graph string `arg:"" optional:"" help:"Graph id or name to delete (default: the whole index)"`
	Force bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(app *App) error {
	if c.Graph != "" {
		return c.deleteGraph(app)
	}

	dir := app.Config.DataDir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("no index found at %s. Nothing to clean", dir)
	}

	if !c.Force {
		fmt.Fprintf(app.Out, "Delete index at %s? [y/N] ", dir)
		var response string
		_, _ = fmt.Fscanln(app.In, &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(app.Out, "Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}

	color.New(color.FgGreen).Fprintf(app.Out, "Deleted %s\n", dir)
	return nil
}

func (c *CleanCmd) deleteGraph(app *App) error {
	ctx := context.Background()
	store, closeStore, err := app.openStore(false)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := store.Resolve(ctx, c.Graph)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting graph: %w", err)
	}

	color.New(color.FgGreen).Fprintf(app.Out, "Deleted graph %s (%s)\n", c.Graph, id)
	return nil
}
