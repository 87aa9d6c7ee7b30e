package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/Benny93/lexigraph/internal/extractor"
)

const snippetLimit = 200

// ExtractCmd runs a query against one graph.
type ExtractCmd struct {
	Graph      string   `arg:"" help:"Graph id or name"`
	Query      []string `arg:"" help:"Query text"`
	MaxResults int      `name:"max-results" short:"n" default:"${max_results}" help:"Maximum elements and symbols (0 returns all)"`
	Scoring    string   `default:"${scoring}" enum:"frequency,weighted" help:"Scoring mode"`
	JSON       bool     `help:"Print the result as JSON"`
}

// Run executes the extract command.
func (c *ExtractCmd) Run(app *App) error {
	ctx := context.Background()
	query := strings.Join(c.Query, " ")

	scoring, err := app.scoring(c.Scoring)
	if err != nil {
		return err
	}

	store, closeStore, err := app.openStore(true)
	if err != nil {
		return err
	}
	defer closeStore()

	ex := app.extractor(store, extractor.Options{MaxResults: c.MaxResults, Scoring: scoring})
	result, err := ex.Extract(ctx, c.Graph, query)
	if err != nil {
		return fmt.Errorf("extracting: %w", err)
	}

	if c.JSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(app.Out, string(data))
		return nil
	}

	if len(result.Elements) == 0 && len(result.Symbols) == 0 {
		fmt.Fprintln(app.Out, "No matches found")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Fprintf(app.Out, "Matched at %s level\n", result.Level)

	fmt.Fprintln(app.Out, "\nElements:")
	for i, el := range result.Elements {
		fmt.Fprintf(app.Out, "\n%d. %s (%s)\n", i+1, el.ID, el.Type)
		fmt.Fprintf(app.Out, "   Score: %.3f\n", el.Score)
		if el.Metadata != nil && len(el.Metadata.HeadingPath) > 0 {
			fmt.Fprintf(app.Out, "   Section: %s\n", strings.Join(el.Metadata.HeadingPath, " > "))
		}
		if el.Content != "" {
			fmt.Fprintf(app.Out, "   %s\n", snippet(el.Content, snippetLimit))
		}
	}

	fmt.Fprintln(app.Out, "\nSymbols:")
	for _, sym := range result.Symbols {
		fmt.Fprintf(app.Out, "  %-30s %-8s %.3f\n", sym.ID, sym.Type, sym.Score)
	}
	return nil
}

// snippet shortens s to at most limit runes.
func snippet(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
