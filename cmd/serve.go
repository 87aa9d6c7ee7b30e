package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Benny93/lexigraph/internal/extractor"
	"github.com/Benny93/lexigraph/internal/ingestion"
	"github.com/Benny93/lexigraph/mcp"
)

// WatchCmd keeps a directory indexed.
type WatchCmd struct {
	Path        string        `arg:"" optional:"" default:"." help:"Directory of bundles"`
	Debounce    time.Duration `default:"2s" help:"Quiet period before a batch of changes is processed"`
	Initial     bool          `default:"true" negatable:"" help:"Index the directory before watching"`
	MetricsAddr string        `name:"metrics-addr" help:"Expose Prometheus metrics on this address"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(app *App) error {
	dir, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	store, closeStore, err := app.openStore(false)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	go func() {
		<-osSignalChannel()
		fmt.Fprintln(app.Err, "\nStopping watch mode...")
		cancel()
	}()

	if c.MetricsAddr != "" {
		addr, err := startMetrics(ctx, c.MetricsAddr, app.Logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Metrics on http://%s/metrics\n", addr)
	}

	pipeline := app.pipeline(store)
	if c.Initial {
		res, err := pipeline.IndexDirectory(ctx, dir, nil)
		if err != nil {
			return fmt.Errorf("initial index: %w", err)
		}
		fmt.Fprintf(app.Out, "Indexed %d of %d files\n", res.Indexed, res.Files)
	}

	fmt.Fprintln(app.Out, "## Watch Mode")
	fmt.Fprintf(app.Out, "Watching %s for changes (Ctrl+C to stop)\n\n", dir)

	err = pipeline.Watch(ctx, dir, ingestion.WatchOptions{
		Debounce: c.Debounce,
		OnBatch: func(r ingestion.BatchResult) {
			if len(r.Indexed) > 0 {
				fmt.Fprintf(app.Out, "Re-indexed: %s\n", strings.Join(r.Indexed, ", "))
			}
			if len(r.Removed) > 0 {
				fmt.Fprintf(app.Out, "Removed: %s\n", strings.Join(r.Removed, ", "))
			}
			if len(r.Failed) > 0 {
				fmt.Fprintf(app.Out, "Failed: %s\n", strings.Join(r.Failed, ", "))
			}
		},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Fprintln(app.Out, "Watch mode stopped.")
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	Watch       string `help:"Also keep this directory indexed while serving"`
	SDK         bool   `name:"sdk" help:"Serve through the go-sdk stdio transport"`
	MetricsAddr string `name:"metrics-addr" help:"Expose Prometheus metrics on this address"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run(app *App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := app.openStore(false)
	if err != nil {
		return err
	}
	defer closeStore()

	pipeline := app.pipeline(store)
	scoring, err := app.scoring(app.Config.Scoring)
	if err != nil {
		return err
	}
	server := mcp.NewServer(pipeline, app.extractor(store, extractor.Options{
		MaxResults: app.Config.MaxResults,
		Scoring:    scoring,
	}))

	if c.MetricsAddr != "" {
		if _, err := startMetrics(ctx, c.MetricsAddr, app.Logger); err != nil {
			return err
		}
	}

	if c.Watch != "" {
		dir, err := filepath.Abs(c.Watch)
		if err != nil {
			return fmt.Errorf("resolving watch path: %w", err)
		}
		go func() {
			err := pipeline.Watch(ctx, dir, ingestion.WatchOptions{})
			if err != nil && !errors.Is(err, context.Canceled) {
				app.Logger.Error("watch stopped", "err", err)
			}
		}()
	}

	// Note: No output to stdout - MCP server uses stdio for JSON-RPC only
	if c.SDK {
		return server.SDK().Run(ctx, &sdk.StdioTransport{})
	}
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// startMetrics serves /metrics until ctx is done and returns the bound
// address.
func startMetrics(ctx context.Context, addr string, logger *log.Logger) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}
