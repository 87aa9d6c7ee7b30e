// Package cmd provides CLI command implementations for lexigraph.
package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/Benny93/lexigraph/internal/config"
	"github.com/Benny93/lexigraph/internal/extractor"
	"github.com/Benny93/lexigraph/internal/indexer"
	"github.com/Benny93/lexigraph/internal/ingestion"
	"github.com/Benny93/lexigraph/internal/logger"
	"github.com/Benny93/lexigraph/internal/storage"
	"github.com/Benny93/lexigraph/internal/tokenizer"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CLI is the root command.
type CLI struct {
	Version  kong.VersionFlag `help:"Show version information"`
	Verbose  bool             `short:"v" help:"Enable verbose output"`
	Quiet    bool             `short:"q" help:"Suppress non-essential output"`
	DataDir  string           `name:"data-dir" default:"${data_dir}" help:"Badger directory holding the graphs"`
	LogLevel string           `name:"log-level" default:"${log_level}" enum:"debug,info,warn,warning,error" help:"Log level"`

	// Commands
	Index   IndexCmd   `cmd:"" help:"Index a document bundle or a directory of bundles"`
	Extract ExtractCmd `cmd:"" help:"Rank the elements and symbols of a graph matching a query"`
	Stats   StatsCmd   `cmd:"" help:"Show node counts for a graph"`
	List    ListCmd    `cmd:"" help:"List all indexed graphs"`
	Watch   WatchCmd   `cmd:"" help:"Watch mode with live re-indexing"`
	MCP     MCPCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
	Setup   SetupCmd   `cmd:"" help:"Configure MCP for Claude Code / Cursor"`
	Clean   CleanCmd   `cmd:"" help:"Delete one graph or the whole index"`

	dir    string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// App carries what every command needs once flags are parsed.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Quiet  bool

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// NewCLI creates a new CLI instance reading configuration from the working
// directory.
func NewCLI() *CLI {
	return &CLI{
		dir:    ".",
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Execute parses command-line arguments and executes the selected command.
// Flag defaults come from the loaded configuration so explicit flags take
// precedence over lexigraph.yml, .env and the environment.
func (c *CLI) Execute(args []string) error {
	cfg, err := config.Load(c.dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	parser, err := kong.New(c,
		kong.Name("lexigraph"),
		kong.Description("Lexical graph indexer and extractor for segmented documents"),
		kong.UsageOnError(),
		kong.Writers(c.stdout, c.stderr),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":       Version,
			"data_dir":      cfg.DataDir,
			"log_level":     cfg.LogLevel,
			"workers":       strconv.Itoa(cfg.Workers),
			"max_results":   strconv.Itoa(cfg.MaxResults),
			"scoring":       cfg.Scoring,
			"index_timeout": cfg.IndexTimeout.String(),
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg.DataDir = c.DataDir
	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(c.dir, cfg.DataDir)
	}
	cfg.LogLevel = c.LogLevel

	app := &App{
		Config: cfg,
		Logger: logger.New(logger.Options{
			Level:   cfg.LogLevel,
			Verbose: c.Verbose,
			Quiet:   c.Quiet,
			Writer:  c.stderr,
		}),
		Quiet: c.Quiet,
		In:    c.stdin,
		Out:   c.stdout,
		Err:   c.stderr,
	}
	return kongCtx.Run(app)
}

// openStore opens the badger index. Read-only opens require an existing
// index.
func (a *App) openStore(readOnly bool) (*storage.Store, func(), error) {
	dir := a.Config.DataDir
	if readOnly {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("no index found at %s. Run 'lexigraph index' first", dir)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	backend := storage.NewBadgerBackend()
	if err := backend.Initialize(dir, readOnly); err != nil {
		return nil, nil, fmt.Errorf("initializing storage: %w", err)
	}

	store := storage.NewStore(backend, storage.WithLogger(a.Logger))
	return store, func() { _ = backend.Close() }, nil
}

func (a *App) tokenizer() tokenizer.Tokenizer {
	return tokenizer.New(tokenizer.WithStopwords(a.Config.Stopwords...))
}

func (a *App) pipeline(store *storage.Store) *ingestion.Pipeline {
	ix := indexer.New(store,
		indexer.WithTokenizer(a.tokenizer()),
		indexer.WithWorkers(a.Config.Workers),
		indexer.WithTimeout(a.Config.IndexTimeout),
		indexer.WithEvictAfterSave(a.Config.EvictAfterSave),
		indexer.WithLogger(a.Logger),
	)
	return &ingestion.Pipeline{Indexer: ix, Store: store, Logger: a.Logger}
}

func (a *App) extractor(store *storage.Store, opts extractor.Options) *extractor.Extractor {
	return extractor.New(store,
		extractor.WithTokenizer(a.tokenizer()),
		extractor.WithOptions(opts),
		extractor.WithLogger(a.Logger),
	)
}

// scoring parses the configured scoring mode.
func (a *App) scoring(name string) (extractor.Scoring, error) {
	s, ok := extractor.ParseScoring(name)
	if !ok {
		return "", fmt.Errorf("unknown scoring %q", name)
	}
	return s, nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}
