package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// SetupCmd writes MCP client configuration pointing at lexigraph.
type SetupCmd struct {
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Global   bool   `help:"Write to the user's home directory instead of the project"`
	Format   string `help:"Output format (json|yaml)" enum:"json,yaml" default:"json"`
	FilePath string `help:"Custom directory for the configuration file"`
	Watch    string `help:"Directory the server should keep indexed"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(app *App) error {
	config := generateConfig(app.Config.DataDir, c.Watch)

	// If no specific client is specified, output config to stdout
	if !c.Claude && !c.Cursor {
		content, err := encodeConfig(config, c.Format)
		if err != nil {
			return err
		}
		_, err = app.Out.Write(content)
		return err
	}

	green := color.New(color.FgGreen)
	for _, client := range c.clients() {
		path, err := c.configPath(client)
		if err != nil {
			return err
		}
		if err := writeConfig(path, config, c.Format); err != nil {
			return err
		}
		green.Fprintf(app.Out, "✓ Created %s MCP config at %s\n", client, path)
	}
	return nil
}

func (c *SetupCmd) clients() []string {
	var clients []string
	if c.Claude {
		clients = append(clients, "claude")
	}
	if c.Cursor {
		clients = append(clients, "cursor")
	}
	return clients
}

func (c *SetupCmd) configPath(client string) (string, error) {
	name := "mcp." + c.Format
	if c.FilePath != "" {
		return filepath.Join(c.FilePath, name), nil
	}
	base := "."
	if c.Global {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("finding home directory: %w", err)
		}
		base = home
	}
	return filepath.Join(base, getClientConfigDir(client), name), nil
}

// Configuration generators

func generateConfig(dataDir, watch string) map[string]any {
	args := []string{"--data-dir", dataDir, "mcp"}
	if watch != "" {
		args = append(args, "--watch", watch)
	}
	return map[string]any{
		"mcpServers": map[string]any{
			"lexigraph": map[string]any{
				"command": "lexigraph",
				"args":    args,
			},
		},
	}
}

func getClientConfigDir(client string) string {
	switch client {
	case "cursor":
		return ".cursor"
	default:
		return ".claude"
	}
}

// Config writers

func encodeConfig(config map[string]any, format string) ([]byte, error) {
	if format == "yaml" {
		content, err := yaml.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("marshaling YAML: %w", err)
		}
		return content, nil
	}
	content, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}
	return append(content, '\n'), nil
}

func writeConfig(configPath string, config map[string]any, format string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	content, err := encodeConfig(config, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
