// Package mcp provides the MCP (Model Context Protocol) server for lexigraph.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/lexigraph/internal/extractor"
	"github.com/Benny93/lexigraph/internal/graph"
	"github.com/Benny93/lexigraph/internal/ingestion"
	"github.com/Benny93/lexigraph/internal/storage"
)

const (
	serverName    = "lexigraph"
	serverVersion = "0.1.0"
)

// Server represents the MCP server.
type Server struct {
	store     *storage.Store
	pipeline  *ingestion.Pipeline
	extractor *extractor.Extractor
	server    *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// ExtractInput is the input of the lexigraph_extract tool.
type ExtractInput struct {
	Graph      string `json:"graph" jsonschema:"graph id or name"`
	Query      string `json:"query" jsonschema:"free-text query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum elements and symbols returned (default: configured limit)"`
	Scoring    string `json:"scoring,omitempty" jsonschema:"frequency or weighted (default: configured scoring)"`
}

// IndexInput is the input of the lexigraph_index tool.
type IndexInput struct {
	Path  string `json:"path" jsonschema:"bundle file or directory of bundles to index"`
	Graph string `json:"graph,omitempty" jsonschema:"existing graph id or name to extend with a single bundle"`
}

// ListInput is the input of the lexigraph_list tool.
type ListInput struct{}

// StatsInput is the input of the lexigraph_stats tool.
type StatsInput struct {
	Graph string `json:"graph" jsonschema:"graph id or name"`
}

// NewServer creates a new MCP server.
func NewServer(pipeline *ingestion.Pipeline, ex *extractor.Extractor) *Server {
	s := &Server{
		store:     pipeline.Store,
		pipeline:  pipeline,
		extractor: ex,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s.registerTools()

	return s
}

// SDK returns the go-sdk server with every tool registered.
func (s *Server) SDK() *mcp.Server {
	return s.server
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "lexigraph_extract",
			Description: "Rank the paragraphs, tables and symbols of an indexed graph that match a free-text query.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph":       {Type: "string", Description: "Graph id or name"},
					"query":       {Type: "string", Description: "Free-text query"},
					"max_results": {Type: "integer", Description: "Maximum elements and symbols returned"},
					"scoring":     {Type: "string", Enum: []any{"frequency", "weighted"}, Description: "Scoring mode"},
				},
				Required: []string{"graph", "query"},
			},
		},
		{
			Name:        "lexigraph_index",
			Description: "Index a document bundle or a directory of bundles into lexical graphs.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path":  {Type: "string", Description: "Bundle file or directory"},
					"graph": {Type: "string", Description: "Existing graph to extend with a single bundle"},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "lexigraph_list",
			Description: "List all indexed graphs with their sizes.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "lexigraph_stats",
			Description: "Show node counts by type for one graph.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph": {Type: "string", Description: "Graph id or name"},
				},
				Required: []string{"graph"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "lexigraph://graphs",
			Name:        "Indexed Graphs",
			Description: "Every indexed graph with node and edge counts",
			MimeType:    "text/plain",
		},
		{
			URI:         "lexigraph://schema",
			Name:        "Graph Schema",
			Description: "Node and edge types of the lexical graph",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "lexigraph_extract":
		var in ExtractInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleExtract(ctx, in)
	case "lexigraph_index":
		var in IndexInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleIndex(ctx, in)
	case "lexigraph_list":
		return s.handleList(ctx)
	case "lexigraph_stats":
		var in StatsInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleStats(ctx, in)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "lexigraph://graphs":
		return s.handleList(ctx)
	case "lexigraph://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		// Notifications carry no id and get no response.
		if _, ok := req["id"]; !ok {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "ping":
		return map[string]any{"jsonrpc": "2.0", "id": id, "result": map[string]any{}}
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": tool.InputSchema,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result": map[string]any{
				"content": []map[string]any{{"type": "text", "text": err.Error()}},
				"isError": true,
			},
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func (s *Server) handleExtract(ctx context.Context, in ExtractInput) (string, error) {
	if in.Graph == "" || in.Query == "" {
		return "", fmt.Errorf("graph and query are required")
	}

	opts := s.extractor.Options()
	if in.MaxResults != 0 {
		opts.MaxResults = in.MaxResults
	}
	if in.Scoring != "" {
		scoring, ok := extractor.ParseScoring(in.Scoring)
		if !ok {
			return "", fmt.Errorf("unknown scoring %q", in.Scoring)
		}
		opts.Scoring = scoring
	}

	result, err := s.extractor.ExtractWith(ctx, in.Graph, in.Query, opts)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Server) handleIndex(ctx context.Context, in IndexInput) (string, error) {
	if in.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	if in.Graph != "" {
		res, err := s.pipeline.ExtendGraph(ctx, in.Graph, in.Path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Extended graph %s (%s): %d nodes, %d edges", res.Name, res.GraphID, res.Nodes, res.Edges), nil
	}

	res, err := s.pipeline.IndexPath(ctx, in.Path, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Indexed %d of %d files (%d failed): %d nodes, %d edges in %.2fs",
		res.Indexed, res.Files, res.Failed, res.Nodes, res.Edges, res.DurationSecs), nil
}

func (s *Server) handleList(ctx context.Context) (string, error) {
	infos, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "No indexed graphs found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d indexed graphs:\n", len(infos))
	for _, info := range infos {
		fmt.Fprintf(&sb, "- %s (%s): %d nodes, %d edges, updated %s\n",
			info.Name, info.ID, info.Nodes, info.Edges, info.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return sb.String(), nil
}

func (s *Server) handleStats(ctx context.Context, in StatsInput) (string, error) {
	id, err := s.store.Resolve(ctx, in.Graph)
	if err != nil {
		return "", err
	}
	unlock := s.store.Lock(id)
	defer unlock()

	g, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}

	info := g.Info()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Graph %s (%s)\n", info.Name, info.ID)
	fmt.Fprintf(&sb, "Nodes: %d\n", info.Nodes)
	fmt.Fprintf(&sb, "Edges: %d\n", info.Edges)
	for _, t := range nodeTypes {
		if n := g.CountByType(t); n > 0 {
			fmt.Fprintf(&sb, "  %s: %d\n", t, n)
		}
	}
	return sb.String(), nil
}

var nodeTypes = []graph.NodeType{
	graph.NodeParagraph,
	graph.NodeTable,
	graph.NodeHeader,
	graph.NodeUnigram,
	graph.NodeBigram,
	graph.NodeTrigram,
}

func getSchema() string {
	return `# Lexical Graph Schema

## Node Types
- paragraph: a text paragraph of a document
- table: a table, stored as HTML
- header: a table column header
- unigram, bigram, trigram: symbols generated from tokens
- untyped: file outline items and key/value nodes

## Edge Types
- contains: element or header to symbol
- describes: element to value symbol
- key_value: key node to value node
- part_of: outline parent to child, table to header
- untyped: query node to matched symbols, present only during an extraction

Graphs are addressed by id or by name (the indexed file's relative path).
`
}

// Helper functions

func decodeArgs(args map[string]any, v any) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// registerTools registers the typed tool handlers with the go-sdk server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lexigraph_extract",
		Description: "Rank the paragraphs, tables and symbols of an indexed graph that match a free-text query.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ExtractInput) (*mcp.CallToolResult, any, error) {
		text, err := s.handleExtract(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lexigraph_index",
		Description: "Index a document bundle or a directory of bundles into lexical graphs.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in IndexInput) (*mcp.CallToolResult, any, error) {
		text, err := s.handleIndex(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lexigraph_list",
		Description: "List all indexed graphs with their sizes.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ ListInput) (*mcp.CallToolResult, any, error) {
		text, err := s.handleList(ctx)
		if err != nil {
			return nil, nil, err
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lexigraph_stats",
		Description: "Show node counts by type for one graph.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in StatsInput) (*mcp.CallToolResult, any, error) {
		text, err := s.handleStats(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return textResult(text), nil, nil
	})
}
