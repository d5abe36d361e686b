// Package mcp provides the MCP (Model Context Protocol) server for biotree.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/biotree-go/internal/config"
	"github.com/Benny93/biotree-go/internal/graph"
	"github.com/Benny93/biotree-go/internal/ingestion"
	"github.com/Benny93/biotree-go/internal/schema"
	"github.com/Benny93/biotree-go/internal/storage"
)

// Version is reported to clients during initialization.
var Version = "dev"

// Archive is the subset of the snapshot archive the server reads.
type Archive interface {
	Search(ctx context.Context, query, ref string, limit int) ([]storage.SearchResult, error)
	List(ctx context.Context) ([]storage.SnapshotInfo, error)
}

// Server represents the MCP server.
type Server struct {
	cfg     *config.Config
	source  schema.Source
	archive Archive
	logger  *slog.Logger
	server  *mcp.Server
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

// Tool arguments.
type (
	treeArgs struct {
		Kind    string `json:"kind,omitempty" jsonschema:"categories, predicates or aspects (default categories)"`
		Version string `json:"version,omitempty" jsonschema:"Biolink branch, tag or commit (default master)"`
		Root    string `json:"root,omitempty" jsonschema:"Return only the subtree rooted at this name"`
	}
	branchesArgs struct {
		Version string `json:"version,omitempty" jsonschema:"Biolink branch, tag or commit (default master)"`
		View    string `json:"view,omitempty" jsonschema:"canonical or revised (default canonical)"`
	}
	lookupArgs struct {
		Name    string `json:"name" jsonschema:"Converted entity name, e.g. Gene or related_to"`
		Version string `json:"version,omitempty" jsonschema:"Biolink branch, tag or commit (default master)"`
	}
	searchArgs struct {
		Query string `json:"query" jsonschema:"Search text"`
		Ref   string `json:"ref,omitempty" jsonschema:"Restrict to one archived snapshot"`
		Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 20)"`
	}
)

// NewServer creates a new MCP server. archive may be nil, in which case
// search reports that no archive is configured.
func NewServer(cfg *config.Config, source schema.Source, archive Archive, logger *slog.Logger) *Server {
	if logger == nil {
		logger = config.Discard()
	}
	s := &Server{
		cfg:     cfg,
		source:  source,
		archive: archive,
		logger:  logger,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "biotree",
		Version: Version,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "biotree_tree",
			Description: "Return a Biolink hierarchy (categories, predicates or aspects) as a nested JSON tree with alphabetically ordered children.",
			InputSchema: mustSchema[treeArgs](),
		},
		{
			Name:        "biotree_branches",
			Description: "Return the category-to-major-branch assignment of a Biolink version, canonical or after the configured branch surgery.",
			InputSchema: mustSchema[branchesArgs](),
		},
		{
			Name:        "biotree_lookup",
			Description: "Locate one entity: its kind, path to the root, children and major branch.",
			InputSchema: mustSchema[lookupArgs](),
		},
		{
			Name:        "biotree_search",
			Description: "Search entity names across archived snapshots. Returns ranked matches.",
			InputSchema: mustSchema[searchArgs](),
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "biotree://overview",
			Name:        "Overview",
			Description: "Configured roots, surgery and archived snapshots",
			MimeType:    "text/plain",
		},
		{
			URI:         "biotree://config",
			Name:        "Configuration",
			Description: "Effective biotree configuration",
			MimeType:    "application/yaml",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding arguments: %w", err)
	}

	switch name {
	case "biotree_tree":
		var a treeArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		return s.handleTree(ctx, a)
	case "biotree_branches":
		var a branchesArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		return s.handleBranches(ctx, a)
	case "biotree_lookup":
		var a lookupArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		return s.handleLookup(ctx, a)
	case "biotree_search":
		var a searchArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		return s.handleSearch(ctx, a)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "biotree://overview":
		return s.getOverview(ctx), nil
	case "biotree://config":
		data, err := s.cfg.Marshal()
		if err != nil {
			return "", fmt.Errorf("encoding config: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves MCP over stdio until ctx is cancelled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) run(ctx context.Context, version string) *ingestion.Result {
	if version == "" {
		version = s.cfg.Source.DefaultRef
	}
	return ingestion.Run(ctx, s.source, version, ingestion.OptionsFromConfig(s.cfg, s.logger), nil)
}

func (s *Server) handleTree(ctx context.Context, a treeArgs) (string, error) {
	res := s.run(ctx, a.Version)
	if res.Err != nil {
		return "", res.Err
	}

	var tree *graph.TreeNode
	switch a.Kind {
	case "", "categories":
		tree = res.Categories
	case "predicates":
		tree = res.Predicates
	case "aspects":
		tree = res.Aspects
	default:
		return "", fmt.Errorf("unknown tree kind %q", a.Kind)
	}
	if a.Root != "" {
		sub := tree.Find(a.Root)
		if sub == nil {
			return fmt.Sprintf("'%s' is not in the %s tree of %s.", a.Root, kindOrDefault(a.Kind), res.Ref), nil
		}
		tree = sub
	}
	return toJSON(tree)
}

func (s *Server) handleBranches(ctx context.Context, a branchesArgs) (string, error) {
	res := s.run(ctx, a.Version)
	if res.Err != nil {
		return "", res.Err
	}
	switch a.View {
	case "", "canonical":
		return toJSON(res.Branches)
	case "revised":
		return toJSON(res.RevisedBranches)
	default:
		return "", fmt.Errorf("unknown view %q", a.View)
	}
}

func (s *Server) handleLookup(ctx context.Context, a lookupArgs) (string, error) {
	if a.Name == "" {
		return "", fmt.Errorf("name is required")
	}
	res := s.run(ctx, a.Version)
	if res.Err != nil {
		return "", res.Err
	}
	found, ok := res.Lookup(a.Name)
	if !ok {
		return fmt.Sprintf("'%s' not found in %s.", a.Name, res.Ref), nil
	}
	return toJSON(found)
}

func (s *Server) handleSearch(ctx context.Context, a searchArgs) (string, error) {
	if a.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	if s.archive == nil {
		return "No snapshot archive is configured. Run 'biotree snapshot' first.", nil
	}
	if a.Limit <= 0 {
		a.Limit = 20
	}
	results, err := s.archive.Search(ctx, a.Query, a.Ref, a.Limit)
	if err != nil {
		return "", fmt.Errorf("searching: %w", err)
	}
	return formatSearchResults(results, a.Query), nil
}

func formatSearchResults(results []storage.SearchResult, query string) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for '%s'.", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(results), query))
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s) in %s\n", i+1, r.Name, r.Kind, r.Ref))
		sb.WriteString(fmt.Sprintf("   Score: %.1f\n", r.Score))
	}
	return sb.String()
}

func (s *Server) getOverview(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("biotree overview\n\n")
	sb.WriteString(fmt.Sprintf("Default ref:    %s\n", s.cfg.Source.DefaultRef))
	sb.WriteString(fmt.Sprintf("Category root:  %s\n", s.cfg.Roots.Category))
	sb.WriteString(fmt.Sprintf("Predicate root: %s\n", s.cfg.Roots.Predicate))
	sb.WriteString(fmt.Sprintf("Aspect enum:    %s\n", s.cfg.Source.AspectEnum))
	if s.cfg.Surgery.Branch != "" {
		sb.WriteString(fmt.Sprintf("Surgery:        dissolve %s, retain [%s], placeholder %s\n",
			s.cfg.Surgery.Branch, strings.Join(s.cfg.Surgery.Retain, ", "), s.cfg.Surgery.Placeholder))
	} else {
		sb.WriteString("Surgery:        disabled\n")
	}

	sb.WriteString("\nSnapshots:\n")
	if s.archive == nil {
		sb.WriteString("  (no archive)\n")
		return sb.String()
	}
	infos, err := s.archive.List(ctx)
	if err != nil {
		sb.WriteString(fmt.Sprintf("  (unavailable: %v)\n", err))
		return sb.String()
	}
	if len(infos) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, info := range infos {
		sb.WriteString(fmt.Sprintf("  - %s (version %s, %d categories, %d predicates, %d aspects)\n",
			info.Ref, info.Version, info.Categories, info.Predicates, info.Aspects))
	}
	return sb.String()
}

// registerTools registers tools with the MCP server. Input schemas come
// from ListTools so both views agree.
func (s *Server) registerTools() {
	tools := make(map[string]Tool)
	for _, t := range s.ListTools() {
		tools[t.Name] = t
	}
	sdkTool := func(name string) *mcp.Tool {
		t := tools[name]
		return &mcp.Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}

	mcp.AddTool(s.server, sdkTool("biotree_tree"), textHandler(s.handleTree))
	mcp.AddTool(s.server, sdkTool("biotree_branches"), textHandler(s.handleBranches))
	mcp.AddTool(s.server, sdkTool("biotree_lookup"), textHandler(s.handleLookup))
	mcp.AddTool(s.server, sdkTool("biotree_search"), textHandler(s.handleSearch))
}

// registerResources registers resources with the MCP server.
func (s *Server) registerResources() {
	for _, r := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: req.Params.URI, MIMEType: r.MimeType, Text: text},
				},
			}, nil
		})
	}
}

// textHandler adapts a string-returning handler to the SDK signature.
func textHandler[In any](h func(context.Context, In) (string, error)) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, args In) (*mcp.CallToolResult, any, error) {
		text, err := h(ctx, args)
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: text},
			},
		}, nil, nil
	}
}

func mustSchema[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("schema for %T: %v", *new(T), err))
	}
	return s
}

func decodeArgs(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func kindOrDefault(kind string) string {
	if kind == "" {
		return "categories"
	}
	return kind
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}
