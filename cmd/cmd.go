// Package cmd provides CLI command implementations for biotree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/biotree-go/internal/config"
	"github.com/Benny93/biotree-go/internal/graph"
	"github.com/Benny93/biotree-go/internal/ingestion"
	"github.com/Benny93/biotree-go/internal/schema"
	"github.com/Benny93/biotree-go/internal/server"
	"github.com/Benny93/biotree-go/internal/storage"
	"github.com/Benny93/biotree-go/internal/telemetry"
	"github.com/Benny93/biotree-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// TreeCmd prints one of the three hierarchies.
type TreeCmd struct {
	Kind   string `arg:"" optional:"" enum:"categories,predicates,aspects" default:"categories" help:"Hierarchy to print (categories, predicates, aspects)"`
	Ref    string `short:"r" help:"Biolink branch, tag or commit"`
	Root   string `help:"Print only the subtree rooted at this name"`
	Format string `short:"f" enum:"text,json" default:"text" help:"Output format (text, json)"`
}

// Run executes the tree command.
func (c *TreeCmd) Run(app *App) error {
	res, err := app.Build(context.Background(), c.Ref)
	if err != nil {
		return err
	}
	if !res.Available {
		app.warn("Schema %s is unavailable", res.Ref)
	}

	var tree *graph.TreeNode
	switch c.Kind {
	case "predicates":
		tree = res.Predicates
	case "aspects":
		tree = res.Aspects
	default:
		tree = res.Categories
	}
	if c.Root != "" {
		tree = tree.Find(c.Root)
		if tree == nil {
			return fmt.Errorf("%s is not in the %s tree of %s", c.Root, c.Kind, res.Ref)
		}
	}

	if c.Format == "json" {
		return app.printJSON(tree)
	}
	app.printTree(tree)
	return nil
}

// BranchesCmd prints the category to major branch assignment.
type BranchesCmd struct {
	Ref     string `short:"r" help:"Biolink branch, tag or commit"`
	Revised bool   `help:"Show the assignment after branch surgery"`
	Format  string `short:"f" enum:"text,json" default:"text" help:"Output format (text, json)"`
}

// Run executes the branches command.
func (c *BranchesCmd) Run(app *App) error {
	res, err := app.Build(context.Background(), c.Ref)
	if err != nil {
		return err
	}

	branches := res.Branches
	if c.Revised {
		branches = res.RevisedBranches
	}
	if c.Format == "json" {
		return app.printJSON(branches)
	}

	if !res.Available {
		app.warn("Schema %s is unavailable", res.Ref)
		return nil
	}
	majors := make([]string, 0, len(branches.MajorBranchToDescendants))
	for major := range branches.MajorBranchToDescendants {
		majors = append(majors, major)
	}
	sort.Strings(majors)
	for _, major := range majors {
		descendants := branches.MajorBranchToDescendants[major]
		app.printf("%s (%d)\n", major, len(descendants))
		for _, d := range descendants {
			app.printf("  %s\n", d)
		}
	}
	if c.Revised && res.Surgery != nil {
		app.printf("\nDissolved into %s: promoted %s, relocated %d\n",
			res.Surgery.Parent, strings.Join(res.Surgery.Promoted, ", "), len(res.Surgery.Relocated))
	}
	return nil
}

// LookupCmd locates one entity in the hierarchies.
type LookupCmd struct {
	Name   string `arg:"" help:"Converted entity name, e.g. Gene or related_to"`
	Ref    string `short:"r" help:"Biolink branch, tag or commit"`
	Format string `short:"f" enum:"text,json" default:"text" help:"Output format (text, json)"`
}

// Run executes the lookup command.
func (c *LookupCmd) Run(app *App) error {
	res, err := app.Build(context.Background(), c.Ref)
	if err != nil {
		return err
	}
	found, ok := res.Lookup(c.Name)
	if !ok {
		app.printf("'%s' not found in %s.\n", c.Name, res.Ref)
		return nil
	}
	if c.Format == "json" {
		return app.printJSON(found)
	}

	kind := found.Kind
	if found.Mixin {
		kind += ", mixin"
	}
	app.printf("## %s (%s)\n\n", found.Name, kind)
	app.printf("Path:      %s\n", strings.Join(found.Path, " > "))
	if found.MajorBranch != "" {
		app.printf("Branch:    %s\n", found.MajorBranch)
	}
	if found.RevisedMajorBranch != "" {
		app.printf("Revised:   %s\n", found.RevisedMajorBranch)
	}
	if len(found.Children) > 0 {
		app.printf("Children:  %s\n", strings.Join(found.Children, ", "))
	}
	return nil
}

// ServeCmd starts the HTTP viewer and API.
type ServeCmd struct {
	Addr     string `env:"BIOTREE_ADDR" help:"Listen address (overrides config)"`
	JSONLogs bool   `name:"json-logs" help:"Log as JSON"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(app *App) error {
	if c.Addr != "" {
		app.Config.Server.Addr = c.Addr
	}
	logger := app.Logger
	if c.JSONLogs {
		logger = config.NewLogger(app.Err, app.verbose, app.quiet, true)
	}

	src, err := app.Source()
	if err != nil {
		return err
	}
	srv, err := server.New(app.Config, src, logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	tel := app.Config.Telemetry
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Exporter:       tel.Exporter,
		Endpoint:       tel.Endpoint,
		Insecure:       tel.Insecure,
		ServiceVersion: Version,
		Writer:         app.Err,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown", "error", err)
		}
	}()

	app.success("Serving on %s", app.Config.Server.Addr)
	return srv.Run(ctx)
}

// MCPCmd starts the MCP server on stdio.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run(app *App) error {
	src, err := app.Source()
	if err != nil {
		return err
	}

	// The archive is optional: search reports its absence.
	var archive mcp.Archive
	if store, err := app.OpenArchive(true); err == nil {
		defer func() { _ = store.Close() }()
		archive = store
	} else {
		app.Logger.Debug("Archive unavailable", "error", err)
	}

	ctx, stop := signalContext()
	defer stop()

	// No output to stdout: the transport owns it.
	mcp.Version = Version
	return mcp.NewServer(app.Config, src, archive, app.Logger).Run(ctx)
}

// SnapshotCmd builds a version and stores it in the archive.
type SnapshotCmd struct {
	Ref string `arg:"" optional:"" help:"Biolink branch, tag or commit"`
}

// Run executes the snapshot command.
func (c *SnapshotCmd) Run(app *App) error {
	ref := c.Ref
	if ref == "" {
		ref = app.Config.Source.DefaultRef
	}
	src, err := app.Source()
	if err != nil {
		return err
	}

	var progress ingestion.ProgressCallback
	if app.interactive() {
		progress = func(phase string, pct float64) {
			fmt.Fprintf(app.Err, "\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}
	res := ingestion.Run(context.Background(), src, ref, app.Options(), progress)
	if progress != nil {
		fmt.Fprintln(app.Err)
	}
	if res.Err != nil {
		return fmt.Errorf("building %s: %w", ref, res.Err)
	}
	if !res.Available {
		return fmt.Errorf("schema %s is unavailable", ref)
	}

	store, err := app.OpenArchive(false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap := storage.NewSnapshot(res)
	if err := store.Save(context.Background(), snap); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	app.success("✓ Snapshot %s stored", res.Ref)
	app.printf("  ID:          %s\n", snap.ID)
	app.printf("  Version:     %s\n", res.Version)
	app.printf("  Categories:  %d\n", res.Stats.Categories)
	app.printf("  Predicates:  %d\n", res.Stats.Predicates)
	app.printf("  Aspects:     %d\n", res.Stats.Aspects)
	app.printf("  Duration:    %.2fs\n", res.Stats.DurationSecs)
	app.printConflicts(res.Conflicts)
	return nil
}

// ListCmd lists archived snapshots.
type ListCmd struct{}

// Run executes the list command.
func (c *ListCmd) Run(app *App) error {
	store, err := app.OpenArchive(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	infos, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}
	if len(infos) == 0 {
		app.printf("No snapshots found\n")
		return nil
	}

	app.printf("Snapshots:\n")
	for _, info := range infos {
		app.printf("\n  %s\n", info.Ref)
		app.printf("    Version:    %s\n", info.Version)
		app.printf("    Entities:   %d categories, %d predicates, %d aspects\n", info.Categories, info.Predicates, info.Aspects)
		app.printf("    Stored:     %s\n", info.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// SearchCmd searches entity names across archived snapshots.
type SearchCmd struct {
	Query string `arg:"" help:"Search query"`
	Ref   string `short:"r" help:"Restrict to one snapshot"`
	Limit int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the search command.
func (c *SearchCmd) Run(app *App) error {
	store, err := app.OpenArchive(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	results, err := store.Search(context.Background(), c.Query, c.Ref, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(results) == 0 {
		app.printf("No results found\n")
		return nil
	}
	for i, r := range results {
		app.printf("%d. %s (%s) in %s\n", i+1, r.Name, r.Kind, r.Ref)
		app.printf("   Score: %.1f\n", r.Score)
	}
	return nil
}

// DiffCmd compares two versions structurally.
type DiffCmd struct {
	Base    string `arg:"" help:"Base ref"`
	Head    string `arg:"" help:"Head ref"`
	Revised bool   `help:"Compare branch assignments after surgery"`
	Format  string `short:"f" enum:"text,json" default:"text" help:"Output format (text, json)"`
}

// DiffReport is the structural difference between two versions.
type DiffReport struct {
	Base       string               `json:"base"`
	Head       string               `json:"head"`
	Categories graph.DiffResult     `json:"categories"`
	Predicates graph.DiffResult     `json:"predicates"`
	Aspects    graph.DiffResult     `json:"aspects"`
	Branches   []graph.Reassignment `json:"branches"`
}

// Run executes the diff command.
func (c *DiffCmd) Run(app *App) error {
	var base, head *ingestion.Result
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		base, err = app.Build(ctx, c.Base)
		return err
	})
	g.Go(func() error {
		var err error
		head, err = app.Build(ctx, c.Head)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	for _, res := range []*ingestion.Result{base, head} {
		if !res.Available {
			return fmt.Errorf("schema %s is unavailable", res.Ref)
		}
	}

	report := diffResults(base, head, c.Revised)
	if c.Format == "json" {
		return app.printJSON(report)
	}

	app.printf("## Diff %s..%s\n", report.Base, report.Head)
	printed := false
	for _, section := range []struct {
		title string
		diff  graph.DiffResult
	}{
		{"Categories", report.Categories},
		{"Predicates", report.Predicates},
		{"Aspects", report.Aspects},
	} {
		if section.diff.Empty() {
			continue
		}
		printed = true
		app.printf("\n### %s\n", section.title)
		for _, name := range section.diff.Added {
			app.printf("  + %s\n", name)
		}
		for _, name := range section.diff.Removed {
			app.printf("  - %s\n", name)
		}
		for _, m := range section.diff.Moved {
			app.printf("  ~ %s: %s -> %s\n", m.Name, m.From, m.To)
		}
	}
	if len(report.Branches) > 0 {
		printed = true
		app.printf("\n### Major branches\n")
		for _, r := range report.Branches {
			app.printf("  ~ %s: %s -> %s\n", r.Name, r.From, r.To)
		}
	}
	if !printed {
		app.success("No structural changes")
	}
	return nil
}

func diffResults(base, head *ingestion.Result, revised bool) DiffReport {
	before, after := base.Branches, head.Branches
	baseCategories, headCategories := base.CategoryHierarchy, head.CategoryHierarchy
	if revised {
		before, after = base.RevisedBranches, head.RevisedBranches
		baseCategories, headCategories = base.RevisedHierarchy, head.RevisedHierarchy
	}
	return DiffReport{
		Base:       base.Ref,
		Head:       head.Ref,
		Categories: graph.Diff(baseCategories, headCategories),
		Predicates: graph.Diff(base.PredicateHierarchy, head.PredicateHierarchy),
		Aspects:    graph.Diff(base.AspectHierarchy, head.AspectHierarchy),
		Branches:   graph.DiffClassifications(before, after),
	}
}

// WatchCmd rebuilds local schema documents whenever they change.
type WatchCmd struct {
	Path     string        `arg:"" optional:"" help:"Schema file or directory of <ref>.yaml documents (default: source.file)"`
	Snapshot bool          `short:"s" help:"Store every successful rebuild in the archive"`
	Debounce time.Duration `default:"2s" help:"Quiet period before rebuilding"`
	Ignore   []string      `help:"Extra gitignore-style patterns to skip"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(app *App) error {
	path := c.Path
	if path == "" {
		path = app.Config.Source.File
	}
	if path == "" {
		return errors.New("nothing to watch. Pass a path or set source.file")
	}

	srcCfg := app.Config.Source
	srcCfg.File = path
	src, err := srcCfg.Source()
	if err != nil {
		return err
	}

	var store storage.Backend
	if c.Snapshot {
		archive, err := app.OpenArchive(false)
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()
		store = archive
	}

	ctx, stop := signalContext()
	defer stop()

	onChange := func(ctx context.Context, refs []string) {
		for _, ref := range refs {
			if ref == "" {
				ref = app.Config.Source.DefaultRef
			}
			rebuildRef(ctx, app, src, ref, store)
		}
	}

	app.printf("## Watch Mode\n")
	app.printf("Watching %s for changes (Ctrl+C to stop)\n\n", path)

	// A single file has one known ref; build it once up front.
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		onChange(ctx, []string{""})
	}

	opts := ingestion.WatchOptions{
		Debounce: c.Debounce,
		Ignore:   c.Ignore,
		Logger:   app.Logger,
	}
	err = ingestion.Watch(ctx, path, opts, onChange)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	app.printf("Watch mode stopped.\n")
	return nil
}

func rebuildRef(ctx context.Context, app *App, src schema.Source, ref string, store storage.Backend) {
	res := ingestion.Run(ctx, src, ref, app.Options(), nil)
	switch {
	case res.Err != nil:
		app.warn("✗ %s: %v", ref, res.Err)
		return
	case !res.Available:
		app.warn("✗ %s: schema unavailable", ref)
		return
	}

	app.success("✓ %s (version %s): %d categories, %d predicates, %d aspects in %.2fs",
		res.Ref, res.Version, res.Stats.Categories, res.Stats.Predicates, res.Stats.Aspects, res.Stats.DurationSecs)
	app.printConflicts(res.Conflicts)

	if store == nil {
		return
	}
	if err := store.Save(ctx, storage.NewSnapshot(res)); err != nil {
		app.warn("✗ %s: saving snapshot: %v", ref, err)
	}
}

// StatusCmd shows the effective configuration and archive state.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(app *App) error {
	cfg := app.Config
	app.printf("biotree %s\n", Version)
	if cfg.Source.File != "" {
		app.printf("  Source:         %s\n", cfg.Source.File)
	} else {
		app.printf("  Source:         %s\n", strings.Join(cfg.Source.URLTemplates, ", "))
	}
	app.printf("  Default ref:    %s\n", cfg.Source.DefaultRef)
	app.printf("  Roots:          %s, %s\n", cfg.Roots.Category, cfg.Roots.Predicate)
	if cfg.Surgery.Branch != "" {
		app.printf("  Surgery:        %s -> %s\n", cfg.Surgery.Branch, cfg.Surgery.Placeholder)
	} else {
		app.printf("  Surgery:        disabled\n")
	}
	app.printf("  Archive:        %s\n", cfg.Archive.Path)

	store, err := app.OpenArchive(true)
	if err != nil {
		app.printf("  Snapshots:      none\n")
		return nil
	}
	defer func() { _ = store.Close() }()
	app.printf("  Snapshots:      %d\n", store.Count())
	return nil
}

// CleanCmd deletes the snapshot archive.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(app *App) error {
	path := app.Config.Archive.Path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no archive found at %s. Nothing to clean", path)
	}

	if !c.Force {
		app.printf("Delete archive at %s? [y/N] ", path)
		var response string
		_, _ = fmt.Fscanln(app.In, &response)
		if response != "y" && response != "Y" {
			app.printf("Aborted\n")
			return nil
		}
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("deleting archive: %w", err)
	}

	app.success("Deleted %s", path)
	return nil
}

// CLI is the main CLI structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Config  string           `short:"c" type:"path" env:"BIOTREE_CONFIG" help:"Path to a YAML config file"`
	Archive string           `type:"path" env:"BIOTREE_ARCHIVE" help:"Archive directory (overrides config)"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Tree     TreeCmd     `cmd:"" help:"Print a hierarchy as a tree"`
	Branches BranchesCmd `cmd:"" help:"Print the major branch of every category"`
	Lookup   LookupCmd   `cmd:"" help:"Show where an entity sits in the hierarchies"`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP viewer and API"`
	MCP      MCPCmd      `cmd:"" help:"Start MCP server (stdio transport)"`
	Snapshot SnapshotCmd `cmd:"" help:"Build a version and store it in the archive"`
	List     ListCmd     `cmd:"" help:"List archived snapshots"`
	Search   SearchCmd   `cmd:"" help:"Search entity names in the archive"`
	Diff     DiffCmd     `cmd:"" help:"Structural comparison of two versions"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild local schema files on change"`
	Status   StatusCmd   `cmd:"" help:"Show configuration and archive status"`
	Clean    CleanCmd    `cmd:"" help:"Delete the snapshot archive"`

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// NewCLI creates a new CLI instance wired to the process streams.
func NewCLI() *CLI {
	return &CLI{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("biotree"),
		kong.Description("Biolink model hierarchies as trees, branches and snapshots"),
		kong.UsageOnError(),
		kong.Writers(c.out, c.errOut),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	app, err := c.newApp()
	if err != nil {
		return err
	}
	return kongCtx.Run(app)
}

func (c *CLI) newApp() (*App, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.Archive != "" {
		cfg.Archive.Path = c.Archive
	}

	return &App{
		Config:  cfg,
		Logger:  config.NewLogger(c.errOut, c.Verbose, c.Quiet, false),
		In:      c.in,
		Out:     c.out,
		Err:     c.errOut,
		verbose: c.Verbose,
		quiet:   c.Quiet,
	}, nil
}
