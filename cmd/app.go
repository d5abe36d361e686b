package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/Benny93/biotree-go/internal/config"
	"github.com/Benny93/biotree-go/internal/graph"
	"github.com/Benny93/biotree-go/internal/ingestion"
	"github.com/Benny93/biotree-go/internal/schema"
	"github.com/Benny93/biotree-go/internal/storage"
)

// App carries what every command needs once flags are parsed.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	In  io.Reader
	Out io.Writer
	Err io.Writer

	verbose bool
	quiet   bool

	// source overrides the configured schema source.
	source schema.Source
}

// Source returns the schema source for this invocation.
func (a *App) Source() (schema.Source, error) {
	if a.source != nil {
		return a.source, nil
	}
	return a.Config.Source.Source()
}

// Options returns the pipeline options for this invocation.
func (a *App) Options() ingestion.Options {
	return ingestion.OptionsFromConfig(a.Config, a.Logger)
}

// Build runs the pipeline for ref against the configured source.
func (a *App) Build(ctx context.Context, ref string) (*ingestion.Result, error) {
	src, err := a.Source()
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = a.Config.Source.DefaultRef
	}
	res := ingestion.Run(ctx, src, ref, a.Options(), nil)
	if res.Err != nil {
		return nil, fmt.Errorf("building %s: %w", res.Ref, res.Err)
	}
	return res, nil
}

// OpenArchive opens the snapshot archive.
func (a *App) OpenArchive(readOnly bool) (*storage.BadgerBackend, error) {
	path := a.Config.Archive.Path
	if readOnly {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("no archive found at %s. Run 'biotree snapshot' first", path)
		}
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(path, readOnly); err != nil {
		return nil, fmt.Errorf("initializing archive: %w", err)
	}
	return store, nil
}

// interactive reports whether progress output would reach a terminal.
func (a *App) interactive() bool {
	f, ok := a.Err.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func (a *App) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(a.Out, format+"\n", args...)
}

func (a *App) warn(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(a.Out, format+"\n", args...)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

// printTree writes one name per line, indented by depth.
func (a *App) printTree(node *graph.TreeNode) {
	var walk func(n *graph.TreeNode, depth int)
	walk = func(n *graph.TreeNode, depth int) {
		a.printf("%s%s\n", strings.Repeat("  ", depth), n.Name)
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}
	walk(node, 0)
}

func (a *App) printConflicts(conflicts []graph.Conflict) {
	for _, c := range conflicts {
		a.warn("  conflict: %s declared under %s and %s (kept %s)", c.Child, c.Kept, c.Rejected, c.Kept)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
