package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/biotree-go/internal/config"
)

// DefaultDebounce is the quiet period after the last change before a batch
// of changes is reported.
const DefaultDebounce = 2 * time.Second

// defaultIgnore are editor artifacts that never name a document.
var defaultIgnore = []string{"*.swp", "*.swx", "*~", ".#*", "4913", ".*"}

// WatchOptions tunes Watch.
type WatchOptions struct {
	Debounce time.Duration

	// Ignore holds extra gitignore-style patterns. Patterns from a
	// .gitignore file in the watched directory are always applied.
	Ignore []string

	Logger *slog.Logger

	// OnReady, if set, is called once the watch is established.
	OnReady func()
}

// ChangeHandler receives the sorted, de-duplicated refs whose documents
// changed. For a single-file watch the only ref is "".
type ChangeHandler func(ctx context.Context, refs []string)

// Watch monitors a schema file, or a directory of per-ref documents, and
// calls onChange after each batch of changes. Blocks until ctx is
// cancelled.
func Watch(ctx context.Context, path string, opts WatchOptions, onChange ChangeHandler) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = config.Discard()
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("accessing %s: %w", path, err)
	}

	t := &target{dir: path}
	if !info.IsDir() {
		t.dir, t.file = filepath.Dir(path), filepath.Base(path)
	}
	matcher, err := loadIgnoreMatcher(t.dir, opts.Ignore)
	if err != nil {
		opts.Logger.Warn("ignoring unreadable .gitignore", "dir", t.dir, "error", err)
		matcher = gitignore.NewMatcher(parsePatterns(append(append([]string(nil), defaultIgnore...), opts.Ignore...)))
	}
	t.matcher = matcher

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files, so the directory is watched rather than
	// the file itself.
	if err := watcher.Add(t.dir); err != nil {
		return fmt.Errorf("watching %s: %w", t.dir, err)
	}
	opts.Logger.Info("watching for schema changes", "path", path)
	if opts.OnReady != nil {
		opts.OnReady()
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(opts.Debounce)
	batchTimer.Stop()
	defer batchTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			ref, ok := t.ref(event.Name)
			if !ok {
				continue
			}
			opts.Logger.Debug("schema change", "file", event.Name, "op", event.Op.String())
			changed[ref] = true
			batchTimer.Reset(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watch error", "error", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			refs := make([]string, 0, len(changed))
			for ref := range changed {
				refs = append(refs, ref)
			}
			sort.Strings(refs)
			changed = make(map[string]bool)
			onChange(ctx, refs)
		}
	}
}

type target struct {
	dir     string
	file    string
	matcher gitignore.Matcher
}

// ref maps an event path to the ref it affects.
func (t *target) ref(path string) (string, bool) {
	rel, err := filepath.Rel(t.dir, path)
	if err != nil || strings.Contains(rel, string(filepath.Separator)) {
		return "", false
	}
	if t.file != "" {
		return "", rel == t.file
	}
	if t.matcher.Match([]string{rel}, false) {
		return "", false
	}
	ext := filepath.Ext(rel)
	if ext != ".yaml" && ext != ".yml" {
		return "", false
	}
	return strings.TrimSuffix(rel, ext), true
}

// loadIgnoreMatcher combines the built-in patterns, the directory's
// .gitignore and extra.
func loadIgnoreMatcher(dir string, extra []string) (gitignore.Matcher, error) {
	lines := append([]string(nil), defaultIgnore...)

	content, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		lines = append(lines, strings.Split(string(content), "\n")...)
	}

	lines = append(lines, extra...)
	return gitignore.NewMatcher(parsePatterns(lines)), nil
}

func parsePatterns(lines []string) []gitignore.Pattern {
	var patterns []gitignore.Pattern
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns
}
