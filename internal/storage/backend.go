// Package storage provides the snapshot archive for biotree.
//
// A snapshot freezes every artifact produced for one schema ref so that
// versions can be listed, compared and searched without refetching. The
// archive is explicit: nothing in the request path reads it implicitly.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Benny93/biotree-go/internal/graph"
	"github.com/Benny93/biotree-go/internal/ingestion"
)

// ErrInvalidRef is returned for refs that cannot be used as archive keys.
var ErrInvalidRef = errors.New("invalid ref")

// Snapshot is an archived pipeline result.
type Snapshot struct {
	ID        string    `json:"id"`
	Ref       string    `json:"ref"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	Categories *graph.TreeNode `json:"categories"`
	Predicates *graph.TreeNode `json:"predicates"`
	Aspects    *graph.TreeNode `json:"aspects"`

	Branches        *graph.Classification `json:"branches"`
	RevisedBranches *graph.Classification `json:"revised_branches"`
	Conflicts       []graph.Conflict      `json:"conflicts"`
}

// NewSnapshot captures res under a fresh ID.
func NewSnapshot(res *ingestion.Result) *Snapshot {
	return &Snapshot{
		ID:              uuid.New().String(),
		Ref:             res.Ref,
		Version:         res.Version,
		CreatedAt:       time.Now().UTC(),
		Categories:      res.Categories,
		Predicates:      res.Predicates,
		Aspects:         res.Aspects,
		Branches:        res.Branches,
		RevisedBranches: res.RevisedBranches,
		Conflicts:       res.Conflicts,
	}
}

// Info summarizes the snapshot for listings.
func (s *Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{
		ID:         s.ID,
		Ref:        s.Ref,
		Version:    s.Version,
		CreatedAt:  s.CreatedAt,
		Categories: s.Categories.Count(),
		Predicates: s.Predicates.Count(),
		Aspects:    s.Aspects.Count(),
	}
}

// SnapshotInfo is the listing view of a snapshot.
type SnapshotInfo struct {
	ID         string    `json:"id"`
	Ref        string    `json:"ref"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Categories int       `json:"categories"`
	Predicates int       `json:"predicates"`
	Aspects    int       `json:"aspects"`
}

// Entity kinds indexed for search.
const (
	KindCategory  = ingestion.KindCategory
	KindPredicate = ingestion.KindPredicate
	KindAspect    = ingestion.KindAspect
)

// SearchResult represents a search hit in the archive.
type SearchResult struct {
	// Ref is the snapshot the name was found in.
	Ref string `json:"ref"`

	// Name is the converted entity name.
	Name string `json:"name"`

	// Kind is category, predicate or aspect.
	Kind string `json:"kind"`

	// Score is the relevance score (higher is better).
	Score float64 `json:"score"`
}

// Backend defines the interface for archive implementations.
//
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Initialize opens or creates the archive at the given path.
	// If readOnly is true, the archive is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// Save stores snap, replacing any snapshot with the same ref.
	Save(ctx context.Context, snap *Snapshot) error

	// Get returns the snapshot for ref, or nil if there is none.
	Get(ctx context.Context, ref string) (*Snapshot, error)

	// List returns all snapshots sorted by ref.
	List(ctx context.Context) ([]SnapshotInfo, error)

	// Delete removes the snapshot for ref and reports whether it existed.
	Delete(ctx context.Context, ref string) (bool, error)

	// Search finds entity names matching query. An empty ref searches
	// every snapshot. Results are sorted by score, then ref, kind and name.
	Search(ctx context.Context, query, ref string, limit int) ([]SearchResult, error)
}

// validateRef rejects refs that would collide with the key layout.
func validateRef(ref string) error {
	if ref == "" || strings.ContainsAny(ref, ":\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}

// indexedNames yields every (kind, name) pair of a snapshot.
func indexedNames(s *Snapshot) map[string][]string {
	return map[string][]string{
		KindCategory:  s.Categories.Names(),
		KindPredicate: s.Predicates.Names(),
		KindAspect:    s.Aspects.Names(),
	}
}
