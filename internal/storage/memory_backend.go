package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend is an in-memory implementation of Backend for testing and
// for one-shot commands that never persist.
type MemoryBackend struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewMemoryBackend creates a new in-memory archive.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snapshots: make(map[string]*Snapshot)}
}

// Initialize implements Backend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots == nil {
		m.snapshots = make(map[string]*Snapshot)
	}
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = nil
	return nil
}

// Save implements Backend.
func (m *MemoryBackend) Save(ctx context.Context, snap *Snapshot) error {
	if err := validateRef(snap.Ref); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots == nil {
		m.snapshots = make(map[string]*Snapshot)
	}
	m.snapshots[snap.Ref] = snap
	return nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, ref string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[ref], nil
}

// List implements Backend.
func (m *MemoryBackend) List(ctx context.Context) ([]SnapshotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]SnapshotInfo, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Ref < infos[j].Ref })
	return infos, nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(ctx context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.snapshots[ref]
	delete(m.snapshots, ref)
	return ok, nil
}

// Search implements Backend.
func (m *MemoryBackend) Search(ctx context.Context, query, ref string, limit int) ([]SearchResult, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return []SearchResult{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	scores := make(map[SearchResult]float64)
	for _, s := range m.snapshots {
		if ref != "" && s.Ref != ref {
			continue
		}
		for kind, names := range indexedNames(s) {
			for _, name := range names {
				nameTokens := make(map[string]bool)
				for _, t := range tokenize(name) {
					nameTokens[t] = true
				}
				for _, qt := range queryTokens {
					if nameTokens[qt] {
						scores[SearchResult{Ref: s.Ref, Name: name, Kind: kind}] += tokenWeight(name, qt)
					}
				}
			}
		}
	}
	return rankResults(scores, limit), nil
}

// Count returns the number of stored snapshots.
func (m *MemoryBackend) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}
