package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for different data types
const (
	prefixSnapshot = "s:" // s:ref -> snapshot JSON
	prefixToken    = "t:" // t:ref:token:kind:name -> weight
)

// BadgerBackend is a BadgerDB-backed archive.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	mu          sync.RWMutex
	count       int
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true
	b.count = b.countSnapshots()

	return nil
}

func (b *BadgerBackend) countSnapshots() int {
	count := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSnapshot)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

func (b *BadgerBackend) ready() error {
	if !b.initialized || b.db == nil {
		return errors.New("badger backend not initialized")
	}
	return nil
}

// Save implements Backend. The snapshot and its token index are replaced in
// a single transaction.
func (b *BadgerBackend) Save(ctx context.Context, snap *Snapshot) error {
	if err := validateRef(snap.Ref); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	existed := false
	err = b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(snapshotKey(snap.Ref)); err == nil {
			existed = true
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := deletePrefix(txn, tokenRefPrefix(snap.Ref)); err != nil {
			return err
		}
		if err := txn.Set(snapshotKey(snap.Ref), data); err != nil {
			return fmt.Errorf("setting snapshot: %w", err)
		}
		for kind, names := range indexedNames(snap) {
			for _, name := range names {
				for _, token := range tokenize(name) {
					weight := strconv.FormatFloat(tokenWeight(name, token), 'f', -1, 64)
					if err := txn.Set(tokenKey(snap.Ref, token, kind, name), []byte(weight)); err != nil {
						return fmt.Errorf("setting token index: %w", err)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", snap.Ref, err)
	}
	if !existed {
		b.count++
	}
	return nil
}

// Get implements Backend.
func (b *BadgerBackend) Get(ctx context.Context, ref string) (*Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	var snap *Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(ref))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		snap = &Snapshot{}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, snap)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("getting snapshot: %w", err)
	}
	return snap, nil
}

// List implements Backend.
func (b *BadgerBackend) List(ctx context.Context) ([]SnapshotInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	infos := []SnapshotInfo{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSnapshot)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var snap Snapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return fmt.Errorf("unmarshaling snapshot: %w", err)
			}
			infos = append(infos, snap.Info())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Ref < infos[j].Ref })
	return infos, nil
}

// Delete implements Backend.
func (b *BadgerBackend) Delete(ctx context.Context, ref string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return false, err
	}

	existed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(snapshotKey(ref))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		if err := txn.Delete(snapshotKey(ref)); err != nil {
			return err
		}
		return deletePrefix(txn, tokenRefPrefix(ref))
	})
	if err != nil {
		return false, fmt.Errorf("deleting snapshot %s: %w", ref, err)
	}
	if existed {
		b.count--
	}
	return existed, nil
}

// Search implements Backend by scanning the token index.
func (b *BadgerBackend) Search(ctx context.Context, query, ref string, limit int) ([]SearchResult, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return []SearchResult{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	scores := make(map[SearchResult]float64)
	err := b.db.View(func(txn *badger.Txn) error {
		refs := []string{ref}
		if ref == "" {
			refs = b.refs(txn)
		}
		for _, r := range refs {
			for _, token := range queryTokens {
				if err := ctx.Err(); err != nil {
					return err
				}
				prefix := tokenRefPrefix(r) + token + ":"
				opts := badger.DefaultIteratorOptions
				opts.Prefix = []byte(prefix)
				it := txn.NewIterator(opts)
				for it.Rewind(); it.Valid(); it.Next() {
					item := it.Item()
					// Remaining key is kind:name
					kind, name, ok := strings.Cut(strings.TrimPrefix(string(item.Key()), prefix), ":")
					if !ok {
						continue
					}
					var weight float64
					_ = item.Value(func(val []byte) error {
						weight, _ = strconv.ParseFloat(string(val), 64)
						return nil
					})
					scores[SearchResult{Ref: r, Name: name, Kind: kind}] += weight
				}
				it.Close()
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	return rankResults(scores, limit), nil
}

// refs lists every archived ref.
func (b *BadgerBackend) refs(txn *badger.Txn) []string {
	var refs []string
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixSnapshot)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		refs = append(refs, strings.TrimPrefix(string(it.Item().Key()), prefixSnapshot))
	}
	return refs
}

// Count returns the number of stored snapshots.
func (b *BadgerBackend) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// deletePrefix removes every key under prefix inside txn.
func deletePrefix(txn *badger.Txn, prefix string) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("deleting key: %w", err)
		}
	}
	return nil
}

func snapshotKey(ref string) []byte {
	return []byte(prefixSnapshot + ref)
}

func tokenRefPrefix(ref string) string {
	return prefixToken + ref + ":"
}

func tokenKey(ref, token, kind, name string) []byte {
	return []byte(tokenRefPrefix(ref) + token + ":" + kind + ":" + name)
}
