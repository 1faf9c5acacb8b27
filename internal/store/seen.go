package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// DefaultSeenFileName is the seen-set file inside the state directory.
const DefaultSeenFileName = "seen_ids.json"

// SeenSet holds the message identifiers already logged by the poller.
type SeenSet map[string]struct{}

// NewSeenSet builds a set from ids.
func NewSeenSet(ids ...string) SeenSet {
	s := make(SeenSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether it was absent.
func (s SeenSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Has reports whether id is in the set.
func (s SeenSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers.
func (s SeenSet) Len() int { return len(s) }

// Sorted returns the identifiers in ascending order.
func (s SeenSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SeenStore persists the seen-set between runs.
type SeenStore interface {
	// Load returns the persisted set. Any failure yields an empty set.
	Load() SeenSet

	// Save replaces the persisted set with ids.
	Save(ids SeenSet) error
}

type seenFile struct {
	IDs []any `json:"ids"`
}

// FileSeenStore keeps the seen-set as {"ids": [...]} in a JSON file.
type FileSeenStore struct {
	path string
}

// Compile-time check that FileSeenStore implements SeenStore.
var _ SeenStore = (*FileSeenStore)(nil)

// NewFileSeenStore returns a store backed by path.
func NewFileSeenStore(path string) *FileSeenStore {
	return &FileSeenStore{path: path}
}

// Path returns the backing file path.
func (f *FileSeenStore) Path() string { return f.path }

func (f *FileSeenStore) Load() SeenSet {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("FileSeenStore.Load: read failed, starting empty", "path", f.path, "error", err)
		}
		return SeenSet{}
	}
	var sf seenFile
	if err := json.Unmarshal(data, &sf); err != nil {
		slog.Warn("FileSeenStore.Load: parse failed, starting empty", "path", f.path, "error", err)
		return SeenSet{}
	}
	set := make(SeenSet, len(sf.IDs))
	for _, v := range sf.IDs {
		if id, ok := v.(string); ok {
			set[id] = struct{}{}
		}
	}
	slog.Debug("FileSeenStore.Load", "path", f.path, "count", len(set))
	return set
}

func (f *FileSeenStore) Save(ids SeenSet) error {
	if err := os.MkdirAll(filepath.Dir(f.path), DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.Marshal(struct {
		IDs []string `json:"ids"`
	}{IDs: ids.Sorted()})
	if err != nil {
		return fmt.Errorf("failed to encode seen ids: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write seen ids: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace seen ids file: %w", err)
	}
	return nil
}

// DedupSeenStore keeps the seen-set in the inbound_dedup table. It remembers
// which identifiers the table already holds, so Save only inserts new ones.
// Not safe for concurrent use.
type DedupSeenStore struct {
	repo      DedupRepo
	persisted SeenSet
}

// Compile-time check that DedupSeenStore implements SeenStore.
var _ SeenStore = (*DedupSeenStore)(nil)

// NewDedupSeenStore wraps a DedupRepo.
func NewDedupSeenStore(repo DedupRepo) *DedupSeenStore {
	return &DedupSeenStore{repo: repo, persisted: SeenSet{}}
}

func (d *DedupSeenStore) Load() SeenSet {
	ids, err := d.repo.ListSeenIDs()
	if err != nil {
		slog.Warn("DedupSeenStore.Load: query failed, starting empty", "error", err)
		d.persisted = SeenSet{}
		return SeenSet{}
	}
	d.persisted = NewSeenSet(ids...)
	return NewSeenSet(ids...)
}

func (d *DedupSeenStore) Save(ids SeenSet) error {
	pending := make([]string, 0)
	for id := range ids {
		if !d.persisted.Has(id) {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)

	added := 0
	for _, id := range pending {
		inserted, err := d.repo.RecordInbound(id, "")
		if err != nil {
			return fmt.Errorf("failed to persist seen id %q: %w", id, err)
		}
		d.persisted.Add(id)
		if inserted {
			added++
		}
	}
	slog.Debug("DedupSeenStore.Save", "total", ids.Len(), "pending", len(pending), "added", added)
	return nil
}
