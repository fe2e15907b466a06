package frontier

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// Store persists the known URL set of a job across attempts.
type Store interface {
	AddKnown(ctx context.Context, entries []domain.FrontierEntry) ([]domain.FrontierEntry, error)
	ListKnown(ctx context.Context, jobID string) ([]domain.FrontierEntry, error)
}

// Frontier tracks what a job has discovered (known, kept across attempts)
// and what the current attempt has fetched (visited). Safe for concurrent use.
type Frontier struct {
	jobID string
	store Store

	mu      sync.Mutex
	known   map[string]domain.FrontierEntry
	seq     map[string]int
	visited map[string]struct{}
	next    int
}

// New creates an empty frontier for jobID backed by store.
func New(jobID string, store Store) *Frontier {
	return &Frontier{
		jobID:   jobID,
		store:   store,
		known:   make(map[string]domain.FrontierEntry),
		seq:     make(map[string]int),
		visited: make(map[string]struct{}),
	}
}

// Load reads the persisted known set so a retried or resumed job does not
// rediscover URLs it already counted.
func (f *Frontier) Load(ctx context.Context) error {
	entries, err := f.store.ListKnown(ctx, f.jobID)
	if err != nil {
		return fmt.Errorf("load frontier: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.remember(e)
	}
	return nil
}

// Add records urls found at depth and returns only the never-before-known
// ones. Malformed URLs are dropped.
func (f *Frontier) Add(ctx context.Context, urls []string, depth int) ([]domain.FrontierEntry, error) {
	now := time.Now().UTC()

	f.mu.Lock()
	candidates := make([]domain.FrontierEntry, 0, len(urls))
	batch := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		normalized, err := NormalizeURL(raw)
		if err != nil {
			continue
		}
		hash, err := URLHash(normalized)
		if err != nil {
			continue
		}
		if _, ok := f.known[hash]; ok {
			continue
		}
		if _, ok := batch[hash]; ok {
			continue
		}
		batch[hash] = struct{}{}
		candidates = append(candidates, domain.FrontierEntry{
			JobID:        f.jobID,
			URLHash:      hash,
			URL:          normalized,
			Depth:        depth,
			DiscoveredAt: now,
		})
	}
	f.mu.Unlock()

	if len(candidates) == 0 {
		return nil, nil
	}

	added, err := f.store.AddKnown(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("add to frontier: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range candidates {
		f.remember(e)
	}
	return added, nil
}

func (f *Frontier) remember(e domain.FrontierEntry) {
	if _, ok := f.known[e.URLHash]; ok {
		return
	}
	f.known[e.URLHash] = e
	f.seq[e.URLHash] = f.next
	f.next++
}

// Level returns the unvisited entries at depth in discovery order.
func (f *Frontier) Level(depth int) []domain.FrontierEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	level := make([]domain.FrontierEntry, 0)
	for hash, e := range f.known {
		if e.Depth != depth {
			continue
		}
		if _, done := f.visited[hash]; done {
			continue
		}
		level = append(level, e)
	}
	sort.Slice(level, func(i, j int) bool {
		return f.seq[level[i].URLHash] < f.seq[level[j].URLHash]
	})
	return level
}

// Visit marks hash as fetched in this attempt. It returns false when the
// URL was already visited, so callers fetch each URL at most once.
func (f *Frontier) Visit(hash string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[hash]; ok {
		return false
	}
	f.visited[hash] = struct{}{}
	return true
}

// RestoreVisited marks urls as visited, e.g. from the current attempt's job log
// after a restart.
func (f *Frontier) RestoreVisited(urls []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, raw := range urls {
		if hash, err := URLHash(raw); err == nil {
			f.visited[hash] = struct{}{}
		}
	}
}

// ResetVisited starts a new attempt. The known set is kept.
func (f *Frontier) ResetVisited() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited = make(map[string]struct{})
}

// KnownCount returns the number of discovered URLs.
func (f *Frontier) KnownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.known)
}

// VisitedCount returns the number of URLs fetched in this attempt.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// MaxDepth returns the deepest level holding a known URL, or -1 when empty.
func (f *Frontier) MaxDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	maxDepth := -1
	for _, e := range f.known {
		if e.Depth > maxDepth {
			maxDepth = e.Depth
		}
	}
	return maxDepth
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]domain.FrontierEntry
	hashes  map[string]map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]domain.FrontierEntry),
		hashes:  make(map[string]map[string]struct{}),
	}
}

// AddKnown implements Store.
func (s *MemoryStore) AddKnown(_ context.Context, entries []domain.FrontierEntry) ([]domain.FrontierEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]domain.FrontierEntry, 0, len(entries))
	for _, e := range entries {
		set, ok := s.hashes[e.JobID]
		if !ok {
			set = make(map[string]struct{})
			s.hashes[e.JobID] = set
		}
		if _, dup := set[e.URLHash]; dup {
			continue
		}
		set[e.URLHash] = struct{}{}
		s.entries[e.JobID] = append(s.entries[e.JobID], e)
		added = append(added, e)
	}
	return added, nil
}

// ListKnown implements Store.
func (s *MemoryStore) ListKnown(_ context.Context, jobID string) ([]domain.FrontierEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.FrontierEntry(nil), s.entries[jobID]...), nil
}
