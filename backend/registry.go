package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry holds the set of known backend descriptors and hands out
// Engines for them. Thread-safe for concurrent use: reads take RLock,
// writes take Lock, mirroring the teacher registry's discipline.
type Registry struct {
	mutex       sync.RWMutex
	descriptors map[string]Descriptor
	runner      CommandRunner
}

// NewRegistry returns an empty registry that builds engines against runner.
func NewRegistry(runner CommandRunner) *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
		runner:      runner,
	}
}

// Register adds or replaces a descriptor under its own name.
func (r *Registry) Register(d Descriptor) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if d.Name == "" {
		return fmt.Errorf("descriptor name cannot be empty")
	}
	r.descriptors[d.Name] = d
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Names returns every registered backend name, sorted.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available returns an Engine per descriptor whose binary resolves on
// this system, keyed by backend name.
func (r *Registry) Available() map[string]*Engine {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make(map[string]*Engine)
	for name, d := range r.descriptors {
		engine := NewEngine(d, r.runner)
		if d.Fallback != "" {
			if fb, ok := r.descriptors[d.Fallback]; ok {
				fbBinaries := fb.Binary
				engine.fallbackBinary = func() (string, bool) { return resolveCandidates(fbBinaries) }
			}
		}
		if engine.IsAvailable() {
			result[name] = engine
		}
	}
	return result
}

// Snapshot is one backend's contribution to an installed-state refresh.
type Snapshot struct {
	Backend  string
	Packages map[string]Metadata
}

// RefreshAll lists installed packages across every available backend in
// parallel and joins before returning (§4.6 step 1 / §5: "listing tasks
// do not share mutable state"). Per §4.2/§7, a listing failure for one
// backend downgrades that backend's contribution to an empty snapshot
// and is surfaced as a warning; it never blocks planning on the rest.
func (r *Registry) RefreshAll(ctx context.Context) (map[string]map[string]Metadata, []string) {
	engines := r.Available()

	group, groupCtx := errgroup.WithContext(ctx)
	results := make(chan Snapshot, len(engines))
	warningsCh := make(chan string, len(engines))

	for name, engine := range engines {
		name, engine := name, engine
		group.Go(func() error {
			packages, err := engine.ListInstalled(groupCtx)
			if err != nil {
				warningsCh <- fmt.Sprintf("backend %q: listing failed, snapshot empty: %v", name, err)
				packages = map[string]Metadata{}
			}
			results <- Snapshot{Backend: name, Packages: packages}
			return nil
		})
	}

	go func() {
		_ = group.Wait()
		close(results)
		close(warningsCh)
	}()

	snapshot := make(map[string]map[string]Metadata)
	for s := range results {
		snapshot[s.Backend] = s.Packages
	}

	var warnings []string
	for w := range warningsCh {
		warnings = append(warnings, w)
	}

	return snapshot, warnings
}

// SearchResultSet is one backend's contribution to a fan-out search.
type SearchResultSet struct {
	Backend string
	Results []SearchResult
}

// SearchAll searches every available backend concurrently. As in
// RefreshAll, an individual backend's search failure degrades to an
// empty result for that backend rather than aborting the others; the
// fan-out uses the teacher's WaitGroup/channel pattern verbatim, since a
// failing search from one backend shouldn't hide hits from the rest.
func (r *Registry) SearchAll(ctx context.Context, query string, local bool) map[string][]SearchResult {
	engines := r.Available()
	if len(engines) == 0 {
		return map[string][]SearchResult{}
	}

	results := make(chan SearchResultSet, len(engines))
	var wg sync.WaitGroup

	for name, engine := range engines {
		wg.Add(1)
		go func(name string, engine *Engine) {
			defer wg.Done()
			var hits []SearchResult
			var err error
			if local {
				hits, err = engine.SearchLocal(ctx, query)
			} else {
				hits, err = engine.Search(ctx, query)
			}
			if err != nil {
				hits = []SearchResult{}
			}
			results <- SearchResultSet{Backend: name, Results: hits}
		}(name, engine)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string][]SearchResult)
	for r := range results {
		out[r.Backend] = r.Results
	}
	return out
}
