package config

import "github.com/bluet/drift/backend"

// Hook is one `hooks { action { ... } }` entry.
type Hook struct {
	Command       string
	RunAs         string // "user" | "root"
	Phase         string // pre_sync, post_sync, pre_install, post_install, pre_remove, post_remove, on_success, on_failure
	Package       string // empty unless this hook is scoped to one package
	ErrorBehavior string // required | warn | ignore
}

// Policy is the merged `policy { ... }` block. Zero value means "field
// not set by any file"; the unexported *Set flags record which fields a
// file actually carried, and merge overwrites a field only from a file
// that carries it ("present wins").
type Policy struct {
	Protected      []string
	Orphans        string // keep | remove | ask
	RequireBackend bool
	ForbidHooks    bool
	OnDuplicate    string // warn | error
	OnConflict     string // warn | error

	orphansSet, requireBackendSet, forbidHooksSet, onDuplicateSet, onConflictSet bool
}

// MCPPolicy is the optional `mcp { mode "..."; allow_tools { ... } }` block.
type MCPPolicy struct {
	Mode       string
	AllowTools []string
}

// Merged is the fully resolved desired-state produced by Load: every
// file in the import graph has been parsed and folded in per §4.1's
// merge rules.
type Merged struct {
	// Packages maps a package identifier to the non-empty list of source
	// files that declared it. Declaring the same identifier twice is
	// recorded, not merged away — duplicate detection depends on this.
	Packages map[backend.ID][]string

	Excludes       map[string]bool
	BackendOptions map[string]map[string]string // backend -> option -> value
	Env            map[string][]string          // scope ("global" or backend) -> KEY=VALUE
	PackageSources map[string][]string           // backend -> repo
	Policy         Policy
	MCP            MCPPolicy
	LifecycleActions []Hook
	Experimental   map[string]bool

	// Conflicts records explicit `conflict { a b }` pairings.
	Conflicts [][2]string

	// Descriptors holds custom backend descriptors loaded from
	// backend_imports files, keyed by backend name. These are folded on
	// top of the built-in defaults by the caller, last-imported-wins.
	Descriptors map[string]backend.Descriptor
}

// NewMerged returns an empty, fully initialized Merged ready for folding.
func NewMerged() *Merged {
	return &Merged{
		Packages:       make(map[backend.ID][]string),
		Excludes:       make(map[string]bool),
		BackendOptions: make(map[string]map[string]string),
		Env:            make(map[string][]string),
		PackageSources: make(map[string][]string),
		Experimental:   make(map[string]bool),
		Descriptors:    make(map[string]backend.Descriptor),
	}
}

// Duplicates returns every package identifier declared by more than one
// source file.
func (m *Merged) Duplicates() map[backend.ID][]string {
	out := make(map[backend.ID][]string)
	for id, sources := range m.Packages {
		if len(sources) > 1 {
			out[id] = sources
		}
	}
	return out
}

// CrossBackendConflicts returns package names declared under two or more
// distinct backends — a warning by default, an error under
// policy.on_conflict=error.
func (m *Merged) CrossBackendConflicts() map[string][]string {
	byName := make(map[string][]string)
	for id := range m.Packages {
		byName[id.Name] = append(byName[id.Name], id.Backend)
	}
	out := make(map[string][]string)
	for name, backends := range byName {
		if len(backends) > 1 {
			out[name] = backends
		}
	}
	return out
}
