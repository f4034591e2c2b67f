// Package backend implements the generic, data-driven subprocess backend
// engine: a backend descriptor plus a command runner turns into the
// list/install/remove/search/update/upgrade/clean-cache operations every
// package manager is driven through.
package backend

import "time"

// ID identifies a package within one backend. Two IDs are equal iff both
// the backend tag and the name are equal.
type ID struct {
	Backend string
	Name    string
}

// Metadata describes a package as observed on the system. Versions are
// opaque strings owned by the backend; no semver is assumed.
type Metadata struct {
	Version     string
	Variant     string
	InstalledAt time.Time
	SourceFile  string
}

// OutputFormat names one of the parsers the generic engine knows how to
// apply to a backend's stdout.
type OutputFormat string

const (
	FormatSplitWhitespace OutputFormat = "split_whitespace"
	FormatTabSeparated    OutputFormat = "tab_separated"
	FormatJSON            OutputFormat = "json"
	FormatJSONObjectKeys  OutputFormat = "json_object_keys"
	FormatJSONLines       OutputFormat = "json_lines"
	FormatNPMJSON         OutputFormat = "npm_json"
	FormatRegex           OutputFormat = "regex"
	FormatCustom          OutputFormat = "custom"
)

// OutputSpec carries the auxiliary fields a given OutputFormat needs.
type OutputSpec struct {
	Format OutputFormat

	// split_whitespace / tab_separated column indices.
	NameCol    int
	VersionCol int

	// json / json_object_keys
	JSONPath    string
	NameKey     string
	VersionKey  string

	// regex
	Pattern           string
	NameGroup         int
	VersionGroup      int
}

// Descriptor is the Go form of a `backend "<name>" { ... }` config block.
// It is loaded once per run and cloned per invocation; §4.3 overrides are
// applied to a copy, never to the original.
type Descriptor struct {
	Name     string
	Binary   []string // ordered alternatives
	Fallback string   // another backend's name, tried if none of ours resolves

	InstallCmd    string // required, must contain {packages}
	RemoveCmd     string
	ListCmd       string
	SearchCmd     string
	SearchLocalCmd string
	UpdateCmd     string
	UpgradeCmd    string
	CacheCleanCmd string

	ListFormat        OutputSpec
	SearchFormat      OutputSpec
	SearchLocalFormat OutputSpec

	NoConfirmFlag  string
	NeedsSudo      bool
	PreinstallEnv  []string // "KEY=VALUE"
	SupportedOS    []string
	PackageSources []string // {repos} placeholder contents
}

// Clone returns a deep-enough copy for per-run override application.
func (d Descriptor) Clone() Descriptor {
	clone := d
	clone.Binary = append([]string(nil), d.Binary...)
	clone.PreinstallEnv = append([]string(nil), d.PreinstallEnv...)
	clone.SupportedOS = append([]string(nil), d.SupportedOS...)
	clone.PackageSources = append([]string(nil), d.PackageSources...)
	return clone
}

// SearchResult is one hit from a search operation.
type SearchResult struct {
	Name        string
	Version     string
	Description string
}

// Operation names one of the eight generic engine operations, used for
// capability queries and error reporting.
type Operation string

const (
	OpList        Operation = "list"
	OpInstall     Operation = "install"
	OpRemove      Operation = "remove"
	OpSearch      Operation = "search"
	OpSearchLocal Operation = "search_local"
	OpUpdate      Operation = "update"
	OpUpgrade     Operation = "upgrade"
	OpCacheClean  Operation = "cache_clean"
)

// mutatingOps never elevate unless the descriptor explicitly requests it,
// and read-only ops never elevate, period.
var mutatingOps = map[Operation]bool{
	OpInstall:    true,
	OpRemove:     true,
	OpUpdate:     true,
	OpUpgrade:    true,
	OpCacheClean: true,
}

// IsMutating reports whether op may perform privileged, system-changing
// work (and therefore may be elevated, retried, and run serially).
func IsMutating(op Operation) bool {
	return mutatingOps[op]
}
