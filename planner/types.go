// Package planner computes the install/adopt/prune/update-metadata
// transaction between a merged desired-state and the currently observed
// installed snapshot, applying protected-package policy and filtering by
// backend availability.
package planner

import "github.com/bluet/drift/backend"

// SyncTargetKind distinguishes the three ways a sync run can be scoped.
type SyncTargetKind int

const (
	TargetAll SyncTargetKind = iota
	TargetBackend
	TargetNamed
)

// SyncTarget narrows a convergence run to everything, one backend, or
// packages/files matching a name.
type SyncTarget struct {
	Kind    SyncTargetKind
	Backend string
	Name    string
}

// Transaction is the planner's output: what to install, adopt, prune,
// and where only non-identifying metadata changed.
type Transaction struct {
	ToInstall               []backend.ID
	ToAdopt                 []Adoption
	ToPrune                 []backend.ID
	ToUpdateProjectMetadata []backend.ID
}

// Adoption records a declared package found already installed, possibly
// under a variant name.
type Adoption struct {
	ID                backend.ID
	ActualPackageName string
}

// VariantTransitionMismatch is one (configured, installed, backend)
// tuple the guard found.
type VariantTransitionMismatch struct {
	ConfiguredName string
	InstalledName  string
	Backend        string
}

// VariantTransitionError aborts planning before any mutation when the
// matcher would adopt a different installed name than the ledger
// records, and the caller did not pass force.
type VariantTransitionError struct {
	Mismatches []VariantTransitionMismatch
}

func (e *VariantTransitionError) Error() string {
	return "variant transition required: run 'drift switch' or update your config, or pass --force"
}
