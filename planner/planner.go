package planner

import (
	"fmt"
	"strings"

	"github.com/bluet/drift/backend"
	"github.com/bluet/drift/config"
	"github.com/bluet/drift/matcher"
	"github.com/bluet/drift/state"
)

// Warning is a non-fatal message produced while planning.
type Warning struct {
	Message string
}

// Plan implements §4.5: given the merged config, the current ledger, a
// fresh installed snapshot, the set of backends available this run, and
// a sync target, compute the transaction.
func Plan(
	merged *config.Merged,
	ledger *state.Ledger,
	snapshot map[backend.ID]backend.Metadata,
	available map[string]bool,
	target SyncTarget,
) (*Transaction, []Warning) {
	var warnings []Warning
	tx := &Transaction{}

	protected := protectedSet(merged.Policy.Protected)

	// Step 1: filter declared packages to available backends, one
	// warning per skipped backend (not per package).
	skippedByBackend := map[string]int{}
	declared := make(map[backend.ID]struct{})
	for id := range merged.Packages {
		if !available[id.Backend] {
			skippedByBackend[id.Backend]++
			continue
		}
		declared[id] = struct{}{}
	}
	for backendName, count := range skippedByBackend {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"skipping %d package(s), backend %q not available",
			count, backendName)})
	}

	// Step 2: for each remaining declared package, decide install / adopt
	// / metadata-update.
	claimedPhysicalNames := make(map[backend.ID]bool)
	for id := range declared {
		if merged.Excludes[id.Name] {
			continue
		}

		key := id.Backend + ":" + id.Name
		if _, inLedger := ledger.Packages[key]; inLedger {
			tx.ToUpdateProjectMetadata = append(tx.ToUpdateProjectMetadata, id)
			claimedPhysicalNames[id] = true
			continue
		}

		if matched, ok := matcher.Match(id, snapshot); ok {
			tx.ToAdopt = append(tx.ToAdopt, Adoption{ID: id, ActualPackageName: matched.Name})
			claimedPhysicalNames[backend.ID{Backend: id.Backend, Name: matched.Name}] = true
		} else {
			tx.ToInstall = append(tx.ToInstall, id)
			claimedPhysicalNames[id] = true
		}
	}

	// Step 3: ledger entries not in declared×available are prune
	// candidates, unless their backend is unavailable this run or
	// they're protected/critical.
	for key, entry := range ledger.Packages {
		id := backend.ID{Backend: entry.Backend, Name: entry.ConfigName}
		if _, stillDeclared := declared[id]; stillDeclared {
			continue
		}
		if !available[entry.Backend] {
			continue // do not prune what you cannot see
		}
		if protected[entry.ConfigName] || IsCritical(entry.ConfigName) {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("keeping %s (protected)", key)})
			continue
		}
		tx.ToPrune = append(tx.ToPrune, id)
	}

	// Step 4: apply sync target.
	tx = applyTarget(tx, target, merged)

	// Step 5: protected-name resolution — drop any prune candidate whose
	// *physical* installed name belongs to the set of names the active
	// config currently claims (via direct declaration or adoption).
	filteredPrune := tx.ToPrune[:0]
	for _, id := range tx.ToPrune {
		physical := id
		if matched, ok := matcher.Match(id, snapshot); ok {
			physical = matched
		}
		if claimedPhysicalNames[physical] {
			continue
		}
		filteredPrune = append(filteredPrune, id)
	}
	tx.ToPrune = filteredPrune

	return tx, warnings
}

func protectedSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func applyTarget(tx *Transaction, target SyncTarget, merged *config.Merged) *Transaction {
	switch target.Kind {
	case TargetAll:
		return tx
	case TargetBackend:
		return &Transaction{
			ToInstall:               filterIDs(tx.ToInstall, func(id backend.ID) bool { return id.Backend == target.Backend }),
			ToAdopt:                 filterAdoptions(tx.ToAdopt, func(a Adoption) bool { return a.ID.Backend == target.Backend }),
			ToPrune:                 filterIDs(tx.ToPrune, func(id backend.ID) bool { return id.Backend == target.Backend }),
			ToUpdateProjectMetadata: filterIDs(tx.ToUpdateProjectMetadata, func(id backend.ID) bool { return id.Backend == target.Backend }),
		}
	case TargetNamed:
		match := func(id backend.ID) bool {
			if strings.EqualFold(id.Name, target.Name) {
				return true
			}
			for _, sources := range merged.Packages {
				for _, file := range sources {
					if strings.EqualFold(stemOf(file), target.Name) {
						return true
					}
				}
			}
			return false
		}
		return &Transaction{
			ToInstall:               filterIDs(tx.ToInstall, match),
			ToAdopt:                 filterAdoptions(tx.ToAdopt, func(a Adoption) bool { return match(a.ID) }),
			ToPrune:                 filterIDs(tx.ToPrune, match),
			ToUpdateProjectMetadata: filterIDs(tx.ToUpdateProjectMetadata, match),
		}
	default:
		return tx
	}
}

func stemOf(path string) string {
	name := path
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[:idx]
	}
	return name
}

func filterIDs(ids []backend.ID, keep func(backend.ID) bool) []backend.ID {
	out := ids[:0]
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

func filterAdoptions(adoptions []Adoption, keep func(Adoption) bool) []Adoption {
	out := adoptions[:0]
	for _, a := range adoptions {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// CheckVariantTransitions recomputes, for every declared package, whether
// the matcher would adopt a different installed name than the ledger's
// actual_package_name. A non-empty result without force must abort
// planning before any mutation.
func CheckVariantTransitions(
	merged *config.Merged,
	ledger *state.Ledger,
	snapshot map[backend.ID]backend.Metadata,
	available map[string]bool,
) []VariantTransitionMismatch {
	var mismatches []VariantTransitionMismatch

	for id := range merged.Packages {
		if !available[id.Backend] {
			continue
		}
		matched, ok := matcher.Match(id, snapshot)
		if !ok || matched.Name == id.Name {
			continue
		}

		key := id.Backend + ":" + id.Name
		entry, tracked := ledger.Packages[key]
		if !tracked {
			// First contact: this is a normal adoption, not a transition.
			continue
		}
		if entry.ActualPackageName == matched.Name {
			continue
		}

		mismatches = append(mismatches, VariantTransitionMismatch{
			ConfiguredName: id.Name,
			InstalledName:  matched.Name,
			Backend:        id.Backend,
		})
	}

	return mismatches
}
