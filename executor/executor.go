// Package executor drives one convergence run: refresh the installed
// snapshot, plan the transaction, confirm the variant-transition guard,
// then execute install/adopt/prune serially per backend with hook
// points, recording to the ledger only what was verified installed.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/bluet/drift/backend"
	"github.com/bluet/drift/config"
	"github.com/bluet/drift/hooks"
	"github.com/bluet/drift/matcher"
	"github.com/bluet/drift/planner"
	"github.com/bluet/drift/state"
)

// Interrupted is returned when a run is cancelled (§5: ctx cancellation,
// typically SIGINT) at a phase boundary. State is still saved for
// whatever was verified installed before the cancellation landed.
type Interrupted struct{}

func (Interrupted) Error() string { return "convergence run interrupted" }

// Options configures one run.
type Options struct {
	Target    planner.SyncTarget
	Prune     bool
	Update    bool
	DryRun    bool
	Force     bool
	HooksGate hooks.Gate
}

// Executor ties a backend registry and a hook runner to the planning and
// state packages.
type Executor struct {
	Registry *backend.Registry
	Hooks    *hooks.Runner
}

// New returns an Executor against registry, using the default hook runner.
func New(registry *backend.Registry) *Executor {
	return &Executor{Registry: registry, Hooks: hooks.NewRunner()}
}

// Result summarizes what a run did.
type Result struct {
	Transaction         *planner.Transaction
	Warnings            []string
	Errors              []string
	Installed           []backend.ID
	Adopted             []backend.ID
	Pruned              []backend.ID
	MetadataUpdated     []backend.ID
	SkippedBackendNotes []string
}

// Run performs one full convergence pass against merged and ledger,
// persisting the result to statePath unless opts.DryRun is set.
func (ex *Executor) Run(ctx context.Context, merged *config.Merged, ledger *state.Ledger, statePath string, opts Options) (*Result, error) {
	lock, err := state.AcquireLock(statePath, opts.DryRun)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	rawSnapshot, refreshWarnings := ex.Registry.RefreshAll(ctx)

	available := make(map[string]bool, len(rawSnapshot))
	snapshot := make(map[backend.ID]backend.Metadata)
	for backendName, packages := range rawSnapshot {
		available[backendName] = true
		for name, meta := range packages {
			snapshot[backend.ID{Backend: backendName, Name: name}] = meta
		}
	}

	if interrupted(ctx) {
		return ex.finishInterrupted(ledger, statePath, &Result{})
	}

	if mismatches := planner.CheckVariantTransitions(merged, ledger, snapshot, available); len(mismatches) > 0 && !opts.Force {
		return nil, &planner.VariantTransitionError{Mismatches: mismatches}
	}

	tx, planWarnings := planner.Plan(merged, ledger, snapshot, available, opts.Target)
	result := &Result{Transaction: tx}
	result.Warnings = append(result.Warnings, refreshWarnings...)
	for _, w := range planWarnings {
		result.Warnings = append(result.Warnings, w.Message)
	}

	if !opts.Update && len(tx.ToInstall) > 0 && state.StalePartialUpgrade(ledger) {
		result.Warnings = append(result.Warnings, "installing without --update; repository metadata may be stale (>24h)")
	}

	if opts.DryRun {
		return result, nil
	}

	if interrupted(ctx) {
		return ex.finishInterrupted(ledger, statePath, result)
	}

	engines := ex.Registry.Available()

	hookList := merged.LifecycleActions
	hooksOn := ex.Hooks != nil && opts.HooksGate.Allowed()
	runHooks := func(phase hooks.Phase, pkg string) {
		if !hooksOn {
			return
		}
		_, _ = ex.Hooks.Run(ctx, hookList, phase, pkg)
	}
	if !hooksOn && len(hookList) > 0 {
		result.Warnings = append(result.Warnings, "hooks declared but not enabled (pass --hooks and set experimental.enable-hooks); displaying only")
	}

	runHooks(hooks.PhasePreSync, "")

	installsByBackend := make(map[string][]string)
	for _, id := range tx.ToInstall {
		installsByBackend[id.Backend] = append(installsByBackend[id.Backend], id.Name)
	}

	for backendName, names := range installsByBackend {
		if interrupted(ctx) {
			return ex.finishInterrupted(ledger, statePath, result)
		}

		engine, ok := engines[backendName]
		if !ok {
			result.SkippedBackendNotes = append(result.SkippedBackendNotes, fmt.Sprintf("backend %q no longer available, skipping install", backendName))
			continue
		}

		pre, _ := engine.ListInstalled(ctx)

		for _, name := range names {
			runHooks(hooks.PhasePreInstall, name)
		}

		if err := engine.Install(ctx, names); err != nil {
			runHooks(hooks.PhaseOnFailure, backendName)
			result.Errors = append(result.Errors, fmt.Sprintf("installing on %q: %v", backendName, err))
			continue
		}

		post, _ := engine.ListInstalled(ctx)
		diff := diffNew(pre, post)

		for _, name := range names {
			if !diff[name] {
				continue
			}
			runHooks(hooks.PhasePostInstall, name)
			id := backend.ID{Backend: backendName, Name: name}
			result.Installed = append(result.Installed, id)
			ledger.Packages[id.Backend+":"+id.Name] = state.PackageState{
				Backend: id.Backend, ConfigName: id.Name, ProvidesName: id.Name,
				ActualPackageName: id.Name, InstalledAt: time.Now(), InstallReason: "declared",
			}
		}
	}

	for _, adoption := range tx.ToAdopt {
		key := adoption.ID.Backend + ":" + adoption.ID.Name
		ledger.Packages[key] = state.PackageState{
			Backend: adoption.ID.Backend, ConfigName: adoption.ID.Name,
			ProvidesName: adoption.ID.Name, ActualPackageName: adoption.ActualPackageName,
			InstalledAt: time.Now(), InstallReason: "adopted",
		}
		result.Adopted = append(result.Adopted, adoption.ID)
	}

	for _, id := range tx.ToUpdateProjectMetadata {
		key := id.Backend + ":" + id.Name
		entry, ok := ledger.Packages[key]
		if !ok {
			continue
		}
		now := time.Now()
		entry.LastSeenAt = &now
		ledger.Packages[key] = entry
		result.MetadataUpdated = append(result.MetadataUpdated, id)
	}

	if opts.Prune && len(tx.ToPrune) > 0 {
		orphans := merged.Policy.Orphans
		if orphans == "" {
			orphans = "keep"
		}
		switch orphans {
		case "keep":
			result.Warnings = append(result.Warnings, fmt.Sprintf("policy.orphans=keep; not pruning %d package(s)", len(tx.ToPrune)))
		case "ask":
			result.Warnings = append(result.Warnings, fmt.Sprintf("policy.orphans=ask; interactive confirmation unavailable in this run, skipping %d package(s)", len(tx.ToPrune)))
		case "remove":
			ex.prune(ctx, tx.ToPrune, snapshot, engines, ledger, result, runHooks)
		}
	}

	runHooks(hooks.PhasePostSync, "")
	runHooks(hooks.PhaseOnSuccess, "")

	if opts.Update {
		state.RecordLastUpdate(ledger)
	}

	if err := state.Save(statePath, ledger); err != nil {
		return result, err
	}

	return result, nil
}

func (ex *Executor) prune(
	ctx context.Context,
	candidates []backend.ID,
	snapshot map[backend.ID]backend.Metadata,
	engines map[string]*backend.Engine,
	ledger *state.Ledger,
	result *Result,
	runHooks func(hooks.Phase, string),
) {
	byBackend := make(map[string][]backend.ID)
	for _, id := range candidates {
		byBackend[id.Backend] = append(byBackend[id.Backend], id)
	}

	for backendName, ids := range byBackend {
		engine, ok := engines[backendName]
		if !ok {
			continue
		}
		if !engine.Supports(backend.OpRemove) {
			result.SkippedBackendNotes = append(result.SkippedBackendNotes, fmt.Sprintf("backend %q does not support removing packages, skipping %d", backendName, len(ids)))
			continue
		}

		physicalNames := make([]string, 0, len(ids))
		for _, id := range ids {
			physical := id.Name
			if matched, ok := matcher.Match(id, snapshot); ok {
				physical = matched.Name
			}
			physicalNames = append(physicalNames, physical)
		}

		for _, name := range physicalNames {
			runHooks(hooks.PhasePreRemove, name)
		}

		if err := engine.Remove(ctx, physicalNames); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("removing on %q failed: %v", backendName, err))
			continue
		}

		for i, name := range physicalNames {
			runHooks(hooks.PhasePostRemove, name)
			id := ids[i]
			delete(ledger.Packages, id.Backend+":"+id.Name)
			result.Pruned = append(result.Pruned, id)
		}
	}
}

// interrupted reports whether ctx has been cancelled. Checked only at
// phase boundaries (§5): after refresh, after the pre-mutation prompt
// point, and between per-backend install groups — never mid-subprocess.
func interrupted(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// finishInterrupted writes state for whatever was verified installed so
// far and returns the distinguished Interrupted status (§5, §7).
func (ex *Executor) finishInterrupted(ledger *state.Ledger, statePath string, result *Result) (*Result, error) {
	if err := state.Save(statePath, ledger); err != nil {
		return result, err
	}
	return result, Interrupted{}
}

func diffNew(pre, post map[string]backend.Metadata) map[string]bool {
	diff := make(map[string]bool)
	for name := range post {
		if _, existed := pre[name]; !existed {
			diff[name] = true
		}
	}
	return diff
}
