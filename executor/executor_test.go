package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bluet/drift/backend"
	"github.com/bluet/drift/config"
	"github.com/bluet/drift/hooks"
	"github.com/bluet/drift/planner"
	"github.com/bluet/drift/state"
)

func testDescriptor() backend.Descriptor {
	return backend.Descriptor{
		Name:       "aur",
		Binary:     []string{"true"},
		ListCmd:    "{binary} list",
		InstallCmd: "{binary} install {packages}",
		ListFormat: backend.OutputSpec{Format: backend.FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
	}
}

func newTestRegistry(t *testing.T) (*backend.Registry, *backend.MockCommandRunner) {
	t.Helper()
	runner := backend.NewMockCommandRunner()
	runner.AddCommand("true", []string{"list"}, []byte("htop 3.3.0\n"), 0, nil)
	reg := backend.NewRegistry(runner)
	if err := reg.Register(testDescriptor()); err != nil {
		t.Fatalf("registering descriptor: %v", err)
	}
	return reg, runner
}

func TestRunDryRunDoesNotExecuteOrWriteState(t *testing.T) {
	reg, runner := newTestRegistry(t)
	ex := New(reg)

	merged := config.NewMerged()
	merged.Packages[backend.ID{Backend: "aur", Name: "newtool"}] = []string{"base.kdl"}

	ledger := state.NewLedger()
	statePath := filepath.Join(t.TempDir(), "state.json")

	result, err := ex.Run(context.Background(), merged, ledger, statePath, Options{
		Target: planner.SyncTarget{Kind: planner.TargetAll},
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Transaction.ToInstall) != 1 {
		t.Fatalf("expected newtool queued for install, got %+v", result.Transaction.ToInstall)
	}
	if len(runner.InteractiveCalls) != 0 {
		t.Errorf("dry run must never invoke a mutating command, got %v", runner.InteractiveCalls)
	}
	loaded, _, err := state.Load(statePath)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(loaded.Packages) != 0 {
		t.Errorf("dry run must not write state, got %+v", loaded.Packages)
	}
}

func TestRunAdoptsAlreadyInstalledPackageWithoutMutating(t *testing.T) {
	reg, runner := newTestRegistry(t)
	ex := New(reg)

	merged := config.NewMerged()
	merged.Packages[backend.ID{Backend: "aur", Name: "htop"}] = []string{"base.kdl"}

	ledger := state.NewLedger()
	statePath := filepath.Join(t.TempDir(), "state.json")

	result, err := ex.Run(context.Background(), merged, ledger, statePath, Options{
		Target: planner.SyncTarget{Kind: planner.TargetAll},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Adopted) != 1 {
		t.Fatalf("expected htop to be adopted, got %+v", result)
	}
	if len(runner.InteractiveCalls) != 0 {
		t.Errorf("adoption must never invoke install, got %v", runner.InteractiveCalls)
	}
	if _, ok := ledger.Packages["aur:htop"]; !ok {
		t.Error("expected ledger to record the adopted package")
	}
}

func TestRunAdoptsVariantNameWithoutForce(t *testing.T) {
	runner := backend.NewMockCommandRunner()
	runner.AddCommand("true", []string{"list"}, []byte("gdu-bin 5.0\n"), 0, nil)
	reg := backend.NewRegistry(runner)
	if err := reg.Register(testDescriptor()); err != nil {
		t.Fatalf("registering descriptor: %v", err)
	}
	ex := New(reg)

	merged := config.NewMerged()
	merged.Packages[backend.ID{Backend: "aur", Name: "gdu"}] = []string{"base.kdl"}

	ledger := state.NewLedger()
	statePath := filepath.Join(t.TempDir(), "state.json")

	result, err := ex.Run(context.Background(), merged, ledger, statePath, Options{
		Target: planner.SyncTarget{Kind: planner.TargetAll},
	})
	if err != nil {
		t.Fatalf("unexpected error on first-contact variant adoption: %v", err)
	}
	if len(result.Adopted) != 1 || result.Adopted[0].Name != "gdu" {
		t.Fatalf("expected gdu adopted via its gdu-bin variant, got %+v", result)
	}
	if len(runner.InteractiveCalls) != 0 {
		t.Errorf("variant adoption must never invoke install, got %v", runner.InteractiveCalls)
	}
	entry, ok := ledger.Packages["aur:gdu"]
	if !ok || entry.ActualPackageName != "gdu-bin" {
		t.Fatalf("expected ledger to record gdu-bin as the actual package name, got %+v", entry)
	}
}

func TestRunHonorsOrphanKeepPolicy(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ex := New(reg)

	merged := config.NewMerged()
	merged.Policy.Orphans = "keep"
	ledger := state.NewLedger()
	ledger.Packages["aur:abandoned"] = state.PackageState{Backend: "aur", ConfigName: "abandoned"}
	statePath := filepath.Join(t.TempDir(), "state.json")

	result, err := ex.Run(context.Background(), merged, ledger, statePath, Options{
		Target: planner.SyncTarget{Kind: planner.TargetAll},
		Prune:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Pruned) != 0 {
		t.Errorf("expected nothing pruned under orphans=keep, got %+v", result.Pruned)
	}
	if _, ok := ledger.Packages["aur:abandoned"]; !ok {
		t.Error("expected the orphaned entry to remain under orphans=keep")
	}
}

func TestRunReturnsInterruptedAndStillWritesState(t *testing.T) {
	reg, runner := newTestRegistry(t)
	ex := New(reg)

	merged := config.NewMerged()
	merged.Packages[backend.ID{Backend: "aur", Name: "newtool"}] = []string{"base.kdl"}

	ledger := state.NewLedger()
	statePath := filepath.Join(t.TempDir(), "state.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ex.Run(ctx, merged, ledger, statePath, Options{
		Target: planner.SyncTarget{Kind: planner.TargetAll},
	})
	if _, ok := err.(Interrupted); !ok {
		t.Fatalf("expected Interrupted, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil result even when interrupted")
	}
	if len(runner.InteractiveCalls) != 0 {
		t.Errorf("an interrupted run must never invoke a mutating command, got %v", runner.InteractiveCalls)
	}
	if _, _, err := state.Load(statePath); err != nil {
		t.Fatalf("expected state to have been written on interrupt: %v", err)
	}
}

func TestRunWarnsWhenHooksDeclaredButNotGated(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ex := New(reg)

	merged := config.NewMerged()
	merged.LifecycleActions = append(merged.LifecycleActions, config.Hook{
		Command: "/usr/bin/notify-send done", Phase: "post_sync", ErrorBehavior: "warn",
	})
	ledger := state.NewLedger()
	statePath := filepath.Join(t.TempDir(), "state.json")

	result, err := ex.Run(context.Background(), merged, ledger, statePath, Options{
		Target:    planner.SyncTarget{Kind: planner.TargetAll},
		HooksGate: hooks.Gate{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if w == "hooks declared but not enabled (pass --hooks and set experimental.enable-hooks); displaying only" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a hooks-not-gated warning, got %v", result.Warnings)
	}
}
