package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRefreshAllDegradesFailingBackendToEmptySnapshot(t *testing.T) {
	runner := NewMockCommandRunner()
	runner.AddCommand("true", []string{"list"}, []byte("htop 3.3.0\n"), 0, nil)
	runner.AddCommand("false", []string{"list"}, nil, 0, errors.New("boom"))

	reg := NewRegistry(runner)
	if err := reg.Register(Descriptor{
		Name: "good", Binary: []string{"true"}, ListCmd: "{binary} list",
		ListFormat: OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
	}); err != nil {
		t.Fatalf("registering good: %v", err)
	}
	if err := reg.Register(Descriptor{
		Name: "bad", Binary: []string{"false"}, ListCmd: "{binary} list",
		ListFormat: OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
	}); err != nil {
		t.Fatalf("registering bad: %v", err)
	}

	snapshot, warnings := reg.RefreshAll(context.Background())

	if len(snapshot["good"]) != 1 {
		t.Errorf("expected good backend's snapshot intact, got %+v", snapshot["good"])
	}
	if len(snapshot["bad"]) != 0 {
		t.Errorf("expected bad backend's snapshot to degrade to empty, got %+v", snapshot["bad"])
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning for the failing backend, got %v", warnings)
	}
}

func TestSearchAllDegradesFailingBackendToEmptyResults(t *testing.T) {
	runner := NewMockCommandRunner()
	runner.AddCommand("false", []string{"search", "htop"}, nil, 0, errors.New("boom"))

	reg := NewRegistry(runner)
	if err := reg.Register(Descriptor{
		Name: "bad", Binary: []string{"false"}, SearchCmd: "{binary} search {query}",
		SearchFormat: OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
	}); err != nil {
		t.Fatalf("registering bad: %v", err)
	}

	results := reg.SearchAll(context.Background(), "htop", false)
	if len(results["bad"]) != 0 {
		t.Errorf("expected empty results for failing backend, got %+v", results["bad"])
	}
}

// writeFakeBinary drops an executable named name into dir, for PATH-based
// availability tests that must not depend on what's really installed.
func writeFakeBinary(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("writing fake binary %s: %v", name, err)
	}
}

func TestAvailableFallsBackToOtherBackendsBinary(t *testing.T) {
	dir := t.TempDir()
	writeFakeBinary(t, dir, "pacman")
	t.Setenv("PATH", dir)

	reg := NewRegistry(NewMockCommandRunner())
	if err := reg.Register(Descriptor{Name: "pacman", Binary: []string{"pacman"}}); err != nil {
		t.Fatalf("registering pacman: %v", err)
	}
	if err := reg.Register(Descriptor{Name: "aur", Binary: []string{"yay", "paru"}, Fallback: "pacman"}); err != nil {
		t.Fatalf("registering aur: %v", err)
	}

	engines := reg.Available()
	aur, ok := engines["aur"]
	if !ok {
		t.Fatal("expected aur to be available via its fallback to pacman")
	}
	binary, ok := aur.resolveBinary()
	if !ok || binary != "pacman" {
		t.Fatalf("expected aur to resolve pacman as its binary, got %q, ok=%v", binary, ok)
	}
}

func TestAvailableWithoutFallbackBinaryIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PATH", dir)

	reg := NewRegistry(NewMockCommandRunner())
	if err := reg.Register(Descriptor{Name: "pacman", Binary: []string{"pacman"}}); err != nil {
		t.Fatalf("registering pacman: %v", err)
	}
	if err := reg.Register(Descriptor{Name: "aur", Binary: []string{"yay", "paru"}, Fallback: "pacman"}); err != nil {
		t.Fatalf("registering aur: %v", err)
	}

	engines := reg.Available()
	if _, ok := engines["aur"]; ok {
		t.Fatal("expected aur to be unavailable when neither it nor its fallback resolves")
	}
}
