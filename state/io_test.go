package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	ledger := NewLedger()
	ledger.Packages["aur:htop"] = PackageState{
		Backend:     "aur",
		ConfigName:  "htop",
		InstalledAt: time.Now(),
	}

	if err := Save(path, ledger); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if _, ok := loaded.Packages["aur:htop"]; !ok {
		t.Fatal("expected aur:htop to round-trip")
	}
}

func TestCrashRecoveryFromBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	ledger := NewLedger()
	ledger.Packages["aur:git"] = PackageState{Backend: "aur", ConfigName: "git", InstalledAt: time.Now()}
	if err := Save(path, ledger); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	// A second write rotates the first one into bak.1.
	if err := Save(path, ledger); err != nil {
		t.Fatalf("unexpected second save error: %v", err)
	}

	// Corrupt the primary; bak.1 should still hold the good prior write.
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("failed to corrupt primary: %v", err)
	}

	loaded, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a recovery warning")
	}
	if _, ok := loaded.Packages["aur:git"]; !ok {
		t.Fatal("expected recovered state to contain aur:git")
	}
}

func TestLoadMissingReturnsEmptyLedger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.json")

	ledger, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings for missing file, got %v", warnings)
	}
	if len(ledger.Packages) != 0 {
		t.Error("expected empty ledger")
	}
}

func TestRepairDropsEmptyNamesAndFixesKeys(t *testing.T) {
	ledger := NewLedger()
	ledger.Packages["aur:"] = PackageState{Backend: "aur", ConfigName: ""}
	ledger.Packages["wrong-key"] = PackageState{Backend: "aur", ConfigName: "htop"}

	report := Repair(ledger)

	if report.EmptyNamesDropped != 1 {
		t.Errorf("expected 1 empty name dropped, got %d", report.EmptyNamesDropped)
	}
	if report.KeysRewritten != 1 {
		t.Errorf("expected 1 key rewritten, got %d", report.KeysRewritten)
	}
	for key, entry := range ledger.Packages {
		if key != entry.Key() {
			t.Errorf("entry %+v has mismatched key %q", entry, key)
		}
		if entry.ConfigName == "" {
			t.Errorf("expected no entries with empty config_name, found %+v", entry)
		}
	}
}
