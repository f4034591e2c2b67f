package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadVisitsImportsDepthFirst pins §4.1's "depth-first, siblings in
// declaration order" merge order: root imports A then B, and A itself
// imports C. The correct visitation order is root, A, C, B — so a
// last-writer-wins field set differently in C and B must end up holding
// B's value, not C's (which a breadth-first walk would produce instead).
func TestLoadVisitsImportsDepthFirst(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	write("root.kdl", `
import "a.kdl"
import "b.kdl"
`)
	write("a.kdl", `
import "c.kdl"
`)
	write("b.kdl", `
policy {
    orphans "ask"
}
`)
	write("c.kdl", `
policy {
    orphans "keep"
}
`)

	merged, warnings, err := Load(filepath.Join(dir, "root.kdl"), Selectors{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, w := range warnings {
		t.Errorf("unexpected warning: %v", w)
	}

	if merged.Policy.Orphans != "ask" {
		t.Fatalf("expected depth-first order to let b.kdl's orphans=\"ask\" win over c.kdl's orphans=\"keep\", got %q", merged.Policy.Orphans)
	}
}
