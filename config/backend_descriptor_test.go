package config

import (
	"testing"

	"github.com/bluet/drift/backend"
)

func TestExtractBackendDescriptor(t *testing.T) {
	content := `
backend "customrepo" {
    binary "customrepo-cli"
    needs_sudo true
    list "{binary} list" {
        format "tab_separated"
        name_col 0
        version_col 1
    }
    install "{binary} install {packages}"
    remove "{binary} remove {packages}"
}
`
	nodes, err := ParseDocument(content, "backend.kdl")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected one top-level node, got %d", len(nodes))
	}

	d, ok := ExtractBackendDescriptor(nodes[0])
	if !ok {
		t.Fatal("expected a backend descriptor to be extracted")
	}
	if d.Name != "customrepo" {
		t.Errorf("expected name customrepo, got %q", d.Name)
	}
	if len(d.Binary) != 1 || d.Binary[0] != "customrepo-cli" {
		t.Errorf("expected one binary candidate, got %+v", d.Binary)
	}
	if !d.NeedsSudo {
		t.Error("expected needs_sudo to be true")
	}
	if d.ListFormat.Format != backend.FormatTabSeparated {
		t.Errorf("expected tab_separated list format, got %q", d.ListFormat.Format)
	}
	if d.InstallCmd == "" || d.RemoveCmd == "" {
		t.Error("expected install and remove commands to be set")
	}
}

func TestExtractBackendDescriptorRejectsNonBackendNode(t *testing.T) {
	nodes, err := ParseDocument(`exclude { "x" }`, "t.kdl")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, ok := ExtractBackendDescriptor(nodes[0]); ok {
		t.Error("expected a non-backend node to be rejected")
	}
}
