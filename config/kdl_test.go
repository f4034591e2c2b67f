package config

import (
	"testing"

	"github.com/bluet/drift/backend"
)

func TestParseDocumentBasicPackages(t *testing.T) {
	content := `
pkg {
    aur {
        hyprland
        "waybar"
    }
    flatpak {
        "com.spotify.Client"
    }
}
exclude {
    "unwanted-pkg"
}
`
	nodes, err := ParseDocument(content, "test.kdl")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	m := NewMerged()
	if _, _, err := foldFile(nodes, "test.kdl", Selectors{}, m); err != nil {
		t.Fatalf("unexpected fold error: %v", err)
	}

	if _, ok := m.Packages[backend.ID{Backend: "aur", Name: "hyprland"}]; !ok {
		t.Error("expected aur:hyprland to be declared")
	}
	if _, ok := m.Packages[backend.ID{Backend: "aur", Name: "waybar"}]; !ok {
		t.Error("expected aur:waybar to be declared")
	}
	if _, ok := m.Packages[backend.ID{Backend: "flatpak", Name: "com.spotify.Client"}]; !ok {
		t.Error("expected flatpak:com.spotify.Client to be declared")
	}
	if !m.Excludes["unwanted-pkg"] {
		t.Error("expected unwanted-pkg to be excluded")
	}
}

func TestDuplicateDeclarationRecordedNotMerged(t *testing.T) {
	m := NewMerged()
	id := backend.ID{Backend: "aur", Name: "htop"}
	m.Packages[id] = append(m.Packages[id], "a.kdl")
	m.Packages[id] = append(m.Packages[id], "b.kdl")

	dups := m.Duplicates()
	if len(dups[id]) != 2 {
		t.Fatalf("expected 2 source files recorded for duplicate, got %d", len(dups[id]))
	}
}

func TestPolicyBlock(t *testing.T) {
	content := `
policy {
    protected {
        linux
        systemd
    }
    orphans "ask"
    on-conflict "error"
}
`
	nodes, err := ParseDocument(content, "policy.kdl")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	m := NewMerged()
	if _, _, err := foldFile(nodes, "policy.kdl", Selectors{}, m); err != nil {
		t.Fatalf("unexpected fold error: %v", err)
	}
	if m.Policy.Orphans != "ask" {
		t.Errorf("expected orphans=ask, got %q", m.Policy.Orphans)
	}
	if m.Policy.OnConflict != "error" {
		t.Errorf("expected on-conflict=error, got %q", m.Policy.OnConflict)
	}
	if len(m.Policy.Protected) != 2 {
		t.Errorf("expected 2 protected packages, got %d", len(m.Policy.Protected))
	}
}

func TestSelectorsFilterBlocks(t *testing.T) {
	content := `
pkg profile="work" {
    aur {
        slack
    }
}
`
	nodes, err := ParseDocument(content, "selectors.kdl")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	m := NewMerged()
	if _, _, err := foldFile(nodes, "selectors.kdl", Selectors{Profile: "home"}, m); err != nil {
		t.Fatalf("unexpected fold error: %v", err)
	}
	if len(m.Packages) != 0 {
		t.Errorf("expected non-matching profile block to contribute nothing, got %+v", m.Packages)
	}
}
