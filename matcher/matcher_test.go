package matcher

import (
	"testing"

	"github.com/bluet/drift/backend"
)

func snapshot(ids ...backend.ID) map[backend.ID]backend.Metadata {
	s := make(map[backend.ID]backend.Metadata, len(ids))
	for _, id := range ids {
		s[id] = backend.Metadata{}
	}
	return s
}

func TestMatchSuffixVariant(t *testing.T) {
	want := backend.ID{Backend: "aur", Name: "gdu"}
	snap := snapshot(backend.ID{Backend: "aur", Name: "gdu-bin"})

	got, ok := Match(want, snap)
	if !ok || got.Name != "gdu-bin" {
		t.Fatalf("expected match on gdu-bin, got %+v, ok=%v", got, ok)
	}
}

func TestMatchPrefixVariant(t *testing.T) {
	want := backend.ID{Backend: "aur", Name: "rofi-wayland"}
	snap := snapshot(backend.ID{Backend: "aur", Name: "rofi"})

	got, ok := Match(want, snap)
	if !ok || got.Name != "rofi" {
		t.Fatalf("expected match on rofi, got %+v, ok=%v", got, ok)
	}
}

func TestMatchFlatpakReverseDNS(t *testing.T) {
	want := backend.ID{Backend: "flatpak", Name: "spotify"}
	installed := backend.ID{Backend: "flatpak", Name: "com.spotify.Client"}
	snap := snapshot(installed)

	got, ok := Match(want, snap)
	if !ok || got != installed {
		t.Fatalf("expected match on %+v, got %+v, ok=%v", installed, got, ok)
	}
}

func TestMatchArchFamily(t *testing.T) {
	want := backend.ID{Backend: "pacman", Name: "bat"}
	snap := snapshot(backend.ID{Backend: "aur", Name: "bat"})

	_, ok := Match(want, snap)
	if !ok {
		t.Fatal("expected pacman:bat to match aur:bat via arch-family grouping")
	}
}

func TestMatchNoCrossEcosystem(t *testing.T) {
	want := backend.ID{Backend: "npm", Name: "left-pad"}
	snap := snapshot(backend.ID{Backend: "pip", Name: "left-pad"})

	_, ok := Match(want, snap)
	if ok {
		t.Fatal("matcher must never span unrelated backends")
	}
}

func TestIsVariantOneDirectional(t *testing.T) {
	if !IsVariant("hyprland-git", "hyprland") {
		t.Error("expected hyprland-git to be a variant of hyprland")
	}
	if IsVariant("hyprland", "hyprland-git") {
		t.Error("variant matching must not be reversible")
	}
	if IsVariant("hyprland", "hyprland") {
		t.Error("a name is not a variant of itself")
	}
}
