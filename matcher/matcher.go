// Package matcher reconciles a declared package identifier with the
// installed-name conventions real package managers use: suffix variants
// ("-git", "-bin", ...), prefix variants ("rofi-wayland" for "rofi"),
// reverse-DNS app ids (Flatpak), and Arch-family synonyms.
package matcher

import (
	"strings"

	"github.com/bluet/drift/backend"
)

// variantSuffixes is the closed, ordered list from the original
// implementation's package_suffixes table; matching is one-directional
// (base+suffix only, never suffix-stripping in reverse).
var variantSuffixes = []string{
	"-git", "-hg", "-nightly", "-daily", "-beta", "-alpha",
	"-bin", "-binary", "-minimal", "-lite", "-full",
}

// archFamily is the closed set of backends considered group-equivalent
// for "is it installed" queries: declaring a package under any one of
// these is satisfied by it being installed under any other.
var archFamily = map[string]bool{
	"aur":    true,
	"yay":    true,
	"paru":   true,
	"pacman": true,
}

// Match finds the installed identifier that represents the same logical
// package as want, or false if nothing in snapshot corresponds to it.
// The matcher never spans unrelated backends.
func Match(want backend.ID, snapshot map[backend.ID]backend.Metadata) (backend.ID, bool) {
	if _, ok := snapshot[want]; ok {
		return want, true
	}

	for _, suffix := range variantSuffixes {
		candidate := backend.ID{Backend: want.Backend, Name: want.Name + suffix}
		if _, ok := snapshot[candidate]; ok {
			return candidate, true
		}
	}

	if id, ok := matchPrefix(want, snapshot); ok {
		return id, true
	}

	if id, ok := matchFlatpakSubstring(want, snapshot); ok {
		return id, true
	}

	if id, ok := matchArchFamily(want, snapshot); ok {
		return id, true
	}

	return backend.ID{}, false
}

// matchPrefix tries an installed name as a prefix of the declared name in
// the same backend, e.g. declared "rofi-wayland" matches installed "rofi"
// (the base package a fork/variant name was built from).
func matchPrefix(want backend.ID, snapshot map[backend.ID]backend.Metadata) (backend.ID, bool) {
	for id := range snapshot {
		if id.Backend != want.Backend {
			continue
		}
		if id.Name != want.Name && strings.HasPrefix(want.Name, id.Name) {
			return id, true
		}
	}
	return backend.ID{}, false
}

// matchFlatpakSubstring handles reverse-DNS app ids: declared "spotify"
// matches installed "com.spotify.Client" via case-insensitive substring.
func matchFlatpakSubstring(want backend.ID, snapshot map[backend.ID]backend.Metadata) (backend.ID, bool) {
	if want.Backend != "flatpak" {
		return backend.ID{}, false
	}
	wantLower := strings.ToLower(want.Name)
	for id := range snapshot {
		if id.Backend != "flatpak" {
			continue
		}
		if strings.Contains(strings.ToLower(id.Name), wantLower) {
			return id, true
		}
	}
	return backend.ID{}, false
}

// matchArchFamily treats aur/yay/paru/pacman as one ecosystem: the same
// package name installed under any family member satisfies a declaration
// under any other member.
func matchArchFamily(want backend.ID, snapshot map[backend.ID]backend.Metadata) (backend.ID, bool) {
	if !archFamily[want.Backend] {
		return backend.ID{}, false
	}
	for id := range snapshot {
		if id.Name == want.Name && archFamily[id.Backend] {
			return id, true
		}
	}
	return backend.ID{}, false
}

// IsVariant reports whether name is exactly base plus one of the known
// variant suffixes (never the reverse: base is never a "variant" of name).
func IsVariant(name, base string) bool {
	if name == base {
		return false
	}
	for _, suffix := range variantSuffixes {
		if name == base+suffix {
			return true
		}
	}
	return false
}
