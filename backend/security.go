package backend

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// safePackageName is the allowlist: alphanumeric, dash, underscore, dot,
// plus, at sign (scoped packages like "@angular/cli"), forward slash.
var safePackageName = regexp.MustCompile(`^[a-zA-Z0-9@._+/-]+$`)

// shellDangerous is checked first so a rejected name gets a clearer
// "contains unsafe characters" reason instead of a bare pattern mismatch.
var shellDangerous = regexp.MustCompile("[;`$(){}|&<>\\\\'\"\n\r\t]")

// ErrInvalidPackageName is returned when a name fails validation.
var ErrInvalidPackageName = errors.New("invalid package name")

// ValidatePackageName enforces the non-negotiable security rule of §4.2:
// non-empty, at most 256 bytes, matching the safe alphabet, no shell
// metacharacters, no path traversal. Validation failure means the
// subprocess is never spawned.
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPackageName)
	}
	if len(name) > 256 {
		limit := name
		if len(limit) > 50 {
			limit = limit[:50]
		}
		return fmt.Errorf("%w: too long (max 256 bytes): %s...", ErrInvalidPackageName, limit)
	}
	if shellDangerous.MatchString(name) {
		return fmt.Errorf("%w: contains unsafe characters: %s", ErrInvalidPackageName, name)
	}
	if !safePackageName.MatchString(name) {
		return fmt.Errorf("%w: contains invalid characters: %s", ErrInvalidPackageName, name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: path traversal: %s", ErrInvalidPackageName, name)
	}
	return nil
}

// ValidatePackageNames validates every name, stopping at the first failure.
func ValidatePackageNames(names []string) error {
	for _, name := range names {
		if err := ValidatePackageName(name); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSearchQuery applies the same conservative alphabet to search
// terms before they are substituted into a command template.
func ValidateSearchQuery(query string) error {
	return ValidatePackageName(query)
}

// shellEscape single-quotes a value for safe substitution into a shell
// command string, the way the engine's template substitution requires.
// A literal single quote is closed, escaped, and reopened.
func shellEscape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
