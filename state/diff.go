package state

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// linesOf renders a ledger's packages as sorted "backend:name\tversion"
// lines, one per entry, for diffing against another ledger snapshot.
func linesOf(l *Ledger) []string {
	if l == nil {
		return nil
	}
	lines := make([]string, 0, len(l.Packages))
	for key, entry := range l.Packages {
		lines = append(lines, fmt.Sprintf("%s\t%s", key, entry.Version))
	}
	sort.Strings(lines)
	return lines
}

// RenderDiff produces a unified diff between before and after's package
// sets, each rendered as sorted "backend:name\tversion" lines, for
// `sync --diff` (§4.9).
func RenderDiff(before, after *Ledger) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        linesOf(before),
		B:        linesOf(after),
		FromFile: "ledger (before)",
		ToFile:   "ledger (after)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("rendering ledger diff: %w", err)
	}
	return strings.TrimRight(text, "\n"), nil
}
