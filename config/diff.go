package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// linesOf renders a merged config's declared packages as sorted
// "backend:name <- file1, file2" lines.
func linesOf(m *Merged) []string {
	if m == nil {
		return nil
	}
	lines := make([]string, 0, len(m.Packages))
	for id, sources := range m.Packages {
		lines = append(lines, fmt.Sprintf("%s:%s <- %s", id.Backend, id.Name, strings.Join(sources, ", ")))
	}
	sort.Strings(lines)
	return lines
}

// RenderDiff produces a unified diff between before and after's declared
// package sets, for `lint --diff` (§4.9): before is typically what the
// ledger last converged to, after is what the config currently declares.
func RenderDiff(before, after *Merged) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        linesOf(before),
		B:        linesOf(after),
		FromFile: "declared packages (ledger)",
		ToFile:   "declared packages (config)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("rendering config diff: %w", err)
	}
	return strings.TrimRight(text, "\n"), nil
}
