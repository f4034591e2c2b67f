package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Selectors gate conditional blocks of each config file.
type Selectors struct {
	Profile string
	Host    string
}

// ConfigNotFound is returned when the root config path does not exist.
type ConfigNotFound struct {
	Path string
}

func (e *ConfigNotFound) Error() string {
	return fmt.Sprintf("config not found: %s", e.Path)
}

// Load resolves rootPath's import graph into one Merged desired-state.
// extra is additional module paths supplied on the CLI, loaded as if
// imported by the root file.
func Load(rootPath string, sel Selectors, extra []string) (*Merged, []Warning, error) {
	if _, err := os.Stat(rootPath); err != nil {
		return nil, nil, &ConfigNotFound{Path: rootPath}
	}

	merged := NewMerged()
	visited := map[string]struct{}{}
	var allWarnings []Warning

	worklist := []workItem{{path: rootPath, kind: kindPackage}}
	for _, e := range extra {
		worklist = append(worklist, workItem{path: e, kind: kindPackage})
	}

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		canonical, err := canonicalize(item.path)
		if err != nil {
			allWarnings = append(allWarnings, Warning{File: item.path, Message: "could not resolve path: " + err.Error()})
			continue
		}
		if _, seen := visited[canonical]; seen {
			continue // cycle-safe: already resolved, not re-parsed
		}
		visited[canonical] = struct{}{}

		content, err := os.ReadFile(canonical)
		if err != nil {
			allWarnings = append(allWarnings, Warning{File: canonical, Message: "unresolved import: " + err.Error()})
			continue
		}

		nodes, err := ParseDocument(string(content), canonical)
		if err != nil {
			return nil, allWarnings, err
		}

		if item.kind == kindBackend {
			for _, node := range nodes {
				if d, ok := ExtractBackendDescriptor(node); ok {
					merged.Descriptors[d.Name] = d
				}
			}
			continue
		}

		result, warnings, err := foldFile(nodes, canonical, sel, merged)
		if err != nil {
			return nil, allWarnings, err
		}
		allWarnings = append(allWarnings, warnings...)

		dir := filepath.Dir(canonical)
		var nested []workItem
		chase := func(imports []string, kind string) {
			for _, imp := range imports {
				if strings.Contains(imp, "..") {
					allWarnings = append(allWarnings, Warning{File: canonical, Message: "rejected import containing '..': " + imp})
					continue
				}
				resolved := imp
				if !filepath.IsAbs(resolved) {
					resolved = filepath.Join(dir, resolved)
				}
				nested = append(nested, workItem{path: resolved, kind: kind})
			}
		}
		chase(result.imports, kindPackage)
		chase(result.backendImports, kindBackend)

		// Depth-first: a file's own imports are visited before its
		// remaining siblings, so the worklist is a stack (LIFO), not a
		// queue — nested imports are pushed in front of whatever else is
		// still pending (§4.1).
		worklist = append(nested, worklist...)
	}

	return merged, allWarnings, nil
}

const (
	kindPackage = "package"
	kindBackend = "backend"
)

// workItem is one path still to load, tagged with how it should be
// parsed: a package file folds into Merged directly, a backend-descriptor
// file only ever contributes `backend { ... }` nodes.
type workItem struct {
	path string
	kind string
}

// canonicalize resolves path to an absolute, symlink-resolved form for
// the cycle-safety visited-set. Symlink resolution is best-effort: a
// path that doesn't exist yet (or whose links can't be walked) falls
// back to its absolute form.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
