package config

import (
	"fmt"
	"strings"

	"github.com/bluet/drift/backend"
)

// fileResult is what one parsed file contributes before being folded
// into a Merged: imports to chase, and the raw nodes that need merging.
type fileResult struct {
	imports        []string
	backendImports []string
	nodes          []*Node
}

// foldFile walks one file's top-level nodes into m, applying selectors
// and the §4.1 raw-to-merged mapping. It returns the imports to chase
// next (package-file and backend-descriptor imports are kept separate
// so the loader can dispatch them to the right parser).
func foldFile(nodes []*Node, path string, sel Selectors, m *Merged) (*fileResult, []Warning, error) {
	result := &fileResult{}
	var warnings []Warning

	for _, node := range nodes {
		if !selectorAllows(node, sel) {
			continue
		}
		switch node.Name {
		case "import", "imports":
			result.imports = append(result.imports, extractValues(node)...)
		case "backend_imports", "backend-imports":
			result.backendImports = append(result.backendImports, extractValues(node)...)
		case "pkg", "packages", "package":
			foldPackages(node, path, m)
		case "exclude", "excludes":
			for _, name := range extractValues(node) {
				m.Excludes[name] = true
			}
		case "conflict":
			if len(node.Args) == 2 {
				m.Conflicts = append(m.Conflicts, [2]string{node.Args[0].String(), node.Args[1].String()})
			}
		case "backend-options", "backend_options":
			foldBackendOptions(node, m)
		case "env":
			foldEnv(node, m)
		case "package-sources", "package_sources":
			foldPackageSources(node, m)
		case "policy":
			foldPolicy(node, m)
		case "hooks":
			foldHooks(node, m)
		case "experimental":
			for _, tag := range extractValues(node) {
				m.Experimental[tag] = true
			}
		case "mcp":
			foldMCP(node, m)
		default:
			// backend "<name>" { ... } blocks belong to backend-descriptor
			// files, handled by the backend-import path, not here.
		}
	}

	return result, warnings, nil
}

func selectorAllows(node *Node, sel Selectors) bool {
	if profile, ok := node.Props["profile"]; ok && sel.Profile != "" && profile != sel.Profile {
		return false
	}
	if host, ok := node.Props["host"]; ok && sel.Host != "" && host != sel.Host {
		return false
	}
	return true
}

// foldPackages walks `pkg { <backend> { <name> ... } ... }`: each child
// of the pkg node names a backend, and each grandchild (or bare arg)
// names a package.
func foldPackages(node *Node, sourceFile string, m *Merged) {
	for _, backendNode := range node.Children {
		backendName := strings.ToLower(backendNode.Name)
		for _, arg := range backendNode.Args {
			recordPackage(m, backendName, arg.String(), sourceFile)
		}
		for _, pkgNode := range backendNode.Children {
			recordPackage(m, backendName, pkgNode.Name, sourceFile)
		}
	}
}

func recordPackage(m *Merged, backendName, name, sourceFile string) {
	id := backend.ID{Backend: backendName, Name: name}
	m.Packages[id] = append(m.Packages[id], sourceFile)
}

func foldBackendOptions(node *Node, m *Merged) {
	for _, backendNode := range node.Children {
		name := backendNode.Name
		if m.BackendOptions[name] == nil {
			m.BackendOptions[name] = map[string]string{}
		}
		for key, value := range backendNode.Props {
			m.BackendOptions[name][key] = value // later entries override
		}
		for _, kv := range backendNode.Children {
			if len(kv.Args) > 0 {
				m.BackendOptions[name][kv.Name] = kv.Args[0].String()
			}
		}
	}
}

func foldEnv(node *Node, m *Merged) {
	for _, scopeNode := range node.Children {
		scope := scopeNode.Name
		for _, entry := range extractValues(scopeNode) {
			m.Env[scope] = appendDedupLastWins(m.Env[scope], entry)
		}
	}
}

// appendDedupLastWins appends entry, replacing any existing "KEY=" entry
// with the same key (duplicate KEY= within the same scope uses last
// occurrence, per §4.1).
func appendDedupLastWins(existing []string, entry string) []string {
	key := entry
	if idx := strings.IndexByte(entry, '='); idx >= 0 {
		key = entry[:idx]
	}
	out := make([]string, 0, len(existing)+1)
	for _, e := range existing {
		eKey := e
		if idx := strings.IndexByte(e, '='); idx >= 0 {
			eKey = e[:idx]
		}
		if eKey != key {
			out = append(out, e)
		}
	}
	out = append(out, entry)
	return out
}

func foldPackageSources(node *Node, m *Merged) {
	for _, backendNode := range node.Children {
		name := backendNode.Name
		for _, repo := range extractValues(backendNode) {
			m.PackageSources[name] = appendOrderPreservingDedup(m.PackageSources[name], repo)
		}
	}
}

func appendOrderPreservingDedup(existing []string, value string) []string {
	for _, e := range existing {
		if e == value {
			return existing
		}
	}
	return append(existing, value)
}

func foldPolicy(node *Node, m *Merged) {
	for _, child := range node.Children {
		switch child.Name {
		case "protected":
			m.Policy.Protected = append(m.Policy.Protected, extractValues(child)...)
		case "orphans":
			if len(child.Args) > 0 {
				m.Policy.Orphans = child.Args[0].String()
				m.Policy.orphansSet = true
			}
		case "require-backend", "require_backend":
			if len(child.Args) > 0 {
				m.Policy.RequireBackend = child.Args[0].Bool
				m.Policy.requireBackendSet = true
			}
		case "forbid-hooks", "forbid_hooks":
			if len(child.Args) > 0 {
				m.Policy.ForbidHooks = child.Args[0].Bool
				m.Policy.forbidHooksSet = true
			}
		case "on-duplicate", "on_duplicate":
			if len(child.Args) > 0 {
				m.Policy.OnDuplicate = child.Args[0].String()
				m.Policy.onDuplicateSet = true
			}
		case "on-conflict", "on_conflict":
			if len(child.Args) > 0 {
				m.Policy.OnConflict = child.Args[0].String()
				m.Policy.onConflictSet = true
			}
		}
	}
	// A `policy orphans="keep" { ... }` node may also set fields as
	// direct props on the policy node itself.
	for key, value := range node.Props {
		switch key {
		case "orphans":
			m.Policy.Orphans, m.Policy.orphansSet = value, true
		case "on-duplicate":
			m.Policy.OnDuplicate, m.Policy.onDuplicateSet = value, true
		case "on-conflict":
			m.Policy.OnConflict, m.Policy.onConflictSet = value, true
		}
	}
}

func foldHooks(node *Node, m *Merged) {
	for _, action := range node.Children {
		if action.Name != "action" && action.Name != "hook" {
			continue
		}
		hook := Hook{ErrorBehavior: "warn"}
		for _, child := range action.Children {
			if len(child.Args) == 0 {
				continue
			}
			value := child.Args[0].String()
			switch child.Name {
			case "command":
				hook.Command = value
			case "run-as", "run_as":
				hook.RunAs = value
			case "phase":
				hook.Phase = strings.ReplaceAll(value, "-", "_")
			case "package":
				hook.Package = value
			case "on-error", "on_error":
				hook.ErrorBehavior = value
			}
		}
		for key, value := range action.Props {
			switch key {
			case "command":
				hook.Command = value
			case "run-as":
				hook.RunAs = value
			case "phase":
				hook.Phase = strings.ReplaceAll(value, "-", "_")
			case "package":
				hook.Package = value
			case "on-error":
				hook.ErrorBehavior = value
			}
		}
		m.LifecycleActions = append(m.LifecycleActions, hook)
	}
}

func foldMCP(node *Node, m *Merged) {
	for _, child := range node.Children {
		switch child.Name {
		case "mode":
			if len(child.Args) > 0 {
				m.MCP.Mode = child.Args[0].String() // later mode overrides
			}
		case "allow-tools", "allow_tools":
			for _, tool := range extractValues(child) {
				m.MCP.AllowTools = appendOrderPreservingDedup(m.MCP.AllowTools, tool)
			}
		}
	}
	if mode, ok := node.Props["mode"]; ok {
		m.MCP.Mode = mode
	}
}

// Warning is a non-fatal message produced during load/merge.
type Warning struct {
	File    string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.File, w.Message)
}
