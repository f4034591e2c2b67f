package backend

import "strings"

// OptionOverrides is the per-backend `backend_options[backend]` map from
// the merged config: field name to replacement string value, where "-"
// means "unset this field".
type OptionOverrides map[string]string

// Warning is a non-fatal message produced while applying overrides.
type Warning struct {
	Message string
}

// ApplyOverrides returns a copy of d with §4.3 runtime overrides folded
// in: backend_options override descriptor fields by name, env is folded
// into PreinstallEnv (global scope first, backend scope after, last
// writer wins per KEY), and package_sources is appended and deduped.
func ApplyOverrides(d Descriptor, opts OptionOverrides, globalEnv, backendEnv, extraSources []string) (Descriptor, []Warning) {
	out := d.Clone()
	var warnings []Warning

	requiresPlaceholder := map[string]string{
		"install_cmd":      "{packages}",
		"remove_cmd":       "{packages}",
		"search_cmd":       "{query}",
		"search_local_cmd": "{query}",
	}

	for key, value := range opts {
		if placeholder, guarded := requiresPlaceholder[key]; guarded && value != "-" && !strings.Contains(value, placeholder) {
			warnings = append(warnings, Warning{Message: "override for " + key + " dropped: missing required placeholder " + placeholder})
			continue
		}

		switch key {
		case "install_cmd":
			out.InstallCmd = unsetOr(value)
		case "remove_cmd":
			out.RemoveCmd = unsetOr(value)
		case "list_cmd":
			out.ListCmd = unsetOr(value)
		case "search_cmd":
			out.SearchCmd = unsetOr(value)
		case "search_local_cmd":
			out.SearchLocalCmd = unsetOr(value)
		case "update_cmd":
			out.UpdateCmd = unsetOr(value)
		case "upgrade_cmd":
			out.UpgradeCmd = unsetOr(value)
		case "cache_clean_cmd":
			out.CacheCleanCmd = unsetOr(value)
		case "noconfirm_flag":
			out.NoConfirmFlag = unsetOr(value)
		default:
			warnings = append(warnings, Warning{Message: "unknown backend option key: " + key})
		}
	}

	out.PreinstallEnv = mergeEnv(out.PreinstallEnv, globalEnv, backendEnv)
	out.PackageSources = dedupAppend(out.PackageSources, extraSources)

	return out, warnings
}

func unsetOr(value string) string {
	if value == "-" {
		return ""
	}
	return value
}

// mergeEnv folds global then backend scope onto the descriptor's own
// preinstall env, last writer wins per KEY, preserving first-seen order.
func mergeEnv(base, global, backend []string) []string {
	order := append([]string{}, base...)
	values := map[string]string{}
	keyOf := func(kv string) string {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			return kv[:idx]
		}
		return kv
	}
	for _, kv := range base {
		values[keyOf(kv)] = kv
	}
	for _, layer := range [][]string{global, backend} {
		for _, kv := range layer {
			key := keyOf(kv)
			if _, seen := values[key]; !seen {
				order = append(order, kv)
			}
			values[key] = kv
		}
	}
	result := make([]string, 0, len(order))
	seen := map[string]bool{}
	for _, kv := range order {
		key := keyOf(kv)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, values[key])
	}
	return result
}

func dedupAppend(base, extra []string) []string {
	seen := map[string]bool{}
	result := make([]string, 0, len(base)+len(extra))
	for _, v := range append(append([]string{}, base...), extra...) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
