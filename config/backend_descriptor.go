package config

import (
	"strconv"

	"github.com/bluet/drift/backend"
)

// ExtractBackendDescriptor turns one `backend "<name>" { ... }` node (§6)
// into a backend.Descriptor. Unrecognized children are ignored, matching
// the rest of this package's tolerant-of-unknown-nodes discipline.
func ExtractBackendDescriptor(node *Node) (backend.Descriptor, bool) {
	if node.Name != "backend" || len(node.Args) == 0 {
		return backend.Descriptor{}, false
	}

	d := backend.Descriptor{Name: node.Args[0].String()}
	if v, ok := node.Props["fallback"]; ok {
		d.Fallback = v
	}
	if v, ok := node.Props["needs_sudo"]; ok {
		d.NeedsSudo = v == "true"
	}

	for _, child := range node.Children {
		switch child.Name {
		case "binary":
			for _, arg := range child.Args {
				d.Binary = append(d.Binary, arg.String())
			}
		case "fallback":
			if len(child.Args) > 0 {
				d.Fallback = child.Args[0].String()
			}
		case "list":
			d.ListCmd, d.ListFormat = extractCommand(child)
		case "install":
			if len(child.Args) > 0 {
				d.InstallCmd = child.Args[0].String()
			}
		case "remove":
			if len(child.Args) > 0 {
				d.RemoveCmd = child.Args[0].String()
			}
		case "search":
			d.SearchCmd, d.SearchFormat = extractCommand(child)
		case "search_local", "search-local":
			d.SearchLocalCmd, d.SearchLocalFormat = extractCommand(child)
		case "update":
			if len(child.Args) > 0 {
				d.UpdateCmd = child.Args[0].String()
			}
		case "upgrade":
			if len(child.Args) > 0 {
				d.UpgradeCmd = child.Args[0].String()
			}
		case "cache_clean", "cache-clean":
			if len(child.Args) > 0 {
				d.CacheCleanCmd = child.Args[0].String()
			}
		case "needs_sudo", "needs-sudo":
			if len(child.Args) > 0 {
				d.NeedsSudo = child.Args[0].Bool
			}
		case "no_confirm_flag", "no-confirm-flag":
			if len(child.Args) > 0 {
				d.NoConfirmFlag = child.Args[0].String()
			}
		case "env":
			for _, kv := range extractValues(child) {
				d.PreinstallEnv = append(d.PreinstallEnv, kv)
			}
		case "supported_os", "supported-os":
			d.SupportedOS = append(d.SupportedOS, extractValues(child)...)
		}
	}

	return d, true
}

// extractCommand reads a `list "<cmd>" { format "..."; name_col 0; ... }`
// style child into its command string and output spec.
func extractCommand(node *Node) (string, backend.OutputSpec) {
	var cmd string
	if len(node.Args) > 0 {
		cmd = node.Args[0].String()
	}

	spec := backend.OutputSpec{}
	for _, field := range node.Children {
		value := ""
		if len(field.Args) > 0 {
			value = field.Args[0].String()
		}
		switch field.Name {
		case "format":
			spec.Format = backend.OutputFormat(value)
		case "name_col", "name-col":
			spec.NameCol = intArg(field)
		case "version_col", "version-col":
			spec.VersionCol = intArg(field)
		case "json_path", "json-path":
			spec.JSONPath = value
		case "name_key", "name-key":
			spec.NameKey = value
		case "version_key", "version-key":
			spec.VersionKey = value
		case "pattern":
			spec.Pattern = value
		case "name_group", "name-group":
			spec.NameGroup = intArg(field)
		case "version_group", "version-group":
			spec.VersionGroup = intArg(field)
		}
	}
	return cmd, spec
}

func intArg(node *Node) int {
	if len(node.Args) > 0 {
		arg := node.Args[0]
		if arg.Kind == KindString {
			n, _ := strconv.Atoi(arg.Str)
			return n
		}
		return int(arg.Int)
	}
	return 0
}
