package backend

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bluet/drift/osinfo"
)

// maxAttempts bounds the retry loop for mutating operations (§4.2).
const maxAttempts = 3

var (
	hostOSInfoOnce sync.Once
	hostOSInfo     *osinfo.OSInfo
)

// currentHostOS resolves the local OS/distribution once per process and
// caches it; repeated /etc/os-release reads per availability check would
// be wasted work across every descriptor in the registry.
func currentHostOS() *osinfo.OSInfo {
	hostOSInfoOnce.Do(func() {
		info, err := osinfo.GetOSInfo()
		if err != nil {
			info = &osinfo.OSInfo{}
		}
		hostOSInfo = info
	})
	return hostOSInfo
}

// supportsHostOS reports whether d declares no OS restriction, or the
// locally detected distribution appears in its supported_os list.
func supportsHostOS(d Descriptor) bool {
	if len(d.SupportedOS) == 0 {
		return true
	}
	host := currentHostOS()
	for _, supported := range d.SupportedOS {
		if strings.EqualFold(supported, host.Distribution) || strings.EqualFold(supported, host.Name) {
			return true
		}
	}
	return false
}

// retryBackoff is the fixed delay between mutating-operation attempts.
const retryBackoff = 2 * time.Second

// listTimeout bounds read-only list/search subprocesses.
const listTimeout = 30 * time.Second

// SystemCommandFailed is returned for a subprocess spawn failure, a
// non-zero exit, or a timeout expiry, matching spec §7's error kind.
type SystemCommandFailed struct {
	Command string
	Reason  string
}

func (e *SystemCommandFailed) Error() string {
	return fmt.Sprintf("command failed: %s: %s", e.Command, e.Reason)
}

// Engine drives one Descriptor through a CommandRunner.
type Engine struct {
	Descriptor Descriptor
	Runner     CommandRunner

	resolvedBinary string
	fallbackBinary func() (string, bool)
}

// NewEngine builds an Engine for the given (already override-applied)
// descriptor.
func NewEngine(d Descriptor, runner CommandRunner) *Engine {
	return &Engine{Descriptor: d, Runner: runner}
}

// IsAvailable resolves the backend's binary, falling back to another
// backend's binary if `fallback` is set and none of ours is on PATH.
func (e *Engine) IsAvailable() bool {
	if !supportsHostOS(e.Descriptor) {
		return false
	}
	_, ok := e.resolveBinary()
	return ok
}

func resolveCandidates(candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func (e *Engine) resolveBinary() (string, bool) {
	if e.resolvedBinary != "" {
		return e.resolvedBinary, true
	}
	if binary, ok := resolveCandidates(e.Descriptor.Binary); ok {
		e.resolvedBinary = binary
		return binary, true
	}
	if e.fallbackBinary != nil {
		if binary, ok := e.fallbackBinary(); ok {
			e.resolvedBinary = binary
			return binary, true
		}
	}
	return "", false
}

// Supports reports whether the descriptor carries a command template for op.
func (e *Engine) Supports(op Operation) bool {
	switch op {
	case OpList:
		return e.Descriptor.ListCmd != ""
	case OpInstall:
		return e.Descriptor.InstallCmd != ""
	case OpRemove:
		return e.Descriptor.RemoveCmd != ""
	case OpSearch:
		return e.Descriptor.SearchCmd != ""
	case OpSearchLocal:
		return e.Descriptor.SearchLocalCmd != ""
	case OpUpdate:
		return e.Descriptor.UpdateCmd != ""
	case OpUpgrade:
		return e.Descriptor.UpgradeCmd != ""
	case OpCacheClean:
		return e.Descriptor.CacheCleanCmd != ""
	default:
		return false
	}
}

func (e *Engine) templateFor(op Operation) string {
	switch op {
	case OpList:
		return e.Descriptor.ListCmd
	case OpInstall:
		return e.Descriptor.InstallCmd
	case OpRemove:
		return e.Descriptor.RemoveCmd
	case OpSearch:
		return e.Descriptor.SearchCmd
	case OpSearchLocal:
		return e.Descriptor.SearchLocalCmd
	case OpUpdate:
		return e.Descriptor.UpdateCmd
	case OpUpgrade:
		return e.Descriptor.UpgradeCmd
	case OpCacheClean:
		return e.Descriptor.CacheCleanCmd
	default:
		return ""
	}
}

// build substitutes placeholders and returns argv (binary first) plus the
// environment to apply. Sudo prefixing happens here for mutating ops.
func (e *Engine) build(op Operation, packages []string, query string) ([]string, []string, error) {
	binary, ok := e.resolveBinary()
	if !ok {
		return nil, nil, fmt.Errorf("backend %q: no resolvable binary", e.Descriptor.Name)
	}

	template := e.templateFor(op)
	if template == "" {
		return nil, nil, fmt.Errorf("backend %q: operation %s has no command template", e.Descriptor.Name, op)
	}

	if len(packages) > 0 {
		if err := ValidatePackageNames(packages); err != nil {
			return nil, nil, err
		}
	}
	if query != "" {
		if err := ValidateSearchQuery(query); err != nil {
			return nil, nil, err
		}
	}

	escaped := make([]string, len(packages))
	for i, p := range packages {
		escaped[i] = shellEscape(p)
	}
	repos := make([]string, len(e.Descriptor.PackageSources))
	for i, r := range e.Descriptor.PackageSources {
		repos[i] = shellEscape(r)
	}

	substituted := template
	substituted = strings.ReplaceAll(substituted, "{binary}", binary)
	substituted = strings.ReplaceAll(substituted, "{packages}", strings.Join(escaped, " "))
	substituted = strings.ReplaceAll(substituted, "{query}", shellEscape(query))
	substituted = strings.ReplaceAll(substituted, "{repos}", strings.Join(repos, " "))

	argv := strings.Fields(substituted)
	if len(argv) == 0 {
		return nil, nil, fmt.Errorf("backend %q: command template produced empty argv", e.Descriptor.Name)
	}

	if IsMutating(op) && e.Descriptor.NeedsSudo {
		argv = append([]string{"sudo"}, argv...)
	}

	return argv, e.Descriptor.PreinstallEnv, nil
}

// ListInstalled runs the list operation and parses its output.
func (e *Engine) ListInstalled(ctx context.Context) (map[string]Metadata, error) {
	if !e.Supports(OpList) {
		return nil, fmt.Errorf("backend %q: list not supported", e.Descriptor.Name)
	}
	argv, env, err := e.build(OpList, nil, "")
	if err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	result, err := e.Runner.Run(listCtx, argv[0], argv[1:], env...)
	if err != nil {
		return nil, &SystemCommandFailed{Command: strings.Join(argv, " "), Reason: err.Error()}
	}
	if result.ExitCode != 0 {
		// Non-zero exit of a listing operation: empty snapshot, caller logs.
		return map[string]Metadata{}, &SystemCommandFailed{
			Command: strings.Join(argv, " "),
			Reason:  fmt.Sprintf("exit status %d", result.ExitCode),
		}
	}
	parsed, err := ParseOutput(string(result.Output), e.Descriptor.ListFormat)
	if err != nil {
		// Parser errors downgrade to an empty snapshot per §7; the caller logs.
		return map[string]Metadata{}, fmt.Errorf("backend %q: parsing list output: %w", e.Descriptor.Name, err)
	}
	return parsed, nil
}

// Search runs the remote search operation.
func (e *Engine) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return e.search(ctx, OpSearch, e.Descriptor.SearchFormat, query)
}

// SearchLocal runs the local search operation.
func (e *Engine) SearchLocal(ctx context.Context, query string) ([]SearchResult, error) {
	return e.search(ctx, OpSearchLocal, e.Descriptor.SearchLocalFormat, query)
}

func (e *Engine) search(ctx context.Context, op Operation, format OutputSpec, query string) ([]SearchResult, error) {
	if !e.Supports(op) {
		return nil, fmt.Errorf("backend %q: %s not supported", e.Descriptor.Name, op)
	}
	argv, env, err := e.build(op, nil, query)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	result, err := e.Runner.Run(searchCtx, argv[0], argv[1:], env...)
	if err != nil {
		return nil, &SystemCommandFailed{Command: strings.Join(argv, " "), Reason: err.Error()}
	}
	if result.ExitCode != 0 {
		return nil, nil
	}

	parsed, err := ParseOutput(string(result.Output), format)
	if err != nil {
		return nil, nil // downgrade to empty result per §7 propagation policy
	}
	results := make([]SearchResult, 0, len(parsed))
	for name, meta := range parsed {
		results = append(results, SearchResult{Name: name, Version: meta.Version})
	}
	return results, nil
}

// Install runs the install operation with retry. It reports only whether
// the command succeeded; the executor is responsible for diffing pre/post
// snapshots to learn what actually landed.
func (e *Engine) Install(ctx context.Context, packages []string) error {
	return e.runMutating(ctx, OpInstall, packages, "")
}

// Remove runs the remove operation with retry.
func (e *Engine) Remove(ctx context.Context, packages []string) error {
	return e.runMutating(ctx, OpRemove, packages, "")
}

// Update runs the repository-refresh operation with retry.
func (e *Engine) Update(ctx context.Context) error {
	return e.runMutating(ctx, OpUpdate, nil, "")
}

// Upgrade runs the upgrade operation with retry.
func (e *Engine) Upgrade(ctx context.Context) error {
	return e.runMutating(ctx, OpUpgrade, nil, "")
}

// CleanCache runs the cache-clean operation with retry.
func (e *Engine) CleanCache(ctx context.Context) error {
	return e.runMutating(ctx, OpCacheClean, nil, "")
}

func (e *Engine) runMutating(ctx context.Context, op Operation, packages []string, query string) error {
	if !e.Supports(op) {
		return fmt.Errorf("backend %q: %s not supported", e.Descriptor.Name, op)
	}
	argv, env, err := e.build(op, packages, query)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = e.Runner.RunInteractive(ctx, argv[0], argv[1:], env...)
		if lastErr == nil {
			return nil
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &SystemCommandFailed{Command: strings.Join(argv, " "), Reason: lastErr.Error()}
}
