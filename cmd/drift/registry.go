package main

import (
	"github.com/bluet/drift/backend"
	"github.com/bluet/drift/config"
)

// buildRegistry merges the built-in backend descriptors with any custom
// ones loaded from backend_imports files (custom wins by name), applies
// each backend's §4.3 overrides, and registers the results.
func buildRegistry(merged *config.Merged, runner backend.CommandRunner) *backend.Registry {
	byName := make(map[string]backend.Descriptor)
	for _, d := range backend.DefaultDescriptors() {
		byName[d.Name] = d
	}
	for name, d := range merged.Descriptors {
		byName[name] = d
	}

	reg := backend.NewRegistry(runner)
	globalEnv := merged.Env["global"]
	for name, d := range byName {
		opts := backend.OptionOverrides(merged.BackendOptions[name])
		applied, _ := backend.ApplyOverrides(d, opts, globalEnv, merged.Env[name], merged.PackageSources[name])
		_ = reg.Register(applied)
	}
	return reg
}
