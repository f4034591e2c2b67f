package main

import (
	"testing"

	"github.com/bluet/drift/backend"
	"github.com/bluet/drift/config"
)

func TestBuildRegistryIncludesDefaultsAndCustom(t *testing.T) {
	merged := config.NewMerged()
	merged.Descriptors["customrepo"] = backend.Descriptor{
		Name: "customrepo", Binary: []string{"customrepo-cli"}, InstallCmd: "{binary} install {packages}",
	}

	reg := buildRegistry(merged, backend.NewMockCommandRunner())

	names := reg.Names()
	if len(names) == 0 {
		t.Fatal("expected default descriptors to be registered")
	}

	found := false
	for _, n := range names {
		if n == "customrepo" {
			found = true
		}
	}
	if !found {
		t.Error("expected the custom backend descriptor to be registered alongside the defaults")
	}
}

func TestBuildRegistryCustomOverridesDefaultByName(t *testing.T) {
	merged := config.NewMerged()
	merged.Descriptors["apt"] = backend.Descriptor{
		Name: "apt", Binary: []string{"apt-replacement"}, InstallCmd: "{binary} install {packages}",
	}

	reg := buildRegistry(merged, backend.NewMockCommandRunner())
	d, ok := reg.Get("apt")
	if !ok {
		t.Fatal("expected apt descriptor to be registered")
	}
	if len(d.Binary) != 1 || d.Binary[0] != "apt-replacement" {
		t.Errorf("expected the custom descriptor to override the built-in apt, got %+v", d.Binary)
	}
}
