package hooks

import (
	"context"
	"testing"
	"time"

	"github.com/bluet/drift/config"
)

func TestValidateRejectsEmbeddedSudo(t *testing.T) {
	if err := Validate("sudo rm -rf /tmp/x"); err == nil {
		t.Fatal("expected embedded sudo to be rejected")
	}
}

func TestValidateRejectsPathTraversal(t *testing.T) {
	if err := Validate("/usr/bin/../bin/rm"); err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}

func TestValidateRejectsDisallowedCharacters(t *testing.T) {
	if err := Validate("echo $(whoami)"); err == nil {
		t.Fatal("expected shell metacharacters to be rejected")
	}
}

func TestValidateAcceptsPlainCommand(t *testing.T) {
	if err := Validate("/usr/bin/notify-send sync done"); err != nil {
		t.Fatalf("expected a plain command to validate, got %v", err)
	}
}

func TestGateRequiresBothFlagAndPolicy(t *testing.T) {
	cases := []struct {
		name    string
		gate    Gate
		allowed bool
	}{
		{"neither set", Gate{}, false},
		{"flag only", Gate{CLIFlag: true}, false},
		{"policy only", Gate{Enabled: true}, false},
		{"both set", Gate{CLIFlag: true, Enabled: true}, true},
		{"forbidden overrides both", Gate{CLIFlag: true, Enabled: true, Policy: config.Policy{ForbidHooks: true}}, false},
	}
	for _, c := range cases {
		if got := c.gate.Allowed(); got != c.allowed {
			t.Errorf("%s: expected Allowed()=%v, got %v", c.name, c.allowed, got)
		}
	}
}

func TestRunnerExecutesMatchingPhaseOnly(t *testing.T) {
	r := &Runner{Timeout: 2 * time.Second}
	list := []config.Hook{
		{Command: "/bin/true", Phase: "pre_sync", ErrorBehavior: "warn"},
		{Command: "/bin/true", Phase: "post_sync", ErrorBehavior: "warn"},
	}

	outcomes, err := r.Run(context.Background(), list, PhasePreSync, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected exactly one hook to fire for pre_sync, got %d", len(outcomes))
	}
}

func TestRunnerHaltsOnRequiredFailure(t *testing.T) {
	r := &Runner{Timeout: 2 * time.Second}
	list := []config.Hook{
		{Command: "/bin/false", Phase: "pre_install", ErrorBehavior: "required"},
		{Command: "/bin/true", Phase: "pre_install", ErrorBehavior: "warn"},
	}

	outcomes, err := r.Run(context.Background(), list, PhasePreInstall, "")
	if err == nil {
		t.Fatal("expected required hook failure to abort the run")
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected the run to stop after the first hook, got %d outcomes", len(outcomes))
	}
}

func TestRunnerSkipsWrongPackageScope(t *testing.T) {
	r := &Runner{Timeout: 2 * time.Second}
	list := []config.Hook{
		{Command: "/bin/true", Phase: "post_install", Package: "htop", ErrorBehavior: "warn"},
	}

	outcomes, err := r.Run(context.Background(), list, PhasePostInstall, "curl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("expected package-scoped hook to be skipped for a different package, got %d", len(outcomes))
	}
}

func TestRunnerTimesOutAndKills(t *testing.T) {
	r := &Runner{Timeout: 150 * time.Millisecond}
	list := []config.Hook{
		{Command: "/bin/sleep 5", Phase: "pre_sync", ErrorBehavior: "warn"},
	}

	outcomes, _ := r.Run(context.Background(), list, PhasePreSync, "")
	if len(outcomes) != 1 {
		t.Fatalf("expected one outcome, got %d", len(outcomes))
	}
	if _, ok := outcomes[0].Err.(*TimeoutError); !ok {
		t.Errorf("expected a TimeoutError, got %v", outcomes[0].Err)
	}
}
