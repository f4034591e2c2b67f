package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/bluet/drift/backend"
	"github.com/bluet/drift/config"
	"github.com/bluet/drift/executor"
	"github.com/bluet/drift/hooks"
	"github.com/bluet/drift/planner"
	"github.com/bluet/drift/state"
)

// runContext returns a context cancelled on SIGINT/SIGTERM, the interrupt
// signal the executor checks for at phase boundaries (§5).
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// syncResult is what `sync --json` emits: the run's result plus, when
// requested, a unified diff of the ledger it produced (§4.9).
type syncResult struct {
	*executor.Result
	Diff string `json:"diff,omitempty"`
}

// withDiff renders before/after's ledger diff into result when before is
// non-nil (i.e. --diff was passed); before is nil, and the diff skipped,
// otherwise.
func withDiff(result *executor.Result, before, after *state.Ledger) syncResult {
	out := syncResult{Result: result}
	if before == nil || result == nil {
		return out
	}
	if diffText, err := state.RenderDiff(before, after); err == nil {
		out.Diff = diffText
	}
	return out
}

// lintOutput is what `lint --json` emits: the repair report plus, when
// requested, a unified diff of declared-vs-ledger-tracked packages (§4.9).
type lintOutput struct {
	state.RepairReport
	Diff string `json:"diff,omitempty"`
}

// mergedFromLedger renders a ledger's tracked packages as a synthetic
// Merged, so config.RenderDiff can compare "what the ledger last
// converged to" against what the config currently declares.
func mergedFromLedger(ledger *state.Ledger) *config.Merged {
	m := config.NewMerged()
	for _, entry := range ledger.Packages {
		m.Packages[backend.ID{Backend: entry.Backend, Name: entry.ConfigName}] = []string{"<ledger>"}
	}
	return m
}

func main() {
	app := &cli.App{
		Name:  "drift",
		Usage: "declarative, multi-backend package convergence",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "root config file", Value: defaultConfigPath()},
			&cli.StringFlag{Name: "state", Usage: "state ledger path", Value: defaultStatePath()},
			&cli.StringFlag{Name: "profile", Usage: "selector: profile name"},
			&cli.StringFlag{Name: "host", Usage: "selector: host name"},
			&cli.BoolFlag{Name: "json", Usage: "machine-readable output"},
		},
		Commands: []*cli.Command{
			syncCommand(),
			installCommand(),
			searchCommand(),
			lintCommand(),
			infoCommand(),
			cacheCommand(),
			upgradeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func defaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "drift", "config.kdl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "drift", "config.kdl")
}

func defaultStatePath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "drift", "state.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "drift", "state.json")
}

func loadEverything(c *cli.Context) (*config.Merged, *state.Ledger, *backend.Registry, []string, error) {
	sel := config.Selectors{Profile: c.String("profile"), Host: c.String("host")}
	merged, warnings, err := config.Load(c.String("config"), sel, nil)
	if err != nil {
		return nil, nil, nil, nil, &configError{err: err}
	}

	ledger, loadWarnings, err := state.Load(c.String("state"))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	msgs := make([]string, 0, len(warnings)+len(loadWarnings))
	for _, w := range warnings {
		msgs = append(msgs, w.String())
	}
	msgs = append(msgs, loadWarnings...)

	reg := buildRegistry(merged, backend.NewDefaultCommandRunner())
	return merged, ledger, reg, msgs, nil
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "run the convergence loop",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "prune"},
			&cli.BoolFlag{Name: "update"},
			&cli.BoolFlag{Name: "dry-run"},
			&cli.BoolFlag{Name: "hooks"},
			&cli.BoolFlag{Name: "yes"},
			&cli.BoolFlag{Name: "force"},
			&cli.BoolFlag{Name: "diff"},
		},
		Action: func(c *cli.Context) error {
			merged, ledger, reg, warnings, err := loadEverything(c)
			if err != nil {
				return err
			}

			target := planner.SyncTarget{Kind: planner.TargetAll}
			if name := c.Args().First(); name != "" {
				target = planner.SyncTarget{Kind: planner.TargetNamed, Name: name}
			}

			ctx, stop := runContext()
			defer stop()

			var ledgerBefore *state.Ledger
			if c.Bool("diff") {
				ledgerBefore = ledger.Clone()
			}

			ex := executor.New(reg)
			result, err := ex.Run(ctx, merged, ledger, c.String("state"), executor.Options{
				Target: target,
				Prune:  c.Bool("prune"),
				Update: c.Bool("update"),
				DryRun: c.Bool("dry-run"),
				Force:  c.Bool("force"),
				HooksGate: hooks.Gate{
					CLIFlag: c.Bool("hooks"),
					Policy:  merged.Policy,
					Enabled: merged.Experimental["enable-hooks"],
				},
			})
			if _, ok := err.(executor.Interrupted); ok {
				warnings = append(warnings, result.Warnings...)
				emit("sync", true, withDiff(result, ledgerBefore, ledger), warnings, nil, c.Bool("json"))
				return &interruptedError{}
			}
			if err != nil {
				emit("sync", false, nil, warnings, []string{err.Error()}, c.Bool("json"))
				return err
			}
			warnings = append(warnings, result.Warnings...)
			emit("sync", len(result.Errors) == 0, withDiff(result, ledgerBefore, ledger), warnings, result.Errors, c.Bool("json"))
			if len(result.Errors) > 0 {
				return fmt.Errorf("sync completed with errors on one or more backends")
			}
			return nil
		},
	}
}

func installCommand() *cli.Command {
	return &cli.Command{
		Name:  "install",
		Usage: "add packages to the declared set and converge",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend"},
			&cli.BoolFlag{Name: "no-sync"},
		},
		Action: func(c *cli.Context) error {
			backendName := c.String("backend")
			if backendName == "" {
				return &configError{err: fmt.Errorf("install requires --backend")}
			}
			specs := c.Args().Slice()
			if len(specs) == 0 {
				return &configError{err: fmt.Errorf("install requires at least one package name")}
			}

			merged, ledger, reg, warnings, err := loadEverything(c)
			if err != nil {
				return err
			}
			for _, name := range specs {
				merged.Packages[backend.ID{Backend: backendName, Name: name}] = append(merged.Packages[backend.ID{Backend: backendName, Name: name}], "<cli>")
			}

			if c.Bool("no-sync") {
				emit("install", true, map[string]interface{}{"declared": specs}, warnings, nil, c.Bool("json"))
				return nil
			}

			ctx, stop := runContext()
			defer stop()

			ex := executor.New(reg)
			result, err := ex.Run(ctx, merged, ledger, c.String("state"), executor.Options{
				Target: planner.SyncTarget{Kind: planner.TargetAll},
			})
			if _, ok := err.(executor.Interrupted); ok {
				emit("install", true, result, append(warnings, result.Warnings...), nil, c.Bool("json"))
				return &interruptedError{}
			}
			if err != nil {
				emit("install", false, nil, warnings, []string{err.Error()}, c.Bool("json"))
				return err
			}
			emit("install", len(result.Errors) == 0, result, append(warnings, result.Warnings...), result.Errors, c.Bool("json"))
			if len(result.Errors) > 0 {
				return fmt.Errorf("install completed with errors on one or more backends")
			}
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "search for packages across backends",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "local"},
			&cli.StringSliceFlag{Name: "backend"},
		},
		Action: func(c *cli.Context) error {
			query := c.Args().First()
			if query == "" {
				return &configError{err: fmt.Errorf("search requires a query")}
			}
			_, _, reg, warnings, err := loadEverything(c)
			if err != nil {
				return err
			}

			results := reg.SearchAll(context.Background(), query, c.Bool("local"))
			if names := c.StringSlice("backend"); len(names) > 0 {
				allowed := make(map[string]bool, len(names))
				for _, n := range names {
					allowed[n] = true
				}
				for name := range results {
					if !allowed[name] {
						delete(results, name)
					}
				}
			}
			emit("search", true, results, warnings, nil, c.Bool("json"))
			return nil
		},
	}
}

func lintCommand() *cli.Command {
	return &cli.Command{
		Name:  "lint",
		Usage: "run config policy checks and state repair",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fix"},
			&cli.BoolFlag{Name: "repair-state"},
			&cli.BoolFlag{Name: "diff"},
		},
		Action: func(c *cli.Context) error {
			merged, ledger, _, warnings, err := loadEverything(c)
			if err != nil {
				return err
			}

			for id, sources := range merged.Duplicates() {
				warnings = append(warnings, fmt.Sprintf("%s:%s declared in %s", id.Backend, id.Name, strings.Join(sources, ", ")))
			}
			conflicts := merged.CrossBackendConflicts()
			for name, backends := range conflicts {
				warnings = append(warnings, fmt.Sprintf("%s declared under multiple backends: %s", name, strings.Join(backends, ", ")))
			}
			if merged.Policy.OnConflict == "error" && len(conflicts) > 0 {
				conflictErr := fmt.Errorf("%d package name(s) declared under multiple backends (policy.on_conflict=error)", len(conflicts))
				emit("lint", false, nil, warnings, []string{conflictErr.Error()}, c.Bool("json"))
				return &configError{err: conflictErr}
			}

			var report state.RepairReport
			if c.Bool("repair-state") {
				report = state.Repair(ledger)
				if c.Bool("fix") {
					if err := state.Save(c.String("state"), ledger); err != nil {
						return err
					}
				}
			}

			output := lintOutput{RepairReport: report}
			if c.Bool("diff") {
				diffText, err := config.RenderDiff(mergedFromLedger(ledger), merged)
				if err != nil {
					return err
				}
				output.Diff = diffText
			}

			emit("lint", true, output, warnings, nil, c.Bool("json"))
			return nil
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "reports: --list, --plan, or a query",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "list"},
			&cli.BoolFlag{Name: "plan"},
		},
		Action: func(c *cli.Context) error {
			merged, ledger, reg, warnings, err := loadEverything(c)
			if err != nil {
				return err
			}

			switch {
			case c.Bool("list"):
				emit("info", true, ledger.Packages, warnings, nil, c.Bool("json"))
				return nil
			case c.Bool("plan"):
				rawSnapshot, refreshWarnings := reg.RefreshAll(context.Background())
				warnings = append(warnings, refreshWarnings...)
				available := make(map[string]bool, len(rawSnapshot))
				snapshot := make(map[backend.ID]backend.Metadata)
				for name, pkgs := range rawSnapshot {
					available[name] = true
					for pkgName, m := range pkgs {
						snapshot[backend.ID{Backend: name, Name: pkgName}] = m
					}
				}
				tx, planWarnings := planner.Plan(merged, ledger, snapshot, available, planner.SyncTarget{Kind: planner.TargetAll})
				for _, w := range planWarnings {
					warnings = append(warnings, w.Message)
				}
				emit("info", true, tx, warnings, nil, c.Bool("json"))
				return nil
			default:
				query := c.Args().First()
				if query == "" {
					return &configError{err: fmt.Errorf("info requires --list, --plan, or a query")}
				}
				results := reg.SearchAll(context.Background(), query, true)
				emit("info", true, results, warnings, nil, c.Bool("json"))
				return nil
			}
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "clean package manager caches",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "backends"},
		},
		Action: func(c *cli.Context) error {
			_, _, reg, warnings, err := loadEverything(c)
			if err != nil {
				return err
			}
			engines := reg.Available()
			targets := c.StringSlice("backends")
			var errs []string
			for name, engine := range engines {
				if len(targets) > 0 && !contains(targets, name) {
					continue
				}
				if !engine.Supports(backend.OpCacheClean) {
					warnings = append(warnings, fmt.Sprintf("backend %q has no cache_clean_cmd, skipping", name))
					continue
				}
				if err := engine.CleanCache(context.Background()); err != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", name, err))
				}
			}
			emit("cache", len(errs) == 0, nil, warnings, errs, c.Bool("json"))
			if len(errs) > 0 {
				return fmt.Errorf("cache clean failed for one or more backends")
			}
			return nil
		},
	}
}

func upgradeCommand() *cli.Command {
	return &cli.Command{
		Name:  "upgrade",
		Usage: "run each backend's upgrade_cmd, then sync",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "backends"},
			&cli.BoolFlag{Name: "no-sync"},
		},
		Action: func(c *cli.Context) error {
			merged, ledger, reg, warnings, err := loadEverything(c)
			if err != nil {
				return err
			}

			ctx, stop := runContext()
			defer stop()

			engines := reg.Available()
			targets := c.StringSlice("backends")
			var errs []string
			for name, engine := range engines {
				if len(targets) > 0 && !contains(targets, name) {
					continue
				}
				if !engine.Supports(backend.OpUpgrade) {
					warnings = append(warnings, fmt.Sprintf("backend %q has no upgrade_cmd, skipping", name))
					continue
				}
				if err := engine.Upgrade(ctx); err != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", name, err))
				}
			}

			if c.Bool("no-sync") || len(errs) > 0 {
				emit("upgrade", len(errs) == 0, nil, warnings, errs, c.Bool("json"))
				if len(errs) > 0 {
					return fmt.Errorf("upgrade failed for one or more backends")
				}
				return nil
			}

			ex := executor.New(reg)
			result, err := ex.Run(ctx, merged, ledger, c.String("state"), executor.Options{
				Target: planner.SyncTarget{Kind: planner.TargetAll},
				Update: true,
			})
			if _, ok := err.(executor.Interrupted); ok {
				emit("upgrade", true, result, append(warnings, result.Warnings...), nil, c.Bool("json"))
				return &interruptedError{}
			}
			if err != nil {
				emit("upgrade", false, nil, warnings, []string{err.Error()}, c.Bool("json"))
				return err
			}
			emit("upgrade", true, result, append(warnings, result.Warnings...), nil, c.Bool("json"))
			return nil
		},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
