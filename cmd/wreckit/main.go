package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"github.com/wreckit/wreckit/internal/agent"
	"github.com/wreckit/wreckit/internal/config"
	"github.com/wreckit/wreckit/internal/doctor"
	"github.com/wreckit/wreckit/internal/docs"
	"github.com/wreckit/wreckit/internal/healing"
	"github.com/wreckit/wreckit/internal/implement"
	"github.com/wreckit/wreckit/internal/integrity"
	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/orchestrator"
	"github.com/wreckit/wreckit/internal/phaserunner"
	"github.com/wreckit/wreckit/internal/rollback"
	"github.com/wreckit/wreckit/internal/scaffold"
	"github.com/wreckit/wreckit/internal/store"
	"github.com/wreckit/wreckit/internal/ux"
	"github.com/wreckit/wreckit/internal/vcs"
)

func main() {
	app := &cli.Command{
		Name:        "wreckit",
		Usage:       "Backlog-to-pull-request automation engine",
		Description: "Run 'wreckit docs' for documentation on items, phases, and config.",
		Commands: []*cli.Command{
			initCmd(),
			statusCmd(),
			showCmd(),
			listCmd(),
			runCmd(),
			phaseCmd(),
			nextCmd(),
			allCmd(),
			rollbackCmd(),
			doctorCmd(),
			checkIntegrityCmd(),
			watchdogCmd(),
			docsCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

// findProjectRoot walks up from cwd looking for .wreckit/config.json.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".wreckit", "config.json")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no .wreckit/config.json found (searched from cwd to root)")
		}
		dir = parent
	}
}

func openProject() (string, *store.Store, *config.Config, error) {
	root, err := findProjectRoot()
	if err != nil {
		return "", nil, nil, err
	}
	s := store.Open(root)
	cfg, err := config.Load(s.ConfigPath(), s.LocalConfigPath())
	if err != nil {
		return "", nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return root, s, cfg, nil
}

func buildPhaseRunner(root string, s *store.Store, cfg *config.Config) (*phaserunner.Runner, error) {
	transport, err := agent.New(cfg.Agent.Kind, cfg.Agent.SandboxCommand, cfg.Agent.CompletionSignal, nil)
	if err != nil {
		return nil, err
	}
	g := &vcs.Git{Root: root}
	var host vcs.Host
	if cfg.Repo.Owner != "" {
		host = vcs.NewHost(os.Getenv("GITHUB_TOKEN"))
	}

	loop := &implement.Loop{
		Store:     s,
		VCS:       g,
		Transport: transport,
		Config:    cfg,
		Healing:   healing.NewController(s, root),
		Progress:  nil,
	}

	r := &phaserunner.Runner{
		Store:       s,
		Config:      cfg,
		Transport:   transport,
		VCS:         g,
		Host:        host,
		Implement:   loop,
		ProjectRoot: root,
	}
	r.Progress = func(ev phaserunner.Event) {
		switch ev.Kind {
		case phaserunner.EventPhaseStarted:
			ux.PhaseHeader(ev.ItemID, ev.Phase)
		case phaserunner.EventPhaseCompleted:
			ux.PhaseComplete(ev.ItemID, ev.Phase, 0)
		case phaserunner.EventPhaseFailed:
			ux.PhaseFail(ev.ItemID, ev.Phase, ev.Err.Error())
		case phaserunner.EventPhaseSkipped:
			ux.PhaseSkip(ev.ItemID, ev.Phase)
		case phaserunner.EventToolMismatch:
			ux.ToolMismatch(ev.Message)
		}
	}
	loop.Progress = func(ev implement.Event) {
		ux.AssistantChunk(ev.ItemID, ev.Message)
	}
	return r, nil
}

// renderOrchestratorEvent renders the orchestrator's re-bubbled progress
// stream. RunSequential/RunParallel bridge the Phase Runner's and
// Implement Loop's own Progress callbacks into this one stream, so a
// caller driving many items through the orchestrator wires this instead
// of the Phase Runner's Progress directly.
func renderOrchestratorEvent(ev orchestrator.Event) {
	switch ev.Kind {
	case orchestrator.EventPhaseStarted:
		ux.PhaseHeader(ev.ItemID, ev.Phase)
	case orchestrator.EventPhaseCompleted:
		ux.PhaseComplete(ev.ItemID, ev.Phase, 0)
	case orchestrator.EventPhaseFailed:
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		ux.PhaseFail(ev.ItemID, ev.Phase, msg)
	case orchestrator.EventStoryDone, orchestrator.EventStoryChanged, orchestrator.EventAssistantOutput:
		ux.AssistantChunk(ev.ItemID, ev.Message)
	case orchestrator.EventError:
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		fmt.Printf("  %s✗ %s: %s%s\n", ux.Red, ev.ItemID, msg, ux.Reset)
	}
}

func signalContext(ctx context.Context) (context.Context, func()) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}

// cleanStop turns a cancellation triggered by signalContext into a nil
// error, so Ctrl-C during a long-running command exits 0 instead of 1.
// Any other error (a real phase failure, a validation error) passes
// through unchanged.
func cleanStop(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a .wreckit/ workspace in the current version-controlled working copy",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing .wreckit/ directory"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold.Init(ctx, dir, cmd.Bool("force"))
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show status for an item",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Emit machine-readable JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("id argument is required")
			}
			_, s, _, err := openProject()
			if err != nil {
				return err
			}
			it, err := s.ReadItem(id)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(it)
			}

			planDoc, err := s.ReadPlan(id)
			if err != nil {
				planDoc = nil
			}
			timing, _ := s.ReadTiming(id)
			ux.RenderStatus(it, planDoc, timing)
			return nil
		},
	}
}

func showCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print an item's phase artifacts (research, plan, pr)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Emit machine-readable JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("id argument is required")
			}
			_, s, _, err := openProject()
			if err != nil {
				return err
			}

			artifacts := map[string]string{
				"research.md": s.ResearchPath(id),
				"plan.md":     s.PlanMDPath(id),
				"pr.md":       s.PRPath(id),
			}
			if cmd.Bool("json") {
				out := make(map[string]string, len(artifacts))
				for name, path := range artifacts {
					data, err := os.ReadFile(path)
					if err != nil {
						continue
					}
					out[name] = string(data)
				}
				return printJSON(out)
			}

			for _, path := range []string{s.ResearchPath(id), s.PlanMDPath(id), s.PRPath(id)} {
				data, err := os.ReadFile(path)
				if err != nil {
					continue
				}
				fmt.Printf("%s%s%s\n\n%s\n\n", ux.Bold, filepath.Base(path), ux.Reset, data)
			}
			return nil
		},
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List every item with its state and next phase",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Emit machine-readable JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, s, _, err := openProject()
			if err != nil {
				return err
			}
			items, err := s.ListItems()
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(items)
			}
			done := make(map[string]bool)
			for _, it := range items {
				if it.State == item.StateDone {
					done[it.ID] = true
				}
			}
			ux.RenderItemTable(os.Stdout, items, done)
			return nil
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Drive one item to terminal state",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if os.Getenv("CLAUDECODE") != "" {
				return fmt.Errorf("wreckit cannot run inside Claude Code (CLAUDECODE env var is set). Run from a regular terminal")
			}
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("id argument is required")
			}
			root, s, cfg, err := openProject()
			if err != nil {
				return err
			}
			r, err := buildPhaseRunner(root, s, cfg)
			if err != nil {
				return err
			}
			it, err := s.ReadItem(id)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(ctx)
			defer stop()

			orc := &orchestrator.Orchestrator{Store: s, PhaseRunner: r}
			for it.State != item.StateDone {
				done, err := orc.AdvanceOne(ctx, it)
				if err != nil {
					return cleanStop(ctx, err)
				}
				if done || ctx.Err() != nil {
					break
				}
			}
			return nil
		},
	}
}

func phaseCmd() *cli.Command {
	return &cli.Command{
		Name:      "phase",
		Usage:     "Drive exactly one phase for one item",
		ArgsUsage: "<phase> <id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Bypass skip-on-artifact"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			phase := args.Get(0)
			id := args.Get(1)
			if phase == "" || id == "" {
				return fmt.Errorf("usage: wreckit phase <phase> <id>")
			}
			root, s, cfg, err := openProject()
			if err != nil {
				return err
			}
			r, err := buildPhaseRunner(root, s, cfg)
			if err != nil {
				return err
			}
			it, err := s.ReadItem(id)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(ctx)
			defer stop()

			_, err = r.Run(ctx, it, item.Phase(phase), cmd.Bool("force"))
			return cleanStop(ctx, err)
		},
	}
}

func nextCmd() *cli.Command {
	return &cli.Command{
		Name:  "next",
		Usage: "Advance the lowest-id runnable item by one phase",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root, s, cfg, err := openProject()
			if err != nil {
				return err
			}
			r, err := buildPhaseRunner(root, s, cfg)
			if err != nil {
				return err
			}

			items, err := s.ListItems()
			if err != nil {
				return err
			}
			done := make(map[string]bool)
			for _, it := range items {
				if it.State == item.StateDone {
					done[it.ID] = true
				}
			}
			var next *item.Item
			for _, it := range items {
				if item.Runnable(it, done) {
					next = it
					break
				}
			}
			if next == nil {
				fmt.Println("no runnable item")
				return nil
			}

			ctx, stop := signalContext(ctx)
			defer stop()

			orc := &orchestrator.Orchestrator{Store: s, PhaseRunner: r}
			_, err = orc.AdvanceOne(ctx, next)
			return cleanStop(ctx, err)
		},
	}
}

func allCmd() *cli.Command {
	return &cli.Command{
		Name:  "all",
		Usage: "Drive every runnable item through the orchestrator",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "parallel", Usage: "Worker pool size (>=2 for parallel mode)"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the phase each item would run next, without dispatching"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if os.Getenv("CLAUDECODE") != "" {
				return fmt.Errorf("wreckit cannot run inside Claude Code (CLAUDECODE env var is set). Run from a regular terminal")
			}
			root, s, cfg, err := openProject()
			if err != nil {
				return err
			}
			r, err := buildPhaseRunner(root, s, cfg)
			if err != nil {
				return err
			}
			orc := &orchestrator.Orchestrator{Store: s, PhaseRunner: r, Progress: renderOrchestratorEvent}

			if cmd.Bool("dry-run") {
				entries, err := orc.Plan()
				if err != nil {
					return err
				}
				for _, e := range entries {
					if e.Phase != "" {
						fmt.Printf("  %s -> %s\n", e.ItemID, e.Phase)
					} else {
						fmt.Printf("  %s (%s)\n", e.ItemID, e.Note)
					}
				}
				return nil
			}

			ctx, stop := signalContext(ctx)
			defer stop()

			parallel := cmd.Int("parallel")
			if parallel >= 2 {
				return cleanStop(ctx, orc.RunParallel(ctx, int(parallel)))
			}
			return cleanStop(ctx, orc.RunSequential(ctx))
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:      "rollback",
		Usage:     "Reset a done item to implementing via its recorded rollback_sha",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Skip the confirmation prompt"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("id argument is required")
			}
			root, s, cfg, err := openProject()
			if err != nil {
				return err
			}
			it, err := s.ReadItem(id)
			if err != nil {
				return err
			}
			if it.RollbackSHA == nil {
				return fmt.Errorf("item %s has no rollback_sha", id)
			}
			if !cmd.Bool("yes") {
				if !rollback.Confirm(bufio.NewReader(os.Stdin), id, *it.RollbackSHA) {
					fmt.Println("aborted")
					return nil
				}
			}
			g := &vcs.Git{Root: root}
			return rollback.Run(ctx, s, g, cfg.BaseBranch, it)
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Diagnose a failed item using the configured agent",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("id argument is required")
			}
			_, s, cfg, err := openProject()
			if err != nil {
				return err
			}
			transport, err := agent.New(cfg.Agent.Kind, cfg.Agent.SandboxCommand, cfg.Agent.CompletionSignal, nil)
			if err != nil {
				return err
			}
			out, err := doctor.Run(ctx, s, cfg, transport, id)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Println("no recorded failure for this item")
				return nil
			}
			fmt.Println(out)
			return nil
		},
	}
}

func checkIntegrityCmd() *cli.Command {
	return &cli.Command{
		Name:  "check-integrity",
		Usage: "Cross-check every item's artifacts and dependencies",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, s, _, err := openProject()
			if err != nil {
				return err
			}
			problems, err := integrity.Check(s)
			if err != nil {
				return err
			}
			if len(problems) == 0 {
				fmt.Println("no problems found")
				return nil
			}
			for _, p := range problems {
				fmt.Println(p.String())
			}
			return fmt.Errorf("%d integrity problem(s) found", len(problems))
		},
	}
}

func watchdogCmd() *cli.Command {
	return &cli.Command{
		Name:  "watchdog",
		Usage: "Flag items whose state hasn't advanced within a window",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "window", Value: 30 * time.Minute, Usage: "Staleness window"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, s, _, err := openProject()
			if err != nil {
				return err
			}
			stale, err := integrity.Watch(s, cmd.Duration("window"))
			if err != nil {
				return err
			}
			if len(stale) == 0 {
				fmt.Println("no stale items")
				return nil
			}
			for _, st := range stale {
				fmt.Printf("%s: stale for %s (last update %s)\n", st.ItemID, st.Age.Round(time.Second), st.LastUpdate.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-14s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'wreckit docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
