// Package scaffold implements the `init` command: deterministic creation
// of a project's .wreckit/ workspace (config.json, prompts/, items/;
// healing-log.jsonl is created by the first healing-log append, not
// here). There is no AI-assisted generation step here —
// idea/roadmap ingestion is explicitly out of scope, so init only ever
// writes fixed, known-valid content.
package scaffold

import (
	"context"
	"fmt"
	"os"

	"github.com/wreckit/wreckit/internal/config"
	"github.com/wreckit/wreckit/internal/store"
	"github.com/wreckit/wreckit/internal/ux"
	"github.com/wreckit/wreckit/internal/vcs"
)

// Init creates a new .wreckit/ workspace under targetDir. It fails if
// .wreckit already exists (unless force) or targetDir is not a VCS
// working copy — wreckit's branch/PR machinery has nowhere to push
// without one.
func Init(ctx context.Context, targetDir string, force bool) error {
	s := store.Open(targetDir)

	if _, err := os.Stat(s.Root); err == nil && !force {
		return fmt.Errorf(".wreckit directory already exists in %s", targetDir)
	}

	g := &vcs.Git{Root: targetDir}
	if !g.IsRepo(ctx) {
		return fmt.Errorf("%s is not a git repository; run git init first", targetDir)
	}

	if err := s.EnsureWorkspace(); err != nil {
		return fmt.Errorf("creating .wreckit workspace: %w", err)
	}

	cfg := defaultConfig()
	data, err := cfg.MarshalIndent()
	if err != nil {
		return fmt.Errorf("rendering default config: %w", err)
	}
	if err := os.WriteFile(s.ConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.ConfigPath(), err)
	}

	var written []string
	written = append(written, ".wreckit/config.json")

	for phase, tmpl := range defaultPrompts {
		path := s.PromptPath(phase)
		if err := os.WriteFile(path, []byte(tmpl), 0644); err != nil {
			return fmt.Errorf("writing prompt template %s: %w", path, err)
		}
		written = append(written, ".wreckit/prompts/"+phase+".md")
	}

	printSuccess(written)
	return nil
}

func defaultConfig() *config.Config {
	return &config.Config{
		BaseBranch:     config.DefaultBaseBranch,
		BranchPrefix:   config.DefaultBranchPrefix,
		TimeoutSeconds: config.DefaultTimeout,
		Parallel:       config.DefaultParallel,
		Agent:          config.AgentConfig{Kind: "process"},
	}
}

func printSuccess(written []string) {
	fmt.Printf("\n%s%s  ✓ Initialized .wreckit/ workspace%s\n\n", ux.Bold, ux.Green, ux.Reset)
	fmt.Printf("  Created:\n")
	for _, path := range written {
		fmt.Printf("    %s%s%s\n", ux.Cyan, path, ux.Reset)
	}
	fmt.Printf("\n  Next: %swreckit all --dry-run%s\n\n", ux.Cyan, ux.Reset)
}
