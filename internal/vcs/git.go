// Package vcs provides the git plumbing and GitHub PR host operations
// used by the pr/complete phases and the rollback command.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Git wraps repo-rooted invocations of the git CLI via
// exec.Command("git", ...) with cmd.Dir set to Root.
type Git struct {
	Root string
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("vcs: git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo reports whether Root is inside a git working copy.
func (g *Git) IsRepo(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// CurrentBranch returns the current branch name.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// CreateBranch creates and checks out branch from base.
func (g *Git) CreateBranch(ctx context.Context, branch, base string) error {
	_, err := g.run(ctx, "checkout", "-b", branch, base)
	return err
}

// CheckoutBranch switches to an existing branch.
func (g *Git) CheckoutBranch(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "checkout", branch)
	return err
}

// Push pushes branch to origin, creating the upstream tracking ref.
func (g *Git) Push(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "push", "-u", "origin", branch)
	return err
}

// ForcePush force-pushes branch to origin. Destructive: only the
// rollback command calls this.
func (g *Git) ForcePush(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "push", "--force", "origin", branch)
	return err
}

// ResetHard resets the current branch to ref, discarding local changes.
func (g *Git) ResetHard(ctx context.Context, ref string) error {
	_, err := g.run(ctx, "reset", "--hard", ref)
	return err
}

// HeadSHA returns the current commit SHA.
func (g *Git) HeadSHA(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "HEAD")
}

// StatusPorcelain returns `git status --porcelain` output, one line per
// changed path, used for the plan phase's write-set enforcement and the
// implement loop's touched-files detection.
func (g *Git) StatusPorcelain(ctx context.Context) ([]string, error) {
	// git is run directly rather than through g.run, whose TrimSpace
	// would strip the leading blank status column of the first line.
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = g.Root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("vcs: git status --porcelain: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if len(line) < 4 {
			continue
		}
		paths = append(paths, strings.TrimSpace(line[3:]))
	}
	return paths, nil
}
