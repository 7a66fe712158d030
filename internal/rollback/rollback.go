// Package rollback implements the `rollback` command: reset a done
// item's main-line branch back to its recorded rollback anchor,
// force-push, and reopen the item at implementing.
package rollback

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/store"
	"github.com/wreckit/wreckit/internal/vcs"
)

// Confirm prompts on r for an explicit "y" before the destructive reset.
func Confirm(r *bufio.Reader, itemID, sha string) bool {
	fmt.Printf("  Roll back %s to %s and force-push? This rewrites the main-line branch. [y/N]: ", itemID, sha)
	line, _ := r.ReadString('\n')
	return strings.ToLower(strings.TrimSpace(line)) == "y"
}

// Run resets baseBranch to it.RollbackSHA, force-pushes it, and flips it
// back to implementing, clearing rollback_sha, completed_at, and
// last_error.
func Run(ctx context.Context, s *store.Store, g *vcs.Git, baseBranch string, it *item.Item) error {
	if it.State != item.StateDone {
		return fmt.Errorf("rollback: item %s is not done (state=%s)", it.ID, it.State)
	}
	if it.RollbackSHA == nil {
		return fmt.Errorf("rollback: item %s has no rollback_sha to roll back to", it.ID)
	}

	if err := g.CheckoutBranch(ctx, baseBranch); err != nil {
		return fmt.Errorf("rollback: checking out %s: %w", baseBranch, err)
	}
	if err := g.ResetHard(ctx, *it.RollbackSHA); err != nil {
		return fmt.Errorf("rollback: resetting %s to %s: %w", baseBranch, *it.RollbackSHA, err)
	}
	if err := g.ForcePush(ctx, baseBranch); err != nil {
		return fmt.Errorf("rollback: force-pushing %s: %w", baseBranch, err)
	}

	it.State = item.StateImplementing
	it.RollbackSHA = nil
	it.CompletedAt = nil
	it.LastError = nil
	return s.WriteItem(it)
}
