package phaserunner

import (
	"context"
	"fmt"

	"github.com/wreckit/wreckit/internal/item"
)

// handlePR pushes the item's branch and opens (or reuses) the pull
// request that carries its implementation.
func (r *Runner) handlePR(ctx context.Context, it *item.Item, body string) error {
	if r.VCS == nil || r.Host == nil {
		return fmt.Errorf("phaserunner: pr phase requires VCS and Host to be configured")
	}
	owner, repo := r.Config.Repo.Owner, r.Config.Repo.Name
	if owner == "" || repo == "" {
		return fmt.Errorf("phaserunner: pr phase requires config.repo.owner and config.repo.name")
	}

	branch := r.Config.BranchPrefix + it.ID
	if it.Branch != nil {
		branch = *it.Branch
	}

	current, err := r.VCS.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current != branch {
		if err := r.VCS.CreateBranch(ctx, branch, r.Config.BaseBranch); err != nil {
			return err
		}
	}
	if err := r.VCS.Push(ctx, branch); err != nil {
		return err
	}
	it.Branch = &branch

	existing, err := r.Host.FindPRByBranch(ctx, owner, repo, branch)
	if err != nil {
		return err
	}
	if existing == nil {
		pr, err := r.Host.OpenPR(ctx, owner, repo, branch, r.Config.BaseBranch, it.Title, body)
		if err != nil {
			return err
		}
		existing = pr
	}

	it.PRURL = &existing.URL
	it.PRNumber = &existing.Number
	return nil
}

// handleComplete merges the item's pull request through Host.Merge and
// records the resulting merge SHA as the rollback point. It does not
// wait for or detect a merge made outside wreckit.
func (r *Runner) handleComplete(ctx context.Context, it *item.Item) error {
	if r.Host == nil {
		return fmt.Errorf("phaserunner: complete phase requires Host to be configured")
	}
	if it.PRNumber == nil {
		return fmt.Errorf("phaserunner: item %s has no pr_number to complete", it.ID)
	}
	owner, repo := r.Config.Repo.Owner, r.Config.Repo.Name
	if owner == "" || repo == "" {
		return fmt.Errorf("phaserunner: complete phase requires config.repo.owner and config.repo.name")
	}

	pr, err := r.Host.Merge(ctx, owner, repo, *it.PRNumber)
	if err != nil {
		return err
	}
	if pr.Merged && pr.SHA != "" {
		it.RollbackSHA = &pr.SHA
	}
	return nil
}
