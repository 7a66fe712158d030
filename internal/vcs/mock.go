package vcs

import "context"

// MockHost is a scripted Host for tests that exercise the pr/complete
// phases without reaching the real GitHub API, mirroring agent.MockTransport.
type MockHost struct {
	OpenPRFunc         func(ctx context.Context, owner, repo, branch, base, title, body string) (*PR, error)
	FindPRByBranchFunc func(ctx context.Context, owner, repo, branch string) (*PR, error)
	MarkReadyFunc      func(ctx context.Context, owner, repo string, number int) error
	MergeFunc          func(ctx context.Context, owner, repo string, number int) (*PR, error)
}

func (m *MockHost) OpenPR(ctx context.Context, owner, repo, branch, base, title, body string) (*PR, error) {
	return m.OpenPRFunc(ctx, owner, repo, branch, base, title, body)
}

func (m *MockHost) FindPRByBranch(ctx context.Context, owner, repo, branch string) (*PR, error) {
	if m.FindPRByBranchFunc == nil {
		return nil, nil
	}
	return m.FindPRByBranchFunc(ctx, owner, repo, branch)
}

func (m *MockHost) MarkReady(ctx context.Context, owner, repo string, number int) error {
	if m.MarkReadyFunc == nil {
		return nil
	}
	return m.MarkReadyFunc(ctx, owner, repo, number)
}

func (m *MockHost) Merge(ctx context.Context, owner, repo string, number int) (*PR, error) {
	return m.MergeFunc(ctx, owner, repo, number)
}
