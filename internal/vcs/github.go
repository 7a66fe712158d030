package vcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/google/go-github/v68/github"
)

// PR is the subset of pull request fields wreckit tracks on an item.
type PR struct {
	URL    string
	Number int
	Draft  bool
	Merged bool
	SHA    string
}

// Host is the subset of GitHub operations the pr/complete phases and
// rollback need, grounded on the ghclient.Client interface from the pack.
type Host interface {
	OpenPR(ctx context.Context, owner, repo, branch, base, title, body string) (*PR, error)
	FindPRByBranch(ctx context.Context, owner, repo, branch string) (*PR, error)
	MarkReady(ctx context.Context, owner, repo string, number int) error
	Merge(ctx context.Context, owner, repo string, number int) (*PR, error)
}

type ghHost struct {
	gh    *github.Client
	token string // retained for the raw GraphQL fallback below
}

// NewHost constructs a Host authenticated with a GitHub PAT.
func NewHost(token string) Host {
	return &ghHost{gh: github.NewClient(nil).WithAuthToken(token), token: token}
}

func (h *ghHost) OpenPR(ctx context.Context, owner, repo, branch, base, title, body string) (*PR, error) {
	pr, _, err := h.gh.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(branch),
		Base:  github.Ptr(base),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return nil, fmt.Errorf("vcs: opening PR for %s: %w", branch, err)
	}
	return fromGithubPR(pr), nil
}

func (h *ghHost) FindPRByBranch(ctx context.Context, owner, repo, branch string) (*PR, error) {
	prs, _, err := h.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		Head:        owner + ":" + branch,
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return fromGithubPR(prs[0]), nil
}

// MarkReady transitions a draft PR to ready-for-review via the REST API,
// falling back to the GraphQL mutation when the REST edit doesn't stick
// (grounded on ghclient.MarkPRReadyForReview's draft→ready fallback).
func (h *ghHost) MarkReady(ctx context.Context, owner, repo string, number int) error {
	pr, _, err := h.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("vcs: getting PR %d: %w", number, err)
	}
	if !pr.GetDraft() {
		return nil
	}

	draft := false
	_, _, restErr := h.gh.PullRequests.Edit(ctx, owner, repo, number, &github.PullRequest{Draft: &draft})
	if restErr == nil {
		updated, _, verifyErr := h.gh.PullRequests.Get(ctx, owner, repo, number)
		if verifyErr == nil && !updated.GetDraft() {
			return nil
		}
	}

	return h.graphqlMarkReady(ctx, pr.GetNodeID())
}

// graphqlMarkReady calls the markPullRequestReadyForReview GraphQL
// mutation directly over HTTP, since go-github's REST client has no
// GraphQL transport of its own (grounded on ghclient.graphqlMarkReady).
func (h *ghHost) graphqlMarkReady(ctx context.Context, nodeID string) error {
	if nodeID == "" {
		return fmt.Errorf("vcs: cannot mark PR ready: empty node id")
	}

	payload := map[string]any{
		"query": `mutation($id: ID!) {
			markPullRequestReadyForReview(input: {pullRequestId: $id}) {
				pullRequest { isDraft }
			}
		}`,
		"variables": map[string]string{"id": nodeID},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("vcs: marshaling GraphQL request: %w", err)
	}

	graphqlURL := "https://api.github.com/graphql"
	if base := h.gh.BaseURL.String(); base != "" && base != "https://api.github.com/" {
		graphqlURL = base + "graphql"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphqlURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("vcs: building GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("vcs: GraphQL request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vcs: GraphQL returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("vcs: GraphQL error: %s", result.Errors[0].Message)
	}
	return nil
}

func (h *ghHost) Merge(ctx context.Context, owner, repo string, number int) (*PR, error) {
	result, _, err := h.gh.PullRequests.Merge(ctx, owner, repo, number, "", &github.PullRequestOptions{
		MergeMethod: "squash",
	})
	if err != nil {
		return nil, fmt.Errorf("vcs: merging PR %d: %w", number, err)
	}
	return &PR{
		Number: number,
		Merged: result.GetMerged(),
		SHA:    result.GetSHA(),
	}, nil
}

func fromGithubPR(pr *github.PullRequest) *PR {
	return &PR{
		URL:    pr.GetHTMLURL(),
		Number: pr.GetNumber(),
		Draft:  pr.GetDraft(),
		Merged: pr.GetMerged(),
		SHA:    pr.GetHead().GetSHA(),
	}
}

// PRReference holds the parsed components of a GitHub PR URL.
type PRReference struct {
	Owner  string
	Repo   string
	Number int
}

var prURLRegex = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// ParsePRURL parses a GitHub pull request URL into owner, repo, and number.
func ParsePRURL(rawURL string) (*PRReference, error) {
	matches := prURLRegex.FindStringSubmatch(rawURL)
	if matches == nil {
		return nil, fmt.Errorf("vcs: invalid GitHub PR URL: %q", rawURL)
	}
	number, err := strconv.Atoi(matches[3])
	if err != nil {
		return nil, fmt.Errorf("vcs: invalid PR number in URL %q: %w", rawURL, err)
	}
	return &PRReference{Owner: matches[1], Repo: matches[2], Number: number}, nil
}
