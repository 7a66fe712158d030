package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestParsePRURL(t *testing.T) {
	ref, err := ParsePRURL("https://github.com/acme/widgets/pull/42")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Owner != "acme" || ref.Repo != "widgets" || ref.Number != 42 {
		t.Fatalf("got %+v", ref)
	}

	if _, err := ParsePRURL("not a url"); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", "README.md")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestGitCurrentBranchAndStatus(t *testing.T) {
	dir := initTestRepo(t)
	g := &Git{Root: dir}
	ctx := context.Background()

	if !g.IsRepo(ctx) {
		t.Fatal("expected IsRepo to be true for an initialized repo")
	}

	branch, err := g.CurrentBranch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if branch == "" {
		t.Fatal("expected a non-empty current branch")
	}

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	paths, err := g.StatusPorcelain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "new.txt" {
		t.Fatalf("status = %+v", paths)
	}
}

func TestGitCreateBranchAndHeadSHA(t *testing.T) {
	dir := initTestRepo(t)
	g := &Git{Root: dir}
	ctx := context.Background()

	base, err := g.CurrentBranch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.CreateBranch(ctx, "wreckit/001-x", base); err != nil {
		t.Fatal(err)
	}
	branch, err := g.CurrentBranch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if branch != "wreckit/001-x" {
		t.Fatalf("branch = %q", branch)
	}

	sha, err := g.HeadSHA(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sha) != 40 {
		t.Fatalf("expected a 40-char SHA, got %q", sha)
	}
}
