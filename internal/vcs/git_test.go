package vcs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeGit struct {
	calls   [][]string
	respond func(args []string) (string, error)
}

func (f *fakeGit) Run(ctx context.Context, dir string, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	if f.respond != nil {
		return f.respond(args)
	}
	return "", nil
}

func (f *fakeGit) sawCommand(first string) []string {
	for _, call := range f.calls {
		if len(call) > 0 && call[0] == first {
			return call
		}
	}
	return nil
}

func TestRepoName(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/widgets.git": "widgets",
		"https://github.com/acme/widgets":     "widgets",
		"https://github.com/acme/widgets/":    "widgets",
	}
	for url, want := range cases {
		if got := RepoName(url); got != want {
			t.Errorf("RepoName(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestBranchName(t *testing.T) {
	cases := []struct {
		team, leader, want string
	}{
		{"Team Rocket", "Jessie", "TEAM_ROCKET_JESSIE_AI_Fix"},
		{"alpha", "bob", "ALPHA_BOB_AI_Fix"},
		{"Dev+Ops!", "A. Lee", "DEVOPS_A_LEE_AI_Fix"},
	}
	for _, c := range cases {
		if got := BranchName(c.team, c.leader); got != c.want {
			t.Errorf("BranchName(%q, %q) = %q, want %q", c.team, c.leader, got, c.want)
		}
	}
}

func TestCloneRemovesStaleCopy(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "widgets")
	if err := os.MkdirAll(filepath.Join(stale, "src"), 0o755); err != nil {
		t.Fatal(err)
	}

	fake := &fakeGit{}
	c := NewClient(fake, 0, 0, "")
	path, err := c.Clone(context.Background(), "https://github.com/acme/widgets.git", dir)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if path != stale {
		t.Errorf("path = %q, want %q", path, stale)
	}
	clone := fake.sawCommand("clone")
	if clone == nil || clone[1] != "https://github.com/acme/widgets.git" {
		t.Errorf("clone call = %v", clone)
	}
	if _, err := os.Stat(stale); err == nil {
		// The fake runner does not recreate the directory, so a
		// surviving path means the stale copy was never removed.
		t.Error("stale clone was not removed")
	}
}

func TestCreateBranchNew(t *testing.T) {
	fake := &fakeGit{respond: func(args []string) (string, error) {
		if args[0] == "branch" {
			return "", nil
		}
		return "", nil
	}}
	c := NewClient(fake, 0, 0, "")

	if err := c.CreateBranch(context.Background(), "/repo", "TEAM_LEAD_AI_Fix"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	checkout := fake.sawCommand("checkout")
	if checkout == nil || checkout[1] != "-b" {
		t.Errorf("expected checkout -b for a new branch, got %v", checkout)
	}
}

func TestCreateBranchExisting(t *testing.T) {
	fake := &fakeGit{respond: func(args []string) (string, error) {
		if args[0] == "branch" {
			return "  TEAM_LEAD_AI_Fix", nil
		}
		return "", nil
	}}
	c := NewClient(fake, 0, 0, "")

	if err := c.CreateBranch(context.Background(), "/repo", "TEAM_LEAD_AI_Fix"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	checkout := fake.sawCommand("checkout")
	if checkout == nil || checkout[1] != "TEAM_LEAD_AI_Fix" {
		t.Errorf("expected plain checkout for an existing branch, got %v", checkout)
	}
}

func TestCommitAndPush(t *testing.T) {
	fake := &fakeGit{respond: func(args []string) (string, error) {
		switch args[0] {
		case "rev-parse":
			return "0123456789abcdef", nil
		case "remote":
			return "https://github.com/acme/widgets.git", nil
		}
		return "", nil
	}}
	c := NewClient(fake, 0, 0, "tok123")

	res, err := c.CommitAndPush(context.Background(), "/repo", CommitPrefix+" fix tests", "B_AI_Fix")
	if err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}
	if res.CommitHash != "01234567" {
		t.Errorf("hash = %q, want 8 chars", res.CommitHash)
	}
	if !res.PushSuccess {
		t.Error("push should succeed")
	}

	setURL := fake.sawCommand("remote")
	for _, call := range fake.calls {
		if call[0] == "remote" && call[1] == "set-url" {
			setURL = call
		}
	}
	if setURL == nil || !strings.Contains(strings.Join(setURL, " "), "tok123@github.com") {
		t.Errorf("expected token embedded in remote URL, calls: %v", fake.calls)
	}

	push := fake.sawCommand("push")
	want := []string{"push", "--force", "-u", "origin", "B_AI_Fix"}
	if len(push) != len(want) {
		t.Fatalf("push args = %v, want %v", push, want)
	}
	for i := range want {
		if push[i] != want[i] {
			t.Errorf("push arg %d = %q, want %q", i, push[i], want[i])
		}
	}
}

func TestCommitAndPushNothingToCommit(t *testing.T) {
	fake := &fakeGit{respond: func(args []string) (string, error) {
		if args[0] == "commit" {
			return "nothing to commit, working tree clean", errors.New("exit status 1")
		}
		return "", nil
	}}
	c := NewClient(fake, 0, 0, "")

	res, err := c.CommitAndPush(context.Background(), "/repo", "msg", "B_AI_Fix")
	if err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}
	if res.CommitHash != "" || !res.PushSuccess {
		t.Errorf("unexpected result: %+v", res)
	}
	if fake.sawCommand("push") != nil {
		t.Error("should not push when there was nothing to commit")
	}
}

func TestCommitAndPushPushFailureNotFatal(t *testing.T) {
	old := ghSetupGit
	ghSetupGit = func(ctx context.Context, dir string) error { return errors.New("gh not installed") }
	defer func() { ghSetupGit = old }()

	fake := &fakeGit{respond: func(args []string) (string, error) {
		switch args[0] {
		case "rev-parse":
			return "deadbeefcafe", nil
		case "push":
			return "remote: permission denied", errors.New("exit status 128")
		}
		return "", nil
	}}
	c := NewClient(fake, 0, 0, "")
	t.Setenv("GITHUB_TOKEN", "")

	res, err := c.CommitAndPush(context.Background(), "/repo", "msg", "B_AI_Fix")
	if err != nil {
		t.Fatalf("push failure must not fail the commit: %v", err)
	}
	if res.PushSuccess {
		t.Error("push_success should be false")
	}
	if res.CommitHash != "deadbeef" {
		t.Errorf("hash = %q", res.CommitHash)
	}
}
