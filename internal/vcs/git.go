// Package vcs clones repositories and manages the fix branch: creation,
// commits with the [AI-AGENT] prefix, and authenticated pushes.
package vcs

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// GitRunner provides git commands. Interface for testing.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecGit implements GitRunner using exec.Command.
type ExecGit struct{}

func (g *ExecGit) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CommitPrefix marks every commit made by the healing loop.
const CommitPrefix = "[AI-AGENT]"

// Client performs the repository operations of a healing run.
type Client struct {
	git          GitRunner
	cloneTimeout time.Duration
	pushTimeout  time.Duration
	token        string
}

// NewClient creates a Client. Zero timeouts get the defaults (120s clone,
// 60s push). token is the GitHub access token used for push auth; empty
// falls back to the gh credential helper.
func NewClient(git GitRunner, cloneTimeout, pushTimeout time.Duration, token string) *Client {
	if cloneTimeout <= 0 {
		cloneTimeout = 2 * time.Minute
	}
	if pushTimeout <= 0 {
		pushTimeout = time.Minute
	}
	return &Client{git: git, cloneTimeout: cloneTimeout, pushTimeout: pushTimeout, token: token}
}

// RepoName extracts the repository name from a clone URL.
func RepoName(url string) string {
	name := strings.TrimSuffix(strings.TrimRight(url, "/"), "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}

// Clone checks out url into workspaceDir/<repo-name>, removing any stale
// copy first so every run starts from the remote state. Returns the
// absolute path of the clone.
func (c *Client) Clone(ctx context.Context, url, workspaceDir string) (string, error) {
	repoPath := filepath.Join(workspaceDir, RepoName(url))

	if _, err := os.Stat(repoPath); err == nil {
		removeStale(repoPath)
	}
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace dir: %w", err)
	}

	log.Printf("[CLONE] cloning %s into %s", url, repoPath)
	cloneCtx, cancel := context.WithTimeout(ctx, c.cloneTimeout)
	defer cancel()
	if _, err := c.git.Run(cloneCtx, "", "clone", url, repoPath); err != nil {
		return "", fmt.Errorf("clone repository: %w", err)
	}

	log.Printf("[CLONE] cloned to %s", repoPath)
	return repoPath, nil
}

// removeStale deletes a previous clone, retrying once since editors or
// antivirus scanners can hold files open briefly.
func removeStale(path string) {
	if err := os.RemoveAll(path); err == nil {
		return
	}
	time.Sleep(2 * time.Second)
	if err := os.RemoveAll(path); err != nil {
		log.Printf("[CLONE] warning: could not fully remove %s: %v", path, err)
	}
}

// BranchName builds TEAM_LEADER_AI_Fix from the team and leader names:
// special characters dropped, spaces become underscores, all uppercase.
func BranchName(team, leader string) string {
	return cleanNamePart(team) + "_" + cleanNamePart(leader) + "_AI_Fix"
}

func cleanNamePart(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	return strings.ToUpper(strings.ReplaceAll(cleaned, " ", "_"))
}

// CreateBranch creates and checks out branch, or just checks it out if it
// already exists.
func (c *Client) CreateBranch(ctx context.Context, repoPath, branch string) error {
	log.Printf("[GIT] creating branch: %s", branch)

	out, _ := c.git.Run(ctx, repoPath, "branch", "--list", branch)
	if strings.Contains(out, branch) {
		if _, err := c.git.Run(ctx, repoPath, "checkout", branch); err != nil {
			return fmt.Errorf("checkout branch: %w", err)
		}
	} else {
		if _, err := c.git.Run(ctx, repoPath, "checkout", "-b", branch); err != nil {
			return fmt.Errorf("create branch: %w", err)
		}
	}

	log.Printf("[GIT] on branch: %s", branch)
	return nil
}

// PushResult reports the outcome of CommitAndPush. A failed push is not an
// error: the commit still exists locally and the run can finish.
type PushResult struct {
	CommitHash  string `json:"commit_hash"`
	Branch      string `json:"branch"`
	PushSuccess bool   `json:"push_success"`
	Message     string `json:"message"`
}

// CommitAndPush stages everything, commits with message, and force-pushes
// the branch. An empty worktree ("nothing to commit") is reported as
// success with an empty hash.
func (c *Client) CommitAndPush(ctx context.Context, repoPath, message, branch string) (*PushResult, error) {
	log.Printf("[GIT] committing: %s", message)

	c.git.Run(ctx, repoPath, "add", "-A")

	if out, err := c.git.Run(ctx, repoPath, "commit", "-m", message); err != nil {
		if strings.Contains(out, "nothing to commit") {
			log.Printf("[GIT] nothing to commit")
			return &PushResult{Branch: branch, PushSuccess: true, Message: "Nothing to commit"}, nil
		}
		return nil, fmt.Errorf("commit: %w", err)
	}

	hash, err := c.git.Run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("read commit hash: %w", err)
	}
	if len(hash) > 8 {
		hash = hash[:8]
	}

	c.setupPushAuth(ctx, repoPath)

	pushCtx, cancel := context.WithTimeout(ctx, c.pushTimeout)
	defer cancel()
	out, pushErr := c.git.Run(pushCtx, repoPath, "push", "--force", "-u", "origin", branch)

	result := &PushResult{CommitHash: hash, Branch: branch, PushSuccess: pushErr == nil}
	if pushErr == nil {
		result.Message = "Pushed successfully"
		log.Printf("[GIT] push successful: %s", branch)
	} else {
		result.Message = out
		log.Printf("[GIT] push failed: %v", pushErr)
	}
	return result, nil
}

// ghSetupGit configures the GitHub CLI as a git credential helper. A
// package variable so tests can stub the external binary.
var ghSetupGit = func(ctx context.Context, dir string) error {
	ghCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ghCtx, "gh", "auth", "setup-git")
	cmd.Dir = dir
	return cmd.Run()
}

// setupPushAuth prepares push credentials: a configured token is embedded
// in the origin URL, otherwise the gh credential helper is tried. Both
// paths are best effort.
func (c *Client) setupPushAuth(ctx context.Context, repoPath string) {
	token := c.token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	if token != "" {
		log.Printf("[GIT] using access token for authentication")
		remote, err := c.git.Run(ctx, repoPath, "remote", "get-url", "origin")
		if err != nil {
			return
		}
		if strings.HasPrefix(remote, "https://") && !strings.Contains(remote, "@") {
			authURL := "https://" + token + "@" + strings.TrimPrefix(remote, "https://")
			c.git.Run(ctx, repoPath, "remote", "set-url", "origin", authURL)
			log.Printf("[GIT] remote URL updated with token")
		}
		return
	}

	if err := ghSetupGit(ctx, repoPath); err != nil {
		log.Printf("[GIT] gh auth setup-git unavailable: %v", err)
		return
	}
	log.Printf("[GIT] GitHub CLI credential helper configured")
}
