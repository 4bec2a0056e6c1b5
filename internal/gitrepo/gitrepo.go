// Package gitrepo provides the git operations an update needs: cloning the
// custom and upstream package trees, and pushing an applied update back.
package gitrepo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Client provides git operations for package repositories.
type Client interface {
	// Clone clones a repository into dest.
	Clone(ctx context.Context, url, dest string) error
	// CommitAndPush stages everything in dir, commits with the given
	// message and pushes to the clone's origin.
	CommitAndPush(ctx context.Context, dir, message string) error
}

// ShellClient implements Client by shelling out to the git command.
type ShellClient struct {
	sshKeyFile     string
	httpsTokenFile string
	commitName     string
	commitEmail    string
}

// NewShellClient creates a git client that uses the git command. Either
// auth file may be empty for anonymous access.
func NewShellClient(sshKeyFile, httpsTokenFile, commitName, commitEmail string) *ShellClient {
	return &ShellClient{
		sshKeyFile:     sshKeyFile,
		httpsTokenFile: httpsTokenFile,
		commitName:     commitName,
		commitEmail:    commitEmail,
	}
}

// Clone clones url into dest.
func (c *ShellClient) Clone(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", url, dest)
	if err := c.configureAuth(cmd, url); err != nil {
		return err
	}
	if err := runCommand(cmd); err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}

	return nil
}

// CommitAndPush stages, commits and pushes every change in dir. An empty
// staging area fails the commit, so callers must only push applied updates.
func (c *ShellClient) CommitAndPush(ctx context.Context, dir, message string) error {
	addCmd := exec.CommandContext(ctx, "git", "-C", dir, "add", "-A")
	if err := runCommand(addCmd); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}

	commitCmd := exec.CommandContext(ctx, "git",
		"-c", "user.name="+c.commitName,
		"-c", "user.email="+c.commitEmail,
		"-C", dir, "commit", "-m", message)
	if err := runCommand(commitCmd); err != nil {
		return fmt.Errorf("git commit failed: %w", err)
	}

	pushCmd := exec.CommandContext(ctx, "git", "-C", dir, "push", "origin")
	remote, err := originURL(ctx, dir)
	if err != nil {
		return err
	}
	if err := c.configureAuth(pushCmd, remote); err != nil {
		return err
	}
	if err := runCommand(pushCmd); err != nil {
		return fmt.Errorf("git push failed: %w", err)
	}

	return nil
}

// originURL resolves the clone's origin remote so auth can be matched to
// its scheme.
func originURL(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "remote", "get-url", "origin")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git remote get-url failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// configureAuth sets up authentication for git operations
func (c *ShellClient) configureAuth(cmd *exec.Cmd, url string) error {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}

	// SSH authentication
	if c.sshKeyFile != "" && (strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")) {
		// Use GIT_SSH_COMMAND to specify the SSH key.
		// The path is shell-quoted to prevent injection via crafted filenames.
		sshCmd := fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=accept-new -F /dev/null", shellQuote(c.sshKeyFile))
		cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND="+sshCmd)
		return nil
	}

	// HTTPS authentication with token
	if c.httpsTokenFile != "" && strings.HasPrefix(url, "https://") {
		token, err := os.ReadFile(c.httpsTokenFile)
		if err != nil {
			return fmt.Errorf("failed to read HTTPS token file: %w", err)
		}

		tokenStr := strings.TrimSpace(string(token))

		// Pass the token via environment variable and configure a git
		// credential helper that reads it. This avoids embedding the
		// token directly in a shell expression.
		cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0")
		cmd.Env = append(cmd.Env, "AURVET_GIT_TOKEN="+tokenStr)
		cmd.Args = insertGitFlags(cmd.Args,
			"-c", `credential.helper=!f() { echo "username=x-access-token"; echo "password=$AURVET_GIT_TOKEN"; }; f`,
		)

		return nil
	}

	return nil
}

// insertGitFlags inserts flags immediately after the "git" command name,
// before the subcommand (e.g. "clone", "push").
func insertGitFlags(args []string, flags ...string) []string {
	if len(args) == 0 {
		return flags
	}
	result := make([]string, 0, len(args)+len(flags))
	result = append(result, args[0])
	result = append(result, flags...)
	result = append(result, args[1:]...)
	return result
}

// shellQuote wraps s in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// runCommand executes a command and returns an error with its output on failure
func runCommand(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
