package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func git(t *testing.T, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// initRemote creates a local "remote" repo with one commit and returns a
// bare clone of it to push against.
func initRemote(t *testing.T) string {
	t.Helper()

	workDir := filepath.Join(t.TempDir(), "work")
	git(t, "init", "-b", "master", workDir)
	git(t, "-C", workDir, "config", "user.email", "test@test.com")
	git(t, "-C", workDir, "config", "user.name", "Test")

	if err := os.WriteFile(filepath.Join(workDir, "PKGBUILD"), []byte("pkgver=1.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	git(t, "-C", workDir, "add", "PKGBUILD")
	git(t, "-C", workDir, "commit", "-m", "initial")

	bareDir := filepath.Join(t.TempDir(), "remote.git")
	git(t, "clone", "--bare", workDir, bareDir)
	return bareDir
}

func TestClone(t *testing.T) {
	remote := initRemote(t)
	dest := filepath.Join(t.TempDir(), "clone")

	client := NewShellClient("", "", "aurvet", "aurvet@localhost")
	if err := client.Clone(context.Background(), remote, dest); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dest, "PKGBUILD")); err != nil {
		t.Errorf("cloned tree missing PKGBUILD: %v", err)
	}
}

func TestCloneFailure(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "clone")
	client := NewShellClient("", "", "aurvet", "aurvet@localhost")

	err := client.Clone(context.Background(), filepath.Join(t.TempDir(), "no-such-repo"), dest)
	if err == nil {
		t.Fatal("expected error for missing remote")
	}
}

func TestCommitAndPush(t *testing.T) {
	remote := initRemote(t)
	dest := filepath.Join(t.TempDir(), "clone")

	client := NewShellClient("", "", "aurvet", "aurvet@localhost")
	if err := client.Clone(context.Background(), remote, dest); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dest, "PKGBUILD"), []byte("pkgver=1.1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	const message = "update sample-tool to 1.1"
	if err := client.CommitAndPush(context.Background(), dest, message); err != nil {
		t.Fatal(err)
	}

	if got := git(t, "-C", remote, "log", "-1", "--format=%s"); got != message {
		t.Errorf("remote head subject = %q, want %q", got, message)
	}
	if got := git(t, "-C", remote, "log", "-1", "--format=%an"); got != "aurvet" {
		t.Errorf("remote head author = %q, want aurvet", got)
	}
}

func TestCommitAndPushNothingStaged(t *testing.T) {
	remote := initRemote(t)
	dest := filepath.Join(t.TempDir(), "clone")

	client := NewShellClient("", "", "aurvet", "aurvet@localhost")
	if err := client.Clone(context.Background(), remote, dest); err != nil {
		t.Fatal(err)
	}

	if err := client.CommitAndPush(context.Background(), dest, "noop"); err == nil {
		t.Error("expected error when nothing is staged")
	}
}

func TestInsertGitFlags(t *testing.T) {
	got := insertGitFlags([]string{"git", "clone", "url"}, "-c", "x=y")
	want := []string{"git", "-c", "x=y", "clone", "url"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("/path/with spaces/key"); got != "'/path/with spaces/key'" {
		t.Errorf("got %q", got)
	}
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Errorf("got %q", got)
	}
}
