// Package makepkg shells out to makepkg for the derived metadata a package
// tree carries alongside its PKGBUILD.
package makepkg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Runner regenerates derived package metadata.
type Runner interface {
	// PrintSrcInfo regenerates the .SRCINFO file in dir from its PKGBUILD.
	PrintSrcInfo(ctx context.Context, dir string) error
}

// ShellRunner implements Runner by running the makepkg command.
type ShellRunner struct{}

// NewShellRunner creates a makepkg runner.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// PrintSrcInfo runs makepkg --printsrcinfo in dir and writes the output to
// .SRCINFO atomically.
func (r *ShellRunner) PrintSrcInfo(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, "makepkg", "--printsrcinfo")
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("makepkg --printsrcinfo failed: %w: %s", err, exitErr.Stderr)
		}
		return fmt.Errorf("makepkg --printsrcinfo failed: %w", err)
	}

	return writeFileAtomic(filepath.Join(dir, ".SRCINFO"), output)
}

// writeFileAtomic writes data via a temp file and rename so a crashed run
// never leaves a truncated .SRCINFO behind.
func writeFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".aurvet-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
