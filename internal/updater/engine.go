// Package updater drives the per-package update pipeline: discover local
// artifacts, detect newer upstream versions, validate the upstream changes,
// apply them, hand the build to the remote service and push the result.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aurvet/aurvet/internal/alpm"
	"github.com/aurvet/aurvet/internal/aur"
	"github.com/aurvet/aurvet/internal/config"
	"github.com/aurvet/aurvet/internal/dirdiff"
	"github.com/aurvet/aurvet/internal/gitrepo"
	"github.com/aurvet/aurvet/internal/makepkg"
	"github.com/aurvet/aurvet/internal/pkgcheck"
	"github.com/aurvet/aurvet/internal/pkginfo"
	"github.com/aurvet/aurvet/internal/rbuild"
	"github.com/aurvet/aurvet/internal/telegram"
)

// Engine orchestrates the update pipelines of one refresh cycle.
type Engine struct {
	cfg      *config.Config
	reader   pkginfo.Reader
	resolver aur.Resolver
	git      gitrepo.Client
	build    rbuild.Client
	srcinfo  makepkg.Runner
	notifier telegram.Notifier
	logger   *slog.Logger
}

// NewEngine creates an update engine.
func NewEngine(
	cfg *config.Config,
	reader pkginfo.Reader,
	resolver aur.Resolver,
	git gitrepo.Client,
	build rbuild.Client,
	srcinfo makepkg.Runner,
	notifier telegram.Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		reader:   reader,
		resolver: resolver,
		git:      git,
		build:    build,
		srcinfo:  srcinfo,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes one refresh cycle: discover local artifacts and run one
// update pipeline per package under the configured concurrency width.
// Package failures are isolated; Run only fails when discovery itself does.
func (e *Engine) Run(ctx context.Context) error {
	if err := os.MkdirAll(e.cfg.Paths.WorkDir, 0755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	artifacts, err := pkginfo.Discover(e.cfg.Paths.RepoDir)
	if err != nil {
		return fmt.Errorf("failed to discover packages: %w", err)
	}

	e.logger.Info("starting refresh cycle",
		"artifacts", len(artifacts),
		"concurrency", e.cfg.Update.Concurrency)

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Update.Concurrency)

	for _, artifact := range artifacts {
		artifact := artifact
		g.Go(func() error {
			err := e.refreshArtifact(ctx, artifact)
			switch {
			case err == nil:
			case errors.Is(err, ErrChecksFailed):
				// Rejections are routine; the workspace stays behind
				// for inspection and later cycles skip the package.
				e.logger.Info("update rejected", "artifact", filepath.Base(artifact), "error", err)
			default:
				e.logger.Error("package update failed", "artifact", filepath.Base(artifact), "error", err)
				e.notify(ctx, fmt.Sprintf("aurvet: update of %s failed: %v", filepath.Base(artifact), err))
			}
			// Failures stay package-scoped.
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("refresh cycle complete")
	return nil
}

// Watch runs refresh cycles until the context is cancelled, sleeping the
// configured interval between them.
func (e *Engine) Watch(ctx context.Context) error {
	for {
		if err := e.Run(ctx); err != nil {
			e.logger.Error("refresh cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(e.cfg.Update.Interval.Std()):
		}
	}
}

// refreshArtifact decides whether one local artifact needs an update and
// runs the pipeline if it does. Absent upstream entries and already-current
// versions are expected outcomes, not errors.
func (e *Engine) refreshArtifact(ctx context.Context, artifact string) error {
	local, err := e.reader.Read(artifact)
	if err != nil {
		if errors.Is(err, pkginfo.ErrNotPackage) {
			e.logger.Debug("skipping unrecognized artifact", "artifact", filepath.Base(artifact))
			return nil
		}
		return err
	}

	results, err := e.resolver.Info(ctx, []string{local.Name})
	if err != nil {
		return fmt.Errorf("upstream lookup failed: %w", err)
	}
	if len(results) == 0 {
		e.logger.Debug("package not found upstream", "package", local.Name)
		return nil
	}
	remote := results[0]

	if !alpm.Newer(remote.Version, local.Version) {
		e.logger.Debug("package is current",
			"package", local.Name,
			"local", local.Version,
			"remote", remote.Version)
		return nil
	}

	e.logger.Info("updating package",
		"package", local.Name,
		"local", local.Version,
		"remote", remote.Version)

	return e.updatePackage(ctx, local, remote)
}

// workspace is the scratch area owned by one in-flight update attempt. Its
// root directory doubles as the mutual-exclusion lock for the package: it
// is removed only on full success, so a failed attempt blocks retries until
// a human has looked at it.
type workspace struct {
	Root   string
	Custom string // clone of the custom-maintained tree
	AUR    string // clone of the untrusted upstream tree
}

// updatePackage runs the validate-apply-build-push pipeline for one package.
func (e *Engine) updatePackage(ctx context.Context, local pkginfo.Info, remote aur.Package) error {
	ws, err := e.acquireWorkspace(local.Name)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			e.logger.Info("update already in flight, skipping", "package", local.Name)
			return nil
		}
		return err
	}

	if err := e.git.Clone(ctx, e.cfg.CustomCloneURL(local.Name), ws.Custom); err != nil {
		return fmt.Errorf("failed to clone custom tree: %w", err)
	}
	if err := e.git.Clone(ctx, aur.CloneURL(e.cfg.AUR.CloneURL, local.Name), ws.AUR); err != nil {
		return fmt.Errorf("failed to clone upstream tree: %w", err)
	}

	div, err := dirdiff.Compare(ws.Custom, ws.AUR)
	if err != nil {
		return err
	}
	switch div {
	case dirdiff.None:
		// aligned
	case dirdiff.Right:
		// New upstream files are legitimate; the validator judges them.
		e.logger.Info("upstream tree has new files", "package", local.Name)
	default:
		return fmt.Errorf("%w: divergence on %s side", ErrDifferentDirs, div)
	}

	check := pkgcheck.New(ws.Custom, ws.AUR)
	verdict, err := check.Validate()
	if err != nil {
		return err
	}
	if !verdict.OK {
		return fmt.Errorf("%w: %s", ErrChecksFailed, verdict.Reason)
	}

	if err := check.Apply(); err != nil {
		return err
	}
	if err := e.srcinfo.PrintSrcInfo(ctx, ws.Custom); err != nil {
		return err
	}

	jobID, err := e.build.SubmitAURBuild(ctx, remote.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJobSubmission, err)
	}
	e.logger.Info("build job submitted", "package", local.Name, "job", jobID)

	if err := e.waitForJob(ctx, jobID); err != nil {
		return err
	}

	message := fmt.Sprintf("update %s to %s", local.Name, remote.Version)
	if err := e.git.CommitAndPush(ctx, ws.Custom, message); err != nil {
		return fmt.Errorf("failed to push update: %w", err)
	}

	e.notify(ctx, fmt.Sprintf("aurvet: updated %s %s -> %s", local.Name, local.Version, remote.Version))
	e.logger.Info("package updated",
		"package", local.Name,
		"version", remote.Version)

	// Only a fully successful update releases the workspace lock.
	if err := os.RemoveAll(ws.Root); err != nil {
		e.logger.Warn("failed to remove workspace", "package", local.Name, "error", err)
	}

	return nil
}

// acquireWorkspace creates the scratch area for one update attempt. The
// non-recursive Mkdir makes directory existence the lock: a concurrent or
// previously failed attempt surfaces as os.ErrExist.
func (e *Engine) acquireWorkspace(pkg string) (*workspace, error) {
	root := e.cfg.WorkspaceDir(pkg)
	if err := os.Mkdir(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to acquire workspace: %w", err)
	}

	ws := &workspace{
		Root:   root,
		Custom: filepath.Join(root, "custom"),
		AUR:    filepath.Join(root, "aur"),
	}
	for _, dir := range []string{ws.Custom, ws.AUR} {
		if err := os.Mkdir(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create workspace subdirectory: %w", err)
		}
	}

	return ws, nil
}

// waitForJob polls the build job on the configured interval until it
// reaches a terminal state, turning the asynchronous remote build into a
// synchronous result for this package.
func (e *Engine) waitForJob(ctx context.Context, id rbuild.JobID) error {
	ticker := time.NewTicker(e.cfg.Update.PollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			job, err := e.build.JobInfo(ctx, id)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrJobInfo, err)
			}

			switch job.Status {
			case rbuild.StatusSucceeded:
				return nil
			case rbuild.StatusFailed, rbuild.StatusCancelled:
				return fmt.Errorf("%w: job %d ended %s", ErrJobFailed, id, job.Status)
			default:
				e.logger.Debug("build job still in progress", "job", id, "status", job.Status)
			}
		}
	}
}

// notify sends a best-effort chat notification. Failures are logged and
// never abort a pipeline.
func (e *Engine) notify(ctx context.Context, text string) {
	if err := e.notifier.Notify(ctx, text); err != nil {
		e.logger.Warn("notification failed", "error", err)
	}
}
