package updater

import "errors"

// Package-scoped failure classes of one update pipeline. One package's
// failure never aborts the refresh cycle for other packages; the next
// scheduled cycle is the retry mechanism.
var (
	// ErrDifferentDirs means the custom and upstream trees diverged
	// structurally in a way that cannot be attributed to legitimate new
	// upstream files.
	ErrDifferentDirs = errors.New("custom and upstream trees diverged")

	// ErrChecksFailed means the content validator rejected the update.
	// Rejections are an expected steady-state outcome; the refresh
	// cycle logs and skips them without raising a failure notification.
	ErrChecksFailed = errors.New("update validation rejected")

	// ErrJobSubmission means the build service refused the job.
	ErrJobSubmission = errors.New("build job submission failed")

	// ErrJobInfo means polling the build service failed.
	ErrJobInfo = errors.New("build job status poll failed")

	// ErrJobFailed means the build reached a terminal failure state.
	ErrJobFailed = errors.New("build job failed")
)
