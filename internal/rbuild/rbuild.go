// Package rbuild submits package builds to a remote build service and polls
// their state. The service runs the actual makepkg in isolation; this side
// only hands off a package name and watches the job.
package rbuild

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// JobID identifies a submitted build job. Opaque to callers.
type JobID int64

// Status is a build job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is the remote service's view of one build.
type Job struct {
	ID     JobID  `json:"id"`
	Status Status `json:"status"`
}

// Client provides remote build operations.
type Client interface {
	// SubmitAURBuild queues a build of the named AUR package.
	SubmitAURBuild(ctx context.Context, pkg string) (JobID, error)
	// JobInfo returns the current state of a job.
	JobInfo(ctx context.Context, id JobID) (Job, error)
}

// HTTPClient implements Client against the build service's JSON API.
type HTTPClient struct {
	baseURL    string
	username   string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a build service client.
func NewHTTPClient(baseURL, username, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type submitRequest struct {
	Type     string `json:"type"`
	Package  string `json:"package"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type submitResponse struct {
	ID JobID `json:"id"`
}

// SubmitAURBuild queues an "aurbuild" job for the named package.
func (c *HTTPClient) SubmitAURBuild(ctx context.Context, pkg string) (JobID, error) {
	var parsed submitResponse
	err := c.post(ctx, "/api/job/create", submitRequest{
		Type:     "aurbuild",
		Package:  pkg,
		Username: c.username,
		Token:    c.token,
	}, &parsed)
	if err != nil {
		return 0, err
	}
	return parsed.ID, nil
}

type infoRequest struct {
	ID       JobID  `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// JobInfo fetches the current state of a job.
func (c *HTTPClient) JobInfo(ctx context.Context, id JobID) (Job, error) {
	var job Job
	err := c.post(ctx, "/api/job/info", infoRequest{
		ID:       id,
		Username: c.username,
		Token:    c.token,
	}, &job)
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to build service failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("build service returned status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read build service response: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to parse build service response: %w", err)
	}

	return nil
}
