package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
paths:
  repo_dir: /srv/pkgrepo
  work_dir: /var/tmp/aurvet
git:
  base_url: https://git.example.com
  user: packages
build:
  url: https://build.example.com
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Paths.RepoDir != "/srv/pkgrepo" {
		t.Errorf("repo_dir = %q", cfg.Paths.RepoDir)
	}
	if cfg.Git.User != "packages" {
		t.Errorf("git.user = %q", cfg.Git.User)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.AUR.RPCURL != "https://aur.archlinux.org/rpc/" {
		t.Errorf("aur.rpc_url default = %q", cfg.AUR.RPCURL)
	}
	if cfg.Update.Interval.Std() != time.Hour {
		t.Errorf("update.interval default = %s", cfg.Update.Interval.Std())
	}
	if cfg.Update.PollInterval.Std() != time.Minute {
		t.Errorf("update.poll_interval default = %s", cfg.Update.PollInterval.Std())
	}
	if cfg.Update.Concurrency != 10 {
		t.Errorf("update.concurrency default = %d", cfg.Update.Concurrency)
	}
	if cfg.Git.CommitName != "aurvet" {
		t.Errorf("git.commit_name default = %q", cfg.Git.CommitName)
	}
}

func TestLoadDurations(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+`
update:
  interval: 30m
  poll_interval: 15s
  concurrency: 4
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Update.Interval.Std() != 30*time.Minute {
		t.Errorf("interval = %s, want 30m", cfg.Update.Interval.Std())
	}
	if cfg.Update.PollInterval.Std() != 15*time.Second {
		t.Errorf("poll_interval = %s, want 15s", cfg.Update.PollInterval.Std())
	}
	if cfg.Update.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", cfg.Update.Concurrency)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+`
update:
  interval: soon
`))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("AURVET_TEST_REPO", "/srv/from-env")

	cfg, err := Load(writeConfig(t, `
paths:
  repo_dir: ${AURVET_TEST_REPO}
  work_dir: /var/tmp/aurvet
git:
  base_url: https://git.example.com
  user: packages
build:
  url: https://build.example.com
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Paths.RepoDir != "/srv/from-env" {
		t.Errorf("repo_dir = %q, want /srv/from-env", cfg.Paths.RepoDir)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing repo_dir",
			mutate:  func(c *Config) { c.Paths.RepoDir = "" },
			wantErr: "paths.repo_dir",
		},
		{
			name:    "relative work_dir",
			mutate:  func(c *Config) { c.Paths.WorkDir = "tmp/aurvet" },
			wantErr: "absolute",
		},
		{
			name:    "missing git base url",
			mutate:  func(c *Config) { c.Git.BaseURL = "" },
			wantErr: "git.base_url",
		},
		{
			name:    "missing build url",
			mutate:  func(c *Config) { c.Build.URL = "" },
			wantErr: "build.url",
		},
		{
			name: "both auth methods",
			mutate: func(c *Config) {
				c.Git.SSHKeyFile = "/key"
				c.Git.TokenFile = "/token"
			},
			wantErr: "only one",
		},
		{
			name:    "token auth without https",
			mutate:  func(c *Config) { c.Git.BaseURL = "git@git.example.com:x"; c.Git.TokenFile = "/token" },
			wantErr: "HTTPS",
		},
		{
			name:    "serve without secret",
			mutate:  func(c *Config) { c.Serve.Enabled = true; c.Serve.ListenAddr = ":8080" },
			wantErr: "serve.secret_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestCustomCloneURL(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}

	want := "https://git.example.com/packages/sample-tool.git"
	if got := cfg.CustomCloneURL("sample-tool"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "repo_dir") {
		t.Errorf("default config missing repo_dir: %s", data)
	}

	// Second write must refuse to clobber the file.
	if err := WriteDefault(path); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
