package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with yaml support for values like "90s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the complete aurvetd configuration
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	AUR      AURConfig      `yaml:"aur"`
	Git      GitConfig      `yaml:"git"`
	Build    BuildConfig    `yaml:"build"`
	Update   UpdateConfig   `yaml:"update"`
	Telegram TelegramConfig `yaml:"telegram"`
	Serve    ServeConfig    `yaml:"serve"`
}

// PathsConfig configures local filesystem locations
type PathsConfig struct {
	RepoDir string `yaml:"repo_dir"` // built package artifacts
	WorkDir string `yaml:"work_dir"` // scratch workspaces
}

// AURConfig configures the upstream package source
type AURConfig struct {
	RPCURL   string `yaml:"rpc_url"`
	CloneURL string `yaml:"clone_url"`
}

// GitConfig configures the custom package repository host
type GitConfig struct {
	BaseURL     string `yaml:"base_url"` // e.g. https://git.example.com
	User        string `yaml:"user"`     // owner of the custom package repos
	SSHKeyFile  string `yaml:"ssh_key_file"`
	TokenFile   string `yaml:"token_file"`
	CommitName  string `yaml:"commit_name"`
	CommitEmail string `yaml:"commit_email"`
}

// BuildConfig configures the remote build service
type BuildConfig struct {
	URL   string `yaml:"url"`
	User  string `yaml:"user"`
	Token string `yaml:"token"`
}

// UpdateConfig configures the refresh behavior
type UpdateConfig struct {
	Interval     Duration `yaml:"interval"`      // delay between refresh cycles
	PollInterval Duration `yaml:"poll_interval"` // build job poll interval
	Concurrency  int      `yaml:"concurrency"`   // in-flight package pipelines
}

// TelegramConfig configures the chat notifier. Empty token disables it.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// ServeConfig configures the refresh trigger endpoint
type ServeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	SecretFile string `yaml:"secret_file"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables in string fields
	cfg.expandEnv()

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// WriteDefault writes a default configuration skeleton to path. It refuses
// to overwrite an existing file.
func WriteDefault(path string) error {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var cfg Config
	cfg.applyDefaults()

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Paths.RepoDir = os.ExpandEnv(c.Paths.RepoDir)
	c.Paths.WorkDir = os.ExpandEnv(c.Paths.WorkDir)
	c.AUR.RPCURL = os.ExpandEnv(c.AUR.RPCURL)
	c.AUR.CloneURL = os.ExpandEnv(c.AUR.CloneURL)
	c.Git.BaseURL = os.ExpandEnv(c.Git.BaseURL)
	c.Git.User = os.ExpandEnv(c.Git.User)
	c.Git.SSHKeyFile = os.ExpandEnv(c.Git.SSHKeyFile)
	c.Git.TokenFile = os.ExpandEnv(c.Git.TokenFile)
	c.Build.URL = os.ExpandEnv(c.Build.URL)
	c.Build.User = os.ExpandEnv(c.Build.User)
	c.Build.Token = os.ExpandEnv(c.Build.Token)
	c.Telegram.Token = os.ExpandEnv(c.Telegram.Token)
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.SecretFile = os.ExpandEnv(c.Serve.SecretFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.AUR.RPCURL == "" {
		c.AUR.RPCURL = "https://aur.archlinux.org/rpc/"
	}
	if c.AUR.CloneURL == "" {
		c.AUR.CloneURL = "https://aur.archlinux.org/"
	}
	if c.Git.CommitName == "" {
		c.Git.CommitName = "aurvet"
	}
	if c.Git.CommitEmail == "" {
		c.Git.CommitEmail = "aurvet@localhost"
	}
	if c.Update.Interval == 0 {
		c.Update.Interval = Duration(time.Hour)
	}
	if c.Update.PollInterval == 0 {
		c.Update.PollInterval = Duration(time.Minute)
	}
	if c.Update.Concurrency == 0 {
		c.Update.Concurrency = 10
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	// Validate paths
	if c.Paths.RepoDir == "" {
		return fmt.Errorf("paths.repo_dir is required")
	}
	if c.Paths.WorkDir == "" {
		return fmt.Errorf("paths.work_dir is required")
	}

	// Ensure paths are absolute
	if !filepath.IsAbs(c.Paths.RepoDir) {
		return fmt.Errorf("paths.repo_dir must be an absolute path: %s", c.Paths.RepoDir)
	}
	if !filepath.IsAbs(c.Paths.WorkDir) {
		return fmt.Errorf("paths.work_dir must be an absolute path: %s", c.Paths.WorkDir)
	}

	// Validate custom repository host
	if c.Git.BaseURL == "" {
		return fmt.Errorf("git.base_url is required")
	}
	if c.Git.User == "" {
		return fmt.Errorf("git.user is required")
	}

	// Validate auth: only one auth method may be configured
	if c.Git.SSHKeyFile != "" && c.Git.TokenFile != "" {
		return fmt.Errorf("git: only one of ssh_key_file or token_file may be set")
	}
	if c.Git.SSHKeyFile != "" && !c.IsSSH() {
		return fmt.Errorf("git.ssh_key_file is set but git.base_url does not use an SSH scheme (git@ or ssh://)")
	}
	if c.Git.TokenFile != "" && !c.IsHTTPS() {
		return fmt.Errorf("git.token_file is set but git.base_url does not use HTTPS scheme")
	}

	// Validate build service
	if c.Build.URL == "" {
		return fmt.Errorf("build.url is required")
	}

	// Validate update behavior
	if c.Update.Concurrency < 1 {
		return fmt.Errorf("update.concurrency must be positive")
	}
	if c.Update.Interval.Std() <= 0 {
		return fmt.Errorf("update.interval must be positive")
	}
	if c.Update.PollInterval.Std() <= 0 {
		return fmt.Errorf("update.poll_interval must be positive")
	}

	// Validate serve config if enabled
	if c.Serve.Enabled {
		if c.Serve.ListenAddr == "" {
			return fmt.Errorf("serve.listen_addr is required when serve is enabled")
		}
		if c.Serve.SecretFile == "" {
			return fmt.Errorf("serve.secret_file is required when serve is enabled")
		}
	}

	return nil
}

// CustomCloneURL returns the clone URL of a package's custom repository
func (c *Config) CustomCloneURL(pkg string) string {
	return strings.TrimSuffix(c.Git.BaseURL, "/") + "/" + c.Git.User + "/" + pkg + ".git"
}

// WorkspaceDir returns the scratch workspace root for a package
func (c *Config) WorkspaceDir(pkg string) string {
	return filepath.Join(c.Paths.WorkDir, pkg)
}

// IsHTTPS returns true if the custom repository host uses HTTPS
func (c *Config) IsHTTPS() bool {
	return strings.HasPrefix(c.Git.BaseURL, "https://")
}

// IsSSH returns true if the custom repository host uses SSH
func (c *Config) IsSSH() bool {
	return strings.HasPrefix(c.Git.BaseURL, "git@") || strings.HasPrefix(c.Git.BaseURL, "ssh://")
}
