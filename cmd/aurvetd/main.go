package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aurvet/aurvet/internal/aur"
	"github.com/aurvet/aurvet/internal/config"
	"github.com/aurvet/aurvet/internal/gitrepo"
	"github.com/aurvet/aurvet/internal/makepkg"
	"github.com/aurvet/aurvet/internal/pkginfo"
	"github.com/aurvet/aurvet/internal/rbuild"
	"github.com/aurvet/aurvet/internal/telegram"
	"github.com/aurvet/aurvet/internal/trigger"
	"github.com/aurvet/aurvet/internal/updater"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aurvetd",
	Short: "Keep custom AUR package forks current with their upstreams",
	Long: `aurvetd watches a repository of built Arch packages, compares each
package against its AUR upstream, and applies upstream packaging updates to
the custom fork once they pass a content-level allow-list check.

Accepted updates are built on a remote build service before the fork is
pushed, so the published repository only ever moves to versions that build.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform one refresh cycle and exit",
	Long: `Run discovers the built package artifacts in the repository directory,
looks each package up on the AUR, and runs the update pipeline for every
package with a newer upstream version.

Suitable for invocation from a systemd timer or cron.`,
	RunE: runOnce,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run refresh cycles continuously",
	Long: `Watch runs a refresh cycle, sleeps the configured update interval and
repeats until terminated.

When serve is enabled in the configuration, watch also listens for
HMAC-authenticated trigger requests that start an immediate refresh, e.g.
from a git host webhook.`,
	RunE: runWatch,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Init writes a configuration skeleton to the config path and exits. It
refuses to overwrite an existing file. Required fields are left empty and
must be filled in before run or watch will accept the file.`,
	RunE: runInit,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aurvetd %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/aurvet/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Add commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := buildEngine(cfg, logger)

	logger.Info("starting refresh")
	if err := engine.Run(ctx); err != nil {
		logger.Error("refresh failed", "error", err)
		return err
	}

	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := buildEngine(cfg, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Watch(ctx)
	})

	if cfg.Serve.Enabled {
		server, err := trigger.NewServer(cfg, engine, logger)
		if err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("failed to create trigger server: %w", err)
		}
		g.Go(func() error {
			return server.Start(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("watch failed", "error", err)
		return err
	}

	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}

	fmt.Printf("wrote default config to %s\n", path)
	fmt.Println("fill in paths, git and build before running aurvetd")
	return nil
}

// buildEngine wires the update engine to its real collaborators.
func buildEngine(cfg *config.Config, logger *slog.Logger) *updater.Engine {
	gitClient := gitrepo.NewShellClient(cfg.Git.SSHKeyFile, cfg.Git.TokenFile, cfg.Git.CommitName, cfg.Git.CommitEmail)
	aurClient := aur.NewClient(cfg.AUR.RPCURL)
	buildClient := rbuild.NewHTTPClient(cfg.Build.URL, cfg.Build.User, cfg.Build.Token)
	srcinfo := makepkg.NewShellRunner()

	var notifier telegram.Notifier = telegram.NopNotifier{}
	if cfg.Telegram.Token != "" {
		notifier = telegram.NewBot("", cfg.Telegram.Token, cfg.Telegram.ChatID)
	}

	return updater.NewEngine(cfg, &pkginfo.FileReader{}, aurClient, gitClient, buildClient, srcinfo, notifier, logger)
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return fmt.Sprintf("%s/.config/aurvet/config.yaml", home), nil
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	logger.Info("loading configuration", "path", path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"repo_dir", cfg.Paths.RepoDir,
		"work_dir", cfg.Paths.WorkDir,
		"git_base", cfg.Git.BaseURL,
		"build_url", cfg.Build.URL)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
