// Command para integrates parallel session branches back into the main
// line of a repository: one resumable integration at a time, with
// conflicts paused for human resolution instead of failed.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"para/internal/config"
	"para/internal/git"
	"para/internal/integrate"
	"para/internal/logger"
)

var (
	repoPath   string
	configPath string
	debugMode  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "para: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "para",
		Short: "Integrate parallel session branches back into the main line",
		Long: `Para lands feature branches from parallel working sessions on their
target branch through a resumable, abortable integration. Conflicts pause
the integration for human resolution; nothing is lost on failure because
every integration starts from a backup branch and can be rolled back with
'para abort'.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&repoPath, "repo", "", "repository path (default: discover from the working directory)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/para/config.yaml)")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	root.AddCommand(
		integrateCmd(),
		continueCmd(),
		abortCmd(),
		statusCmd(),
		conflictsCmd(),
		archivesCmd(),
		recoverCmd(),
		cleanCmd(),
		historyCmd(),
		eventsCmd(),
		configCmd(),
		doctorCmd(),
		watchCmd(),
		versionCmd(),
	)
	return root
}

// openRepo locates the repository. Branch surgery and integration state
// always live in the main checkout, so an invocation from a session
// worktree hops to its parent; the invoked handle is kept so session
// resolution can still read the worktree's current branch.
func openRepo() (invoked, main *git.Repo, err error) {
	if repoPath != "" {
		invoked, err = git.DiscoverFrom(repoPath)
	} else {
		invoked, err = git.Discover()
	}
	if err != nil {
		return nil, nil, err
	}

	main, err = invoked.MainRepo()
	if err != nil {
		return nil, nil, err
	}
	return invoked, main, nil
}

// loadEnv is the shared command preamble: config, repository, logging.
func loadEnv() (*config.Config, *git.Repo, *git.Repo, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	invoked, main, err := openRepo()
	if err != nil {
		return nil, nil, nil, err
	}
	initLogging(cfg, main)
	return cfg, invoked, main, nil
}

func newManager() (*integrate.Manager, *git.Repo, *config.Config, error) {
	cfg, invoked, main, err := loadEnv()
	if err != nil {
		return nil, nil, nil, err
	}
	return integrate.New(main, cfg), invoked, cfg, nil
}

// initLogging routes logs into the repository's data directory when it
// already exists. A repository para has never touched keeps the default
// path so read-only commands leave no trace.
func initLogging(cfg *config.Config, repo *git.Repo) {
	if debugMode {
		logger.SetDebug(true)
	} else {
		applyLogLevel(cfg.LogLevel)
	}

	if repo == nil {
		return
	}
	if info, err := os.Stat(cfg.DataDir(repo.Root())); err == nil && info.IsDir() {
		if err := logger.Init(cfg.LogPath(repo.Root())); err != nil {
			logger.Warn("logging to default path: %v", err)
		}
	}
}

func applyLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(logger.LevelDebug)
	case "warn":
		logger.SetLevel(logger.LevelWarn)
	case "error":
		logger.SetLevel(logger.LevelError)
	default:
		logger.SetLevel(logger.LevelInfo)
	}
}
