// Package main provides the CLI entrypoint for quizoracle.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quizoracle/quizoracle/internal/cache"
	"github.com/quizoracle/quizoracle/internal/config"
	"github.com/quizoracle/quizoracle/internal/games"
	"github.com/quizoracle/quizoracle/internal/logger"
	"github.com/quizoracle/quizoracle/internal/notify"
	"github.com/quizoracle/quizoracle/internal/predict"
	"github.com/quizoracle/quizoracle/internal/replay"
	"github.com/quizoracle/quizoracle/internal/session"
	"github.com/quizoracle/quizoracle/internal/showapi"
	"github.com/quizoracle/quizoracle/internal/solver"
)

var configPath string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "quizoracle",
		Short:         "Live trivia prediction bot",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to configuration file")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newReportCmd())
	return rootCmd
}

// loadConfig reads and validates the configuration, then initializes the
// logger. Every subcommand starts here.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("configuration loaded from %s", configPath)
	return cfg, nil
}

func buildSolvers(cfg *config.Config) []solver.Solver {
	return []solver.Solver{
		solver.NewAnswerWordsSolver(cfg.Search.BaseURL, cfg.Search.MaxWorkers),
		solver.NewResultsCountSolver(cfg.Search.BaseURL, cfg.Search.MaxWorkers),
	}
}

// referencedURLs rebuilds the URL set every recorded question references
// through the configured solvers. Empty gameIDs means all stored games.
func referencedURLs(cfg *config.Config, gameIDs ...string) ([]string, error) {
	store := games.NewStore(cfg.Games.Dir)
	records, err := store.LoadAll(gameIDs...)
	if err != nil {
		return nil, err
	}
	questions := games.AllQuestions(records)
	return cache.ReferencedURLs(questions, buildSolvers(cfg)), nil
}

func newNotifier(cfg *config.Config) (*notify.Client, error) {
	return notify.NewClient(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		cfg.Telegram.MaxRetries,
		cfg.Telegram.RetryDelayBase,
	)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received, cleaning up...")
		cancel()
	}()
	return ctx, cancel
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the live show feed and predict answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			responseCache, err := cache.Open(cfg.Cache.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open response cache: %w", err)
			}
			defer func() {
				if err := responseCache.Close(); err != nil {
					logger.Error("failed to close response cache: %v", err)
				}
			}()

			transport := cache.NewHTTPTransport(cfg.Search.Timeout, responseCache)
			engine := predict.New(transport, buildSolvers(cfg)...)
			store := games.NewStore(cfg.Games.Dir)

			var notifier session.Notifier
			if cfg.Telegram.Enabled {
				client, err := newNotifier(cfg)
				if err != nil {
					return fmt.Errorf("failed to initialize Telegram client: %w", err)
				}
				notifier = client
				logger.Info("Telegram client initialized successfully")
			} else {
				logger.Debug("Telegram notifications disabled")
			}

			shows := showapi.NewClient(
				cfg.API.BaseURL,
				cfg.API.UserID,
				cfg.API.BearerToken,
				cfg.API.Timeout,
				cfg.API.MaxRetries,
				cfg.API.RetryDelayBase,
			)

			sess := session.New(shows, engine, store, notifier, nil, session.Config{
				ReconnectBackoff: cfg.API.ReconnectBackoff,
				DiscoveryBackoff: cfg.API.DiscoveryBackoff,
				MessagesLog:      cfg.Games.MessagesLog,
				OpenBrowser:      cfg.Search.OpenBrowser,
				SearchBaseURL:    cfg.Search.BaseURL,
			})

			ctx, cancel := signalContext()
			defer cancel()

			logger.Info("starting live session")
			if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the search-response cache",
	}
	cacheCmd.AddCommand(newCachePruneCmd())
	cacheCmd.AddCommand(newCacheRefreshCmd())
	cacheCmd.AddCommand(newCacheVacuumCmd())
	cacheCmd.AddCommand(newCacheExportCmd())
	cacheCmd.AddCommand(newCacheImportCmd())
	return cacheCmd
}

func newCachePruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete cached responses no recorded question references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			urls, err := referencedURLs(cfg)
			if err != nil {
				return err
			}
			responseCache, err := cache.Open(cfg.Cache.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = responseCache.Close() }()

			ctx, cancel := signalContext()
			defer cancel()
			deleted, total, err := responseCache.Prune(ctx, urls)
			if err != nil {
				return err
			}
			logger.Info("pruned %d of %d cached responses", deleted, total)
			return nil
		},
	}
}

func newCacheRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch and store responses missing for recorded questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			urls, err := referencedURLs(cfg)
			if err != nil {
				return err
			}
			responseCache, err := cache.Open(cfg.Cache.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = responseCache.Close() }()

			ctx, cancel := signalContext()
			defer cancel()
			transport := cache.NewHTTPTransport(cfg.Search.Timeout, nil)
			added, err := responseCache.Refresh(ctx, urls, transport)
			if added > 0 || err != nil {
				logger.Info("refreshed %d missing responses", added)
			}
			return err
		},
	}
}

func newCacheVacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Reclaim cache storage space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			responseCache, err := cache.Open(cfg.Cache.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = responseCache.Close() }()

			ctx, cancel := signalContext()
			defer cancel()
			if err := responseCache.Vacuum(ctx); err != nil {
				return err
			}
			logger.Info("cache vacuumed")
			return nil
		},
	}
}

func newCacheExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <gameId>",
		Short: "Write one game's cached responses to a portable dump file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			gameID := args[0]
			urls, err := referencedURLs(cfg, gameID)
			if err != nil {
				return err
			}
			responseCache, err := cache.Open(cfg.Cache.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = responseCache.Close() }()

			ctx, cancel := signalContext()
			defer cancel()
			dump, err := responseCache.Export(ctx, gameID, urls)
			if err != nil {
				return err
			}
			path, err := cache.WriteDumpFile(cfg.Cache.DumpDir, dump)
			if err != nil {
				return err
			}
			logger.Info("exported %d responses to %s", len(dump.Entries), path)
			return nil
		},
	}
}

func newCacheImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a dump file into the cache without overwriting entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dump, err := cache.ReadDumpFile(args[0])
			if err != nil {
				return err
			}
			responseCache, err := cache.Open(cfg.Cache.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = responseCache.Close() }()

			ctx, cancel := signalContext()
			defer cancel()
			inserted, skipped, err := responseCache.Import(ctx, dump)
			if err != nil {
				return err
			}
			logger.Info("imported %d responses (%d already present)", inserted, skipped)
			return nil
		},
	}
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [gameIds...]",
		Short: "Re-run recorded questions through the engine from the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			responseCache, err := cache.Open(cfg.Cache.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = responseCache.Close() }()

			// Replays read documents from the cache only; a miss is a
			// recorded no-signal prediction, never a live fetch.
			engine := predict.New(responseCache, buildSolvers(cfg)...)
			store := games.NewStore(cfg.Games.Dir)
			results := games.NewReplayStore(cfg.Games.ReplayPath)
			replayer := replay.New(store, results, engine)

			ctx, cancel := signalContext()
			defer cancel()
			pass, err := replayer.Play(ctx, args...)
			if err != nil {
				return err
			}
			logger.Info("replayed %d questions in pass %s", len(pass.Questions), pass.ID)

			report, err := replayer.GenReport()
			if err != nil {
				return err
			}
			fmt.Print(report.String())
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the replay accuracy report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := games.NewStore(cfg.Games.Dir)
			results := games.NewReplayStore(cfg.Games.ReplayPath)
			replayer := replay.New(store, results, nil)

			report, err := replayer.GenReport()
			if err != nil {
				return err
			}
			fmt.Print(report.String())
			return nil
		},
	}
}
