package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"music_backend/internal/app"
	"music_backend/internal/config"
	"music_backend/internal/loginlog"
	"music_backend/internal/music"
	"music_backend/internal/platform/database"
	platformElasticsearch "music_backend/internal/platform/elasticsearch"
	"music_backend/internal/platform/logger"
	"music_backend/internal/user"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "music_backend",
		Short:         "Music service user API",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSyncLoginLogsCommand(),
		newCreateAdminCommand(),
		newGenerateMusicCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefaultLogger().Error("Failed to load configuration", zap.Error(err))
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer cleanup()

	if server.ESClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ServerTimeout)
		if err := platformElasticsearch.CreateLoginLogsIndexIfNotExists(ctx, server.ESClient, cfg.LoginLogsIndex, server.AppLogger); err != nil {
			server.AppLogger.Error("Failed to create Elasticsearch login logs index; indexing may fail", zap.Error(err))
		}
		cancel()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		server.AppLogger.Info("Received signal, shutting down server...", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.AppLogger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}
	server.AppLogger.Info("Server shutdown complete.")
	return nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			appLogger, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = appLogger.Sync() }()

			db, err := database.NewGORM(cfg, appLogger)
			if err != nil {
				return err
			}
			defer database.CloseGORMDB(db, appLogger)
			return app.AutoMigrate(db, appLogger)
		},
	}
}

func newSyncLoginLogsCommand() *cobra.Command {
	var (
		batchSize int
		esRefresh string
	)
	cmd := &cobra.Command{
		Use:   "sync-login-logs",
		Short: "Re-index every stored login log into Elasticsearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch esRefresh {
			case "true", "false", "wait_for":
			default:
				return fmt.Errorf("--es-refresh must be true, false or wait_for, got %q", esRefresh)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration for sync: %w", err)
			}
			appLogger, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger for sync: %w", err)
			}
			defer func() { _ = appLogger.Sync() }()

			db, err := database.NewGORM(cfg, appLogger)
			if err != nil {
				return err
			}
			defer database.CloseGORMDB(db, appLogger)

			esClient, err := platformElasticsearch.NewClient(cfg, appLogger)
			if err != nil {
				return err
			}
			if esClient == nil {
				return fmt.Errorf("ELASTICSEARCH_URL must be set to sync login logs")
			}

			ctx := cmd.Context()
			if err := platformElasticsearch.CreateLoginLogsIndexIfNotExists(ctx, esClient, cfg.LoginLogsIndex, appLogger); err != nil {
				return err
			}

			result, err := loginlog.SyncToElasticsearch(ctx, loginlog.NewGORMRepository(db), esClient, cfg.LoginLogsIndex, appLogger, batchSize, esRefresh)
			fmt.Fprintf(cmd.OutOrStdout(), "batches: %d, synced: %d, failed: %d\n", result.Batches, result.Synced, result.Failed)
			return err
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Number of login logs per bulk request")
	cmd.Flags().StringVar(&esRefresh, "es-refresh", "false", "Elasticsearch refresh policy (true, false, wait_for)")
	return cmd
}

func newCreateAdminCommand() *cobra.Command {
	var email, password, nickname string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			svc, cleanup, err := initializeUserService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			admin, err := svc.CreateAdmin(cmd.Context(), user.CreateUserRequest{
				Email:    email,
				Password: password,
				Nickname: nickname,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&password, "password", "", "Admin password")
	cmd.Flags().StringVar(&nickname, "nickname", "admin", "Admin nickname")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newGenerateMusicCommand() *cobra.Command {
	var (
		opts music.Options
		out  string
	)
	cmd := &cobra.Command{
		Use:   "generate-music",
		Short: "Compose a song and write it as a MIDI file",
		RunE: func(cmd *cobra.Command, args []string) error {
			song, err := music.NewComposer().Compose(opts)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := music.WriteMIDI(song, f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d bars at %d bpm, seed %d\n", out, song.Bars(), song.BPM, opts.Seed)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Genre, "genre", music.GenreNewAge, "newage or retro")
	cmd.Flags().StringVar(&opts.Mood, "mood", music.MoodHappy, "happy, sad or grand")
	cmd.Flags().StringVar(&opts.Tempo, "tempo", music.TempoModerate, "slow, moderate or fast")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&out, "out", "music.mid", "Output path")
	return cmd
}
