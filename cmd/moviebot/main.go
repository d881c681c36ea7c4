package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/mrcrazy10100/movie-bot/internal/bot"
	"github.com/mrcrazy10100/movie-bot/internal/config"
	"github.com/mrcrazy10100/movie-bot/internal/health"
	"github.com/mrcrazy10100/movie-bot/internal/media"
	"github.com/mrcrazy10100/movie-bot/internal/search"
	"github.com/mrcrazy10100/movie-bot/internal/session"
	"github.com/mrcrazy10100/movie-bot/internal/store"
	"github.com/mrcrazy10100/movie-bot/internal/telegram"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "moviebot",
		Short:         "Telegram movie catalog bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		&cobra.Command{Use: "run", Short: "Poll Telegram and serve the bot", RunE: runBot},
		&cobra.Command{Use: "migrate", Short: "Apply database migrations", RunE: runMigrate},
		seedAdminCommand(),
		&cobra.Command{Use: "reindex", Short: "Rebuild the Meilisearch movie index", RunE: runReindex},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	level := zapcore.InfoLevel
	if err := level.Set(cfg.LogLevel); err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// deps holds everything built from config, plus the teardown for it.
type deps struct {
	cfg     config.Config
	logger  *zap.Logger
	catalog interface {
		bot.Catalog
		Ping(context.Context) error
	}
	closers []func()
}

func (rt *deps) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	_ = rt.logger.Sync()
}

func setup(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	rt := &deps{cfg: cfg, logger: logger}

	if cfg.DatabaseDriver == "memory" {
		logger.Warn("using in-memory catalog; data is lost on restart")
		rt.catalog = store.NewMemoryStore()
		return rt, nil
	}

	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = db.Close() })
	if err := store.ApplyMigrations(ctx, db, cfg.DatabaseDriver); err != nil {
		rt.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	rt.catalog = store.NewSQLStore(db, cfg.DatabaseDriver)
	return rt, nil
}

func (rt *deps) searchService() *search.Service {
	var index search.Index
	if rt.cfg.MeiliURL != "" {
		meili := search.NewMeili(rt.cfg.MeiliURL, rt.cfg.MeiliMasterKey, rt.logger.Named("meili"))
		rt.closers = append(rt.closers, meili.Close)
		index = meili
	}
	return search.NewService(rt.catalog, index, rt.logger.Named("search"))
}

func (rt *deps) sessionStore() (session.Store, health.Pinger, error) {
	if rt.cfg.RedisURL == "" {
		rt.logger.Info("using in-memory wizard sessions")
		mem := session.NewMemoryStore(rt.cfg.SessionTTL)
		return mem, mem, nil
	}
	redisStore, err := session.NewRedisStore(rt.cfg.RedisURL, rt.cfg.SessionTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	rt.closers = append(rt.closers, func() { _ = redisStore.Close() })
	return redisStore, redisStore, nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	client := telegram.NewClient(cfg.TelegramToken, cfg.TelegramBaseURL, &http.Client{Timeout: cfg.PollTimeout + 15*time.Second})

	sessions, sessionPinger, err := rt.sessionStore()
	if err != nil {
		return err
	}
	searchService := rt.searchService()
	if err := searchService.ReindexAll(ctx); err != nil {
		logger.Warn("initial reindex failed", zap.Error(err))
	}

	var archiver bot.MediaArchiver
	if cfg.MinioEndpoint != "" {
		objects, err := media.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return fmt.Errorf("minio setup failed: %w", err)
		}
		archiver = media.NewArchiver(objects, client, logger.Named("media"))
	}

	router := bot.NewRouter(bot.Options{
		Catalog:          rt.catalog,
		Sessions:         sessions,
		Search:           searchService,
		Media:            archiver,
		BootstrapAdminID: cfg.BootstrapAdminID,
		SearchLimit:      cfg.SearchLimit,
		LatestLimit:      cfg.LatestLimit,
		Logger:           logger.Named("bot"),
	})
	if cfg.BootstrapAdminID == 0 {
		logger.Warn("MOVIEBOT_ADMIN_ID is not set; no admin will be provisioned")
	}

	poller, err := telegram.NewPoller(telegram.PollerOptions{
		Client:         client,
		Handler:        router,
		OffsetFile:     cfg.OffsetFile,
		PollTimeoutSec: cfg.PollTimeoutSeconds,
		Logger:         logger.Named("telegram"),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: cfg.HealthAddr,
		Handler: health.NewRouter(
			health.Check{Name: "database", Pinger: rt.catalog},
			health.Check{Name: "sessions", Pinger: sessionPinger},
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("health server listening", zap.String("addr", cfg.HealthAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("moviebot stopped")
	return err
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	if rt.cfg.DatabaseDriver == "memory" {
		rt.logger.Info("memory driver has no migrations")
		return nil
	}
	rt.logger.Info("migrations applied", zap.String("driver", rt.cfg.DatabaseDriver))
	return nil
}

func seedAdminCommand() *cobra.Command {
	var adminID int64
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Provision the bootstrap admin and demote it out of the agent list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			id := adminID
			if id == 0 {
				id = rt.cfg.BootstrapAdminID
			}
			if err := bot.NewRoleResolver(rt.catalog, id, rt.logger.Named("bot")).Seed(cmd.Context()); err != nil {
				return err
			}
			rt.logger.Info("admin seeded", zap.Int64("user_id", id))
			return nil
		},
	}
	cmd.Flags().Int64Var(&adminID, "id", 0, "admin user id (defaults to MOVIEBOT_ADMIN_ID)")
	return cmd
}

func runReindex(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	if rt.cfg.MeiliURL == "" {
		return errors.New("MEILI_URL is required")
	}
	svc := rt.searchService()
	if !svc.IndexReady() {
		return errors.New("meilisearch is unavailable")
	}
	if err := svc.ReindexAll(cmd.Context()); err != nil {
		return err
	}
	rt.logger.Info("reindex complete")
	return nil
}
