// Command server runs the watchdesk repair-estimation API.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/watchdesk/internal/config"
	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/logging"
	"github.com/Simplici0/watchdesk/internal/migrations"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/seed"
	"github.com/Simplici0/watchdesk/internal/service"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

const shutdownTimeout = 15 * time.Second

type rootOptions struct {
	envFile    string
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "watchdesk",
		Short:        "Watch repair intake and estimation service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to read (optional)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")

	serve := newServeCmd(opts)
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCmd(opts), newSeedCmd(opts))
	return root
}

// env is what every subcommand starts from.
type env struct {
	cfg      config.Config
	logger   *zap.Logger
	database *sql.DB
}

func setup(opts *rootOptions) (*env, error) {
	cfg, err := config.Load(opts.envFile, opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("configuration", zap.String("warning", w))
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{cfg: cfg, logger: logger, database: database}, nil
}

func (e *env) close() {
	_ = e.database.Close()
	_ = e.logger.Sync()
}

func (e *env) migrate() error {
	if err := migrations.Up(e.database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, err := migrations.Version(e.database)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	e.logger.Info("database migrated", zap.Int64("version", version), zap.String("path", e.cfg.DBPath))
	return nil
}

func (e *env) seed(ctx context.Context) error {
	stats, err := seed.Run(ctx, e.database, seed.Config{
		AdminEmail:    e.cfg.AdminEmail,
		AdminPassword: e.cfg.AdminPassword,
		RateCard:      rateCardFromConfig(e.cfg),
		SampleData:    e.cfg.IsDev(),
	})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	e.logger.Info("database seeded", zap.Int("inserts", stats.Inserts))
	return nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(opts)
			if err != nil {
				return err
			}
			defer e.close()
			return e.migrate()
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user, the rate card and, in development, sample categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(opts)
			if err != nil {
				return err
			}
			defer e.close()
			return e.seed(cmd.Context())
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(opts)
			if err != nil {
				return err
			}
			defer e.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if e.cfg.IsDev() {
				if err := e.migrate(); err != nil {
					return err
				}
			}
			if err := e.seed(ctx); err != nil {
				return err
			}

			srv, err := newServer(e.database, e.cfg, e.logger)
			if err != nil {
				return err
			}
			return run(ctx, &http.Server{
				Addr:              ":" + e.cfg.Port,
				Handler:           srv.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}, e.logger)
		},
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, httpServer *http.Server, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func rateCardFromConfig(cfg config.Config) pricing.RateCard {
	return pricing.RateCard{
		UCPRate:                 cfg.UCPRate,
		DefaultLabourPercentage: cfg.DefaultLabourPercent,
		DefaultPricePercentage:  cfg.DefaultPricePercent,
	}
}

func newServer(database *sql.DB, cfg config.Config, logger *zap.Logger) (*server, error) {
	policy, err := taxonomy.PolicyByName(cfg.ParentPolicy)
	if err != nil {
		return nil, err
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		logger.Warn("using a random session secret; sessions end on restart")
	}

	observer := service.NewLogUseCaseObserver(logger)
	uow := db.NewTxRunner(database)
	cost := service.NewCostService(database, rateCardFromConfig(cfg), observer)

	return &server{
		auth:     newAuthService(store.NewUserRepo(database), secret),
		taxonomy: service.NewTaxonomyService(database, uow, policy, observer),
		catalog:  service.NewCatalogService(database, observer),
		rules:    service.NewPricingRuleService(database, uow, observer),
		cost:     cost,
		jobs:     service.NewJobService(database, uow, cost, observer),
		logger:   logger,
	}, nil
}
