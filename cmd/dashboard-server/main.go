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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/primcare/dashboard/internal/config"
	"github.com/primcare/dashboard/internal/dashboard"
	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/analytics"
	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/domain/patient"
	"github.com/primcare/dashboard/internal/domain/session"
	"github.com/primcare/dashboard/internal/memstore"
	"github.com/primcare/dashboard/internal/platform/agentfeed"
	"github.com/primcare/dashboard/internal/platform/archive"
	"github.com/primcare/dashboard/internal/platform/auth"
	"github.com/primcare/dashboard/internal/platform/db"
	"github.com/primcare/dashboard/internal/platform/middleware"
	"github.com/primcare/dashboard/internal/platform/realtime"
	"github.com/primcare/dashboard/internal/seed"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard-server",
		Short: "Care management dashboard API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sessionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format(time.RFC3339)
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(dir string, fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.UseMemoryStore() {
		return fmt.Errorf("migrations need STORE_BACKEND=%s", config.BackendPostgres)
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

// sessionCmd manages sandbox sessions from the command line. It talks to the
// same database the server does, so a running server picks the changes up
// through the change listener.
func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create or delete sandbox sessions",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create and seed a session, then print its overview URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			return withApp(func(ctx context.Context, a *app) error {
				if user == "" {
					user = a.cfg.SandboxEmail
				}
				sid, err := a.registry.Open(ctx, user)
				if err != nil {
					return err
				}
				fmt.Printf("Session: %s\n", sid)
				fmt.Printf("Overview: %s\n", session.OverviewURL(a.cfg.OverviewPath, sid))
				return nil
			})
		},
	}
	createCmd.Flags().String("user", "", "User id recorded on the session (default SANDBOX_EMAIL)")
	cmd.AddCommand(createCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a session and everything under it",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.sessions.DestroySession(ctx, id); err != nil {
					return err
				}
				fmt.Printf("Deleted session %s\n", id)
				return nil
			})
		},
	}
	deleteCmd.Flags().String("id", "", "Session id")
	cmd.AddCommand(deleteCmd)

	return cmd
}

func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.UseMemoryStore() {
		return fmt.Errorf("session commands need STORE_BACKEND=%s", config.BackendPostgres)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, newLogger(cfg.Env))
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// app is the wired server: stores, services, the dashboard registry and the
// background workers that feed the hub.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	hub      *realtime.Hub
	pool     *pgxpool.Pool
	sessions *session.Service
	actions  *action.Service
	registry *dashboard.Registry
	echo     *echo.Echo
	listener *db.Listener
	consumer *agentfeed.Consumer
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, hub: realtime.NewHub(logger)}

	var (
		sessionRepo session.Repository
		patientRepo patient.Repository
		actionRepo  action.Repository
	)
	if cfg.UseMemoryStore() {
		store := memstore.New(a.hub)
		sessionRepo, patientRepo, actionRepo = store.Sessions(), store.Patients(), store.Actions()
		logger.Info().Msg("using in-memory store")
	} else {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		sessionRepo = session.NewRepoPG(pool)
		patientRepo = patient.NewRepoPG(pool)
		actionRepo = action.NewRepoPG(pool)
		a.listener = db.NewListener(pool, a.hub.Publish, logger)
		logger.Info().Msg("connected to database")
	}

	a.sessions = session.NewService(sessionRepo, a.hub, session.Credentials{
		Email:    cfg.SandboxEmail,
		Password: cfg.SandboxPassword,
	}, logger)
	patientSvc := patient.NewService(patientRepo, a.sessions, a.hub, logger)
	a.actions = action.NewService(actionRepo, a.hub, logger)
	carePlanSvc := careplan.NewService(patientRepo, logger)
	analyticsSvc := analytics.NewService(patientSvc, a.actions)

	if cfg.ArchiveBucket != "" {
		archiver, err := archive.NewS3FromEnv(ctx, cfg.ArchiveBucket)
		if err != nil {
			a.close()
			return nil, err
		}
		carePlanSvc.SetArchiver(archiver)
		logger.Info().Str("bucket", cfg.ArchiveBucket).Msg("archiving authorized care plans")
	}

	deps := dashboard.Deps{
		Sessions:   a.sessions,
		Patients:   patientSvc,
		Actions:    a.actions,
		Analytics:  analyticsSvc,
		CarePlans:  carePlanSvc,
		Navigation: dashboard.Navigation{LoginPath: cfg.LoginPath, OverviewPath: cfg.OverviewPath},
	}
	if cfg.SeedFixtures {
		deps.Seeder = seed.NewSeeder(patientSvc, a.actions, logger)
	}
	a.registry = dashboard.NewRegistry(deps, logger)

	if cfg.KafkaEnabled() {
		reader := agentfeed.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		a.consumer = agentfeed.NewConsumer(reader, a.actions, logger)
	}

	a.echo = a.routes(deps.Navigation, patientSvc, carePlanSvc, analyticsSvc)
	return a, nil
}

func (a *app) routes(nav dashboard.Navigation, patients *patient.Service, carePlans *careplan.Service, stats *analytics.Service) *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.SessionHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(requestTimeout))

	var tokens *auth.TokenIssuer
	if key := cfg.SigningKey(); key != nil {
		tokens = auth.NewTokenIssuer(key, cfg.SessionTokenTTL)
	}
	gate := auth.SessionGate(auth.SessionGateConfig{
		Tokens:    tokens,
		Sessions:  a.sessions,
		LoginPath: cfg.LoginPath,
		Skipper:   auth.PublicSkipper,
	})

	apiV1 := e.Group("/api/v1", gate)

	sessionHandler := session.NewHandler(a.sessions, a.registry, session.HandlerConfig{
		Tokens:       tokens,
		OverviewPath: cfg.OverviewPath,
		LoginPath:    cfg.LoginPath,
	}, a.logger)
	sessionHandler.RegisterRoutes(apiV1, middleware.RateLimit(middleware.LoginRateLimitConfig(cfg.RateLimitRPS, cfg.RateLimitBurst)))

	patient.NewHandler(patients, a.actions).RegisterRoutes(apiV1)
	action.NewHandler(a.actions, patients).RegisterRoutes(apiV1)
	careplan.NewHandler(carePlans, patients).RegisterRoutes(apiV1)
	analytics.NewHandler(stats).RegisterRoutes(apiV1)
	dashboard.NewHandler(a.registry, nav).RegisterRoutes(apiV1)

	// The WebSocket lives at the root so the request timeout leaves it alone.
	e.GET("/ws", realtime.NewHandler(a.hub, cfg.CORSOrigins).HandleConnect, gate)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"backend":    cfg.StoreBackend,
			"dashboards": a.registry.Len(),
		})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}

	return e
}

// run serves HTTP and runs the background workers until ctx is canceled or
// one of them fails.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + a.cfg.Port
		a.logger.Info().Str("addr", addr).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if a.listener != nil {
		g.Go(func() error { return a.listener.Run(gctx) })
	}
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Run(gctx) })
	}

	return g.Wait()
}

func (a *app) close() {
	if a.registry != nil {
		a.registry.Shutdown()
	}
	if a.consumer != nil {
		a.consumer.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.close()

	if err := a.run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
