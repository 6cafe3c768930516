package main

import (
	"context"
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
	"golang.org/x/time/rate"

	"github.com/clinica/clinica/internal/config"
	"github.com/clinica/clinica/internal/domain/appointment"
	"github.com/clinica/clinica/internal/domain/auditlog"
	"github.com/clinica/clinica/internal/domain/document"
	"github.com/clinica/clinica/internal/domain/history"
	"github.com/clinica/clinica/internal/domain/identity"
	"github.com/clinica/clinica/internal/domain/patient"
	"github.com/clinica/clinica/internal/domain/specialist"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/db"
	"github.com/clinica/clinica/internal/platform/middleware"
	"github.com/clinica/clinica/internal/platform/policy"
	"github.com/clinica/clinica/internal/platform/storage"
	"github.com/clinica/clinica/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinica-server",
		Short: "Clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
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
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := identity.AccountInput{Roles: []string{policy.RoleAdministrator}}
			in.Email, _ = cmd.Flags().GetString("email")
			in.Password, _ = cmd.Flags().GetString("password")
			in.Name, _ = cmd.Flags().GetString("name")
			in.Surnames, _ = cmd.Flags().GetString("surnames")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger(os.Getenv("ENV"))
			rec := audit.NewRecorder(audit.NewStorePG(pool), logger)
			svc := identity.NewService(identity.NewUserRepoPG(pool), auth.NewSessionStorePG(pool), nil,
				policy.MustNew(policy.Options{}), rec, db.NewTxRunner(pool), auth.DefaultHashParams())

			var u *identity.User
			err = db.NewTxRunner(pool).WithTx(ctx, func(ctx context.Context) error {
				u, err = svc.Register(ctx, in)
				return err
			})
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			fmt.Printf("Created administrator %s (id %d).\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().String("email", "admin@clinica.local", "Administrator email")
	cmd.Flags().String("password", "", "Administrator password")
	cmd.Flags().String("name", "Admin", "Administrator name")
	cmd.Flags().String("surnames", "", "Administrator surnames")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Gateway, error) {
	switch cfg.StorageBackend {
	case "local":
		g, err := storage.NewDiskGateway(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "s3":
		g, err := storage.NewS3Gateway(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	case "memory":
		return storage.NewMemoryGateway(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// loginRateLimiter throttles login attempts per client IP.
func loginRateLimiter(rps float64, burst int) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 10 * time.Minute,
		}),
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts")
		},
	})
}

// isDocumentUpload matches the upload route, which enforces its own size
// limit and reports it as a validation error.
func isDocumentUpload(c echo.Context) bool {
	return c.Request().Method == http.MethodPost && c.Path() == "/api/documentos"
}

// newEcho builds the server with the global middleware chain and the
// liveness endpoint. Routes are mounted by the caller.
func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{
		Skipper: isDocumentUpload,
		Limit:   cfg.BodyLimit,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
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
	logger = newLogger(cfg.Env)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	sessions := auth.NewSessionStorePG(pool)
	if cfg.RedisURL != "" {
		rdb, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		sessions = auth.NewSessionStoreRedis(rdb)
		logger.Info().Msg("using redis session store")
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize document storage")
	}
	logger.Info().Str("backend", cfg.StorageBackend).Msg("document storage ready")

	pol, err := policy.New(policy.Options{StrictHistoryRead: cfg.StrictHistoryRead})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load access policy")
	}

	auditStore := audit.NewStorePG(pool)
	rec := audit.NewRecorder(auditStore, logger)
	tx := db.NewTxRunner(pool)
	tokens := auth.NewTokenIssuer([]byte(cfg.TokenSigningKey), cfg.TokenIssuer)

	identitySvc := identity.NewService(identity.NewUserRepoPG(pool), sessions, tokens, pol, rec, tx, auth.DefaultHashParams())
	authenticator := auth.NewAuthenticator(tokens, sessions, identitySvc, rec, logger)

	e := newEcho(cfg, logger)
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))

	public := e.Group("/api")
	api := e.Group("/api", authenticator.Middleware())

	identity.NewHandler(identitySvc).RegisterRoutes(public, api, loginRateLimiter(cfg.LoginRateLimitRPS, cfg.LoginRateBurst))
	patient.NewHandler(patient.NewService(patient.NewRepoPG(pool), identitySvc, pol, rec, tx)).RegisterRoutes(api)
	specialist.NewHandler(specialist.NewService(specialist.NewRepoPG(pool), identitySvc, pol, rec, tx)).RegisterRoutes(api)
	appointment.NewHandler(appointment.NewService(appointment.NewRepoPG(pool), pol, rec)).RegisterRoutes(api)
	history.NewHandler(history.NewService(history.NewRepoPG(pool), pol, rec)).RegisterRoutes(api)
	document.NewHandler(document.NewService(document.NewRepoPG(pool), store, pol, rec, logger)).RegisterRoutes(api)
	auditlog.NewHandler(auditlog.NewService(auditStore, pol, rec)).RegisterRoutes(api)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
