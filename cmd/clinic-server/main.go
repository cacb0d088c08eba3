package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicops/clinic/internal/config"
	"github.com/clinicops/clinic/internal/domain/consultation"
	"github.com/clinicops/clinic/internal/domain/directory"
	"github.com/clinicops/clinic/internal/domain/payment"
	"github.com/clinicops/clinic/internal/domain/scheduling"
	"github.com/clinicops/clinic/internal/domain/treatment"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/calendar"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/internal/platform/idp"
	"github.com/clinicops/clinic/internal/platform/metrics"
	"github.com/clinicops/clinic/internal/platform/middleware"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/internal/platform/validation"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic patient journey and ledger API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

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

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolOptions{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: "clinic-server",
	})
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(cfg.Level()).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(cfg.Level()).With().Timestamp().Logger()
}

// devActor is the actor assumed for unauthenticated development requests.
func devActor(cfg *config.Config) auth.Actor {
	a := auth.Actor{Role: auth.RoleAdmin}
	a.EmployeeID, _ = uuid.Parse(cfg.DevEmployeeID)
	a.ClinicID, _ = uuid.Parse(cfg.DevClinicID)
	return a
}

func accountProvider(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (idp.AuthProvider, error) {
	if !cfg.FirebaseEnabled() {
		logger.Warn().Msg("FIREBASE_PROJECT_ID not set; employee account operations are only logged")
		return &idp.LogProvider{Logger: logger}, nil
	}
	return idp.NewFirebaseProvider(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
}

// newEcho builds the server with global middleware and the public
// infrastructure routes. Workflow routes hang off the returned /api/v1 group.
func newEcho(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)
	e.Validator = validation.EchoValidator{}

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Metrics(m))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(devActor(cfg)))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			SigningKey: []byte(cfg.JWTSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(cfg.RateLimitRPS))
	return e, apiV1
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()
	cal := calendar.New(loc, nil)

	// Database
	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	accounts, err := accountProvider(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise identity provider")
	}

	m := metrics.New()
	e, apiV1 := newEcho(cfg, logger, m)
	e.GET("/health/db", db.PoolHealthHandler(pool))

	gate := permission.NewGate(cal)
	tx := db.NewTxRunner(pool)

	// Directory
	dirRepo := directory.NewRepoPG(pool)
	directory.NewHandler(directory.NewService(dirRepo, accounts, logger)).RegisterRoutes(apiV1)

	// Scheduling
	apptRepo := scheduling.NewAppointmentRepoPG(pool)
	schedSvc := scheduling.NewService(apptRepo, dirRepo, gate, cal,
		scheduling.WithPastGrace(cfg.PastBookingGrace),
		scheduling.WithMetrics(m),
		scheduling.WithLogger(logger),
	)
	scheduling.NewHandler(schedSvc).RegisterRoutes(apiV1)

	// Consulted services
	ledgerRepo := consultation.NewRepoPG(pool)
	consultSvc := consultation.NewService(ledgerRepo, apptRepo, dirRepo, dirRepo, gate, cal,
		consultation.WithMetrics(m),
		consultation.WithLogger(logger),
	)
	consultation.NewHandler(consultSvc).RegisterRoutes(apiV1)

	// Treatment logs
	treatSvc := treatment.NewService(treatment.NewRepoPG(pool), apptRepo, ledgerRepo, gate, tx,
		treatment.WithMetrics(m),
		treatment.WithLogger(logger),
	)
	treatment.NewHandler(treatSvc).RegisterRoutes(apiV1)

	// Payment vouchers
	paySvc := payment.NewService(payment.NewRepoPG(pool), ledgerRepo, dirRepo, gate, tx, cal,
		payment.WithMetrics(m),
		payment.WithLogger(logger),
	)
	payment.NewHandler(paySvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("starting server")
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
