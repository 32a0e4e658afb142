package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/signpost/signpost/internal/config"
	"github.com/signpost/signpost/internal/domain/admin"
	"github.com/signpost/signpost/internal/domain/review"
	"github.com/signpost/signpost/internal/domain/surgery"
	"github.com/signpost/signpost/internal/domain/symptom"
	"github.com/signpost/signpost/internal/platform/auth"
	"github.com/signpost/signpost/internal/platform/cache"
	"github.com/signpost/signpost/internal/platform/db"
	"github.com/signpost/signpost/internal/platform/middleware"
)

const (
	version = "0.1.0"

	// standaloneIssuer is the iss claim on tokens minted by "token issue".
	standaloneIssuer = "signpost"

	// reviewFanout bounds concurrent reads when loading review data.
	reviewFanout = 3
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "signpost-server",
		Short: "Symptom signposting API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// openPool loads config and connects; CLI commands share it.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
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
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, dir).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.SchemaFor("default"), "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.SchemaFor("default"), "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a tenant schema and apply migrations to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaFor(args[0]))
			if err := db.CreateTenantSchema(ctx, pool, args[0], cfg.MigrationsDir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	cmd.AddCommand(createCmd)
	return cmd
}

// readSeedFile decodes a JSON array of base symptoms.
func readSeedFile(r io.Reader) ([]symptom.BaseSymptom, error) {
	var items []symptom.BaseSymptom
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return items, nil
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data",
	}

	baseCmd := &cobra.Command{
		Use:   "base-symptoms <file.json>",
		Short: "Upsert the shared base symptom library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			items, err := readSeedFile(f)
			if err != nil {
				return err
			}

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if tenantID == "" {
				tenantID = cfg.DefaultTenant
			}

			ctx, release, err := db.UseTenant(ctx, pool, tenantID)
			if err != nil {
				return err
			}
			defer release()

			logger := newLogger(cfg)
			store, closeStore := openCache(ctx, cfg, logger)
			defer closeStore()
			counts := review.NewCountsCache(store, logger)

			svc := symptom.NewService(symptom.NewBaseRepoPG(pool), symptom.NewOverrideRepoPG(pool),
				symptom.NewCustomRepoPG(pool), symptom.NewVisibilityRepoPG(pool), logger)
			svc.SetCountsInvalidator(counts)
			var n int
			err = db.NewTransactor(pool).InTx(ctx, func(ctx context.Context) error {
				n, err = svc.SeedBase(ctx, items)
				return err
			})
			if err != nil {
				return err
			}
			// A server may have cached counts from the old library while the
			// transaction was open.
			counts.InvalidateAllCounts(ctx)
			fmt.Printf("Seeded %d base symptom(s).\n", n)
			return nil
		},
	}
	baseCmd.Flags().String("tenant", "", "Tenant whose search_path is used (default DEFAULT_TENANT)")
	cmd.AddCommand(baseCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Standalone-mode access tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Print a signed token for a stored user and their surgery memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			key, err := cfg.SigningKey()
			if err != nil {
				return err
			}
			if tenantID == "" {
				tenantID = cfg.DefaultTenant
			}

			ctx, release, err := db.UseTenant(ctx, pool, tenantID)
			if err != nil {
				return err
			}
			defer release()

			svc := admin.NewService(admin.NewUserRepo(pool), admin.NewMembershipRepo(pool), newLogger(cfg))
			p, err := svc.PrincipalFor(ctx, userID)
			if err != nil {
				return err
			}
			tok, err := auth.IssueToken(key, auth.IssueRequest{
				Principal: p,
				TenantID:  tenantID,
				Issuer:    standaloneIssuer,
				TTL:       ttl,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issueCmd.Flags().String("tenant", "", "Tenant the token is scoped to (default DEFAULT_TENANT)")
	issueCmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	cmd.AddCommand(issueCmd)
	return cmd
}

// authMiddleware picks the token check for the configured auth mode.
func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, error) {
	switch cfg.ResolvedAuthMode() {
	case "development":
		return auth.DevAuthMiddleware(), nil
	case "external":
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}), nil
	case "standalone":
		key, err := cfg.SigningKey()
		if err != nil {
			return nil, err
		}
		return auth.JWTMiddleware(auth.JWTConfig{Issuer: standaloneIssuer, SigningKey: key}), nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.ResolvedAuthMode())
}

// newServer builds the echo instance with middleware and every route.
func newServer(cfg *config.Config, pool *pgxpool.Pool, store cache.Store, logger zerolog.Logger) (*echo.Echo, error) {
	authMW, err := authMiddleware(cfg)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit("1M"))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/health"))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	api := e.Group("/api",
		authMW,
		db.TenantMiddleware(pool, cfg.DefaultTenant),
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
	)

	// Surgeries
	surgerySvc := surgery.NewService(surgery.NewRepoPG(pool), logger)
	surgery.NewHandler(surgerySvc).RegisterRoutes(api)

	// Symptom library
	symptomSvc := symptom.NewService(
		symptom.NewBaseRepoPG(pool),
		symptom.NewOverrideRepoPG(pool),
		symptom.NewCustomRepoPG(pool),
		symptom.NewVisibilityRepoPG(pool),
		logger,
	)
	symptomSvc.SetCountsInvalidator(review.NewCountsCache(store, logger))
	symptom.NewHandler(symptomSvc).RegisterRoutes(api)

	// Clinical review
	reviewSvc := review.NewService(
		review.NewRepoPG(pool),
		symptomSvc,
		surgerySvc,
		db.NewTransactor(pool),
		db.NewRunner(pool, reviewFanout),
		store,
		logger,
	)
	review.NewHandler(reviewSvc).RegisterRoutes(api)

	// Users and memberships
	adminSvc := admin.NewService(admin.NewUserRepo(pool), admin.NewMembershipRepo(pool), logger)
	admin.NewHandler(adminSvc).RegisterRoutes(api)

	return e, nil
}

// openCache connects to Redis when configured. Without it counts fall back to
// the database.
func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Store, func()) {
	if !cfg.CacheEnabled() {
		return cache.NopStore{}, func() {}
	}
	rs, err := cache.NewRedisStore(ctx, cfg.RedisURL, cfg.ReviewCacheTTL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, review counts cache disabled")
		return cache.NopStore{}, func() {}
	}
	logger.Info().Dur("ttl", cfg.ReviewCacheTTL).Msg("review counts cache enabled")
	return rs, func() { _ = rs.Close() }
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, closeStore := openCache(ctx, cfg, logger)
	defer closeStore()

	e, err := newServer(cfg, pool, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	logger.Info().Str("auth_mode", cfg.ResolvedAuthMode()).Msg("auth configured")

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
