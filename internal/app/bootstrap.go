package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"account-auth/internal/auth"
	"account-auth/internal/config"
	"account-auth/internal/db"
	"account-auth/internal/directory"
	"account-auth/internal/observability"
)

type Options struct {
	LoadDotEnv bool
	// Config skips environment loading when set.
	Config *config.Config
	// Directory overrides the configured driver.
	Directory auth.Directory
}

type Runtime struct {
	Handler http.Handler
	Config  *config.Config
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	cfg := options.Config
	if cfg == nil {
		loaded, err := config.Load(options.LoadDotEnv)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	accounts := options.Directory
	ping := func(context.Context) error { return nil }
	closeDirectory := func() error { return nil }

	if accounts == nil {
		switch strings.ToLower(cfg.Directory.Driver) {
		case config.DriverMemory:
			logger.Warn("memory_directory_enabled", map[string]any{"env": cfg.Env})
			accounts = directory.NewMemory()
		default:
			database, err := openDatabase(cfg)
			if err != nil {
				return nil, err
			}
			accounts = directory.NewPostgres(database)
			ping = database.PingContext
			closeDirectory = database.Close
		}
	}

	hasher := auth.NewPasswordHasher(cfg.Password.BcryptCost, cfg.Password.HashConcurrency)
	codec := auth.NewTokenCodec(cfg.JWT.Secret, cfg.JWT.Expiration,
		auth.WithIssuer(cfg.JWT.Issuer),
		auth.WithLeeway(cfg.JWT.Leeway),
	)

	service := auth.NewService(accounts, hasher, codec, logger)
	guard := auth.NewGuard(codec, accounts, logger)
	handler := auth.NewHandler(service, cfg.PasswordPolicy(), logger)
	limiter := auth.NewRateLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)

	api := http.NewServeMux()
	api.HandleFunc("POST /auth/signup", handler.Signup)
	api.HandleFunc("POST /auth/signin", handler.Signin)
	api.Handle("GET /auth/profile", guard.Middleware(http.HandlerFunc(handler.Profile)))

	// Health checks stay outside the per-IP budget.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(ping))
	mux.Handle("/", limiter.Middleware(api))

	var root http.Handler = mux
	root = observability.TimeoutMiddleware(cfg.HTTP.RequestTimeout, root)
	root = observability.CORSMiddleware(cfg.HTTP.AllowedOrigins, root)
	root = observability.SecurityHeadersMiddleware(root)
	root = observability.RequestLoggingMiddleware(logger, root)
	root = observability.RecoverMiddleware(logger, root)

	return &Runtime{
		Handler: root,
		Config:  cfg,
		Close: func() error {
			observability.FlushSentry()
			return closeDirectory()
		},
	}, nil
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := sql.Open("pgx", cfg.Directory.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.Directory.MaxOpenConns)
	database.SetMaxIdleConns(cfg.Directory.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.Directory.ConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.Directory.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := database.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping database: %w", err), database.Close())
	}

	if cfg.Directory.RunMigrations {
		if err := db.RunMigrations(context.Background(), database); err != nil {
			return nil, errors.Join(fmt.Errorf("run migrations: %w", err), database.Close())
		}
	}

	return database, nil
}

func healthHandler(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
