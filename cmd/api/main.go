package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	_ "github.com/formahub/auth-api/docs"
	"github.com/formahub/auth-api/internal/auth"
	"github.com/formahub/auth-api/internal/config"
	"github.com/formahub/auth-api/internal/database"
	"github.com/formahub/auth-api/internal/email"
	"github.com/formahub/auth-api/internal/http"
	"github.com/formahub/auth-api/internal/logging"
	"github.com/formahub/auth-api/internal/ratelimit"
	"github.com/formahub/auth-api/internal/user"
)

// @title           FormaHub Auth API
// @version         1.0
// @description     Role-based authentication service: registration, login, email verification and instructor approval.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	sqlDB, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "db", cfg.Database.DBName)

	db := database.NewBunDB(sqlDB)

	if cfg.Database.RunMigrations {
		if err := database.CreateSchema(context.Background(), db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		logger.Info("schema ensured")
	}

	users := user.NewRepository(db)

	limiter, redisClient, err := buildRateLimiter(cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	tokens, err := buildTokenService(cfg)
	if err != nil {
		return err
	}

	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FrontendURL,
	)

	authService := auth.NewService(users, tokens, emailService, logger)
	authHandler := auth.NewHandler(authService, limiter, logger)
	authMiddleware := auth.NewMiddleware(tokens, users)

	if err := seedAdmin(context.Background(), cfg, users, logger); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	router := http.NewRouter(cfg, authHandler, authMiddleware, logger)
	server := http.NewServer(":"+cfg.Server.Port, router, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(ctx)
}

// buildRateLimiter wires the configured counter backend into the limiter.
// The returned redis client is nil for the memory backend.
func buildRateLimiter(cfg *config.Config, logger *logging.Logger) (*ratelimit.Limiter, *redis.Client, error) {
	rules := []ratelimit.Rule{
		{Name: "login", Limit: cfg.RateLimit.LoginLimit, Window: cfg.RateLimit.LoginWindow},
		{Name: "register", Limit: cfg.RateLimit.RegisterLimit, Window: cfg.RateLimit.RegisterWindow},
	}

	switch cfg.RateLimit.Backend {
	case "memory":
		logger.Info("rate limiting with in-process counters")
		return ratelimit.NewLimiter(ratelimit.NewMemoryStore(), rules...), nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("rate limiting with redis counters", "addr", cfg.Redis.Address())
		return ratelimit.NewLimiter(ratelimit.NewRedisStore(client), rules...), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown RATELIMIT_BACKEND %q", cfg.RateLimit.Backend)
	}
}

func buildTokenService(cfg *config.Config) (auth.TokenService, error) {
	switch cfg.Auth.TokenBackend {
	case config.TokenBackendPaseto:
		return auth.NewPasetoService([]byte(cfg.Auth.SigningSecret), cfg.Auth.TokenDuration)
	default:
		return auth.NewJWTService(cfg.Auth.SigningSecret, cfg.Auth.TokenDuration)
	}
}

// seedAdmin creates the bootstrap administrator if configured and absent.
// The account starts verified since there is nobody to click the link.
func seedAdmin(ctx context.Context, cfg *config.Config, users *user.Repository, logger *logging.Logger) error {
	if cfg.Seed.AdminEmail == "" || cfg.Seed.AdminPassword == "" {
		return nil
	}

	_, err := users.GetByEmail(ctx, cfg.Seed.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	passwordHash, err := auth.HashPassword(cfg.Seed.AdminPassword)
	if err != nil {
		return err
	}

	seeded := &user.User{
		FirstName:     cfg.Seed.AdminFirstName,
		LastName:      cfg.Seed.AdminLastName,
		Email:         cfg.Seed.AdminEmail,
		PhoneNumber:   cfg.Seed.AdminPhone,
		PasswordHash:  passwordHash,
		Role:          user.RoleAdmin,
		IsActive:      true,
		EmailVerified: true,
		Admin: &user.AdminProfile{
			Permissions: append([]string(nil), user.DefaultAdminPermissions...),
		},
	}

	if _, err := users.Create(ctx, seeded); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil
		}
		return err
	}

	logger.Info("seeded bootstrap administrator", "email", cfg.Seed.AdminEmail)
	return nil
}
