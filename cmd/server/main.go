package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"studentsnet/internal/audit"
	"studentsnet/internal/auth"
	"studentsnet/internal/config"
	"studentsnet/internal/domain"
	"studentsnet/internal/httpapi"
	"studentsnet/internal/metrics"
	"studentsnet/internal/ratelimit"
	"studentsnet/internal/service"
	"studentsnet/internal/store/memory"
	"studentsnet/internal/store/postgres"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	var (
		accounts service.AccountsStore
		sinks    = []audit.Sink{audit.NewSlogSink(os.Stdout)}
		dbPing   func(context.Context) error
	)

	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		if err := postgres.Migrate(context.Background(), pgPool); err != nil {
			logger.Error("db migrate failed", "err", err)
			os.Exit(1)
		}

		accounts = postgres.NewAccountsStore(pgPool)
		sinks = append(sinks, postgres.NewAuditStore(pgPool))
		dbPing = pgPool.Ping
	} else {
		logger.Warn("APP_DB_DSN not set: using in-memory credential store, accounts are lost on restart")
		accounts = memory.NewAccountsStore()
	}

	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret, err = randomSecret()
		if err != nil {
			logger.Error("token secret generation failed", "err", err)
			os.Exit(1)
		}
		logger.Warn("APP_TOKEN_SECRET not set: generated a per-process secret, tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.TokenTTL, nil)
	if err != nil {
		logger.Error("token issuer init failed", "err", err)
		os.Exit(1)
	}

	hasher := auth.NewPasswordHasher(auth.Argon2Params{
		Memory:     cfg.Argon2MemoryKiB,
		Iterations: cfg.Argon2Time,
	})

	auditLog := audit.New(audit.Options{
		Sinks:    sinks,
		Fallback: logger,
		Observer: collector,
	})

	authSvc := &service.AuthService{
		Accounts: accounts,
		Hasher:   hasher,
		Tokens:   tokens,
		Lockout: &auth.LockoutTracker{
			Store:       accounts,
			MaxAttempts: cfg.LockoutMaxAttempts,
			Duration:    cfg.LockoutDuration,
		},
		Audit: auditLog,
	}

	if err := bootstrapOwner(context.Background(), logger, accounts, hasher, cfg.OwnerBootstrapContact, cfg.OwnerBootstrapPassword); err != nil {
		logger.Error("bootstrap owner failed", "err", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(ratelimit.Config{
		Limits: map[ratelimit.Class]int{
			ratelimit.ClassLogin:    cfg.RateLimits.Login,
			ratelimit.ClassRegister: cfg.RateLimits.Register,
			ratelimit.ClassPayment:  cfg.RateLimits.Payment,
			ratelimit.ClassGeneral:  cfg.RateLimits.General,
		},
	})
	limiter.StartCleanup()
	defer limiter.Stop()

	apiRouter := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:     logger,
		IsProd:     cfg.IsProd(),
		TrustProxy: cfg.TrustProxy,
		DBPing:     dbPing,
		Auth:       authSvc,
		Limiter:    limiter,
		Audit:      auditLog,
		Metrics:    collector,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiRouter,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			errCh <- metricsSrv.ListenAndServe()
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// bootstrapOwner creates the owner account on first start. An existing account
// with the same contact is left untouched.
func bootstrapOwner(ctx context.Context, logger *slog.Logger, accounts service.AccountsStore, hasher service.PasswordHasher, contact, password string) error {
	if password == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if contact == "" {
		return errors.New("owner bootstrap: contact is required")
	}
	contact = domain.NormalizeContact(contact)
	if !domain.ValidContact(contact) {
		return fmt.Errorf("owner bootstrap: contact %q must be 10 to 15 digits", contact)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return fmt.Errorf("owner bootstrap: %w", err)
	}

	_, err := accounts.FetchAccount(ctx, contact)
	if err == nil {
		logger.Info("owner bootstrap: account already exists", "contact", contact)
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("owner bootstrap: lookup account: %w", err)
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("owner bootstrap: hash password: %w", err)
	}

	_, err = accounts.CreateAccount(ctx, domain.NewAccount{
		ID:           uuid.NewString(),
		Contact:      contact,
		PasswordHash: hash,
		Role:         domain.RoleOwner,
		Profile:      domain.Profile{Name: "Owner"},
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrContactTaken) {
			logger.Info("owner bootstrap: account already exists", "contact", contact)
			return nil
		}
		return fmt.Errorf("owner bootstrap: create account: %w", err)
	}

	logger.Info("owner bootstrap: created owner account", "contact", contact)
	return nil
}

func randomSecret() ([]byte, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}
	return []byte(hex.EncodeToString(b[:])), nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
