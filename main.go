package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msomdec/lifelink/internal/config"
	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/handler"
	"github.com/msomdec/lifelink/internal/localdb"
	"github.com/msomdec/lifelink/internal/repository/memory"
	"github.com/msomdec/lifelink/internal/repository/sqlite"
	"github.com/msomdec/lifelink/internal/service"
)

var (
	configPath string
	portFlag   string
	storage    string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:           "lifelink",
	Short:         "LifeLink blood donor and seeker server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQLite schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Storage != config.StorageSQLite {
			return fmt.Errorf("migrate requires sqlite storage, got %q", cfg.Storage)
		}
		_, closeStore, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return closeStore()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "HTTP port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&storage, "storage", "", "Storage backend: sqlite or memory")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DATABASE_PATH)")
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("lifelink", "error", err)
		os.Exit(1)
	}
}

// loadConfig layers command-line flags over the file and environment
// settings, then validates the result and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portFlag
	}
	if flags.Changed("storage") {
		cfg.Storage = storage
	}
	if flags.Changed("db") {
		cfg.DatabasePath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	logOpts := &slog.HandlerOptions{Level: level}
	slog.SetDefault(slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	)))
	return cfg, nil
}

// openStore opens the configured key-value backend. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config) (domain.KeyValueStore, func() error, error) {
	if cfg.Storage == config.StorageMemory {
		slog.Warn("using in-memory storage; data is lost on exit")
		return memory.NewKVStore(), func() error { return nil }, nil
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied", "path", cfg.DatabasePath)
	return db.KV(), db.Close, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	kv, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if !cfg.Auth.Strict {
		slog.Warn("auth is permissive; any password signs in")
	}

	db := localdb.New(kv)
	limiter := service.NewTokenBucket(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	defer limiter.Close()

	svc := handler.Services{
		Store:    kv,
		Browsers: service.NewBrowserFactory(kv, db, service.AuthOptions{
			Strict:     cfg.Auth.Strict,
			BcryptCost: cfg.Auth.BcryptCost,
		}),
		Tokens:        service.NewClientTokens(cfg.Auth.JWTSecret),
		Requests:      service.NewRequestService(db),
		Profiles:      service.NewProfileService(db),
		Notifications: service.NewNotificationService(db),
		Admin:         service.NewAdminService(db),
		AuthLimiter:   limiter,
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, svc, cfg.Auth.CookieSecure)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.SecurityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
