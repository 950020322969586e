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

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"lo1server/internal/api"
	"lo1server/internal/auth"
	"lo1server/internal/config"
	"lo1server/internal/fileops"
	"lo1server/internal/logging"
	"lo1server/internal/redis"
	"lo1server/internal/session"
	"lo1server/internal/storage"
	"lo1server/internal/upload"
	"lo1server/internal/validation"
	"lo1server/internal/views"
)

type cli struct {
	Config string `kong:"help='Path to the JSON configuration file (default config.json, optional).'"`
	Log    struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
	Address string `kong:"help='Override the [host]:port to listen on.'"`
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	var args cli
	kong.Parse(&args,
		kong.Name("lo1server"),
		kong.Description("Course examples web server."),
		kong.UsageOnError(),
		kong.DefaultEnvars("LO1"),
	)

	logger, _ := logging.New(colorable.NewColorable(os.Stderr), args.Log.Level, isatty.IsTerminal(os.Stderr.Fd()))
	slog.SetDefault(logger)

	if err := run(args, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(args cli, logger *slog.Logger) error {
	// only an explicitly named config file has to exist
	cfg, err := config.Load(args.Config, args.Config != "")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if args.Address != "" {
		cfg.BasicConfig.ServerAddress = args.Address
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	fs := osfs.New()
	basic := cfg.BasicConfig
	if err := fs.MkdirAll(basic.ImageDir, 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	intake, err := upload.NewIntake(fs, basic.UploadStagingDir, upload.DefaultSlots, logger)
	if err != nil {
		return err
	}
	engine := validation.New()
	processor := upload.NewProcessor(engine, fileops.NewDispatcher(fs, basic.FileWorkers, logger), basic.ImageDir, upload.DefaultSlots, logger)
	renderer, err := views.New()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startSweepers(ctx, cfg, fs, store, logger)

	handler := api.NewHandler(api.Deps{
		Config:    cfg,
		Logger:    logger,
		Views:     renderer,
		Validator: engine,
		Intake:    intake,
		Processor: processor,
		Sessions: session.NewManager(store, session.Options{
			CookieName:  cfg.Session.CookieName,
			CookiePath:  cfg.Session.CookiePath,
			IdleTimeout: time.Duration(cfg.Session.IdleTimeoutMinutes) * time.Minute,
			Secure:      basic.SSL,
		}),
		Auth: auth.Anonymous,
	})

	srv := &http.Server{
		Addr:              basic.ServerAddress,
		Handler:           handler.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, logger)
}

// openSessionStore builds the store named by session.store.
func openSessionStore(cfg *config.Config, logger *slog.Logger) (session.Store, error) {
	switch driver := cfg.Session.Store; driver {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		client, err := redis.NewRedisClient(cfg.Redis, "lo1:sess:")
		if err != nil {
			return nil, fmt.Errorf("create redis client: %w", err)
		}
		return session.NewRedisStore(client), nil
	default:
		db, err := storage.Open(driver, cfg.Databases[driver])
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := storage.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("session store ready", "driver", driver)
		return session.NewSQLStore(db), nil
	}
}

// startSweepers runs the staging janitor and, for stores that do not expire
// records themselves, a periodic session sweep.
func startSweepers(ctx context.Context, cfg *config.Config, fs vfs.FileSystem, store session.Store, logger *slog.Logger) {
	basic := cfg.BasicConfig
	interval := time.Duration(basic.StagingCleanIntervalMin) * time.Minute
	janitor := upload.NewJanitor(fs, basic.UploadStagingDir, time.Duration(basic.StagingTTLMinutes)*time.Minute, logger)
	janitor.Start(ctx, interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				switch s := store.(type) {
				case *session.MemoryStore:
					if n := s.Sweep(); n > 0 {
						logger.Debug("expired sessions removed", "count", n)
					}
				case *session.SQLStore:
					n, err := s.Sweep(ctx)
					if err != nil {
						logger.Warn("session sweep failed", "error", err)
						continue
					}
					if n > 0 {
						logger.Debug("expired sessions removed", "count", n)
					}
				}
			}
		}
	}()
}

// serve runs srv until it fails or the process receives SIGINT or SIGTERM.
func serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	srvDone := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", srv.Addr)
		srvDone <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sigCh:
		logger.Debug("process received signal", "signal", s)
	case err := <-srvDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed shutting down web server: %w", err)
	}
	return nil
}
