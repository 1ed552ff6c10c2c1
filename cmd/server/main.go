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

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hyper-ai-inc/workbench/internal/config"
	"github.com/hyper-ai-inc/workbench/internal/logging"
	"github.com/hyper-ai-inc/workbench/internal/sessions"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := buildApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildApp() *cli.App {
	return &cli.App{
		Name:  "workbench",
		Usage: "terminal and workspace bridge for the browser editor",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a TOML config file"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port (env PORT)"},
			&cli.StringFlag{Name: "root", Usage: "workspace root directory (env WORKBENCH_ROOT)"},
			&cli.StringFlag{Name: "upload-dir", Usage: "directory for uploaded files (env WORKBENCH_UPLOAD_DIR)"},
			&cli.StringFlag{Name: "static-dir", Usage: "built UI to serve (env WORKBENCH_STATIC_DIR)"},
			&cli.StringFlag{Name: "shell", Usage: "shell to spawn for terminals (env WORKBENCH_SHELL)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (env WORKBENCH_LOG_LEVEL)"},
			&cli.StringFlag{Name: "log-format", Usage: "console or json"},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			return serve(ctx.Context, cfg)
		},
	}
}

// loadConfig applies defaults, then the config file, then the environment,
// then explicit flags.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	var err error
	if path := ctx.String("config"); path != "" {
		if cfg, err = config.LoadFile(cfg, path); err != nil {
			return cfg, err
		}
	}
	if cfg, err = config.ApplyEnv(cfg); err != nil {
		return cfg, err
	}

	if ctx.IsSet("port") {
		cfg.Port = ctx.Int("port")
	}
	for flag, dst := range map[string]*string{
		"root":       &cfg.Root,
		"upload-dir": &cfg.UploadDir,
		"static-dir": &cfg.StaticDir,
		"shell":      &cfg.Shell,
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
	} {
		if ctx.IsSet(flag) {
			*dst = ctx.String(flag)
		}
	}

	if cfg, err = config.Normalize(cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer logger.Sync()

	sessionManager := sessions.NewManager(sessions.Options{
		Root:   cfg.Root,
		Shell:  cfg.Shell,
		Logger: logger,
	})
	server := NewServer(cfg, sessionManager, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", httpServer.Addr),
			zap.String("root", cfg.Root),
			zap.String("upload_dir", cfg.UploadDir))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			sessionManager.Shutdown()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting connections, then kill every remaining shell. Hijacked
	// WebSocket connections are not tracked by Shutdown.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}
	sessionManager.Shutdown()

	logger.Info("server stopped")
	return nil
}
