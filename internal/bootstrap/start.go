package bootstrap

import (
	"context"
	"fmt"
	"time"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/infrastructure/profiling"
)

const schedulerStopTimeout = 30 * time.Second

// Serve runs the HTTP server and the in-process scheduler until ctx is
// cancelled or a termination signal arrives.
func Serve(ctx context.Context, configPath string) error {
	return WithApp(ctx, configPath, func(ctx context.Context, app *App) error {
		cfg := app.Config

		profiler, profErr := profiling.Start(cfg.Profiling, cfg.Service.Name, cfg.Service.Version)
		if profErr != nil {
			app.Log.Warn("Continuous profiling unavailable", infralogger.Error(profErr))
		}
		defer func() { _ = profiler.Stop() }()

		sched, schedErr := SetupScheduler(cfg, app.Service, app.Log)
		if schedErr != nil {
			return fmt.Errorf("scheduler: %w", schedErr)
		}
		if sched != nil {
			sched.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schedulerStopTimeout)
				defer cancel()
				if stopErr := sched.Stop(stopCtx); stopErr != nil {
					app.Log.Warn("Scheduler did not stop cleanly", infralogger.Error(stopErr))
				}
			}()
		}

		app.Log.Info("Starting finblog service",
			infralogger.String("name", cfg.Service.Name),
			infralogger.String("version", cfg.Service.Version),
			infralogger.Int("port", cfg.Service.Port),
			infralogger.Bool("in_process_cron", sched != nil),
		)

		server := SetupHTTPServer(app)
		if runErr := server.Run(ctx); runErr != nil {
			app.Log.Error("Server error", infralogger.Error(runErr))
			return fmt.Errorf("server: %w", runErr)
		}

		app.Log.Info("finblog service stopped")
		return nil
	})
}

// WithApp loads config, wires the application, runs fn and tears down.
func WithApp(ctx context.Context, configPath string, fn func(ctx context.Context, app *App) error) error {
	cfg, configErr := LoadConfig(configPath)
	if configErr != nil {
		return fmt.Errorf("config: %w", configErr)
	}

	log, logErr := CreateLogger(cfg)
	if logErr != nil {
		return fmt.Errorf("logger: %w", logErr)
	}
	defer func() { _ = log.Sync() }()

	app, appErr := NewApp(ctx, cfg, log)
	if appErr != nil {
		log.Error("Startup failed", infralogger.Error(appErr))
		return appErr
	}
	defer app.Close()

	return fn(ctx, app)
}
