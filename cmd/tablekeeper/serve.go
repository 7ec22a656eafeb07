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

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/clubpoker/tablekeeper/internal/clubs"
	"github.com/clubpoker/tablekeeper/internal/config"
	"github.com/clubpoker/tablekeeper/internal/engine"
	"github.com/clubpoker/tablekeeper/internal/server"
	"github.com/clubpoker/tablekeeper/internal/store"
	"github.com/clubpoker/tablekeeper/internal/timers"
)

// ServeCmd runs the orchestration server.
type ServeCmd struct {
	Config string `kong:"short='c',help='Path to HCL config file'"`
	Addr   string `kong:"help='Listen address, overrides config'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Server.LogLevel, c.Debug)

	addr := c.Addr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	}

	st, err := store.Open(cfg.DB.Driver, cfg.DB.DSN, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	clock := quartz.NewReal()
	timerSvc := timers.New(clock, logger)
	memberships := clubs.New(st, logger)

	srv := server.NewServer(addr, logger)
	eng := engine.New(st, clock, timerSvc, memberships, srv, cfg.Engine, logger)
	timerSvc.Bind(eng.HandleTimerExpiry)
	srv.SetEngine(eng)

	logger.Info("starting tablekeeper",
		"addr", addr,
		"db", cfg.DB.Driver,
		"buyinTimeout", cfg.Engine.BuyinTimeout(),
		"seatChangeTimeout", cfg.Engine.SeatChangeTimeout(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		timerSvc.Stop()
		return srv.Stop()
	})
	return group.Wait()
}

// MigrateCmd applies the schema and exits. Useful in deploy pipelines
// where the server user lacks DDL rights.
type MigrateCmd struct {
	Config string `kong:"short='c',help='Path to HCL config file'"`
}

func (c *MigrateCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Server.LogLevel, false)

	start := time.Now()
	if _, err := store.Open(cfg.DB.Driver, cfg.DB.DSN, logger); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	logger.Info("migrations applied", "took", time.Since(start))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogger(level string, debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	switch {
	case debug:
		logger.SetLevel(log.DebugLevel)
	default:
		if parsed, err := log.ParseLevel(level); err == nil {
			logger.SetLevel(parsed)
		}
	}
	return logger
}
