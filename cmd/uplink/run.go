package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/netdash/uplink/internal/config"
	"github.com/netdash/uplink/internal/feed"
	"github.com/netdash/uplink/internal/logging"
	"github.com/netdash/uplink/internal/notify"
	"github.com/netdash/uplink/internal/reconnect"
	"github.com/netdash/uplink/internal/server"
	"github.com/netdash/uplink/internal/session"
)

func runDaemon(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	_ = fs.Parse(args)

	if *showVersion {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if level, err := logging.ParseLevel(cfg.LogLevel); err == nil {
		logging.SetLevel(level)
	} else {
		slog.Warn("invalid log level, keeping default", "log_level", cfg.LogLevel)
	}

	logging.PrintBanner(version, cfg.BackendURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check if we already have credentials from a previous registration.
	state, err := cfg.LoadState()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	if state == nil || state.AuthToken == "" {
		hostname, _ := os.Hostname()
		result, err := session.Register(ctx, cfg.BackendURL, hostname, runtime.GOOS, runtime.GOARCH, version)
		if err != nil {
			return fmt.Errorf("registration: %w", err)
		}

		state = &config.State{
			DeviceID:  result.DeviceID,
			AuthToken: result.AuthToken,
		}
		if err := cfg.SaveState(state); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		slog.Info("credentials saved", "path", cfg.StatePath())
	}

	slog.Info("starting uplink",
		"device_id", state.DeviceID,
		"backend", cfg.BackendURL,
		"listen", cfg.ListenAddr,
	)

	center := notify.New(notify.Options{
		Capacity:    cfg.NotificationCapacity,
		DedupWindow: time.Duration(cfg.DedupWindowMillis) * time.Millisecond,
	})
	go center.Run(ctx)

	feedSrv := feed.NewServer(center)

	var mgr *reconnect.Manager
	client := session.New(session.Options{
		BackendURL:    cfg.BackendURL,
		DeviceID:      state.DeviceID,
		AuthToken:     state.AuthToken,
		Version:       version,
		HeartbeatIdle: time.Duration(cfg.HeartbeatSeconds) * time.Second,
		Notify:        center,
		OnDisconnect: func(err error) {
			slog.Warn("backend session dropped", "error", err)
			feedSrv.SetStatus(reconnect.StatusDisconnected)
			mgr.Start(ctx)
		},
	})
	defer client.Close()

	mgr = reconnect.New(reconnect.Config{
		Connect:        client.Connect,
		MaxAttempts:    cfg.MaxAttempts,
		OnStatusChange: feedSrv.SetStatus,
		Notify:         center,
	})
	defer mgr.Stop()

	mgr.Start(ctx)

	return server.New(cfg.ListenAddr, center, feedSrv).Run(ctx)
}
