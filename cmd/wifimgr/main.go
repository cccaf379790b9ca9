// Command wifimgr is the WiFi provisioning and connection daemon.
// Run with --mock to use a simulated radio (no wpa_supplicant required).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/netplume/wifimgr-go/internal/api"
	"github.com/netplume/wifimgr-go/internal/auth"
	"github.com/netplume/wifimgr-go/internal/events"
	"github.com/netplume/wifimgr-go/internal/hardware"
	"github.com/netplume/wifimgr-go/internal/identity"
	"github.com/netplume/wifimgr-go/internal/maintenance"
	"github.com/netplume/wifimgr-go/internal/manager"
	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/radio"
	"github.com/netplume/wifimgr-go/internal/store"
	"github.com/netplume/wifimgr-go/internal/zeroconf"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "bootstrap config file (YAML)")
		mock    = flag.Bool("mock", false, "use the mock radio driver (no radio hardware required)")
		addr    = flag.String("addr", "", "HTTP listen address (overrides config)")
		cfgDir  = flag.String("config-dir", "", "settings directory (default: ~/.config/wifimgr)")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		slog.Error("config load failed", "path", *cfgPath, "err", err)
		os.Exit(1)
	}
	if *mock {
		cfg.Radio.Backend = "mock"
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *cfgDir != "" {
		cfg.ConfigDir = *cfgDir
	}

	// Resolve settings directory
	if cfg.ConfigDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		cfg.ConfigDir = filepath.Join(home, ".config", "wifimgr")
	}
	if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
		slog.Error("cannot create settings directory", "path", cfg.ConfigDir, "err", err)
		os.Exit(1)
	}

	// Graceful shutdown context; also the restart hook for the system routes.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Radio driver
	var drv radio.Driver
	switch cfg.Radio.Backend {
	case "mock":
		slog.Info("using mock radio driver")
		drv = radio.NewMock()
	case "atmodem":
		slog.Info("using AT-modem radio driver",
			"port", cfg.Radio.SerialPort, "baud", cfg.Radio.BaudRate)
		drv = radio.NewATModem(cfg.Radio.SerialPort, cfg.Radio.BaudRate)
	case "dbus", "":
		slog.Info("using wpa_supplicant D-Bus radio driver", "interface", cfg.Radio.Interface)
		drv = radio.NewDBus(cfg.Radio.Interface)
	default:
		slog.Error("unknown radio backend", "backend", cfg.Radio.Backend)
		os.Exit(1)
	}
	if err := drv.Init(ctx); err != nil {
		slog.Error("radio initialization failed", "err", err)
		os.Exit(1)
	}

	// Settings store, event bus, connection manager
	st := store.NewJSONStore(cfg.ConfigDir)
	bus := events.NewBus()
	mgr, err := manager.New(drv, st, bus)
	if err != nil {
		slog.Error("manager initialization failed", "err", err)
		os.Exit(1)
	}

	// Register declared portal parameters, then apply persisted values.
	for _, decl := range cfg.Params {
		p, err := decl.toParameter()
		if err != nil {
			slog.Error("bad parameter declaration", "err", err)
			os.Exit(1)
		}
		if appErr := mgr.Params().Add(p); appErr != nil {
			slog.Error("parameter registration failed", "key", p.Key, "err", appErr)
			os.Exit(1)
		}
	}
	if err := mgr.LoadParams(); err != nil {
		slog.Warn("could not apply persisted parameter values", "err", err)
	}

	// Auth service
	authSvc, err := auth.NewService(cfg.ConfigDir)
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()

	// Zeroconf mDNS registration, refreshed on status changes
	port := 8080
	if parts := strings.SplitN(cfg.Listen, ":", 2); len(parts) == 2 && parts[1] != "" {
		if p, err := strconv.Atoi(parts[1]); err == nil {
			port = p
		}
	}
	zc := zeroconf.New(identity.Hostname(), port)
	go func() {
		if err := zc.Start(ctx); err != nil {
			slog.Warn("zeroconf failed", "err", err)
		}
	}()
	go func() {
		ch := bus.Subscribe("zeroconf")
		defer bus.Unsubscribe("zeroconf")
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Type == "status" {
					zc.SetStatus(ev.Status)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Connectivity watchdog and daily settings backup
	wd := maintenance.NewWatchdog(
		func() bool { return mgr.Status() == models.StatusConnected },
		func(online bool) {
			bus.Publish(models.Event{Type: "online", Status: mgr.Status(), Online: &online})
		},
	)
	go wd.Run(ctx)
	go maintenance.NewBackup(cfg.ConfigDir).Run(ctx)

	// Factory-reset button
	if cfg.ResetPin != "" {
		btn := hardware.NewResetButton(cfg.ResetPin, func() {
			slog.Warn("reset button held: erasing credentials and restarting")
			if err := mgr.EraseConfig(false); err != nil {
				slog.Error("erase failed", "err", err)
			}
			cancel()
		})
		go func() {
			if err := btn.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("reset button watcher failed", "err", err)
			}
		}()
	}

	// HTTP server. Restarts are delegated to the process supervisor: the
	// system routes cancel the root context and the daemon exits cleanly.
	router := api.NewRouter(mgr, authSvc, bus, cancel, cfg.ConfigDir)
	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		slog.Info("wifimgr listening", "addr", cfg.Listen,
			"backend", cfg.Radio.Backend, "config", cfg.ConfigDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Provisioning flow: join the stored network or raise the portal.
	apSSID := cfg.AP.SSID
	if apSSID == "" {
		apSSID = identity.DefaultAPSSID(cfg.Product)
	}
	go func() {
		if mgr.AutoConnect(ctx, apSSID, cfg.AP.Secret) {
			slog.Info("provisioning complete", "ip", mgr.IP())
		} else {
			slog.Warn("provisioning did not complete; portal remains reachable")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	mgr.AbortPortal()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	// Driver close ends the event stream; the manager drains and stops.
	if err := drv.Close(); err != nil {
		slog.Warn("radio close error", "err", err)
	}
	mgr.Close()

	if err := st.Flush(); err != nil {
		slog.Warn("failed to flush settings", "err", err)
	}

	slog.Info("shutdown complete")
}
