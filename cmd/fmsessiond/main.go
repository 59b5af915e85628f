// Command fmsessiond runs the station player and the simulcast streamer
// behind an HTTP control API.
// Run with --mock to use the built-in engine simulators (no engine helper
// required).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/feedfm/fmsession/internal/api"
	"github.com/feedfm/fmsession/internal/auth"
	"github.com/feedfm/fmsession/internal/config"
	"github.com/feedfm/fmsession/internal/engine"
	"github.com/feedfm/fmsession/internal/events"
	"github.com/feedfm/fmsession/internal/identity"
	"github.com/feedfm/fmsession/internal/metrics"
	"github.com/feedfm/fmsession/internal/models"
	"github.com/feedfm/fmsession/internal/session"
	"github.com/feedfm/fmsession/internal/streamer"
	"github.com/feedfm/fmsession/internal/zeroconf"
)

func main() {
	var (
		mock       = flag.Bool("mock", false, "use the built-in engine simulators")
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		cfgDir     = flag.String("config-dir", "", "config directory (default: ~/.config/fmsession)")
		debug      = flag.Bool("debug", false, "enable debug logging")
		engineCmd  = flag.String("engine-cmd", "", "engine helper command line (overrides settings.json engine_command)")
		noZeroconf = flag.Bool("no-zeroconf", false, "do not advertise the API over mDNS")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Resolve config directory
	if *cfgDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgDir = filepath.Join(home, ".config", "fmsession")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}

	settings, err := config.LoadSettings(*cfgDir)
	if err != nil {
		slog.Error("invalid settings", "path", config.SettingsPath(*cfgDir), "err", err)
		os.Exit(1)
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := config.NewJSONStore(*cfgDir)
	m := metrics.New()
	bus := events.NewBus()
	m.GaugeFunc("sse_subscribers", "Connected SSE clients.", func() float64 {
		return float64(bus.SubscriberCount())
	})

	caps := engine.Capabilities{AudioSession: settings.AudioSession}

	// Engines
	var (
		newEngine  func() engine.Engine
		streamEng  engine.StreamerEngine
		engineName string

		// The helper starts once the sessions exist to be initialized
		// again after a restart.
		startEngine     = func() error { return nil }
		onEngineRestart func()
	)
	if *mock {
		slog.Info("using engine simulators")
		engineName = "simulator"
		newEngine = func() engine.Engine {
			return engine.NewSimulator(engine.SimulatorOptions{Capabilities: caps})
		}
		sim := engine.NewStreamerSimulator()
		go sim.Run(ctx)
		streamEng = sim
	} else {
		argv := settings.EngineCommand
		if *engineCmd != "" {
			argv = strings.Fields(*engineCmd)
		}
		if len(argv) == 0 {
			slog.Error("no engine helper configured; pass --engine-cmd, set engine_command, or use --mock")
			os.Exit(1)
		}
		engineName = filepath.Base(argv[0])
		bridge := engine.NewBridge(engine.BridgeOptions{
			Capabilities: caps,
			OnReattach:   func() { onEngineRestart() },
		})
		sup := bridge.Supervise(argv)
		startEngine = func() error {
			if err := sup.Start(ctx); err != nil {
				return fmt.Errorf("engine helper %s: %w", argv[0], err)
			}
			return nil
		}
		defer func() {
			if err := sup.Stop(); err != nil {
				slog.Warn("engine helper stop error", "err", err)
			}
		}()
		m.GaugeFunc("engine_helper_restarts", "Engine helper restarts since start.", func() float64 {
			return float64(sup.Restarts())
		})
		newEngine = func() engine.Engine { return bridge.Player() }
		streamEng = bridge.Streamer()
	}

	// Station player
	playerCfg := session.Config{
		Token:                settings.Token,
		Secret:               settings.Secret,
		HandleRemoteCommands: settings.HandleRemoteCommands,
		Store:                store,
		Metrics:              m,
		LogEventRate:         settings.LogEventRate,
		LogEventBurst:        settings.LogEventBurst,
	}
	svc := session.NewService(newEngine)

	// stopRelay detaches the current player from the bus. Each player
	// lifetime gets its own relay.
	var (
		relayMu   sync.Mutex
		stopRelay = func() {}
	)
	start := func() error {
		p, err := svc.Initialize(ctx, playerCfg)
		if err != nil {
			return err
		}
		relayMu.Lock()
		stopRelay()
		stopRelay = events.Relay(p.Registry(), bus, events.SourcePlayer, func(env *events.Envelope) {
			s := p.Snapshot()
			env.Player = &s
		})
		relayMu.Unlock()
		if settings.AudioSession {
			if err := p.EnableAudioSession(true); err != nil {
				slog.Warn("enable audio session failed", "err", err)
			}
		}
		p.WhenAvailable(func(available bool) {
			slog.Info("player availability resolved", "available", available)
		})
		return nil
	}
	if err := start(); err != nil {
		slog.Error("player initialization failed", "err", err)
		os.Exit(1)
	}
	reinitialize := func(context.Context) error {
		slog.Info("reinitializing player")
		svc.Shutdown()
		return start()
	}

	// Streamer
	st := streamer.New(streamEng, streamer.Config{Store: store, Metrics: m})
	go st.Run(ctx)
	events.Relay(st.Registry(), bus, events.SourceStreamer, func(env *events.Envelope) {
		s := st.Snapshot()
		env.Streamer = &s
	})
	rec, err := store.Load()
	if err != nil {
		slog.Warn("failed to load session record", "path", store.Path(), "err", err)
		rec = &models.Persisted{}
	}
	if settings.Volume != nil && rec.Volume == nil {
		applyVolume(svc, st, *settings.Volume)
	}
	streamToken := settings.StreamToken
	if streamToken == "" {
		streamToken = rec.StreamToken
	}
	if streamToken != "" {
		if settings.ConnectOnStart {
			err = st.Connect(streamToken)
		} else {
			err = st.SwitchStream(streamToken)
		}
		if err != nil {
			slog.Warn("failed to bind stream", "err", err)
		}
	}

	// A restarted helper starts with no sessions of its own.
	onEngineRestart = func() {
		slog.Warn("engine helper restarted, initializing sessions again")
		if err := reinitialize(ctx); err != nil {
			slog.Error("player reinitialization failed", "err", err)
		}
		if err := st.Rebind(); err != nil {
			slog.Warn("stream rebind failed", "err", err)
		}
	}
	if err := startEngine(); err != nil {
		slog.Error("engine failed to start", "err", err)
		os.Exit(1)
	}

	// Auth service, reloaded with settings.json
	authSvc := auth.NewService(settings.APIKeys)
	watcher, err := config.Watch(*cfgDir, func(s config.Settings) {
		authSvc.SetKeys(s.APIKeys)
		if s.Volume != nil {
			applyVolume(svc, st, *s.Volume)
		}
		slog.Info("settings reloaded", "api_keys", len(s.APIKeys))
	})
	if err != nil {
		slog.Warn("settings watch disabled", "err", err)
	} else {
		defer watcher.Close()
	}

	id := identity.Get(*cfgDir)
	info := models.Info{Hostname: id.Hostname, Version: id.Version, Engine: engineName}

	// Zeroconf mDNS registration
	if !*noZeroconf {
		port := 8080
		if parts := strings.SplitN(*addr, ":", 2); len(parts) == 2 && parts[1] != "" {
			if p, err := strconv.Atoi(parts[1]); err == nil {
				port = p
			}
		}
		zc := zeroconf.New(id.Hostname, port, "version="+id.Version, "engine="+engineName)
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	// HTTP server
	router := api.NewRouter(api.Deps{
		Player: func() (api.Player, error) {
			p, err := svc.Player()
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		Streamer:     st,
		Bus:          bus,
		Auth:         authSvc,
		Info:         func() models.Info { return info },
		Metrics:      m.Handler(),
		Reinitialize: reinitialize,
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("fmsessiond listening", "addr", *addr, "engine", engineName, "config", *cfgDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	// Graceful HTTP shutdown
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	svc.Shutdown()
	st.Close()

	// Flush pending session writes
	if err := store.Flush(); err != nil {
		slog.Warn("failed to flush session record", "err", err)
	}

	slog.Info("shutdown complete")
}

// applyVolume sets v on the player, if one is running, and on the streamer.
func applyVolume(svc *session.Service, st *streamer.Streamer, v float64) {
	if p, err := svc.Player(); err == nil {
		if err := p.SetVolume(v); err != nil {
			slog.Warn("player volume not applied", "err", err)
		}
	}
	if err := st.SetVolume(v); err != nil {
		slog.Warn("streamer volume not applied", "err", err)
	}
}
