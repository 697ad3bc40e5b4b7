package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/brickline/brickline/internal/ble"
	"github.com/brickline/brickline/internal/config"
	"github.com/brickline/brickline/internal/device"
	"github.com/brickline/brickline/internal/hub"
	"github.com/brickline/brickline/internal/relay"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/brickline/config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Telemetry relay
	var relaySrv *relay.Server
	if cfg.Relay.Enabled {
		relaySrv = relay.NewServer(logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relaySrv.Run(ctx, cfg.Relay.Listen); err != nil {
				logger.Error("relay stopped", "error", err)
			}
		}()
	}

	// Build hubs and their declared peripherals
	registry := hub.NewRegistry()
	for _, hc := range cfg.Hubs {
		h, err := buildHub(hc, logger, relaySrv)
		if err != nil {
			log.Fatalf("hub %q: %v", hc.Name, err)
		}
		if err := registry.Add(h); err != nil {
			log.Fatalf("hub %q: %v", hc.Name, err)
		}
	}

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	// Connect each hub and run its protocol session
	adapter := ble.NewNativeAdapter()
	if err := adapter.Enable(); err != nil {
		log.Fatalf("ble: enable adapter: %v", err)
	}

	for i, hc := range cfg.Hubs {
		h, _ := registry.Hub(hc.Name)
		kind := h.Kind()
		session := ble.NewSession(adapter, hc.Name, kind.BLEName, hc.Address,
			ble.SessionOptions{Logger: logger})
		if err := session.Connect(ctx); err != nil {
			log.Fatalf("hub %q: %v", hc.Name, err)
		}
		defer session.Close()

		h.SetTransport(session)
		if err := session.Subscribe(h.HandleNotification); err != nil {
			log.Fatalf("hub %q: subscribe: %v", hc.Name, err)
		}

		hubCtx, hubCancel := context.WithCancel(ctx)
		defer hubCancel()
		session.OnDisconnect(func() {
			logger.Warn("hub disconnected", "hub", hc.Name)
			hubCancel()
		})

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := h.Run(hubCtx); err != nil && hubCtx.Err() == nil {
				logger.Error("hub session ended", "hub", cfg.Hubs[i].Name, "error", err)
			}
		}(i)
	}

	logger.Info("running", "hubs", len(cfg.Hubs))
	<-ctx.Done()
	wg.Wait()
	logger.Info("goodbye")
}

// buildHub constructs a hub engine and attaches its declared peripherals.
func buildHub(hc config.HubConfig, logger *slog.Logger, relaySrv *relay.Server) (*hub.Hub, error) {
	kind, err := hub.KindByName(hc.Kind)
	if err != nil {
		return nil, err
	}
	h := hub.New(hc.Name, kind, hub.Options{
		QueryPortInfo: hc.QueryPortInfo,
		Logger:        logger,
	})
	if relaySrv != nil {
		h.SetEventSink(relaySrv.Publish)
	}

	for _, pc := range hc.Peripherals {
		decl := hub.Declaration{
			Type: pc.Type,
			Name: pc.Name,
			Port: pc.Port,
		}
		for _, cc := range pc.Capabilities {
			decl.Capabilities = append(decl.Capabilities,
				hub.CapabilityRequest{Name: cc.Name, Delta: cc.Delta})
		}
		if len(decl.Capabilities) > 0 {
			decl.OnChange = logChange(logger, hc.Name)
		}

		profile, err := device.Lookup(pc.Type)
		if err != nil {
			return nil, err
		}
		if profile.Motor {
			if _, err := h.AttachMotor(decl); err != nil {
				return nil, err
			}
		} else if _, err := h.Attach(decl); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// logChange is the default sensor handler when running from config alone:
// it logs every decoded reading. Programs embedding the hub package install
// their own handlers instead.
func logChange(logger *slog.Logger, hubName string) func(*hub.Peripheral) {
	return func(p *hub.Peripheral) {
		logger.Info("reading", "hub", hubName, "peripheral", p.Name())
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// First run: write a starter config and ask the user to fill it in.
	written, err := config.WriteDefault()
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no config file found; starter config written to %s", written)
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== brickline ===")
	for _, hc := range cfg.Hubs {
		fmt.Printf("  Hub:   %s (%s, %d peripherals)\n", hc.Name, hc.Kind, len(hc.Peripherals))
	}
	if cfg.Relay.Enabled {
		fmt.Printf("  Relay: ws://%s\n", cfg.Relay.Listen)
	}
	fmt.Printf("  Log:   %s\n", cfg.LogLevel)
	fmt.Println("=================")
}
