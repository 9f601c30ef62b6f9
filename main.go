package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"i4.energy/across/wifigw/httpd"
	"i4.energy/across/wifigw/ipd"
	"i4.energy/across/wifigw/modem"
	"i4.energy/across/wifigw/ssdp"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port of the Wi-Fi modem, or \"auto\"")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("ssid", "", "Access point to join")
	flag.String("password-file", "", "File holding the access point password")
	flag.Int("listen-port", 80, "TCP port served by the modem")
	flag.Duration("poll-interval", 20*time.Millisecond, "Longest pause between receive passes")
	flag.Bool("discovery", false, "Answer SSDP discovery on a UDP link")
	flag.String("admin-address", "127.0.0.1:9100", "Host address for /metrics and /status, empty to disable")
	flag.Parse()

	config, err := LoadConfig(
		WithDefaults(),
		WithFile(*configPath),
		WithEnv(),
		WithFlags(flag.CommandLine),
		WithSecrets(),
	)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if err := run(config, logger); err != nil {
		logger.Error("Gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run(config *Config, logger *slog.Logger) error {
	modemConfig, err := modem.NewConfigBuilder().
		WithLogger(logger.With("component", "modem")).
		WithNetwork(config.SSID, config.Password).
		WithListenPort(config.ListenPort).
		WithServerTimeout(config.ServerTimeout).
		WithDialer(modem.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		Build()
	if err != nil {
		return fmt.Errorf("create modem config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		return fmt.Errorf("create modem: %w", err)
	}

	var discovery *ssdp.Responder
	if config.Discovery {
		addr, err := m.LocalAddress(ctx)
		if err != nil {
			m.Close()
			return fmt.Errorf("discovery needs the station address: %w", err)
		}
		discovery, err = ssdp.NewResponder(m, DiscoveryLink, ssdp.Device{
			UUID:         config.DeviceUUID,
			FriendlyName: config.FriendlyName,
			DeviceType:   "urn:schemas-upnp-org:device:BinaryLight:1",
			Manufacturer: "i4.energy",
			ModelName:    "wifigw",
			Location:     fmt.Sprintf("http://%s:%d/setup.xml", addr, config.ListenPort),
			MaxAge:       int(config.AnnounceInterval.Seconds()) * 2,
		}, logger)
		if err != nil {
			m.Close()
			return err
		}
	}

	gateway := NewGateway(m, config, discovery, logger)
	app := &Server{
		Logger:    logger.With("component", "server"),
		Switch:    &LogSwitch{Logger: logger.With("component", "switch")},
		Discovery: discovery,
		Snapshot:  gateway.Snapshot,
	}

	router := httpd.NewRouter(httpd.DefaultMaxRoutes)
	if err := app.Routes(router); err != nil {
		m.Close()
		return err
	}
	serverOpts := []httpd.ServerOption{
		httpd.WithLogger(logger),
		httpd.WithBadRequest(config.BadRequest),
	}
	if config.AutoClose {
		serverOpts = append(serverOpts, httpd.WithAutoClose(m))
	}
	web := httpd.NewServer(router, httpd.NewResponder(m, httpd.DefaultArenaSize), serverOpts...)

	links := ipd.NewLinkMux(web)
	if discovery != nil {
		links.Handle(DiscoveryLink, discovery)
	}

	var adminServer *http.Server
	if config.AdminAddress != "" {
		adminServer = &http.Server{
			Addr:              config.AdminAddress,
			Handler:           app,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Starting admin server", "address", adminServer.Addr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Admin server failed", "error", err)
			}
		}()
	}

	logger.Info("Starting Wi-Fi gateway", "serial_port", config.SerialPort, "listen_port", config.ListenPort)
	runErr := gateway.Run(ctx, links)
	logger.Info("Shutting down", "error", runErr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down modem", "error", err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to gracefully shutdown admin server", "error", err)
		}
	}
	return runErr
}
