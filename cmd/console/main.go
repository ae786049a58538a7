package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusattend/console/internal/api"
	"github.com/campusattend/console/internal/client"
	"github.com/campusattend/console/internal/config"
	"github.com/campusattend/console/internal/console"
	"github.com/campusattend/console/internal/metrics"
	"github.com/campusattend/console/internal/probe"
	"github.com/campusattend/console/internal/session"
	"github.com/campusattend/console/internal/version"
	"github.com/campusattend/console/internal/webui"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "/config/console.yaml", "Path to console configuration")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Create log buffer for web UI (captures last 1000 log entries)
	logBuffer := webui.NewLogBuffer(1000)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logLevelParsed, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logLevelParsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevelParsed)

	// Write to both stdout and the log buffer
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	logger := zerolog.New(multiWriter).With().
		Timestamp().
		Str("version", version.GetVersion()).
		Str("commit", version.GetCommit()).
		Logger()

	logger.Info().Msg("Starting attendance console")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("config_path", *configPath).
			Msg("Failed to load configuration")
	}

	logger.Info().
		Str("backend", cfg.Backend.BaseURL).
		Dur("devices_interval", cfg.Polling.DevicesInterval).
		Bool("probe", cfg.Probe.Enabled).
		Msg("Configuration loaded")

	m := metrics.New()

	backend, err := client.New(client.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		Headers:   cfg.Backend.Headers,
		UserAgent: version.UserAgent(),
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create backend client")
	}
	backend.SetMetrics(m)

	opts := console.Options{
		Config:  cfg,
		Client:  backend,
		Metrics: m,
	}
	// Left unset when disabled so pings fall back to marking devices online.
	if cfg.Probe.Enabled {
		opts.Prober = probe.New(probe.Config{
			Port:        cfg.Probe.Port,
			Username:    cfg.Probe.Username,
			Password:    cfg.ProbePassword(),
			DialTimeout: cfg.Probe.DialTimeout,
			TLS: &probe.TLSConfig{
				Enabled:            cfg.Probe.TLS.Enabled,
				InsecureSkipVerify: cfg.Probe.TLS.InsecureSkipVerify,
				ServerName:         cfg.Probe.TLS.ServerName,
				CAFile:             cfg.Probe.TLS.CAFile,
				CertFile:           cfg.Probe.TLS.CertFile,
				KeyFile:            cfg.Probe.TLS.KeyFile,
			},
		}, logger)
	}

	app, err := console.New(opts, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create console")
	}

	sess := session.New(
		session.Operator{Email: cfg.Session.Email, Role: cfg.Session.Role},
		cfg.Session.RequiredRole,
		cfg.Session.LoginURL,
		backend,
		logger,
	)
	if err := sess.Authorize(); err != nil {
		logger.Warn().
			Err(err).
			Str("email", cfg.Session.Email).
			Str("required_role", cfg.Session.RequiredRole).
			Msg("Operator may not use the console, pages will be denied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Start(ctx)

	apiServer := api.NewServer(app, sess, logger, cfg.Server.Port)
	apiServer.SetLogBuffer(logBuffer)
	apiServer.SetMetrics(m)
	apiServer.SetVersion(version.GetVersion(), version.GetCommit(), version.GetBuildDate())

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().
				Err(err).
				Msg("API server error")
		}
	}()

	logger.Info().
		Str("port", cfg.Server.Port).
		Msg("Web UI available")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info().Msg("Console running, press Ctrl+C to stop")

	<-sigChan
	logger.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping web server")
	}

	cancel()
	app.Close()
	logger.Info().Msg("Console stopped")
}
