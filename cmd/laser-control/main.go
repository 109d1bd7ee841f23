package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"laser-go-control/internal/laser"
	"laser-go-control/internal/store"
	"laser-go-control/internal/visa"
	"laser-go-control/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Serial struct {
		Port             string `yaml:"port"`
		Baud             int    `yaml:"baud"`
		Timeout          string `yaml:"timeout"`
		WriteTermination string `yaml:"write_termination"`
		ReadTermination  string `yaml:"read_termination"`
		AutoConnect      bool   `yaml:"auto_connect"`
	} `yaml:"serial"`
	Poll struct {
		Interval string `yaml:"interval"`
	} `yaml:"poll"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	MacrosDir    string `yaml:"macros_dir"`
	MacroTimeout string `yaml:"macro_timeout"`
}

func (c *Config) validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if _, err := time.ParseDuration(c.Serial.Timeout); err != nil {
		return fmt.Errorf("serial.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Poll.Interval); err != nil {
		return fmt.Errorf("poll.interval: %w", err)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	// Create configured logger.
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("laser-control starting", "version", version)

	// Open store
	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Create controller
	timeout, _ := time.ParseDuration(cfg.Serial.Timeout)
	events := laser.NewEventBus(logger)
	ctrl := laser.New(visa.NewSerialManager(), events, laser.Options{
		BaudRate:         cfg.Serial.Baud,
		Timeout:          timeout,
		WriteTermination: cfg.Serial.WriteTermination,
		ReadTermination:  cfg.Serial.ReadTermination,
	}, logger)

	// Connect at startup when configured. Failure here is not fatal: the
	// laser can be plugged in later and connected through the API.
	if resource := startupResource(cfg, db); resource != "" {
		if err := ctrl.Connect(resource); err != nil {
			logger.Warn("startup connect failed", "resource", resource, "err", err)
		}
	}

	// Start snapshot poller
	interval, _ := time.ParseDuration(cfg.Poll.Interval)
	poller := laser.NewPoller(ctrl, interval, logger)
	poller.Start()

	// Macro engine (no-op when built with no_script tag).
	macroWebOpts := initMacros(ctrl, cfg, logger)

	// Start web server
	webOpts := []web.ServerOption{
		web.WithSettings(db),
		web.WithVersion(version),
	}
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, macroWebOpts...)

	webServer, err := web.NewServer(ctrl, logger, webOpts...)
	if err != nil {
		logger.Error("create web server", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(ctrl, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	poller.Stop()
	// Disconnect drives the laser to a safe state before closing the link.
	if err := ctrl.Disconnect(); err != nil {
		logger.Error("disconnect", "err", err)
	}

	logger.Info("goodbye")
}

// startupResource decides what to connect to at startup: an explicitly
// configured port wins, then the last successfully used resource when
// auto-connect is on.
func startupResource(cfg *Config, db store.Store) string {
	if cfg.Serial.Port != "" {
		return cfg.Serial.Port
	}
	if !cfg.Serial.AutoConnect {
		return ""
	}
	settings, err := db.GetSettings()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("read saved settings", "err", err)
		}
		return ""
	}
	return settings.LastResource
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.Timeout == "" {
		cfg.Serial.Timeout = "2s"
	}
	if cfg.Poll.Interval == "" {
		cfg.Poll.Interval = "100ms"
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "laser-control.db"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "laser"
	}
	if cfg.MacrosDir == "" {
		cfg.MacrosDir = "macros"
	}
	if cfg.MacroTimeout == "" {
		cfg.MacroTimeout = "60s"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
