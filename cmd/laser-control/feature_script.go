//go:build !no_script

package main

import (
	"log/slog"
	"time"

	"laser-go-control/internal/laser"
	"laser-go-control/internal/script"
	"laser-go-control/internal/web"
)

func initMacros(ctrl *laser.Controller, cfg *Config, logger *slog.Logger) []web.ServerOption {
	mgr, err := script.NewManager(cfg.MacrosDir)
	if err != nil {
		logger.Error("create macro manager", "err", err)
		return nil
	}

	timeout := 60 * time.Second
	if d, err := time.ParseDuration(cfg.MacroTimeout); err == nil {
		timeout = d
	} else {
		logger.Warn("invalid macro_timeout, using default", "value", cfg.MacroTimeout, "default", timeout)
	}

	engine := script.NewEngine(ctrl, mgr, logger, timeout)
	return []web.ServerOption{web.WithMacros(engine, mgr)}
}
