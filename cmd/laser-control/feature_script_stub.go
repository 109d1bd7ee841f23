//go:build no_script

package main

import (
	"log/slog"

	"laser-go-control/internal/laser"
	"laser-go-control/internal/web"
)

func initMacros(_ *laser.Controller, _ *Config, _ *slog.Logger) []web.ServerOption {
	return nil
}
