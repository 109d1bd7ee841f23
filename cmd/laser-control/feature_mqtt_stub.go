//go:build no_mqtt

package main

import (
	"log/slog"

	"laser-go-control/internal/laser"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *laser.Controller, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
