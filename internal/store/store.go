// Package store persists controller settings across restarts.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Settings is the operator-facing state worth surviving a restart: which
// port the laser was on and the last commanded operating parameters.
// Reconnect flows offer these back instead of starting from zero.
type Settings struct {
	LastResource    string    `json:"last_resource"`
	TargetMilliamps int       `json:"target_ma"`
	TECSetpointC    float64   `json:"tec_setpoint_c"`
	PWMDutyCyclePct float64   `json:"pwm_duty_cycle_pct"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store defines the persistence interface.
type Store interface {
	SaveSettings(s *Settings) error
	GetSettings() (*Settings, error)

	// UpdateSettings atomically reads, modifies, and saves the settings in a
	// single transaction. A missing record starts from the zero value.
	UpdateSettings(fn func(s *Settings) error) error

	// Close the store
	Close() error
}
