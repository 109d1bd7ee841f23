//go:build no_script

package script

import (
	"log/slog"
	"time"

	"laser-go-control/internal/laser"
)

// ScriptMeta holds user-editable metadata for a macro.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Script represents a single macro stored on disk.
type Script struct {
	ID       string     `json:"id"`
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"`
	FilePath string     `json:"-"`
}

// RunResult is the result of a one-shot macro execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// Device is the controller surface exposed to macros.
type Device interface {
	Connect(resource string) error
	Disconnect() error
	IsConnected() bool
	SetCurrent(milliamps int) laser.CommandResult
	SetEnabled(on bool) laser.CommandResult
	SetTECSetpoint(celsius float64) laser.CommandResult
	SetPWMDutyCycle(percent float64) laser.CommandResult
	Current() laser.FloatResult
	Power() laser.FloatResult
	Temperature() laser.FloatResult
	Enabled() laser.BoolResult
	Snapshot() laser.DeviceInfo
	RestoreFactorySettings() laser.CommandResult
	SaveParameters() laser.CommandResult
}

// Manager is a no-op stub when macros are disabled.
type Manager struct{}

// NewManager returns nil manager when macros are disabled.
func NewManager(_ string) (*Manager, error) { return nil, nil }

// List returns nil.
func (m *Manager) List() ([]*Script, error) { return nil, nil }

// Get returns nil.
func (m *Manager) Get(_ string) (*Script, error) { return nil, nil }

// Save returns the macro unchanged.
func (m *Manager) Save(s *Script) (*Script, error) { return s, nil }

// Delete is a no-op.
func (m *Manager) Delete(_ string) error { return nil }

// Engine is a no-op stub when macros are disabled.
type Engine struct{}

// NewEngine returns a no-op engine when macros are disabled.
func NewEngine(_ Device, _ *Manager, _ *slog.Logger, _ time.Duration) *Engine {
	return &Engine{}
}

// RunScript returns a stub result.
func (e *Engine) RunScript(_ string) *RunResult {
	return &RunResult{OK: false, Error: "macros disabled"}
}

// RunLuaCode returns a stub result.
func (e *Engine) RunLuaCode(_ string) *RunResult {
	return &RunResult{OK: false, Error: "macros disabled"}
}
