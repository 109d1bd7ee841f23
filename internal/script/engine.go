//go:build !no_script

// Package script runs operator macros: short Lua programs that sequence
// laser commands (current ramps, warm-up waits, factory resets) through
// the controller's synchronized command channel. Macros are one-shot:
// each run gets a fresh sandboxed VM with a hard deadline, and the VM is
// destroyed when the macro returns.
package script

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"laser-go-control/internal/laser"

	lua "github.com/yuin/gopher-lua"
)

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

// Engine executes macros against a laser device.
type Engine struct {
	dev     Device
	manager *Manager
	logger  *slog.Logger
	timeout time.Duration
}

// NewEngine creates a new macro engine. timeout caps the run time of a
// single macro; zero means the 60s default.
func NewEngine(dev Device, mgr *Manager, logger *slog.Logger, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{
		dev:     dev,
		manager: mgr,
		logger:  logger.With("component", "script"),
		timeout: timeout,
	}
}

// RunScript executes a stored macro by ID.
func (e *Engine) RunScript(id string) *RunResult {
	start := time.Now()

	s, err := e.manager.Get(id)
	if err != nil {
		return &RunResult{OK: false, Error: "macro not found: " + err.Error(), Duration: time.Since(start).String()}
	}

	return e.RunLuaCode(s.LuaCode)
}

// RunLuaCode executes arbitrary Lua code in a temporary sandboxed VM.
func (e *Engine) RunLuaCode(code string) *RunResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	defer L.Close()

	// Sandbox: remove dangerous libs and functions
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("debug", lua.LNil)
	L.SetGlobal("package", lua.LNil)

	L.SetContext(ctx)

	var logs []string
	var logMu sync.Mutex
	logFn := func(msg string) {
		logMu.Lock()
		logs = append(logs, msg)
		logMu.Unlock()
		e.logger.Info("macro log", "msg", msg)
	}

	registerLaserModule(L, e, ctx, logFn)

	if err := L.DoString(code); err != nil {
		dur := time.Since(start)
		errStr := err.Error()
		if strings.Contains(errStr, "context deadline exceeded") {
			errStr = "timeout (" + e.timeout.String() + ")"
		}
		e.logger.Warn("macro error", "err", errStr)
		return &RunResult{OK: false, Error: errStr, Logs: logs, Duration: dur.String()}
	}

	return &RunResult{OK: true, Logs: logs, Duration: time.Since(start).String()}
}
