//go:build !no_script

package script

import (
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"laser-go-control/internal/laser"
)

// fakeDevice records commands and serves scripted readings.
type fakeDevice struct {
	mu        sync.Mutex
	connected bool
	enabled   bool
	calls     []string

	code    int // device error code for every command
	message string
	fault   bool // every command reports a transport fault

	current     float64
	power       float64
	temperature float64
}

func (d *fakeDevice) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *fakeDevice) commandResult() laser.CommandResult {
	return laser.CommandResult{Code: d.code, Message: d.message, TransportFault: d.fault}
}

func (d *fakeDevice) Connect(resource string) error {
	d.record("connect " + resource)
	d.connected = true
	return nil
}

func (d *fakeDevice) Disconnect() error {
	d.record("disconnect")
	d.connected = false
	return nil
}

func (d *fakeDevice) IsConnected() bool { return d.connected }

func (d *fakeDevice) SetCurrent(ma int) laser.CommandResult {
	d.record("set_current " + strconv.Itoa(ma))
	return d.commandResult()
}

func (d *fakeDevice) SetEnabled(on bool) laser.CommandResult {
	if on {
		d.record("enable")
	} else {
		d.record("disable")
	}
	if d.code == 0 && !d.fault {
		d.enabled = on
	}
	return d.commandResult()
}

func (d *fakeDevice) SetTECSetpoint(float64) laser.CommandResult {
	d.record("set_tec")
	return d.commandResult()
}

func (d *fakeDevice) SetPWMDutyCycle(float64) laser.CommandResult {
	d.record("set_pwm")
	return d.commandResult()
}

func (d *fakeDevice) Current() laser.FloatResult {
	return laser.FloatResult{Value: d.current, Code: d.code, Message: d.message, TransportFault: d.fault}
}

func (d *fakeDevice) Power() laser.FloatResult {
	return laser.FloatResult{Value: d.power, Code: d.code, Message: d.message, TransportFault: d.fault}
}

func (d *fakeDevice) Temperature() laser.FloatResult {
	return laser.FloatResult{Value: d.temperature, Code: d.code, Message: d.message, TransportFault: d.fault}
}

func (d *fakeDevice) Enabled() laser.BoolResult {
	return laser.BoolResult{Value: d.enabled, Code: d.code, Message: d.message, TransportFault: d.fault}
}

func (d *fakeDevice) Snapshot() laser.DeviceInfo {
	info := laser.DefaultDeviceInfo()
	info.IsConnected = d.connected
	info.IsEnabled = d.enabled
	info.CurrentMilliamps = d.current
	return info
}

func (d *fakeDevice) RestoreFactorySettings() laser.CommandResult {
	d.record("restore_factory")
	return d.commandResult()
}

func (d *fakeDevice) SaveParameters() laser.CommandResult {
	d.record("save_params")
	return d.commandResult()
}


func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEngine(t *testing.T, dev *fakeDevice) *Engine {
	t.Helper()
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(dev, mgr, testLogger(), 5*time.Second)
}

func TestRunRampMacro(t *testing.T) {
	dev := &fakeDevice{connected: true, message: "NO_ERROR"}
	e := newTestEngine(t, dev)

	result := e.RunLuaCode(`
		laser.enable()
		for ma = 100, 300, 100 do
			laser.set_current(ma)
		end
		laser.log("ramp done")
	`)

	if !result.OK {
		t.Fatalf("macro failed: %s", result.Error)
	}
	if len(result.Logs) != 1 || result.Logs[0] != "ramp done" {
		t.Errorf("logs = %v", result.Logs)
	}
	dev.mu.Lock()
	calls := dev.calls
	dev.mu.Unlock()
	if len(calls) != 4 || calls[0] != "enable" {
		t.Errorf("calls = %v", calls)
	}
}

func TestMacroSeesDeviceErrorCode(t *testing.T) {
	dev := &fakeDevice{connected: true, code: -222, message: "Data out of range"}
	e := newTestEngine(t, dev)

	result := e.RunLuaCode(`
		local code, msg = laser.set_current(9999)
		if code ~= 0 then
			laser.log("rejected: " .. msg)
			return
		end
		laser.log("accepted")
	`)

	if !result.OK {
		t.Fatalf("macro failed: %s", result.Error)
	}
	if len(result.Logs) != 1 || result.Logs[0] != "rejected: Data out of range" {
		t.Errorf("logs = %v", result.Logs)
	}
}

func TestTransportFaultAbortsMacro(t *testing.T) {
	dev := &fakeDevice{connected: true, fault: true, message: "serial write: input/output error"}
	e := newTestEngine(t, dev)

	result := e.RunLuaCode(`
		laser.set_current(100)
		laser.log("never reached")
	`)

	if result.OK {
		t.Fatal("macro succeeded against a dead link")
	}
	if !strings.Contains(result.Error, "transport fault") {
		t.Errorf("error = %q", result.Error)
	}
	if len(result.Logs) != 0 {
		t.Errorf("logs after fault = %v", result.Logs)
	}
}

func TestMacroReadsNaNAsNil(t *testing.T) {
	dev := &fakeDevice{connected: true, power: math.NaN()}
	e := newTestEngine(t, dev)

	result := e.RunLuaCode(`
		if laser.power() == nil then
			laser.log("no reading")
		end
	`)

	if !result.OK {
		t.Fatalf("macro failed: %s", result.Error)
	}
	if len(result.Logs) != 1 || result.Logs[0] != "no reading" {
		t.Errorf("logs = %v", result.Logs)
	}
}

func TestMacroTimeout(t *testing.T) {
	dev := &fakeDevice{connected: true}
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(dev, mgr, testLogger(), 50*time.Millisecond)

	start := time.Now()
	result := e.RunLuaCode(`laser.sleep(30)`)
	if result.OK {
		t.Fatal("macro outlived its deadline")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout not enforced")
	}
}

func TestSandboxBlocksOS(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(t, dev)

	result := e.RunLuaCode(`os.execute("true")`)
	if result.OK {
		t.Fatal("sandboxed macro reached os.execute")
	}
}

func TestRunScriptFromManager(t *testing.T) {
	dev := &fakeDevice{connected: true}
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(dev, mgr, testLogger(), 5*time.Second)

	saved, err := mgr.Save(&Script{
		Meta:    ScriptMeta{Name: "Factory Reset"},
		LuaCode: "laser.restore_factory()\nlaser.save_params()",
	})
	if err != nil {
		t.Fatal(err)
	}

	result := e.RunScript(saved.ID)
	if !result.OK {
		t.Fatalf("macro failed: %s", result.Error)
	}
	dev.mu.Lock()
	calls := dev.calls
	dev.mu.Unlock()
	if len(calls) != 2 || calls[0] != "restore_factory" || calls[1] != "save_params" {
		t.Errorf("calls = %v", calls)
	}
}

func TestRunScriptMissing(t *testing.T) {
	e := newTestEngine(t, &fakeDevice{})

	result := e.RunScript("nope")
	if result.OK {
		t.Fatal("missing macro ran")
	}
}
