//go:build !no_script

package script

import (
	"context"
	"math"
	"time"

	"laser-go-control/internal/laser"

	lua "github.com/yuin/gopher-lua"
)

// registerLaserModule registers the `laser` global table in a Lua state.
// Command wrappers return the device error code and message, so macros can
// decide per-step whether to bail out. Transport faults raise a Lua error:
// a macro must never keep sequencing against a dead link.
func registerLaserModule(L *lua.LState, e *Engine, ctx context.Context, logFn func(string)) {
	mod := L.NewTable()

	mod.RawSetString("connect", L.NewFunction(func(L *lua.LState) int {
		resource := L.CheckString(1)
		if err := e.dev.Connect(resource); err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}))

	mod.RawSetString("disconnect", L.NewFunction(func(L *lua.LState) int {
		if err := e.dev.Disconnect(); err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}))

	mod.RawSetString("connected", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(e.dev.IsConnected()))
		return 1
	}))

	mod.RawSetString("set_current", L.NewFunction(func(L *lua.LState) int {
		ma := L.CheckInt(1)
		return pushCommandResult(L, e.dev.SetCurrent(ma))
	}))

	mod.RawSetString("enable", L.NewFunction(func(L *lua.LState) int {
		return pushCommandResult(L, e.dev.SetEnabled(true))
	}))

	mod.RawSetString("disable", L.NewFunction(func(L *lua.LState) int {
		return pushCommandResult(L, e.dev.SetEnabled(false))
	}))

	mod.RawSetString("set_tec", L.NewFunction(func(L *lua.LState) int {
		c := float64(L.CheckNumber(1))
		return pushCommandResult(L, e.dev.SetTECSetpoint(c))
	}))

	mod.RawSetString("set_pwm", L.NewFunction(func(L *lua.LState) int {
		pct := float64(L.CheckNumber(1))
		return pushCommandResult(L, e.dev.SetPWMDutyCycle(pct))
	}))

	mod.RawSetString("current", L.NewFunction(func(L *lua.LState) int {
		return pushFloatResult(L, e.dev.Current())
	}))

	mod.RawSetString("power", L.NewFunction(func(L *lua.LState) int {
		return pushFloatResult(L, e.dev.Power())
	}))

	mod.RawSetString("temperature", L.NewFunction(func(L *lua.LState) int {
		return pushFloatResult(L, e.dev.Temperature())
	}))

	mod.RawSetString("enabled", L.NewFunction(func(L *lua.LState) int {
		res := e.dev.Enabled()
		if res.TransportFault {
			L.RaiseError("transport fault: %s", res.Message)
			return 0
		}
		L.Push(lua.LBool(res.Value))
		return 1
	}))

	mod.RawSetString("snapshot", L.NewFunction(func(L *lua.LState) int {
		info := e.dev.Snapshot()
		t := L.NewTable()
		t.RawSetString("connected", lua.LBool(info.IsConnected))
		t.RawSetString("enabled", lua.LBool(info.IsEnabled))
		t.RawSetString("model", lua.LString(info.Model))
		t.RawSetString("serial", lua.LString(info.SerialNumber))
		t.RawSetString("wavelength", luaFloat(info.Wavelength))
		t.RawSetString("temperature", luaFloat(info.TemperatureC))
		t.RawSetString("current", luaFloat(info.CurrentMilliamps))
		t.RawSetString("target", luaFloat(info.TargetMilliamps))
		t.RawSetString("power", luaFloat(info.PowerMilliwatts))
		L.Push(t)
		return 1
	}))

	mod.RawSetString("restore_factory", L.NewFunction(func(L *lua.LState) int {
		return pushCommandResult(L, e.dev.RestoreFactorySettings())
	}))

	mod.RawSetString("save_params", L.NewFunction(func(L *lua.LState) int {
		return pushCommandResult(L, e.dev.SaveParameters())
	}))

	mod.RawSetString("sleep", L.NewFunction(func(L *lua.LState) int {
		seconds := float64(L.CheckNumber(1))
		timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			L.RaiseError("macro cancelled during sleep")
		}
		return 0
	}))

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		logFn(L.CheckString(1))
		return 0
	}))

	L.SetGlobal("laser", mod)
}

// pushCommandResult pushes (code, message) for a device command.
func pushCommandResult(L *lua.LState, res laser.CommandResult) int {
	if res.TransportFault {
		L.RaiseError("transport fault: %s", res.Message)
		return 0
	}
	L.Push(lua.LNumber(res.Code))
	L.Push(lua.LString(res.Message))
	return 2
}

// pushFloatResult pushes a reading, nil when the reply did not parse.
func pushFloatResult(L *lua.LState, res laser.FloatResult) int {
	if res.TransportFault {
		L.RaiseError("transport fault: %s", res.Message)
		return 0
	}
	L.Push(luaFloat(res.Value))
	return 1
}

func luaFloat(v float64) lua.LValue {
	if math.IsNaN(v) {
		return lua.LNil
	}
	return lua.LNumber(v)
}
