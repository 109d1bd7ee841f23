package laser

import (
	"encoding/json"
	"math"
	"strings"

	"laser-go-control/internal/scpi"
)

// DeviceInfo is the aggregated device-state snapshot handed to any
// presentation layer. It is rebuilt from scratch on every Snapshot call:
// a snapshot is either fully fresh or fully default, never a mix.
type DeviceInfo struct {
	Model            string  `json:"model"`
	SerialNumber     string  `json:"serial_number"`
	IsConnected      bool    `json:"is_connected"`
	IsEnabled        bool    `json:"is_enabled"`
	Wavelength       float64 `json:"wavelength"`
	TemperatureC     float64 `json:"temperature_c"`
	CurrentMilliamps float64 `json:"current_ma"`
	TargetMilliamps  float64 `json:"target_ma"`
	PowerMilliwatts  float64 `json:"power_mw"`
}

// DefaultDeviceInfo is the all-default, disconnected snapshot. Numeric
// fields are NaN so callers can distinguish "no reading" from a real zero.
func DefaultDeviceInfo() DeviceInfo {
	nan := math.NaN()
	return DeviceInfo{
		Wavelength:       nan,
		TemperatureC:     nan,
		CurrentMilliamps: nan,
		TargetMilliamps:  nan,
		PowerMilliwatts:  nan,
	}
}

// MarshalJSON renders NaN readings as null; encoding/json rejects NaN.
func (d DeviceInfo) MarshalJSON() ([]byte, error) {
	type jsonInfo struct {
		Model            string   `json:"model"`
		SerialNumber     string   `json:"serial_number"`
		IsConnected      bool     `json:"is_connected"`
		IsEnabled        bool     `json:"is_enabled"`
		Wavelength       *float64 `json:"wavelength"`
		TemperatureC     *float64 `json:"temperature_c"`
		CurrentMilliamps *float64 `json:"current_ma"`
		TargetMilliamps  *float64 `json:"target_ma"`
		PowerMilliwatts  *float64 `json:"power_mw"`
	}
	opt := func(v float64) *float64 {
		if math.IsNaN(v) {
			return nil
		}
		return &v
	}
	return json.Marshal(jsonInfo{
		Model:            d.Model,
		SerialNumber:     d.SerialNumber,
		IsConnected:      d.IsConnected,
		IsEnabled:        d.IsEnabled,
		Wavelength:       opt(d.Wavelength),
		TemperatureC:     opt(d.TemperatureC),
		CurrentMilliamps: opt(d.CurrentMilliamps),
		TargetMilliamps:  opt(d.TargetMilliamps),
		PowerMilliwatts:  opt(d.PowerMilliwatts),
	})
}

// Snapshot reads all exposed device state in a fixed sequence and returns
// an internally consistent DeviceInfo. When the controller is disconnected,
// or any step of the sequence fails at the transport level, the all-default
// snapshot is returned: partial results are discarded, never exposed.
//
// Snapshot reads device-reported truth, not the caches, except for the
// target current and the safety reconciliation of the enable state.
func (c *Controller) Snapshot() DeviceInfo {
	if !c.IsConnected() {
		return DefaultDeviceInfo()
	}

	idn := c.Identification()
	if idn.TransportFault {
		return DefaultDeviceInfo()
	}
	fields := strings.Split(idn.Value, ",")
	if len(fields) < 5 {
		c.logger.Warn("snapshot: malformed identification", "idn", idn.Value)
		return DefaultDeviceInfo()
	}

	enabled := c.Enabled()
	temperature := c.Temperature()
	current := c.Current()
	power := c.Power()
	if enabled.TransportFault || temperature.TransportFault ||
		current.TransportFault || power.TransportFault {
		return DefaultDeviceInfo()
	}

	isEnabled := c.reconcileEnable(enabled.Value)

	info := DeviceInfo{
		Model:            strings.TrimSpace(fields[1]),
		SerialNumber:     strings.TrimSpace(fields[2]),
		IsConnected:      true,
		IsEnabled:        isEnabled,
		Wavelength:       scpi.ParseNumber(fields[3]),
		TemperatureC:     temperature.Value,
		CurrentMilliamps: current.Value,
		TargetMilliamps:  float64(c.TargetMilliamps()),
		PowerMilliwatts:  power.Value,
	}
	return info
}

// reconcileEnable compares the hardware-reported enable state against the
// last state this controller commanded. On divergence (hardware fault or
// an external actor changed it) the commanded state is re-issued: software
// intent and hardware reality must not drift apart silently. Returns the
// enable state the snapshot should report.
func (c *Controller) reconcileEnable(reported bool) bool {
	c.mu.Lock()
	commanded := c.enabled
	c.mu.Unlock()

	if reported == commanded {
		return reported
	}

	c.logger.Warn("enable state drift detected, re-asserting commanded state",
		"commanded", commanded, "reported", reported)
	res := c.SetEnabled(commanded)
	c.events.Emit(Event{Type: EventReconciled, Data: map[string]any{
		"commanded": commanded,
		"reported":  reported,
		"code":      res.Code,
	}})
	if res.Code == 0 {
		return commanded
	}
	return reported
}
