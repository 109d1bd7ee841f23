package laser

import (
	"strconv"
	"strings"

	"laser-go-control/internal/scpi"
)

// FloatResult is a QueryResult coerced to a float. Value is NaN when the
// reply did not parse or the round-trip failed.
type FloatResult struct {
	Value          float64 `json:"value"`
	Code           int     `json:"code"`
	Message        string  `json:"message"`
	TransportFault bool    `json:"transport_fault,omitempty"`
}

// IntResult is a QueryResult coerced to an int. Value is 0 when the reply
// did not parse.
type IntResult struct {
	Value          int    `json:"value"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	TransportFault bool   `json:"transport_fault,omitempty"`
}

// BoolResult is a QueryResult coerced via integer truth (non-zero = true).
type BoolResult struct {
	Value          bool   `json:"value"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	TransportFault bool   `json:"transport_fault,omitempty"`
}

func (c *Controller) queryFloat(cmd string) FloatResult {
	q := c.query(cmd)
	return FloatResult{
		Value:          scpi.ParseNumber(q.Value),
		Code:           q.Code,
		Message:        q.Message,
		TransportFault: q.TransportFault,
	}
}

func (c *Controller) queryInt(cmd string) IntResult {
	q := c.query(cmd)
	v, err := strconv.Atoi(strings.TrimSpace(q.Value))
	if err != nil && !q.TransportFault {
		c.logger.Warn("unparsable integer reply", "cmd", cmd, "reply", q.Value)
	}
	return IntResult{Value: v, Code: q.Code, Message: q.Message, TransportFault: q.TransportFault}
}

func (c *Controller) queryBool(cmd string) BoolResult {
	i := c.queryInt(cmd)
	return BoolResult{Value: i.Value != 0, Code: i.Code, Message: i.Message, TransportFault: i.TransportFault}
}

// --- Getters ---

// Identification reports the device identification string:
// vendor, module, serial number, factory-measured wavelength, FW revision.
func (c *Controller) Identification() QueryResult {
	return c.query("*IDN?")
}

// Status reports the board state (first field of the Status? reply, see
// scpi.StatusText). The second field, the hardware error queue depth, is
// read separately via ErrorQueueCount.
func (c *Controller) Status() IntResult {
	q := c.query("Status?")
	first, _, _ := strings.Cut(q.Value, ",")
	v, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil && !q.TransportFault {
		c.logger.Warn("unparsable status reply", "reply", q.Value)
	}
	return IntResult{Value: v, Code: q.Code, Message: q.Message, TransportFault: q.TransportFault}
}

// BoardCurrent reports the measured board current draw in mA.
func (c *Controller) BoardCurrent() FloatResult {
	return c.queryFloat("Board:Current?")
}

// BoardTemperature reports the module case temperature in °C.
func (c *Controller) BoardTemperature() FloatResult {
	return c.queryFloat("Board:Temperature?")
}

// CalibrationCount reports the number of entries in the calibration LUT.
func (c *Controller) CalibrationCount() IntResult {
	return c.queryInt("Calibrate:Number?")
}

// CalibrationMonitor reports the PD monitor value of LUT entry n in mV.
// Valid entries are 1-9; out-of-range values are passed through and
// rejected by the hardware.
func (c *Controller) CalibrationMonitor(n int) FloatResult {
	return c.queryFloat(scpi.Query("Calibrate:Monitor") + " " + scpi.Int(n))
}

// CalibrationPower reports the laser power value of LUT entry n in mW.
// Valid entries are 1-9.
func (c *Controller) CalibrationPower(n int) FloatResult {
	return c.queryFloat(scpi.Query("Calibrate:Power") + " " + scpi.Int(n))
}

// Current reports the measured laser operating current in mA.
func (c *Controller) Current() FloatResult {
	return c.queryFloat("Laser:Current?")
}

// CurrentSetpoint reports the laser operating current setpoint in mA.
func (c *Controller) CurrentSetpoint() FloatResult {
	return c.queryFloat("Laser:Setpoint?")
}

// Enabled reports the hardware laser enable state. The reply is always the
// board's own view, never the local cache.
func (c *Controller) Enabled() BoolResult {
	return c.queryBool("Laser:Enable?")
}

// OnHours reports the accumulated ON time of the laser in hours.
func (c *Controller) OnHours() FloatResult {
	return c.queryFloat("Laser:Hours?")
}

// AnalogMode reports the external VBIAS enable state (0 = factory default
// disabled, 1 = external VBIAS enabled).
func (c *Controller) AnalogMode() IntResult {
	return c.queryInt("Laser:Mode:Analog?")
}

// DigitalMode reports the digital (PWM) mode enable status. probed 0 reads
// the current setting, 1 the factory default.
func (c *Controller) DigitalMode(probed int) IntResult {
	return c.queryInt(scpi.Query("Laser:Mode:Digital") + " " + scpi.Int(probed))
}

// PWMDutyCycle reports the PWM duty cycle of the laser current in percent.
// factory selects the factory default setting instead of the current one.
func (c *Controller) PWMDutyCycle(factory bool) FloatResult {
	return c.queryFloat(scpi.Query("Laser:Mode:PWM") + " " + scpi.Bool(factory))
}

// MonitorLevel reports the monitor photodiode signal level.
func (c *Controller) MonitorLevel() FloatResult {
	return c.queryFloat("Laser:Monitor?")
}

// Power reports the laser power in mW as derived from the calibration LUT.
func (c *Controller) Power() FloatResult {
	return c.queryFloat("Laser:Power?")
}

// Temperature reports the laser/TEC temperature in °C.
func (c *Controller) Temperature() FloatResult {
	return c.queryFloat("Laser:Temperature?")
}

// ErrorQueueCount reports the number of errors in the communication error
// queue.
func (c *Controller) ErrorQueueCount() IntResult {
	return c.queryInt("System:Error:Count?")
}

// TECSetpoint reports the TEC temperature setpoint in °C. factory selects
// the factory default setting.
func (c *Controller) TECSetpoint(factory bool) FloatResult {
	return c.queryFloat(scpi.Query("TEC:SETpoint") + " " + scpi.Bool(factory))
}

// --- Setters ---

// SetCalibrationCount sets the number of LUT entries (2-9). save 1 stores
// permanently, 0 until the next power cycle.
func (c *Controller) SetCalibrationCount(entries, save int) CommandResult {
	return c.write(scpi.Set("Calibrate:Number", scpi.Int(entries), scpi.Int(save)))
}

// SetCalibrationMonitor sets the PD monitor value of LUT entry n in mV
// (entry 1-9, value 0-3000).
func (c *Controller) SetCalibrationMonitor(n, value, save int) CommandResult {
	return c.write(scpi.Set("Calibrate:Monitor", scpi.Int(n), scpi.Int(value), scpi.Int(save)))
}

// SetCalibrationPower sets the power value of LUT entry n in mW
// (entry 1-9, value 0-6553.5).
func (c *Controller) SetCalibrationPower(n int, value float64, save int) CommandResult {
	return c.write(scpi.Set("Calibrate:Power", scpi.Int(n), scpi.Float(value), scpi.Int(save)))
}

// SetCurrent sets the laser operating current setpoint in mA and records
// it as the controller's target. The target cache is written on the same
// code path, under the same lock, as the hardware command.
func (c *Controller) SetCurrent(milliamps int) CommandResult {
	c.mu.Lock()
	c.targetMilliamps = milliamps
	res, pending := c.writeLocked(scpi.Set("Laser:Current", scpi.Int(milliamps)))
	c.mu.Unlock()
	c.emitAll(pending)
	return res
}

// SetEnabled enables or disables the laser. The local enable cache is
// updated only when the device confirms the command with error code 0:
// the cache must never claim a state the hardware did not confirm.
func (c *Controller) SetEnabled(on bool) CommandResult {
	c.mu.Lock()
	res, pending := c.writeLocked(scpi.Set("Laser:Enable", scpi.Bool(on)))
	if res.Code == 0 {
		c.enabled = on
	}
	c.mu.Unlock()
	c.emitAll(pending)
	return res
}

// SetAnalogMode enables or disables external VBIAS control of the laser
// current (module pin 8).
func (c *Controller) SetAnalogMode(on bool) CommandResult {
	return c.write(scpi.Set("Laser:Mode:Analog", scpi.Bool(on)))
}

// SetDigitalMode allows or disallows digital (PWM) modulation of the laser
// current.
func (c *Controller) SetDigitalMode(on bool) CommandResult {
	return c.write(scpi.Set("Laser:Mode:Digital", scpi.Bool(on)))
}

// SetPWMDutyCycle sets the PWM duty cycle in percent. The hardware accepts
// 10.0-100.0.
func (c *Controller) SetPWMDutyCycle(percent float64) CommandResult {
	return c.write(scpi.Set("Laser:Mode:PWM", scpi.Float(percent)))
}

// SetTECSetpoint sets the TEC temperature setpoint in °C. The hardware
// accepts 10.0-45.0; 30-35 is optimal for most configurations.
func (c *Controller) SetTECSetpoint(celsius float64) CommandResult {
	return c.write(scpi.Set("TEC:SETpoint", scpi.Float(celsius)))
}

// RestoreFactorySettings restores the factory power-up configuration
// (TEC setpoint, laser drive, enable mode, analog/digital mode, PWM duty
// cycle). Follow with SaveParameters to persist it.
func (c *Controller) RestoreFactorySettings() CommandResult {
	return c.write("Parameters:Restore")
}

// SaveParameters stores the current parameter settings to FLASH as the
// power-up configuration.
func (c *Controller) SaveParameters() CommandResult {
	return c.write("Parameters:Save")
}
