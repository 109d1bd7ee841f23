//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"testing"

	"laser-go-control/internal/laser"
)

// fakeDevice records the commands the bridge dispatches.
type fakeDevice struct {
	calls  []string
	ma     int
	on     bool
	code   int
	events *laser.EventBus
}

func (d *fakeDevice) SetCurrent(ma int) laser.CommandResult {
	d.calls = append(d.calls, "current")
	d.ma = ma
	return laser.CommandResult{Code: d.code}
}

func (d *fakeDevice) SetEnabled(on bool) laser.CommandResult {
	d.calls = append(d.calls, "enable")
	d.on = on
	return laser.CommandResult{Code: d.code}
}

func (d *fakeDevice) SetTECSetpoint(float64) laser.CommandResult {
	d.calls = append(d.calls, "tec")
	return laser.CommandResult{Code: d.code}
}

func (d *fakeDevice) SetPWMDutyCycle(float64) laser.CommandResult {
	d.calls = append(d.calls, "pwm")
	return laser.CommandResult{Code: d.code}
}

func (d *fakeDevice) Snapshot() laser.DeviceInfo { return laser.DefaultDeviceInfo() }
func (d *fakeDevice) Events() *laser.EventBus { return d.events }

func TestParseSetTopic(t *testing.T) {
	tests := []struct {
		topic string
		field string
		ok    bool
	}{
		{"lab/laser/set/current", "current", true},
		{"lab/laser/set/enable", "enable", true},
		{"lab/laser/set/", "", false},
		{"lab/laser/set/current/extra", "", false},
		{"lab/laser/state", "", false},
		{"other/laser/set/current", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			field, ok := parseSetTopic(tt.topic, "lab")
			if field != tt.field || ok != tt.ok {
				t.Errorf("parseSetTopic(%q) = (%q, %v), want (%q, %v)",
					tt.topic, field, ok, tt.field, tt.ok)
			}
		})
	}
}

func TestDispatchCommand(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		payload string
		want    string
		wantErr bool
	}{
		{"current", "current", "250", "current", false},
		{"current units rejected", "current", "250mA", "", true},
		{"current negative", "current", "-5", "", true},
		{"enable on", "enable", "ON", "enable", false},
		{"enable numeric", "enable", "1", "enable", false},
		{"enable garbage", "enable", "maybe", "", true},
		{"tec", "tec", "32.5", "tec", false},
		{"pwm", "pwm", "80", "pwm", false},
		{"unknown field", "wavelength", "780", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{}
			_, err := dispatchCommand(dev, tt.field, []byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("dispatch accepted %q=%q", tt.field, tt.payload)
				}
				if len(dev.calls) != 0 {
					t.Errorf("rejected command reached device: %v", dev.calls)
				}
				return
			}
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if len(dev.calls) != 1 || dev.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", dev.calls, tt.want)
			}
		})
	}
}

func TestDispatchCommandValues(t *testing.T) {
	dev := &fakeDevice{}
	if _, err := dispatchCommand(dev, "current", []byte(" 250 ")); err != nil {
		t.Fatal(err)
	}
	if dev.ma != 250 {
		t.Errorf("ma = %d, want 250", dev.ma)
	}

	if _, err := dispatchCommand(dev, "enable", []byte("off")); err != nil {
		t.Fatal(err)
	}
	if dev.on {
		t.Error("enable off set device on")
	}
}

func TestParseBoolPayload(t *testing.T) {
	for _, s := range []string{"ON", "on", " 1 ", "true", "TRUE"} {
		if v, err := parseBoolPayload([]byte(s)); err != nil || !v {
			t.Errorf("parseBoolPayload(%q) = (%v, %v), want (true, nil)", s, v, err)
		}
	}
	for _, s := range []string{"OFF", "0", "false"} {
		if v, err := parseBoolPayload([]byte(s)); err != nil || v {
			t.Errorf("parseBoolPayload(%q) = (%v, %v), want (false, nil)", s, v, err)
		}
	}
	if _, err := parseBoolPayload([]byte("banana")); err == nil {
		t.Error("parseBoolPayload accepted garbage")
	}
}

func TestBuildDiscoveryEnableSwitch(t *testing.T) {
	msgs := buildDiscovery("lab")
	if len(msgs) == 0 {
		t.Fatal("expected discovery messages")
	}

	var enable *discoveryMsg
	for i := range msgs {
		if msgs[i].Topic == "homeassistant/switch/laser_go_control/enable/config" {
			enable = &msgs[i]
			break
		}
	}
	if enable == nil {
		t.Fatal("enable switch discovery not found")
	}

	var payload haDiscovery
	if err := json.Unmarshal(enable.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.CommandTopic != "lab/laser/set/enable" {
		t.Errorf("command_topic = %q", payload.CommandTopic)
	}
	if payload.StateTopic != "lab/laser/state" {
		t.Errorf("state_topic = %q", payload.StateTopic)
	}
	if payload.AvailabilityTopic != "lab/bridge/state" {
		t.Errorf("availability_topic = %q", payload.AvailabilityTopic)
	}
}

func TestBuildDiscoverySensors(t *testing.T) {
	msgs := buildDiscovery("lab")
	topics := make(map[string]bool)
	for _, m := range msgs {
		topics[m.Topic] = true
	}

	for _, key := range []string{"current_ma", "power_mw", "temperature_c", "wavelength"} {
		if !topics["homeassistant/sensor/laser_go_control/"+key+"/config"] {
			t.Errorf("%s discovery missing", key)
		}
	}
}

func TestMustJSON(t *testing.T) {
	result := mustJSON(map[string]string{"hello": "world"})
	var parsed map[string]string
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("mustJSON output not valid JSON: %v", err)
	}
	if parsed["hello"] != "world" {
		t.Errorf("parsed value = %q", parsed["hello"])
	}
}
