//go:build !no_mqtt

package mqtt

// Home Assistant MQTT discovery for the laser: one switch for the enable
// state and one sensor per numeric reading, all driven from the retained
// state topic.

type discoveryMsg struct {
	Topic   string
	Payload []byte
}

type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
}

type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	StateOn           string   `json:"state_on,omitempty"`
	StateOff          string   `json:"state_off,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Device            haDevice `json:"device"`
}

// buildDiscovery produces the retained Home Assistant config messages.
func buildDiscovery(prefix string) []discoveryMsg {
	stateTopic := prefix + "/laser/state"
	availTopic := prefix + "/bridge/state"
	dev := haDevice{
		Identifiers:  []string{"laser_go_control"},
		Name:         "IPS Laser",
		Manufacturer: "IPS",
	}

	sensors := []struct {
		key         string
		name        string
		deviceClass string
		unit        string
	}{
		{"current_ma", "Laser Current", "current", "mA"},
		{"target_ma", "Laser Current Setpoint", "current", "mA"},
		{"power_mw", "Laser Power", "power", "mW"},
		{"temperature_c", "Laser Temperature", "temperature", "°C"},
		{"wavelength", "Laser Wavelength", "", "nm"},
	}

	var msgs []discoveryMsg
	for _, s := range sensors {
		cfg := haDiscovery{
			Name:              s.name,
			UniqueID:          "laser_go_control_" + s.key,
			StateTopic:        stateTopic,
			AvailabilityTopic: availTopic,
			ValueTemplate:     "{{ value_json." + s.key + " }}",
			DeviceClass:       s.deviceClass,
			UnitOfMeasurement: s.unit,
			Device:            dev,
		}
		msgs = append(msgs, discoveryMsg{
			Topic:   "homeassistant/sensor/laser_go_control/" + s.key + "/config",
			Payload: mustJSON(cfg),
		})
	}

	enable := haDiscovery{
		Name:              "Laser Enable",
		UniqueID:          "laser_go_control_enable",
		StateTopic:        stateTopic,
		CommandTopic:      prefix + "/laser/set/enable",
		AvailabilityTopic: availTopic,
		ValueTemplate:     "{{ 'ON' if value_json.is_enabled else 'OFF' }}",
		StateOn:           "ON",
		StateOff:          "OFF",
		PayloadOn:         "ON",
		PayloadOff:        "OFF",
		Device:            dev,
	}
	msgs = append(msgs, discoveryMsg{
		Topic:   "homeassistant/switch/laser_go_control/enable/config",
		Payload: mustJSON(enable),
	})

	return msgs
}
