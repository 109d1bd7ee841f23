//go:build !no_mqtt

// Package mqtt bridges the laser controller to an MQTT broker: retained
// state snapshots, fault notifications, Home Assistant discovery, and a
// small set/# command surface.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"laser-go-control/internal/laser"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// device is the controller surface the bridge drives.
type device interface {
	SetCurrent(milliamps int) laser.CommandResult
	SetEnabled(on bool) laser.CommandResult
	SetTECSetpoint(celsius float64) laser.CommandResult
	SetPWMDutyCycle(percent float64) laser.CommandResult
	Snapshot() laser.DeviceInfo
	Events() *laser.EventBus
}

// Bridge connects the laser controller to MQTT.
type Bridge struct {
	client pahomqtt.Client
	dev    device
	prefix string
	logger *slog.Logger
	unsub  func()
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(dev device, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		dev:    dev,
		prefix: cfg.TopicPrefix,
		logger: logger.With("component", "mqtt"),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("laser-go-control").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.publishDiscovery()
			b.publishState(b.dev.Snapshot())
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	b.client = client
	return b, nil
}

// Start subscribes to controller events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.dev.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event laser.Event) {
	switch event.Type {
	case laser.EventSnapshot:
		if event.Snapshot != nil {
			b.publishState(*event.Snapshot)
		}
	case laser.EventFault:
		b.publish(b.prefix+"/laser/fault", mustJSON(event.Data), false)
	case laser.EventConnected:
		b.publish(b.prefix+"/laser/availability", []byte("online"), true)
	case laser.EventDisconnected:
		b.publish(b.prefix+"/laser/availability", []byte("offline"), true)
		b.publishState(b.dev.Snapshot())
	}
}

func (b *Bridge) publishState(info laser.DeviceInfo) {
	b.publish(b.prefix+"/laser/state", mustJSON(info), true)
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publishDiscovery() {
	for _, msg := range buildDiscovery(b.prefix) {
		b.publish(msg.Topic, msg.Payload, true)
	}
	b.logger.Info("published HA discovery")
}

func (b *Bridge) subscribeCommands() {
	topic := b.prefix + "/laser/set/#"
	b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(msg.Topic(), msg.Payload())
	})
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	field, ok := parseSetTopic(topic, b.prefix)
	if !ok {
		b.logger.Warn("command on unexpected topic", "topic", topic)
		return
	}

	res, err := dispatchCommand(b.dev, field, payload)
	if err != nil {
		b.logger.Warn("invalid command", "topic", topic, "payload", string(payload), "err", err)
		return
	}
	if res.Code != 0 || res.TransportFault {
		b.logger.Warn("command rejected", "field", field, "code", res.Code, "msg", res.Message)
	}

	b.publishState(b.dev.Snapshot())
}

// parseSetTopic extracts the command field from a <prefix>/laser/set/<field>
// topic. ok is false for any topic outside that shape.
func parseSetTopic(topic, prefix string) (string, bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/laser/set/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// dispatchCommand routes one set field onto the typed command surface.
func dispatchCommand(dev device, field string, payload []byte) (laser.CommandResult, error) {
	switch field {
	case "enable":
		on, err := parseBoolPayload(payload)
		if err != nil {
			return laser.CommandResult{}, err
		}
		return dev.SetEnabled(on), nil
	case "current":
		ma, err := strconv.Atoi(strings.TrimSpace(string(payload)))
		if err != nil {
			return laser.CommandResult{}, fmt.Errorf("current: %w", err)
		}
		if ma < 0 {
			return laser.CommandResult{}, fmt.Errorf("current: negative setpoint %d", ma)
		}
		return dev.SetCurrent(ma), nil
	case "tec":
		c, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil {
			return laser.CommandResult{}, fmt.Errorf("tec: %w", err)
		}
		return dev.SetTECSetpoint(c), nil
	case "pwm":
		pct, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil {
			return laser.CommandResult{}, fmt.Errorf("pwm: %w", err)
		}
		return dev.SetPWMDutyCycle(pct), nil
	default:
		return laser.CommandResult{}, fmt.Errorf("unknown field %q", field)
	}
}

// parseBoolPayload accepts the usual MQTT spellings of a switch state.
func parseBoolPayload(payload []byte) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "1", "TRUE":
		return true, nil
	case "OFF", "0", "FALSE":
		return false, nil
	default:
		return false, fmt.Errorf("enable: unrecognized payload %q", payload)
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
