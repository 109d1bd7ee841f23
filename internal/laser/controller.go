// Package laser implements the instrument-control core for the IPS laser
// driver board: discovery over the serial bus, connection lifecycle, a
// serialized SCPI-like command channel with mandatory error read-back, the
// typed command surface, and the aggregated device-state snapshot.
package laser

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"laser-go-control/internal/visa"
)

// Options configures how the controller opens and talks to a session.
type Options struct {
	// BaudRate applied to the session after open. Default 115200.
	BaudRate int
	// Timeout bounds every command round-trip. Default 2s.
	Timeout time.Duration
	// WriteTermination/ReadTermination for the line protocol. Default "\n".
	WriteTermination string
	ReadTermination  string
}

func (o *Options) applyDefaults() {
	if o.BaudRate == 0 {
		o.BaudRate = 115200
	}
	if o.Timeout == 0 {
		o.Timeout = 2 * time.Second
	}
	if o.WriteTermination == "" {
		o.WriteTermination = "\n"
	}
	if o.ReadTermination == "" {
		o.ReadTermination = "\n"
	}
}

// Controller owns exactly one laser session at a time. All hardware access
// goes through the mu-serialized command channel in channel.go; the cached
// fields (enabled, targetMilliamps) are written only on the code paths that
// also issue the corresponding hardware command.
type Controller struct {
	rm     visa.ResourceManager
	events *EventBus
	opts   Options
	logger *slog.Logger

	// mu serializes every command round-trip (command + its Error? read-
	// back) and guards the session state below. Events are never emitted
	// while mu is held: *Locked methods return them as pending for the
	// unlocked caller to publish.
	mu              sync.Mutex
	session         visa.Session
	resource        string
	idn             string
	enabled         bool // last enable state this controller commanded
	targetMilliamps int  // last commanded current setpoint
}

// New creates a controller in the Disconnected state.
func New(rm visa.ResourceManager, events *EventBus, opts Options, logger *slog.Logger) *Controller {
	opts.applyDefaults()
	return &Controller{
		rm:     rm,
		events: events,
		opts:   opts,
		logger: logger.With("component", "laser"),
	}
}

// Connect opens the given resource and configures the line protocol.
// On any failure the controller stays Disconnected and the error is
// returned; nothing is retried here.
func (c *Controller) Connect(resource string) error {
	c.mu.Lock()
	pending, err := c.connectLocked(resource)
	c.mu.Unlock()
	c.emitAll(pending)
	return err
}

// connectLocked does the work of Connect. Caller holds c.mu; events are
// returned instead of emitted so they go out after the lock is released.
func (c *Controller) connectLocked(resource string) ([]Event, error) {
	if c.session != nil {
		return nil, fmt.Errorf("connect %s: already connected to %s", resource, c.resource)
	}

	session, err := c.rm.Open(resource)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", resource, err)
	}

	// Baud rate and termination are configuration hints; a transport that
	// does not expose them still works with its defaults.
	if err := session.SetBaudRate(c.opts.BaudRate); err != nil {
		c.logger.Debug("set baud rate", "resource", resource, "err", err)
	}
	if err := session.SetTermination(c.opts.WriteTermination, c.opts.ReadTermination); err != nil {
		c.logger.Debug("set termination", "resource", resource, "err", err)
	}
	if err := session.SetTimeout(c.opts.Timeout); err != nil {
		session.Close()
		return nil, fmt.Errorf("connect %s: set timeout: %w", resource, err)
	}

	c.session = session
	c.resource = resource

	res, pending := c.queryLocked("*IDN?")
	c.idn = res.Value

	c.logger.Info("connected", "resource", resource, "idn", c.idn)
	pending = append(pending, Event{Type: EventConnected, Data: map[string]any{
		"resource": resource,
		"idn":      c.idn,
	}})
	return pending, nil
}

// Disconnect drives the laser to a safe state and closes the session.
// Current is zeroed and the laser disabled, in that order, before the
// transport goes away — a closed link must never leave the laser
// mid-pulse. Both commands are issued even when the laser already reads
// disabled. Safe to call when already disconnected.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	pending, err := c.disconnectLocked()
	c.mu.Unlock()
	c.emitAll(pending)
	return err
}

func (c *Controller) disconnectLocked() ([]Event, error) {
	if c.session == nil {
		return nil, nil
	}

	var pending []Event

	c.targetMilliamps = 0
	res, evs := c.writeLocked("Laser:Current 0")
	pending = append(pending, evs...)
	if res.Code != 0 {
		c.logger.Warn("disconnect: zero current", "code", res.Code, "msg", res.Message)
	}
	res, evs = c.writeLocked("Laser:Enable 0")
	pending = append(pending, evs...)
	if res.Code != 0 {
		c.logger.Warn("disconnect: disable", "code", res.Code, "msg", res.Message)
	} else {
		c.enabled = false
	}

	err := c.session.Close()
	c.session = nil
	resource := c.resource
	c.resource = ""
	c.idn = ""

	c.logger.Info("disconnected", "resource", resource)
	pending = append(pending, Event{Type: EventDisconnected, Data: map[string]any{
		"resource": resource,
	}})
	if err != nil {
		return pending, fmt.Errorf("disconnect %s: %w", resource, err)
	}
	return pending, nil
}

// IsConnected reports whether a session is open.
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Resource returns the identifier of the open session, or "".
func (c *Controller) Resource() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resource
}

// TargetMilliamps returns the last commanded current setpoint.
func (c *Controller) TargetMilliamps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetMilliamps
}

// Events returns the controller's event bus.
func (c *Controller) Events() *EventBus {
	return c.events
}

// emitAll publishes events collected inside a critical section. Handlers
// may call back into the controller (the MQTT bridge reads a snapshot on
// disconnect), so nothing may be emitted while c.mu is held.
func (c *Controller) emitAll(pending []Event) {
	for _, ev := range pending {
		c.events.Emit(ev)
	}
}
