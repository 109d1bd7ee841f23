package laser

import (
	"errors"
	"testing"
	"time"
)

func TestConnectFailureLeavesDisconnected(t *testing.T) {
	c, m := newTestController(t, "COM3")
	m.openErr["COM3"] = errors.New("open COM3: no such device")

	if err := c.Connect("COM3"); err == nil {
		t.Fatal("connect succeeded against a failing transport")
	}
	if c.IsConnected() {
		t.Error("controller claims connected after failed open")
	}
	assertDefault(t, c.Snapshot())
}

func TestConnectRefusesSecondSession(t *testing.T) {
	c, m := newTestController(t, "COM3", "COM4")
	connectIPS(t, c, m, "COM3")

	if err := c.Connect("COM4"); err == nil {
		t.Fatal("second connect succeeded; only one session may exist")
	}
	if got := c.Resource(); got != "COM3" {
		t.Errorf("resource = %q, want COM3", got)
	}
}

func TestDisconnectWhenAlreadyDisconnected(t *testing.T) {
	c, _ := newTestController(t, "COM3")
	if err := c.Disconnect(); err != nil {
		t.Errorf("disconnect on disconnected controller: %v", err)
	}
}

func TestSetEnabledCacheOnlyOnConfirmation(t *testing.T) {
	c, m := newTestController(t, "COM3")
	s := connectIPS(t, c, m, "COM3")
	stubReadings(s)
	s.errText = `-200,"Execution error"`

	if res := c.SetEnabled(true); res.Code == 0 {
		t.Fatalf("fake should have rejected: %+v", res)
	}

	// The cache must still read disabled: with the hardware agreeing
	// (Enable? -> 0 by default below), no reconciliation may fire.
	s.errText = `0,"NO_ERROR"`
	s.replies["Laser:Enable?"] = "0"
	var reconciled int
	c.Events().On(EventReconciled, func(Event) { reconciled++ })
	info := c.Snapshot()
	if info.IsEnabled {
		t.Error("snapshot claims enabled after rejected command")
	}
	if reconciled != 0 {
		t.Errorf("reconciliation fired %d times; cache drifted on rejected command", reconciled)
	}
}

func TestConnectEmitsEvent(t *testing.T) {
	c, m := newTestController(t, "COM3")
	var events []Event
	c.Events().On(EventConnected, func(e Event) { events = append(events, e) })

	connectIPS(t, c, m, "COM3")
	if len(events) != 1 {
		t.Fatalf("connected events = %d, want 1", len(events))
	}
	if data := events[0].Data; data["resource"] != "COM3" {
		t.Errorf("event data = %v", data)
	}
}

// The MQTT bridge reads a fresh snapshot from its disconnect handler, so
// lifecycle events must go out with the session mutex released.
func TestDisconnectHandlerMayReenterController(t *testing.T) {
	c, m := newTestController(t, "COM3")
	connectIPS(t, c, m, "COM3")

	var seen DeviceInfo
	c.Events().On(EventDisconnected, func(Event) { seen = c.Snapshot() })

	done := make(chan error, 1)
	go func() { done <- c.Disconnect() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("disconnect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect blocked behind an event handler reading controller state")
	}
	if seen.IsConnected {
		t.Error("disconnect handler observed a connected snapshot")
	}
}

func TestConnectHandlerMayReenterController(t *testing.T) {
	c, m := newTestController(t, "COM3")

	var resource string
	c.Events().On(EventConnected, func(Event) { resource = c.Resource() })

	done := make(chan error, 1)
	go func() {
		m.sessions["COM3"].replies["*IDN?"] = "IPS,HPU,SN123,780,FW1"
		done <- c.Connect("COM3")
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect blocked behind an event handler reading controller state")
	}
	if resource != "COM3" {
		t.Errorf("connect handler saw resource %q, want COM3", resource)
	}
}
