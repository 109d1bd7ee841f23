package laser

import (
	"log/slog"
	"sync"
	"time"
)

// Poller produces snapshots on a fixed interval and publishes them on the
// controller's event bus. The interval is an empirical default (~100 ms in
// the observed usage) and comes from configuration.
type Poller struct {
	ctrl     *Controller
	interval time.Duration
	logger   *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller creates a poller; Start begins polling.
func NewPoller(ctrl *Controller, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Poller{
		ctrl:     ctrl,
		interval: interval,
		logger:   logger.With("component", "poller"),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. Snapshot blocks for up to the transport
// timeout, so the loop runs on its own goroutine, never on a caller thread
// that must stay responsive.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				info := p.ctrl.Snapshot()
				p.ctrl.Events().Emit(Event{Type: EventSnapshot, Snapshot: &info})
			}
		}
	}()
	p.logger.Info("poller started", "interval", p.interval)
}

// Stop halts the loop and waits for it to exit. Safe to call twice.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
	p.logger.Info("poller stopped")
}
