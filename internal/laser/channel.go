package laser

import (
	"laser-go-control/internal/scpi"
)

// CommandResult is the outcome of every set command: the device-reported
// error code and message from the mandatory Error? read-back. Code 0 means
// the device reported no communication or hardware error for this command.
type CommandResult struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// TransportFault marks results synthesized from a serial-link failure
	// rather than reported by the device.
	TransportFault bool `json:"transport_fault,omitempty"`
}

// QueryResult is the outcome of every query: the raw reply plus the error
// status. Value is unparsed-or-empty when the round-trip failed.
type QueryResult struct {
	Value          string `json:"value"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	TransportFault bool   `json:"transport_fault,omitempty"`
}

// write sends a command and reads back the error status, all under the
// session lock so no second command can interleave with the pair. A write
// on a disconnected controller short-circuits to a no-error result: callers
// racing a disconnect get an idempotent no-op, not a crash.
func (c *Controller) write(cmd string) CommandResult {
	c.mu.Lock()
	res, pending := c.writeLocked(cmd)
	c.mu.Unlock()
	c.emitAll(pending)
	return res
}

func (c *Controller) writeLocked(cmd string) (CommandResult, []Event) {
	if c.session == nil {
		return CommandResult{Code: 0, Message: scpi.Describe(0)}, nil
	}
	if err := c.session.Write(cmd); err != nil {
		c.logger.Error("write failed", "cmd", cmd, "err", err)
		return CommandResult{
			Code:           scpi.CodeTransportFault,
			Message:        err.Error(),
			TransportFault: true,
		}, nil
	}
	code, msg, fault, pending := c.errorStatusLocked(cmd)
	return CommandResult{Code: code, Message: msg, TransportFault: fault}, pending
}

// query sends a query and reads back the error status under the same lock.
func (c *Controller) query(cmd string) QueryResult {
	c.mu.Lock()
	res, pending := c.queryLocked(cmd)
	c.mu.Unlock()
	c.emitAll(pending)
	return res
}

func (c *Controller) queryLocked(cmd string) (QueryResult, []Event) {
	if c.session == nil {
		return QueryResult{Code: 0, Message: scpi.Describe(0)}, nil
	}
	value, err := c.session.Query(cmd)
	if err != nil {
		c.logger.Error("query failed", "cmd", cmd, "err", err)
		return QueryResult{
			Code:           scpi.CodeTransportFault,
			Message:        err.Error(),
			TransportFault: true,
		}, nil
	}
	code, msg, fault, pending := c.errorStatusLocked(cmd)
	return QueryResult{Value: value, Code: code, Message: msg, TransportFault: fault}, pending
}

// errorStatusLocked issues the mandatory Error? follow-up. Coupling it to
// the primary command inside the critical section guarantees no caller can
// issue a second command before the first one's error state is consumed.
// A device-reported error becomes a pending fault event; the caller emits
// it once c.mu is released, since handlers may re-enter the controller.
func (c *Controller) errorStatusLocked(cmd string) (code int, message string, transportFault bool, pending []Event) {
	reply, err := c.session.Query("Error?")
	if err != nil {
		c.logger.Error("error status read failed", "cmd", cmd, "err", err)
		return scpi.CodeTransportFault, err.Error(), true, nil
	}
	code, message, ok := scpi.ParseErrorReply(reply)
	if !ok {
		c.logger.Error("unparsable error status", "cmd", cmd, "reply", reply)
		return scpi.CodeTransportFault, "unparsable error status: " + reply, true, nil
	}
	if code != 0 {
		c.logger.Warn("device reported error",
			"cmd", cmd, "code", code, "msg", message, "desc", scpi.Describe(code))
		pending = append(pending, Event{Type: EventFault, Data: map[string]any{
			"cmd":         cmd,
			"code":        code,
			"message":     message,
			"description": scpi.Describe(code),
		}})
	}
	return code, message, false, pending
}
