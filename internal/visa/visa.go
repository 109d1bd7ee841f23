// Package visa is the transport collaborator for text-protocol serial
// instruments: resource enumeration and line-oriented sessions with
// configurable baud rate, termination and timeout.
//
// The laser core consumes only the ResourceManager and Session interfaces;
// the serial implementation lives in this package, tests substitute fakes.
package visa

import "time"

// ResourceInfo describes one candidate serial endpoint.
type ResourceInfo struct {
	// ID is the transport-specific identifier used to open the resource,
	// e.g. "/dev/ttyACM0" or "COM3".
	ID string
	// Description is free-form transport metadata (product string).
	Description string
	// SerialNumber is the USB serial number when the transport knows it.
	SerialNumber string
	// VendorID/ProductID are USB identifiers when available, else empty.
	VendorID  string
	ProductID string
}

// ResourceManager enumerates and opens serial resources.
type ResourceManager interface {
	// ListResources returns the resources whose identifier matches the
	// given glob-style pattern (e.g. "*ttyACM*"). An empty pattern
	// matches everything.
	ListResources(pattern string) ([]ResourceInfo, error)
	// Open opens a resource by identifier.
	Open(id string) (Session, error)
}

// Session is an open line-oriented connection to one resource.
//
// SetBaudRate and SetTermination are configuration hints: not every
// transport exposes these knobs, so callers treat their errors as
// non-fatal and log-and-continue.
type Session interface {
	SetBaudRate(baud int) error
	SetTermination(write, read string) error
	SetTimeout(d time.Duration) error

	// Write sends one command line (termination appended by the session).
	Write(line string) error
	// Query sends one line and reads one terminated reply line, with the
	// termination stripped. It blocks up to the configured timeout.
	Query(line string) (string, error)

	Close() error
}
