package visa

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialManager implements ResourceManager over local serial ports.
type SerialManager struct{}

// NewSerialManager returns a ResourceManager backed by the host's serial
// ports.
func NewSerialManager() *SerialManager {
	return &SerialManager{}
}

// ListResources enumerates serial ports and filters them by pattern.
// When detailed enumeration yields nothing (some platforms, restricted
// environments) it falls back to a plain port list, then to well-known
// platform port names.
func (m *SerialManager) ListResources(pattern string) ([]ResourceInfo, error) {
	var infos []ResourceInfo

	ports, err := enumerator.GetDetailedPortsList()
	if err == nil {
		for _, p := range ports {
			infos = append(infos, ResourceInfo{
				ID:           p.Name,
				Description:  p.Product,
				SerialNumber: p.SerialNumber,
				VendorID:     p.VID,
				ProductID:    p.PID,
			})
		}
	}
	if len(infos) == 0 {
		names, listErr := serial.GetPortsList()
		if listErr != nil && err != nil {
			return nil, fmt.Errorf("list serial ports: %w", err)
		}
		if len(names) == 0 {
			names = commonPorts()
		}
		for _, name := range names {
			infos = append(infos, ResourceInfo{ID: name})
		}
	}

	if pattern == "" {
		return infos, nil
	}
	matched := infos[:0]
	for _, info := range infos {
		ok, matchErr := filepath.Match(pattern, info.ID)
		if matchErr != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, matchErr)
		}
		// filepath.Match anchors the whole string; also accept a bare
		// substring for patterns without metacharacters.
		if ok || (!strings.ContainsAny(pattern, "*?[") && strings.Contains(info.ID, pattern)) {
			matched = append(matched, info)
		}
	}
	return matched, nil
}

// commonPorts returns conventional port names per platform, used only when
// enumeration finds nothing.
func commonPorts() []string {
	switch runtime.GOOS {
	case "windows":
		ports := make([]string, 0, 20)
		for i := 1; i <= 20; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports
	case "linux":
		return []string{
			"/dev/ttyACM0", "/dev/ttyACM1",
			"/dev/ttyUSB0", "/dev/ttyUSB1",
		}
	case "darwin":
		return []string{
			"/dev/cu.usbmodem", "/dev/cu.usbserial",
		}
	default:
		return nil
	}
}

// Open opens a serial resource with 8N1 framing at the default baud rate.
// Callers adjust the rate afterwards via SetBaudRate.
func (m *SerialManager) Open(id string) (Session, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(id, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}

	// USB CDC ACM firmware commonly waits for DTR/RTS before talking.
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)

	s := &serialSession{
		id:        id,
		port:      port,
		mode:      *mode,
		writeTerm: "\n",
		readTerm:  '\n',
		timeout:   2 * time.Second,
	}
	_ = port.SetReadTimeout(s.timeout)
	return s, nil
}

// serialSession is a Session over one open serial port. Reads are byte-at-
// a-time against the port's read timeout so a missing terminator surfaces
// as a timeout error instead of a hang.
type serialSession struct {
	id   string
	port serial.Port
	mode serial.Mode

	mu        sync.Mutex
	writeTerm string
	readTerm  byte
	timeout   time.Duration
}

func (s *serialSession) SetBaudRate(baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode.BaudRate = baud
	if err := s.port.SetMode(&s.mode); err != nil {
		return fmt.Errorf("set baud rate %d on %s: %w", baud, s.id, err)
	}
	return nil
}

func (s *serialSession) SetTermination(write, read string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if read == "" {
		return fmt.Errorf("read termination must not be empty")
	}
	s.writeTerm = write
	s.readTerm = read[len(read)-1]
	return nil
}

func (s *serialSession) SetTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
	if err := s.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("set timeout on %s: %w", s.id, err)
	}
	return nil
}

func (s *serialSession) Write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(line)
}

func (s *serialSession) writeLocked(line string) error {
	if _, err := s.port.Write([]byte(line + s.writeTerm)); err != nil {
		return fmt.Errorf("write %s: %w", s.id, err)
	}
	return nil
}

func (s *serialSession) Query(line string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(line); err != nil {
		return "", err
	}
	return s.readLineLocked()
}

// readLineLocked reads until the read terminator. go.bug.st/serial signals
// a read timeout as a zero-byte read with a nil error, which we turn into
// an explicit timeout failure. Trailing CR before the terminator is
// stripped so CRLF devices parse the same as LF ones.
func (s *serialSession) readLineLocked() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	deadline := time.Now().Add(s.timeout)
	for {
		n, err := s.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", s.id, err)
		}
		if n == 0 {
			return "", fmt.Errorf("read %s: timeout after %s", s.id, s.timeout)
		}
		if buf[0] == s.readTerm {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
		sb.WriteByte(buf[0])
		if time.Now().After(deadline) {
			return "", fmt.Errorf("read %s: no terminator within %s", s.id, s.timeout)
		}
	}
}

func (s *serialSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.id, err)
	}
	return nil
}
