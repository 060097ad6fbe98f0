package actuator

import (
	"bufio"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// SerialConfig holds configuration for the serial motion adapter.
type SerialConfig struct {
	PortName string
	BaudRate int
}

// DefaultSerialConfig returns defaults matching common microcontroller
// pointer firmware.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{BaudRate: 115200}
}

// Serial drives pointer hardware over a serial line. Each motion is a
// single text frame "m <dx> <dy>\n" with integer deltas; the firmware
// answers "ok" or an error line. Sub-pixel remainders are carried over
// to the next call so long sequences do not accumulate rounding drift.
type Serial struct {
	mu     sync.Mutex
	port   serial.Port
	reader *bufio.Reader

	remX, remY float64
}

// OpenSerial opens the port and returns a ready adapter.
func OpenSerial(config SerialConfig) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(config.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("actuator: open %s: %w", config.PortName, err)
	}
	return &Serial{port: port, reader: bufio.NewReader(port)}, nil
}

// ApplyRelativeMotion implements Actuator.
func (s *Serial) ApplyRelativeMotion(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return ErrNotReady
	}

	// Integer deltas on the wire; keep the remainder for next time.
	wholeX := math.Round(dx + s.remX)
	wholeY := math.Round(dy + s.remY)
	s.remX = dx + s.remX - wholeX
	s.remY = dy + s.remY - wholeY

	if wholeX == 0 && wholeY == 0 {
		return nil
	}

	frame := fmt.Sprintf("m %d %d\n", int(wholeX), int(wholeY))
	if _, err := s.port.Write([]byte(frame)); err != nil {
		return fmt.Errorf("actuator: write: %w", err)
	}

	line, err := s.reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("actuator: read ack: %w", err)
	}
	if strings.TrimSpace(line) != "ok" {
		return fmt.Errorf("%w: %q", ErrRejected, strings.TrimSpace(line))
	}
	return nil
}

// Close releases the serial port. Further motions return ErrNotReady.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
