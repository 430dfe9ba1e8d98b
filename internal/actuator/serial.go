package actuator

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// DefaultBaud is the motor controller's UART rate.
const DefaultBaud = 9600

// SerialPort sends frames over a UART.
type SerialPort struct {
	w io.WriteCloser
}

// OpenSerialPort opens device at baud, 8N1.
func OpenSerialPort(device string, baud int) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	if err := port.SetReadTimeout(10 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("configure serial %s: %w", device, err)
	}

	return &SerialPort{w: port}, nil
}

// NewSerialPortFrom wraps an already open writer.
func NewSerialPortFrom(w io.WriteCloser) *SerialPort {
	return &SerialPort{w: w}
}

// SendFrame writes the whole frame. A short write is an error.
func (s *SerialPort) SendFrame(frame [4]byte) error {
	n, err := s.w.Write(frame[:])
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// Close closes the port.
func (s *SerialPort) Close() error {
	return s.w.Close()
}
