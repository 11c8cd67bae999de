package ccnet

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

// Transport is the byte-stream link to the peripheral.
//
// Read deadlines are absolute, net.Conn style, so a net.Conn (including
// net.Pipe ends in tests) satisfies the interface directly. A zero
// deadline means reads block indefinitely.
type Transport interface {
	io.ReadWriteCloser

	// SetReadDeadline sets the absolute deadline for future Read calls.
	SetReadDeadline(t time.Time) error
}

// serialTransport adapts a go.bug.st/serial port to the Transport interface.
type serialTransport struct {
	port serial.Port
}

// openSerialTransport opens the named serial port in the 8N1 framing CCNet
// peripherals use.
func openSerialTransport(portName string, baudRate int) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrTransport, portName, err)
	}

	return &serialTransport{port: port}, nil
}

// Read normalizes the port's timeout behavior to the net.Conn convention:
// go.bug.st/serial reports an expired read timeout as (0, nil), which is
// mapped to os.ErrDeadlineExceeded here.
func (s *serialTransport) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if n == 0 && err == nil {
		return 0, os.ErrDeadlineExceeded
	}

	return n, err
}

func (s *serialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialTransport) Close() error {
	return s.port.Close()
}

// SetReadDeadline maps the absolute deadline onto the port's relative read
// timeout.
func (s *serialTransport) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		return s.port.SetReadTimeout(serial.NoTimeout)
	}

	d := time.Until(t)
	if d < time.Millisecond {
		d = time.Millisecond
	}

	return s.port.SetReadTimeout(d)
}

// ListPorts returns the serial port names present on the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
