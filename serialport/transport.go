package serialport

import (
	"time"

	"go.bug.st/serial"
)

// Transport is the subset of a serial port the shared port needs. The
// production implementation is go.bug.st/serial; tests substitute a fake.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	Drain() error
	SetReadTimeout(t time.Duration) error
	SetRTS(rts bool) error
	Close() error
}

// Opener opens the underlying serial transport for a port name.
type Opener func(name string) (Transport, error)

// Device link parameters. The device enumerates as a USB CDC port, so the
// baud rate is nominal, but the firmware configures its UART to match.
const (
	// BaudRate is the serial link speed
	BaudRate = 115200

	// IOTimeout is the transport read timeout and the ReadExact deadline
	// the device session uses; writes have no timeout
	IOTimeout = 1000 * time.Millisecond
)

// OpenSerial is the default Opener. It opens the named port at 8-N-1,
// BaudRate, with IOTimeout as the read timeout.
func OpenSerial(name string) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(IOTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}
