package serialport

import "errors"

var (
	// ErrPortBusy means another process held the system-wide lock beyond
	// the acquisition timeout.
	ErrPortBusy = errors.New("serialport: port busy (system-wide lock timeout)")

	// ErrPortUnavailable means the OS refused to open the port.
	ErrPortUnavailable = errors.New("serialport: port unavailable")

	// ErrPortClosed means an I/O operation was attempted on a closed port.
	ErrPortClosed = errors.New("serialport: port not open")

	// ErrTimeout means fewer bytes than requested arrived within the
	// read deadline.
	ErrTimeout = errors.New("serialport: read timeout")
)
