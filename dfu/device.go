package dfu

import "errors"

// Device is a USB control-transfer channel to the DFU interface. The
// production implementation is the WinUSB backend opened by Open; tests
// substitute a fake.
//
// For device-to-host transfers (bit 7 of requestType set) the reply is
// written into data and the byte count returned; for host-to-device
// transfers data is the payload.
type Device interface {
	ControlTransfer(requestType, request byte, value, index uint16, data []byte) (int, error)
	Close() error
}

// ErrUnsupported is returned by Open on hosts without a raw USB backend.
var ErrUnsupported = errors.New("dfu: raw USB access not supported on this host")

// ErrDeviceNotFound is returned by Open when no DFU-mode device
// (0483:DF11) is attached.
var ErrDeviceNotFound = errors.New("dfu: no DFU device found")
