// Package serialport provides shared, lock-serialized access to the device's
// virtual serial port.
//
// The device class is single-master: only one transaction may be in flight on
// a port at a time, across every process on the host. SharedPort enforces
// this with two nested locks:
//
//  1. A system-wide named lock ("Global\Access_USB_Sensors"), implemented as
//     a named mutex on Windows and a flock over a well-known path elsewhere.
//     Acquisition survives a previous owner dying while holding the lock.
//  2. An in-process mutex serializing concurrent callers within one process.
//
// Every I/O operation runs under both locks (Dispose takes only the
// in-process lock and never acquires the system-wide one). Transact groups a whole
// write/read exchange under a single acquisition so that an opcode and its
// response are atomic on the wire:
//
//	err := port.Transact(func(c *serialport.Conn) error {
//	    if err := c.DiscardInput(); err != nil {
//	        return err
//	    }
//	    if err := c.Write([]byte{opcode}); err != nil {
//	        return err
//	    }
//	    return c.ReadExact(resp, time.Second)
//	})
//
// ListCandidatePorts enumerates serial ports whose USB identifiers match the
// device (VID 0483, PID 5740).
package serialport
