// Package protocol implements the WireView Pro II serial wire protocol.
//
// This package provides the command opcodes, the packed record types
// exchanged over the device's virtual serial port, and the codec between
// those records and their byte layouts.
//
// # Protocol Overview
//
// The link is a plain byte stream (8-N-1, 115200 baud). A command is one
// opcode byte optionally followed by little-endian operands; the response is
// a fixed-size packed record whose length the host knows per opcode. There is
// no framing, checksum, or length field.
//
//	Command:  [OPCODE][OPERANDS...]
//	Response: [PACKED RECORD]            (size fixed per opcode)
//
// # Packed Records
//
// All records use explicit little-endian multi-byte integers with no padding.
// Every record implements the Record interface; Encode and Decode enforce the
// exact wire size:
//
//	var vd protocol.VendorData
//	err := protocol.Decode(&vd, buf)
//	if !vd.Valid() {
//	    // not our device
//	}
//
// # Command Builders
//
// Multi-byte command sequences are built with the Build* functions:
//
//	cmd := protocol.BuildNvmCmd(protocol.NvmSave)
//	frames := protocol.BuildWriteConfigFrames(cfgBytes)
//
// # Identity
//
// A genuine device answers CmdReadVendorData with VendorIDMagic and
// ProductIDMagic, and emits WelcomeString (NUL-terminated) on RTS assertion.
package protocol
