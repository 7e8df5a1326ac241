package protocol

import "fmt"

// Record is implemented by every packed wire record. The packed layout is
// little-endian with no padding; WireSize is a compile-time constant per
// concrete type and MarshalBinary always produces exactly that many bytes.
type Record interface {
	WireSize() int
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// Encode packs a record into its wire layout. The returned slice length
// always equals the record's WireSize.
func Encode[T Record](v T) ([]byte, error) {
	buf, err := v.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if len(buf) != v.WireSize() {
		return nil, fmt.Errorf("encode %T: produced %d bytes, wire size is %d", v, len(buf), v.WireSize())
	}
	return buf, nil
}

// Decode unpacks a wire buffer into a record. The buffer length must equal
// the record's WireSize exactly.
func Decode[T Record](v T, data []byte) error {
	if len(data) != v.WireSize() {
		return &SizeError{Record: fmt.Sprintf("%T", v), Want: v.WireSize(), Got: len(data)}
	}
	return v.UnmarshalBinary(data)
}

// BuildNvmCmd builds the 6-byte non-volatile memory command sequence:
// opcode, the 4 magic guard bytes, then the sub-command.
func BuildNvmCmd(sub byte) []byte {
	cmd := make([]byte, 0, 6)
	cmd = append(cmd, CmdNvmConfig)
	cmd = append(cmd, NvmMagic[:]...)
	cmd = append(cmd, sub)
	return cmd
}

// BuildScreenCmd builds the 2-byte screen command sequence.
func BuildScreenCmd(sub byte) []byte {
	return []byte{CmdScreenChange, sub}
}

// BuildClearFaultsCmd builds the clear-faults command: opcode followed by the
// status mask and the log mask, each little-endian.
func BuildClearFaultsCmd(statusMask, logMask uint16) []byte {
	return []byte{
		CmdClearFaults,
		byte(statusMask), byte(statusMask >> 8),
		byte(logMask), byte(logMask >> 8),
	}
}

// BuildWriteConfigFrames splits an encoded DeviceConfig into wire frames.
// Each frame is opcode, u8 byte offset, then up to WriteConfigChunkSize
// payload bytes; frames iterate until the payload is exhausted.
func BuildWriteConfigFrames(cfg []byte) [][]byte {
	var frames [][]byte
	for off := 0; off < len(cfg); off += WriteConfigChunkSize {
		end := off + WriteConfigChunkSize
		if end > len(cfg) {
			end = len(cfg)
		}
		frame := make([]byte, 0, WriteConfigHeaderSize+end-off)
		frame = append(frame, CmdWriteConfig, byte(off))
		frame = append(frame, cfg[off:end]...)
		frames = append(frames, frame)
	}
	return frames
}
