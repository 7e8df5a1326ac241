package fwimage

import "fmt"

// FlashBase is the load address assumed for flat binary payloads.
const FlashBase = 0x08000000

// Segment is one contiguous block of firmware to program.
type Segment struct {
	// Addr is the target flash address
	Addr uint32

	// Data is the segment contents
	Data []byte
}

// Image is a parsed firmware payload.
type Image struct {
	// Segments to program, sorted by ascending address
	Segments []Segment

	// ELF reports whether the payload was an ELF executable
	// (false: flat binary)
	ELF bool
}

// TotalSize returns the number of firmware bytes across all segments.
func (img *Image) TotalSize() int {
	total := 0
	for _, s := range img.Segments {
		total += len(s.Data)
	}
	return total
}

// FormatError reports a payload carrying the ELF magic that cannot be
// parsed as a valid 32-bit little-endian executable.
type FormatError struct {
	// Reason describes what was malformed
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid firmware image: %s", e.Reason)
}
