package protocol

import "fmt"

// SizeError reports a packed buffer whose length does not match the record's
// wire size.
type SizeError struct {
	// Record is the record type name
	Record string

	// Want is the expected wire size in bytes
	Want int

	// Got is the actual buffer length
	Got int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s: buffer is %d bytes, wire size is %d", e.Record, e.Got, e.Want)
}

// ProtocolError reports an unexpected value inside a successfully read
// record, such as a field outside its firmware-defined range.
type ProtocolError struct {
	// Record is the record type name
	Record string

	// Field is the offending field
	Field string

	// Value is the decoded value
	Value uint32
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s.%s: unexpected value 0x%X", e.Record, e.Field, e.Value)
}
