package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// VendorData is the device identification record returned by
// CmdReadVendorData. A genuine device reports VendorID=VendorIDMagic and
// ProductID=ProductIDMagic; anything else fails the handshake.
type VendorData struct {
	// VendorID is the firmware vendor byte (VendorIDMagic on a real device)
	VendorID byte

	// ProductID is the firmware product byte (ProductIDMagic on a real device)
	ProductID byte

	// FirmwareVersion is the running firmware revision
	FirmwareVersion uint16
}

// WireSize returns the packed size of VendorData.
func (*VendorData) WireSize() int { return VendorDataSize }

// MarshalBinary encodes the record into its packed little-endian layout.
func (v *VendorData) MarshalBinary() ([]byte, error) {
	buf := make([]byte, VendorDataSize)
	buf[0] = v.VendorID
	buf[1] = v.ProductID
	binary.LittleEndian.PutUint16(buf[2:], v.FirmwareVersion)
	return buf, nil
}

// UnmarshalBinary decodes the packed little-endian layout.
func (v *VendorData) UnmarshalBinary(data []byte) error {
	if len(data) != VendorDataSize {
		return &SizeError{Record: "VendorData", Want: VendorDataSize, Got: len(data)}
	}
	v.VendorID = data[0]
	v.ProductID = data[1]
	v.FirmwareVersion = binary.LittleEndian.Uint16(data[2:])
	return nil
}

// Valid reports whether the record identifies a genuine device.
func (v *VendorData) Valid() bool {
	return v.VendorID == VendorIDMagic && v.ProductID == ProductIDMagic
}

// HardwareRevision renders the vendor/product byte pair as four uppercase
// hex digits, e.g. "EF05".
func (v *VendorData) HardwareRevision() string {
	return fmt.Sprintf("%02X%02X", v.VendorID, v.ProductID)
}

// UniqueID is the 12-byte factory-programmed device identifier returned by
// CmdReadUID.
type UniqueID struct {
	ID [UniqueIDSize]byte
}

// WireSize returns the packed size of UniqueID.
func (*UniqueID) WireSize() int { return UniqueIDSize }

// MarshalBinary encodes the record.
func (u *UniqueID) MarshalBinary() ([]byte, error) {
	buf := make([]byte, UniqueIDSize)
	copy(buf, u.ID[:])
	return buf, nil
}

// UnmarshalBinary decodes the record.
func (u *UniqueID) UnmarshalBinary(data []byte) error {
	if len(data) != UniqueIDSize {
		return &SizeError{Record: "UniqueID", Want: UniqueIDSize, Got: len(data)}
	}
	copy(u.ID[:], data)
	return nil
}

// String renders the identifier as 24 uppercase hex digits.
func (u *UniqueID) String() string {
	return fmt.Sprintf("%X", u.ID[:])
}

// PinReading is one channel of the six-channel voltage/current monitor,
// in raw firmware units.
type PinReading struct {
	// VoltageMilli is the channel voltage in millivolts
	VoltageMilli uint16

	// CurrentMilli is the channel current in milliamps
	CurrentMilli uint16
}

// SensorValues is one telemetry snapshot returned by CmdReadSensorValues.
// The packed byte layout matches the firmware struct exactly.
type SensorValues struct {
	// TemperaturesDeci are the temperature channels in tenths of a °C
	TemperaturesDeci [TemperatureChannels]int16

	// Pins are the voltage/current monitor channels
	Pins [PinChannels]PinReading

	// HpwrCapability encodes the attached PSU capability (see CapabilityWatts)
	HpwrCapability byte

	// FaultStatus is the live fault bitmask
	FaultStatus uint16

	// FaultLog is the latched fault bitmask
	FaultLog uint16
}

// WireSize returns the packed size of SensorValues.
func (*SensorValues) WireSize() int { return SensorValuesSize }

// MarshalBinary encodes the record into its packed little-endian layout.
func (s *SensorValues) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SensorValuesSize)
	o := 0
	for _, t := range s.TemperaturesDeci {
		binary.LittleEndian.PutUint16(buf[o:], uint16(t))
		o += 2
	}
	for _, p := range s.Pins {
		binary.LittleEndian.PutUint16(buf[o:], p.VoltageMilli)
		binary.LittleEndian.PutUint16(buf[o+2:], p.CurrentMilli)
		o += 4
	}
	buf[o] = s.HpwrCapability
	o++
	binary.LittleEndian.PutUint16(buf[o:], s.FaultStatus)
	binary.LittleEndian.PutUint16(buf[o+2:], s.FaultLog)
	return buf, nil
}

// UnmarshalBinary decodes the packed little-endian layout.
func (s *SensorValues) UnmarshalBinary(data []byte) error {
	if len(data) != SensorValuesSize {
		return &SizeError{Record: "SensorValues", Want: SensorValuesSize, Got: len(data)}
	}
	o := 0
	for i := range s.TemperaturesDeci {
		s.TemperaturesDeci[i] = int16(binary.LittleEndian.Uint16(data[o:]))
		o += 2
	}
	for i := range s.Pins {
		s.Pins[i].VoltageMilli = binary.LittleEndian.Uint16(data[o:])
		s.Pins[i].CurrentMilli = binary.LittleEndian.Uint16(data[o+2:])
		o += 4
	}
	s.HpwrCapability = data[o]
	o++
	s.FaultStatus = binary.LittleEndian.Uint16(data[o:])
	s.FaultLog = binary.LittleEndian.Uint16(data[o+2:])
	return nil
}

// CapabilityWatts maps an HpwrCapability byte to the advertised PSU
// capability in watts. Values outside the firmware table map to 0.
func CapabilityWatts(capability byte) int {
	switch capability {
	case 2:
		return 150
	case 3:
		return 300
	case 4:
		return 450
	case 5:
		return 600
	default:
		return 0
	}
}

// BuildInfo is the firmware build string record returned by
// CmdReadBuildInfo: NUL-padded ASCII in a fixed slot.
type BuildInfo struct {
	Raw [BuildInfoSize]byte
}

// WireSize returns the packed size of BuildInfo.
func (*BuildInfo) WireSize() int { return BuildInfoSize }

// MarshalBinary encodes the record.
func (b *BuildInfo) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BuildInfoSize)
	copy(buf, b.Raw[:])
	return buf, nil
}

// UnmarshalBinary decodes the record.
func (b *BuildInfo) UnmarshalBinary(data []byte) error {
	if len(data) != BuildInfoSize {
		return &SizeError{Record: "BuildInfo", Want: BuildInfoSize, Got: len(data)}
	}
	copy(b.Raw[:], data)
	return nil
}

// String returns the build string with NUL padding stripped.
func (b *BuildInfo) String() string {
	s := b.Raw[:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(string(s), "\x00")
}

// DeviceConfig is the device configuration record. The layout is defined by
// the firmware and treated as opaque by the host; it round-trips
// byte-for-byte through ReadConfig/WriteConfig when unchanged.
type DeviceConfig struct {
	Raw [DeviceConfigSize]byte
}

// WireSize returns the packed size of DeviceConfig.
func (*DeviceConfig) WireSize() int { return DeviceConfigSize }

// MarshalBinary encodes the record.
func (c *DeviceConfig) MarshalBinary() ([]byte, error) {
	buf := make([]byte, DeviceConfigSize)
	copy(buf, c.Raw[:])
	return buf, nil
}

// UnmarshalBinary decodes the record.
func (c *DeviceConfig) UnmarshalBinary(data []byte) error {
	if len(data) != DeviceConfigSize {
		return &SizeError{Record: "DeviceConfig", Want: DeviceConfigSize, Got: len(data)}
	}
	copy(c.Raw[:], data)
	return nil
}
