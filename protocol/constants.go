package protocol

// ProtocolVersion is the revision of the serial protocol as implemented by
// the constants in this file.
const ProtocolVersion = "2.1"

// Command opcodes. Each command is a single opcode byte optionally followed
// by little-endian operands; the response is a fixed-size packed record whose
// length the host knows per opcode. There is no framing or checksum.
//
// The opcode values are defined by this library; they are not taken from a
// firmware header.
const (
	// CmdWelcome requests the welcome banner (also emitted on RTS assert)
	CmdWelcome = 0x57

	// CmdReadVendorData reads the VendorData identification record
	CmdReadVendorData = 0x10

	// CmdReadUID reads the 12-byte unique device identifier
	CmdReadUID = 0x11

	// CmdReadSensorValues reads one SensorValues telemetry snapshot
	CmdReadSensorValues = 0x20

	// CmdReadBuildInfo reads the BuildInfo record (firmware build string)
	CmdReadBuildInfo = 0x21

	// CmdReadConfig reads the full DeviceConfig record
	CmdReadConfig = 0x30

	// CmdWriteConfig writes one DeviceConfig frame (opcode, offset, payload)
	CmdWriteConfig = 0x31

	// CmdNvmConfig executes a non-volatile memory sub-command.
	// Must be followed by the 4 magic bytes and the sub-command.
	CmdNvmConfig = 0x32

	// CmdScreenChange executes a screen sub-command
	CmdScreenChange = 0x40

	// CmdClearFaults clears latched faults (two u16 LE masks follow)
	CmdClearFaults = 0x41

	// CmdBootloader reboots the device into the DFU bootloader
	CmdBootloader = 0xB0
)

// NVM sub-commands for CmdNvmConfig.
const (
	// NvmSave persists the active configuration to flash
	NvmSave = 0x01

	// NvmLoad reloads the configuration from flash
	NvmLoad = 0x02

	// NvmReset restores the factory configuration
	NvmReset = 0x03
)

// NvmMagic guards CmdNvmConfig against accidental invocation. The four bytes
// are transmitted between the opcode and the sub-command.
var NvmMagic = [4]byte{0x55, 0xAA, 0x55, 0xAA}

// Screen sub-commands for CmdScreenChange.
const (
	// ScreenResumeUpdates resumes on-device display refresh
	ScreenResumeUpdates = 0x01

	// ScreenPauseUpdates pauses on-device display refresh
	ScreenPauseUpdates = 0x02

	// ScreenNextPage advances the on-device display one page
	ScreenNextPage = 0x03
)

// Device identification.
const (
	// VendorIDMagic is the VendorData vendor byte of a genuine device
	VendorIDMagic = 0xEF

	// ProductIDMagic is the VendorData product byte of a genuine device
	ProductIDMagic = 0x05

	// USBVendorID is the USB vendor id in serial (CDC) mode
	USBVendorID = 0x0483

	// USBProductID is the USB product id in serial (CDC) mode
	USBProductID = 0x5740
)

// WelcomeString is the ASCII banner the device emits on RTS assertion or in
// response to CmdWelcome. On the wire it is followed by a single NUL byte.
const WelcomeString = "Thermal Grizzly WireView Pro II"

// WelcomeSize is the number of bytes read during the welcome handshake:
// the banner plus its terminating NUL.
const WelcomeSize = len(WelcomeString) + 1

// Fixed wire sizes of the packed records.
const (
	// VendorDataSize is the wire size of VendorData
	VendorDataSize = 4

	// UniqueIDSize is the wire size of UniqueID
	UniqueIDSize = 12

	// SensorValuesSize is the wire size of SensorValues
	SensorValuesSize = 37

	// BuildInfoSize is the wire size of BuildInfo
	BuildInfoSize = 32

	// DeviceConfigSize is the wire size of DeviceConfig
	DeviceConfigSize = 125
)

// Channel counts of the telemetry record.
const (
	// TemperatureChannels is the number of temperature sensors
	TemperatureChannels = 4

	// PinChannels is the number of voltage/current monitor channels
	PinChannels = 6
)

// WriteConfig framing. DeviceConfig is transmitted in frames of at most
// WriteConfigFrameSize bytes: opcode, u8 byte offset, then up to
// WriteConfigChunkSize payload bytes.
const (
	// WriteConfigFrameSize is the maximum size of one WriteConfig frame
	WriteConfigFrameSize = 64

	// WriteConfigHeaderSize is the opcode + offset header of each frame
	WriteConfigHeaderSize = 2

	// WriteConfigChunkSize is the maximum payload per frame
	WriteConfigChunkSize = WriteConfigFrameSize - WriteConfigHeaderSize
)
