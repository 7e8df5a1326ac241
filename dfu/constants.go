package dfu

// USB identity of the device in DFU (bootloader) mode.
const (
	// USBVendorID is the DFU-mode USB vendor id
	USBVendorID = 0x0483

	// USBProductID is the DFU-mode USB product id
	USBProductID = 0xDF11
)

// DFU class requests per the USB DFU 1.1 specification.
const (
	reqDetach    = 0
	reqDnload    = 1
	reqUpload    = 2
	reqGetStatus = 3
	reqClrStatus = 4
	reqGetState  = 5
	reqAbort     = 6
)

// Control request-type bytes: direction (bit 7) | type | recipient.
// DFU requests are class+interface; descriptor reads are standard+interface.
const (
	requestTypeClassOut   = 0x21 // host-to-device, class, interface
	requestTypeClassIn    = 0xA1 // device-to-host, class, interface
	requestTypeStandardIn = 0x81 // device-to-host, standard, interface
	requestGetDescriptor  = 6
	dfuFunctionalDescType = 0x21
	dfuFunctionalDescSize = 9
	dfuInterfaceNumber    = 0
)

// DFU device states from the GETSTATUS reply.
const (
	stateAppIdle           = 0
	stateAppDetach         = 1
	stateDfuIdle           = 2
	stateDnloadSync        = 3
	stateDnBusy            = 4
	stateDnloadIdle        = 5
	stateManifestSync      = 6
	stateManifest          = 7
	stateManifestWaitReset = 8
	stateUploadIdle        = 9
	stateError             = 10
)

// GETSTATUS reply layout: bStatus, bwPollTimeout (3 bytes LE), bState,
// iString.
const statusReplySize = 6

// DfuSe extension commands, sent as the payload of a DNLOAD to block 0.
const (
	// dfuseSetAddressPointer sets the flash address for subsequent data
	// blocks; followed by the address as 4 bytes little-endian.
	dfuseSetAddressPointer = 0x21

	// dfuseErase erases the page containing the given address
	dfuseErase = 0x41
)

// Data block numbering per DfuSe: block 0 carries commands, block 1 is
// reserved, data starts at block 2. The address of data block n is
// AddressPointer + (n-2)*wTransferSize.
const firstDataBlock = 2

// Transfer size bounds. The device reports its preferred wTransferSize in
// the DFU functional descriptor; the value is clamped to this range.
const (
	// MinTransferSize is the smallest usable download chunk
	MinTransferSize = 64

	// MaxTransferSize is the largest download chunk the host will use
	MaxTransferSize = 4096
)
