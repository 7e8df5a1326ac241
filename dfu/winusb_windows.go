//go:build windows

package dfu

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

// WinUSB and SetupAPI entry points, loaded on first use.
var (
	modsetupapi = windows.NewLazySystemDLL("setupapi.dll")
	modwinusb   = windows.NewLazySystemDLL("winusb.dll")

	procSetupDiGetClassDevsW             = modsetupapi.NewProc("SetupDiGetClassDevsW")
	procSetupDiEnumDeviceInterfaces      = modsetupapi.NewProc("SetupDiEnumDeviceInterfaces")
	procSetupDiGetDeviceInterfaceDetailW = modsetupapi.NewProc("SetupDiGetDeviceInterfaceDetailW")
	procSetupDiDestroyDeviceInfoList     = modsetupapi.NewProc("SetupDiDestroyDeviceInfoList")

	procWinUsbInitialize      = modwinusb.NewProc("WinUsb_Initialize")
	procWinUsbFree            = modwinusb.NewProc("WinUsb_Free")
	procWinUsbControlTransfer = modwinusb.NewProc("WinUsb_ControlTransfer")
)

// GUID_DEVINTERFACE_USB_DEVICE {A5DCBF10-6530-11D2-901F-00C04FB951ED}
var guidDevInterfaceUSB = windows.GUID{
	Data1: 0xA5DCBF10,
	Data2: 0x6530,
	Data3: 0x11D2,
	Data4: [8]byte{0x90, 0x1F, 0x00, 0xC0, 0x4F, 0xB9, 0x51, 0xED},
}

const (
	digcfPresent         = 0x00000002
	digcfDeviceInterface = 0x00000010
)

type spDeviceInterfaceData struct {
	cbSize             uint32
	interfaceClassGuid windows.GUID
	flags              uint32
	reserved           uintptr
}

// winusbDevice implements Device over a WinUSB file handle.
type winusbDevice struct {
	file   windows.Handle
	handle uintptr // WINUSB_INTERFACE_HANDLE
}

// Open locates the DFU-mode device (0483:DF11) through the SetupAPI device
// interface catalog and initializes a WinUSB handle on it.
func Open() (Device, error) {
	path, err := findDevicePath()
	if err != nil {
		return nil, err
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	file, err := windows.CreateFile(pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_OVERLAPPED,
		0)
	if err != nil {
		return nil, fmt.Errorf("dfu: open %s: %w", path, err)
	}

	var usbHandle uintptr
	ret, _, callErr := procWinUsbInitialize.Call(uintptr(file), uintptr(unsafe.Pointer(&usbHandle)))
	if ret == 0 {
		windows.CloseHandle(file)
		return nil, fmt.Errorf("dfu: WinUsb_Initialize: %w", callErr)
	}

	return &winusbDevice{file: file, handle: usbHandle}, nil
}

// findDevicePath scans present USB device interfaces for the DFU VID/PID
// pair embedded in the interface path.
func findDevicePath() (string, error) {
	wanted := fmt.Sprintf("vid_%04x&pid_%04x", USBVendorID, USBProductID)

	devInfo, _, err := procSetupDiGetClassDevsW.Call(
		uintptr(unsafe.Pointer(&guidDevInterfaceUSB)),
		0, 0,
		digcfPresent|digcfDeviceInterface)
	if devInfo == uintptr(windows.InvalidHandle) {
		return "", fmt.Errorf("dfu: SetupDiGetClassDevs: %w", err)
	}
	defer procSetupDiDestroyDeviceInfoList.Call(devInfo)

	for index := uint32(0); ; index++ {
		var ifData spDeviceInterfaceData
		ifData.cbSize = uint32(unsafe.Sizeof(ifData))

		ret, _, _ := procSetupDiEnumDeviceInterfaces.Call(
			devInfo, 0,
			uintptr(unsafe.Pointer(&guidDevInterfaceUSB)),
			uintptr(index),
			uintptr(unsafe.Pointer(&ifData)))
		if ret == 0 {
			return "", ErrDeviceNotFound
		}

		path, err := deviceInterfacePath(devInfo, &ifData)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(path), wanted) {
			return path, nil
		}
	}
}

// deviceInterfacePath fetches the \\?\usb#... path for one interface.
func deviceInterfacePath(devInfo uintptr, ifData *spDeviceInterfaceData) (string, error) {
	var required uint32
	procSetupDiGetDeviceInterfaceDetailW.Call(
		devInfo,
		uintptr(unsafe.Pointer(ifData)),
		0, 0,
		uintptr(unsafe.Pointer(&required)),
		0)
	if required == 0 {
		return "", fmt.Errorf("dfu: interface detail size query failed")
	}

	// SP_DEVICE_INTERFACE_DETAIL_DATA_W: cbSize then the path buffer.
	buf := make([]byte, required)
	cbSize := uint32(6)
	if unsafe.Sizeof(uintptr(0)) == 8 {
		cbSize = 8
	}
	binary.LittleEndian.PutUint32(buf, cbSize)

	ret, _, callErr := procSetupDiGetDeviceInterfaceDetailW.Call(
		devInfo,
		uintptr(unsafe.Pointer(ifData)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(required),
		0, 0)
	if ret == 0 {
		return "", fmt.Errorf("dfu: SetupDiGetDeviceInterfaceDetail: %w", callErr)
	}

	pathWords := unsafe.Slice((*uint16)(unsafe.Pointer(&buf[4])), (len(buf)-4)/2)
	return windows.UTF16ToString(pathWords), nil
}

// ControlTransfer issues one control transfer on the default pipe.
func (d *winusbDevice) ControlTransfer(requestType, request byte, value, index uint16, data []byte) (int, error) {
	// WINUSB_SETUP_PACKET is an 8-byte by-value struct; packed into one
	// word for the syscall.
	var setup [8]byte
	setup[0] = requestType
	setup[1] = request
	binary.LittleEndian.PutUint16(setup[2:], value)
	binary.LittleEndian.PutUint16(setup[4:], index)
	binary.LittleEndian.PutUint16(setup[6:], uint16(len(data)))
	packet := binary.LittleEndian.Uint64(setup[:])

	var bufPtr uintptr
	if len(data) > 0 {
		bufPtr = uintptr(unsafe.Pointer(&data[0]))
	}

	var transferred uint32
	ret, _, callErr := procWinUsbControlTransfer.Call(
		d.handle,
		uintptr(packet),
		bufPtr,
		uintptr(len(data)),
		uintptr(unsafe.Pointer(&transferred)),
		0)
	if ret == 0 {
		return 0, fmt.Errorf("dfu: control transfer (req 0x%02X): %w", request, callErr)
	}
	return int(transferred), nil
}

// Close frees the WinUSB handle and the underlying file handle.
func (d *winusbDevice) Close() error {
	procWinUsbFree.Call(d.handle)
	return windows.CloseHandle(d.file)
}
