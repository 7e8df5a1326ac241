package serialport

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/protocol"
)

// USB identifiers in the 4-hex-digit form the enumerator reports.
var (
	vidString = fmt.Sprintf("%04X", protocol.USBVendorID)
	pidString = fmt.Sprintf("%04X", protocol.USBProductID)
)

// ListCandidatePorts returns the names of serial ports whose USB identifiers
// match the device (VID 0483, PID 5740), in enumeration order. It never
// fails: any OS query error yields an empty list.
func ListCandidatePorts() []string {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil
	}

	var names []string
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if strings.EqualFold(p.VID, vidString) && strings.EqualFold(p.PID, pidString) {
			names = append(names, p.Name)
		}
	}
	return names
}
