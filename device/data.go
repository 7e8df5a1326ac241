package device

import (
	"time"

	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/protocol"
)

// Identity describes a connected device. Populated on a successful
// handshake, cleared on disconnect.
type Identity struct {
	// HardwareRevision is the vendor/product byte pair as hex, e.g. "EF05"
	HardwareRevision string

	// FirmwareVersion is the running firmware revision
	FirmwareVersion uint16

	// UniqueID is the 12-byte device id as 24 uppercase hex digits
	UniqueID string
}

// Data is one telemetry snapshot in engineering units, as delivered to
// DataUpdated subscribers.
type Data struct {
	// Connected reflects the session state at capture time
	Connected bool

	// HardwareRevision and FirmwareVersion mirror the session identity
	HardwareRevision string
	FirmwareVersion  uint16

	// OnboardTempInC and OnboardTempOutC are the wire-side inlet/outlet
	// sensors; the aux channels are the external probe headers. All °C.
	OnboardTempInC  float64
	OnboardTempOutC float64
	AuxTemp1C       float64
	AuxTemp2C       float64

	// PinVoltages and PinCurrents are the six monitor channels in volts
	// and amps
	PinVoltages [protocol.PinChannels]float64
	PinCurrents [protocol.PinChannels]float64

	// PsuCapabilityW is the advertised PSU capability in watts (0 when
	// not detected)
	PsuCapabilityW int

	// FaultStatus and FaultLog are the raw fault bitmasks
	FaultStatus uint16
	FaultLog    uint16

	// Timestamp is the host capture time (UTC)
	Timestamp time.Time
}

// dataFromSensors converts a decoded telemetry record to engineering units.
func dataFromSensors(id Identity, sv *protocol.SensorValues, now time.Time) Data {
	d := Data{
		Connected:        true,
		HardwareRevision: id.HardwareRevision,
		FirmwareVersion:  id.FirmwareVersion,
		OnboardTempInC:   float64(sv.TemperaturesDeci[0]) / 10,
		OnboardTempOutC:  float64(sv.TemperaturesDeci[1]) / 10,
		AuxTemp1C:        float64(sv.TemperaturesDeci[2]) / 10,
		AuxTemp2C:        float64(sv.TemperaturesDeci[3]) / 10,
		PsuCapabilityW:   protocol.CapabilityWatts(sv.HpwrCapability),
		FaultStatus:      sv.FaultStatus,
		FaultLog:         sv.FaultLog,
		Timestamp:        now.UTC(),
	}
	for i, p := range sv.Pins {
		d.PinVoltages[i] = float64(p.VoltageMilli) / 1000
		d.PinCurrents[i] = float64(p.CurrentMilli) / 1000
	}
	return d
}
