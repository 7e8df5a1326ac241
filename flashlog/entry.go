package flashlog

import "time"

// Tag is the 2-bit entry discriminator in the header word's low bits.
type Tag byte

// Entry tags.
const (
	// TagMCUTick marks a telemetry sample stamped with the MCU tick counter
	TagMCUTick Tag = 0

	// TagSystemTime marks a wall-clock rebase entry
	TagSystemTime Tag = 1

	// TagPowerOn marks a device power cycle
	TagPowerOn Tag = 2

	// TagEmpty is erased flash (0xFF bytes decode to this tag)
	TagEmpty Tag = 3
)

// Log geometry.
const (
	// EntrySize is the packed size of one log entry:
	// u32 header + 4 temperature bytes + 6 voltage/current byte pairs +
	// 1 HpwrSense byte.
	EntrySize = 21

	// PageSize is the flash page alignment unit. Entries never straddle a
	// page boundary; a slot that would is invalid and skipped.
	PageSize = 256

	// EmptyRunLimit is the end-of-data sentinel: this many consecutive
	// empty tags after the first valid entry terminate parsing.
	EmptyRunLimit = 32

	// MaxHpwrSense is the largest valid HpwrSense value; entries with a
	// larger value are corrupt and skipped.
	MaxHpwrSense = 3
)

// TickDuration is the period of the device's monotonic tick counter.
const TickDuration = 4 * time.Millisecond

// tickMask masks tick deltas to the 30-bit counter width.
const tickMask = 1<<30 - 1

// Epoch is the deterministic starting point of the reconstructed clock.
// A system-time entry in the log rebases from here; power-on entries and
// tick wraparound advance it.
var Epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// PinCount is the number of voltage/current monitor channels per entry.
const PinCount = 6

// Record is one decoded telemetry sample with its reconstructed UTC
// timestamp.
type Record struct {
	// Timestamp is the reconstructed UTC capture time
	Timestamp time.Time

	// Tick is the raw 30-bit MCU tick counter value
	Tick uint32

	// TemperaturesC are the temperature channels in °C
	TemperaturesC [4]float64

	// PinVoltages are the monitor channel voltages in volts
	PinVoltages [PinCount]float64

	// PinCurrents are the monitor channel currents in amps
	PinCurrents [PinCount]float64

	// HpwrSense is the raw 2-bit PSU sense-pin state
	HpwrSense byte
}

// decodeRecord unpacks the body of a tick entry. The slice must hold a full
// entry; the header has already been consumed by the caller.
func decodeRecord(e []byte, tick uint32, ts time.Time) Record {
	r := Record{
		Timestamp: ts,
		Tick:      tick,
		HpwrSense: e[20],
	}
	for i := 0; i < 4; i++ {
		r.TemperaturesC[i] = float64(int8(e[4+i]))
	}
	for i := 0; i < PinCount; i++ {
		r.PinVoltages[i] = float64(e[8+2*i]) / 10
		r.PinCurrents[i] = float64(e[9+2*i]) / 10
	}
	return r
}
