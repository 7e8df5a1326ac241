package flashlog

import (
	"encoding/binary"
	"time"
)

// headerSize is the size of the 32-bit header word that marker entries
// consist of entirely.
const headerSize = 4

// Parse decodes a contiguous dump of the flash log region into timestamped
// records.
//
// The walk advances one byte at a time over erased flash, one header word
// over marker entries, and one full entry over telemetry slots, so it
// resynchronizes after partially written data. Parsing stops at the end of
// the buffer or once EmptyRunLimit consecutive empty tags follow the first
// valid entry.
func Parse(buf []byte) []Record {
	var out []Record

	base := Epoch
	var lastTick uint32
	emptyRun := 0

	for o := 0; o+EntrySize <= len(buf); {
		// A telemetry slot never straddles a flash page. Once real entries
		// have been seen, a slot that would cross the boundary means the
		// rest of the page is dead; resume at the next page.
		if len(out) > 0 && o%PageSize > PageSize-EntrySize {
			o += PageSize - o%PageSize
			continue
		}

		header := binary.LittleEndian.Uint32(buf[o:])
		tag := Tag(header & 0x3)
		value := header >> 2

		switch tag {
		case TagEmpty:
			o++
			if len(out) > 0 {
				emptyRun++
				if emptyRun >= EmptyRunLimit {
					return out
				}
			}

		case TagSystemTime:
			// Wall-clock rebase: the value is seconds since Epoch as set
			// by the host before logging started. Zero means the device
			// never learned the time. Markers are complete header words;
			// stepping into one would misread its remaining bytes.
			if value != 0 {
				base = Epoch.Add(time.Duration(value) * time.Second)
			}
			o += headerSize

		case TagPowerOn:
			base = base.Add(24 * time.Hour)
			o += headerSize

		case TagMCUTick:
			if value == 0 {
				o += EntrySize
				continue
			}
			if value < lastTick {
				// Tick went backwards: the device power cycled without
				// writing a power-on marker.
				base = base.Add(24 * time.Hour)
			}
			delta := (value - lastTick) & tickMask
			lastTick = value
			base = base.Add(time.Duration(delta) * TickDuration)

			entry := buf[o : o+EntrySize]
			if entry[20] > MaxHpwrSense {
				// Corrupt slot.
				o += EntrySize
				continue
			}
			out = append(out, decodeRecord(entry, value, base))
			emptyRun = 0
			o += EntrySize
		}
	}

	return out
}
