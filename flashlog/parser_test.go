package flashlog

import (
	"encoding/binary"
	"testing"
	"time"
)

// tickEntry builds a full telemetry entry with the given tick and sense.
func tickEntry(tick uint32, sense byte) []byte {
	e := make([]byte, EntrySize)
	binary.LittleEndian.PutUint32(e, tick<<2|uint32(TagMCUTick))
	e[4] = 23  // 23 °C
	e[5] = 41  // 41 °C
	e[8] = 120 // 12.0 V
	e[9] = 5   // 0.5 A
	e[20] = sense
	return e
}

// markerEntry builds the complete 32-bit marker word firmware writes for
// non-telemetry tags.
func markerEntry(tag Tag, value uint32) []byte {
	e := make([]byte, 4)
	binary.LittleEndian.PutUint32(e, value<<2|uint32(tag))
	return e
}

func empties(n int) []byte {
	e := make([]byte, n)
	for i := range e {
		e[i] = 0xFF
	}
	return e
}

func TestParseSingleEntry(t *testing.T) {
	// One sample at tick 250 (1000 ms after base) followed by the erased
	// remainder of the log.
	var buf []byte
	buf = append(buf, tickEntry(250, 1)...)
	buf = append(buf, empties(64)...)

	records := Parse(buf)
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}

	r := records[0]
	if want := Epoch.Add(time.Second); !r.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", r.Timestamp, want)
	}
	if r.HpwrSense != 1 {
		t.Errorf("HpwrSense = %d, want 1", r.HpwrSense)
	}
	if r.TemperaturesC[0] != 23 || r.TemperaturesC[1] != 41 {
		t.Errorf("temperatures = %v", r.TemperaturesC)
	}
	if r.PinVoltages[0] != 12.0 || r.PinCurrents[0] != 0.5 {
		t.Errorf("pin 0 = %v V / %v A, want 12.0 / 0.5", r.PinVoltages[0], r.PinCurrents[0])
	}
}

func TestParseEmptySentinel(t *testing.T) {
	// A valid prefix followed by a long erased run returns exactly the
	// prefix, even if more entries follow the run.
	var buf []byte
	buf = append(buf, tickEntry(10, 0)...)
	buf = append(buf, tickEntry(20, 0)...)
	buf = append(buf, empties(EmptyRunLimit)...)
	buf = append(buf, tickEntry(30, 0)...)

	records := Parse(buf)
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
}

func TestParseLeadingEmptiesDoNotTerminate(t *testing.T) {
	// Erased flash before the first entry is walked through without
	// arming the end-of-data sentinel.
	var buf []byte
	buf = append(buf, empties(EmptyRunLimit*2)...)
	buf = append(buf, tickEntry(10, 0)...)
	buf = append(buf, empties(EmptyRunLimit)...)

	records := Parse(buf)
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
}

func TestParseTimestampsMonotonic(t *testing.T) {
	var buf []byte
	ticks := []uint32{5, 250, 251, 1000, 100000}
	for _, tk := range ticks {
		buf = append(buf, tickEntry(tk, 0)...)
	}
	buf = append(buf, empties(EmptyRunLimit)...)

	records := Parse(buf)
	if len(records) != len(ticks) {
		t.Fatalf("record count = %d, want %d", len(records), len(ticks))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.Before(records[i-1].Timestamp) {
			t.Errorf("timestamp %d (%v) before %d (%v)",
				i, records[i].Timestamp, i-1, records[i-1].Timestamp)
		}
	}
	// 250 ticks at 4 ms.
	if want := Epoch.Add(time.Duration(250) * 4 * time.Millisecond); !records[1].Timestamp.Equal(want) {
		t.Errorf("records[1] timestamp = %v, want %v", records[1].Timestamp, want)
	}
}

func TestParseTickWraparound(t *testing.T) {
	// A tick counter near the 30-bit limit wrapping to a small value is a
	// power cycle (+1 day) plus the mod-2^30 delta.
	nearMax := uint32(1<<30 - 100)
	var buf []byte
	buf = append(buf, tickEntry(nearMax, 0)...)
	buf = append(buf, tickEntry(50, 0)...)
	buf = append(buf, empties(EmptyRunLimit)...)

	records := Parse(buf)
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}

	first := Epoch.Add(time.Duration(nearMax) * TickDuration)
	if !records[0].Timestamp.Equal(first) {
		t.Fatalf("records[0] timestamp = %v, want %v", records[0].Timestamp, first)
	}
	delta := (uint32(50) - nearMax) & tickMask // 150 ticks
	want := first.Add(24 * time.Hour).Add(time.Duration(delta) * TickDuration)
	if !records[1].Timestamp.Equal(want) {
		t.Errorf("records[1] timestamp = %v, want %v", records[1].Timestamp, want)
	}
}

func TestParsePowerOnMarker(t *testing.T) {
	var buf []byte
	buf = append(buf, tickEntry(100, 0)...)
	buf = append(buf, markerEntry(TagPowerOn, 0)...)
	buf = append(buf, tickEntry(200, 0)...)
	buf = append(buf, empties(EmptyRunLimit)...)

	records := Parse(buf)
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
	gap := records[1].Timestamp.Sub(records[0].Timestamp)
	want := 24*time.Hour + 100*TickDuration
	if gap != want {
		t.Errorf("gap = %v, want %v", gap, want)
	}
}

func TestParseSystemTimeRebase(t *testing.T) {
	// A system-time marker pins the clock absolutely; the next sample is
	// offset from the rebased value by its tick delta.
	const wallSeconds = 3600 * 24 * 30 // 30 days past the epoch
	var buf []byte
	buf = append(buf, markerEntry(TagSystemTime, wallSeconds)...)
	buf = append(buf, tickEntry(250, 0)...)
	buf = append(buf, empties(EmptyRunLimit)...)

	records := Parse(buf)
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	want := Epoch.Add(wallSeconds * time.Second).Add(time.Second)
	if !records[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", records[0].Timestamp, want)
	}
}

func TestParseSkipsCorruptEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry []byte
	}{
		{name: "hpwr sense out of range", entry: tickEntry(500, 4)},
		{name: "zero tick", entry: tickEntry(0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf []byte
			buf = append(buf, tickEntry(100, 0)...)
			buf = append(buf, tt.entry...)
			buf = append(buf, tickEntry(1000, 0)...)
			buf = append(buf, empties(EmptyRunLimit)...)

			records := Parse(buf)
			if len(records) != 2 {
				t.Fatalf("record count = %d, want 2", len(records))
			}
			for _, r := range records {
				if r.HpwrSense > MaxHpwrSense {
					t.Errorf("corrupt entry emitted: %+v", r)
				}
			}
		})
	}
}

func TestParsePageStraddleSkipped(t *testing.T) {
	// Fill the first page with 12 entries (252 bytes). The next slot at
	// offset 252 would cross the page boundary; firmware starts the next
	// entry on the next page and the parser must do the same even if the
	// dead gap contains non-empty garbage.
	var buf []byte
	for i := 1; i <= 12; i++ {
		buf = append(buf, tickEntry(uint32(i*10), 0)...)
	}
	buf = append(buf, []byte{0xDE, 0xAD, 0xBE, 0xEF}...) // gap: offsets 252..255
	if len(buf) != PageSize {
		t.Fatalf("test layout broken: page is %d bytes", len(buf))
	}
	buf = append(buf, tickEntry(130, 0)...)
	buf = append(buf, empties(EmptyRunLimit)...)

	records := Parse(buf)
	if len(records) != 13 {
		t.Fatalf("record count = %d, want 13", len(records))
	}
	if records[12].Tick != 130 {
		t.Errorf("record after page break has tick %d, want 130", records[12].Tick)
	}
}

func TestParseShortBuffer(t *testing.T) {
	if records := Parse(nil); len(records) != 0 {
		t.Errorf("Parse(nil) = %d records", len(records))
	}
	if records := Parse(make([]byte, EntrySize-1)); len(records) != 0 {
		t.Errorf("Parse(short) = %d records", len(records))
	}
}
