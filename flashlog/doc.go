// Package flashlog decodes the device's on-board binary log.
//
// The log region is a sequence of fixed-size packed entries in 256-byte
// flash pages. Each entry starts with a 32-bit little-endian header word
// holding a 2-bit tag in the low bits and a 30-bit value in the high bits:
//
//	tag 0 (MCU tick):    a telemetry sample; the value is the device's 4 ms
//	                     monotonic tick counter at capture time
//	tag 1 (system time): wall-clock rebase marker
//	tag 2 (power on):    device power cycle marker
//	tag 3 (empty):       erased flash; a long run marks end of data
//
// Parse walks a dump of the region, reconstructs UTC timestamps from the
// tick arithmetic, and returns the decoded samples:
//
//	records := flashlog.Parse(dump)
//	for _, r := range records {
//	    fmt.Printf("%s %.1f °C %.1f V\n", r.Timestamp, r.TemperaturesC[0], r.PinVoltages[0])
//	}
//
// Parsing is offline and deterministic: without a system-time marker the
// clock starts at Epoch.
package flashlog
