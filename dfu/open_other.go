//go:build !windows

package dfu

// Open is only implemented for Windows hosts, where the DFU interface is
// reached through WinUSB. Elsewhere it reports ErrUnsupported; programming
// against an externally supplied Device still works.
func Open() (Device, error) {
	return nil, ErrUnsupported
}
