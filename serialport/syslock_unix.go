//go:build !windows

package serialport

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// flockLock implements SystemLock with an advisory flock over a well-known
// path. The kernel drops the lock when the holder dies, which gives the
// abandoned-owner recovery the Windows named mutex provides natively.
type flockLock struct {
	file *os.File
}

// lockPollInterval is the retry cadence while waiting for the flock.
const lockPollInterval = 10 * time.Millisecond

func newSystemLock() (SystemLock, error) {
	path := filepath.Join(os.TempDir(), "Access_USB_Sensors.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return &flockLock{file: f}, nil
}

func (l *flockLock) Acquire(wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		err := unix.Flock(int(l.file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			return fmt.Errorf("flock: %w", err)
		}
		if time.Now().After(deadline) {
			return ErrPortBusy
		}
		time.Sleep(lockPollInterval)
	}
}

func (l *flockLock) Release() error {
	return unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
}

func (l *flockLock) Close() error {
	return l.file.Close()
}
