//go:build windows

package serialport

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

// Wait results not exported by golang.org/x/sys/windows.
const (
	waitObject0   = 0x00000000
	waitAbandoned = 0x00000080
	waitTimeout   = 0x00000102
)

// namedMutexLock implements SystemLock with a Windows named mutex. The
// "Global\" prefix makes the lock visible across user sessions.
type namedMutexLock struct {
	handle windows.Handle
}

func newSystemLock() (SystemLock, error) {
	name, err := windows.UTF16PtrFromString(SystemLockName)
	if err != nil {
		return nil, err
	}
	// Opens the existing mutex when another process created it first.
	handle, err := windows.CreateMutex(nil, false, name)
	if err != nil && handle == 0 {
		return nil, fmt.Errorf("create named mutex: %w", err)
	}
	return &namedMutexLock{handle: handle}, nil
}

func (l *namedMutexLock) Acquire(wait time.Duration) error {
	event, err := windows.WaitForSingleObject(l.handle, uint32(wait.Milliseconds()))
	switch event {
	case waitObject0:
		return nil
	case waitAbandoned:
		// The previous owner died while holding the mutex. Ownership is
		// still granted; a single Release applies as usual.
		return nil
	case waitTimeout:
		return ErrPortBusy
	default:
		return fmt.Errorf("wait for named mutex: %w", err)
	}
}

func (l *namedMutexLock) Release() error {
	return windows.ReleaseMutex(l.handle)
}

func (l *namedMutexLock) Close() error {
	return windows.CloseHandle(l.handle)
}
