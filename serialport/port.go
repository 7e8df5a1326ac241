package serialport

import (
	"fmt"
	"sync"
	"time"
)

// LockWait is how long a lock acquisition waits for the system-wide lock
// before failing with ErrPortBusy.
const LockWait = 2 * time.Second

// SharedPort wraps a byte-oriented serial transport with the two nested
// locks described in the package documentation. The zero value is not
// usable; construct with New.
type SharedPort struct {
	name   string
	opener Opener

	mu       sync.Mutex // in-process lock; held for every operation
	sysLock  SystemLock
	lockWait time.Duration
	port     Transport // nil while closed
}

// Option configures a SharedPort.
type Option func(*SharedPort)

// WithOpener substitutes the transport opener. Used by tests and by callers
// that need non-default link parameters.
func WithOpener(open Opener) Option {
	return func(p *SharedPort) { p.opener = open }
}

// WithSystemLock substitutes the system-wide lock implementation.
func WithSystemLock(lock SystemLock) Option {
	return func(p *SharedPort) { p.sysLock = lock }
}

// WithLockWait overrides the system-wide lock acquisition timeout.
func WithLockWait(d time.Duration) Option {
	return func(p *SharedPort) { p.lockWait = d }
}

// New creates a SharedPort for the named serial port. The port is not opened
// until Open or the first Transact.
func New(name string, opts ...Option) (*SharedPort, error) {
	p := &SharedPort{
		name:     name,
		opener:   OpenSerial,
		lockWait: LockWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sysLock == nil {
		lock, err := newSystemLock()
		if err != nil {
			return nil, fmt.Errorf("serialport: create system lock: %w", err)
		}
		p.sysLock = lock
	}
	return p, nil
}

// Name returns the OS port name.
func (p *SharedPort) Name() string { return p.name }

// withLocks runs fn under the in-process lock and the system-wide lock.
// The system-wide lock is released exactly once, also on the abandoned-owner
// acquisition path.
func (p *SharedPort) withLocks(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sysLock.Acquire(p.lockWait); err != nil {
		return err
	}
	defer p.sysLock.Release()
	return fn()
}

// Open opens the underlying transport. Idempotent while already open.
// An OS open failure surfaces as ErrPortUnavailable.
func (p *SharedPort) Open() error {
	return p.withLocks(func() error { return p.openLocked() })
}

func (p *SharedPort) openLocked() error {
	if p.port != nil {
		return nil
	}
	port, err := p.opener(p.name)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPortUnavailable, p.name, err)
	}
	p.port = port
	return nil
}

// Close flushes pending output and closes the transport. Idempotent.
func (p *SharedPort) Close() error {
	return p.withLocks(func() error { return p.closeLocked() })
}

func (p *SharedPort) closeLocked() error {
	if p.port == nil {
		return nil
	}
	_ = p.port.Drain()
	err := p.port.Close()
	p.port = nil
	return err
}

// Read reads up to len(buf) bytes. A zero-length read within the transport
// timeout is not an error; the caller decides.
func (p *SharedPort) Read(buf []byte) (int, error) {
	var n int
	err := p.withLocks(func() error {
		if p.port == nil {
			return ErrPortClosed
		}
		var err error
		n, err = p.port.Read(buf)
		return err
	})
	return n, err
}

// Write writes buf to the port.
func (p *SharedPort) Write(buf []byte) error {
	return p.withLocks(func() error {
		if p.port == nil {
			return ErrPortClosed
		}
		_, err := p.port.Write(buf)
		return err
	})
}

// DiscardInput drops any bytes pending in the OS receive buffer.
func (p *SharedPort) DiscardInput() error {
	return p.withLocks(func() error {
		if p.port == nil {
			return ErrPortClosed
		}
		return p.port.ResetInputBuffer()
	})
}

// SetRTS asserts or deasserts the RTS line.
func (p *SharedPort) SetRTS(rts bool) error {
	return p.withLocks(func() error {
		if p.port == nil {
			return ErrPortClosed
		}
		return p.port.SetRTS(rts)
	})
}

// Transact runs fn with both locks held for the whole exchange, so a command
// opcode and its response cannot interleave with any other caller in this or
// any other process. The port is opened if it is not already.
func (p *SharedPort) Transact(fn func(c *Conn) error) error {
	return p.withLocks(func() error {
		if err := p.openLocked(); err != nil {
			return err
		}
		return fn(&Conn{port: p.port})
	})
}

// Dispose closes the transport if open and releases the system-wide lock
// resources without re-acquiring the lock.
func (p *SharedPort) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.port != nil {
		_ = p.port.Drain()
		err = p.port.Close()
		p.port = nil
	}
	if cerr := p.sysLock.Close(); err == nil {
		err = cerr
	}
	return err
}

// Conn is the view of an open port inside a Transact body. Operations on a
// Conn assume both locks are held and must not escape the Transact callback.
type Conn struct {
	port Transport
}

// Write writes buf to the port.
func (c *Conn) Write(buf []byte) error {
	_, err := c.port.Write(buf)
	return err
}

// DiscardInput drops any bytes pending in the OS receive buffer.
func (c *Conn) DiscardInput() error { return c.port.ResetInputBuffer() }

// SetRTS asserts or deasserts the RTS line.
func (c *Conn) SetRTS(rts bool) error { return c.port.SetRTS(rts) }

// readExactPollTimeout is the per-iteration read timeout inside ReadExact.
// Short enough that the wall-clock deadline is honored closely.
const readExactPollTimeout = 50 * time.Millisecond

// ReadExact reads exactly len(buf) bytes, polling the port until the bytes
// arrive or the wall-clock deadline elapses. On deadline it returns
// ErrTimeout; partial data read so far stays in buf.
func (c *Conn) ReadExact(buf []byte, deadline time.Duration) error {
	if err := c.port.SetReadTimeout(readExactPollTimeout); err != nil {
		return err
	}
	defer c.port.SetReadTimeout(IOTimeout)

	limit := time.Now().Add(deadline)
	got := 0
	for got < len(buf) {
		if time.Now().After(limit) {
			return ErrTimeout
		}
		n, err := c.port.Read(buf[got:])
		if err != nil {
			return err
		}
		got += n
	}
	return nil
}
