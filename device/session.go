package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/protocol"
	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/serialport"
)

// Session errors.
var (
	// ErrWrongDevice means the welcome banner or vendor handshake did not
	// match a genuine device.
	ErrWrongDevice = errors.New("device: not a WireView Pro II")

	// ErrNotConnected means a command was issued without a connected
	// session.
	ErrNotConnected = errors.New("device: not connected")
)

// bootloaderSettle is how long the firmware needs to act on the bootloader
// command before the port goes away.
const bootloaderSettle = 50 * time.Millisecond

// Session owns one shared serial port and drives the command/response
// protocol on it: the connect handshake, on-demand commands, and a
// background telemetry polling loop.
//
// All commands are serialized: within the process by the port's own lock,
// and across processes by the system-wide named lock. A Session is safe for
// concurrent use.
type Session struct {
	port   *serialport.SharedPort
	config Config

	pollInterval atomic.Int64 // nanoseconds

	mu        sync.Mutex // guards the fields below
	connected bool
	identity  Identity
	cancel    context.CancelFunc
	pollDone  chan struct{}

	connEvents *publisher[bool]
	dataEvents *publisher[Data]
}

// New creates a Session over a shared port. The port is not touched until
// Connect.
//
// Example:
//
//	port, err := serialport.New("COM5")
//	if err != nil {
//	    return err
//	}
//	sess := device.New(port, device.WithPollInterval(250*time.Millisecond))
//	defer sess.Close()
func New(port *serialport.SharedPort, opts ...Option) *Session {
	if port == nil {
		panic("port cannot be nil")
	}

	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		port:       port,
		config:     cfg,
		connEvents: newPublisher[bool](),
		dataEvents: newPublisher[Data](),
	}
	s.pollInterval.Store(int64(clampPollInterval(cfg.PollInterval)))
	return s
}

// Port returns the underlying shared port (for example to read its name).
func (s *Session) Port() *serialport.SharedPort { return s.port }

// Connected reports whether the handshake has completed and the polling
// loop is running.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Identity returns the device identity. The second result is false while
// disconnected.
func (s *Session) Identity() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.connected
}

// SubscribeConnection registers a handler for connection state changes and
// returns its cancellation func. Handlers run on a dedicated delivery
// goroutine and may call back into the session.
func (s *Session) SubscribeConnection(fn func(bool)) func() {
	return s.connEvents.Subscribe(fn)
}

// SubscribeData registers a handler for telemetry updates and returns its
// cancellation func.
func (s *Session) SubscribeData(fn func(Data)) func() {
	return s.dataEvents.Subscribe(fn)
}

// PollInterval returns the current polling cadence.
func (s *Session) PollInterval() time.Duration {
	return time.Duration(s.pollInterval.Load())
}

// SetPollInterval changes the polling cadence, clamped to
// [MinPollInterval, MaxPollInterval]. Takes effect from the next tick.
func (s *Session) SetPollInterval(d time.Duration) {
	s.pollInterval.Store(int64(clampPollInterval(d)))
}

// Connect opens the port and performs the handshake: assert RTS, request
// and verify the welcome banner, read and verify VendorData, read the
// unique id, then resume display updates and start the polling loop.
//
// Idempotent while connected. A device that fails the banner or vendor
// check leaves the session disconnected, emits no event, and returns
// ErrWrongDevice.
func (s *Session) Connect() error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}

	identity, err := s.handshake()
	if err != nil {
		s.mu.Unlock()
		_ = s.port.Close()
		return err
	}

	s.identity = identity
	s.connected = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	done := make(chan struct{})
	s.pollDone = done
	go s.pollLoop(ctx, done)
	s.mu.Unlock()

	s.logInfo("connected",
		"port", s.port.Name(),
		"hw", identity.HardwareRevision,
		"fw", identity.FirmwareVersion,
		"uid", identity.UniqueID,
	)
	// Dispatched after all locks are released so handlers can call back in.
	s.connEvents.Publish(true)
	return nil
}

// handshake runs the whole identification exchange as one port transaction
// so no other process can interleave with it.
func (s *Session) handshake() (Identity, error) {
	var identity Identity
	err := s.port.Transact(func(c *serialport.Conn) error {
		if err := c.SetRTS(true); err != nil {
			return err
		}
		if err := c.DiscardInput(); err != nil {
			return err
		}

		// The device banners on RTS assertion, but that may have raced
		// the discard above; the explicit welcome request guarantees one.
		if err := c.Write([]byte{protocol.CmdWelcome}); err != nil {
			return err
		}
		welcome := make([]byte, protocol.WelcomeSize)
		if err := c.ReadExact(welcome, serialport.IOTimeout); err != nil {
			return fmt.Errorf("%w: no welcome banner: %v", ErrWrongDevice, err)
		}
		if string(welcome[:len(protocol.WelcomeString)]) != protocol.WelcomeString {
			return fmt.Errorf("%w: unexpected banner %q", ErrWrongDevice, welcome)
		}

		if err := c.Write([]byte{protocol.CmdReadVendorData}); err != nil {
			return err
		}
		buf := make([]byte, protocol.VendorDataSize)
		if err := c.ReadExact(buf, serialport.IOTimeout); err != nil {
			return fmt.Errorf("%w: no vendor data: %v", ErrWrongDevice, err)
		}
		var vd protocol.VendorData
		if err := protocol.Decode(&vd, buf); err != nil {
			return err
		}
		if !vd.Valid() {
			return fmt.Errorf("%w: vendor data %02X%02X", ErrWrongDevice, vd.VendorID, vd.ProductID)
		}

		if err := c.Write([]byte{protocol.CmdReadUID}); err != nil {
			return err
		}
		uidBuf := make([]byte, protocol.UniqueIDSize)
		if err := c.ReadExact(uidBuf, serialport.IOTimeout); err != nil {
			return fmt.Errorf("%w: no unique id: %v", ErrWrongDevice, err)
		}
		var uid protocol.UniqueID
		if err := protocol.Decode(&uid, uidBuf); err != nil {
			return err
		}

		// The display pauses its refresh while a host is attached unless
		// told otherwise. Idempotent if it was never paused.
		if err := c.Write(protocol.BuildScreenCmd(protocol.ScreenResumeUpdates)); err != nil {
			return err
		}

		identity = Identity{
			HardwareRevision: vd.HardwareRevision(),
			FirmwareVersion:  vd.FirmwareVersion,
			UniqueID:         uid.String(),
		}
		return nil
	})
	return identity, err
}

// Disconnect stops the polling loop (waiting up to the configured bound for
// it to exit), clears the identity, closes the port, and emits
// ConnectionChanged(false). Idempotent, and safe to call from an event
// handler.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	s.identity = Identity{}
	cancel := s.cancel
	done := s.pollDone
	s.cancel = nil
	s.pollDone = nil
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(s.config.DisconnectWait):
		s.logError("polling task did not exit in time")
	}

	_ = s.port.Close()
	s.logInfo("disconnected", "port", s.port.Name())
	s.connEvents.Publish(false)
}

// Close disconnects if needed and releases the port and event resources.
// The session is unusable afterwards.
func (s *Session) Close() {
	s.Disconnect()
	_ = s.port.Dispose()
	s.connEvents.Close()
	s.dataEvents.Close()
}

// pollLoop reads sensor values at the configured cadence until cancelled.
// Timeouts skip the tick; any other error tears the session down.
func (s *Session) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, err := s.readSensors()
		switch {
		case err == nil:
			s.dataEvents.Publish(data)
		case errors.Is(err, serialport.ErrTimeout):
			// The device missed one request; not fatal.
			s.logDebug("sensor poll timed out")
		default:
			s.logError("sensor poll failed", "error", err)
			// Disconnect waits on this goroutine; run it elsewhere.
			go s.Disconnect()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.PollInterval()):
		}
	}
}

// readSensors performs one ReadSensorValues transaction and maps the result
// to engineering units.
func (s *Session) readSensors() (Data, error) {
	buf, err := s.command([]byte{protocol.CmdReadSensorValues}, protocol.SensorValuesSize)
	if err != nil {
		return Data{}, err
	}
	var sv protocol.SensorValues
	if err := protocol.Decode(&sv, buf); err != nil {
		return Data{}, err
	}
	s.mu.Lock()
	id := s.identity
	s.mu.Unlock()
	return dataFromSensors(id, &sv, time.Now()), nil
}

// command runs one write/read exchange as a single locked transaction.
// respLen 0 means fire-and-forget.
func (s *Session) command(cmd []byte, respLen int) ([]byte, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}
	var resp []byte
	err := s.port.Transact(func(c *serialport.Conn) error {
		if err := c.DiscardInput(); err != nil {
			return err
		}
		if err := c.Write(cmd); err != nil {
			return err
		}
		if respLen > 0 {
			resp = make([]byte, respLen)
			return c.ReadExact(resp, serialport.IOTimeout)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ReadBuildString reads the firmware build string. Returns ErrNotConnected
// while disconnected and serialport.ErrTimeout when the device does not
// answer in time.
func (s *Session) ReadBuildString() (string, error) {
	buf, err := s.command([]byte{protocol.CmdReadBuildInfo}, protocol.BuildInfoSize)
	if err != nil {
		return "", err
	}
	var bi protocol.BuildInfo
	if err := protocol.Decode(&bi, buf); err != nil {
		return "", err
	}
	return bi.String(), nil
}

// ReadConfig reads the device configuration record.
func (s *Session) ReadConfig() (*protocol.DeviceConfig, error) {
	buf, err := s.command([]byte{protocol.CmdReadConfig}, protocol.DeviceConfigSize)
	if err != nil {
		return nil, err
	}
	var cfg protocol.DeviceConfig
	if err := protocol.Decode(&cfg, buf); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteConfig transmits a full configuration record in offset-tagged
// frames. All frames go out in one locked transaction.
func (s *Session) WriteConfig(cfg *protocol.DeviceConfig) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	encoded, err := protocol.Encode(cfg)
	if err != nil {
		return err
	}
	frames := protocol.BuildWriteConfigFrames(encoded)
	return s.port.Transact(func(c *serialport.Conn) error {
		for _, frame := range frames {
			if err := c.Write(frame); err != nil {
				return err
			}
		}
		return nil
	})
}

// NvmCmd executes a non-volatile memory sub-command (NvmSave, NvmLoad,
// NvmReset). The magic guard bytes are supplied by the protocol builder.
func (s *Session) NvmCmd(sub byte) error {
	_, err := s.command(protocol.BuildNvmCmd(sub), 0)
	return err
}

// ScreenCmd executes a screen sub-command.
func (s *Session) ScreenCmd(sub byte) error {
	_, err := s.command(protocol.BuildScreenCmd(sub), 0)
	return err
}

// ClearFaults clears the latched fault bits selected by the masks. Pass
// 0xFFFF, 0xFFFF to clear everything.
func (s *Session) ClearFaults(statusMask, logMask uint16) error {
	_, err := s.command(protocol.BuildClearFaultsCmd(statusMask, logMask), 0)
	return err
}

// EnterBootloader reboots the device into DFU mode and disconnects the
// session. Best-effort: the device drops off the bus while acting on the
// command, so transmit errors are swallowed.
func (s *Session) EnterBootloader() error {
	_, _ = s.command([]byte{protocol.CmdBootloader}, 0)
	time.Sleep(bootloaderSettle)
	s.Disconnect()
	return nil
}

func (s *Session) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (s *Session) logInfo(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Info(msg, keysAndValues...)
	}
}

func (s *Session) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, keysAndValues...)
	}
}
