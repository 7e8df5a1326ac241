package device

import (
	"context"
	"sync"
	"time"

	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/serialport"
)

// AutoConnector supervision bounds.
const (
	// DefaultScanInterval is the device presence check cadence
	DefaultScanInterval = time.Second

	// StopWait bounds how long Stop waits for the supervisor to exit
	StopWait = 500 * time.Millisecond

	// MinConnectorPollInterval is the fastest cadence SetPollInterval
	// accepts (faster than a single session allows, for bench use)
	MinConnectorPollInterval = 50 * time.Millisecond

	// MaxConnectorPollInterval mirrors the session bound
	MaxConnectorPollInterval = 5000 * time.Millisecond
)

// ConnectorConfig is the runtime configuration of an AutoConnector. Zero
// fields take defaults.
type ConnectorConfig struct {
	// Enumerate lists candidate port names; defaults to
	// serialport.ListCandidatePorts
	Enumerate func() []string

	// OpenPort creates the shared port for a candidate name; defaults to
	// serialport.New
	OpenPort func(name string) (*serialport.SharedPort, error)

	// ScanInterval is the presence check cadence
	ScanInterval time.Duration

	// PollInterval is the initial session polling cadence
	PollInterval time.Duration

	// Logger receives supervisor logs (optional)
	Logger Logger
}

// AutoConnector supervises device presence: while no session is connected
// it scans the candidate ports once per ScanInterval and connects to the
// first device that completes the handshake. Sessions that die are replaced
// on the next scan.
//
// Connection and telemetry events from whichever session is live are
// republished on the connector's own streams, so consumers subscribe once
// and survive reconnects.
type AutoConnector struct {
	config ConnectorConfig

	mu      sync.Mutex
	session *Session
	unsubs  []func()
	cancel  context.CancelFunc
	done    chan struct{}

	connEvents *publisher[bool]
	dataEvents *publisher[Data]
}

// NewAutoConnector creates a stopped AutoConnector; call Start to begin
// scanning.
func NewAutoConnector(cfg ConnectorConfig) *AutoConnector {
	if cfg.Enumerate == nil {
		cfg.Enumerate = serialport.ListCandidatePorts
	}
	if cfg.OpenPort == nil {
		cfg.OpenPort = func(name string) (*serialport.SharedPort, error) {
			return serialport.New(name)
		}
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &AutoConnector{
		config:     cfg,
		connEvents: newPublisher[bool](),
		dataEvents: newPublisher[Data](),
	}
}

// SubscribeConnection registers a handler for unified connection events.
func (a *AutoConnector) SubscribeConnection(fn func(bool)) func() {
	return a.connEvents.Subscribe(fn)
}

// SubscribeData registers a handler for unified telemetry events.
func (a *AutoConnector) SubscribeData(fn func(Data)) func() {
	return a.dataEvents.Subscribe(fn)
}

// Session returns the live session, or nil while disconnected.
func (a *AutoConnector) Session() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// SetPollInterval clamps d to the connector bounds, remembers it for future
// sessions, and forwards it to the live session if any.
func (a *AutoConnector) SetPollInterval(d time.Duration) {
	if d < MinConnectorPollInterval {
		d = MinConnectorPollInterval
	}
	if d > MaxConnectorPollInterval {
		d = MaxConnectorPollInterval
	}

	a.mu.Lock()
	a.config.PollInterval = d
	session := a.session
	a.mu.Unlock()

	if session != nil {
		session.SetPollInterval(d)
	}
}

// Start launches the supervisor loop. Idempotent while running.
func (a *AutoConnector) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.supervise(ctx, a.done)
}

// Stop cancels the supervisor, waits up to StopWait for it, and tears down
// any live session. Idempotent.
func (a *AutoConnector) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.cancel = nil
	a.done = nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	select {
	case <-done:
	case <-time.After(StopWait):
		a.logError("supervisor did not exit in time")
	}

	a.teardownSession()
}

// supervise is the scan loop: while no session is connected, try every
// candidate port and keep the first that answers.
func (a *AutoConnector) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		a.mu.Lock()
		live := a.session != nil && a.session.Connected()
		a.mu.Unlock()
		if live {
			continue
		}

		a.teardownSession()
		a.tryConnectAny(a.config.Enumerate())
	}
}

// tryConnectAny walks the candidates in order and stops at the first
// session that connects. Failures tear the attempt down and move on.
func (a *AutoConnector) tryConnectAny(ports []string) {
	for _, name := range ports {
		port, err := a.config.OpenPort(name)
		if err != nil {
			a.logDebug("open failed", "port", name, "error", err)
			continue
		}

		a.mu.Lock()
		pollInterval := a.config.PollInterval
		a.mu.Unlock()

		session := New(port,
			WithLogger(a.config.Logger),
			WithPollInterval(pollInterval),
		)
		unsubs := []func(){
			session.SubscribeConnection(a.connEvents.Publish),
			session.SubscribeData(a.dataEvents.Publish),
		}

		if err := session.Connect(); err != nil {
			a.logDebug("connect failed", "port", name, "error", err)
			for _, unsub := range unsubs {
				unsub()
			}
			session.Close()
			continue
		}

		a.mu.Lock()
		a.session = session
		a.unsubs = unsubs
		a.mu.Unlock()
		a.logInfo("device attached", "port", name)
		return
	}
}

// teardownSession disposes the current session, if any.
func (a *AutoConnector) teardownSession() {
	a.mu.Lock()
	session := a.session
	unsubs := a.unsubs
	a.session = nil
	a.unsubs = nil
	a.mu.Unlock()
	if session == nil {
		return
	}
	for _, unsub := range unsubs {
		unsub()
	}
	session.Close()
}

func (a *AutoConnector) logDebug(msg string, keysAndValues ...interface{}) {
	if a.config.Logger != nil {
		a.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (a *AutoConnector) logInfo(msg string, keysAndValues ...interface{}) {
	if a.config.Logger != nil {
		a.config.Logger.Info(msg, keysAndValues...)
	}
}

func (a *AutoConnector) logError(msg string, keysAndValues ...interface{}) {
	if a.config.Logger != nil {
		a.config.Logger.Error(msg, keysAndValues...)
	}
}
