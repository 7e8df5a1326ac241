// Package device implements the in-application session with a WireView
// Pro II power/thermal telemetry unit.
//
// # Session
//
// A Session owns one shared serial port. Connect performs the welcome and
// vendor handshake, reads the device identity, and starts a background
// polling loop that publishes telemetry at a bounded cadence:
//
//	port, err := serialport.New(name)
//	if err != nil {
//	    return err
//	}
//	sess := device.New(port)
//	defer sess.Close()
//
//	stop := sess.SubscribeData(func(d device.Data) {
//	    fmt.Printf("%.1f °C  %.2f V\n", d.OnboardTempInC, d.PinVoltages[0])
//	})
//	defer stop()
//
//	if err := sess.Connect(); err != nil {
//	    return err
//	}
//
// Every command is one locked transaction on the port: discard stale input,
// write the opcode, read the fixed-size reply. A reply that does not arrive
// within the 1 s deadline fails that transaction only; the polling loop
// skips the tick and carries on.
//
// # AutoConnector
//
// AutoConnector supervises device presence. It scans the candidate ports
// once a second while disconnected, connects to the first device that
// completes the handshake, and republishes the session's events on its own
// streams so consumers survive replug cycles:
//
//	ac := device.NewAutoConnector(device.ConnectorConfig{})
//	defer ac.Stop()
//	ac.SubscribeConnection(func(up bool) { fmt.Println("connected:", up) })
//	ac.Start()
//
// # Events
//
// Handlers run on per-subscriber delivery goroutines, dispatched after the
// session releases its locks. A handler may therefore call back into the
// session (including Disconnect) without deadlocking, but must keep up: a
// handler that falls far behind loses events.
package device
