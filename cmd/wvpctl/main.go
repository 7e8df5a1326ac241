// wvpctl is an operator tool for WireView Pro II telemetry devices:
// live monitoring, firmware flashing over DFU, and on-board log decoding.
//
// Usage:
//
//	wvpctl [-config wvpctl.yaml] monitor
//	wvpctl [-config wvpctl.yaml] flash firmware.elf
//	wvpctl [-config wvpctl.yaml] parselog dump.bin
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/device"
	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/dfu"
	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/flashlog"
	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/serialport"
)

func main() {
	configPath := flag.String("config", "wvpctl.yaml", "path to the YAML config file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: wvpctl [-config file] monitor|flash <image>|parselog <dump>")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger device.Logger
	if cfg.Verbose {
		logger = stdLogger{}
	}

	switch flag.Arg(0) {
	case "monitor":
		err = runMonitor(cfg, logger)
	case "flash":
		if flag.NArg() < 2 {
			log.Fatal("flash: firmware image path required")
		}
		err = runFlash(cfg, flag.Arg(1))
	case "parselog":
		if flag.NArg() < 2 {
			log.Fatal("parselog: dump path required")
		}
		err = runParseLog(flag.Arg(1))
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}

	if err != nil {
		log.Fatal(err)
	}
}

// runMonitor prints telemetry until interrupted. With a pinned port the
// session talks to it directly; otherwise the auto-connector scans.
func runMonitor(cfg Config, logger device.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printData := func(d device.Data) {
		fmt.Printf("[%s] in %.1f°C out %.1f°C  V0 %.3fV I0 %.3fA  psu %dW  faults %04X/%04X\n",
			d.Timestamp.Format("15:04:05.000"),
			d.OnboardTempInC, d.OnboardTempOutC,
			d.PinVoltages[0], d.PinCurrents[0],
			d.PsuCapabilityW, d.FaultStatus, d.FaultLog)
	}

	if cfg.Port != "" {
		port, err := serialport.New(cfg.Port)
		if err != nil {
			return err
		}
		sess := device.New(port,
			device.WithLogger(logger),
			device.WithPollInterval(cfg.pollInterval()),
		)
		defer sess.Close()
		sess.SubscribeData(printData)
		if err := sess.Connect(); err != nil {
			return err
		}
		id, _ := sess.Identity()
		fmt.Printf("connected: hw %s fw %d uid %s\n", id.HardwareRevision, id.FirmwareVersion, id.UniqueID)

		<-ctx.Done()
		return nil
	}

	ac := device.NewAutoConnector(device.ConnectorConfig{
		ScanInterval: cfg.scanInterval(),
		PollInterval: cfg.pollInterval(),
		Logger:       logger,
	})
	defer ac.Stop()
	ac.SubscribeConnection(func(up bool) { fmt.Println("connected:", up) })
	ac.SubscribeData(printData)
	ac.Start()

	<-ctx.Done()
	return nil
}

// runFlash programs a firmware image over the DFU interface. The device
// must already be in DFU mode (wvpctl monitor + the device menu, or any
// tool sending the bootloader command).
func runFlash(cfg Config, imagePath string) error {
	payload, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}

	dev, err := dfu.Open()
	if err != nil {
		return err
	}
	defer dev.Close()

	opts := []dfu.Option{
		dfu.WithProgressCallback(func(p dfu.Progress) {
			fmt.Printf("\r[%s] %5.1f%%  %d/%d bytes", p.Phase, p.Percentage, p.BytesWritten, p.TotalBytes)
		}),
	}
	if cfg.DfuTransferSize > 0 {
		opts = append(opts, dfu.WithTransferSize(cfg.DfuTransferSize))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := dfu.New(dev, opts...).Program(ctx, payload); err != nil {
		fmt.Println()
		return err
	}
	fmt.Println("\ndone")
	return nil
}

// runParseLog decodes an on-board log dump to stdout.
func runParseLog(dumpPath string) error {
	dump, err := os.ReadFile(dumpPath)
	if err != nil {
		return err
	}

	records := flashlog.Parse(dump)
	for _, r := range records {
		fmt.Printf("%s  %4.0f°C %4.0f°C  V0 %4.1fV I0 %4.1fA  sense %d\n",
			r.Timestamp.Format("2006-01-02 15:04:05.000"),
			r.TemperaturesC[0], r.TemperaturesC[1],
			r.PinVoltages[0], r.PinCurrents[0], r.HpwrSense)
	}
	fmt.Fprintf(os.Stderr, "%d records\n", len(records))
	return nil
}

// stdLogger adapts the standard log package to the library's Logger
// interface.
type stdLogger struct{}

func (stdLogger) Debug(msg string, kv ...interface{}) {
	log.Println(append([]interface{}{"DBG", msg}, kv...)...)
}
func (stdLogger) Info(msg string, kv ...interface{}) {
	log.Println(append([]interface{}{"INF", msg}, kv...)...)
}
func (stdLogger) Error(msg string, kv ...interface{}) {
	log.Println(append([]interface{}{"ERR", msg}, kv...)...)
}
