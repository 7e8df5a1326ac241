package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional wvpctl configuration file.
type Config struct {
	// Port pins a serial port name instead of enumerating by VID/PID
	Port string `yaml:"port"`

	// PollIntervalMs is the telemetry cadence for monitor mode
	PollIntervalMs int `yaml:"poll_interval_ms"`

	// ScanIntervalMs is the device presence scan cadence
	ScanIntervalMs int `yaml:"scan_interval_ms"`

	// DfuTransferSize overrides the device-reported DFU chunk size
	DfuTransferSize int `yaml:"dfu_transfer_size"`

	// Verbose enables debug logging
	Verbose bool `yaml:"verbose"`
}

func defaultCLIConfig() Config {
	return Config{
		PollIntervalMs: 500,
		ScanIntervalMs: 1000,
	}
}

// loadConfig reads a YAML config file. A missing path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultCLIConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = 500
	}
	if cfg.ScanIntervalMs <= 0 {
		cfg.ScanIntervalMs = 1000
	}
	return cfg, nil
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) scanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMs) * time.Millisecond
}
