// Package config loads the gateway TOML configuration. The gateway
// consumes the resulting struct as already validated; Load applies
// defaults and rejects values the runtime cannot work with.
package config

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

const DefaultConfigPath = "rovergate.toml"

type Config struct {
	Transport TransportConfig `toml:"transport"`
	Timing    TimingConfig    `toml:"timing"`
	Board     BoardConfig     `toml:"board"`
	Recorder  RecorderConfig  `toml:"recorder"`
	Log       LogConfig       `toml:"log"`
	Bridge    BridgeConfig    `toml:"bridge"`
}

type TransportConfig struct {
	// Mode selects "udp" or "tcp".
	Mode string `toml:"mode"`

	// UDP endpoints: states are sent to state_addr, commands received on
	// cmd_addr, the status responder binds info_addr ("" disables it).
	StateAddr string `toml:"state_addr"`
	CmdAddr   string `toml:"cmd_addr"`
	InfoAddr  string `toml:"info_addr"`

	// TCP listen address (single bidirectional connection per client).
	ListenAddr string `toml:"listen_addr"`
}

type TimingConfig struct {
	// StateHz is the fixed publish rate.
	StateHz float64 `toml:"state_hz"`

	// CmdTimeoutS is the command-staleness window in seconds; a value
	// <= 0 disables the watchdog.
	CmdTimeoutS float64 `toml:"cmd_timeout_s"`

	// DurationS limits the run; 0 means run until stopped.
	DurationS float64 `toml:"duration_s"`
}

type BoardConfig struct {
	SerialPort   string `toml:"serial_port"`
	Baud         int    `toml:"baud"`
	StartupBeep  bool   `toml:"startup_beep"`
}

type RecorderConfig struct {
	Enable   bool   `toml:"enable"`
	Dir      string `toml:"dir"`
	Prefix   string `toml:"prefix"`
	QueueMax int    `toml:"queue_max"`
}

type LogConfig struct {
	Enable       bool   `toml:"enable"`
	Dir          string `toml:"dir"`
	MaxSizeMB    int    `toml:"max_size_mb"`
	MaxBackups   int    `toml:"max_backups"`
	ConsoleLevel string `toml:"console_level"`
	FileLevel    string `toml:"file_level"`
}

type BridgeConfig struct {
	// WSAddr serves the live websocket telemetry feed; "" disables it.
	WSAddr string `toml:"ws_addr"`

	// MQTT mirror; Broker "" disables it. Divisor publishes every Nth
	// state sample.
	MQTTBroker   string `toml:"mqtt_broker"`
	MQTTClientID string `toml:"mqtt_client_id"`
	MQTTTopic    string `toml:"mqtt_topic"`
	MQTTDivisor  int    `toml:"mqtt_divisor"`
}

func Default() Config {
	return Config{
		Transport: TransportConfig{
			Mode:       "udp",
			StateAddr:  "127.0.0.1:20001",
			CmdAddr:    "127.0.0.1:20002",
			InfoAddr:   "127.0.0.1:20003",
			ListenAddr: "0.0.0.0:30001",
		},
		Timing: TimingConfig{
			StateHz:     100.0,
			CmdTimeoutS: 0.5,
			DurationS:   0,
		},
		Board: BoardConfig{
			SerialPort:  "/dev/ttyUSB0",
			Baud:        115200,
			StartupBeep: true,
		},
		Recorder: RecorderConfig{
			Enable:   true,
			Dir:      "./records",
			Prefix:   "run",
			QueueMax: 5000,
		},
		Log: LogConfig{
			Enable:       true,
			Dir:          "./logs",
			MaxSizeMB:    1,
			MaxBackups:   0,
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
		Bridge: BridgeConfig{
			MQTTClientID: "rovergate",
			MQTTTopic:    "rovergate/state",
			MQTTDivisor:  10,
		},
	}
}

// Load reads path over the defaults. A missing file at the default path is
// not an error; an explicitly requested missing file is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Transport.Mode {
	case "udp", "tcp":
	default:
		return fmt.Errorf("config: transport.mode must be udp or tcp, got %q", c.Transport.Mode)
	}
	if c.Timing.StateHz <= 0 {
		return fmt.Errorf("config: timing.state_hz must be > 0, got %v", c.Timing.StateHz)
	}
	if c.Recorder.QueueMax <= 0 {
		return fmt.Errorf("config: recorder.queue_max must be > 0, got %d", c.Recorder.QueueMax)
	}
	return nil
}
