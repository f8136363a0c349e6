// Package config loads the arena controller configuration file. The file is
// YAML; a JSON file is accepted as is.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/arena.go/pkg/device"
	fx "github.com/robotalks/arena.go/pkg/framework"
	"github.com/robotalks/arena.go/pkg/telemetry/influx"
)

// Boards.
const (
	BoardPeriph = "periph"
	BoardSim    = "sim"
)

// Environment variables overriding the file.
const (
	EnvMQTTURL = "ARENA_MQTT_URL"
	EnvSerial  = "ARENA_SERIAL"
)

// Config is the controller configuration.
type Config struct {
	ID    string `yaml:"id"`
	Board string `yaml:"board"`
	// Port is the key of this controller in configuration objects.
	Port         string        `yaml:"port"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// WaitConfig asks the host for devices when none are configured.
	WaitConfig bool `yaml:"wait_config"`
	// Stdio attaches the line protocol to stdin/stdout.
	Stdio     bool            `yaml:"stdio"`
	Serial    SerialConfig    `yaml:"serial"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Websocket WebsocketConfig `yaml:"websocket"`
	InfluxDB  influx.Config   `yaml:"influxdb"`
	Devices   []device.Record `yaml:"devices"`
}

// SerialConfig is the serial link to the host.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// MQTTConfig is the MQTT bridge.
type MQTTConfig struct {
	URL          string `yaml:"url"`
	CommandTopic string `yaml:"command_topic"`
	PublishTopic string `yaml:"publish_topic"`
	AllowGet     bool   `yaml:"allow_get"`
}

// WebsocketConfig is the websocket endpoint.
type WebsocketConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used for missing keys.
func Default() *Config {
	return &Config{
		Board:        BoardPeriph,
		Port:         "arena",
		PollInterval: 500 * time.Microsecond,
		Serial:       SerialConfig{Baud: 115200},
		MQTT: MQTTConfig{
			CommandTopic: "arena_command",
			PublishTopic: "arena",
			AllowGet:     true,
		},
	}
}

// Load reads a configuration file over the defaults and applies env
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses configuration content over the defaults and applies env
// overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides. ARENA_SERIAL is a device path,
// optionally followed by @baud.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvMQTTURL); v != "" {
		c.MQTT.URL = v
	}
	if v := os.Getenv(EnvSerial); v != "" {
		c.Serial.Port = v
		for n := len(v) - 1; n > 0; n-- {
			if v[n] == '@' {
				if baud, err := strconv.Atoi(v[n+1:]); err == nil {
					c.Serial.Port, c.Serial.Baud = v[:n], baud
				}
				break
			}
		}
	}
}

// Validate checks values which can't be used.
func (c *Config) Validate() error {
	var errs fx.AggregatedError
	switch c.Board {
	case BoardPeriph, BoardSim:
	default:
		errs.Add(fmt.Errorf("board: unknown board %q", c.Board))
	}
	if c.Port == "" {
		errs.Add(errors.New("port: must not be empty"))
	}
	if c.PollInterval <= 0 {
		errs.Add(errors.New("poll_interval: must be positive"))
	}
	if c.Serial.Baud <= 0 {
		errs.Add(errors.New("serial.baud: must be positive"))
	}
	if c.MQTT.URL != "" && c.MQTT.CommandTopic == "" {
		errs.Add(errors.New("mqtt.command_topic: must not be empty"))
	}
	if c.InfluxDB.URL != "" && c.InfluxDB.Bucket == "" {
		errs.Add(errors.New("influxdb.bucket: must not be empty"))
	}
	return errs.Aggregate()
}
