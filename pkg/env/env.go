// Package env assembles an arena controller from its configuration: the
// board, the dispatcher with configured devices, transports and sinks.
package env

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/arena.go/pkg/clock"
	"github.com/robotalks/arena.go/pkg/config"
	"github.com/robotalks/arena.go/pkg/device"
	"github.com/robotalks/arena.go/pkg/dispatch"
	fx "github.com/robotalks/arena.go/pkg/framework"
	"github.com/robotalks/arena.go/pkg/hal"
	"github.com/robotalks/arena.go/pkg/telemetry"
	"github.com/robotalks/arena.go/pkg/telemetry/influx"
	"github.com/robotalks/arena.go/pkg/transport/mqtt"
	"github.com/robotalks/arena.go/pkg/transport/serial"
	"github.com/robotalks/arena.go/pkg/transport/stream"
	"github.com/robotalks/arena.go/pkg/transport/websocket"

	// all device kinds
	_ "github.com/robotalks/arena.go/pkg/devices/all"
)

// Options are command line options, overriding the configuration file.
type Options struct {
	ConfigFile string

	ID         string
	Board      string
	Port       string
	Serial     string
	Baud       int
	MQTTURL    string
	Listen     string
	Stdio      bool
	WaitConfig bool
}

var defaultOptions Options

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultOptions.ConfigFile, "config", defaultOptions.ConfigFile, "Configuration file (YAML or JSON)")
	flag.StringVar(&defaultOptions.ID, "id", defaultOptions.ID, "Controller ID")
	flag.StringVar(&defaultOptions.Board, "board", defaultOptions.Board, "Board: periph or sim")
	flag.StringVar(&defaultOptions.Port, "port", defaultOptions.Port, "Name of this controller in configuration objects")
	flag.StringVar(&defaultOptions.Serial, "serial", defaultOptions.Serial, "Serial port to the host")
	flag.IntVar(&defaultOptions.Baud, "baud", defaultOptions.Baud, "Serial baud rate")
	flag.StringVar(&defaultOptions.MQTTURL, "mqtt", defaultOptions.MQTTURL, "MQTT broker URL")
	flag.StringVar(&defaultOptions.Listen, "listen", defaultOptions.Listen, "Websocket listen address")
	flag.BoolVar(&defaultOptions.Stdio, "stdio", defaultOptions.Stdio, "Use stdin/stdout as the host link")
	flag.BoolVar(&defaultOptions.WaitConfig, "wait-config", defaultOptions.WaitConfig, "Ask the host for the device configuration")
}

// Default gets the command line options.
func Default() *Options {
	return &defaultOptions
}

// NewConfig loads the configuration file, and applies the command line
// options which were set explicitly.
func (o *Options) NewConfig() (*config.Config, error) {
	var cfg *config.Config
	if o.ConfigFile != "" {
		c, err := config.Load(o.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		cfg = config.Default()
		cfg.ApplyEnv()
	}
	flag.Visit(func(f *flag.Flag) { o.apply(cfg, f.Name) })
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *Options) apply(cfg *config.Config, name string) {
	switch name {
	case "id":
		cfg.ID = o.ID
	case "board":
		cfg.Board = o.Board
	case "port":
		cfg.Port = o.Port
	case "serial":
		cfg.Serial.Port = o.Serial
	case "baud":
		cfg.Serial.Baud = o.Baud
	case "mqtt":
		cfg.MQTT.URL = o.MQTTURL
	case "listen":
		cfg.Websocket.Listen = o.Listen
	case "stdio":
		cfg.Stdio = o.Stdio
	case "wait-config":
		cfg.WaitConfig = o.WaitConfig
	}
}

// MachineID retrieves the unique ID identifying the machine, or a random
// one when the machine doesn't provide it.
func MachineID() string {
	id, err := machineid.ID()
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return uuid.New().String()
	}
	return id
}

// Env is an assembled controller.
type Env struct {
	Config     *config.Config
	Board      hal.Board
	Dispatcher *dispatch.Dispatcher

	adders  []fx.LoopAdder
	closers []io.Closer
}

// New creates Env from config. Transports are created but not started.
func New(ctx context.Context, cfg *config.Config) (*Env, error) {
	if cfg.ID == "" {
		cfg.ID = MachineID()
	}
	e := &Env{Config: cfg}
	if err := e.setupBoard(); err != nil {
		return nil, err
	}
	e.Dispatcher = dispatch.New(device.Env{Board: e.Board, Clock: clock.NewSystem()}, cfg.Port)
	e.Dispatcher.WaitConfig = cfg.WaitConfig
	if err := e.setupTransports(ctx); err != nil {
		e.Close()
		return nil, err
	}
	if len(cfg.Devices) > 0 {
		e.Dispatcher.Load(cfg.Devices)
	}
	glog.Infof("controller %s: %s", cfg.ID, e.Dispatcher)
	return e, nil
}

// MustNew creates Env and fails on error.
func MustNew(cfg *config.Config) *Env {
	e, err := New(context.Background(), cfg)
	if err != nil {
		log.Fatalln(err)
	}
	return e
}

func (e *Env) setupBoard() error {
	switch e.Config.Board {
	case config.BoardSim:
		e.Board = hal.NewSim()
	case config.BoardPeriph:
		b, err := hal.NewPeriph()
		if err != nil {
			return err
		}
		e.Board = b
		e.closers = append(e.closers, b)
	default:
		return fmt.Errorf("unknown board %q", e.Config.Board)
	}
	return nil
}

func (e *Env) setupTransports(ctx context.Context) error {
	cfg := e.Config
	if cfg.Stdio {
		e.attach(stream.NewStdio())
	}
	if cfg.Serial.Port != "" {
		ep, err := serial.NewEndpoint(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return fmt.Errorf("open serial %s: %w", cfg.Serial.Port, err)
		}
		e.attach(ep)
	}
	if cfg.MQTT.URL != "" {
		opts, prefix, err := mqtt.ClientOptionsFromURL(cfg.MQTT.URL)
		if err != nil {
			return fmt.Errorf("invalid MQTT URL: %w", err)
		}
		if opts.ClientID == "" {
			opts.SetClientID("arena-" + cfg.ID)
		}
		b := mqtt.NewBridge(mqtt.NewQueue(opts, prefix), cfg.Port)
		b.CommandTopic = cfg.MQTT.CommandTopic
		b.PublishTopic = cfg.MQTT.PublishTopic
		b.AllowGet = cfg.MQTT.AllowGet
		e.attach(b)
	}
	if cfg.Websocket.Listen != "" {
		e.attach(websocket.NewServer(cfg.Websocket.Listen))
	}
	if cfg.InfluxDB.URL != "" {
		s, err := influx.Dial(ctx, cfg.InfluxDB, cfg.ID)
		if err != nil {
			return err
		}
		e.Dispatcher.AddSink(s)
		e.closers = append(e.closers, s)
	}
	return nil
}

type transport interface {
	fx.LoopAdder
	telemetry.Sink
}

func (e *Env) attach(t transport) {
	e.Dispatcher.AddSink(t)
	e.adders = append(e.adders, t)
}

// AddToLoop implements LoopAdder. The loop closes Env when it stops.
func (e *Env) AddToLoop(l *fx.Loop) {
	l.Interval = e.Config.PollInterval
	l.Add(e.Dispatcher)
	l.Add(e.adders...)
	l.AddCloser(e)
}

// Close releases the board and sinks.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	for _, c := range e.closers {
		errs.Add(c.Close())
	}
	return errs.Aggregate()
}
