// Package dispatch routes inbound commands to devices by name and drives
// the devices once per loop iteration.
package dispatch

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/arena.go/pkg/clock"
	"github.com/robotalks/arena.go/pkg/codec"
	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/device"
	fx "github.com/robotalks/arena.go/pkg/framework"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Labels of the dispatcher's own error and info topics.
const (
	LabelRunCommand = "run_command"
	LabelParseJSON  = "parse_json"
	LabelLoadConfig = "load_config"
)

// AllTarget addresses every device.
const AllTarget = "all"

// StatusInterval is the period of the waiting status in ms.
var StatusInterval = uint32(1000)

// Inbound is raw data received by a transport, decoded on the loop.
type Inbound struct {
	Data   []byte
	Source string
	// Allow filters decoded commands, nil accepts everything.
	Allow func(command.Command) bool
	// Err is a receiving error reported instead of Data.
	Err error
}

// NewMessage implements fx.Message.
func (m *Inbound) NewMessage() fx.Message {
	return &Inbound{}
}

// Post queues an Inbound to the loop and wakes it up. It's safe to call
// from any goroutine.
func Post(ctl fx.LoopControl, msg *Inbound) {
	ctl.PostMessage(msg)
	ctl.TriggerNext()
}

// Dispatcher owns the devices.
type Dispatcher struct {
	// Port is the key of this controller in a configuration object.
	Port string
	// WaitConfig enables the configuration handshake.
	WaitConfig bool

	env     device.Env
	queue   telemetry.Queue
	sinks   telemetry.Mux
	devices []device.Device
	byName  map[string]device.Device

	configured bool
	statusSent bool
	lastStatus uint32

	runCommand *telemetry.Reporter
	parseJSON  *telemetry.Reporter
	loadConfig *telemetry.Reporter
}

// New creates a Dispatcher. Devices are built on env.Board and env.Clock;
// telemetry is queued and flushed to env.Sink and any sink added later.
func New(env device.Env, port string) *Dispatcher {
	d := &Dispatcher{
		Port:   port,
		byName: make(map[string]device.Device),
	}
	d.sinks.Add(env.Sink)
	d.env = env
	d.env.Sink = &d.queue
	d.runCommand = telemetry.NewReporter(LabelRunCommand, &d.queue)
	d.parseJSON = telemetry.NewReporter(LabelParseJSON, &d.queue)
	d.loadConfig = telemetry.NewReporter(LabelLoadConfig, &d.queue)
	return d
}

// AddSink adds telemetry destinations. It must be called before the loop
// starts.
func (d *Dispatcher) AddSink(sinks ...telemetry.Sink) *Dispatcher {
	d.sinks.Add(sinks...)
	return d
}

// Configured tells if devices have been loaded.
func (d *Dispatcher) Configured() bool {
	return d.configured
}

// Devices returns devices in configuration order.
func (d *Dispatcher) Devices() []device.Device {
	return d.devices
}

// Device finds a device by name.
func (d *Dispatcher) Device(name string) (device.Device, bool) {
	dev, ok := d.byName[name]
	return dev, ok
}

// Load builds devices from records. Records without a usable name and
// duplicated names are reported and skipped. It returns the number of
// devices added.
func (d *Dispatcher) Load(records []device.Record) int {
	var count int
	for n, rec := range records {
		if !rec.Has(device.KeyName) {
			d.loadConfig.Errorf("Device %d: Missing '%s' key in config", n, device.KeyName)
			continue
		}
		name, ok := rec.Name()
		if !ok || name == "" {
			d.loadConfig.Errorf("Device %d: %s: Expecting a string", n, device.KeyName)
			continue
		}
		if name == AllTarget {
			d.loadConfig.Errorf("Device %d: '%s' is a reserved name", n, name)
			continue
		}
		if _, exists := d.byName[name]; exists {
			d.loadConfig.Errorf("Duplicate device name: %s", name)
			continue
		}
		dev := device.Build(&d.env, rec)
		d.devices = append(d.devices, dev)
		d.byName[name] = dev
		count++
	}
	d.configured = true
	d.loadConfig.Infof("Loaded %d devices", count)
	return count
}

// LoadObject loads the records under Port in a configuration object
// {"<port>": [records...]}.
func (d *Dispatcher) LoadObject(obj map[string]interface{}) {
	val, ok := obj[d.Port]
	if !ok {
		d.loadConfig.Errorf("Missing '%s' key in config", d.Port)
		return
	}
	items, ok := val.([]interface{})
	if !ok {
		d.loadConfig.Errorf("%s: Expecting an array", d.Port)
		return
	}
	records := make([]device.Record, 0, len(items))
	for n, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			d.loadConfig.Errorf("Device %d: Expecting an object", n)
			continue
		}
		records = append(records, device.Record(m))
	}
	d.Load(records)
}

// HandleInbound decodes and executes an inbound message. A JSON array is a
// command, a JSON object is a configuration.
func (d *Dispatcher) HandleInbound(msg *Inbound) {
	if msg.Err != nil {
		d.parseJSON.Errorf("%s: %v", msg.Source, msg.Err)
		return
	}
	val, err := codec.Decode(msg.Data)
	if err != nil {
		d.parseJSON.Errorf("Can't parse %q: %v", msg.Data, err)
		return
	}
	switch {
	case codec.IsCommand(val):
		tokens, err := codec.Tokens(val)
		if err != nil {
			d.runCommand.Error(err.Error())
			return
		}
		cmd, err := command.Parse(tokens)
		if err != nil {
			d.runCommand.Error(err.Error())
			return
		}
		if msg.Allow != nil && !msg.Allow(cmd) {
			glog.V(2).Infof("%s: %s not allowed", msg.Source, cmd.Action)
			return
		}
		d.Dispatch(cmd)
	case codec.IsObject(val):
		if d.configured {
			d.loadConfig.Error("Configuration already loaded")
			return
		}
		obj, _ := codec.Object(val)
		d.LoadObject(obj)
	default:
		d.parseJSON.Error("Expecting a JSON array or object")
	}
}

// Dispatch routes a command to its target.
func (d *Dispatcher) Dispatch(cmd command.Command) {
	if cmd.Target == AllTarget {
		for _, dev := range d.devices {
			dev.HandleCommand(cmd)
		}
		return
	}
	dev, ok := d.byName[cmd.Target]
	if !ok {
		d.runCommand.Errorf("Unknown device: %s", cmd.Target)
		return
	}
	dev.HandleCommand(cmd)
}

// Poll polls every device in configuration order, and sends the waiting
// status while unconfigured.
func (d *Dispatcher) Poll() {
	if d.WaitConfig && !d.configured {
		now := d.env.Clock.Millis()
		if !d.statusSent || clock.Expired(now, d.lastStatus, StatusInterval) {
			d.statusSent, d.lastStatus = true, now
			telemetry.Status(&d.queue, telemetry.WaitingForConfig)
		}
	}
	for _, dev := range d.devices {
		dev.Poll()
	}
}

// Control implements fx.Controller: inbound messages are handled in
// arrival order, then devices are polled.
func (d *Dispatcher) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		if msg, ok := mc.CurrentMessage().(*Inbound); ok {
			mc.MessageTaken()
			d.HandleInbound(msg)
		}
	}))
	d.Poll()
	return nil
}

// Flush sends queued telemetry to the sinks.
func (d *Dispatcher) Flush() {
	d.queue.Flush(&d.sinks)
}

// AddToLoop implements fx.LoopAdder.
func (d *Dispatcher) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvControl, d)
	l.AddController(fx.PrLvPostProc, d.queue.Flusher(&d.sinks))
}

// String describes the dispatcher for logs.
func (d *Dispatcher) String() string {
	return fmt.Sprintf("dispatcher %s (%d devices)", d.Port, len(d.devices))
}
