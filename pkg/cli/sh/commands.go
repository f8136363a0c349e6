package sh

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/arena.go/pkg/command"
)

// DefaultWatchTime is how long watch prints frames without an argument.
const DefaultWatchTime = 10 * time.Second

func doCommand(c *ishell.Context, cmd command.Command, reply bool) {
	s := ShellFrom(c)
	f, err := s.Do(cmd, reply)
	if err != nil {
		c.Err(err)
		return
	}
	switch {
	case f == nil:
		c.Println("OK")
	case !f.IsValue():
		c.Err(errors.New(f.Payload))
	case s.OutputJSON:
		c.Println(f.Payload)
	default:
		c.Printf("%s = %v\n", f.Device, formatValue(f.Value))
	}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []interface{}:
		items := make([]string, len(val))
		for n, item := range val {
			items[n] = formatValue(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func deviceAction(action string, minArgs int, reply bool) func(c *ishell.Context) {
	return MustBeConnected(func(c *ishell.Context) {
		if len(c.Args) < 1+minArgs {
			c.Err(fmt.Errorf("expecting %d arguments", 1+minArgs))
			return
		}
		doCommand(c, command.New(c.Args[0], action, command.ParseArgs(c.Args[1:]...)...), reply)
	})
}

var (
	// ConnectCmd opens a link.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "serial PORT [BAUD] | mqtt URL",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Open(c.Args...); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes the link.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// SendCmd sends an arbitrary command.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "DEVICE ACTION [ARGS...]",
		Func: MustBeConnected(func(c *ishell.Context) {
			cmd, err := command.Parse(command.ParseArgs(c.Args...))
			if err != nil {
				c.Err(err)
				return
			}
			doCommand(c, cmd, cmd.Action == "get")
		}),
	}

	// GetCmd reads a device value.
	GetCmd = ishell.Cmd{
		Name:    "get",
		Aliases: []string{"g"},
		Help:    "DEVICE",
		Func:    deviceAction("get", 0, true),
	}

	// SetCmd sets a line value.
	SetCmd = ishell.Cmd{
		Name: "set",
		Help: "DEVICE 0|1",
		Func: deviceAction("set", 1, false),
	}

	// ToggleCmd toggles a line.
	ToggleCmd = ishell.Cmd{
		Name:    "toggle",
		Aliases: []string{"t"},
		Help:    "DEVICE",
		Func:    deviceAction("toggle", 0, false),
	}

	// PeriodicCmd starts or stops periodic toggling.
	PeriodicCmd = ishell.Cmd{
		Name: "periodic",
		Help: "DEVICE 0|1 [INTERVAL_MS]",
		Func: deviceAction("periodic", 1, false),
	}

	// DispenseCmd starts a feeder cycle.
	DispenseCmd = ishell.Cmd{
		Name: "dispense",
		Help: "DEVICE",
		Func: deviceAction("dispense", 0, false),
	}

	// ChannelCmd selects a multiplexer channel.
	ChannelCmd = ishell.Cmd{
		Name: "channel",
		Help: "DEVICE CHANNEL",
		Func: deviceAction("set_channel", 1, false),
	}

	// WatchCmd prints received frames.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[SECONDS]",
		Func: MustBeConnected(func(c *ishell.Context) {
			d := DefaultWatchTime
			if len(c.Args) > 0 {
				secs, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil || secs <= 0 {
					c.Err(fmt.Errorf("invalid duration %q", c.Args[0]))
					return
				}
				d = time.Duration(secs * float64(time.Second))
			}
			ShellFrom(c).Watch(d, nil)
		}),
	}
)
