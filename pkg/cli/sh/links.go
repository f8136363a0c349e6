package sh

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/golang/glog"

	"github.com/robotalks/arena.go/pkg/config"
	"github.com/robotalks/arena.go/pkg/transport/mqtt"
	"github.com/robotalks/arena.go/pkg/transport/serial"
	"github.com/robotalks/arena.go/pkg/wire"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", configFile, "Controller configuration sent when a serial controller asks for it")
	RegisterDialer("serial", DialSerial)
	RegisterDialer("mqtt", DialMQTT)
}

// serialLink runs a wire.Client until closed.
type serialLink struct {
	*wire.Client
	cancel func()
	done   chan struct{}
}

func (l *serialLink) Close() error {
	l.cancel()
	err := l.Client.Conn().Close()
	<-l.done
	return err
}

// DialSerial opens PORT [BAUD]. With a configuration file, its devices
// are sent whenever the controller waits for configuration.
func DialSerial(args []string) (Link, string, error) {
	if len(args) < 1 {
		return nil, "", fmt.Errorf("expecting PORT [BAUD]")
	}
	baud := serial.DefaultBaud
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, "", fmt.Errorf("invalid baud rate %q", args[1])
		}
		baud = n
	}
	client, err := serial.Dial(args[0], baud)
	if err != nil {
		return nil, "", err
	}
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			client.Conn().Close()
			return nil, "", err
		}
		records := make([]interface{}, len(cfg.Devices))
		for n, rec := range cfg.Devices {
			records[n] = map[string]interface{}(rec)
		}
		client.ConfigureOnRequest(cfg.Port, records)
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &serialLink{Client: client, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		if err := client.Run(ctx); err != nil && err != context.Canceled {
			glog.Warningf("serial %s: %v", args[0], err)
		}
	}()
	return l, args[0], nil
}

// DialMQTT connects to the broker URL.
func DialMQTT(args []string) (Link, string, error) {
	if len(args) < 1 {
		return nil, "", fmt.Errorf("expecting URL")
	}
	q, err := mqtt.Dial(args[0])
	if err != nil {
		return nil, "", err
	}
	return mqtt.NewClient(q), "mqtt", nil
}
