// Package sh is the interactive arena console. It talks to a controller
// over a serial link or through the MQTT bridge.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Link is a connection to a controller.
type Link interface {
	Do(command.Command) error
	FrameChan() <-chan telemetry.Frame
	io.Closer
}

// Dialer opens a Link from the arguments of the connect command.
type Dialer func(args []string) (Link, string, error)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration
	// Connect holds the arguments of the connect command run on start.
	Connect []string

	Shell *ishell.Shell

	lock    sync.Mutex
	link    Link
	linkEnd chan struct{}
	waiter  chan telemetry.Frame
	watch   bool
	out     io.Writer
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "

	// DefaultTimeout bounds waiting for a reply.
	DefaultTimeout = time.Second
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	connectTo  string

	dialers = map[string]Dialer{}

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&SendCmd,
		&GetCmd,
		&SetCmd,
		&ToggleCmd,
		&PeriodicCmd,
		&DispenseCmd,
		&ChannelCmd,
		&WatchCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&connectTo, "connect", connectTo, "Connect on start, e.g. serial:/dev/ttyACM0 or mqtt:mqtt://localhost:1883/")
}

// RegisterDialer makes a link scheme available to the connect command.
func RegisterDialer(scheme string, d Dialer) {
	dialers[scheme] = d
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     DefaultTimeout,
		Shell:       ishell.New(),
		out:         os.Stdout,
	}
	if connectTo != "" {
		s.Connect = splitScheme(connectTo)
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

func splitScheme(target string) []string {
	for n := 0; n < len(target); n++ {
		if target[n] == ':' {
			return []string{target[:n], target[n+1:]}
		}
	}
	return []string{target}
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if !ShellFrom(c).Connected() {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Connected tells if a link is open.
func (s *Shell) Connected() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.link != nil
}

// Open dials a link. args[0] is the scheme.
func (s *Shell) Open(args ...string) error {
	if len(args) < 2 {
		return fmt.Errorf("expecting SCHEME TARGET")
	}
	dial, ok := dialers[args[0]]
	if !ok {
		return fmt.Errorf("unknown link %q", args[0])
	}
	link, name, err := dial(args[1:])
	if err != nil {
		return err
	}
	s.Attach(link, name)
	return nil
}

// Attach uses link as the current connection.
func (s *Shell) Attach(link Link, name string) {
	s.Disconnect()
	s.lock.Lock()
	s.link, s.linkEnd = link, make(chan struct{})
	go s.pump(link.FrameChan(), s.linkEnd)
	s.lock.Unlock()
	s.setPrompt(fmt.Sprintf("[%s] > ", name))
}

func (s *Shell) setPrompt(prompt string) {
	if s.Shell != nil {
		s.Shell.SetPrompt(prompt)
	}
}

// Disconnect closes the current link.
func (s *Shell) Disconnect() {
	s.lock.Lock()
	link, end := s.link, s.linkEnd
	s.link, s.linkEnd = nil, nil
	s.lock.Unlock()
	if link != nil {
		close(end)
		link.Close()
		s.setPrompt(unconnectedPrompt)
	}
}

// pump routes received frames to the waiting command, or prints them
// while watching.
func (s *Shell) pump(frames <-chan telemetry.Frame, end chan struct{}) {
	for {
		select {
		case <-end:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			s.lock.Lock()
			waiter, watch := s.waiter, s.watch
			s.lock.Unlock()
			switch {
			case waiter != nil:
				select {
				case waiter <- f:
				default:
				}
			case watch:
				s.PrintFrame(f)
			}
		}
	}
}

// PrintFrame prints a frame in text or JSON.
func (s *Shell) PrintFrame(f telemetry.Frame) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.OutputJSON {
		out, _ := json.Marshal(map[string]string{"topic": f.Topic, "payload": f.Payload})
		fmt.Fprintln(s.out, string(out))
		return
	}
	fmt.Fprintln(s.out, f.String())
}

// Do sends a command. When reply is set, it waits for the value report or
// an error of the target device.
func (s *Shell) Do(cmd command.Command, reply bool) (*telemetry.Frame, error) {
	s.lock.Lock()
	link := s.link
	var waiter chan telemetry.Frame
	if reply {
		waiter = make(chan telemetry.Frame, 16)
		s.waiter = waiter
	}
	s.lock.Unlock()
	if link == nil {
		return nil, fmt.Errorf("not connected")
	}
	defer func() {
		s.lock.Lock()
		if s.waiter == waiter {
			s.waiter = nil
		}
		s.lock.Unlock()
	}()
	if err := link.Do(cmd); err != nil {
		return nil, err
	}
	if !reply {
		return nil, nil
	}
	timeout := time.After(s.Timeout)
	for {
		select {
		case f := <-waiter:
			if IsReply(f, cmd.Target) {
				return &f, nil
			}
		case <-timeout:
			return nil, fmt.Errorf("%s: no reply", cmd.Target)
		}
	}
}

// IsReply tells if a frame answers a command to target.
func IsReply(f telemetry.Frame, target string) bool {
	if f.IsValue() {
		return f.Device == target
	}
	if f.Severity() != telemetry.TopicError {
		return false
	}
	// dispatcher errors may be qualified with the port: error/<port>/run_command
	label := f.Label()
	return label == target || label == "run_command" || strings.HasSuffix(label, "/run_command")
}

// Watch prints frames for d, or until interrupted when d is 0.
func (s *Shell) Watch(d time.Duration, stop <-chan struct{}) {
	s.lock.Lock()
	s.watch = true
	s.lock.Unlock()
	defer func() {
		s.lock.Lock()
		s.watch = false
		s.lock.Unlock()
	}()
	var timeout <-chan time.Time
	if d > 0 {
		timeout = time.After(d)
	}
	select {
	case <-timeout:
	case <-stop:
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(s.Connect) > 0 {
		if err := s.Open(s.Connect...); err != nil {
			log.Fatalf("connect failed: %v", err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().Run(flag.Args()...)
}
