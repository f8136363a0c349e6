// Package websocket accepts commands from websocket clients and broadcasts
// telemetry frames to them. Every websocket message carries one line of
// the arena protocol without the line terminator.
package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/arena.go/pkg/dispatch"
	fx "github.com/robotalks/arena.go/pkg/framework"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// DefaultClientQueueLen is the number of frames buffered per client.
// Frames to a client falling behind are dropped.
const DefaultClientQueueLen = 64

// Server is a websocket endpoint.
type Server struct {
	Addr string
	Path string

	lock    sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	out  chan string
}

// NewServer creates a Server listening on addr.
func NewServer(addr string) *Server {
	return &Server{Addr: addr, Path: "/"}
}

// Handler creates the http.Handler serving websocket clients, posting
// received messages through ctl.
func (s *Server) Handler(ctl fx.LoopControl) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		s.serve(ctl, conn)
	})
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.clients)
}

// Send implements telemetry.Sink. It never blocks.
func (s *Server) Send(f telemetry.Frame) error {
	msg := f.String()
	s.lock.RLock()
	defer s.lock.RUnlock()
	for c := range s.clients {
		select {
		case c.out <- msg:
		default:
			glog.V(2).Infof("websocket %s: dropped %s", c.conn.Request().RemoteAddr, f.Topic)
		}
	}
	return nil
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.Path, s.Handler(fx.LoopCtlFrom(ctx)))
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		glog.Errorf("websocket: %v", err)
		return err
	}
	glog.Infof("websocket: listening on %s", ln.Addr())
	srv := &http.Server{Handler: mux}
	return fx.RunWithContextCancel(ctx, func() {
		srv.Close()
		s.closeAll()
	}, func() error {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(l *fx.Loop) {
	l.AddRunnable(s)
}

func (s *Server) serve(ctl fx.LoopControl, conn *websocket.Conn) {
	source := "websocket " + conn.Request().RemoteAddr
	c := &client{conn: conn, out: make(chan string, DefaultClientQueueLen)}
	s.lock.Lock()
	if s.clients == nil {
		s.clients = make(map[*client]struct{})
	}
	s.clients[c] = struct{}{}
	s.lock.Unlock()
	glog.Infof("%s: connected", source)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for msg := range c.out {
			if err := websocket.Message.Send(conn, msg); err != nil {
				glog.V(2).Infof("%s: %v", source, err)
				return
			}
		}
	}()

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			glog.Infof("%s: disconnected: %v", source, err)
			break
		}
		dispatch.Post(ctl, &dispatch.Inbound{Data: data, Source: source})
	}

	s.lock.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.out)
	}
	s.lock.Unlock()
	<-writeDone
}

func (s *Server) closeAll() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.clients {
		c.conn.Close()
	}
}
