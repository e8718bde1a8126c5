// Package hamlibtest provides in-process rotctld and gqrx stand-ins for
// tests.
package hamlibtest

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Handler answers one command line with zero or more reply lines. A nil
// reply sends nothing; returning close=true hangs up after the reply.
type Handler func(cmd string) (reply []string, close bool)

// Server is a line based TCP peer bound to a loopback port.
type Server struct {
	ln      net.Listener
	handler Handler

	mu       sync.Mutex
	commands []string
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB, h Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{ln: ln, handler: h, conns: make(map[net.Conn]struct{})}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// Addr is the host:port to dial.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Commands returns every command received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// CommandsWithPrefix filters Commands by prefix.
func (s *Server) CommandsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range s.Commands() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Close stops the listener and drops open connections.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		reply, hangup := s.handler(cmd)
		for _, l := range reply {
			if _, err := fmt.Fprintf(conn, "%s\n", l); err != nil {
				return
			}
		}
		if hangup {
			return
		}
	}
}

// Rotor simulates rotctld. Moves complete instantly unless Lag is set.
type Rotor struct {
	mu        sync.Mutex
	az, el    float64
	lag       int
	pending   int
	targetAz  float64
	targetEl  float64
	moveReply string
}

// NewRotor returns a rotor parked at az, el.
func NewRotor(az, el float64) *Rotor {
	return &Rotor{az: az, el: el, moveReply: "RPRT 0"}
}

// Lag makes each move take n position queries to complete.
func (r *Rotor) Lag(n int) *Rotor {
	r.mu.Lock()
	r.lag = n
	r.mu.Unlock()
	return r
}

// FailMoves makes every P command answer reply instead of RPRT 0.
func (r *Rotor) FailMoves(reply string) *Rotor {
	r.mu.Lock()
	r.moveReply = reply
	r.mu.Unlock()
	return r
}

// Position returns the simulated pointing.
func (r *Rotor) Position() (az, el float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.az, r.el
}

// Handle implements Handler.
func (r *Rotor) Handle(cmd string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case cmd == "_":
		return []string{"Dummy rotator"}, false
	case cmd == "p":
		if r.pending > 0 {
			r.pending--
			if r.pending == 0 {
				r.az, r.el = r.targetAz, r.targetEl
			}
		}
		return []string{formatFloat(r.az), formatFloat(r.el)}, false
	case strings.HasPrefix(cmd, "P "):
		fields := strings.Fields(cmd)
		if len(fields) != 3 {
			return []string{"RPRT -1"}, false
		}
		az, err1 := strconv.ParseFloat(fields[1], 64)
		el, err2 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil {
			return []string{"RPRT -1"}, false
		}
		if r.moveReply != "RPRT 0" {
			return []string{r.moveReply}, false
		}
		if r.lag > 0 {
			r.targetAz, r.targetEl, r.pending = az, el, r.lag
		} else {
			r.az, r.el = az, el
		}
		return []string{"RPRT 0"}, false
	default:
		return []string{"RPRT -4"}, false
	}
}

// Receiver simulates gqrx's remote control.
type Receiver struct {
	mu   sync.Mutex
	freq int64
}

// NewReceiver returns a receiver tuned to 0 Hz.
func NewReceiver() *Receiver { return &Receiver{} }

// Frequency returns the last frequency set.
func (g *Receiver) Frequency() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.freq
}

// Handle implements Handler.
func (g *Receiver) Handle(cmd string) ([]string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case cmd == "_":
		return []string{"gqrx"}, false
	case cmd == "f":
		return []string{strconv.FormatInt(g.freq, 10)}, false
	case strings.HasPrefix(cmd, "F "):
		hz, err := strconv.ParseInt(strings.TrimSpace(cmd[2:]), 10, 64)
		if err != nil {
			return []string{"RPRT 1"}, false
		}
		g.freq = hz
		return []string{"RPRT 0"}, false
	default:
		return []string{"RPRT 1"}, false
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
