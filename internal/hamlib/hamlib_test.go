package hamlib

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/antenna-tracker/internal/hamlib/hamlibtest"
	"github.com/signalsfoundry/antenna-tracker/model"
)

func testOptions() Options {
	return Options{HandshakeTimeout: time.Second, IOTimeout: time.Second}
}

func dialTestRotor(t *testing.T, h hamlibtest.Handler) (*Rotor, *hamlibtest.Server) {
	t.Helper()
	srv := hamlibtest.NewServer(t, h)
	rotor, err := DialRotor(context.Background(), srv.Addr(), testOptions())
	if err != nil {
		t.Fatalf("DialRotor: %v", err)
	}
	t.Cleanup(func() { _ = rotor.Close() })
	return rotor, srv
}

func TestDialRotorHandshake(t *testing.T) {
	rotor, srv := dialTestRotor(t, hamlibtest.NewRotor(0, 0).Handle)
	if got := srv.Commands(); len(got) != 1 || got[0] != "_" {
		t.Fatalf("handshake commands = %q, want [_]", got)
	}
	if rotor.Addr() != srv.Addr() {
		t.Fatalf("Addr = %q, want %q", rotor.Addr(), srv.Addr())
	}
}

func TestHandshakeDrainsExtraLines(t *testing.T) {
	sim := hamlibtest.NewRotor(10, 20)
	rotor, _ := dialTestRotor(t, func(cmd string) ([]string, bool) {
		if cmd == "_" {
			return []string{"Model: Dummy", "Backend: 1", "Status: ok"}, false
		}
		return sim.Handle(cmd)
	})

	pos, err := rotor.Position(context.Background())
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos != (model.Position{Azimuth: 10, Elevation: 20}) {
		t.Fatalf("Position = %+v; handshake output leaked into the reply", pos)
	}
}

func TestDialFailsOnEmptyHandshake(t *testing.T) {
	srv := hamlibtest.NewServer(t, func(string) ([]string, bool) { return nil, true })
	_, err := DialRotor(context.Background(), srv.Addr(), testOptions())
	var pe *PeerError
	if !errors.As(err, &pe) || pe.Peer != PeerRotor || pe.Op != "handshake" {
		t.Fatalf("DialRotor error = %v, want rotor handshake PeerError", err)
	}
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("DialRotor error = %v, want ErrEmptyReply", err)
	}
}

func TestDialFailsOnSilentPeer(t *testing.T) {
	srv := hamlibtest.NewServer(t, func(string) ([]string, bool) { return nil, false })
	start := time.Now()
	_, err := DialReceiver(context.Background(), srv.Addr(), Options{HandshakeTimeout: 100 * time.Millisecond})
	if err == nil {
		t.Fatal("expected handshake timeout")
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("error = %v, want a timeout", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("handshake timeout not honoured")
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = DialReceiver(context.Background(), addr, testOptions())
	var pe *PeerError
	if !errors.As(err, &pe) || pe.Peer != PeerReceiver || pe.Op != "connect" {
		t.Fatalf("DialReceiver error = %v, want receiver connect PeerError", err)
	}
}

func TestRotorSetPosition(t *testing.T) {
	sim := hamlibtest.NewRotor(0, 0)
	rotor, srv := dialTestRotor(t, sim.Handle)

	if err := rotor.SetPosition(context.Background(), model.Position{Azimuth: 120.5, Elevation: 45}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if err := rotor.SetPosition(context.Background(), model.Home); err != nil {
		t.Fatalf("SetPosition home: %v", err)
	}
	moves := srv.CommandsWithPrefix("P ")
	if len(moves) != 2 || moves[0] != "P 120.5 45" || moves[1] != "P 0 0" {
		t.Fatalf("moves = %q", moves)
	}
}

func TestRotorSetPositionReportsError(t *testing.T) {
	sim := hamlibtest.NewRotor(0, 0).FailMoves("RPRT -1")
	rotor, _ := dialTestRotor(t, sim.Handle)

	err := rotor.SetPosition(context.Background(), model.Position{Azimuth: 10, Elevation: 10})
	var re *ReplyError
	if !errors.As(err, &re) || !re.HasCode || re.Code != -1 {
		t.Fatalf("SetPosition error = %v, want ReplyError code -1", err)
	}
	var pe *PeerError
	if !errors.As(err, &pe) || pe.Op != "set position" {
		t.Fatalf("SetPosition error = %v, want set position PeerError", err)
	}
}

func TestRotorPositionParsesReply(t *testing.T) {
	rotor, srv := dialTestRotor(t, hamlibtest.NewRotor(181.25, 12.5).Handle)
	pos, err := rotor.Position(context.Background())
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos != (model.Position{Azimuth: 181.25, Elevation: 12.5}) {
		t.Fatalf("Position = %+v", pos)
	}
	if got := srv.CommandsWithPrefix("p"); len(got) != 1 {
		t.Fatalf("position queries = %q", got)
	}
}

func TestRotorAbsolutePositionNormalises(t *testing.T) {
	rotor, _ := dialTestRotor(t, hamlibtest.NewRotor(-10, 5).Handle)
	pos, err := rotor.AbsolutePosition(context.Background())
	if err != nil {
		t.Fatalf("AbsolutePosition: %v", err)
	}
	if pos != (model.Position{Azimuth: 350, Elevation: 5}) {
		t.Fatalf("AbsolutePosition = %+v", pos)
	}
}

func TestRotorPositionMalformed(t *testing.T) {
	rotor, _ := dialTestRotor(t, func(cmd string) ([]string, bool) {
		if cmd == "_" {
			return []string{"Dummy"}, false
		}
		return []string{"north", "up"}, false
	})
	_, err := rotor.Position(context.Background())
	var me *MalformedReplyError
	if !errors.As(err, &me) {
		t.Fatalf("Position error = %v, want MalformedReplyError", err)
	}
}

func TestRotorPositionErrorReport(t *testing.T) {
	rotor, _ := dialTestRotor(t, func(cmd string) ([]string, bool) {
		if cmd == "_" {
			return []string{"Dummy"}, false
		}
		return []string{"RPRT -5"}, false
	})
	_, err := rotor.Position(context.Background())
	var re *ReplyError
	if !errors.As(err, &re) || re.Code != -5 {
		t.Fatalf("Position error = %v, want ReplyError -5", err)
	}
}

func TestRotorPeerHangsUp(t *testing.T) {
	rotor, _ := dialTestRotor(t, func(cmd string) ([]string, bool) {
		if cmd == "_" {
			return []string{"Dummy"}, false
		}
		return nil, true
	})
	err := rotor.SetPosition(context.Background(), model.Home)
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("SetPosition error = %v, want ErrEmptyReply", err)
	}
}

func TestExchangeHonoursContext(t *testing.T) {
	rotor, _ := dialTestRotor(t, func(cmd string) ([]string, bool) {
		if cmd == "_" {
			return []string{"Dummy"}, false
		}
		return nil, false
	})
	rotor.s.ioTimeout = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := rotor.Position(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Position error = %v, want context.Canceled", err)
	}
}

func TestReceiverSetFrequency(t *testing.T) {
	sim := hamlibtest.NewReceiver()
	srv := hamlibtest.NewServer(t, sim.Handle)
	recv, err := DialReceiver(context.Background(), srv.Addr(), testOptions())
	if err != nil {
		t.Fatalf("DialReceiver: %v", err)
	}
	defer recv.Close()

	if err := recv.SetFrequency(context.Background(), 137_103_214.6); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	if got := sim.Frequency(); got != 137_103_215 {
		t.Fatalf("receiver frequency = %d, want 137103215", got)
	}
	if got := srv.CommandsWithPrefix("F "); len(got) != 1 || got[0] != "F 137103215" {
		t.Fatalf("tune commands = %q", got)
	}

	for _, bad := range []float64{0, -1} {
		err := recv.SetFrequency(context.Background(), bad)
		if err == nil || !strings.Contains(err.Error(), "invalid frequency") {
			t.Fatalf("SetFrequency(%v) error = %v", bad, err)
		}
	}
}

func TestReplyErrorMessages(t *testing.T) {
	if got := newReplyError("RPRT -8").Error(); got != "peer reported error -8" {
		t.Fatalf("Error() = %q", got)
	}
	if got := newReplyError("huh").Error(); got != `unexpected reply "huh"` {
		t.Fatalf("Error() = %q", got)
	}
}
