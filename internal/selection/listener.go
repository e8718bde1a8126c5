package selection

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/signalsfoundry/antenna-tracker/catalog"
	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/internal/observability"
)

// DefaultAddr is the conventional selection port.
const DefaultAddr = ":7777"

// maxPayload is the largest single read treated as one payload.
const maxPayload = 1024

// Metrics receives per-message outcomes. *observability.TrackerCollector
// implements it.
type Metrics interface {
	SelectionResult(result string)
}

type noopMetrics struct{}

func (noopMetrics) SelectionResult(string) {}

// Listener accepts TCP connections carrying satellite names and forwards
// matches into a Mailbox. Each read from a connection is one payload; a
// payload may hold several newline separated messages. The message EXIT
// routes the shutdown sentinel and stops the listener.
type Listener struct {
	catalog *catalog.Catalog
	box     *Mailbox
	log     logging.Logger
	metrics Metrics

	mu       sync.Mutex
	ln       net.Listener
	conns    map[net.Conn]struct{}
	stopping bool
	wg       sync.WaitGroup

	exitOnce sync.Once
	exited   chan struct{}
}

// NewListener builds a listener resolving names against cat. metrics may be
// nil.
func NewListener(cat *catalog.Catalog, box *Mailbox, log logging.Logger, metrics Metrics) *Listener {
	if log == nil {
		log = logging.Noop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Listener{
		catalog: cat,
		box:     box,
		log:     log.With(logging.String("component", "selection")),
		metrics: metrics,
		conns:   make(map[net.Conn]struct{}),
		exited:  make(chan struct{}),
	}
}

// ListenAndServe listens on addr and serves until EXIT is received, Close is
// called, or ctx is done.
func (l *Listener) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()
	return l.Serve(ln)
}

// Serve accepts connections on ln. It returns nil once the listener was
// stopped by EXIT or Close.
func (l *Listener) Serve(ln net.Listener) error {
	l.mu.Lock()
	if l.stopping {
		l.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	l.ln = ln
	l.mu.Unlock()

	l.log.Info(context.Background(), "listening for selections", logging.String("addr", ln.Addr().String()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.isStopping() {
				l.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		if !l.track(conn) {
			_ = conn.Close()
			continue
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.untrack(conn)
			l.serveConn(conn)
		}()
	}
}

// Close stops accepting, drops open connections and waits for their
// handlers.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.stopping = true
	ln := l.ln
	for c := range l.conns {
		_ = c.Close()
	}
	l.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	return err
}

// Exited is closed once EXIT has been routed to the mailbox.
func (l *Listener) Exited() <-chan struct{} {
	return l.exited
}

// Addr returns the bound address, or nil before Serve.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) serveConn(conn net.Conn) {
	ctx, log := logging.WithRequestLogger(context.Background(), l.log)
	log = log.With(logging.String("remote", conn.RemoteAddr().String()))
	log.Debug(ctx, "selection connection opened")
	defer log.Debug(ctx, "selection connection closed")

	buf := make([]byte, maxPayload)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, msg := range strings.Split(string(buf[:n]), "\n") {
				if l.dispatch(ctx, log, msg) {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// dispatch handles one message and reports whether it was EXIT.
func (l *Listener) dispatch(ctx context.Context, log logging.Logger, msg string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return false
	}
	if msg == ExitCommand {
		log.Info(ctx, "exit requested")
		l.metrics.SelectionResult(observability.SelectionShutdown)
		l.box.Put(ShutdownRequest)
		l.exitOnce.Do(func() { close(l.exited) })
		go func() { _ = l.Close() }()
		return true
	}

	rec, ok := l.catalog.Lookup(msg)
	if !ok {
		log.Debug(ctx, "selection ignored: no catalog match", logging.String("selection", msg))
		l.metrics.SelectionResult(observability.SelectionIgnored)
		return false
	}
	log.Info(ctx, "selection accepted",
		logging.String("selection", msg),
		logging.String("satellite", rec.Name),
	)
	l.metrics.SelectionResult(observability.SelectionAccepted)
	l.box.Put(Request{Name: rec.Name})
	return false
}

func (l *Listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopping {
		return false
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	delete(l.conns, conn)
	l.mu.Unlock()
	_ = conn.Close()
}

func (l *Listener) isStopping() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopping
}
