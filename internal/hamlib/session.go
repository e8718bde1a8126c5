// Package hamlib implements the line based TCP control protocol spoken by
// rotctld and by gqrx's remote control interface.
package hamlib

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/internal/observability"
)

const (
	statusQuery  = "_"
	reportPrefix = "RPRT "
	// ReportOK is the reply both peers send for a successful set command.
	ReportOK = "RPRT 0"
)

// DefaultHandshakeTimeout bounds connect plus the liveness handshake.
const DefaultHandshakeTimeout = 5 * time.Second

// handshakeSettle is how long trailing handshake output is drained for.
const handshakeSettle = 50 * time.Millisecond

// Options configures a peer connection.
type Options struct {
	// HandshakeTimeout bounds connect and the status query reply.
	HandshakeTimeout time.Duration
	// IOTimeout bounds each command exchange. Zero leaves the transport
	// default in place, so a stalled peer stalls the caller.
	IOTimeout time.Duration
	Logger    logging.Logger
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.Logger == nil {
		o.Logger = logging.Noop()
	}
	return o
}

// session is one request/reply connection. Commands are serialised.
type session struct {
	peer      string
	addr      string
	ioTimeout time.Duration
	log       logging.Logger

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

func dial(ctx context.Context, peer, addr string, opts Options) (*session, error) {
	opts = opts.withDefaults()

	d := net.Dialer{Timeout: opts.HandshakeTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &PeerError{Peer: peer, Op: "connect", Err: err}
	}

	s := &session{
		peer:      peer,
		addr:      addr,
		ioTimeout: opts.IOTimeout,
		log:       opts.Logger.With(logging.String("peer", peer), logging.String("addr", addr)),
		conn:      conn,
		r:         bufio.NewReader(conn),
	}
	if err := s.handshake(opts.HandshakeTimeout); err != nil {
		_ = conn.Close()
		return nil, &PeerError{Peer: peer, Op: "handshake", Err: err}
	}
	s.log.Info(ctx, "connected")
	return s, nil
}

// handshake sends the status query and requires a non-empty answer within
// timeout. Whatever else the peer sends in reply is discarded so that later
// commands start on a clean line boundary.
func (s *session) handshake(timeout time.Duration) error {
	if err := s.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if _, err := io.WriteString(s.conn, statusQuery+"\n"); err != nil {
		return err
	}
	first, err := s.readLine()
	if err != nil {
		return err
	}
	s.log.Debug(context.Background(), "handshake reply", logging.String("reply", first))

	_ = s.conn.SetReadDeadline(time.Now().Add(handshakeSettle))
	for {
		if _, err := s.readLine(); err != nil {
			break
		}
	}
	return s.conn.SetDeadline(time.Time{})
}

// exchange sends cmd and reads lines reply lines.
func (s *session) exchange(ctx context.Context, op, cmd string, lines int) ([]string, error) {
	ctx, span := observability.StartSpan(ctx, "hamlib/"+op,
		attribute.String("peer", s.peer),
		attribute.String("command", cmd),
	)
	defer span.End()

	replies, err := s.roundTrip(ctx, cmd, lines)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &PeerError{Peer: s.peer, Op: op, Err: err}
	}
	s.log.Debug(ctx, "exchange",
		logging.String("op", op),
		logging.String("command", cmd),
		logging.Any("reply", replies),
	)
	return replies, nil
}

func (s *session) roundTrip(ctx context.Context, cmd string, lines int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deadline time.Time
	if s.ioTimeout > 0 {
		deadline = time.Now().Add(s.ioTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := io.WriteString(s.conn, cmd+"\n"); err != nil {
		return nil, s.ctxErr(ctx, err)
	}
	replies := make([]string, 0, lines)
	for i := 0; i < lines; i++ {
		line, err := s.readLine()
		if err != nil {
			return nil, s.ctxErr(ctx, err)
		}
		// A query that fails is answered with a single report line.
		if i == 0 && lines > 1 && strings.HasPrefix(line, reportPrefix) {
			return nil, newReplyError(line)
		}
		replies = append(replies, line)
	}
	return replies, nil
}

// readLine returns the next line without its terminator. A closed
// connection or a blank line is ErrEmptyReply.
func (s *session) readLine() (string, error) {
	line, err := s.r.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return "", ErrEmptyReply
		}
		if !errors.Is(err, io.EOF) {
			return "", err
		}
	}
	if strings.TrimSpace(line) == "" {
		return "", ErrEmptyReply
	}
	return line, nil
}

func (s *session) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}

// expectOK maps a set-command reply onto success or a *ReplyError.
func expectOK(reply string) error {
	if reply == ReportOK {
		return nil
	}
	return newReplyError(reply)
}

func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
