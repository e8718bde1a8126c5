// Package notify signals the external renderer that the antenna is on
// target.
package notify

import (
	"context"
	"net"
	"time"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
)

// DefaultPayload is the datagram sent when the antenna reaches a newly
// acquired satellite.
const DefaultPayload = "ON_POSITION"

// writeTimeout bounds a single datagram write.
const writeTimeout = time.Second

// UDPNotifier sends one fire-and-forget datagram per notification. Delivery
// is best effort: there is no acknowledgement or retry and failures are
// only logged.
type UDPNotifier struct {
	addr    string
	payload []byte
	log     logging.Logger
}

// NewUDPNotifier returns a notifier for addr. An empty payload selects
// DefaultPayload.
func NewUDPNotifier(addr, payload string, log logging.Logger) *UDPNotifier {
	if payload == "" {
		payload = DefaultPayload
	}
	if log == nil {
		log = logging.Noop()
	}
	return &UDPNotifier{
		addr:    addr,
		payload: []byte(payload),
		log:     log.With(logging.String("peer", "renderer"), logging.String("addr", addr)),
	}
}

// NotifyOnPosition sends the payload. Errors are dropped.
func (n *UDPNotifier) NotifyOnPosition(ctx context.Context) {
	if err := n.send(ctx); err != nil {
		n.log.Debug(ctx, "arrival notification dropped", logging.Error(err))
		return
	}
	n.log.Debug(ctx, "arrival notification sent")
}

func (n *UDPNotifier) send(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", n.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = conn.Write(n.payload)
	return err
}
