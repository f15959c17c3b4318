package acudp

import (
	"context"
	"net"
	"strings"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/acudp/helpers"
	"github.com/temoto/acudp/log2"
	"github.com/temoto/alive/v2"
)

const DefaultReadLimit = 2048

// ReceiveFunc gets one datagram. Slice is owned by receiver.
type ReceiveFunc func(b []byte)

// Transport contract:
// - Send writes one datagram
// - receiver is called for each datagram, never concurrently with itself
// - SetReceiver(nil) stops further deliveries; one in progress may still finish
// - Close releases socket, subsequent Send fails
type Transport interface {
	Send(ctx context.Context, b []byte) error
	SetReceiver(fn ReceiveFunc)
	Close() error
}

type DialFunc func(ctx context.Context, address string) (Transport, error)

type TransportOptions struct {
	Log       *log2.Log
	OnError   func(error)
	ReadLimit int
}

type udpTransport struct {
	alive      *alive.Alive
	conn       net.Conn
	opt        TransportOptions
	recv       atomic.Value // receiverBox
	err        helpers.AtomicError
	delivering int32
}

type receiverBox struct{ fn ReceiveFunc }

var _ Transport = &udpTransport{}

func DialUDP(ctx context.Context, address string) (Transport, error) {
	return DialUDPOptions(ctx, address, TransportOptions{})
}

func DialUDPOptions(ctx context.Context, address string, opt TransportOptions) (Transport, error) {
	if opt.ReadLimit == 0 {
		opt.ReadLimit = DefaultReadLimit
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, errors.Annotatef(err, "dial udp=%s", address)
	}
	t := &udpTransport{
		alive: alive.NewAlive(),
		conn:  conn,
		opt:   opt,
	}
	t.recv.Store(receiverBox{})
	if !t.alive.Add(1) {
		_ = conn.Close()
		return nil, ErrClosed
	}
	go t.reader()
	t.opt.Log.Debugf("udp local=%s remote=%s", conn.LocalAddr(), conn.RemoteAddr())
	return t, nil
}

func (t *udpTransport) Send(ctx context.Context, b []byte) error {
	if err, closed := t.err.Load(); closed {
		return errors.Annotate(err, "send")
	}
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Annotate(err, "SetWriteDeadline")
	}
	if _, err := t.conn.Write(b); err != nil {
		return errors.Annotate(err, "send")
	}
	return nil
}

func (t *udpTransport) SetReceiver(fn ReceiveFunc) { t.recv.Store(receiverBox{fn}) }

// Close waits for reader to exit unless a delivery is in progress, so receiver may call Close.
func (t *udpTransport) Close() error {
	if _, found := t.err.StoreOnce(ErrClosed); found {
		return nil
	}
	t.recv.Store(receiverBox{})
	t.alive.Stop()
	err := t.conn.Close()
	if atomic.LoadInt32(&t.delivering) == 0 {
		t.alive.Wait()
	}
	return err
}

func (t *udpTransport) reader() {
	defer t.alive.Done()
	buf := make([]byte, t.opt.ReadLimit)
	for t.alive.IsRunning() {
		n, err := t.conn.Read(buf)
		if err != nil {
			if !t.alive.IsRunning() {
				return
			}
			estr := err.Error()
			if strings.HasSuffix(estr, "use of closed network connection") {
				return
			}
			// connected UDP reports ICMP unreachable as read error, server may come up later
			err = errors.Annotate(err, "udp read")
			t.opt.Log.Debugf("%v", err)
			if t.opt.OnError != nil {
				t.opt.OnError(err)
			}
			continue
		}
		box := t.recv.Load().(receiverBox)
		if box.fn == nil {
			t.opt.Log.Debugf("udp drop datagram=(%d) no receiver", n)
			continue
		}
		b := make([]byte, n)
		copy(b, buf[:n])
		atomic.StoreInt32(&t.delivering, 1)
		box.fn(b)
		atomic.StoreInt32(&t.delivering, 0)
	}
}
