package acudp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/acudp/helpers/atomic_clock"
	"github.com/temoto/acudp/log2"
)

const DefaultNetworkTimeout = 3 * time.Second

type State uint32

const (
	StateIdle State = iota
	StateHandshakeSent
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshakeSent:
		return "handshake-sent"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

type ClientOptions struct {
	Log  *log2.Log
	Dial DialFunc
	// OnError receives failures that happen in receive goroutine,
	// protocol violations included.
	OnError        func(error)
	NetworkTimeout time.Duration
}

// Client is single session with telemetry server.
// Accessors are safe for concurrent use and never block.
// One instance connects at most once, make new Client to reconnect.
type Client struct {
	addr string
	mode ConnectionType
	opt  ClientOptions
	log  *log2.Log

	mu        sync.Mutex // serializes Connect/Disconnect, never held while listeners run
	transport Transport

	state     uint32
	session   atomic.Value // SessionInfo
	car       atomic.Value // CarInfo
	lap       atomic.Value // LapInfo
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
	lastRecv  atomic_clock.Clock
	stat      Stat
	listeners listenerList
}

// NewClient validates mode and host, no network activity until Connect.
func NewClient(host string, mode ConnectionType, opt ClientOptions) (*Client, error) {
	if !mode.Valid() {
		return nil, errors.NotValidf("mode=%s", mode)
	}
	if host == "" {
		return nil, errors.NotValidf("empty host")
	}
	if opt.Dial == nil {
		opt.Dial = DialUDP
	}
	if opt.NetworkTimeout == 0 {
		opt.NetworkTimeout = DefaultNetworkTimeout
	}
	c := &Client{
		addr:  net.JoinHostPort(host, strconv.Itoa(Port)),
		mode:  mode,
		opt:   opt,
		log:   opt.Log,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	c.session.Store(SessionInfo{})
	c.car.Store(CarInfo{})
	c.lap.Store(LapInfo{})
	return c, nil
}

func (c *Client) Address() string          { return c.addr }
func (c *Client) Mode() ConnectionType     { return c.mode }
func (c *Client) State() State             { return State(atomic.LoadUint32(&c.state)) }
func (c *Client) IsConnected() bool        { return c.State() == StateConnected }
func (c *Client) SessionInfo() SessionInfo { return c.session.Load().(SessionInfo) }
func (c *Client) CarInfo() CarInfo         { return c.car.Load().(CarInfo) }
func (c *Client) LapInfo() LapInfo         { return c.lap.Load().(LapInfo) }
func (c *Client) Stat() Stat               { return c.stat.Value() }

// Ready is closed when handshake completes.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// SinceLastRecv returns 0 if nothing was received yet.
func (c *Client) SinceLastRecv() time.Duration {
	if c.lastRecv.IsZero() {
		return 0
	}
	return atomic_clock.Since(&c.lastRecv)
}

// Done is closed when client enters Disconnected state for any reason.
func (c *Client) Done() <-chan struct{} { return c.done }

// WaitConnected returns ErrClosed if client is disconnected before handshake completes.
func (c *Client) WaitConnected(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		select {
		case <-c.ready:
			return nil
		default:
		}
		return ErrClosed
	case <-ctx.Done():
		return errors.Annotatef(ctx.Err(), "wait connected state=%s", c.State())
	}
}

// AddListener returns func to unsubscribe.
func (c *Client) AddListener(l Listener) (remove func()) { return c.listeners.add(l) }

// Connect dials server and sends handshake request, response is processed asynchronously.
// No-op while handshake is in progress or connected. Returns ErrClosed after Disconnect
// or a failed Connect, make new Client to retry.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.State() {
	case StateHandshakeSent, StateConnected:
		return nil
	case StateDisconnected:
		return ErrClosed
	}

	t, err := c.opt.Dial(ctx, c.addr)
	if err != nil {
		c.setDisconnected()
		return errors.Annotatef(err, "connect %s", c.addr)
	}
	c.transport = t
	c.setState(StateHandshakeSent)
	t.SetReceiver(func(b []byte) { c.onReceive(t, b) })
	if err = c.sendOp(ctx, t, OpConnect); err != nil {
		c.setDisconnected()
		c.transport = nil
		t.SetReceiver(nil)
		_ = t.Close()
		return errors.Annotatef(err, "connect %s", c.addr)
	}
	c.log.Infof("acudp handshake sent addr=%s mode=%s", c.addr, c.mode)
	return nil
}

// Disconnect is safe to call any number of times, also before Connect.
// Listeners not yet reached for current datagram are skipped, one already running may still finish.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnect(true)
}

func (c *Client) disconnect(signoff bool) error {
	prev := State(atomic.SwapUint32(&c.state, uint32(StateDisconnected)))
	c.doneOnce.Do(func() { close(c.done) })
	t := c.transport
	c.transport = nil
	if prev == StateDisconnected || t == nil {
		return nil
	}
	t.SetReceiver(nil)
	if signoff {
		ctx, cancel := context.WithTimeout(context.Background(), c.opt.NetworkTimeout)
		if err := c.sendOp(ctx, t, OpDisconnect); err != nil {
			c.log.Debugf("acudp disconnect signoff err=%v", err)
		}
		cancel()
	}
	c.log.Infof("acudp disconnected addr=%s prev=%s", c.addr, prev)
	return errors.Annotate(t.Close(), "disconnect")
}

func (c *Client) setState(s State) { atomic.StoreUint32(&c.state, uint32(s)) }

func (c *Client) setDisconnected() {
	c.setState(StateDisconnected)
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Client) sendOp(ctx context.Context, t Transport, op Operation) error {
	req := NewHandshake(op)
	b, _ := req.MarshalBinary()
	if err := t.Send(ctx, b); err != nil {
		return errors.Annotatef(err, "send op=%s", op)
	}
	c.stat.Send.Register(len(b))
	return nil
}

func (c *Client) report(err error) {
	c.log.Errorf("acudp %v", err)
	if c.opt.OnError != nil {
		c.opt.OnError(err)
	}
}

func (c *Client) violation(expect, actual int) {
	c.stat.Violation.Add(1)
	c.report(&ProtocolError{State: c.State(), Mode: c.mode, Expect: expect, Actual: actual})
}

func (c *Client) onReceive(t Transport, b []byte) {
	c.lastRecv.SetNow()
	c.stat.Recv.Register(len(b))
	switch s := c.State(); s {
	case StateHandshakeSent:
		c.onHandshake(t, b)
	case StateConnected:
		c.dispatch(b)
	default:
		c.log.Debugf("acudp drop datagram=(%d) state=%s", len(b), s)
	}
}

func (c *Client) onHandshake(t Transport, b []byte) {
	if len(b) != HandshakeResponseSize {
		c.violation(HandshakeResponseSize, len(b))
		return
	}
	var r HandshakeResponse
	if err := r.UnmarshalBinary(b); err != nil {
		c.report(err)
		return
	}
	session := r.SessionInfo()
	c.session.Store(session)

	ctx, cancel := context.WithTimeout(context.Background(), c.opt.NetworkTimeout)
	err := c.sendOp(ctx, t, Operation(c.mode))
	cancel()
	if err != nil {
		c.report(errors.Annotate(err, "confirm stream"))
		c.mu.Lock()
		_ = c.disconnect(false)
		c.mu.Unlock()
		return
	}
	if !atomic.CompareAndSwapUint32(&c.state, uint32(StateHandshakeSent), uint32(StateConnected)) {
		return
	}
	c.readyOnce.Do(func() { close(c.ready) })
	c.log.Infof("acudp connected session=%s", session.String())
}

func (c *Client) dispatch(b []byte) {
	switch c.mode {
	case ModeCarInfo:
		if len(b) != CarTelemetrySize {
			c.violation(CarTelemetrySize, len(b))
			return
		}
		var r CarTelemetry
		if err := r.UnmarshalBinary(b); err != nil {
			c.report(err)
			return
		}
		info := r.CarInfo()
		c.car.Store(info)
		c.stat.CarUpdate.Add(1)
		c.listeners.fireCar(info, c.IsConnected)

	case ModeLapTime:
		if len(b) != LapTelemetrySize {
			c.violation(LapTelemetrySize, len(b))
			return
		}
		var r LapTelemetry
		if err := r.UnmarshalBinary(b); err != nil {
			c.report(err)
			return
		}
		info := r.LapInfo()
		c.lap.Store(info)
		c.stat.LapUpdate.Add(1)
		c.listeners.fireLap(info, c.IsConnected)

	default:
		c.violation(0, len(b))
	}
}
