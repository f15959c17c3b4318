// Package tele republishes telemetry updates to MQTT broker.
package tele

import (
	"context"
	"time"

	proto "github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/acudp/acudp"
	"github.com/temoto/acudp/helpers"
	tele_config "github.com/temoto/acudp/internal/tele/config"
	"github.com/temoto/acudp/log2"
	"github.com/temoto/alive/v2"
	"github.com/temoto/spq"
)

const (
	defaultNetworkTimeout = 10 * time.Second
	defaultRetryMin       = 500 * time.Millisecond
)

// denote value type in persistent queue bytes form
const (
	qLap byte = 1
)

// Tele contract:
// - Init() fails only with invalid config or outbox open error, network issues ignored
// - listener methods block at most for disk write
// - lap messages delivered at least once, also across restarts with persist_path
// - car messages are latest state, may be lost
// - Close() stops background delivery, undelivered laps stay in outbox
type Tele struct { //nolint:maligned
	enabled   bool
	log       *log2.Log
	transport Transporter
	q         *spq.Queue
	alive     *alive.Alive
	backoff   helpers.Backoff
	now       func() time.Time
	stat      Stat
}

var _ acudp.Listener = &Tele{}

func (self *Tele) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error {
	self.enabled = teleConfig.Enabled
	self.log = log.Clone(log2.LInfo)
	if teleConfig.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !self.enabled {
		self.log.Debugf("tele disabled")
		return nil
	}
	if self.now == nil {
		self.now = time.Now
	}
	if self.backoff.Max == 0 {
		self.backoff = helpers.Backoff{
			Min: defaultRetryMin,
			Max: helpers.IntSecondDefault(teleConfig.NetworkTimeoutSec, defaultNetworkTimeout),
			K:   2,
		}
	}

	persistPath := teleConfig.PersistPath
	if persistPath == "" {
		self.log.Infof("tele persist_path empty, lap outbox in memory")
		persistPath = spq.OnlyForTesting
	}
	var err error
	self.q, err = spq.Open(persistPath)
	if err != nil {
		return errors.Annotatef(err, "tele outbox path=%s", teleConfig.PersistPath)
	}

	// test code sets .transport
	if self.transport == nil { // production path
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(ctx, self.log, teleConfig); err != nil {
		_ = self.q.Close()
		return errors.Annotate(err, "tele transport")
	}

	self.alive = alive.NewAlive()
	self.alive.Add(1)
	go self.qworker()
	return nil
}

func (self *Tele) Close() error {
	if !self.enabled {
		return nil
	}
	self.alive.Stop()
	err := self.q.Close()
	self.alive.Wait()
	self.transport.Close()
	self.log.Debugf("tele closed stat=%s", self.stat.String())
	return errors.Annotate(err, "tele close")
}

func (self *Tele) Stat() *Stat { return &self.stat }

// Session publishes retained session description, call after handshake.
func (self *Tele) Session(s acudp.SessionInfo) error {
	if !self.enabled {
		return nil
	}
	payload, err := proto.Marshal(NewSessionMessage(s, self.now()))
	if err != nil {
		return errors.Annotate(err, "tele session marshal")
	}
	if !self.transport.SendSession(payload) {
		return errors.Errorf("tele session not delivered")
	}
	self.stat.SessionSent.Add(1)
	return nil
}

func (self *Tele) OnCarUpdate(c acudp.CarInfo) {
	if !self.enabled {
		return
	}
	payload, err := proto.Marshal(NewCarMessage(c, self.now()))
	if err != nil {
		self.log.Errorf("CRITICAL tele car marshal err=%v", err)
		return
	}
	if self.transport.SendCar(payload) {
		self.stat.CarSent.Add(1)
	} else {
		self.stat.CarDropped.Add(1)
	}
}

func (self *Tele) OnLapUpdate(l acudp.LapInfo) {
	if !self.enabled {
		return
	}
	if err := self.qpushTagProto(qLap, NewLapMessage(l, self.now())); err != nil {
		self.log.Errorf("tele lap push lap=%s err=%v", l.String(), err)
		return
	}
	self.stat.LapQueued.Add(1)
}

func (self *Tele) qpushTagProto(tag byte, pb proto.Message) error {
	buf := proto.NewBuffer(make([]byte, 0, 256))
	if err := buf.EncodeVarint(uint64(tag)); err != nil {
		return err
	}
	if err := buf.Marshal(pb); err != nil {
		return err
	}
	return self.q.Push(buf.Bytes())
}

func (self *Tele) qworker() {
	defer self.alive.Done()
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			b := box.Bytes()
			if self.qhandle(b) {
				self.backoff.Reset()
				if err = self.q.Delete(box); err != nil && err != spq.ErrClosed {
					self.log.Errorf("tele outbox Delete b=%x err=%v", b, err)
				}
				continue
			}
			self.stat.LapRetry.Add(1)
			if err = self.q.DeletePush(box); err != nil && err != spq.ErrClosed {
				self.log.Errorf("tele outbox DeletePush b=%x err=%v", b, err)
			}
			if !self.sleep(self.backoff.DelayAfter(false)) {
				return
			}

		case spq.ErrClosed:
			if self.alive.IsRunning() {
				self.log.Errorf("CRITICAL tele outbox closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL tele outbox err=%v", err)
			if !self.sleep(self.backoff.DelayAfter(false)) {
				return
			}
		}
	}
}

// returns false on stop
func (self *Tele) sleep(d time.Duration) bool {
	if d <= 0 {
		return self.alive.IsRunning()
	}
	select {
	case <-time.After(d):
		return true
	case <-self.alive.StopChan():
		return false
	}
}

// returns true when item should be deleted from outbox
func (self *Tele) qhandle(b []byte) bool {
	if len(b) == 0 {
		self.log.Errorf("tele outbox peek=empty")
		return true
	}
	tag, n := proto.DecodeVarint(b)
	if n == 0 {
		self.log.Errorf("tele outbox invalid tag b=%x", b)
		return true
	}
	payload := b[n:]
	switch byte(tag) {
	case qLap:
		var lm LapMessage
		if err := proto.Unmarshal(payload, &lm); err != nil {
			self.log.Errorf("tele outbox lap unmarshal b=%x err=%v", b, err)
			return true // retry will not help
		}
		if !self.transport.SendLap(payload) {
			return false
		}
		self.log.Debugf("tele lap sent %s", lm.String())
		self.stat.LapSent.Add(1)
		return true

	default:
		self.log.Errorf("tele outbox unknown kind=%d", tag)
		return true
	}
}
