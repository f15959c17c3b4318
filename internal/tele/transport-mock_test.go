package tele

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tele_config "github.com/temoto/acudp/internal/tele/config"
	"github.com/temoto/acudp/log2"
)

type transportMock struct {
	t              testing.TB
	networkTimeout time.Duration
	outBuffer      int
	// SendLap fails this many times, negative = forever
	failLap    int32
	closed     int32
	outSession chan []byte
	outCar     chan []byte
	outLap     chan []byte
}

func (self *transportMock) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error {
	if self.networkTimeout == 0 {
		self.networkTimeout = time.Second
	}
	self.outSession = make(chan []byte, self.outBuffer)
	self.outCar = make(chan []byte, self.outBuffer)
	self.outLap = make(chan []byte, self.outBuffer)
	return nil
}

func (self *transportMock) Close() { atomic.StoreInt32(&self.closed, 1) }

func (self *transportMock) SendSession(payload []byte) bool {
	return self.deliver(self.outSession, "session", payload)
}

func (self *transportMock) SendCar(payload []byte) bool {
	select {
	case self.outCar <- payload:
		return true
	default:
		return false
	}
}

func (self *transportMock) SendLap(payload []byte) bool {
	for {
		n := atomic.LoadInt32(&self.failLap)
		if n == 0 {
			break
		}
		if n < 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&self.failLap, n, n-1) {
			return false
		}
	}
	return self.deliver(self.outLap, "lap", payload)
}

func (self *transportMock) deliver(ch chan []byte, tag string, payload []byte) bool {
	select {
	case ch <- payload:
		return true
	case <-time.After(self.networkTimeout):
		return false
	}
}
