package acudp

import (
	"sync"
	"sync/atomic"
)

// Listener gets snapshot after it is stored, so CarInfo() inside OnCarUpdate
// returns the same value. Called synchronously from receive goroutine,
// slow listener delays next datagram.
type Listener interface {
	OnCarUpdate(CarInfo)
	OnLapUpdate(LapInfo)
}

// ListenerFuncs adapts optional funcs to Listener.
type ListenerFuncs struct {
	Car func(CarInfo)
	Lap func(LapInfo)
}

func (lf ListenerFuncs) OnCarUpdate(c CarInfo) {
	if lf.Car != nil {
		lf.Car(c)
	}
}

func (lf ListenerFuncs) OnLapUpdate(l LapInfo) {
	if lf.Lap != nil {
		lf.Lap(l)
	}
}

type listenerEntry struct {
	id uint64
	l  Listener
}

// Copy on write: fire never locks, so listener may add or remove listeners.
type listenerList struct {
	mu     sync.Mutex
	nextID uint64
	v      atomic.Value // []listenerEntry
}

func (ll *listenerList) load() []listenerEntry {
	x, _ := ll.v.Load().([]listenerEntry)
	return x
}

func (ll *listenerList) add(l Listener) func() {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.nextID++
	id := ll.nextID
	old := ll.load()
	next := make([]listenerEntry, len(old), len(old)+1)
	copy(next, old)
	ll.v.Store(append(next, listenerEntry{id: id, l: l}))
	return func() { ll.remove(id) }
}

func (ll *listenerList) remove(id uint64) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	old := ll.load()
	next := make([]listenerEntry, 0, len(old))
	for _, e := range old {
		if e.id != id {
			next = append(next, e)
		}
	}
	ll.v.Store(next)
}

// live is checked before each listener, so Disconnect stops the rest of current round.
func (ll *listenerList) fireCar(c CarInfo, live func() bool) {
	for _, e := range ll.load() {
		if !live() {
			return
		}
		e.l.OnCarUpdate(c)
	}
}

func (ll *listenerList) fireLap(l LapInfo, live func() bool) {
	for _, e := range ll.load() {
		if !live() {
			return
		}
		e.l.OnLapUpdate(l)
	}
}
