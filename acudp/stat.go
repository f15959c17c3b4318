package acudp

// Values are read and modified atomically, but not consistently,
// i.e. it is possible to read Recv.Count=1 Recv.Size=0 because Size has not updated yet.

import (
	"expvar"
	"fmt"
)

type Stat struct {
	Recv      CountSizePair
	Send      CountSizePair
	Violation expvar.Int
	CarUpdate expvar.Int
	LapUpdate expvar.Int
}

func (s *Stat) Value() (r Stat) {
	r.Recv = s.Recv.Value()
	r.Send = s.Send.Value()
	r.Violation.Set(s.Violation.Value())
	r.CarUpdate.Set(s.CarUpdate.Value())
	r.LapUpdate.Set(s.LapUpdate.Value())
	return
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"recv":%s,"send":%s,"violation":%d,"car":%d,"lap":%d}`,
		s.Recv.String(), s.Send.String(), s.Violation.Value(), s.CarUpdate.Value(), s.LapUpdate.Value())
}

type CountSizePair struct {
	Count expvar.Int
	Size  expvar.Int
}

func (csp *CountSizePair) Register(size int) {
	csp.Count.Add(1)
	csp.Size.Add(int64(size))
}

func (csp *CountSizePair) Value() (r CountSizePair) {
	r.Count.Set(csp.Count.Value())
	r.Size.Set(csp.Size.Value())
	return
}

func (csp *CountSizePair) String() string {
	return fmt.Sprintf(`{"count":%d,"size":%d}`, csp.Count.Value(), csp.Size.Value())
}
