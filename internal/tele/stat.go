package tele

import (
	"expvar"
	"fmt"
)

type Stat struct {
	SessionSent expvar.Int
	CarSent     expvar.Int
	CarDropped  expvar.Int
	LapQueued   expvar.Int
	LapSent     expvar.Int
	LapRetry    expvar.Int
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"session":%d,"car":%d,"car_drop":%d,"lap_queue":%d,"lap":%d,"lap_retry":%d}`,
		s.SessionSent.Value(), s.CarSent.Value(), s.CarDropped.Value(),
		s.LapQueued.Value(), s.LapSent.Value(), s.LapRetry.Value())
}
