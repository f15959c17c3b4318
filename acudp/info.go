package acudp

import (
	"fmt"
	"strconv"
	"time"
)

// SessionInfo is set once from handshake response.
type SessionInfo struct {
	DriverName  string
	CarName     string
	TrackName   string
	TrackLayout string
	Identifier  int32
	Version     int32
}

func (s SessionInfo) String() string {
	return fmt.Sprintf("(driver=%s car=%s track=%s layout=%s)", s.DriverName, s.CarName, s.TrackName, s.TrackLayout)
}

// CarInfo is latest car telemetry sample.
type CarInfo struct {
	SpeedKmh       float32
	EngineRPM      float32
	Gear           int32
	CurrentLapTime time.Duration
	LastLapTime    time.Duration
	BestLapTime    time.Duration

	LapCount int32
	Gas      float32
	Brake    float32
	Clutch   float32
	Steer    float32
	InPit    bool
	Position float32 // normalized track spline, 0..1
}

// Server gear: 0=reverse 1=neutral 2=first.
func (c CarInfo) GearString() string {
	switch {
	case c.Gear <= 0:
		return "R"
	case c.Gear == 1:
		return "N"
	}
	return strconv.Itoa(int(c.Gear - 1))
}

func (c CarInfo) String() string {
	return fmt.Sprintf("(speed=%.1fkmh rpm=%.0f gear=%s lap=%s last=%s best=%s)",
		c.SpeedKmh, c.EngineRPM, c.GearString(), c.CurrentLapTime, c.LastLapTime, c.BestLapTime)
}

// LapInfo is latest completed lap of any car in session.
type LapInfo struct {
	CarName    string
	DriverName string
	CarNumber  int32
	LapNumber  int32
	LapTime    time.Duration
}

func (l LapInfo) String() string {
	return fmt.Sprintf("(car=%s#%d driver=%s lap=%d time=%s)", l.CarName, l.CarNumber, l.DriverName, l.LapNumber, l.LapTime)
}

func msDuration(ms int32) time.Duration { return time.Duration(ms) * time.Millisecond }

func (r *HandshakeResponse) SessionInfo() SessionInfo {
	return SessionInfo{
		DriverName:  r.DriverName.String(),
		CarName:     r.CarName.String(),
		TrackName:   r.TrackName.String(),
		TrackLayout: r.TrackConfig.String(),
		Identifier:  r.Identifier,
		Version:     r.Version,
	}
}

func (r *CarTelemetry) CarInfo() CarInfo {
	return CarInfo{
		SpeedKmh:       r.SpeedKmh,
		EngineRPM:      r.EngineRPM,
		Gear:           r.Gear,
		CurrentLapTime: msDuration(r.LapTime),
		LastLapTime:    msDuration(r.LastLap),
		BestLapTime:    msDuration(r.BestLap),
		LapCount:       r.LapCount,
		Gas:            r.Gas,
		Brake:          r.Brake,
		Clutch:         r.Clutch,
		Steer:          r.Steer,
		InPit:          r.IsInPit,
		Position:       r.CarPositionNormalized,
	}
}

func (r *LapTelemetry) LapInfo() LapInfo {
	return LapInfo{
		CarName:    r.CarName.String(),
		DriverName: r.DriverName.String(),
		CarNumber:  r.CarIdentifierNumber,
		LapNumber:  r.Lap,
		LapTime:    msDuration(r.Time),
	}
}
