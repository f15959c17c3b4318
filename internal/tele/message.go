package tele

import (
	"time"

	proto "github.com/golang/protobuf/proto"
	"github.com/temoto/acudp/acudp"
)

// Wire messages published to MQTT. Field numbers are stable, add only.

type SessionMessage struct {
	DriverName  string `protobuf:"bytes,1,opt,name=driver_name,json=driverName,proto3" json:"driver_name,omitempty"`
	CarName     string `protobuf:"bytes,2,opt,name=car_name,json=carName,proto3" json:"car_name,omitempty"`
	TrackName   string `protobuf:"bytes,3,opt,name=track_name,json=trackName,proto3" json:"track_name,omitempty"`
	TrackLayout string `protobuf:"bytes,4,opt,name=track_layout,json=trackLayout,proto3" json:"track_layout,omitempty"`
	Time        int64  `protobuf:"varint,5,opt,name=time,proto3" json:"time,omitempty"`
}

func (m *SessionMessage) Reset()         { *m = SessionMessage{} }
func (m *SessionMessage) String() string { return proto.CompactTextString(m) }
func (*SessionMessage) ProtoMessage()    {}

type CarMessage struct {
	SpeedKmh  float32 `protobuf:"fixed32,1,opt,name=speed_kmh,json=speedKmh,proto3" json:"speed_kmh,omitempty"`
	EngineRpm float32 `protobuf:"fixed32,2,opt,name=engine_rpm,json=engineRpm,proto3" json:"engine_rpm,omitempty"`
	Gear      int32   `protobuf:"varint,3,opt,name=gear,proto3" json:"gear,omitempty"`
	LapTimeMs int32   `protobuf:"varint,4,opt,name=lap_time_ms,json=lapTimeMs,proto3" json:"lap_time_ms,omitempty"`
	LastLapMs int32   `protobuf:"varint,5,opt,name=last_lap_ms,json=lastLapMs,proto3" json:"last_lap_ms,omitempty"`
	BestLapMs int32   `protobuf:"varint,6,opt,name=best_lap_ms,json=bestLapMs,proto3" json:"best_lap_ms,omitempty"`
	LapCount  int32   `protobuf:"varint,7,opt,name=lap_count,json=lapCount,proto3" json:"lap_count,omitempty"`
	InPit     bool    `protobuf:"varint,8,opt,name=in_pit,json=inPit,proto3" json:"in_pit,omitempty"`
	Position  float32 `protobuf:"fixed32,9,opt,name=position,proto3" json:"position,omitempty"`
	Time      int64   `protobuf:"varint,10,opt,name=time,proto3" json:"time,omitempty"`
}

func (m *CarMessage) Reset()         { *m = CarMessage{} }
func (m *CarMessage) String() string { return proto.CompactTextString(m) }
func (*CarMessage) ProtoMessage()    {}

type LapMessage struct {
	CarName    string `protobuf:"bytes,1,opt,name=car_name,json=carName,proto3" json:"car_name,omitempty"`
	DriverName string `protobuf:"bytes,2,opt,name=driver_name,json=driverName,proto3" json:"driver_name,omitempty"`
	CarNumber  int32  `protobuf:"varint,3,opt,name=car_number,json=carNumber,proto3" json:"car_number,omitempty"`
	LapNumber  int32  `protobuf:"varint,4,opt,name=lap_number,json=lapNumber,proto3" json:"lap_number,omitempty"`
	LapTimeMs  int32  `protobuf:"varint,5,opt,name=lap_time_ms,json=lapTimeMs,proto3" json:"lap_time_ms,omitempty"`
	Time       int64  `protobuf:"varint,6,opt,name=time,proto3" json:"time,omitempty"`
}

func (m *LapMessage) Reset()         { *m = LapMessage{} }
func (m *LapMessage) String() string { return proto.CompactTextString(m) }
func (*LapMessage) ProtoMessage()    {}

func durationMs(d time.Duration) int32 { return int32(d / time.Millisecond) }

func NewSessionMessage(s acudp.SessionInfo, now time.Time) *SessionMessage {
	return &SessionMessage{
		DriverName:  s.DriverName,
		CarName:     s.CarName,
		TrackName:   s.TrackName,
		TrackLayout: s.TrackLayout,
		Time:        now.UnixNano(),
	}
}

func NewCarMessage(c acudp.CarInfo, now time.Time) *CarMessage {
	return &CarMessage{
		SpeedKmh:  c.SpeedKmh,
		EngineRpm: c.EngineRPM,
		Gear:      c.Gear,
		LapTimeMs: durationMs(c.CurrentLapTime),
		LastLapMs: durationMs(c.LastLapTime),
		BestLapMs: durationMs(c.BestLapTime),
		LapCount:  c.LapCount,
		InPit:     c.InPit,
		Position:  c.Position,
		Time:      now.UnixNano(),
	}
}

func NewLapMessage(l acudp.LapInfo, now time.Time) *LapMessage {
	return &LapMessage{
		CarName:    l.CarName,
		DriverName: l.DriverName,
		CarNumber:  l.CarNumber,
		LapNumber:  l.LapNumber,
		LapTimeMs:  durationMs(l.LapTime),
		Time:       now.UnixNano(),
	}
}
