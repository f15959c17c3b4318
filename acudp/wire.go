package acudp

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/juju/errors"
)

const Port = 9996

const (
	DeviceIdentifier = int32(1) // eIPhoneDevice, the only one server accepts
	ProtocolVersion  = int32(1)
)

// Wire struct sizes, part of server contract.
const (
	TextFieldSize         = 100 // 50 UTF-16 code units
	HandshakeRequestSize  = 4 /*identifier*/ + 4 /*version*/ + 4 /*operation*/
	HandshakeResponseSize = 4*TextFieldSize + 4 /*identifier*/ + 4 /*version*/
	CarTelemetrySize      = 328
	LapTelemetrySize      = 4 /*car*/ + 4 /*lap*/ + 2*TextFieldSize + 4 /*time*/
)

// ConnectionType selects telemetry stream.
// Value is also the handshake operation confirming that stream.
type ConnectionType uint32

const (
	ModeCarInfo ConnectionType = 1
	ModeLapTime ConnectionType = 2
)

func (ct ConnectionType) Valid() bool { return ct == ModeCarInfo || ct == ModeLapTime }

func (ct ConnectionType) String() string {
	switch ct {
	case ModeCarInfo:
		return "car-info"
	case ModeLapTime:
		return "lap-time"
	}
	return fmt.Sprintf("ConnectionType(%d)", uint32(ct))
}

func ParseConnectionType(s string) (ConnectionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "car", "carinfo", "car-info", "car_info", "1":
		return ModeCarInfo, nil
	case "lap", "laptime", "lap-time", "lap_time", "2":
		return ModeLapTime, nil
	}
	return 0, errors.NotValidf("connection type=%q", s)
}

type Operation int32

const (
	OpConnect    Operation = 0
	OpCarInfo    Operation = Operation(ModeCarInfo)
	OpLapTime    Operation = Operation(ModeLapTime)
	OpDisconnect Operation = 3
)

func (op Operation) String() string {
	switch op {
	case OpConnect:
		return "connect"
	case OpCarInfo:
		return "subscribe-car"
	case OpLapTime:
		return "subscribe-lap"
	case OpDisconnect:
		return "disconnect"
	}
	return fmt.Sprintf("Operation(%d)", int32(op))
}

// Text is fixed width UTF-16LE string field.
type Text [TextFieldSize]byte

func (t Text) String() string { return DecodeText(t[:]) }

type Wheels [4]float32
type Vector3 [3]float32

// Binary layout: field offset and pointer to value.
// Same table drives encode and decode, so both paths can't diverge.
type slot struct {
	off int
	v   interface{}
}
type layout []slot

func (l layout) put(b []byte) {
	le := binary.LittleEndian
	for _, s := range l {
		p := b[s.off:]
		switch v := s.v.(type) {
		case *uint8:
			p[0] = *v
		case *bool:
			p[0] = 0
			if *v {
				p[0] = 1
			}
		case *int32:
			le.PutUint32(p, uint32(*v))
		case *Operation:
			le.PutUint32(p, uint32(*v))
		case *float32:
			le.PutUint32(p, math.Float32bits(*v))
		case *Wheels:
			for i := range v {
				le.PutUint32(p[i*4:], math.Float32bits(v[i]))
			}
		case *Vector3:
			for i := range v {
				le.PutUint32(p[i*4:], math.Float32bits(v[i]))
			}
		case *Text:
			copy(p, v[:])
		default:
			panic(fmt.Sprintf("code error layout type=%T", s.v))
		}
	}
}

func (l layout) get(b []byte) {
	le := binary.LittleEndian
	for _, s := range l {
		p := b[s.off:]
		switch v := s.v.(type) {
		case *uint8:
			*v = p[0]
		case *bool:
			*v = p[0] != 0
		case *int32:
			*v = int32(le.Uint32(p))
		case *Operation:
			*v = Operation(le.Uint32(p))
		case *float32:
			*v = math.Float32frombits(le.Uint32(p))
		case *Wheels:
			for i := range v {
				v[i] = math.Float32frombits(le.Uint32(p[i*4:]))
			}
		case *Vector3:
			for i := range v {
				v[i] = math.Float32frombits(le.Uint32(p[i*4:]))
			}
		case *Text:
			copy(v[:], p)
		default:
			panic(fmt.Sprintf("code error layout type=%T", s.v))
		}
	}
}

func marshal(size int, l layout) []byte {
	b := make([]byte, size)
	l.put(b)
	return b
}

func unmarshal(name string, size int, l layout, b []byte) error {
	if len(b) != size {
		return errors.NotValidf("%s length=%d expected=%d", name, len(b), size)
	}
	l.get(b)
	return nil
}

// HandshakeRequest is the only record client sends.
type HandshakeRequest struct {
	Identifier int32
	Version    int32
	Operation  Operation
}

func NewHandshake(op Operation) HandshakeRequest {
	return HandshakeRequest{
		Identifier: DeviceIdentifier,
		Version:    ProtocolVersion,
		Operation:  op,
	}
}

func (r *HandshakeRequest) layout() layout {
	return layout{{0, &r.Identifier}, {4, &r.Version}, {8, &r.Operation}}
}

func (r *HandshakeRequest) MarshalBinary() ([]byte, error) {
	return marshal(HandshakeRequestSize, r.layout()), nil
}

func (r *HandshakeRequest) UnmarshalBinary(b []byte) error {
	return unmarshal("handshake request", HandshakeRequestSize, r.layout(), b)
}

// HandshakeResponse field order is server defined, note car before driver.
type HandshakeResponse struct {
	CarName     Text
	DriverName  Text
	Identifier  int32
	Version     int32
	TrackName   Text
	TrackConfig Text
}

func (r *HandshakeResponse) layout() layout {
	return layout{
		{0, &r.CarName},
		{100, &r.DriverName},
		{200, &r.Identifier},
		{204, &r.Version},
		{208, &r.TrackName},
		{308, &r.TrackConfig},
	}
}

func (r *HandshakeResponse) MarshalBinary() ([]byte, error) {
	return marshal(HandshakeResponseSize, r.layout()), nil
}

func (r *HandshakeResponse) UnmarshalBinary(b []byte) error {
	return unmarshal("handshake response", HandshakeResponseSize, r.layout(), b)
}

// CarTelemetry is server RTCarInfo record.
// Offsets include C struct padding: 3 bytes after Identifier, 2 after flags.
type CarTelemetry struct {
	Identifier uint8
	Size       int32

	SpeedKmh float32
	SpeedMph float32
	SpeedMs  float32

	IsAbsEnabled      bool
	IsAbsInAction     bool
	IsTcInAction      bool
	IsTcEnabled       bool
	IsInPit           bool
	IsEngineLimiterOn bool

	AccGVertical   float32
	AccGHorizontal float32
	AccGFrontal    float32

	LapTime  int32 // milliseconds
	LastLap  int32
	BestLap  int32
	LapCount int32

	Gas       float32
	Brake     float32
	Clutch    float32
	EngineRPM float32
	Steer     float32
	Gear      int32
	CGHeight  float32

	WheelAngularSpeed     Wheels
	SlipAngle             Wheels
	SlipAngleContactPatch Wheels
	SlipRatio             Wheels
	TyreSlip              Wheels
	NdSlip                Wheels
	Load                  Wheels
	Dy                    Wheels
	Mz                    Wheels
	TyreDirtyLevel        Wheels
	CamberRAD             Wheels
	TyreRadius            Wheels
	TyreLoadedRadius      Wheels
	SuspensionHeight      Wheels
	CarPositionNormalized float32
	CarSlope              float32
	CarCoordinates        Vector3
}

func (r *CarTelemetry) layout() layout {
	return layout{
		{0, &r.Identifier},
		{4, &r.Size},
		{8, &r.SpeedKmh},
		{12, &r.SpeedMph},
		{16, &r.SpeedMs},
		{20, &r.IsAbsEnabled},
		{21, &r.IsAbsInAction},
		{22, &r.IsTcInAction},
		{23, &r.IsTcEnabled},
		{24, &r.IsInPit},
		{25, &r.IsEngineLimiterOn},
		{28, &r.AccGVertical},
		{32, &r.AccGHorizontal},
		{36, &r.AccGFrontal},
		{40, &r.LapTime},
		{44, &r.LastLap},
		{48, &r.BestLap},
		{52, &r.LapCount},
		{56, &r.Gas},
		{60, &r.Brake},
		{64, &r.Clutch},
		{68, &r.EngineRPM},
		{72, &r.Steer},
		{76, &r.Gear},
		{80, &r.CGHeight},
		{84, &r.WheelAngularSpeed},
		{100, &r.SlipAngle},
		{116, &r.SlipAngleContactPatch},
		{132, &r.SlipRatio},
		{148, &r.TyreSlip},
		{164, &r.NdSlip},
		{180, &r.Load},
		{196, &r.Dy},
		{212, &r.Mz},
		{228, &r.TyreDirtyLevel},
		{244, &r.CamberRAD},
		{260, &r.TyreRadius},
		{276, &r.TyreLoadedRadius},
		{292, &r.SuspensionHeight},
		{308, &r.CarPositionNormalized},
		{312, &r.CarSlope},
		{316, &r.CarCoordinates},
	}
}

func (r *CarTelemetry) MarshalBinary() ([]byte, error) {
	return marshal(CarTelemetrySize, r.layout()), nil
}

func (r *CarTelemetry) UnmarshalBinary(b []byte) error {
	return unmarshal("car telemetry", CarTelemetrySize, r.layout(), b)
}

// LapTelemetry is server RTLap record, sent when any car completes a lap.
type LapTelemetry struct {
	CarIdentifierNumber int32
	Lap                 int32
	DriverName          Text
	CarName             Text
	Time                int32 // milliseconds
}

func (r *LapTelemetry) layout() layout {
	return layout{
		{0, &r.CarIdentifierNumber},
		{4, &r.Lap},
		{8, &r.DriverName},
		{108, &r.CarName},
		{208, &r.Time},
	}
}

func (r *LapTelemetry) MarshalBinary() ([]byte, error) {
	return marshal(LapTelemetrySize, r.layout()), nil
}

func (r *LapTelemetry) UnmarshalBinary(b []byte) error {
	return unmarshal("lap telemetry", LapTelemetrySize, r.layout(), b)
}
