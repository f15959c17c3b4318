package tele

import (
	"context"
	"io"
	"testing"
	"time"

	proto "github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/acudp/acudp"
	"github.com/temoto/acudp/helpers"
	tele_config "github.com/temoto/acudp/internal/tele/config"
	"github.com/temoto/acudp/log2"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestTele(t testing.TB, mock *transportMock, persistPath string) *Tele {
	tele := &Tele{
		transport: mock,
		now:       func() time.Time { return testNow },
		backoff:   helpers.Backoff{Min: 10 * time.Millisecond, Max: 50 * time.Millisecond, K: 2},
	}
	conf := tele_config.Config{
		Enabled:     true,
		LogDebug:    true,
		MqttBroker:  "mock",
		PersistPath: persistPath,
	}
	require.NoError(t, tele.Init(context.Background(), log2.NewTest(t, log2.LDebug), conf))
	return tele
}

func receive(t testing.TB, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timeout")
	}
	return nil
}

func TestTeleDisabled(t *testing.T) {
	t.Parallel()
	mock := &transportMock{t: t}
	tele := &Tele{transport: mock}
	require.NoError(t, tele.Init(context.Background(), log2.NewTest(t, log2.LDebug), tele_config.Config{}))
	tele.OnCarUpdate(acudp.CarInfo{SpeedKmh: 1})
	tele.OnLapUpdate(acudp.LapInfo{LapNumber: 1})
	assert.NoError(t, tele.Session(acudp.SessionInfo{}))
	assert.NoError(t, tele.Close())
	assert.Nil(t, mock.outCar)
	assert.Equal(t, int64(0), tele.Stat().CarSent.Value())
}

func TestTeleSessionCar(t *testing.T) {
	t.Parallel()
	mock := &transportMock{t: t, outBuffer: 1}
	tele := newTestTele(t, mock, "")
	defer tele.Close()

	require.NoError(t, tele.Session(acudp.SessionInfo{DriverName: "Ayrton", CarName: "F1", TrackName: "Monza", TrackLayout: "Full"}))
	var sm SessionMessage
	require.NoError(t, proto.Unmarshal(receive(t, mock.outSession), &sm))
	assert.Equal(t, "Ayrton", sm.DriverName)
	assert.Equal(t, "Full", sm.TrackLayout)
	assert.Equal(t, testNow.UnixNano(), sm.Time)

	tele.OnCarUpdate(acudp.CarInfo{SpeedKmh: 220.5, EngineRPM: 9000, Gear: 5, CurrentLapTime: 58 * time.Second})
	// buffer full, latest state is dropped not queued
	tele.OnCarUpdate(acudp.CarInfo{SpeedKmh: 221})
	var cm CarMessage
	require.NoError(t, proto.Unmarshal(receive(t, mock.outCar), &cm))
	assert.Equal(t, float32(220.5), cm.SpeedKmh)
	assert.Equal(t, float32(9000), cm.EngineRpm)
	assert.Equal(t, int32(5), cm.Gear)
	assert.Equal(t, int32(58000), cm.LapTimeMs)
	assert.Equal(t, int64(1), tele.Stat().CarSent.Value())
	assert.Equal(t, int64(1), tele.Stat().CarDropped.Value())
}

func TestTeleLapRetry(t *testing.T) {
	t.Parallel()
	mock := &transportMock{t: t, failLap: 2}
	tele := newTestTele(t, mock, "")
	defer tele.Close()

	tele.OnLapUpdate(acudp.LapInfo{CarName: "bmw_m3", DriverName: "Mario", CarNumber: 7, LapNumber: 3, LapTime: 83456 * time.Millisecond})
	tele.OnLapUpdate(acudp.LapInfo{CarName: "bmw_m3", DriverName: "Mario", CarNumber: 7, LapNumber: 4, LapTime: 82000 * time.Millisecond})

	// retry moves item to outbox tail, order is not preserved
	got := map[int32]LapMessage{}
	for i := 0; i < 2; i++ {
		var lm LapMessage
		require.NoError(t, proto.Unmarshal(receive(t, mock.outLap), &lm))
		got[lm.LapNumber] = lm
	}
	require.Len(t, got, 2)
	assert.Equal(t, "Mario", got[3].DriverName)
	assert.Equal(t, int32(83456), got[3].LapTimeMs)
	assert.Equal(t, int32(82000), got[4].LapTimeMs)
	assert.Equal(t, testNow.UnixNano(), got[4].Time)
	assert.Equal(t, int64(2), tele.Stat().LapQueued.Value())
	assert.Equal(t, int64(2), tele.Stat().LapRetry.Value())
}

func TestTeleOutboxPersist(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	offline := &transportMock{t: t, failLap: -1}
	tele1 := newTestTele(t, offline, dir)
	tele1.OnLapUpdate(acudp.LapInfo{DriverName: "Kimi", LapNumber: 9, LapTime: time.Minute})
	require.NoError(t, tele1.Close())

	online := &transportMock{t: t}
	tele2 := newTestTele(t, online, dir)
	defer tele2.Close()
	var lm LapMessage
	require.NoError(t, proto.Unmarshal(receive(t, online.outLap), &lm))
	assert.Equal(t, "Kimi", lm.DriverName)
	assert.Equal(t, int32(9), lm.LapNumber)
	assert.Equal(t, int32(60000), lm.LapTimeMs)
}

func TestTransportMqttOffline(t *testing.T) {
	// mqtt.CRITICAL/ERROR/WARN/DEBUG are global variables
	tr := &transportMqtt{}
	conf := tele_config.Config{
		Enabled:           true,
		ClientID:          "acudp-test",
		TopicPrefix:       "ac/rig1/",
		MqttBroker:        "tcp://127.0.0.1:1",
		NetworkTimeoutSec: 1,
	}
	log := log2.NewWriter(io.Discard, log2.LDebug)
	require.NoError(t, tr.Init(context.Background(), log, conf))
	assert.Equal(t, "ac/rig1/status", tr.topicStatus)
	assert.Equal(t, "ac/rig1/session", tr.topicSession)
	assert.Equal(t, "ac/rig1/car", tr.topicCar)
	assert.Equal(t, "ac/rig1/lap", tr.topicLap)
	assert.False(t, tr.SendCar([]byte{1}))
	tr.Close()

	err := (&transportMqtt{}).Init(context.Background(), log, tele_config.Config{})
	assert.Error(t, err)
}
