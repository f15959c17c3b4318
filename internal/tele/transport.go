package tele

import (
	"context"

	tele_config "github.com/temoto/acudp/internal/tele/config"
	"github.com/temoto/acudp/log2"
)

// Transporter contract:
// - Init() fails only with invalid config, connection is established in background
// - SendCar never blocks on network, false means dropped
// - SendSession, SendLap wait for broker ack, false means retry later
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error
	SendSession(payload []byte) bool
	SendCar(payload []byte) bool
	SendLap(payload []byte) bool
	Close()
}
