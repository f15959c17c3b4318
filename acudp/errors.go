package acudp

import (
	"fmt"

	"github.com/juju/errors"
)

var ErrClosed = errors.New("acudp: client closed")

// ProtocolError is a datagram that does not fit current state.
// Client drops such datagram without any state change.
type ProtocolError struct {
	State  State
	Mode   ConnectionType
	Expect int
	Actual int
}

func (e *ProtocolError) Error() string {
	if e.Expect == 0 {
		return fmt.Sprintf("protocol violation state=%s mode=%s length=%d", e.State, e.Mode, e.Actual)
	}
	return fmt.Sprintf("protocol violation state=%s mode=%s length=%d expected=%d", e.State, e.Mode, e.Actual, e.Expect)
}

func IsProtocolError(e error) bool {
	_, ok := errors.Cause(e).(*ProtocolError)
	return ok
}
