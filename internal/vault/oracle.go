package vault

import "fmt"

// EnergyChannel is the device channel the keystream reads. Channel 0
// carries the post-step energy field; other channels are diagnostic and
// not used for keystream material.
const EnergyChannel = 0

// OracleStatus is the result code returned by every oracle device call.
// The values mirror the vendor driver ABI, so hardware and software
// backends report failures identically.
type OracleStatus int32

const (
	OracleOK              OracleStatus = 0
	OracleErrUnknown      OracleStatus = -1
	OracleErrNoDevice     OracleStatus = -2
	OracleErrInitFailed   OracleStatus = -3
	OracleErrInvalidParam OracleStatus = -4
	OracleErrBufferSize   OracleStatus = -5
	OracleErrCompute      OracleStatus = -6
)

// OK reports whether the status indicates success.
func (s OracleStatus) OK() bool { return s == OracleOK }

func (s OracleStatus) String() string {
	switch s {
	case OracleOK:
		return "ok"
	case OracleErrUnknown:
		return "unknown error"
	case OracleErrNoDevice:
		return "no device"
	case OracleErrInitFailed:
		return "init failed"
	case OracleErrInvalidParam:
		return "invalid parameter"
	case OracleErrBufferSize:
		return "buffer too small"
	case OracleErrCompute:
		return "compute failed"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Oracle is the exclusive, stateful keystream device. Every call mutates
// device-global state, so callers must serialize access; the keystream
// service funnels all traffic through one critical section. A non-OK
// status from any call is fatal to the operation in progress, with
// LastErrorMessage providing the device's own description.
type Oracle interface {
	InitDevice(index int) OracleStatus
	SetDeterministicMode(seed uint64) OracleStatus
	ResetPhysicsState(energy, coupling, noiseFloor, damping float32) OracleStatus
	AdvanceStep(dt, diffusion, drive float32) OracleStatus
	ReadChannel(channel int, dst []float32) OracleStatus
	LastErrorMessage() string
	Close() error
}
