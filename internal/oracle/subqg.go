// Package oracle provides keystream device backends behind the
// vault.Oracle interface. The built-in SubQG device is a pure software
// field simulation, so the tool works without vendor hardware; deployments
// with the vendor OpenCL runtime select it through configuration instead.
package oracle

import (
	"fmt"
	"math"
	"time"

	"myz-go/internal/vault"
)

const (
	gridDim   = 256
	gridLanes = gridDim * gridDim
)

// SubQGDevice is the software keystream device: a 256x256 energy field
// driven by a seeded noise source and a diffusion/drive/damping update
// rule. Given the same seed and parameter sequence it reproduces the same
// channel readback, which is all the vault requires of a device.
//
// The device is stateful and not safe for concurrent use; callers
// serialize access, normally through the keystream service.
type SubQGDevice struct {
	init      bool
	haveState bool
	closed    bool

	rng     uint64
	field   []float32
	scratch []float32

	baseEnergy float32
	coupling   float32
	noiseFloor float32
	damping    float32

	lastErr string
}

// NewSubQGDevice creates an unopened software device. Call InitDevice
// before anything else.
func NewSubQGDevice() *SubQGDevice {
	return &SubQGDevice{}
}

func (d *SubQGDevice) InitDevice(index int) vault.OracleStatus {
	if d.closed {
		return d.fail(vault.OracleErrInitFailed, "device is closed")
	}
	if index != 0 {
		return d.fail(vault.OracleErrNoDevice, fmt.Sprintf("no device at index %d, software build exposes index 0 only", index))
	}

	d.init = true
	d.haveState = false
	d.rng = uint64(time.Now().UnixNano())
	d.field = make([]float32, gridLanes)
	d.scratch = make([]float32, gridLanes)
	d.lastErr = ""
	return vault.OracleOK
}

func (d *SubQGDevice) SetDeterministicMode(seed uint64) vault.OracleStatus {
	if st := d.requireInit(); !st.OK() {
		return st
	}
	d.rng = seed
	return vault.OracleOK
}

func (d *SubQGDevice) ResetPhysicsState(energy, coupling, noiseFloor, damping float32) vault.OracleStatus {
	if st := d.requireInit(); !st.OK() {
		return st
	}
	if !finite(energy) || !finite(coupling) || !finite(noiseFloor) || !finite(damping) {
		return d.fail(vault.OracleErrInvalidParam, "physics parameters must be finite")
	}
	if noiseFloor < 0 {
		return d.fail(vault.OracleErrInvalidParam, "noise floor must be non-negative")
	}

	d.baseEnergy = energy
	d.coupling = coupling
	d.noiseFloor = noiseFloor
	d.damping = damping
	for i := range d.field {
		d.field[i] = energy + noiseFloor*(2*d.nextFloat()-1)
	}
	d.haveState = true
	return vault.OracleOK
}

func (d *SubQGDevice) AdvanceStep(dt, diffusion, drive float32) vault.OracleStatus {
	if st := d.requireInit(); !st.OK() {
		return st
	}
	if !d.haveState {
		return d.fail(vault.OracleErrInitFailed, "physics state not initialized, call ResetPhysicsState first")
	}
	if !finite(dt) || !finite(diffusion) || !finite(drive) {
		return d.fail(vault.OracleErrInvalidParam, "step parameters must be finite")
	}

	for y := 0; y < gridDim; y++ {
		up := ((y + gridDim - 1) % gridDim) * gridDim
		down := ((y + 1) % gridDim) * gridDim
		row := y * gridDim
		for x := 0; x < gridDim; x++ {
			left := (x + gridDim - 1) % gridDim
			right := (x + 1) % gridDim

			c := d.field[row+x]
			lap := d.field[row+left] + d.field[row+right] + d.field[up+x] + d.field[down+x] - 4*c
			noise := d.noiseFloor * (2*d.nextFloat() - 1)

			next := c + dt*(diffusion*lap+drive*d.coupling*c*(1-c)) + noise
			next += d.damping * dt * (d.baseEnergy - next)
			d.scratch[row+x] = next
		}
	}
	d.field, d.scratch = d.scratch, d.field
	return vault.OracleOK
}

func (d *SubQGDevice) ReadChannel(channel int, dst []float32) vault.OracleStatus {
	if st := d.requireInit(); !st.OK() {
		return st
	}
	if !d.haveState {
		return d.fail(vault.OracleErrInitFailed, "physics state not initialized, nothing to read")
	}
	if channel != vault.EnergyChannel {
		return d.fail(vault.OracleErrInvalidParam, fmt.Sprintf("channel %d does not exist, energy channel is %d", channel, vault.EnergyChannel))
	}
	if len(dst) > gridLanes {
		return d.fail(vault.OracleErrBufferSize, fmt.Sprintf("channel holds %d lanes, %d requested", gridLanes, len(dst)))
	}

	copy(dst, d.field[:len(dst)])
	return vault.OracleOK
}

func (d *SubQGDevice) LastErrorMessage() string {
	return d.lastErr
}

// Close releases the device state. Further calls fail until InitDevice
// runs on a fresh handle.
func (d *SubQGDevice) Close() error {
	d.closed = true
	d.init = false
	d.haveState = false
	d.field = nil
	d.scratch = nil
	return nil
}

func (d *SubQGDevice) requireInit() vault.OracleStatus {
	if d.closed {
		return d.fail(vault.OracleErrInitFailed, "device is closed")
	}
	if !d.init {
		return d.fail(vault.OracleErrInitFailed, "device not initialized, call InitDevice first")
	}
	return vault.OracleOK
}

func (d *SubQGDevice) fail(st vault.OracleStatus, msg string) vault.OracleStatus {
	d.lastErr = msg
	return st
}

// nextUint64 advances the device's noise source (splitmix64).
func (d *SubQGDevice) nextUint64() uint64 {
	d.rng += 0x9e3779b97f4a7c15
	z := d.rng
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// nextFloat returns a float32 in [0, 1).
func (d *SubQGDevice) nextFloat() float32 {
	return float32(d.nextUint64()>>40) / (1 << 24)
}

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

var _ vault.Oracle = (*SubQGDevice)(nil)
