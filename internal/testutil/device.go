package testutil

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"myz-go/internal/vault"
)

// ScriptedDevice is an in-memory vault.Oracle with scriptable failures
// and timing. The channel data it yields depends only on the seed set by
// SetDeterministicMode, so encrypting and decrypting with two separate
// devices agrees the same way two runs against real hardware would.
type ScriptedDevice struct {
	// FailMethod names the method that should fail ("InitDevice",
	// "SetDeterministicMode", "ResetPhysicsState", "AdvanceStep" or
	// "ReadChannel"). Empty means every call succeeds.
	FailMethod string
	// FailStatus is returned by the failing method. Tests set one of the
	// vault.OracleErr constants; the zero value falls back to unknown.
	FailStatus vault.OracleStatus
	// FailAtCall fails only the Nth call of FailMethod, counted from 1.
	// Zero fails every call of FailMethod.
	FailAtCall int
	// StepDelay is slept inside AdvanceStep. Combined with
	// SawConcurrentCalls it widens the window for catching callers that
	// fail to serialize device access.
	StepDelay time.Duration
	// Lanes overrides the default channel fill for tests that need exact
	// lane values.
	Lanes func(seed uint64, dst []float32)

	mu      sync.Mutex
	seed    uint64
	calls   []string
	perCall map[string]int
	lastErr string
	closed  bool

	inCall     atomic.Bool
	concurrent atomic.Bool
}

var _ vault.Oracle = (*ScriptedDevice)(nil)

func (d *ScriptedDevice) InitDevice(index int) vault.OracleStatus {
	fail := d.begin("InitDevice")
	defer d.end()
	if fail {
		return d.fail("InitDevice")
	}
	return vault.OracleOK
}

func (d *ScriptedDevice) SetDeterministicMode(seed uint64) vault.OracleStatus {
	fail := d.begin("SetDeterministicMode")
	defer d.end()
	if fail {
		return d.fail("SetDeterministicMode")
	}
	d.mu.Lock()
	d.seed = seed
	d.mu.Unlock()
	return vault.OracleOK
}

func (d *ScriptedDevice) ResetPhysicsState(energy, coupling, noiseFloor, damping float32) vault.OracleStatus {
	fail := d.begin("ResetPhysicsState")
	defer d.end()
	if fail {
		return d.fail("ResetPhysicsState")
	}
	return vault.OracleOK
}

func (d *ScriptedDevice) AdvanceStep(dt, diffusion, drive float32) vault.OracleStatus {
	fail := d.begin("AdvanceStep")
	defer d.end()
	if fail {
		return d.fail("AdvanceStep")
	}
	if d.StepDelay > 0 {
		time.Sleep(d.StepDelay)
	}
	return vault.OracleOK
}

func (d *ScriptedDevice) ReadChannel(channel int, dst []float32) vault.OracleStatus {
	fail := d.begin("ReadChannel")
	defer d.end()
	if fail {
		return d.fail("ReadChannel")
	}
	seed := d.currentSeed()
	if d.Lanes != nil {
		d.Lanes(seed, dst)
		return vault.OracleOK
	}
	for i := range dst {
		dst[i] = laneValue(seed, i)
	}
	return vault.OracleOK
}

func (d *ScriptedDevice) LastErrorMessage() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *ScriptedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Calls returns the method names invoked so far, in order.
func (d *ScriptedDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Closed reports whether Close has been called.
func (d *ScriptedDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// SawConcurrentCalls reports whether two device calls ever overlapped.
func (d *ScriptedDevice) SawConcurrentCalls() bool {
	return d.concurrent.Load()
}

// begin records the call and reports whether this call is scripted to
// fail.
func (d *ScriptedDevice) begin(method string) bool {
	if !d.inCall.CompareAndSwap(false, true) {
		d.concurrent.Store(true)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, method)
	if d.perCall == nil {
		d.perCall = make(map[string]int)
	}
	d.perCall[method]++
	if d.FailMethod != method {
		return false
	}
	return d.FailAtCall == 0 || d.perCall[method] == d.FailAtCall
}

func (d *ScriptedDevice) end() { d.inCall.Store(false) }

func (d *ScriptedDevice) fail(method string) vault.OracleStatus {
	d.mu.Lock()
	d.lastErr = fmt.Sprintf("%s scripted to fail", method)
	d.mu.Unlock()
	if d.FailStatus.OK() {
		return vault.OracleErrUnknown
	}
	return d.FailStatus
}

func (d *ScriptedDevice) currentSeed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seed
}

// laneValue derives a stable lane float from the seed and lane index.
// Values land in [1, 2) so they are always finite.
func laneValue(seed uint64, lane int) float32 {
	x := seed ^ uint64(lane)*0x9e3779b97f4a7c15
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return math.Float32frombits(uint32(x)&0x007fffff | 0x3f800000)
}
