package vault

import (
	"fmt"
	"math"
	"sync"
)

// Keystream derivation constants. K spreads per-block seeds across the
// oracle's seed space; the lane mix folds each float lane to one byte.
// Both are fixed by the format: encrypt and decrypt must compute them
// identically, and existing containers pin the exact values.
const (
	seedSpreadK = 7919
	laneMixMult = 0x45d9f3b
)

// Physics parameters for a keystream round. Every block runs the same
// reset and step; only the seed varies between blocks.
const (
	resetEnergy     = 0.5
	resetCoupling   = 0.5
	resetNoiseFloor = 0.005
	resetDamping    = 0.5

	stepDT        = 0.5
	stepDiffusion = 0.5
	stepDrive     = 0.5
)

// BlockSeed derives the oracle seed for a block. Arithmetic wraps, which
// both sides of the pipeline rely on.
func BlockSeed(masterSeed uint64, blockIndex uint32) uint64 {
	return masterSeed + uint64(blockIndex)*seedSpreadK
}

// KeystreamService turns block indexes into keystream bytes through the
// oracle. All oracle traffic in the process goes through one service so
// the critical section really is global: workers may request blocks in
// any order, but the device only ever sees one call sequence at a time.
type KeystreamService struct {
	mu     sync.Mutex
	oracle Oracle
	logger Logger
	lanes  []float32 // readback buffer, guarded by mu
}

// NewKeystreamService wraps an opened oracle device.
func NewKeystreamService(oracle Oracle, logger Logger) *KeystreamService {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &KeystreamService{
		oracle: oracle,
		logger: logger,
		lanes:  make([]float32, ChunkSize),
	}
}

// Produce fills dst with the keystream block for (masterSeed, blockIndex).
// dst must be exactly ChunkSize bytes; callers truncate to the chunk they
// are combining. Any device failure aborts the operation that issued the
// block; the device is deterministic, so retries are pointless.
func (s *KeystreamService) Produce(masterSeed uint64, blockIndex uint32, dst []byte) error {
	if len(dst) != ChunkSize {
		return fmt.Errorf("keystream buffer is %d bytes, want %d", len(dst), ChunkSize)
	}
	seed := BlockSeed(masterSeed, blockIndex)

	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.oracle.SetDeterministicMode(seed); !st.OK() {
		return s.fail("SetDeterministicMode", st)
	}
	if st := s.oracle.ResetPhysicsState(resetEnergy, resetCoupling, resetNoiseFloor, resetDamping); !st.OK() {
		return s.fail("ResetPhysicsState", st)
	}
	if st := s.oracle.AdvanceStep(stepDT, stepDiffusion, stepDrive); !st.OK() {
		return s.fail("AdvanceStep", st)
	}
	if st := s.oracle.ReadChannel(EnergyChannel, s.lanes); !st.OK() {
		return s.fail("ReadChannel", st)
	}

	mixLanes(dst, s.lanes)
	return nil
}

func (s *KeystreamService) fail(call string, st OracleStatus) error {
	detail := s.oracle.LastErrorMessage()
	s.logger.Error("oracle call failed", "call", call, "status", st, "detail", detail)
	return newOracleError(call, st, detail)
}

// mixLanes folds each float lane into one keystream byte: xor-shift and
// multiply on the raw bits, keep the low byte.
func mixLanes(dst []byte, lanes []float32) {
	for i, f := range lanes {
		x := math.Float32bits(f)
		x = (x ^ (x >> 16)) * laneMixMult
		dst[i] = byte(x)
	}
}
