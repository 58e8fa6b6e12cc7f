package vault

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// DefaultSeedTimeout bounds how long an oracle-backed seed derivation may
// run before OS randomness is substituted.
const DefaultSeedTimeout = 2 * time.Second

// SeedResult is the outcome of a seed derivation.
type SeedResult struct {
	Seed     uint64
	Fallback bool // true when OS randomness was substituted for the oracle
}

// SeedSource derives fresh master seeds from the oracle: one keystream
// round over a random base seed, folded to 64 bits. If the round fails or
// misses the context deadline, the source substitutes OS randomness and
// flags the fallback instead of blocking its caller. The in-flight oracle
// call is never interrupted; it holds the device lock until it returns,
// and later callers simply queue behind it.
//
// This fallback exists only here. The encrypt/decrypt pipeline treats any
// oracle failure as fatal, because substituting keystream material would
// silently produce an undecryptable container.
type SeedSource struct {
	keystream *KeystreamService
	logger    Logger
}

// NewSeedSource creates a seed source on top of a keystream service.
func NewSeedSource(keystream *KeystreamService, logger Logger) *SeedSource {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &SeedSource{keystream: keystream, logger: logger}
}

// Derive produces one fresh seed, honoring the context deadline.
func (s *SeedSource) Derive(ctx context.Context) (*SeedResult, error) {
	base, err := randomSeed()
	if err != nil {
		return nil, fmt.Errorf("drawing base seed: %w", err)
	}

	type outcome struct {
		seed uint64
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		buf := make([]byte, ChunkSize)
		if err := s.keystream.Produce(base, 0, buf); err != nil {
			ch <- outcome{err: err}
			return
		}
		ch <- outcome{seed: binary.LittleEndian.Uint64(buf[:8])}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			s.logger.Warn("oracle seed derivation failed, substituting OS randomness", "error", o.err)
			return s.fallback()
		}
		return &SeedResult{Seed: o.seed}, nil
	case <-ctx.Done():
		s.logger.Warn("oracle seed derivation missed its deadline, substituting OS randomness", "cause", ctx.Err())
		return s.fallback()
	}
}

func (s *SeedSource) fallback() (*SeedResult, error) {
	seed, err := randomSeed()
	if err != nil {
		return nil, fmt.Errorf("drawing fallback seed: %w", err)
	}
	return &SeedResult{Seed: seed, Fallback: true}, nil
}

// randomSeed draws 64 bits from the OS.
func randomSeed() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
