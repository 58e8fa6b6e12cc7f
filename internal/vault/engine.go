package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Options tune the pipeline. Zero values pick the defaults.
type Options struct {
	Depth   int // in-flight block bound, default DefaultDepth
	Workers int // transform worker count, default DefaultWorkers
}

// Engine composes the keystream service, cipher, integrity hash, and
// container codec into whole-file encrypt and decrypt operations. One
// engine drives one oracle device; operations run one at a time.
type Engine struct {
	keystream *KeystreamService
	observer  ProgressObserver
	logger    Logger
	clock     Clock
	pool      *bufferPool
	depth     int
	workers   int
}

// NewEngine creates an engine around an oracle-backed keystream service.
// observer and logger may be nil.
func NewEngine(keystream *KeystreamService, observer ProgressObserver, logger Logger, clock Clock, opts Options) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	depth := opts.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{
		keystream: keystream,
		observer:  observer,
		logger:    logger,
		clock:     clock,
		pool:      newBufferPool(),
		depth:     depth,
		workers:   workers,
	}
}

// EncryptResult reports a completed encrypt operation.
type EncryptResult struct {
	OutputPath string
	MasterSeed uint64
	Blocks     int
	Bytes      int64
}

// DecryptResult reports a completed decrypt operation. When the tag check
// failed, OutputPath carries the renamed path and Renamed is true; the
// accompanying error wraps ErrIntegrity.
type DecryptResult struct {
	OutputPath string
	Name       string
	MasterSeed uint64
	Blocks     int
	Bytes      int64
	Renamed    bool
}

// Encrypt encrypts inputPath into a container at outputPath under a fresh
// random master seed.
func (e *Engine) Encrypt(inputPath, outputPath string) (*EncryptResult, error) {
	seed, err := randomSeed()
	if err != nil {
		return nil, fmt.Errorf("generating master seed: %w", err)
	}
	return e.EncryptWithSeed(inputPath, outputPath, seed)
}

// EncryptWithSeed encrypts under an explicit master seed. The same input
// and seed always produce a byte-identical container.
func (e *Engine) EncryptWithSeed(inputPath, outputPath string, masterSeed uint64) (*EncryptResult, error) {
	start := e.clock.Now()

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	totalBytes := info.Size()

	header, err := EncodeHeader(&Header{
		Version:    FormatVersion,
		MasterSeed: masterSeed,
		Name:       filepath.Base(inputPath),
	})
	if err != nil {
		return nil, err
	}

	tag, err := NewIntegrityHash(masterSeed)
	if err != nil {
		return nil, err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	if _, err := out.Write(header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	tag.Write(header)

	var written int64
	blocks := 0
	pl := &pipeline{
		src:       in,
		transform: e.blockTransform(masterSeed),
		sink: func(index uint32, data []byte) error {
			if _, err := out.Write(data); err != nil {
				return fmt.Errorf("writing block %d: %w", index, err)
			}
			tag.Write(data)
			written += int64(len(data))
			blocks++
			e.observer.OnProgress(written, totalBytes)
			return nil
		},
		depth:   e.depth,
		workers: e.workers,
		pool:    e.pool,
	}
	if err := pl.run(); err != nil {
		return nil, err
	}

	if _, err := out.Write(tag.Sum(nil)); err != nil {
		return nil, fmt.Errorf("writing tag: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing output: %w", err)
	}

	e.logger.Info("encrypt complete",
		"output", outputPath,
		"blocks", blocks,
		"bytes", written,
		"duration", e.clock.Now().Sub(start),
	)
	return &EncryptResult{
		OutputPath: outputPath,
		MasterSeed: masterSeed,
		Blocks:     blocks,
		Bytes:      written,
	}, nil
}

// Decrypt parses the container at inputPath and writes the recovered file
// into outputDir under its original name. The pipeline reads exactly the
// payload range, never the trailing tag; ciphertext is hashed as it is
// read. On tag mismatch the plaintext is renamed with CorruptSuffix and
// the returned error wraps ErrIntegrity, alongside a usable result.
func (e *Engine) Decrypt(inputPath, outputDir string) (*DecryptResult, error) {
	start := e.clock.Now()

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat container: %w", err)
	}

	header, rawHeader, err := ParseHeader(in)
	if err != nil {
		return nil, err
	}

	payloadSize, err := PayloadSize(info.Size(), len(rawHeader))
	if err != nil {
		return nil, err
	}

	tag, err := NewIntegrityHash(header.MasterSeed)
	if err != nil {
		return nil, err
	}
	tag.Write(rawHeader)

	outputPath := filepath.Join(outputDir, filepath.Base(header.Name))
	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	src := io.TeeReader(io.LimitReader(in, payloadSize), tag)

	var written int64
	blocks := 0
	pl := &pipeline{
		src:       src,
		transform: e.blockTransform(header.MasterSeed),
		sink: func(index uint32, data []byte) error {
			if _, err := out.Write(data); err != nil {
				return fmt.Errorf("writing block %d: %w", index, err)
			}
			written += int64(len(data))
			blocks++
			e.observer.OnProgress(written, payloadSize)
			return nil
		},
		depth:   e.depth,
		workers: e.workers,
		pool:    e.pool,
	}
	if err := pl.run(); err != nil {
		return nil, err
	}

	storedTag := make([]byte, TagSize)
	if _, err := io.ReadFull(in, storedTag); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, newFormatError("container is missing its integrity tag")
		}
		return nil, fmt.Errorf("reading tag: %w", err)
	}

	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing output: %w", err)
	}

	res := &DecryptResult{
		OutputPath: outputPath,
		Name:       header.Name,
		MasterSeed: header.MasterSeed,
		Blocks:     blocks,
		Bytes:      written,
	}

	if !VerifyTag(tag.Sum(nil), storedTag) {
		corrupt := outputPath + CorruptSuffix
		if renameErr := os.Rename(outputPath, corrupt); renameErr != nil {
			e.logger.Error("renaming corrupt output failed", "path", outputPath, "error", renameErr)
		} else {
			res.OutputPath = corrupt
			res.Renamed = true
		}
		e.logger.Warn("integrity tag mismatch", "container", inputPath, "output", res.OutputPath)
		return res, newIntegrityError(res.OutputPath)
	}

	e.logger.Info("decrypt complete",
		"output", outputPath,
		"blocks", blocks,
		"bytes", written,
		"duration", e.clock.Now().Sub(start),
	)
	return res, nil
}

// blockTransform builds the per-block task body: derive the keystream for
// the task's index and combine it with the chunk in place. The keystream
// buffer is wiped before recycling.
func (e *Engine) blockTransform(masterSeed uint64) transformFunc {
	return func(t *blockTask) error {
		ks := e.pool.get()
		defer func() {
			wipe(ks)
			e.pool.put(ks)
		}()

		if err := e.keystream.Produce(masterSeed, t.index, ks); err != nil {
			return err
		}
		Combine(t.data[:t.n], t.data[:t.n], ks[:t.n])
		return nil
	}
}
