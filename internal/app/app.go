package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"myz-go/internal/config"
	"myz-go/internal/journal"
	"myz-go/internal/oracle"
	"myz-go/internal/vault"
)

// VaultApp is the application layer between the CLI and the engine. It
// constructs all dependencies from config, exposes high-level operations
// on raw paths, and releases the device and journal on Close.
type VaultApp struct {
	cfg     *config.Config
	device  vault.Oracle
	engine  *vault.Engine
	seeds   *vault.SeedSource
	journal *journal.Journal // nil when opening failed; operations still run
	logger  vault.Logger
	logFile *os.File
}

// NewVaultApp creates a fully wired VaultApp from the given config.
// The caller must call Close when done.
func NewVaultApp(cfg *config.Config) (*VaultApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	device, err := oracle.Open(cfg.Oracle)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening oracle device: %w", err)
	}

	keystream := vault.NewKeystreamService(device, logger)
	engine := vault.NewEngine(keystream, NewConsoleProgress(os.Stdout), logger, vault.RealClock{}, vault.Options{
		Depth:   cfg.Pipeline.Depth,
		Workers: cfg.Pipeline.Workers,
	})
	seeds := vault.NewSeedSource(keystream, logger)

	// The journal is best-effort: a broken journal costs the audit trail,
	// never the vault operation.
	var jnl *journal.Journal
	if j, err := journal.Open(cfg.Journal.Path, vault.RealClock{}, vault.UUIDGenerator{}); err != nil {
		logger.Warn("opening journal failed", "path", cfg.Journal.Path, "error", err)
	} else {
		jnl = j
	}

	return &VaultApp{
		cfg:     cfg,
		device:  device,
		engine:  engine,
		seeds:   seeds,
		journal: jnl,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Encrypt encrypts inputPath into a container under a fresh random master
// seed. An empty outputPath derives the output from the input name.
func (a *VaultApp) Encrypt(inputPath, outputPath string) (*vault.EncryptResult, error) {
	outputPath = defaultOutputPath(inputPath, outputPath)

	entry := a.beginJournal("encrypt", inputPath)
	res, err := a.engine.Encrypt(inputPath, outputPath)
	if err != nil {
		a.finishJournal(entry, journal.StatusFailed, "", "", 0)
		return nil, err
	}
	a.finishJournal(entry, journal.StatusCompleted, res.OutputPath, seedHex(res.MasterSeed), res.Bytes)
	return res, nil
}

// EncryptWithSeed encrypts under an explicit master seed, for
// reproducible containers.
func (a *VaultApp) EncryptWithSeed(inputPath, outputPath string, masterSeed uint64) (*vault.EncryptResult, error) {
	outputPath = defaultOutputPath(inputPath, outputPath)

	entry := a.beginJournal("encrypt", inputPath)
	res, err := a.engine.EncryptWithSeed(inputPath, outputPath, masterSeed)
	if err != nil {
		a.finishJournal(entry, journal.StatusFailed, "", "", 0)
		return nil, err
	}
	a.finishJournal(entry, journal.StatusCompleted, res.OutputPath, seedHex(res.MasterSeed), res.Bytes)
	return res, nil
}

// Decrypt recovers the file inside the container at inputPath. An empty
// outputDir places the output next to the container. On an integrity
// mismatch both the result (with the renamed path) and an error wrapping
// vault.ErrIntegrity are returned.
func (a *VaultApp) Decrypt(inputPath, outputDir string) (*vault.DecryptResult, error) {
	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}

	entry := a.beginJournal("decrypt", inputPath)
	res, err := a.engine.Decrypt(inputPath, outputDir)
	switch {
	case err != nil && errors.Is(err, vault.ErrIntegrity) && res != nil:
		a.finishJournal(entry, journal.StatusCorrupt, res.OutputPath, seedHex(res.MasterSeed), res.Bytes)
	case err != nil:
		a.finishJournal(entry, journal.StatusFailed, "", "", 0)
	default:
		a.finishJournal(entry, journal.StatusCompleted, res.OutputPath, seedHex(res.MasterSeed), res.Bytes)
	}
	return res, err
}

// DeriveSeed runs one oracle-backed seed derivation with the given
// deadline. A non-positive timeout selects the configured default.
func (a *VaultApp) DeriveSeed(timeout time.Duration) (*vault.SeedResult, error) {
	if timeout <= 0 {
		timeout = a.seedTimeout()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entry := a.beginJournal("seed", "")
	res, err := a.seeds.Derive(ctx)
	if err != nil {
		a.finishJournal(entry, journal.StatusFailed, "", "", 0)
		return nil, err
	}
	a.finishJournal(entry, journal.StatusCompleted, "", seedHex(res.Seed), 0)
	return res, nil
}

// History returns the most recent journal entries.
func (a *VaultApp) History(limit int) ([]*journal.Entry, error) {
	if a.journal == nil {
		return nil, fmt.Errorf("journal unavailable, see log for the cause")
	}
	return a.journal.List(limit)
}

// Close releases the oracle device, journal, and log file.
func (a *VaultApp) Close() error {
	var firstErr error

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			firstErr = fmt.Errorf("closing journal: %w", err)
		}
	}

	if err := a.device.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing oracle device: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

func (a *VaultApp) seedTimeout() time.Duration {
	if a.cfg.Seed.TimeoutMS > 0 {
		return time.Duration(a.cfg.Seed.TimeoutMS) * time.Millisecond
	}
	return vault.DefaultSeedTimeout
}

func (a *VaultApp) beginJournal(operation, inputPath string) *journal.Entry {
	if a.journal == nil {
		return nil
	}
	e, err := a.journal.Begin(operation, inputPath)
	if err != nil {
		a.logger.Warn("journal begin failed", "operation", operation, "error", err)
		return nil
	}
	return e
}

func (a *VaultApp) finishJournal(e *journal.Entry, status, outputPath, masterSeed string, bytes int64) {
	if a.journal == nil || e == nil {
		return
	}
	if err := a.journal.Finish(e, status, outputPath, masterSeed, bytes); err != nil {
		a.logger.Warn("journal finish failed", "operation", e.Operation, "error", err)
	}
}

func defaultOutputPath(inputPath, outputPath string) string {
	if outputPath == "" {
		return inputPath + vault.DefaultExtension
	}
	return outputPath
}

func seedHex(seed uint64) string {
	return fmt.Sprintf("%016x", seed)
}
