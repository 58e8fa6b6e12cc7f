package vault

import (
	"errors"
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// Error classes callers branch on with errors.Is. Each carries a coded
// error underneath so logs keep machine-readable codes.
var (
	// ErrFormat covers malformed containers: bad magic, truncated header,
	// or a file too short to hold header plus tag. Raised before any
	// payload byte is decrypted.
	ErrFormat = errors.New("container format error")

	// ErrOracle covers any non-success device status. Fatal to the whole
	// operation; the oracle is deterministic, so retrying a block would
	// fail the same way.
	ErrOracle = errors.New("oracle failure")

	// ErrIntegrity is the decrypt-side tag mismatch. The plaintext is
	// fully written but renamed with CorruptSuffix; the operation itself
	// ran to completion.
	ErrIntegrity = errors.New("integrity tag mismatch")
)

func newFormatError(msg string) error {
	return fmt.Errorf("%w: %w", ErrFormat, goerrors.New("VAULT_FORMAT", msg))
}

func newFormatErrorf(format string, args ...any) error {
	return newFormatError(fmt.Sprintf(format, args...))
}

func newOracleError(call string, status OracleStatus, detail string) error {
	msg := fmt.Sprintf("%s returned %s", call, status)
	if detail != "" {
		msg += ": " + detail
	}
	return fmt.Errorf("%w: %w", ErrOracle, goerrors.New("ORACLE_FAILURE", msg))
}

func newIntegrityError(path string) error {
	return fmt.Errorf("%w: %w", ErrIntegrity,
		goerrors.New("VAULT_INTEGRITY", "computed tag does not match stored tag, output at "+path))
}
