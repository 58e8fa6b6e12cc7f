package oracle

import (
	"fmt"
	"sync/atomic"

	"myz-go/internal/config"
	"myz-go/internal/vault"
)

// opened tracks the process-wide device claim. The oracle is a single
// exclusive resource: two live handles would interleave state mutations
// and corrupt each other's keystream.
var opened atomic.Bool

// Open creates and initializes the configured oracle device. The returned
// handle is process-exclusive; a second Open fails until the first handle
// is closed.
func Open(cfg config.OracleConfig) (vault.Oracle, error) {
	if !opened.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("oracle device already open in this process")
	}

	dev, err := newDevice(cfg)
	if err != nil {
		opened.Store(false)
		return nil, err
	}

	if st := dev.InitDevice(cfg.DeviceIndex); !st.OK() {
		detail := dev.LastErrorMessage()
		opened.Store(false)
		return nil, fmt.Errorf("initializing oracle device %d: %s (%s)", cfg.DeviceIndex, st, detail)
	}

	return &exclusiveHandle{Oracle: dev}, nil
}

// newDevice creates a device backend based on the configuration type.
func newDevice(cfg config.OracleConfig) (vault.Oracle, error) {
	switch cfg.Type {
	case "subqg", "":
		return NewSubQGDevice(), nil
	case "opencl":
		return nil, fmt.Errorf("opencl oracle requires the vendor runtime, which this build does not link")
	default:
		return nil, fmt.Errorf("unknown oracle type: %q", cfg.Type)
	}
}

// exclusiveHandle releases the process-wide claim when closed.
type exclusiveHandle struct {
	vault.Oracle
}

func (h *exclusiveHandle) Close() error {
	err := h.Oracle.Close()
	opened.CompareAndSwap(true, false)
	return err
}
