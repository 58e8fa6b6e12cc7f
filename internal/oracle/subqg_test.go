package oracle_test

import (
	"math"
	"testing"

	"myz-go/internal/oracle"
	"myz-go/internal/vault"
)

// openDevice initializes a fresh software device ready for keystream
// rounds.
func openDevice(t *testing.T) *oracle.SubQGDevice {
	t.Helper()
	d := oracle.NewSubQGDevice()
	if st := d.InitDevice(0); !st.OK() {
		t.Fatalf("InitDevice(0) = %v (%s)", st, d.LastErrorMessage())
	}
	return d
}

// readback runs one full deterministic round and returns the channel
// contents.
func readback(t *testing.T, d *oracle.SubQGDevice, seed uint64, lanes int) []float32 {
	t.Helper()
	if st := d.SetDeterministicMode(seed); !st.OK() {
		t.Fatalf("SetDeterministicMode() = %v", st)
	}
	if st := d.ResetPhysicsState(0.5, 0.5, 0.005, 0.5); !st.OK() {
		t.Fatalf("ResetPhysicsState() = %v", st)
	}
	if st := d.AdvanceStep(0.5, 0.5, 0.5); !st.OK() {
		t.Fatalf("AdvanceStep() = %v", st)
	}
	dst := make([]float32, lanes)
	if st := d.ReadChannel(vault.EnergyChannel, dst); !st.OK() {
		t.Fatalf("ReadChannel() = %v", st)
	}
	return dst
}

func TestSubQGDevice_InitDevice(t *testing.T) {
	t.Run("exposes device index 0", func(t *testing.T) {
		t.Parallel()
		d := oracle.NewSubQGDevice()
		if st := d.InitDevice(0); !st.OK() {
			t.Fatalf("InitDevice(0) = %v", st)
		}
	})

	t.Run("reports no device at other indexes", func(t *testing.T) {
		t.Parallel()
		d := oracle.NewSubQGDevice()
		if st := d.InitDevice(1); st != vault.OracleErrNoDevice {
			t.Fatalf("InitDevice(1) = %v, want %v", st, vault.OracleErrNoDevice)
		}
		if d.LastErrorMessage() == "" {
			t.Error("no device error left no message")
		}
	})

	t.Run("calls before init fail", func(t *testing.T) {
		t.Parallel()
		d := oracle.NewSubQGDevice()
		if st := d.SetDeterministicMode(1); st != vault.OracleErrInitFailed {
			t.Errorf("SetDeterministicMode() = %v, want %v", st, vault.OracleErrInitFailed)
		}
		if st := d.ReadChannel(vault.EnergyChannel, make([]float32, 16)); st != vault.OracleErrInitFailed {
			t.Errorf("ReadChannel() = %v, want %v", st, vault.OracleErrInitFailed)
		}
	})
}

func TestSubQGDevice_Determinism(t *testing.T) {
	t.Run("one seed reproduces one field", func(t *testing.T) {
		t.Parallel()
		a := readback(t, openDevice(t), 12345, 4096)
		b := readback(t, openDevice(t), 12345, 4096)

		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("lane %d differs: %v vs %v", i, a[i], b[i])
			}
		}
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		t.Parallel()
		a := readback(t, openDevice(t), 1, 4096)
		b := readback(t, openDevice(t), 2, 4096)

		same := 0
		for i := range a {
			if a[i] == b[i] {
				same++
			}
		}
		if same == len(a) {
			t.Error("different seeds produced an identical field")
		}
	})

	t.Run("a reset clears the previous field", func(t *testing.T) {
		t.Parallel()
		d := openDevice(t)
		a := readback(t, d, 99, 4096)
		b := readback(t, d, 99, 4096)

		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("lane %d differs after re-running the same seed on one device", i)
			}
		}
	})
}

func TestSubQGDevice_Validation(t *testing.T) {
	t.Run("rejects non-finite physics parameters", func(t *testing.T) {
		t.Parallel()
		d := openDevice(t)
		d.SetDeterministicMode(1)

		nan := float32(math.NaN())
		if st := d.ResetPhysicsState(nan, 0.5, 0.005, 0.5); st != vault.OracleErrInvalidParam {
			t.Errorf("ResetPhysicsState(NaN) = %v, want %v", st, vault.OracleErrInvalidParam)
		}
		if st := d.ResetPhysicsState(0.5, 0.5, -0.1, 0.5); st != vault.OracleErrInvalidParam {
			t.Errorf("ResetPhysicsState(negative noise) = %v, want %v", st, vault.OracleErrInvalidParam)
		}
	})

	t.Run("stepping without a state fails", func(t *testing.T) {
		t.Parallel()
		d := openDevice(t)
		d.SetDeterministicMode(1)

		if st := d.AdvanceStep(0.5, 0.5, 0.5); st != vault.OracleErrInitFailed {
			t.Errorf("AdvanceStep() = %v, want %v", st, vault.OracleErrInitFailed)
		}
	})

	t.Run("rejects an unknown channel", func(t *testing.T) {
		t.Parallel()
		d := openDevice(t)
		readback(t, d, 1, 16)

		if st := d.ReadChannel(3, make([]float32, 16)); st != vault.OracleErrInvalidParam {
			t.Errorf("ReadChannel(3) = %v, want %v", st, vault.OracleErrInvalidParam)
		}
	})

	t.Run("rejects a readback larger than the grid", func(t *testing.T) {
		t.Parallel()
		d := openDevice(t)
		readback(t, d, 1, 16)

		if st := d.ReadChannel(vault.EnergyChannel, make([]float32, 65537)); st != vault.OracleErrBufferSize {
			t.Errorf("oversized ReadChannel() = %v, want %v", st, vault.OracleErrBufferSize)
		}
	})

	t.Run("fills a full-grid readback", func(t *testing.T) {
		t.Parallel()
		d := openDevice(t)
		got := readback(t, d, 1, 65536)
		if len(got) != 65536 {
			t.Fatalf("readback length = %d, want 65536", len(got))
		}
	})
}

func TestSubQGDevice_Close(t *testing.T) {
	t.Parallel()
	d := openDevice(t)
	readback(t, d, 1, 16)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if st := d.SetDeterministicMode(1); st != vault.OracleErrInitFailed {
		t.Errorf("SetDeterministicMode() after Close = %v, want %v", st, vault.OracleErrInitFailed)
	}
	if st := d.InitDevice(0); st != vault.OracleErrInitFailed {
		t.Errorf("InitDevice() after Close = %v, want %v", st, vault.OracleErrInitFailed)
	}
}
