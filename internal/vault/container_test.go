package vault_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"myz-go/internal/vault"
)

func TestEncodeHeader(t *testing.T) {
	t.Run("writes the documented little-endian layout", func(t *testing.T) {
		t.Parallel()
		got, err := vault.EncodeHeader(&vault.Header{
			Version:    vault.FormatVersion,
			MasterSeed: 0x1122334455667788,
			Name:       "a.txt",
		})
		if err != nil {
			t.Fatalf("EncodeHeader() error = %v", err)
		}

		want := []byte{
			'M', 'Y', 'Z', '4',
			0x04, 0x00, 0x00, 0x00,
			0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11,
			0x05, 0x00,
			'a', '.', 't', 'x', 't',
		}
		if !bytes.Equal(got, want) {
			t.Errorf("header bytes = % x, want % x", got, want)
		}
	})

	t.Run("allows an empty name", func(t *testing.T) {
		t.Parallel()
		got, err := vault.EncodeHeader(&vault.Header{Version: vault.FormatVersion})
		if err != nil {
			t.Fatalf("EncodeHeader() error = %v", err)
		}
		if len(got) != 18 {
			t.Errorf("header length = %d, want 18", len(got))
		}
	})

	t.Run("rejects a name longer than 65535 bytes", func(t *testing.T) {
		t.Parallel()
		_, err := vault.EncodeHeader(&vault.Header{Name: strings.Repeat("n", 65536)})
		if !errors.Is(err, vault.ErrFormat) {
			t.Fatalf("EncodeHeader() error = %v, want ErrFormat", err)
		}
	})
}

func TestParseHeader(t *testing.T) {
	encode := func(t *testing.T, h *vault.Header) []byte {
		t.Helper()
		raw, err := vault.EncodeHeader(h)
		if err != nil {
			t.Fatalf("EncodeHeader() error = %v", err)
		}
		return raw
	}

	t.Run("round-trips an encoded header", func(t *testing.T) {
		t.Parallel()
		in := &vault.Header{Version: vault.FormatVersion, MasterSeed: 0xDEADBEEF, Name: "photo.jpg"}
		raw := encode(t, in)

		got, consumed, err := vault.ParseHeader(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("ParseHeader() error = %v", err)
		}
		if got.Version != in.Version || got.MasterSeed != in.MasterSeed || got.Name != in.Name {
			t.Errorf("parsed header = %+v, want %+v", got, in)
		}
		if !bytes.Equal(consumed, raw) {
			t.Errorf("consumed bytes = % x, want % x", consumed, raw)
		}
	})

	t.Run("does not reject an unknown version tag", func(t *testing.T) {
		t.Parallel()
		raw := encode(t, &vault.Header{Version: 99, MasterSeed: 7, Name: "f"})

		got, _, err := vault.ParseHeader(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("ParseHeader() error = %v", err)
		}
		if got.Version != 99 {
			t.Errorf("version = %d, want 99", got.Version)
		}
	})

	t.Run("rejects a bad magic", func(t *testing.T) {
		t.Parallel()
		raw := encode(t, &vault.Header{Version: vault.FormatVersion, Name: "f"})
		raw[0] = 'X'

		_, _, err := vault.ParseHeader(bytes.NewReader(raw))
		if !errors.Is(err, vault.ErrFormat) {
			t.Fatalf("ParseHeader() error = %v, want ErrFormat", err)
		}
	})

	t.Run("rejects truncation at every header boundary", func(t *testing.T) {
		t.Parallel()
		raw := encode(t, &vault.Header{Version: vault.FormatVersion, MasterSeed: 1, Name: "file.bin"})

		for _, cut := range []int{0, 2, 4, 10, 17, len(raw) - 1} {
			_, _, err := vault.ParseHeader(bytes.NewReader(raw[:cut]))
			if !errors.Is(err, vault.ErrFormat) {
				t.Errorf("ParseHeader(first %d bytes) error = %v, want ErrFormat", cut, err)
			}
		}
	})
}

func TestPayloadSize(t *testing.T) {
	t.Run("subtracts header and tag", func(t *testing.T) {
		t.Parallel()
		got, err := vault.PayloadSize(18+64+150000, 18)
		if err != nil {
			t.Fatalf("PayloadSize() error = %v", err)
		}
		if got != 150000 {
			t.Errorf("payload = %d, want 150000", got)
		}
	})

	t.Run("allows an empty payload", func(t *testing.T) {
		t.Parallel()
		got, err := vault.PayloadSize(25+64, 25)
		if err != nil {
			t.Fatalf("PayloadSize() error = %v", err)
		}
		if got != 0 {
			t.Errorf("payload = %d, want 0", got)
		}
	})

	t.Run("rejects a container too short for its tag", func(t *testing.T) {
		t.Parallel()
		_, err := vault.PayloadSize(25+63, 25)
		if !errors.Is(err, vault.ErrFormat) {
			t.Fatalf("PayloadSize() error = %v, want ErrFormat", err)
		}
	})
}

func TestInspect(t *testing.T) {
	t.Run("reports header fields and payload size", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		raw, err := vault.EncodeHeader(&vault.Header{
			Version:    vault.FormatVersion,
			MasterSeed: 42,
			Name:       "notes.txt",
		})
		if err != nil {
			t.Fatalf("EncodeHeader() error = %v", err)
		}
		payload := bytes.Repeat([]byte{0xAA}, 1000)
		tag := make([]byte, vault.TagSize)

		path := filepath.Join(dir, "notes.txt.box")
		if err := os.WriteFile(path, append(append(raw, payload...), tag...), 0o644); err != nil {
			t.Fatalf("writing container: %v", err)
		}

		h, payloadSize, err := vault.Inspect(path)
		if err != nil {
			t.Fatalf("Inspect() error = %v", err)
		}
		if h.Name != "notes.txt" || h.MasterSeed != 42 {
			t.Errorf("header = %+v, want name notes.txt seed 42", h)
		}
		if payloadSize != 1000 {
			t.Errorf("payload = %d, want 1000", payloadSize)
		}
	})

	t.Run("rejects a non-container file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "not-a-container")
		if err := os.WriteFile(path, []byte("plain text, no magic"), 0o644); err != nil {
			t.Fatalf("writing file: %v", err)
		}

		_, _, err := vault.Inspect(path)
		if !errors.Is(err, vault.ErrFormat) {
			t.Fatalf("Inspect() error = %v, want ErrFormat", err)
		}
	})
}
