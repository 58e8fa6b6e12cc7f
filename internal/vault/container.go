package vault

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Container format constants. All of them are fixed by the on-disk layout;
// changing any one breaks every container already in the field.
const (
	// MagicString opens every container file.
	MagicString = "MYZ4"

	// FormatVersion is the version tag written into new containers. The
	// tag is carried in the header but not enforced on parse; there is
	// only one format in the field.
	FormatVersion = 4

	// ChunkSize is the payload block size in bytes. It equals the oracle
	// grid size (one keystream byte per float lane), which is why the
	// header carries no chunk-size field: both sides already agree.
	ChunkSize = 65536

	// TagSize is the length of the trailing keyed BLAKE2b digest.
	TagSize = 64

	// CorruptSuffix is appended to a decrypted file whose tag check
	// failed, so the plaintext is never mistaken for trusted output.
	CorruptSuffix = ".CORRUPT"

	// DefaultExtension is appended to the input name when the caller does
	// not choose an output path for encryption.
	DefaultExtension = ".box"

	headerFixedSize = 18 // magic(4) + version(4) + masterSeed(8) + nameLength(2)
)

// Header is the parsed container header. The serialized form is
// little-endian: magic, u32 version, u64 masterSeed, u16 name length,
// then the UTF-8 name bytes.
type Header struct {
	Version    uint32
	MasterSeed uint64
	Name       string
}

// Size returns the serialized header length for this header.
func (h *Header) Size() int {
	return headerFixedSize + len(h.Name)
}

// EncodeHeader serializes a header into its wire form.
func EncodeHeader(h *Header) ([]byte, error) {
	name := []byte(h.Name)
	if len(name) > math.MaxUint16 {
		return nil, newFormatErrorf("name is %d bytes, limit is %d", len(name), math.MaxUint16)
	}

	buf := make([]byte, 0, headerFixedSize+len(name))
	buf = append(buf, MagicString...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = binary.LittleEndian.AppendUint64(buf, h.MasterSeed)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(name)))
	buf = append(buf, name...)
	return buf, nil
}

// ParseHeader reads and validates a header from r. It returns the parsed
// header together with the exact bytes consumed, which the decrypt path
// feeds into the integrity hash. The magic is checked before anything
// else is read; a stream that ends inside the header is malformed.
func ParseHeader(r io.Reader) (*Header, []byte, error) {
	magic := make([]byte, len(MagicString))
	if err := readHeaderBytes(r, magic); err != nil {
		return nil, nil, err
	}
	if string(magic) != MagicString {
		return nil, nil, newFormatErrorf("bad magic %q, want %q", magic, MagicString)
	}

	fixed := make([]byte, headerFixedSize-len(MagicString))
	if err := readHeaderBytes(r, fixed); err != nil {
		return nil, nil, err
	}

	h := &Header{
		Version:    binary.LittleEndian.Uint32(fixed[0:4]),
		MasterSeed: binary.LittleEndian.Uint64(fixed[4:12]),
	}
	nameLen := binary.LittleEndian.Uint16(fixed[12:14])

	name := make([]byte, nameLen)
	if err := readHeaderBytes(r, name); err != nil {
		return nil, nil, err
	}
	h.Name = string(name)

	raw := make([]byte, 0, headerFixedSize+int(nameLen))
	raw = append(raw, magic...)
	raw = append(raw, fixed...)
	raw = append(raw, name...)
	return h, raw, nil
}

// readHeaderBytes fills buf from r, mapping an early end of stream to a
// format error and leaving real I/O failures untouched.
func readHeaderBytes(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return newFormatError("truncated header")
		}
		return fmt.Errorf("reading header: %w", err)
	}
	return nil
}

// PayloadSize derives the ciphertext length from the container file size
// and the parsed header size. A container too short to hold its header
// and tag is malformed.
func PayloadSize(totalSize int64, headerSize int) (int64, error) {
	payload := totalSize - int64(headerSize) - TagSize
	if payload < 0 {
		return 0, newFormatErrorf("container is %d bytes, too short for a %d-byte header and %d-byte tag",
			totalSize, headerSize, TagSize)
	}
	return payload, nil
}

// Inspect parses a container's header and derives its payload size
// without reading any payload bytes.
func Inspect(path string) (*Header, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening container: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat container: %w", err)
	}

	h, raw, err := ParseHeader(f)
	if err != nil {
		return nil, 0, err
	}

	payload, err := PayloadSize(info.Size(), len(raw))
	if err != nil {
		return nil, 0, err
	}
	return h, payload, nil
}
