package vault

// Combine XORs raw with keystream into dst. The operation is its own
// inverse: applying it twice with the same keystream restores the input,
// which is why encrypt and decrypt share one transform. dst may alias
// raw; keystream must be at least len(raw) bytes.
func Combine(dst, raw, keystream []byte) {
	for i := range raw {
		dst[i] = raw[i] ^ keystream[i]
	}
}
