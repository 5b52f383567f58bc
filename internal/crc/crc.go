// Package crc implements the CRC module: a pluggable checksum generator
// over a byte width fixed at configuration time, with an XOR fallback
// for hosts that supply no CRC callback.
package crc

// Width is the on-wire size of a checksum, fixed for the lifetime of a
// Host. Only 1, 2 and 4 byte widths are accepted (see Valid);
// protocol_info bits 5-6 carry the width minus one.
type Width int

const (
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
)

// Valid reports whether w is one of the three accepted widths.
func (w Width) Valid() bool {
	return w == Width1 || w == Width2 || w == Width4
}

// Generator computes a checksum over a byte slice, matching the
// host-supplied CRC callback. It is a pure
// function: same input, same output, no side effects.
type Generator func(data []byte) uint32

// XORFallback is the built-in generator pkg/strobe uses when its
// Config carries no CRCFunc. It is not a strong checksum. NewHost does
// not use it for checksums: with CRC enabled it always takes
// Callbacks.CRC (which NopCallbacks answers with 0).
func XORFallback(data []byte) uint32 {
	var acc uint32
	for _, b := range data {
		acc ^= uint32(b)
	}
	return acc
}

// CCITT16 is a CRC-CCITT (poly 0x1021, initial 0) generator. Nothing in
// this module selects it automatically; it is used only where an
// application's CRC callback calls it.
func CCITT16(data []byte) uint32 {
	var crc uint16
	for _, b := range data {
		crc = ccittSingle(crc, b)
	}
	return uint32(crc)
}

func ccittSingle(crc uint16, b byte) uint16 {
	crc ^= uint16(b) << 8
	for i := 0; i < 8; i++ {
		if crc&0x8000 != 0 {
			crc = crc<<1 ^ 0x1021
		} else {
			crc <<= 1
		}
	}
	return crc
}

// Truncate masks a full-width checksum down to w bytes, little-endian
// order, matching how the command/strobe wire layout packs it.
func Truncate(value uint32, w Width) []byte {
	out := make([]byte, int(w))
	for i := range out {
		out[i] = byte(value >> (8 * i))
	}
	return out
}
