package host

import "encoding/binary"

// signaturePrefix is the fixed 10-character identifier in the
// advertisement frame: "lassoHost/".
var signaturePrefix = [10]byte{'l', 'a', 's', 's', 'o', 'H', 'o', 's', 't', '/'}

// buildSignature assembles the 16-byte advertisement: the fixed
// identifier, the packed protocol_info word in the configured
// endianness, and a CR LF terminator.
func buildSignature(info uint32, littleEndian bool) []byte {
	out := make([]byte, 0, 16)
	out = append(out, signaturePrefix[:]...)
	var infoBytes [4]byte
	if littleEndian {
		binary.LittleEndian.PutUint32(infoBytes[:], info)
	} else {
		binary.BigEndian.PutUint32(infoBytes[:], info)
	}
	out = append(out, infoBytes[:]...)
	out = append(out, '\r', '\n')
	return out
}
